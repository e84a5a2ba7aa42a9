package game_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"math-io-server/internal/game"
	"math-io-server/internal/sudoku"
)

func move(x, y, value int) map[string]any {
	return map[string]any{"roomId": "ROOM01", "x": x, "y": y, "value": value}
}

func newRush(t *testing.T, size int, opts ...game.Option) (*fakeTable, *game.Sudoku) {
	t.Helper()
	table := newTable(game.ModeRush, "a", "b")
	table.opts = game.Options{"size": float64(size), "difficulty": "easy"}

	g := game.New(game.IDSudoku, table, opts...).(*game.Sudoku)
	require.NoError(t, game.Start(g, table, 1700000000000))
	return table, g
}

func TestMovePoints(t *testing.T) {
	assert.Equal(t, 100, game.MovePoints(6, 6))
	assert.Equal(t, 85, game.MovePoints(5, 6))
	assert.Equal(t, 25, game.MovePoints(1, 6))
	assert.Equal(t, 10, game.MovePoints(0, 6))
	assert.Equal(t, 10, game.MovePoints(0, 0))
}

func TestSudoku_RushFirstMoveAwardsFullBonus(t *testing.T) {
	table, g := newRush(t, 4)

	remaining, total := g.Remaining()
	require.Equal(t, sudoku.CellsToRemove(4, sudoku.Easy), total)
	require.Equal(t, total, remaining)

	g.HandleEvent(game.EventSudokuMove, raw(move(0, 0, 3)), "a")

	assert.Equal(t, 100, table.Player("a").Score)
	assert.Equal(t, []string{game.EventSudokuBoardUpdate, game.EventUpdatePlayers}, table.events())
	assert.Equal(t, game.BoardScoreUpdate{X: 0, Y: 0, Value: 3, PlayerID: "a", ScoreDelta: 100}, table.broadcasts[0].Payload)

	remaining, _ = g.Remaining()
	assert.Equal(t, total-1, remaining)
}

func TestSudoku_RushClaimedCellSilentlyIgnored(t *testing.T) {
	table, g := newRush(t, 4)

	g.HandleEvent(game.EventSudokuMove, raw(move(1, 1, 2)), "a")
	table.reset()

	g.HandleEvent(game.EventSudokuMove, raw(move(1, 1, 2)), "b")

	assert.Empty(t, table.broadcasts)
	assert.Empty(t, table.direct)
	assert.Zero(t, table.Player("b").Score)
}

func TestSudoku_RushOutOfRangeValueRejected(t *testing.T) {
	table, g := newRush(t, 4)

	for _, v := range []int{0, 5, -1} {
		g.HandleEvent(game.EventSudokuMove, raw(move(2, 3, v)), "a")
	}

	assert.Empty(t, table.broadcasts)
	require.Len(t, table.direct, 3)
	for _, d := range table.direct {
		assert.Equal(t, "a", d.To)
		assert.Equal(t, game.EventSudokuError, d.Event)
		assert.Equal(t, game.MoveRejected{X: 2, Y: 3}, d.Payload)
	}

	remaining, total := g.Remaining()
	assert.Equal(t, total, remaining)
}

func TestSudoku_RushOutOfBoundsCellRejected(t *testing.T) {
	table, g := newRush(t, 4)

	g.HandleEvent(game.EventSudokuMove, raw(move(4, 0, 1)), "a")

	require.Len(t, table.direct, 1)
	assert.Equal(t, game.EventSudokuError, table.direct[0].Event)
}

func TestSudoku_RushBoardFullEndsRound(t *testing.T) {
	table, g := newRush(t, 4)
	_, total := g.Remaining()

	expected := 0
	n := 0
	for y := 0; y < 4 && n < total; y++ {
		for x := 0; x < 4 && n < total; x++ {
			remaining, _ := g.Remaining()
			expected += game.MovePoints(remaining, total)
			g.HandleEvent(game.EventSudokuMove, raw(move(x, y, 1)), "a")
			n++
		}
	}

	require.Len(t, table.ended, 1)
	over := table.ended[0]
	assert.Equal(t, game.ReasonBoardFull, over.Reason)
	assert.Equal(t, "a", over.WinnerID)
	assert.Equal(t, expected, over.Score)
	assert.Len(t, over.Standings, 2)

	// the round is over; further moves change nothing
	table.reset()
	g.HandleEvent(game.EventSudokuMove, raw(move(3, 3, 1)), "b")
	assert.Empty(t, table.broadcasts)
	assert.Empty(t, table.ended)
}

func TestSudoku_RushStrictChecksSolution(t *testing.T) {
	table, g := newRush(t, 4, game.WithStrictMoves(true))
	p := g.Puzzle()
	require.NotNil(t, p)

	var bx, by, fx, fy = -1, -1, -1, -1
	for y := range p.Size {
		for x := range p.Size {
			if p.Cells[y][x].Fixed {
				fx, fy = x, y
			} else if bx < 0 {
				bx, by = x, y
			}
		}
	}
	require.GreaterOrEqual(t, bx, 0)
	require.GreaterOrEqual(t, fx, 0)

	wrong := p.Solution[by][bx]%4 + 1
	g.HandleEvent(game.EventSudokuMove, raw(move(bx, by, wrong)), "a")
	g.HandleEvent(game.EventSudokuMove, raw(move(fx, fy, p.Solution[fy][fx])), "a")
	require.Len(t, table.direct, 2)
	assert.Empty(t, table.broadcasts)

	g.HandleEvent(game.EventSudokuMove, raw(move(bx, by, p.Solution[by][bx])), "a")
	assert.Equal(t, 100, table.Player("a").Score)
}

func TestSudoku_StrictMovesRoomOptionOverridesDefault(t *testing.T) {
	table := newTable(game.ModeRush, "a")
	table.opts = game.Options{"size": "4", "strictMoves": true}

	g := game.New(game.IDSudoku, table, game.WithStrictMoves(false)).(*game.Sudoku)
	require.NoError(t, game.Start(g, table, 5))

	p := g.Puzzle()
	require.Equal(t, 4, p.Size)
	for y := range p.Size {
		for x := range p.Size {
			if p.Cells[y][x].Fixed {
				g.HandleEvent(game.EventSudokuMove, raw(move(x, y, p.Solution[y][x])), "a")
				assert.Len(t, table.direct, 1, "fixed cells are not claimable in strict mode")
				return
			}
		}
	}
}

func TestSudoku_UnsupportedSizeFallsBackToNine(t *testing.T) {
	assert.Equal(t, 9, game.GridSize(game.Options{"size": float64(5)}))
	assert.Equal(t, 9, game.GridSize(game.Options{}))
	assert.Equal(t, 6, game.GridSize(game.Options{"size": "6"}))
	assert.Equal(t, 16, game.GridSize(game.Options{"size": float64(16)}))
}

func TestSudoku_ClassicScoreMirroredAndRushIgnored(t *testing.T) {
	table := newTable(game.ModeClassic, "a")
	g := game.New(game.IDSudoku, table)
	require.NoError(t, game.Start(g, table, 1))

	g.HandleEvent(game.EventUpdateScore, raw(map[string]any{"score": 57}), "a")
	assert.Equal(t, 57, table.Player("a").Score)

	rushTable, rush := newRush(t, 4)
	rush.HandleEvent(game.EventUpdateScore, raw(map[string]any{"score": 57}), "a")
	assert.Zero(t, rushTable.Player("a").Score)
}

func TestSudoku_ClassicMovesIgnored(t *testing.T) {
	table := newTable(game.ModeClassic, "a")
	g := game.New(game.IDSudoku, table)
	require.NoError(t, game.Start(g, table, 1))

	g.HandleEvent(game.EventSudokuMove, raw(move(0, 0, 1)), "a")
	assert.Empty(t, table.broadcasts)
	assert.Empty(t, table.direct)
}

func TestSudoku_ClassicFinishForcesFullScore(t *testing.T) {
	table := newTable(game.ModeClassic, "a", "b")
	g := game.New(game.IDSudoku, table)
	require.NoError(t, game.Start(g, table, 1))

	table.Player("a").Score = 80
	table.Player("b").Score = 95

	g.HandleEvent(game.EventGameFinished, raw(map[string]any{"roomId": "ROOM01"}), "a")

	require.Len(t, table.ended, 1)
	assert.Equal(t, game.ReasonRaceFinished, table.ended[0].Reason)
	assert.Equal(t, "a", table.ended[0].WinnerID)
	assert.Equal(t, 100, table.ended[0].Score)

	// a second finisher does not end the round again
	g.HandleEvent(game.EventGameFinished, raw(map[string]any{"roomId": "ROOM01"}), "b")
	assert.Len(t, table.ended, 1)
	assert.Equal(t, 95, table.Player("b").Score)
}

func TestSudoku_RushFinishReportsBoardFull(t *testing.T) {
	table, g := newRush(t, 4)

	g.HandleEvent(game.EventGameFinished, raw(map[string]any{}), "b")

	require.Len(t, table.ended, 1)
	assert.Equal(t, game.ReasonBoardFull, table.ended[0].Reason)
}

func TestSudoku_LastPlayerStanding(t *testing.T) {
	table := newTable(game.ModeClassic, "a", "b", "c")
	g := game.New(game.IDSudoku, table)
	require.NoError(t, game.Start(g, table, 1))
	table.Player("a").Score = 90
	table.Player("c").Score = 10

	g.HandleEvent(game.EventPlayerEliminated, raw(map[string]any{}), "a")
	assert.True(t, table.Player("a").IsEliminated)
	assert.Empty(t, table.ended)

	g.HandleEvent(game.EventPlayerEliminated, raw(map[string]any{}), "b")
	require.Len(t, table.ended, 1)

	over := table.ended[0]
	assert.Equal(t, game.ReasonElimination, over.Reason)
	assert.Equal(t, "c", over.WinnerID, "the only active player wins over higher eliminated scores")
	assert.Equal(t, 10, over.Score)
}

func TestSudoku_SoloEliminationEndsRound(t *testing.T) {
	table := newTable(game.ModeClassic, "solo")
	g := game.New(game.IDSudoku, table)
	require.NoError(t, game.Start(g, table, 1))

	g.HandleEvent(game.EventPlayerEliminated, raw(map[string]any{}), "solo")

	require.Len(t, table.ended, 1)
	assert.Equal(t, game.ReasonElimination, table.ended[0].Reason)
	assert.Equal(t, "solo", table.ended[0].WinnerID)
}

func TestSudoku_OnStartResetsRound(t *testing.T) {
	table, g := newRush(t, 4)
	g.HandleEvent(game.EventGameFinished, raw(map[string]any{}), "a")
	require.Len(t, table.ended, 1)

	require.NoError(t, game.Start(g, table, 42))
	table.reset()

	g.HandleEvent(game.EventSudokuMove, raw(move(0, 0, 1)), "a")
	assert.Equal(t, []string{game.EventSudokuBoardUpdate, game.EventUpdatePlayers}, table.events())
}

func TestSudoku_GeneratorExhaustionFailsStart(t *testing.T) {
	table := newTable(game.ModeRush, "a")
	table.opts = game.Options{"size": float64(9)}

	g := game.New(game.IDSudoku, table, game.WithGeneratorStepLimit(5)).(*game.Sudoku)
	err := game.Start(g, table, 1)

	require.Error(t, err)
	assert.ErrorIs(t, err, sudoku.ErrExhausted)
	assert.Nil(t, g.Puzzle())
}

func TestSudoku_RushFractionalCoordinatesEchoed(t *testing.T) {
	table, g := newRush(t, 4)

	g.HandleEvent(game.EventSudokuMove, raw(map[string]any{"x": 1.5, "y": 2, "value": 1}), "a")
	g.HandleEvent(game.EventSudokuMove, raw(map[string]any{"x": 7, "y": "-0.25", "value": 1}), "a")

	require.Len(t, table.direct, 2)
	assert.Equal(t, game.MoveRejected{X: 1.5, Y: 2}, table.direct[0].Payload)
	assert.Equal(t, game.MoveRejected{X: 7, Y: -0.25}, table.direct[1].Payload)

	data, err := json.Marshal(table.direct[0].Payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1.5,"y":2}`, string(data))
}

func TestSudoku_PrepareLeavesRoundUntouchedUntilStart(t *testing.T) {
	table, g := newRush(t, 4)
	before := g.Puzzle()

	round, err := g.Prepare(99, game.ModeRush, game.Options{"size": float64(6)})
	require.NoError(t, err)
	require.NotNil(t, round.Puzzle)
	assert.Equal(t, 6, round.Puzzle.Size)
	assert.Same(t, before, g.Puzzle(), "preparing must not replace the running round")
	assert.Empty(t, table.broadcasts)

	g.OnStart(round)
	assert.Same(t, round.Puzzle, g.Puzzle())
	remaining, total := g.Remaining()
	assert.Equal(t, round.Puzzle.Removed, total)
	assert.Equal(t, total, remaining)
}

func TestSudoku_PrepareUsesPuzzleFunc(t *testing.T) {
	table := newTable(game.ModeRush, "a")
	table.opts = game.Options{"size": float64(16), "difficulty": "hard"}

	var gotSize int
	var gotSeed int64
	var gotDifficulty sudoku.Difficulty
	fn := func(size int, seed int64, d sudoku.Difficulty, opts ...sudoku.Option) (*sudoku.Puzzle, error) {
		gotSize, gotSeed, gotDifficulty = size, seed, d
		return sudoku.Generate(4, seed, sudoku.Easy)
	}

	g := game.New(game.IDSudoku, table, game.WithPuzzleFunc(fn)).(*game.Sudoku)
	require.NoError(t, game.Start(g, table, 77))

	assert.Equal(t, 16, gotSize)
	assert.Equal(t, int64(77), gotSeed)
	assert.Equal(t, sudoku.Hard, gotDifficulty)
	require.NotNil(t, g.Puzzle())
}

func TestSudoku_ClassicPrepareSkipsGeneration(t *testing.T) {
	table := newTable(game.ModeClassic, "a")
	called := false
	fn := func(int, int64, sudoku.Difficulty, ...sudoku.Option) (*sudoku.Puzzle, error) {
		called = true
		return nil, sudoku.ErrExhausted
	}

	g := game.New(game.IDSudoku, table, game.WithPuzzleFunc(fn))
	require.NoError(t, game.Start(g, table, 1))
	assert.False(t, called)
}
