package game

import (
	"encoding/json"
	"math"
	"slices"

	"github.com/rs/zerolog"

	"math-io-server/internal/sudoku"
)

const defaultGridSize = 9

type cell struct{ x, y int }

// Sudoku is the grid-filling game. Classic rounds trust the client-reported
// completion percentage. Rush rounds are server-authoritative: the server
// regenerates the puzzle from the round seed and arbitrates cell claims.
type Sudoku struct {
	table         Table
	log           zerolog.Logger
	strictDefault bool
	stepLimit     int
	generate      PuzzleFunc

	puzzle    *sudoku.Puzzle
	size      int
	strict    bool
	claims    map[cell]string // claimed cell -> player id
	total     int
	remaining int
	ended     bool
}

func newSudoku(t Table, log zerolog.Logger, s settings) *Sudoku {
	return &Sudoku{
		table:         t,
		log:           log,
		strictDefault: s.strictMoves,
		stepLimit:     s.stepLimit,
		generate:      s.generate,
		claims:        make(map[cell]string),
	}
}

func (s *Sudoku) OnPlayerJoin(p *Player)  {}
func (s *Sudoku) OnPlayerLeave(p *Player) {}

// Prepare generates the rush puzzle for seed. Other modes need no server-side
// board. Generation failure is returned as-is and no puzzle is kept.
func (s *Sudoku) Prepare(seed int64, mode string, opts Options) (Round, error) {
	round := Round{Seed: seed, Mode: mode, Options: opts}
	if mode != ModeRush {
		return round, nil
	}

	size := GridSize(opts)
	difficulty := sudoku.Difficulty(opts.String("difficulty", string(sudoku.Easy)))

	puzzle, err := s.generate(size, seed, difficulty, sudoku.WithStepLimit(s.stepLimit))
	if err != nil {
		s.log.Error().Err(err).Int64("seed", seed).Int("size", size).Msg("puzzle generation failed")
		return round, err
	}
	round.Puzzle = puzzle
	return round, nil
}

// OnStart resets the round and, in rush mode, installs the prepared puzzle.
func (s *Sudoku) OnStart(round Round) {
	s.ended = false
	s.puzzle = nil
	s.claims = make(map[cell]string)
	s.total, s.remaining = 0, 0

	if round.Mode != ModeRush || round.Puzzle == nil {
		return
	}

	s.puzzle = round.Puzzle
	s.size = round.Puzzle.Size
	s.strict = round.Options.Bool("strictMoves", s.strictDefault)
	s.total = round.Puzzle.Removed
	s.remaining = s.total

	s.log.Info().
		Int64("seed", round.Seed).
		Int("size", s.size).
		Str("difficulty", string(round.Puzzle.Difficulty)).
		Int("empty", s.total).
		Bool("strict", s.strict).
		Msg("rush round prepared")
}

// GridSize reads the size option. Sizes without a box geometry fall back to 9.
func GridSize(opts Options) int {
	size := opts.Int("size", defaultGridSize)
	if !slices.Contains(sudoku.SupportedSizes, size) {
		return defaultGridSize
	}
	return size
}

func (s *Sudoku) HandleEvent(event string, payload json.RawMessage, originID string) {
	switch event {
	case EventSudokuMove:
		s.handleMove(payload, originID)
	case EventUpdateScore:
		s.handleUpdateScore(payload, originID)
	case EventGameFinished:
		s.handleGameFinished(originID)
	case EventPlayerEliminated:
		s.handlePlayerEliminated(originID)
	default:
		s.log.Debug().Str("event", event).Msg("event not handled by sudoku")
	}
}

// Remaining reports the unclaimed and total removable cell counts of a rush
// round.
func (s *Sudoku) Remaining() (remaining, total int) {
	return s.remaining, s.total
}

func (s *Sudoku) Puzzle() *sudoku.Puzzle { return s.puzzle }

// MovePoints is the award for a claim made while remaining of total cells
// are still open.
func MovePoints(remaining, total int) int {
	progress := 0.0
	if remaining > 0 && total > 0 {
		progress = float64(remaining) / float64(total)
	}
	return 10 + int(math.Floor(90*progress))
}

type BoardScoreUpdate struct {
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Value      int    `json:"value"`
	PlayerID   string `json:"playerId"`
	ScoreDelta int    `json:"scoreDelta"`
}

// MoveRejected echoes the coordinates exactly as the client sent them.
type MoveRejected struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (s *Sudoku) handleMove(payload json.RawMessage, originID string) {
	if s.table.Mode() != ModeRush || s.ended {
		return
	}
	if s.puzzle == nil {
		s.log.Error().Str("conn_id", originID).Msg("rush move without a puzzle")
		return
	}

	var req struct {
		X     number `json:"x"`
		Y     number `json:"y"`
		Value number `json:"value"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		s.log.Debug().Err(err).Str("conn_id", originID).Msg("malformed sudoku-move")
		return
	}

	x, okX := wholeNumber(float64(req.X))
	y, okY := wholeNumber(float64(req.Y))
	rejected := MoveRejected{X: float64(req.X), Y: float64(req.Y)}
	if !okX || !okY || !s.puzzle.InBounds(x, y) {
		s.table.EmitTo(originID, EventSudokuError, rejected)
		return
	}

	at := cell{x, y}
	if _, taken := s.claims[at]; taken {
		return
	}

	value, okV := wholeNumber(float64(req.Value))
	valid := okV && value >= 1 && value <= s.size
	if valid && s.strict {
		valid = s.puzzle.Accepts(x, y, value)
	}
	if !valid {
		s.log.Debug().Str("conn_id", originID).Int("x", x).Int("y", y).Msg("sudoku move rejected")
		s.table.EmitTo(originID, EventSudokuError, rejected)
		return
	}

	points := MovePoints(s.remaining, s.total)
	s.claims[at] = originID
	s.remaining--

	if p := s.table.Player(originID); p != nil {
		p.Score += points
	}

	s.table.Broadcast(EventSudokuBoardUpdate, BoardScoreUpdate{
		X:          x,
		Y:          y,
		Value:      value,
		PlayerID:   originID,
		ScoreDelta: points,
	})
	s.table.BroadcastPlayers()

	if s.remaining <= 0 {
		s.endRound(ReasonBoardFull)
	}
}

func (s *Sudoku) handleUpdateScore(payload json.RawMessage, originID string) {
	// rush scores are awarded by the server
	if s.table.Mode() == ModeRush {
		return
	}

	var req struct {
		Score number `json:"score"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		s.log.Debug().Err(err).Str("conn_id", originID).Msg("malformed update-score")
		return
	}

	p := s.table.Player(originID)
	if p == nil {
		return
	}
	p.Score = int(math.Round(float64(req.Score)))
	s.table.BroadcastPlayers()
}

func (s *Sudoku) handleGameFinished(originID string) {
	if s.ended {
		return
	}

	switch s.table.Mode() {
	case ModeRush:
		s.endRound(ReasonBoardFull)
	default:
		if p := s.table.Player(originID); p != nil {
			p.Score = 100
		}
		s.endRound(ReasonRaceFinished)
	}
}

func (s *Sudoku) handlePlayerEliminated(originID string) {
	if s.ended {
		return
	}

	p := s.table.Player(originID)
	if p == nil {
		return
	}
	p.IsEliminated = true
	s.table.BroadcastPlayers()

	s.checkElimination()
}

// checkElimination ends the round when nobody is left standing, or when a
// multiplayer room is down to its last active player.
func (s *Sudoku) checkElimination() {
	players := s.table.Players()
	active := 0
	for _, p := range players {
		if !p.IsEliminated {
			active++
		}
	}

	if active == 0 || (len(players) > 1 && active == 1) {
		s.endRound(ReasonElimination)
	}
}

func (s *Sudoku) endRound(reason Reason) {
	s.ended = true
	over := NewGameOver(reason, s.table.Players())
	s.log.Info().Str("reason", string(reason)).Str("winner", over.WinnerID).Int("score", over.Score).Msg("round over")
	s.table.EndRound(over)
}
