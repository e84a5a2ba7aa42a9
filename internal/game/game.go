// Package game holds the per-room game-mode authorities. A Room owns exactly one
// Game, created with the room and rebuilt in place on every round start.
package game

import (
	"encoding/json"
	"slices"

	"github.com/rs/zerolog"

	"math-io-server/internal/sudoku"
)

const (
	IDFruitBox = "fruitbox"
	IDSudoku   = "sudoku"
)

// Modes understood by the built-in games. Unknown modes behave like classic.
const (
	ModeClassic   = "classic"
	ModeAttack    = "attack"
	ModeTerritory = "territory"
	ModeOccupy    = "occupy"
	ModeRush      = "rush"
)

// Outbound events emitted by game modes.
const (
	EventUpdatePlayers     = "update-players"
	EventAttackReceived    = "game-attack-received"
	EventBoardUpdate       = "game-board-update"
	EventOccupyUpdate      = "game-occupy-update"
	EventSudokuBoardUpdate = "sudoku-board-update"
	EventSudokuError       = "sudoku-error"
	EventGameOver          = "game-over"
)

// Inbound events forwarded by the router to the active game.
const (
	EventUpdateScore      = "update-score"
	EventAttack           = "game-attack"
	EventBoardSync        = "game-board-sync"
	EventOccupy           = "game-occupy"
	EventSudokuMove       = "sudoku-move"
	EventGameFinished     = "game-finished"
	EventPlayerEliminated = "player-eliminated"
)

// Events is the fixed set of inbound events routed to a game.
var Events = []string{
	EventUpdateScore,
	EventAttack,
	EventBoardSync,
	EventOccupy,
	EventSudokuMove,
	EventGameFinished,
	EventPlayerEliminated,
}

func IsEvent(name string) bool {
	return slices.Contains(Events, name)
}

// Table is the room as seen from a game. Implementations are called while the
// room is already held exclusively, so they must not re-enter the room.
type Table interface {
	ID() string
	Mode() string
	Options() Options

	// Players returns the live player list in join order.
	Players() []*Player
	Player(id string) *Player

	Broadcast(event string, payload any)
	BroadcastExcept(exceptID, event string, payload any)
	EmitTo(connID, event string, payload any)
	BroadcastPlayers()

	// EndRound publishes the result of a round.
	EndRound(over GameOver)
}

type Game interface {
	OnPlayerJoin(p *Player)
	OnPlayerLeave(p *Player)
	// Prepare builds the content of a round. It runs without the room lock
	// and reads nothing but its arguments and the game's fixed settings. An
	// error means the round cannot be played.
	Prepare(seed int64, mode string, opts Options) (Round, error)
	// OnStart discards previous round state and installs round.
	OnStart(round Round)
	HandleEvent(event string, payload json.RawMessage, originID string)
}

// Round is the prepared content of one round.
type Round struct {
	Seed    int64
	Mode    string
	Options Options
	Puzzle  *sudoku.Puzzle // rush sudoku only
}

// Start prepares and installs a round for the table's current settings.
func Start(g Game, t Table, seed int64) error {
	round, err := g.Prepare(seed, t.Mode(), t.Options().Clone())
	if err != nil {
		return err
	}
	g.OnStart(round)
	return nil
}

type settings struct {
	strictMoves bool
	stepLimit   int
	generate    PuzzleFunc
	log         zerolog.Logger
}

// PuzzleFunc builds a rush puzzle. sudoku.Generate is the default.
type PuzzleFunc func(size int, seed int64, d sudoku.Difficulty, opts ...sudoku.Option) (*sudoku.Puzzle, error)

type Option func(*settings)

// WithStrictMoves sets the default for the strictMoves room option.
func WithStrictMoves(strict bool) Option {
	return func(s *settings) { s.strictMoves = strict }
}

func WithGeneratorStepLimit(limit int) Option {
	return func(s *settings) { s.stepLimit = limit }
}

// WithPuzzleFunc replaces the rush puzzle generator.
func WithPuzzleFunc(fn PuzzleFunc) Option {
	return func(s *settings) { s.generate = fn }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.log = l }
}

// Resolve maps a requested game id to a built-in one. Unknown ids fall back
// to fruitbox.
func Resolve(gameID string) string {
	switch gameID {
	case IDSudoku:
		return IDSudoku
	default:
		return IDFruitBox
	}
}

// New builds the game for gameID bound to t.
func New(gameID string, t Table, opts ...Option) Game {
	s := settings{log: zerolog.Nop(), generate: sudoku.Generate}
	for _, opt := range opts {
		opt(&s)
	}

	logger := s.log.With().Str("room_id", t.ID()).Str("game", Resolve(gameID)).Logger()

	switch Resolve(gameID) {
	case IDSudoku:
		return newSudoku(t, logger, s)
	default:
		return newFruitBox(t, logger)
	}
}
