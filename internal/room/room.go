// Package room coordinates one multiplayer session: membership, the host,
// the waiting → countdown → playing lifecycle, and the game bound to it.
//
// Every exported method takes the room lock, so events for one room are
// applied one at a time while different rooms proceed independently. The
// game is called with the lock held, except for Prepare, which BeginRound runs
// unlocked so a slow puzzle never stalls readers of the room.
package room

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"math-io-server/internal/game"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusCountdown Status = "countdown"
	StatusPlaying   Status = "playing"
)

// CountdownSeconds is the value announced with countdown-start.
const CountdownSeconds = 3

const (
	DefaultMaxPlayers = 8
	DefaultDuration   = 300
)

const (
	EventRoomState       = "room-state"
	EventUpdatePlayers   = game.EventUpdatePlayers
	EventHostUpdated     = "host-updated"
	EventModeUpdated     = "mode-updated"
	EventDurationUpdated = "duration-updated"
	EventOptionsUpdated  = "options-updated"
	EventCountdownStart  = "countdown-start"
	EventGameStarted     = "game-started"
	EventGameOver        = game.EventGameOver
)

// Transport delivers room events. Attach and Detach keep the transport's view
// of room membership in step with the player list.
type Transport interface {
	Attach(connID, roomID string)
	Detach(connID, roomID string)
	ToRoom(roomID, event string, payload any)
	ToRoomExcept(roomID, exceptConnID, event string, payload any)
	ToConn(connID, event string, payload any)
}

type Settings struct {
	Name       string
	IsPrivate  bool
	MaxPlayers int
	GameID     string
	Mode       string
	Duration   int
	Options    game.Options
}

// RoundResult describes a finished round.
type RoundResult struct {
	RoomID    string
	GameID    string
	Mode      string
	Seed      int64
	StartedAt time.Time
	EndedAt   time.Time
	Over      game.GameOver
}

type Room struct {
	mu sync.Mutex

	id         string
	name       string
	isPrivate  bool
	maxPlayers int
	gameID     string
	mode       string
	status     Status
	duration   int
	options    game.Options
	hostID     string
	startTime  *int64
	seed       *int64
	players    []*game.Player
	game       game.Game

	closed     bool
	emptySince time.Time

	// countdownID identifies the current countdown; settingsRev changes with
	// mode and options. BeginRound commits a prepared round only if neither
	// moved while it was preparing.
	countdownID uint64
	settingsRev uint64

	transport  Transport
	log        zerolog.Logger
	now        func() time.Time
	seedSource func() int64
	onRoundEnd func(RoundResult)
	gameOpts   []game.Option
}

type Option func(*Room)

func WithLogger(l zerolog.Logger) Option {
	return func(r *Room) { r.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(r *Room) { r.now = now }
}

// WithSeedSource replaces the round seed source (milliseconds since epoch by
// default).
func WithSeedSource(seed func() int64) Option {
	return func(r *Room) { r.seedSource = seed }
}

// WithRoundEndHook registers fn to receive every finished round. fn runs with
// the room locked and must not block.
func WithRoundEndHook(fn func(RoundResult)) Option {
	return func(r *Room) { r.onRoundEnd = fn }
}

func WithGameOptions(opts ...game.Option) Option {
	return func(r *Room) { r.gameOpts = append(r.gameOpts, opts...) }
}

// New creates an empty room with its game instance.
func New(id string, s Settings, transport Transport, opts ...Option) *Room {
	r := &Room{
		id:         id,
		name:       s.Name,
		isPrivate:  s.IsPrivate,
		maxPlayers: s.MaxPlayers,
		gameID:     game.Resolve(s.GameID),
		mode:       s.Mode,
		status:     StatusWaiting,
		duration:   s.Duration,
		options:    s.Options.Clone(),
		transport:  transport,
		log:        zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.name == "" {
		r.name = "Room " + id
	}
	if r.maxPlayers < 1 {
		r.maxPlayers = DefaultMaxPlayers
	}
	if r.mode == "" {
		r.mode = game.ModeClassic
	}
	if r.duration <= 0 {
		r.duration = DefaultDuration
	}
	if r.seedSource == nil {
		r.seedSource = func() int64 { return r.now().UnixMilli() }
	}

	base := r.log
	r.log = base.With().Str("room_id", id).Logger()
	r.emptySince = r.now()
	r.game = game.New(r.gameID, &table{r}, append(r.gameOpts, game.WithLogger(base))...)
	return r
}

func (r *Room) ID() string { return r.id }

// Join adds connID to the room, sends it the room state, and broadcasts the
// new player list.
func (r *Room) Join(connID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}
	if r.indexOf(connID) >= 0 {
		r.transport.ToConn(connID, EventRoomState, r.state())
		r.transport.ToConn(connID, EventUpdatePlayers, game.Snapshot(r.players))
		return nil
	}
	if len(r.players) >= r.maxPlayers {
		return ErrRoomFull
	}
	if r.status != StatusWaiting {
		return ErrGameInProgress
	}

	if name == "" {
		name = DefaultName()
	}
	p := &game.Player{
		ID:    connID,
		Name:  name,
		Color: pickColor(r.players),
	}
	r.players = append(r.players, p)
	if r.hostID == "" {
		r.hostID = p.ID
	}
	r.game.OnPlayerJoin(p)
	r.transport.Attach(connID, r.id)

	r.log.Info().Str("conn_id", connID).Str("name", name).Int("players", len(r.players)).Msg("player joined")

	r.transport.ToConn(connID, EventRoomState, r.state())
	r.transport.ToRoom(r.id, EventUpdatePlayers, game.Snapshot(r.players))
	return nil
}

// Leave removes connID. The host passes to the first remaining player. It
// reports whether the player was present and whether the room is now empty.
func (r *Room) Leave(connID string) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(connID)
	if i < 0 {
		return false, len(r.players) == 0
	}

	p := r.players[i]
	r.players = append(r.players[:i], r.players[i+1:]...)
	r.transport.Detach(connID, r.id)
	r.game.OnPlayerLeave(p)

	if r.hostID == connID {
		if len(r.players) > 0 {
			r.hostID = r.players[0].ID
			r.transport.ToRoom(r.id, EventHostUpdated, r.hostID)
			r.log.Info().Str("host", r.hostID).Msg("host migrated")
		} else {
			r.hostID = ""
		}
	}

	r.log.Info().Str("conn_id", connID).Int("players", len(r.players)).Msg("player left")

	if len(r.players) == 0 {
		r.emptySince = r.now()
		return true, true
	}
	r.transport.ToRoom(r.id, EventUpdatePlayers, game.Snapshot(r.players))
	return true, false
}

// CloseIfEmpty marks an empty room closed so no later join can revive it.
func (r *Room) CloseIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) > 0 {
		return false
	}
	r.closed = true
	return true
}

// IdleFor reports how long the room has been empty, or false if it has
// players.
func (r *Room) IdleFor(now time.Time) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) > 0 {
		return 0, false
	}
	return now.Sub(r.emptySince), true
}

func (r *Room) ToggleReady(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.player(connID)
	if p == nil {
		return ErrPlayerNotFound
	}
	p.IsReady = !p.IsReady
	r.transport.ToRoom(r.id, EventUpdatePlayers, game.Snapshot(r.players))
	return nil
}

// StartCountdown moves a waiting room into countdown. The host counts as
// ready. The caller is responsible for calling BeginRound after the delay.
func (r *Room) StartCountdown(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hostID != connID {
		return ErrNotHost
	}
	if r.status != StatusWaiting {
		return ErrGameInProgress
	}
	for _, p := range r.players {
		if !p.IsReady && p.ID != r.hostID {
			return ErrNotAllReady
		}
	}

	r.status = StatusCountdown
	r.countdownID++
	r.transport.ToRoom(r.id, EventCountdownStart, CountdownSeconds)
	r.log.Info().Msg("countdown started")
	return nil
}

// BeginRound starts the round a countdown announced. It does nothing and
// returns false if the room was closed or left countdown in the meantime.
// An error means the game could not prepare the round; the room is back to
// waiting.
//
// The round is prepared without the room lock. A change of mode or options
// while preparing causes a fresh preparation.
func (r *Room) BeginRound() (bool, error) {
	for {
		r.mu.Lock()
		if r.closed || r.status != StatusCountdown {
			r.mu.Unlock()
			return false, nil
		}
		countdown, rev := r.countdownID, r.settingsRev
		mode, opts := r.mode, r.options.Clone()
		seed := r.seedSource()
		r.mu.Unlock()

		round, err := r.game.Prepare(seed, mode, opts)

		started, retry, err := r.commitRound(countdown, rev, round, err)
		if !retry {
			return started, err
		}
		r.log.Debug().Msg("settings changed during round preparation, preparing again")
	}
}

func (r *Room) commitRound(countdown, rev uint64, round game.Round, prepErr error) (started, retry bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.status != StatusCountdown || r.countdownID != countdown {
		return false, false, nil
	}
	if r.settingsRev != rev {
		return false, true, nil
	}

	if prepErr != nil {
		r.status = StatusWaiting
		r.startTime = nil
		r.seed = nil
		r.log.Error().Err(prepErr).Int64("seed", round.Seed).Msg("round start aborted")
		return false, false, prepErr
	}

	for _, p := range r.players {
		p.ResetForRound()
	}

	now := r.now().UnixMilli()
	seed := round.Seed
	r.game.OnStart(round)

	r.status = StatusPlaying
	r.startTime = &now
	r.seed = &seed

	r.transport.ToRoom(r.id, EventGameStarted, GameStarted{
		Seed:      seed,
		StartTime: now,
		Duration:  r.duration,
		Mode:      r.mode,
		Options:   r.options.Clone(),
	})
	r.transport.ToRoom(r.id, EventUpdatePlayers, game.Snapshot(r.players))

	r.log.Info().Int64("seed", seed).Str("mode", r.mode).Int("players", len(r.players)).Msg("round started")
	return true, false, nil
}

// Reset returns the room to waiting and clears ready flags.
func (r *Room) Reset(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hostID != connID {
		return ErrNotHost
	}

	r.status = StatusWaiting
	r.countdownID++
	r.startTime = nil
	r.seed = nil
	for _, p := range r.players {
		p.IsReady = false
	}

	r.transport.ToRoom(r.id, EventRoomState, r.state())
	r.transport.ToRoom(r.id, EventUpdatePlayers, game.Snapshot(r.players))
	return nil
}

func (r *Room) UpdateMode(connID, mode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hostID != connID {
		return ErrNotHost
	}
	r.mode = mode
	r.settingsRev++
	r.transport.ToRoom(r.id, EventModeUpdated, mode)
	return nil
}

func (r *Room) UpdateDuration(connID string, duration int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hostID != connID {
		return ErrNotHost
	}
	r.duration = duration
	r.transport.ToRoom(r.id, EventDurationUpdated, duration)
	return nil
}

// UpdateOptions merges opts into the room options and broadcasts the result.
func (r *Room) UpdateOptions(connID string, opts game.Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hostID != connID {
		return ErrNotHost
	}
	r.options = r.options.Merge(opts)
	r.settingsRev++
	r.transport.ToRoom(r.id, EventOptionsUpdated, r.options.Clone())
	return nil
}

func (r *Room) TransferHost(connID, newHostID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hostID != connID {
		return ErrNotHost
	}
	if r.player(newHostID) == nil {
		return ErrPlayerNotFound
	}
	r.hostID = newHostID
	r.transport.ToRoom(r.id, EventHostUpdated, newHostID)
	return nil
}

// HandleGameEvent forwards a game event from a member to the game.
func (r *Room) HandleGameEvent(connID, event string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.player(connID) == nil {
		return ErrPlayerNotFound
	}
	r.game.HandleEvent(event, payload, connID)
	return nil
}

func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state()
}

func (r *Room) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Summary{
		ID:         r.id,
		Name:       r.name,
		Players:    game.Snapshot(r.players),
		MaxPlayers: r.maxPlayers,
		GameID:     r.gameID,
		Mode:       r.mode,
		Status:     r.status,
		IsPrivate:  r.isPrivate,
	}
}

func (r *Room) Players() []game.Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return game.Snapshot(r.players)
}

func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Room) state() State {
	var host *string
	if r.hostID != "" {
		h := r.hostID
		host = &h
	}
	return State{
		Mode:      r.mode,
		HostID:    host,
		Status:    r.status,
		Duration:  r.duration,
		Options:   r.options.Clone(),
		StartTime: r.startTime,
		Seed:      r.seed,
	}
}

func (r *Room) indexOf(connID string) int {
	for i, p := range r.players {
		if p.ID == connID {
			return i
		}
	}
	return -1
}

func (r *Room) player(connID string) *game.Player {
	if i := r.indexOf(connID); i >= 0 {
		return r.players[i]
	}
	return nil
}

// table is the game's view of the room. Its methods run under the room lock
// held by the caller.
type table struct{ r *Room }

func (t *table) ID() string                    { return t.r.id }
func (t *table) Mode() string                  { return t.r.mode }
func (t *table) Options() game.Options         { return t.r.options }
func (t *table) Players() []*game.Player       { return t.r.players }
func (t *table) Player(id string) *game.Player { return t.r.player(id) }

func (t *table) Broadcast(event string, payload any) {
	t.r.transport.ToRoom(t.r.id, event, payload)
}

func (t *table) BroadcastExcept(exceptID, event string, payload any) {
	t.r.transport.ToRoomExcept(t.r.id, exceptID, event, payload)
}

func (t *table) EmitTo(connID, event string, payload any) {
	t.r.transport.ToConn(connID, event, payload)
}

func (t *table) BroadcastPlayers() {
	t.r.transport.ToRoom(t.r.id, EventUpdatePlayers, game.Snapshot(t.r.players))
}

func (t *table) EndRound(over game.GameOver) {
	r := t.r
	r.transport.ToRoom(r.id, EventGameOver, over)

	if r.onRoundEnd == nil {
		return
	}
	result := RoundResult{
		RoomID:  r.id,
		GameID:  r.gameID,
		Mode:    r.mode,
		EndedAt: r.now(),
		Over:    over,
	}
	if r.seed != nil {
		result.Seed = *r.seed
	}
	if r.startTime != nil {
		result.StartedAt = time.UnixMilli(*r.startTime)
	}
	r.onRoundEnd(result)
}
