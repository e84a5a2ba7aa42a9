package server

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"math-io-server/internal/game"
	"math-io-server/internal/room"
)

type RouterConfig struct {
	CountdownDelay     time.Duration
	DefaultMaxPlayers  int
	DefaultDuration    int
	StrictMoves        bool
	GeneratorStepLimit int
}

// Router applies inbound client messages to the room registry.
type Router struct {
	rooms   *Registry
	conns   *ConnectionManager
	archive ResultArchive
	cfg     RouterConfig
	log     zerolog.Logger

	// after schedules the deferred round start.
	after func(d time.Duration, fn func())
}

func NewRouter(rooms *Registry, conns *ConnectionManager, archive ResultArchive, cfg RouterConfig, log zerolog.Logger) *Router {
	if archive == nil {
		archive = disabledArchive{}
	}
	return &Router{
		rooms:   rooms,
		conns:   conns,
		archive: archive,
		cfg:     cfg,
		log:     log.With().Str("component", "router").Logger(),
		after: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
}

// Dispatch handles one message from connID. Rejected actions are answered
// with a targeted error; references to rooms or players that no longer exist
// are dropped.
func (rt *Router) Dispatch(connID string, msg ClientMessage) {
	var err error

	switch msg.Type {
	case MsgPing:
		rt.conns.ToConn(connID, MsgPong, struct{}{})
	case MsgGetRooms:
		rt.conns.ToConn(connID, MsgRoomList, rt.rooms.PublicRooms(true))
	case MsgCreateRoom:
		err = rt.createRoom(connID, msg.Payload)
	case MsgJoinRoom:
		err = rt.joinRoom(connID, msg.Payload)
	case MsgLeaveRoom:
		err = rt.leaveRoom(connID, msg.Payload)
	case MsgToggleReady:
		err = rt.withRoom(connID, msg.Payload, func(r *room.Room) error {
			return r.ToggleReady(connID)
		})
	case MsgStartCountdown:
		err = rt.withRoom(connID, msg.Payload, func(r *room.Room) error {
			return rt.startCountdown(connID, r)
		})
	case MsgResetRoom:
		err = rt.withRoom(connID, msg.Payload, func(r *room.Room) error {
			if err := r.Reset(connID); err != nil {
				return err
			}
			rt.broadcastRoomList()
			return nil
		})
	case MsgUpdateMode:
		err = rt.updateMode(connID, msg.Payload)
	case MsgUpdateDuration:
		err = rt.updateDuration(connID, msg.Payload)
	case MsgUpdateOptions:
		err = rt.updateOptions(connID, msg.Payload)
	case MsgTransferHost:
		err = rt.transferHost(connID, msg.Payload)
	default:
		if game.IsEvent(msg.Type) {
			rt.gameEvent(connID, msg.Type, msg.Payload)
			return
		}
		err = ValidateMessageType(msg.Type)
	}

	if err == nil {
		return
	}
	if msg.Type != MsgJoinRoom && isStale(err) {
		rt.log.Debug().Err(err).Str("conn_id", connID).Str("type", msg.Type).Msg("dropping message for stale reference")
		return
	}
	rt.log.Warn().Err(err).Str("conn_id", connID).Str("type", msg.Type).Msg("action rejected")
	rt.conns.ToConn(connID, MsgError, errorMessage(err))
}

// Disconnect removes connID from its room, destroying the room if it empties.
func (rt *Router) Disconnect(connID string) {
	if roomID := rt.conns.RemoveConnection(connID); roomID != "" {
		rt.leave(connID, roomID)
	}
}

// ReapIdle removes rooms that stayed empty for ttl.
func (rt *Router) ReapIdle(ttl time.Duration) []string {
	reaped := rt.rooms.ReapIdle(ttl, time.Now())
	if len(reaped) > 0 {
		rt.log.Info().Strs("rooms", reaped).Msg("reaped idle rooms")
		rt.broadcastRoomList()
	}
	return reaped
}

func (rt *Router) createRoom(connID string, payload json.RawMessage) error {
	var req CreateRoomRequest
	if err := decode(payload, &req); err != nil {
		return err
	}

	maxPlayers := req.MaxPlayers
	if maxPlayers < 1 {
		maxPlayers = rt.cfg.DefaultMaxPlayers
	}

	r := rt.rooms.Create(func(id string) *room.Room {
		return room.New(id, room.Settings{
			Name:       strings.TrimSpace(req.Name),
			IsPrivate:  req.IsPrivate,
			MaxPlayers: maxPlayers,
			GameID:     req.GameID,
			Mode:       req.Mode,
			Duration:   rt.cfg.DefaultDuration,
		}, rt.conns, rt.roomOptions()...)
	})

	rt.log.Info().Str("room_id", r.ID()).Str("conn_id", connID).Str("game", game.Resolve(req.GameID)).Msg("room created")

	rt.conns.ToConn(connID, MsgRoomCreated, r.ID())
	rt.broadcastRoomList()
	return nil
}

func (rt *Router) roomOptions() []room.Option {
	return []room.Option{
		room.WithLogger(rt.log.With().Str("component", "room").Logger()),
		room.WithRoundEndHook(rt.roundEnded),
		room.WithGameOptions(
			game.WithStrictMoves(rt.cfg.StrictMoves),
			game.WithGeneratorStepLimit(rt.cfg.GeneratorStepLimit),
		),
	}
}

func (rt *Router) roundEnded(res room.RoundResult) {
	rt.log.Info().
		Str("room_id", res.RoomID).
		Str("reason", string(res.Over.Reason)).
		Str("winner", res.Over.WinnerID).
		Int("score", res.Over.Score).
		Msg("round ended")
	rt.archive.RecordRound(res)
}

func (rt *Router) joinRoom(connID string, payload json.RawMessage) error {
	var req JoinRoomRequest
	if err := decode(payload, &req); err != nil {
		return err
	}
	if req.RoomID == "" {
		return errMissingRoomID
	}
	name := strings.TrimSpace(req.Name)
	if err := ValidatePlayerName(name); err != nil {
		return err
	}

	r, err := rt.rooms.Get(req.RoomID)
	if err != nil {
		return err
	}

	if prev := rt.conns.RoomOf(connID); prev != "" && prev != r.ID() {
		rt.leave(connID, prev)
	}

	if err := r.Join(connID, name); err != nil {
		return err
	}
	rt.broadcastRoomList()
	return nil
}

func (rt *Router) leaveRoom(connID string, payload json.RawMessage) error {
	var ref RoomRef
	if err := decode(payload, &ref); err != nil {
		return err
	}
	roomID := NormalizeRoomCode(ref.RoomID)
	if roomID == "" {
		roomID = rt.conns.RoomOf(connID)
	}
	if roomID == "" {
		return nil
	}
	rt.leave(connID, roomID)
	return nil
}

func (rt *Router) leave(connID, roomID string) {
	r, err := rt.rooms.Get(roomID)
	if err != nil {
		rt.conns.Detach(connID, roomID)
		return
	}

	removed, empty := r.Leave(connID)
	if empty && rt.rooms.RemoveIfEmpty(r.ID()) {
		rt.log.Info().Str("room_id", r.ID()).Msg("room destroyed")
	}
	if removed {
		rt.broadcastRoomList()
	}
}

func (rt *Router) startCountdown(connID string, r *room.Room) error {
	if err := r.StartCountdown(connID); err != nil {
		return err
	}
	rt.broadcastRoomList()

	rt.after(rt.cfg.CountdownDelay, func() { rt.beginRound(r) })
	return nil
}

// beginRound runs after the countdown delay. A room that was destroyed in the
// meantime is left alone.
func (rt *Router) beginRound(r *room.Room) {
	if !rt.rooms.Is(r.ID(), r) {
		rt.log.Debug().Str("room_id", r.ID()).Msg("room gone before round start")
		return
	}

	started, err := r.BeginRound()
	if err != nil {
		rt.log.Error().Err(err).Str("room_id", r.ID()).Msg("round start failed")
		rt.conns.ToRoom(r.ID(), MsgError, errorMessage(err))
	}
	if started || err != nil {
		rt.broadcastRoomList()
	}
}

func (rt *Router) updateMode(connID string, payload json.RawMessage) error {
	var req UpdateModeRequest
	if err := decode(payload, &req); err != nil {
		return err
	}
	if req.Mode == "" {
		return errors.New("INVALID_PAYLOAD: mode is required")
	}
	r, err := rt.lookup(connID, req.RoomID)
	if err != nil {
		return err
	}
	if err := r.UpdateMode(connID, req.Mode); err != nil {
		return err
	}
	rt.broadcastRoomList()
	return nil
}

func (rt *Router) updateDuration(connID string, payload json.RawMessage) error {
	var req UpdateDurationRequest
	if err := decode(payload, &req); err != nil {
		return err
	}
	duration := int(math.Round(req.Duration))
	if duration <= 0 {
		return errors.New("INVALID_PAYLOAD: duration must be positive")
	}
	r, err := rt.lookup(connID, req.RoomID)
	if err != nil {
		return err
	}
	return r.UpdateDuration(connID, duration)
}

func (rt *Router) updateOptions(connID string, payload json.RawMessage) error {
	var req UpdateOptionsRequest
	if err := decode(payload, &req); err != nil {
		return err
	}
	r, err := rt.lookup(connID, req.RoomID)
	if err != nil {
		return err
	}
	return r.UpdateOptions(connID, req.Options)
}

func (rt *Router) transferHost(connID string, payload json.RawMessage) error {
	var req TransferHostRequest
	if err := decode(payload, &req); err != nil {
		return err
	}
	if req.NewHostID == "" {
		return errors.New("INVALID_PAYLOAD: newHostId is required")
	}
	r, err := rt.lookup(connID, req.RoomID)
	if err != nil {
		return err
	}
	return r.TransferHost(connID, req.NewHostID)
}

// gameEvent forwards a game event to the room named in its payload, falling
// back to the sender's current room.
func (rt *Router) gameEvent(connID, event string, payload json.RawMessage) {
	var ref RoomRef
	if len(payload) > 0 {
		_ = json.Unmarshal(payload, &ref)
	}
	roomID := ref.RoomID
	if roomID == "" {
		roomID = rt.conns.RoomOf(connID)
	}

	r, err := rt.rooms.Get(roomID)
	if err != nil {
		rt.log.Debug().Str("conn_id", connID).Str("event", event).Str("room_id", roomID).Msg("game event for unknown room")
		return
	}
	if err := r.HandleGameEvent(connID, event, payload); err != nil {
		rt.log.Debug().Err(err).Str("conn_id", connID).Str("event", event).Str("room_id", r.ID()).Msg("game event from non-member")
	}
}

func (rt *Router) withRoom(connID string, payload json.RawMessage, fn func(r *room.Room) error) error {
	var ref RoomRef
	if err := decode(payload, &ref); err != nil {
		return err
	}
	r, err := rt.lookup(connID, ref.RoomID)
	if err != nil {
		return err
	}
	return fn(r)
}

// lookup resolves roomID, or the sender's current room when roomID is empty.
func (rt *Router) lookup(connID, roomID string) (*room.Room, error) {
	if roomID == "" {
		roomID = rt.conns.RoomOf(connID)
	}
	if roomID == "" {
		return nil, errMissingRoomID
	}
	return rt.rooms.Get(roomID)
}

func (rt *Router) broadcastRoomList() {
	rt.conns.ToAll(MsgRoomList, rt.rooms.PublicRooms(false))
}

// decode unmarshals payload into v. A missing payload leaves v untouched.
func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return errInvalidPayload
	}
	return nil
}

func isStale(err error) bool {
	return errors.Is(err, ErrRoomNotFound) ||
		errors.Is(err, room.ErrRoomClosed) ||
		errors.Is(err, room.ErrPlayerNotFound)
}
