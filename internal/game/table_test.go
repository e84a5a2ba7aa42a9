package game_test

import (
	"encoding/json"

	"math-io-server/internal/game"
)

type emitted struct {
	Event   string
	Except  string
	To      string
	Payload any
}

// fakeTable records everything a game asks the room to send.
type fakeTable struct {
	id      string
	mode    string
	opts    game.Options
	players []*game.Player

	broadcasts []emitted
	direct     []emitted
	ended      []game.GameOver
}

func newTable(mode string, ids ...string) *fakeTable {
	t := &fakeTable{id: "ROOM01", mode: mode, opts: game.Options{}}
	for _, id := range ids {
		t.players = append(t.players, &game.Player{ID: id, Name: "Player " + id})
	}
	return t
}

func (t *fakeTable) ID() string                  { return t.id }
func (t *fakeTable) Mode() string                { return t.mode }
func (t *fakeTable) Options() game.Options       { return t.opts }
func (t *fakeTable) Players() []*game.Player     { return t.players }
func (t *fakeTable) EndRound(over game.GameOver) { t.ended = append(t.ended, over) }

func (t *fakeTable) Player(id string) *game.Player {
	for _, p := range t.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (t *fakeTable) Broadcast(event string, payload any) {
	t.broadcasts = append(t.broadcasts, emitted{Event: event, Payload: payload})
}

func (t *fakeTable) BroadcastExcept(exceptID, event string, payload any) {
	t.broadcasts = append(t.broadcasts, emitted{Event: event, Except: exceptID, Payload: payload})
}

func (t *fakeTable) EmitTo(connID, event string, payload any) {
	t.direct = append(t.direct, emitted{Event: event, To: connID, Payload: payload})
}

func (t *fakeTable) BroadcastPlayers() {
	t.Broadcast(game.EventUpdatePlayers, game.Snapshot(t.players))
}

func (t *fakeTable) remove(id string) *game.Player {
	for i, p := range t.players {
		if p.ID == id {
			t.players = append(t.players[:i], t.players[i+1:]...)
			return p
		}
	}
	return nil
}

func (t *fakeTable) events() []string {
	out := make([]string, 0, len(t.broadcasts))
	for _, b := range t.broadcasts {
		out = append(out, b.Event)
	}
	return out
}

func (t *fakeTable) reset() {
	t.broadcasts = nil
	t.direct = nil
	t.ended = nil
}

func raw(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
