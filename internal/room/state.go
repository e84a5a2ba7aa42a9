package room

import "math-io-server/internal/game"

// State is the room-state snapshot sent on join and reset.
type State struct {
	Mode      string       `json:"mode"`
	HostID    *string      `json:"hostId"`
	Status    Status       `json:"status"`
	Duration  int          `json:"duration"`
	Options   game.Options `json:"options"`
	StartTime *int64       `json:"startTime"`
	Seed      *int64       `json:"seed"`
}

type GameStarted struct {
	Seed      int64        `json:"seed"`
	StartTime int64        `json:"startTime"`
	Duration  int          `json:"duration"`
	Mode      string       `json:"mode"`
	Options   game.Options `json:"options"`
}

// Summary is a room-list entry.
type Summary struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Players    []game.Player `json:"players"`
	MaxPlayers int           `json:"maxPlayers"`
	GameID     string        `json:"gameId"`
	Mode       string        `json:"mode"`
	Status     Status        `json:"status"`
	IsPrivate  bool          `json:"-"`
}

func (s Summary) Full() bool { return len(s.Players) >= s.MaxPlayers }
