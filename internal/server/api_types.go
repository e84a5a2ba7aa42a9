package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"math-io-server/internal/game"
)

// ============================================================================
// ERROR RESPONSES
// ============================================================================
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// errorMessage splits a "CODE: message" error into its parts. Errors without
// a code prefix are sent as plain messages.
func errorMessage(err error) ErrorMessage {
	text := err.Error()
	code, msg, ok := strings.Cut(text, ": ")
	if !ok || code == "" || strings.ToUpper(code) != code || strings.ContainsAny(code, " ") {
		return ErrorMessage{Message: text}
	}
	return ErrorMessage{Message: msg, Code: code}
}

// ============================================================================
// CREATE ROOM (create-room)
// ============================================================================
type CreateRoomRequest struct {
	Name       string `json:"name"`
	IsPrivate  bool   `json:"isPrivate"`
	MaxPlayers int    `json:"maxPlayers"`
	GameID     string `json:"gameId"`
	Mode       string `json:"mode"`
}

// ============================================================================
// JOIN ROOM (join-room)
// ============================================================================

// JoinRoomRequest accepts {roomId, name} or a bare room id string.
type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

func (j *JoinRoomRequest) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &j.RoomID)
	}

	type plain JoinRoomRequest
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*j = JoinRoomRequest(p)
	return nil
}

// ============================================================================
// ROOM-SCOPED ACTIONS (toggle-ready, start-countdown, reset-room, leave-room)
// ============================================================================

// RoomRef accepts a bare room id string or {roomId}.
type RoomRef struct {
	RoomID string `json:"roomId"`
}

func (r *RoomRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.RoomID)
	}

	var obj struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.RoomID = obj.RoomID
	return nil
}

var (
	errMissingRoomID  = errors.New("INVALID_PAYLOAD: roomId is required")
	errInvalidPayload = errors.New("INVALID_PAYLOAD: Malformed payload")
)

// ============================================================================
// HOST SETTINGS
// ============================================================================
type UpdateModeRequest struct {
	RoomID string `json:"roomId"`
	Mode   string `json:"mode"`
}

type UpdateDurationRequest struct {
	RoomID   string  `json:"roomId"`
	Duration float64 `json:"duration"`
}

type UpdateOptionsRequest struct {
	RoomID  string       `json:"roomId"`
	Options game.Options `json:"options"`
}

type TransferHostRequest struct {
	RoomID    string `json:"roomId"`
	NewHostID string `json:"newHostId"`
}

// ============================================================================
// HTTP
// ============================================================================
type HealthResponse struct {
	Status      string `json:"status"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
	Store       string `json:"store"`
	Uptime      string `json:"uptime"`
}

type RoundResultView struct {
	ID        int64         `json:"id"`
	RoomID    string        `json:"roomId"`
	GameID    string        `json:"gameId"`
	Mode      string        `json:"mode"`
	Seed      int64         `json:"seed"`
	Reason    game.Reason   `json:"reason"`
	WinnerID  string        `json:"winnerId,omitempty"`
	Score     int           `json:"score"`
	Standings []game.Player `json:"standings"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt"`
}
