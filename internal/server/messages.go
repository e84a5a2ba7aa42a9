package server

import "encoding/json"

type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Inbound event names handled by the router itself. Game events are listed in
// the game package.
const (
	MsgPing           = "ping"
	MsgGetRooms       = "get-rooms"
	MsgCreateRoom     = "create-room"
	MsgJoinRoom       = "join-room"
	MsgLeaveRoom      = "leave-room"
	MsgToggleReady    = "toggle-ready"
	MsgStartCountdown = "start-countdown"
	MsgResetRoom      = "reset-room"
	MsgUpdateMode     = "update-mode"
	MsgUpdateDuration = "update-duration"
	MsgUpdateOptions  = "update-options"
	MsgTransferHost   = "transfer-host"
)

// Outbound event names sent by the router.
const (
	MsgPong        = "pong"
	MsgRoomCreated = "room-created"
	MsgRoomList    = "room-list"
	MsgError       = "error"
)
