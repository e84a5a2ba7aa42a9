package room

import "errors"

var (
	ErrRoomFull       = errors.New("ROOM_FULL: Room is full")
	ErrGameInProgress = errors.New("GAME_IN_PROGRESS: Game has already started")
	ErrNotHost        = errors.New("NOT_HOST: Only the host can do that")
	ErrNotAllReady    = errors.New("NOT_ALL_READY: All players must be ready")
	ErrPlayerNotFound = errors.New("PLAYER_NOT_FOUND: Player is not in this room")
	ErrRoomClosed     = errors.New("ROOM_NOT_FOUND: Room does not exist")
)
