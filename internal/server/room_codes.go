package server

import (
	"errors"
	"math/rand/v2"
	"strings"
)

const (
	roomCodeLength   = 6
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateRoomCode returns a fresh code for which inUse reports false.
func GenerateRoomCode(inUse func(code string) bool) string {
	for {
		code := make([]byte, roomCodeLength)
		for i := range code {
			code[i] = roomCodeAlphabet[rand.IntN(len(roomCodeAlphabet))]
		}
		roomCode := string(code)

		if inUse == nil || !inUse(roomCode) {
			return roomCode
		}
	}
}

func ValidateRoomCode(code string) error {
	if len(code) != roomCodeLength {
		return errors.New("INVALID_ROOM_CODE: Room code must be exactly 6 characters")
	}

	for _, ch := range strings.ToUpper(code) {
		if !strings.ContainsRune(roomCodeAlphabet, ch) {
			return errors.New("INVALID_ROOM_CODE: Room code must contain only letters and digits")
		}
	}

	return nil
}

func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
