package server_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"math-io-server/internal/server"
)

func TestGenerateRoomCodeFormat(t *testing.T) {
	assert := assert.New(t)

	for range 100 {
		code := server.GenerateRoomCode(nil)

		assert.Len(code, 6)
		assert.NoError(server.ValidateRoomCode(code))
	}
}

func TestGenerateRoomCodeUniqueness(t *testing.T) {
	used := make(map[string]bool)

	for range 1000 {
		code := server.GenerateRoomCode(func(c string) bool { return used[c] })

		assert.False(t, used[code], "Code %s was generated twice", code)
		used[code] = true
	}

	assert.Equal(t, 1000, len(used))
}

func TestGenerateRoomCodeAvoidsUsedCodes(t *testing.T) {
	calls := 0
	code := server.GenerateRoomCode(func(string) bool {
		calls++
		return calls <= 3
	})

	assert.Equal(t, 4, calls)
	assert.Len(t, code, 6)
}

func TestValidateRoomCodeValidCodes(t *testing.T) {
	for _, code := range []string{"BEAR42", "GAME00", "ZZZZZZ", "a1b2c3"} {
		assert.NoError(t, server.ValidateRoomCode(code), "Code %s should be valid", code)
	}
}

func TestValidateRoomCodeInvalidLength(t *testing.T) {
	for _, code := range []string{"", "A", "ABCDE", "ABCDEFG"} {
		err := server.ValidateRoomCode(code)
		if assert.Error(t, err, "Code %s should be invalid (wrong length)", code) {
			assert.Contains(t, err.Error(), "exactly 6 characters")
		}
	}
}

func TestValidateRoomCodeInvalidCharacters(t *testing.T) {
	for _, code := range []string{"A-B!CD", "T@STAA", "A BCDE", " ABCDE"} {
		err := server.ValidateRoomCode(code)
		if assert.Error(t, err, "Code %s should be invalid (bad characters)", code) {
			assert.Contains(t, err.Error(), "only letters and digits")
		}
	}
}

func TestNormalizeRoomCode(t *testing.T) {
	assert.Equal(t, "ABC123", server.NormalizeRoomCode("  abc123 "))
}
