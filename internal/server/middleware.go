package server

import (
	"fmt"
	"slices"
	"sync"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"math-io-server/internal/game"
)

const maxPlayerNameLength = 20

// RateLimiter keeps one token bucket per connection so a noisy client only
// throttles itself.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter // connectionID -> bucket
	mu       sync.Mutex
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether connectionID may send another message now.
func (r *RateLimiter) Allow(connectionID string) bool {
	r.mu.Lock()
	l, ok := r.limiters[connectionID]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[connectionID] = l
	}
	r.mu.Unlock()

	return l.Allow()
}

// RemoveConnection drops the bucket of a closed connection.
func (r *RateLimiter) RemoveConnection(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.limiters, connectionID)
}

func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}

var routerMessages = []string{
	MsgPing,
	MsgGetRooms,
	MsgCreateRoom,
	MsgJoinRoom,
	MsgLeaveRoom,
	MsgToggleReady,
	MsgStartCountdown,
	MsgResetRoom,
	MsgUpdateMode,
	MsgUpdateDuration,
	MsgUpdateOptions,
	MsgTransferHost,
}

// ValidateMessageType checks msgType against the router and game event
// catalogs.
func ValidateMessageType(msgType string) error {
	if slices.Contains(routerMessages, msgType) || game.IsEvent(msgType) {
		return nil
	}
	return fmt.Errorf("INVALID_MESSAGE_TYPE: Unknown message type '%s'", msgType)
}

// ValidatePlayerName allows empty names (a default is assigned on join).
func ValidatePlayerName(name string) error {
	if utf8.RuneCountInString(name) > maxPlayerNameLength {
		return fmt.Errorf("NAME_INVALID: Name too long (max %d characters)", maxPlayerNameLength)
	}
	return nil
}
