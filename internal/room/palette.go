package room

import (
	"math/rand/v2"
	"strings"

	"math-io-server/internal/game"
)

var Palette = []string{
	"#ef4444",
	"#3b82f6",
	"#10b981",
	"#f59e0b",
	"#8b5cf6",
	"#ec4899",
	"#06b6d4",
	"#84cc16",
}

// pickColor returns the first palette color nobody holds. Once every color is
// taken it cycles by player count.
func pickColor(players []*game.Player) string {
	taken := make(map[string]bool, len(players))
	for _, p := range players {
		taken[p.Color] = true
	}
	for _, c := range Palette {
		if !taken[c] {
			return c
		}
	}
	return Palette[len(players)%len(Palette)]
}

const nameAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultName is used when a player joins without a name.
func DefaultName() string {
	var b strings.Builder
	b.WriteString("Player ")
	for range 2 {
		b.WriteByte(nameAlphabet[rand.IntN(len(nameAlphabet))])
	}
	return b.String()
}
