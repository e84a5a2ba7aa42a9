package game

type Player struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Score        int    `json:"score"`
	IsReady      bool   `json:"isReady"`
	Color        string `json:"color"`
	IsEliminated bool   `json:"isEliminated"`
}

// ResetForRound clears the per-round fields.
func (p *Player) ResetForRound() {
	p.Score = 0
	p.IsReady = false
	p.IsEliminated = false
}

// Snapshot copies the player list so it can be serialized outside the room.
func Snapshot(players []*Player) []Player {
	out := make([]Player, 0, len(players))
	for _, p := range players {
		out = append(out, *p)
	}
	return out
}
