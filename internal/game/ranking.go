package game

import "sort"

type Reason string

const (
	ReasonRaceFinished Reason = "race_finished"
	ReasonBoardFull    Reason = "board_full"
	ReasonElimination  Reason = "elimination"
)

type GameOver struct {
	WinnerID  string   `json:"winnerId,omitempty"`
	Reason    Reason   `json:"reason"`
	Score     int      `json:"score"`
	Standings []Player `json:"standings"`
}

// Rank orders players with active ones ahead of eliminated ones, then by
// descending score. Ties keep join order.
func Rank(players []*Player) []Player {
	ranked := Snapshot(players)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].IsEliminated != ranked[j].IsEliminated {
			return !ranked[i].IsEliminated
		}
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func NewGameOver(reason Reason, players []*Player) GameOver {
	standings := Rank(players)
	over := GameOver{Reason: reason, Standings: standings}
	if len(standings) > 0 {
		over.WinnerID = standings[0].ID
		over.Score = standings[0].Score
	}
	return over
}
