package game

import (
	"encoding/json"
	"math"

	"github.com/rs/zerolog"
)

// FruitBox is the matching-grid game. Clients resolve their own boards; the
// server mirrors scores, relays disruption and board sync to opponents, and in
// occupy mode owns the shared board.
type FruitBox struct {
	table Table
	log   zerolog.Logger

	occupied map[CellID]string // cell id -> owning player id
}

func newFruitBox(t Table, log zerolog.Logger) *FruitBox {
	return &FruitBox{
		table:    t,
		log:      log,
		occupied: make(map[CellID]string),
	}
}

func (f *FruitBox) OnPlayerJoin(p *Player) {}

// OnPlayerLeave releases the cells owned by p so the remaining scores still add
// up to the occupied cell count.
func (f *FruitBox) OnPlayerLeave(p *Player) {
	for id, owner := range f.occupied {
		if owner == p.ID {
			delete(f.occupied, id)
		}
	}
}

// Prepare has nothing to build: fruitbox boards are generated by the clients
// from the broadcast seed.
func (f *FruitBox) Prepare(seed int64, mode string, opts Options) (Round, error) {
	return Round{Seed: seed, Mode: mode, Options: opts}, nil
}

func (f *FruitBox) OnStart(round Round) {
	f.occupied = make(map[CellID]string)
}

func (f *FruitBox) HandleEvent(event string, payload json.RawMessage, originID string) {
	switch event {
	case EventUpdateScore:
		f.handleUpdateScore(payload, originID)
	case EventAttack:
		f.handleAttack(payload, originID)
	case EventBoardSync:
		f.handleBoardSync(payload, originID)
	case EventOccupy:
		f.handleOccupy(payload, originID)
	default:
		f.log.Debug().Str("event", event).Msg("event not handled by fruitbox")
	}
}

// Occupied returns the owner of cell id, if any.
func (f *FruitBox) Occupied(id CellID) (string, bool) {
	owner, ok := f.occupied[id]
	return owner, ok
}

func (f *FruitBox) handleUpdateScore(payload json.RawMessage, originID string) {
	// occupy scores are derived from the board
	if f.table.Mode() == ModeOccupy {
		return
	}

	var req struct {
		Score number `json:"score"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		f.log.Debug().Err(err).Str("conn_id", originID).Msg("malformed update-score")
		return
	}

	p := f.table.Player(originID)
	if p == nil {
		return
	}
	p.Score = int(math.Round(float64(req.Score)))
	f.table.BroadcastPlayers()
}

func (f *FruitBox) handleAttack(payload json.RawMessage, originID string) {
	var req struct {
		Type json.RawMessage `json:"type"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		f.log.Debug().Err(err).Str("conn_id", originID).Msg("malformed game-attack")
		return
	}

	f.table.BroadcastExcept(originID, EventAttackReceived, AttackReceived{
		Type: rawOrNull(req.Type),
		From: originID,
	})
}

func (f *FruitBox) handleBoardSync(payload json.RawMessage, originID string) {
	var req struct {
		ClearedIDs json.RawMessage `json:"clearedIds"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		f.log.Debug().Err(err).Str("conn_id", originID).Msg("malformed game-board-sync")
		return
	}

	f.table.BroadcastExcept(originID, EventBoardUpdate, BoardUpdate{
		ClearedIDs: rawOrNull(req.ClearedIDs),
		From:       originID,
	})
}

func (f *FruitBox) handleOccupy(payload json.RawMessage, originID string) {
	if f.table.Mode() != ModeOccupy {
		f.log.Debug().Str("conn_id", originID).Str("mode", f.table.Mode()).Msg("game-occupy outside occupy mode")
		return
	}

	var req struct {
		ClearedIDs json.RawMessage `json:"clearedIds"`
		RefillData json.RawMessage `json:"refillData"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		f.log.Debug().Err(err).Str("conn_id", originID).Msg("malformed game-occupy")
		return
	}

	var ids []CellID
	if err := json.Unmarshal(req.ClearedIDs, &ids); err != nil {
		f.log.Debug().Err(err).Str("conn_id", originID).Msg("game-occupy without a cell id list")
		return
	}

	// last writer wins
	for _, id := range ids {
		f.occupied[id] = originID
	}
	f.recomputeScores()

	f.table.Broadcast(EventOccupyUpdate, OccupyUpdate{
		ClearedIDs: rawOrNull(req.ClearedIDs),
		OccupierID: originID,
		RefillData: rawOrNull(req.RefillData),
	})
	f.table.BroadcastPlayers()
}

// recomputeScores sets every score to the number of cells the player owns.
func (f *FruitBox) recomputeScores() {
	counts := make(map[string]int, len(f.table.Players()))
	for _, owner := range f.occupied {
		counts[owner]++
	}
	for _, p := range f.table.Players() {
		p.Score = counts[p.ID]
	}
}

type AttackReceived struct {
	Type json.RawMessage `json:"type"`
	From string          `json:"from"`
}

type BoardUpdate struct {
	ClearedIDs json.RawMessage `json:"clearedIds"`
	From       string          `json:"from"`
}

type OccupyUpdate struct {
	ClearedIDs json.RawMessage `json:"clearedIds"`
	OccupierID string          `json:"occupierId"`
	RefillData json.RawMessage `json:"refillData"`
}

func rawOrNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
