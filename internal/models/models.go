// Package models holds the shared persisted records: matches, players,
// tiles and prompts. These are the units of storage (last-write-wins KV)
// and of broadcast to clients.
package models

// MatchState is the current phase of a match's turn cycle.
type MatchState string

// Match phases, in cyclic order. Over is terminal and reachable from any
// phase once a winner is declared.
const (
	StateLobby       MatchState = "lobby"
	StateIdle        MatchState = "idle"
	StateStartTurn   MatchState = "start_turn"
	StateRollingDice MatchState = "rolling_dice"
	StatePlaying     MatchState = "playing"
	StateMoving      MatchState = "moving"
	StateLanding     MatchState = "landing"
	StateOver        MatchState = "over"
)

// Match is one running game. The board instance is owned exclusively by the
// match; tiles carry the dynamic ownership state.
type Match struct {
	ID          string     `json:"id"`
	BoardName   string     `json:"boardName"`
	PlayerOrder []string   `json:"playerOrder"` // fixed-size seat list, "" = empty seat
	Tiles       []Tile     `json:"tiles"`
	State       MatchState `json:"state"`
	LastDice    [2]int     `json:"lastDice"`
	Locked      bool       `json:"locked"` // true while a turn step is mid-flight
	Open        bool       `json:"open"`   // lobby still accepting players
}

// Seats returns the non-empty player ids in seat order.
func (m *Match) Seats() []string {
	ids := make([]string, 0, len(m.PlayerOrder))
	for _, id := range m.PlayerOrder {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// SeatIndex returns the seat of the given player, or -1.
func (m *Match) SeatIndex(playerID string) int {
	for i, id := range m.PlayerOrder {
		if id == playerID {
			return i
		}
	}
	return -1
}

// Victory marks a player's terminal outcome. Empty until decided.
type Victory string

const (
	VictoryUndefined Victory = ""
	VictoryLost      Victory = "lost"
	VictoryWon       Victory = "won"
)

// PlayerState is the mutable per-turn sub-record of a player. Money is
// mutated by the ledger; position, turn and dice streaks by the turn
// machine.
type PlayerState struct {
	Money        int     `json:"money"`
	Position     int     `json:"position"`
	Prison       int     `json:"prison"`  // remaining sentence, 0 = free
	Doubles      int     `json:"doubles"` // consecutive doubles this streak
	Turn         bool    `json:"turn"`
	PlayAgain    bool    `json:"playAgain"`
	Victory      Victory `json:"victory"`
	WalkDistance int     `json:"walkDistance"`
	CustomWalk   bool    `json:"customWalk"` // WalkDistance overrides the dice this turn
}

// Player is one seat occupant, human or AI.
type Player struct {
	ID      string      `json:"id"`
	MatchID string      `json:"matchId"`
	Name    string      `json:"name"`
	AI      bool        `json:"ai"`
	State   PlayerState `json:"state"`
}

// Lost reports whether the player has been eliminated.
func (p *Player) Lost() bool { return p.State.Victory == VictoryLost }
