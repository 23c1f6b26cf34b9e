// Package transport defines the per-player push channel the engines emit
// through. The websocket implementation lives in internal/server; tests use
// a recording stub.
package transport

import "github.com/junh-oh/landrush/internal/models"

// Event names the client-facing message kinds.
type Event string

const (
	EventMatch        Event = "match"
	EventPlayers      Event = "players"
	EventNewPrompt    Event = "new prompt"
	EventUpdatePrompt Event = "update prompt"
	EventDiceRoll     Event = "dice roll"
	EventNotice       Event = "notice"
)

// Notifier delivers a named event to one player's client channel.
// Implementations must treat unknown or disconnected players as a no-op;
// game progress never depends on a delivery succeeding.
type Notifier interface {
	Emit(playerID string, event Event, payload any)
}

// DiceRoll is the payload of EventDiceRoll. Final marks the committed roll
// at the end of the animation series.
type DiceRoll struct {
	Dice  [2]int `json:"dice"`
	Final bool   `json:"final"`
}

// Broadcast emits the event to every occupied seat of the match.
func Broadcast(n Notifier, m *models.Match, ev Event, payload any) {
	for _, id := range m.Seats() {
		n.Emit(id, ev, payload)
	}
}
