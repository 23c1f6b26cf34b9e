package models

import "encoding/json"

// PromptType is the question shape put to a player.
type PromptType string

const (
	PromptAlert   PromptType = "alert"   // acknowledge only
	PromptConfirm PromptType = "confirm" // yes / no
	PromptSelect  PromptType = "select"  // pick one of Options
)

// Prompt is a pending question for exactly one player. The id is derived as
// matchID|playerID so a player can never hold two prompts at once: a second
// publish rebuilds the stored prompt in place.
//
// Factory names the question builder that produced it, so the prompt can be
// rebuilt idempotently from current world state. Resume is the action
// message republished once the answer has been applied.
type Prompt struct {
	ID       string          `json:"id"`
	MatchID  string          `json:"matchId"`
	PlayerID string          `json:"playerId"`
	Factory  string          `json:"factory"`
	Type     PromptType      `json:"type"`
	Message  string          `json:"message"`
	Options  []string        `json:"options,omitempty"`
	Args     json.RawMessage `json:"args,omitempty"`   // factory context
	Resume   json.RawMessage `json:"resume,omitempty"` // serialized dispatch.Message
}

// PromptID derives the storage key for a player's single prompt slot.
func PromptID(matchID, playerID string) string { return matchID + "|" + playerID }

// Answer is a player's (or the AI stand-in's) response to a prompt.
// Index addresses Options for select prompts; OK carries confirm results.
type Answer struct {
	Index int  `json:"index"`
	OK    bool `json:"ok"`
}
