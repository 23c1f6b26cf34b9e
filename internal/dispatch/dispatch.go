// Package dispatch is the action channel the engines communicate through.
// Every message is self-contained: it names the current action and carries a
// table of next actions, so handlers are stateless per invocation and route
// completion strictly through the named continuation.
package dispatch

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// Step is one entry of a message's action table.
type Step struct {
	Body     json.RawMessage `json:"body,omitempty"`
	Callback string          `json:"callback,omitempty"` // action to republish on completion
}

// Message is one unit of work on the bus.
type Message struct {
	MatchID string          `json:"matchId"`
	Action  string          `json:"action"`
	Actions map[string]Step `json:"actions"`
}

// NewMessage starts an empty message for a match.
func NewMessage(matchID, action string) *Message {
	return &Message{MatchID: matchID, Action: action, Actions: make(map[string]Step)}
}

// With sets the step for an action and returns the message for chaining.
// Bodies are this module's own payload structs; a marshal failure here is a
// programming error and yields an empty body.
func (m *Message) With(action string, body any, callback string) *Message {
	raw, err := json.Marshal(body)
	if err != nil {
		raw = nil
	}
	m.Actions[action] = Step{Body: raw, Callback: callback}
	return m
}

// Step returns the entry for the message's current action.
func (m *Message) Step() (Step, bool) {
	s, ok := m.Actions[m.Action]
	return s, ok
}

// Decode unmarshals the current step's body into v.
func (m *Message) Decode(v any) error {
	s, ok := m.Step()
	if !ok || len(s.Body) == 0 {
		return nil
	}
	return json.Unmarshal(s.Body, v)
}

// Clone deep-copies the message so a handler can re-target it safely.
func (m *Message) Clone() *Message {
	cp := &Message{MatchID: m.MatchID, Action: m.Action, Actions: make(map[string]Step, len(m.Actions))}
	for k, v := range m.Actions {
		body := append(json.RawMessage(nil), v.Body...)
		cp.Actions[k] = Step{Body: body, Callback: v.Callback}
	}
	return cp
}

// At returns a clone re-targeted at the given action.
func (m *Message) At(action string) *Message {
	cp := m.Clone()
	cp.Action = action
	return cp
}

// Next returns the continuation message named by the current step's
// callback, or nil when the saga ends here or the entry is missing.
func (m *Message) Next() *Message {
	s, ok := m.Step()
	if !ok || s.Callback == "" {
		return nil
	}
	if _, ok := m.Actions[s.Callback]; !ok {
		return nil
	}
	return m.At(s.Callback)
}

// Handler processes one message. Returning an error signals an
// infrastructure fault; domain-level drops are handled inside and return nil.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// Router is the explicit action-name registration table, built at startup.
type Router struct {
	handlers map[string]Handler
	log      *logrus.Entry
}

// NewRouter creates an empty router.
func NewRouter(log *logrus.Logger) *Router {
	return &Router{
		handlers: make(map[string]Handler),
		log:      log.WithField("component", "dispatch"),
	}
}

// Register binds an action name to its handler.
func (r *Router) Register(action string, h Handler) {
	r.handlers[action] = h
}

// Dispatch routes a message to its handler. Unknown actions and messages
// without an entry for their own action are logged and dropped, never a
// crash.
func (r *Router) Dispatch(ctx context.Context, msg *Message) error {
	if _, ok := msg.Step(); !ok {
		r.log.WithFields(logrus.Fields{"action": msg.Action, "match": msg.MatchID}).
			Debug("message missing step for its own action, dropping")
		return nil
	}
	h, ok := r.handlers[msg.Action]
	if !ok {
		r.log.WithFields(logrus.Fields{"action": msg.Action, "match": msg.MatchID}).
			Debug("no handler registered, dropping")
		return nil
	}
	return h.Handle(ctx, msg)
}

// Bus publishes messages for eventual (at-least-once) delivery.
type Bus interface {
	Publish(ctx context.Context, msg *Message) error
}
