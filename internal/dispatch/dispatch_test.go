package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

type payload struct {
	N int `json:"n"`
}

func TestMessageChaining(t *testing.T) {
	m := NewMessage("m1", "first").
		With("first", payload{N: 1}, "second").
		With("second", payload{N: 2}, "")

	var got payload
	require.NoError(t, m.Decode(&got))
	assert.Equal(t, 1, got.N)

	next := m.Next()
	require.NotNil(t, next)
	assert.Equal(t, "second", next.Action)
	assert.Equal(t, "m1", next.MatchID)
	require.NoError(t, next.Decode(&got))
	assert.Equal(t, 2, got.N)

	assert.Nil(t, next.Next(), "saga ends at an empty callback")
}

func TestMessageNextMissingEntry(t *testing.T) {
	m := NewMessage("m1", "first").With("first", payload{N: 1}, "ghost")
	assert.Nil(t, m.Next())
}

func TestMessageCloneIsDeep(t *testing.T) {
	m := NewMessage("m1", "first").With("first", payload{N: 1}, "")
	cp := m.Clone()
	cp.With("first", payload{N: 99}, "elsewhere")
	cp.Action = "other"

	var got payload
	require.NoError(t, m.Decode(&got))
	assert.Equal(t, 1, got.N)
	assert.Equal(t, "first", m.Action)
}

func TestMessageAtRetargets(t *testing.T) {
	m := NewMessage("m1", "first").
		With("first", payload{N: 1}, "second").
		With("second", payload{N: 2}, "")
	at := m.At("second")
	assert.Equal(t, "second", at.Action)
	assert.Equal(t, "first", m.Action, "original untouched")
}

func TestMessageSurvivesWire(t *testing.T) {
	m := NewMessage("m1", "first").With("first", payload{N: 7}, "second")
	raw, err := json.Marshal(m)
	require.NoError(t, err)

	var back Message
	require.NoError(t, json.Unmarshal(raw, &back))
	var got payload
	require.NoError(t, back.Decode(&got))
	assert.Equal(t, 7, got.N)
	step, ok := back.Step()
	require.True(t, ok)
	assert.Equal(t, "second", step.Callback)
}

func TestRouterDropsUnknownAction(t *testing.T) {
	r := NewRouter(testLog())
	called := false
	r.Register("known", HandlerFunc(func(ctx context.Context, msg *Message) error {
		called = true
		return nil
	}))

	msg := NewMessage("m1", "unknown").With("unknown", nil, "")
	require.NoError(t, r.Dispatch(context.Background(), msg))
	assert.False(t, called)

	// A message whose table lacks its own action is dropped too.
	require.NoError(t, r.Dispatch(context.Background(), NewMessage("m1", "known")))
	assert.False(t, called)
}

func TestMemoryBusDrainsFIFO(t *testing.T) {
	r := NewRouter(testLog())
	bus := NewMemoryBus(r, testLog())

	var order []int
	r.Register("step", HandlerFunc(func(ctx context.Context, msg *Message) error {
		var p payload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		order = append(order, p.N)
		if p.N < 3 {
			return bus.Publish(ctx, NewMessage("m1", "step").With("step", payload{N: p.N + 1}, ""))
		}
		return nil
	}))

	err := bus.Publish(context.Background(), NewMessage("m1", "step").With("step", payload{N: 1}, ""))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, order, "nested publishes settle before the outer returns")
}
