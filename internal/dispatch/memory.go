package dispatch

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// MemoryBus runs handlers in-process through a FIFO queue. The first Publish
// on a goroutine drains the queue synchronously, so by the time it returns
// the whole saga chain has settled. That is the behavior the tests rely on,
// and it is sufficient for a single-node deployment.
type MemoryBus struct {
	router *Router
	log    *logrus.Entry

	mu       sync.Mutex
	queue    []*Message
	draining bool
}

// NewMemoryBus creates a bus that dispatches through the given router.
func NewMemoryBus(router *Router, log *logrus.Logger) *MemoryBus {
	return &MemoryBus{router: router, log: log.WithField("component", "bus")}
}

// Publish enqueues the message and, if no drain is already in progress,
// processes the queue until empty.
func (b *MemoryBus) Publish(ctx context.Context, msg *Message) error {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	if b.draining {
		b.mu.Unlock()
		return nil
	}
	b.draining = true
	for {
		if len(b.queue) == 0 {
			b.draining = false
			b.mu.Unlock()
			return nil
		}
		next := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()
		if err := b.router.Dispatch(ctx, next); err != nil {
			b.log.WithError(err).WithField("action", next.Action).Error("handler failed")
		}
		b.mu.Lock()
	}
}
