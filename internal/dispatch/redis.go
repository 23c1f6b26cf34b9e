package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Redis list keys for the durable action channel.
const (
	queueKey      = "actions:queue"
	processingKey = "actions:processing"
)

// RedisBus is the durable at-least-once channel: Publish LPUSHes onto a
// list, Run moves messages to a processing list while a handler runs and
// removes them only on success. Messages left in the processing list by a
// crashed consumer are re-queued on the next Run.
type RedisBus struct {
	rdb    *redis.Client
	router *Router
	log    *logrus.Entry
}

// NewRedisBus wraps a connected client and the dispatch router.
func NewRedisBus(rdb *redis.Client, router *Router, log *logrus.Logger) *RedisBus {
	return &RedisBus{rdb: rdb, router: router, log: log.WithField("component", "bus")}
}

// Publish appends the message to the durable queue.
func (b *RedisBus) Publish(ctx context.Context, msg *Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode action message: %w", err)
	}
	if err := b.rdb.LPush(ctx, queueKey, raw).Err(); err != nil {
		return fmt.Errorf("queue action %s: %w", msg.Action, err)
	}
	return nil
}

// Run consumes the queue until ctx is cancelled. Call it from exactly one
// goroutine per process; match-level Locked flags serialize the turn steps
// themselves.
func (b *RedisBus) Run(ctx context.Context) {
	b.recover(ctx)
	for {
		raw, err := b.rdb.BRPopLPush(ctx, queueKey, processingKey, 5*time.Second).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.log.WithError(err).Error("polling action queue")
			time.Sleep(time.Second)
			continue
		}
		b.consume(ctx, raw)
	}
}

// consume dispatches one raw message and acknowledges it on success. A
// handler error leaves the message in the processing list for redelivery;
// handlers are required to tolerate that.
func (b *RedisBus) consume(ctx context.Context, raw string) {
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		b.log.WithError(err).Error("undecodable action message, discarding")
		b.ack(ctx, raw)
		return
	}
	if err := b.router.Dispatch(ctx, &msg); err != nil {
		b.log.WithError(err).WithField("action", msg.Action).Error("handler failed, leaving for redelivery")
		return
	}
	b.ack(ctx, raw)
}

func (b *RedisBus) ack(ctx context.Context, raw string) {
	if err := b.rdb.LRem(ctx, processingKey, 1, raw).Err(); err != nil {
		b.log.WithError(err).Error("acking action message")
	}
}

// recover moves any in-flight messages from a previous run back onto the
// queue.
func (b *RedisBus) recover(ctx context.Context) {
	for {
		_, err := b.rdb.RPopLPush(ctx, processingKey, queueKey).Result()
		if errors.Is(err, redis.Nil) {
			return
		}
		if err != nil {
			b.log.WithError(err).Error("recovering in-flight actions")
			return
		}
	}
}
