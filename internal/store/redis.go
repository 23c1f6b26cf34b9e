package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/junh-oh/landrush/internal/models"
)

// Key prefixes for the three entity kinds.
const (
	matchPrefix  = "match:"
	playerPrefix = "player:"
	promptPrefix = "prompt:"
)

// Redis is the production Store: JSON values under prefixed keys, plain SET
// for last-write-wins, EXPIRE for finished-match TTL.
type Redis struct {
	rdb *redis.Client
}

// NewRedis wraps an already-connected client.
func NewRedis(rdb *redis.Client) *Redis { return &Redis{rdb: rdb} }

func (s *Redis) get(ctx context.Context, key string, v any) (bool, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Redis) put(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *Redis) Match(ctx context.Context, id string) (*models.Match, error) {
	var m models.Match
	ok, err := s.get(ctx, matchPrefix+id, &m)
	if err != nil || !ok {
		return nil, err
	}
	return &m, nil
}

func (s *Redis) PutMatch(ctx context.Context, m *models.Match) error {
	return s.put(ctx, matchPrefix+m.ID, m)
}

func (s *Redis) DeleteMatch(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, matchPrefix+id).Err()
}

func (s *Redis) ExpireMatch(ctx context.Context, id string, ttl time.Duration) error {
	return s.rdb.Expire(ctx, matchPrefix+id, ttl).Err()
}

func (s *Redis) Player(ctx context.Context, id string) (*models.Player, error) {
	var p models.Player
	ok, err := s.get(ctx, playerPrefix+id, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (s *Redis) PutPlayer(ctx context.Context, p *models.Player) error {
	return s.put(ctx, playerPrefix+p.ID, p)
}

func (s *Redis) DeletePlayer(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, playerPrefix+id).Err()
}

func (s *Redis) Prompt(ctx context.Context, id string) (*models.Prompt, error) {
	var p models.Prompt
	ok, err := s.get(ctx, promptPrefix+id, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (s *Redis) PutPrompt(ctx context.Context, p *models.Prompt) error {
	return s.put(ctx, promptPrefix+p.ID, p)
}

func (s *Redis) DeletePrompt(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, promptPrefix+id).Err()
}
