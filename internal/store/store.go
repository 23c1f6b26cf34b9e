// Package store is the persistence collaborator: CRUD by id for matches,
// players and prompts with last-write-wins semantics. A missing entity reads
// back as (nil, nil) so callers can treat it as a silent no-op.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/junh-oh/landrush/internal/models"
)

// Store is the KV contract the engines run against.
type Store interface {
	Match(ctx context.Context, id string) (*models.Match, error)
	PutMatch(ctx context.Context, m *models.Match) error
	DeleteMatch(ctx context.Context, id string) error
	// ExpireMatch schedules a finished match for deletion after ttl.
	ExpireMatch(ctx context.Context, id string, ttl time.Duration) error

	Player(ctx context.Context, id string) (*models.Player, error)
	PutPlayer(ctx context.Context, p *models.Player) error
	DeletePlayer(ctx context.Context, id string) error

	Prompt(ctx context.Context, id string) (*models.Prompt, error)
	PutPrompt(ctx context.Context, p *models.Prompt) error
	DeletePrompt(ctx context.Context, id string) error
}

// Memory is an in-process Store for tests and single-node development.
type Memory struct {
	mu      sync.RWMutex
	matches map[string]*models.Match
	players map[string]*models.Player
	prompts map[string]*models.Prompt
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		matches: make(map[string]*models.Match),
		players: make(map[string]*models.Player),
		prompts: make(map[string]*models.Prompt),
	}
}

func (s *Memory) Match(_ context.Context, id string) (*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	cp.PlayerOrder = append([]string(nil), m.PlayerOrder...)
	cp.Tiles = make([]models.Tile, len(m.Tiles))
	copy(cp.Tiles, m.Tiles)
	return &cp, nil
}

func (s *Memory) PutMatch(_ context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	cp.PlayerOrder = append([]string(nil), m.PlayerOrder...)
	cp.Tiles = make([]models.Tile, len(m.Tiles))
	copy(cp.Tiles, m.Tiles)
	s.matches[m.ID] = &cp
	return nil
}

func (s *Memory) DeleteMatch(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.matches, id)
	return nil
}

// ExpireMatch is a no-op; the in-memory store has no timers worth keeping
// alive in tests, and single-node development can hold finished matches.
func (s *Memory) ExpireMatch(ctx context.Context, id string, _ time.Duration) error {
	return nil
}

func (s *Memory) Player(_ context.Context, id string) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *Memory) PutPlayer(_ context.Context, p *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.players[p.ID] = &cp
	return nil
}

func (s *Memory) DeletePlayer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, id)
	return nil
}

func (s *Memory) Prompt(_ context.Context, id string) (*models.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prompts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *Memory) PutPrompt(_ context.Context, p *models.Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.prompts[p.ID] = &cp
	return nil
}

func (s *Memory) DeletePrompt(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prompts, id)
	return nil
}
