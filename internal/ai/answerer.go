// Package ai is the stand-in answerer for AI seats. It sees only the prompt
// itself, never the wider game state.
package ai

import (
	"math/rand"
	"sync"

	"github.com/junh-oh/landrush/internal/models"
)

// Random answers select prompts with a uniformly random option, confirm
// prompts with a coin flip, and acknowledges alerts.
type Random struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandom seeds an answerer. Pass a fixed seed in tests.
func NewRandom(seed int64) *Random {
	return &Random{rnd: rand.New(rand.NewSource(seed))}
}

func (r *Random) Answer(p *models.Prompt) models.Answer {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch p.Type {
	case models.PromptSelect:
		if len(p.Options) == 0 {
			return models.Answer{}
		}
		return models.Answer{Index: r.rnd.Intn(len(p.Options))}
	case models.PromptConfirm:
		return models.Answer{OK: r.rnd.Intn(2) == 0}
	default:
		return models.Answer{OK: true}
	}
}

// Scripted returns predetermined answers in order; the last answer repeats.
// Test helper for deterministic AI seats.
type Scripted struct {
	mu      sync.Mutex
	answers []models.Answer
	idx     int
}

// NewScripted builds a scripted answerer.
func NewScripted(answers ...models.Answer) *Scripted {
	return &Scripted{answers: answers}
}

func (s *Scripted) Answer(_ *models.Prompt) models.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.answers) == 0 {
		return models.Answer{OK: true}
	}
	ans := s.answers[s.idx]
	if s.idx < len(s.answers)-1 {
		s.idx++
	}
	return ans
}
