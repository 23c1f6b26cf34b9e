package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/junh-oh/landrush/internal/models"
)

func TestRandomSelectStaysInRange(t *testing.T) {
	r := NewRandom(1)
	p := &models.Prompt{Type: models.PromptSelect, Options: []string{"a", "b", "c"}}
	for i := 0; i < 100; i++ {
		ans := r.Answer(p)
		assert.GreaterOrEqual(t, ans.Index, 0)
		assert.Less(t, ans.Index, 3)
	}
}

func TestRandomEmptySelect(t *testing.T) {
	r := NewRandom(1)
	ans := r.Answer(&models.Prompt{Type: models.PromptSelect})
	assert.Zero(t, ans.Index)
}

func TestRandomAcknowledgesAlerts(t *testing.T) {
	r := NewRandom(1)
	ans := r.Answer(&models.Prompt{Type: models.PromptAlert})
	assert.True(t, ans.OK)
}

func TestScriptedRepeatsLastAnswer(t *testing.T) {
	s := NewScripted(
		models.Answer{Index: 1},
		models.Answer{OK: true},
	)
	p := &models.Prompt{Type: models.PromptSelect, Options: []string{"a", "b"}}

	assert.Equal(t, models.Answer{Index: 1}, s.Answer(p))
	assert.Equal(t, models.Answer{OK: true}, s.Answer(p))
	assert.Equal(t, models.Answer{OK: true}, s.Answer(p), "last answer repeats")
}

func TestScriptedEmptyDefaultsToOK(t *testing.T) {
	s := NewScripted()
	assert.Equal(t, models.Answer{OK: true}, s.Answer(&models.Prompt{Type: models.PromptConfirm}))
}
