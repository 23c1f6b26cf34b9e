package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junh-oh/landrush/internal/models"
)

func TestMemoryMissingReadsAsNil(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	m, err := s.Match(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, m)

	p, err := s.Player(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, p)

	pr, err := s.Prompt(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, pr)
}

func TestMemoryMatchRoundTrip(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	match := &models.Match{
		ID:          "m1",
		BoardName:   "classic",
		PlayerOrder: []string{"p1", "", "p2", ""},
		Tiles:       []models.Tile{{Name: "Start", Type: models.TileStart}},
		State:       models.StateIdle,
	}
	require.NoError(t, s.PutMatch(ctx, match))

	got, err := s.Match(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, match, got)

	require.NoError(t, s.DeleteMatch(ctx, "m1"))
	got, err = s.Match(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryCopiesOnReadAndWrite(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	match := &models.Match{
		ID:          "m1",
		PlayerOrder: []string{"p1"},
		Tiles:       []models.Tile{{Name: "Lisbon", Type: models.TileDeed}},
	}
	require.NoError(t, s.PutMatch(ctx, match))

	// Mutating the caller's copy after Put must not leak into the store.
	match.Tiles[0].Owner = "p1"
	got, err := s.Match(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, got.Tiles[0].Owner)

	// Mutating a read result must not leak either.
	got.Tiles[0].Owner = "p2"
	got.PlayerOrder[0] = "intruder"
	again, err := s.Match(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, again.Tiles[0].Owner)
	assert.Equal(t, "p1", again.PlayerOrder[0])
}

func TestMemoryPlayerLastWriteWins(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	p := &models.Player{ID: "p1", Name: "Ana", State: models.PlayerState{Money: 100}}
	require.NoError(t, s.PutPlayer(ctx, p))
	p.State.Money = 250
	require.NoError(t, s.PutPlayer(ctx, p))

	got, err := s.Player(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 250, got.State.Money)
}

func TestMemoryExpireMatchKeepsRecord(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.PutMatch(ctx, &models.Match{ID: "m1"}))
	require.NoError(t, s.ExpireMatch(ctx, "m1", time.Minute))

	got, err := s.Match(ctx, "m1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}
