// Package archive persists finished matches to Postgres. The full final
// state is stored as one zstd-compressed JSON snapshot next to the queryable
// result columns.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"

	"github.com/junh-oh/landrush/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS match_archive (
	id         TEXT PRIMARY KEY,
	board      TEXT NOT NULL,
	winner     TEXT NOT NULL,
	snapshot   BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// snapshot is the archived record layout.
type snapshot struct {
	Match   *models.Match    `json:"match"`
	Players []*models.Player `json:"players"`
	Winner  string           `json:"winner"`
	SavedAt time.Time        `json:"savedAt"`
}

// Archive writes finished matches to a Postgres pool.
type Archive struct {
	pool *pgxpool.Pool
	enc  *zstd.Encoder
	log  *logrus.Entry
}

// New connects, ensures the table exists and returns the archive.
func New(ctx context.Context, databaseURL string, log *logrus.Logger) (*Archive, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect archive database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure archive schema: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &Archive{
		pool: pool,
		enc:  enc,
		log:  log.WithField("component", "archive"),
	}, nil
}

// ArchiveMatch stores the final match state. Re-archiving the same match
// overwrites the earlier row.
func (a *Archive) ArchiveMatch(ctx context.Context, m *models.Match, players []*models.Player, winner string) error {
	raw, err := json.Marshal(snapshot{
		Match:   m,
		Players: players,
		Winner:  winner,
		SavedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode match snapshot: %w", err)
	}
	compressed := a.enc.EncodeAll(raw, nil)

	_, err = a.pool.Exec(ctx, `
		INSERT INTO match_archive (id, board, winner, snapshot)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET board = EXCLUDED.board, winner = EXCLUDED.winner, snapshot = EXCLUDED.snapshot`,
		m.ID, m.BoardName, winner, compressed)
	if err != nil {
		return fmt.Errorf("insert match archive: %w", err)
	}
	a.log.WithFields(logrus.Fields{
		"match": m.ID, "winner": winner,
		"raw": len(raw), "compressed": len(compressed),
	}).Info("match archived")
	return nil
}

// Close releases the pool and the encoder.
func (a *Archive) Close() {
	a.enc.Close()
	a.pool.Close()
}
