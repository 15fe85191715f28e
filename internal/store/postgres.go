package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neurodive/neurodive-server/internal/game"
	"github.com/neurodive/neurodive-server/internal/match"
)

const schema = `
CREATE TABLE IF NOT EXISTS matches (
    id TEXT PRIMARY KEY,
    room_code TEXT NOT NULL,
    explorer TEXT NOT NULL,
    protector TEXT NOT NULL,
    outcome TEXT NOT NULL,
    rounds INT NOT NULL DEFAULT 0,
    catches INT NOT NULL DEFAULT 0,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_matches_created_at ON matches(created_at DESC);
`

// PostgresStore implements MatchStore using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL and initializes the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Record inserts a finished match.
func (s *PostgresStore) Record(ctx context.Context, m *match.Match) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO matches (id, room_code, explorer, protector, outcome, rounds, catches, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.RoomCode, m.Explorer, m.Protector, m.Outcome.String(),
		m.Rounds, m.Catches, m.Duration.Milliseconds(), m.CreatedAt)
	return err
}

// FindByID looks up a match record.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (*match.Match, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, room_code, explorer, protector, outcome, rounds, catches, duration_ms, created_at
		 FROM matches WHERE id = $1`, id)

	m, err := scanMatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// ListRecent returns the newest match records, newest first.
func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*match.Match, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, room_code, explorer, protector, outcome, rounds, catches, duration_ms, created_at
		 FROM matches ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*match.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Close releases database resources.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanMatch(row pgx.Row) (*match.Match, error) {
	var m match.Match
	var outcome string
	var durationMs int64
	err := row.Scan(&m.ID, &m.RoomCode, &m.Explorer, &m.Protector, &outcome,
		&m.Rounds, &m.Catches, &durationMs, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Outcome = parseOutcome(outcome)
	m.Duration = time.Duration(durationMs) * time.Millisecond
	return &m, nil
}

func parseOutcome(s string) game.Outcome {
	switch s {
	case "players":
		return game.OutcomePlayers
	case "pursuer":
		return game.OutcomePursuer
	case "abandoned":
		return game.OutcomeAbandoned
	default:
		return game.OutcomeNone
	}
}
