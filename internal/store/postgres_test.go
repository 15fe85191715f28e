package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurodive/neurodive-server/internal/game"
	"github.com/neurodive/neurodive-server/internal/match"
)

func getTestDatabaseURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL integration test")
	}
	return url
}

func setupTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	url := getTestDatabaseURL(t)
	ctx := context.Background()

	s, err := NewPostgresStore(ctx, url)
	require.NoError(t, err)

	// Clean up matches table for test isolation
	_, err = s.pool.Exec(ctx, "DELETE FROM matches")
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func finishedMatch(code string, outcome game.Outcome) *match.Match {
	m := match.New(code, "deep-diver", "wallwright")
	m.Outcome = outcome
	m.Rounds = 3
	m.Catches = 1
	m.Duration = 7*time.Minute + 30*time.Second
	return m
}

func TestPostgresStore_RecordAndFindByID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	m := finishedMatch("KXQZ", game.OutcomePlayers)
	require.NoError(t, s.Record(ctx, m))

	found, err := s.FindByID(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, found)

	assert.Equal(t, m.ID, found.ID)
	assert.Equal(t, "KXQZ", found.RoomCode)
	assert.Equal(t, "deep-diver", found.Explorer)
	assert.Equal(t, "wallwright", found.Protector)
	assert.Equal(t, game.OutcomePlayers, found.Outcome)
	assert.Equal(t, 3, found.Rounds)
	assert.Equal(t, 1, found.Catches)
	assert.Equal(t, m.Duration, found.Duration)
}

func TestPostgresStore_FindByID_NotFound(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	found, err := s.FindByID(ctx, "nonexistent-id")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestPostgresStore_ListRecent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	older := finishedMatch("AAAA", game.OutcomePursuer)
	older.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, s.Record(ctx, older))

	newer := finishedMatch("BBBB", game.OutcomePlayers)
	require.NoError(t, s.Record(ctx, newer))

	matches, err := s.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "BBBB", matches[0].RoomCode)
	assert.Equal(t, "AAAA", matches[1].RoomCode)

	matches, err = s.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "BBBB", matches[0].RoomCode)
}

func TestPostgresStore_DuplicateID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	m := finishedMatch("CCCC", game.OutcomeAbandoned)
	require.NoError(t, s.Record(ctx, m))
	assert.Error(t, s.Record(ctx, m))
}
