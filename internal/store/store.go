package store

import (
	"context"

	"github.com/neurodive/neurodive-server/internal/match"
)

// MatchStore defines the interface for persistent match summaries.
type MatchStore interface {
	// Record inserts a finished match.
	Record(ctx context.Context, m *match.Match) error
	// FindByID looks up a match record.
	FindByID(ctx context.Context, id string) (*match.Match, error)
	// ListRecent returns the newest match records, newest first.
	ListRecent(ctx context.Context, limit int) ([]*match.Match, error)
	// Close releases database resources.
	Close() error
}
