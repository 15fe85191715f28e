// Package match holds the persisted summary of a finished match.
package match

import (
	"time"

	"github.com/google/uuid"

	"github.com/neurodive/neurodive-server/internal/game"
)

// Match is the write-only record kept after a game ends. The
// simulation never reads it back; it exists for stats and balancing.
type Match struct {
	ID        string
	RoomCode  string
	Explorer  string
	Protector string
	Outcome   game.Outcome
	Rounds    int
	Catches   int
	Duration  time.Duration
	CreatedAt time.Time
}

// New creates a match record for a room's lineup, to be filled in
// when the game ends.
func New(roomCode, explorer, protector string) *Match {
	return &Match{
		ID:        uuid.New().String(),
		RoomCode:  roomCode,
		Explorer:  explorer,
		Protector: protector,
		CreatedAt: time.Now(),
	}
}
