package game

import "time"

// Player limits: one explorer, one protector.
const (
	MinPlayers = 2
	MaxPlayers = 2
)

// Game timing
const (
	TickRate     = 20 // ticks per second
	TickInterval = time.Second / TickRate
	ResetDelay   = 5 * time.Second
)

// Match shape
const (
	// RoundsToWin is how many dives the pair must clear to win a match.
	RoundsToWin = 3
	// CatchLimit is how many catches across a match end it in a loss.
	CatchLimit = 3
)
