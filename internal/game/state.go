package game

type RoomState int

const (
	StateWaiting RoomState = iota
	StatePlaying
	StateEnded
)

func (s RoomState) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StatePlaying:
		return "playing"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Outcome is how a match ended. The two humans cooperate, so there is
// one shared result: they secured the core enough times, or the
// pursuer traced them out.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomePlayers
	OutcomePursuer
	OutcomeAbandoned
)

func (o Outcome) String() string {
	switch o {
	case OutcomePlayers:
		return "players"
	case OutcomePursuer:
		return "pursuer"
	case OutcomeAbandoned:
		return "abandoned"
	default:
		return "none"
	}
}
