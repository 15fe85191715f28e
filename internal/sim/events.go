package sim

import (
	"encoding/json"

	"github.com/neurodive/neurodive-server/internal/neural"
	"github.com/neurodive/neurodive-server/internal/visibility"
)

// EventKind labels a session event.
type EventKind int

const (
	EventNodeActivated EventKind = iota
	EventNodeBlocked
	EventNodeRepaired
	EventEdgeUnlocked
	EventEdgeState
	EventPursuerMoved
	EventHackStarted
	EventHackLanded
	EventHackAborted
	EventCaught
	EventEncounterResolved
	EventVisibility
	EventCoreReached
	EventRoundReset
	EventPaused
	EventResumed
)

func (k EventKind) String() string {
	switch k {
	case EventNodeActivated:
		return "node_activated"
	case EventNodeBlocked:
		return "node_blocked"
	case EventNodeRepaired:
		return "node_repaired"
	case EventEdgeUnlocked:
		return "edge_unlocked"
	case EventEdgeState:
		return "edge_state"
	case EventPursuerMoved:
		return "pursuer_moved"
	case EventHackStarted:
		return "hack_started"
	case EventHackLanded:
		return "hack_landed"
	case EventHackAborted:
		return "hack_aborted"
	case EventCaught:
		return "caught"
	case EventEncounterResolved:
		return "encounter_resolved"
	case EventVisibility:
		return "visibility"
	case EventCoreReached:
		return "core_reached"
	case EventRoundReset:
		return "round_reset"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the kind as its string name.
func (k EventKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Event is one observable state change. Only the fields relevant to
// the kind are set.
type Event struct {
	Kind  EventKind        `json:"kind"`
	Tick  int              `json:"tick"`
	Node  neural.NodeID    `json:"node,omitempty"`
	Edge  neural.EdgeID    `json:"edge,omitempty"`
	State string           `json:"state,omitempty"`
	Diff  *visibility.Diff `json:"diff,omitempty"`
}

// Listener receives every event the session emits, synchronously,
// during the call that produced it. Listeners run in subscription
// order and must not call back into the session.
type Listener func(Event)
