package sim

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurodive/neurodive-server/internal/neural"
	"github.com/neurodive/neurodive-server/internal/pursuit"
	"github.com/neurodive/neurodive-server/internal/puzzle"
)

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

// chainNet builds n0-n1-n2-n3-n4 with one unit between neighbors.
// The session resets flags itself, so only topology matters here.
func chainNet(t *testing.T) *neural.Network {
	t.Helper()
	n := neural.NewNetwork()
	var prev neural.NodeID
	for i := 0; i < 5; i++ {
		node := n.AddNode(neural.Vec3{X: float64(i)})
		if i > 0 {
			_, err := n.AddEdge(prev, node.ID)
			require.NoError(t, err)
		}
		prev = node.ID
	}
	n.EntryID = "n0"
	n.CoreID = "n4"
	for _, eid := range n.EdgeIDs() {
		n.Edges[eid].Tier = 1
	}
	return n
}

// quietPursuer moves one unit per second with no ramp.
func quietPursuer() pursuit.Config {
	return pursuit.Config{
		BaseSpeed:    1,
		SpeedCap:     10,
		HackDuration: 1,
		PushbackHops: 2,
	}
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewSession(Config{VisionHops: 2}, quietPursuer(), chainNet(t), rand.New(rand.NewSource(1)))
}

// record collects every event emitted after the call.
func record(s *Session) *[]Event {
	var events []Event
	s.Subscribe(func(ev Event) { events = append(events, ev) })
	return &events
}

func kindsOf(events []Event) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}

// activateEdge puts a connection straight into the active state,
// sidestepping the puzzle flow for movement-focused tests.
func activateEdge(s *Session, id neural.EdgeID) {
	e := s.net.Edge(id)
	e.Unlocked = true
	e.State = neural.EdgeActive
}

func TestSessionInitialState(t *testing.T) {
	s := newTestSession(t)

	assert.Equal(t, neural.NodeID("n0"), s.Head())
	assert.True(t, s.net.Node("n0").Activated)
	assert.Equal(t, neural.NodeID("n3"), s.pursuer.At(), "pursuer spawns on the deepest non-core node")
	assert.False(t, s.EncounterPending())
	assert.False(t, s.CoreReached())

	first, ok := s.net.FirstStructuralEdge()
	require.True(t, ok)
	assert.True(t, s.net.Edge(first).Unlocked)

	// The entry and its one open connection are lit from the start.
	snap := s.Visible()
	assert.True(t, snap.NodeVisible("n0"))
	assert.True(t, snap.NodeVisible("n1"))
	assert.False(t, snap.NodeVisible("n2"), "sight stops at the locked connection")
	assert.True(t, snap.EdgeVisible("e0"))
}

func TestNewSessionEmitsOpeningEvents(t *testing.T) {
	var events []Event
	s := NewSession(Config{VisionHops: 2}, quietPursuer(), chainNet(t),
		rand.New(rand.NewSource(1)),
		func(ev Event) { events = append(events, ev) })

	assert.Contains(t, kindsOf(events), EventRoundReset)

	var shown []neural.NodeID
	for _, ev := range events {
		if ev.Kind == EventVisibility {
			shown = append(shown, ev.Diff.ShownNodes...)
		}
	}
	require.NotEmpty(t, shown, "the opening fog region must be announced")
	assert.Contains(t, shown, neural.NodeID("n0"))
	for _, id := range shown {
		assert.True(t, s.Visible().NodeVisible(id), "announced node %s must be visible", id)
	}
}

func TestExplorerMove(t *testing.T) {
	s := newTestSession(t)
	events := record(s)
	activateEdge(s, "e0")

	require.NoError(t, s.ExplorerMove("n1"))
	assert.Equal(t, neural.NodeID("n1"), s.Head())
	assert.Equal(t, []neural.NodeID{"n0", "n1"}, s.Path())
	assert.True(t, s.net.Node("n1").Activated)
	assert.True(t, s.net.Edge("e1").Unlocked, "arrival unlocks the next connection")
	assert.Equal(t,
		[]EventKind{EventNodeActivated, EventEdgeUnlocked, EventVisibility},
		kindsOf(*events))

	// Moving back is allowed and appends to the trail.
	require.NoError(t, s.ExplorerMove("n0"))
	assert.Equal(t, []neural.NodeID{"n0", "n1", "n0"}, s.Path())
}

func TestExplorerMoveRejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(s *Session)
		to      neural.NodeID
		wantErr error
	}{
		{
			name:    "unknown node",
			to:      "n99",
			wantErr: ErrUnknownNode,
		},
		{
			name:    "not adjacent",
			to:      "n2",
			wantErr: ErrNotAdjacent,
		},
		{
			name:    "connection not active",
			to:      "n1",
			wantErr: ErrEdgeNotActive,
		},
		{
			name: "corrupted node",
			setup: func(s *Session) {
				activateEdge(s, "e0")
				s.net.Node("n1").Blocked = true
			},
			to:      "n1",
			wantErr: ErrNodeCorrupted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t)
			if tt.setup != nil {
				tt.setup(s)
			}
			err := s.ExplorerMove(tt.to)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, neural.NodeID("n0"), s.Head(), "failed move must not change the trail")
		})
	}
}

func TestAttemptFlow(t *testing.T) {
	s := newTestSession(t)
	events := record(s)

	p, err := s.BeginEdgeAttempt("e0")
	require.NoError(t, err)
	assert.Equal(t, neural.EdgeSolving, s.net.Edge("e0").State)
	assert.NotEmpty(t, p.Checkpoints)
	assert.Equal(t, s.net.Edge("e0").Tier, p.Tier)

	// Swap in a known puzzle so the solution is in hand.
	known := puzzle.Puzzle{
		Width: 3, Height: 3, Tier: 1,
		Checkpoints: []puzzle.Cell{{X: 0, Y: 0}, {X: 2, Y: 0}},
	}
	s.attempts["e0"] = known

	res, err := s.SubmitTrace("e0", []puzzle.Cell{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}})
	require.NoError(t, err)
	assert.True(t, res.Solved)
	assert.Empty(t, res.Reason)
	assert.Equal(t, neural.EdgeActive, s.net.Edge("e0").State)

	require.NoError(t, s.ExplorerMove("n1"))

	var kinds []EventKind
	for _, ev := range *events {
		if ev.Kind == EventEdgeState {
			kinds = append(kinds, ev.Kind)
			assert.Equal(t, neural.EdgeID("e0"), ev.Edge)
		}
	}
	assert.Len(t, kinds, 2, "solving then active")
}

func TestAttemptFailureBurnsEdge(t *testing.T) {
	s := newTestSession(t)

	_, err := s.BeginEdgeAttempt("e0")
	require.NoError(t, err)
	known := puzzle.Puzzle{
		Width: 3, Height: 3, Tier: 1,
		Checkpoints: []puzzle.Cell{{X: 0, Y: 0}, {X: 2, Y: 0}},
	}
	s.attempts["e0"] = known

	res, err := s.SubmitTrace("e0", []puzzle.Cell{{X: 0, Y: 0}, {X: 2, Y: 0}})
	require.NoError(t, err)
	assert.False(t, res.Solved)
	assert.NotEmpty(t, res.Reason)
	assert.Equal(t, neural.EdgeFailed, s.net.Edge("e0").State)

	// A burned connection can be attempted again.
	_, err = s.BeginEdgeAttempt("e0")
	assert.NoError(t, err)
}

func TestBeginEdgeAttemptRejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(s *Session)
		edge    neural.EdgeID
		wantErr error
	}{
		{
			name:    "unknown edge",
			edge:    "e99",
			wantErr: ErrUnknownEdge,
		},
		{
			name:    "locked edge",
			edge:    "e1",
			wantErr: ErrEdgeLocked,
		},
		{
			name: "explorer not at the edge",
			setup: func(s *Session) {
				s.net.Edge("e2").Unlocked = true
			},
			edge:    "e2",
			wantErr: ErrNotAtEdge,
		},
		{
			name: "already active",
			setup: func(s *Session) {
				activateEdge(s, "e0")
			},
			edge:    "e0",
			wantErr: ErrNotAttemptable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t)
			if tt.setup != nil {
				tt.setup(s)
			}
			_, err := s.BeginEdgeAttempt(tt.edge)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSubmitTraceWithoutAttempt(t *testing.T) {
	s := newTestSession(t)
	_, err := s.SubmitTrace("e0", []puzzle.Cell{{X: 0, Y: 0}})
	assert.ErrorIs(t, err, ErrNoAttempt)
}

func TestWalls(t *testing.T) {
	s := newTestSession(t)
	events := record(s)

	require.NoError(t, s.SetEdgeState("e2", neural.EdgeBlocked))
	assert.Equal(t, neural.EdgeBlocked, s.net.Edge("e2").State)

	require.NoError(t, s.SetEdgeState("e2", neural.EdgeDormant))
	assert.Equal(t, neural.EdgeDormant, s.net.Edge("e2").State)

	var stateEvents int
	for _, ev := range *events {
		if ev.Kind == EventEdgeState {
			stateEvents++
		}
	}
	assert.Equal(t, 2, stateEvents)

	// The explorer's own road cannot be walled.
	activateEdge(s, "e0")
	err := s.SetEdgeState("e0", neural.EdgeBlocked)
	assert.ErrorIs(t, err, ErrBadTransition)

	// Arbitrary states are not a defender tool.
	err = s.SetEdgeState("e2", neural.EdgeActive)
	assert.ErrorIs(t, err, ErrBadTransition)
}

func TestWallsShrinkSight(t *testing.T) {
	s := newTestSession(t)

	// Open the road to n1 so sight reaches n2 through e1 once it is
	// unlocked.
	activateEdge(s, "e0")
	require.NoError(t, s.ExplorerMove("n1"))
	require.True(t, s.Visible().NodeVisible("n2"))

	events := record(s)
	require.NoError(t, s.SetEdgeState("e1", neural.EdgeBlocked))

	var diffSeen bool
	for _, ev := range *events {
		if ev.Kind == EventVisibility {
			diffSeen = true
			assert.Contains(t, ev.Diff.HiddenNodes, neural.NodeID("n2"))
		}
	}
	assert.True(t, diffSeen, "walling the connection must shrink the fog")
	assert.False(t, s.Visible().NodeVisible("n2"))
}

func TestBlockAndRepair(t *testing.T) {
	s := newTestSession(t)
	activateEdge(s, "e0")
	activateEdge(s, "e1")
	require.NoError(t, s.ExplorerMove("n1"))
	require.NoError(t, s.ExplorerMove("n2"))

	events := record(s)

	require.NoError(t, s.BlockNode("n1"))
	assert.True(t, s.net.Node("n1").Blocked)
	require.NoError(t, s.RepairNode("n1"))
	assert.False(t, s.net.Node("n1").Blocked)

	kinds := kindsOf(*events)
	assert.Contains(t, kinds, EventNodeBlocked)
	assert.Contains(t, kinds, EventNodeRepaired)

	assert.ErrorIs(t, s.BlockNode("n0"), ErrBadTarget, "entry is never a target")
	assert.ErrorIs(t, s.BlockNode("n2"), ErrBadTarget, "the explorer's node is never a target")
	assert.ErrorIs(t, s.BlockNode("n4"), ErrBadTarget, "only lit nodes can be corrupted")
	assert.ErrorIs(t, s.RepairNode("n3"), ErrNodeNotCorrupted)
}

func TestAdvanceCatchAndResolve(t *testing.T) {
	s := newTestSession(t)
	activateEdge(s, "e0")
	activateEdge(s, "e1")
	require.NoError(t, s.ExplorerMove("n1"))
	require.NoError(t, s.ExplorerMove("n2"))

	events := record(s)

	// Pursuer starts at n3, one unit from the explorer at n2.
	s.Advance(1.0)
	require.True(t, s.EncounterPending())
	kinds := kindsOf(*events)
	assert.Contains(t, kinds, EventPursuerMoved)
	assert.Contains(t, kinds, EventCaught)

	// Everything but resolution is on hold.
	assert.ErrorIs(t, s.ExplorerMove("n1"), ErrEncounterPending)
	assert.ErrorIs(t, s.BlockNode("n1"), ErrEncounterPending)

	require.NoError(t, s.ResolveEncounter())
	assert.False(t, s.EncounterPending())
	assert.Equal(t, neural.NodeID("n0"), s.Head(), "explorer falls back along the trail")
	assert.NotEqual(t, s.pursuer.At(), s.Head(), "pursuer retreats away from the explorer")

	assert.ErrorIs(t, s.ResolveEncounter(), ErrNoEncounter)
}

func TestAdvanceHacksThroughCorruption(t *testing.T) {
	s := newTestSession(t)
	activateEdge(s, "e0")
	require.NoError(t, s.ExplorerMove("n1"))
	require.NoError(t, s.ExplorerMove("n0"))

	// Corrupting n1 walls the pursuer off from the whole trail, so it
	// starts clearing the corruption instead of moving.
	require.NoError(t, s.BlockNode("n1"))

	events := record(s)
	s.Advance(1.0)
	assert.Contains(t, kindsOf(*events), EventHackStarted)
	assert.Equal(t, neural.NodeID("n1"), s.Pursuer().HackTarget())

	s.Advance(1.0)
	kinds := kindsOf(*events)
	assert.Contains(t, kinds, EventHackLanded)
	assert.Contains(t, kinds, EventNodeRepaired)
	assert.False(t, s.net.Node("n1").Blocked, "a landed hack clears the corruption")

	// With the way open again the chase resumes.
	s.Advance(1.0)
	assert.Contains(t, kindsOf(*events), EventPursuerMoved)
}

func TestAdvanceHackAbortsOnRepair(t *testing.T) {
	s := newTestSession(t)
	activateEdge(s, "e0")
	require.NoError(t, s.ExplorerMove("n1"))
	require.NoError(t, s.ExplorerMove("n0"))
	require.NoError(t, s.BlockNode("n1"))

	s.Advance(0.5)
	require.Equal(t, pursuit.StateHacking, s.Pursuer().State())

	// The protector repairing the target first makes the hack moot.
	events := record(s)
	require.NoError(t, s.RepairNode("n1"))
	s.Advance(0.5)
	assert.Contains(t, kindsOf(*events), EventHackAborted)
	assert.Equal(t, pursuit.StatePursuing, s.Pursuer().State())
}

func TestPauseGatesEverything(t *testing.T) {
	s := newTestSession(t)
	events := record(s)
	activateEdge(s, "e0")

	s.SetPaused(true)
	s.SetPaused(true) // repeat is a no-op
	assert.ErrorIs(t, s.ExplorerMove("n1"), ErrSessionPaused)
	assert.ErrorIs(t, s.SetEdgeState("e1", neural.EdgeBlocked), ErrSessionPaused)

	tickBefore := s.Tick()
	s.Advance(1.0)
	assert.Equal(t, tickBefore, s.Tick(), "time stands still while paused")

	s.SetPaused(false)
	require.NoError(t, s.ExplorerMove("n1"))

	kinds := kindsOf(*events)
	assert.Equal(t, 1, count(kinds, EventPaused))
	assert.Equal(t, 1, count(kinds, EventResumed))
}

func count(kinds []EventKind, k EventKind) int {
	n := 0
	for _, kind := range kinds {
		if kind == k {
			n++
		}
	}
	return n
}

func TestExplorerWalksIntoPursuer(t *testing.T) {
	s := newTestSession(t)
	for _, id := range []neural.EdgeID{"e0", "e1", "e2"} {
		activateEdge(s, id)
	}
	events := record(s)

	// n3 hosts the pursuer; stepping onto it is a catch, not a pass.
	for _, id := range []neural.NodeID{"n1", "n2", "n3"} {
		require.NoError(t, s.ExplorerMove(id))
	}
	assert.True(t, s.EncounterPending())
	assert.Contains(t, kindsOf(*events), EventCaught)
	assert.NotContains(t, kindsOf(*events), EventCoreReached)
}

func TestCoreReached(t *testing.T) {
	net := chainNet(t)
	s := NewSession(Config{VisionHops: 2}, quietPursuer(), net, rand.New(rand.NewSource(1)))
	// Move the pursuer off the road by resolving it out: simplest is
	// to relocate its spawn by pausing it and walking the explorer
	// around it is impossible on a chain, so use a branch instead.
	branch := net.AddNode(neural.Vec3{X: 3, Y: 1})
	_, err := net.AddEdge("n2", branch.ID)
	require.NoError(t, err)
	_, err = net.AddEdge(branch.ID, "n4")
	require.NoError(t, err)
	s.RoundReset()
	s.pursuer.SetPaused(true)

	events := record(s)
	for _, id := range []neural.EdgeID{"e0", "e1", "e4", "e5"} {
		activateEdge(s, id)
	}
	for _, id := range []neural.NodeID{"n1", "n2", "n5", "n4"} {
		require.NoError(t, s.ExplorerMove(id))
	}

	assert.True(t, s.CoreReached())
	assert.Contains(t, kindsOf(*events), EventCoreReached)

	assert.ErrorIs(t, s.ExplorerMove("n5"), ErrRoundOver)
	tick := s.Tick()
	s.Advance(1.0)
	assert.Equal(t, tick, s.Tick(), "a won round is frozen")
}

func TestRoundResetIdempotent(t *testing.T) {
	s := newTestSession(t)
	activateEdge(s, "e0")
	require.NoError(t, s.ExplorerMove("n1"))
	require.NoError(t, s.SetEdgeState("e2", neural.EdgeBlocked))
	s.Advance(0.5)

	s.RoundReset()
	firstNet := mustJSON(t, s.net)
	firstPath := append([]neural.NodeID(nil), s.Path()...)
	firstSpawn := s.pursuer.At()

	s.RoundReset()
	assert.Equal(t, firstNet, mustJSON(t, s.net))
	assert.Equal(t, firstPath, s.Path())
	assert.Equal(t, firstSpawn, s.pursuer.At())
	assert.Equal(t, 0, s.Tick())
	assert.False(t, s.EncounterPending())
	assert.False(t, s.CoreReached())

	// The fog replays from scratch after a reset.
	events := record(s)
	s.RoundReset()
	var replayed bool
	for _, ev := range *events {
		if ev.Kind == EventVisibility && len(ev.Diff.ShownNodes) > 0 {
			replayed = true
		}
	}
	assert.True(t, replayed)
}
