// Package sim ties the network, the pursuer and the trace puzzles
// into one playable round: a single-threaded state machine advanced by
// a fixed tick and mutated through validated operations, reporting
// everything it does through synchronous events.
package sim

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/neurodive/neurodive-server/internal/neural"
	"github.com/neurodive/neurodive-server/internal/pursuit"
	"github.com/neurodive/neurodive-server/internal/puzzle"
	"github.com/neurodive/neurodive-server/internal/visibility"
)

// Config are the session tuning knobs.
type Config struct {
	VisionHops int `yaml:"vision_hops"` // fog radius in hops around lit nodes
}

// DefaultConfig returns the tuning used for a standard match.
func DefaultConfig() Config {
	return Config{VisionHops: 2}
}

func (c Config) withDefaults() Config {
	if c.VisionHops <= 0 {
		c.VisionHops = DefaultConfig().VisionHops
	}
	return c
}

var (
	ErrSessionPaused    = errors.New("sim: session is paused")
	ErrEncounterPending = errors.New("sim: encounter must be resolved first")
	ErrRoundOver        = errors.New("sim: round is over")
	ErrUnknownNode      = errors.New("sim: unknown node")
	ErrUnknownEdge      = errors.New("sim: unknown edge")
	ErrNotAdjacent      = errors.New("sim: target is not adjacent")
	ErrEdgeNotActive    = errors.New("sim: connection is not active")
	ErrEdgeLocked       = errors.New("sim: connection is locked")
	ErrNodeCorrupted    = errors.New("sim: node is corrupted")
	ErrNodeNotCorrupted = errors.New("sim: node is not corrupted")
	ErrNotAttemptable   = errors.New("sim: connection cannot be attempted")
	ErrNotAtEdge        = errors.New("sim: explorer is not at the connection")
	ErrNoAttempt        = errors.New("sim: no attempt in progress")
	ErrBadTransition    = errors.New("sim: state change not allowed")
	ErrBadTarget        = errors.New("sim: node cannot be corrupted")
	ErrNoEncounter      = errors.New("sim: no encounter to resolve")
)

// AttemptResult is the outcome of a submitted trace.
type AttemptResult struct {
	Edge   neural.EdgeID `json:"edge"`
	Solved bool          `json:"solved"`
	Reason string        `json:"reason,omitempty"`
}

// Session is one round of play over a generated network. It is not
// safe for concurrent use; the owner serializes every call.
type Session struct {
	cfg  Config
	pcfg pursuit.Config

	net     *neural.Network
	pursuer *pursuit.Engine
	tracker *visibility.Tracker
	rng     *rand.Rand

	path     []neural.NodeID
	attempts map[neural.EdgeID]puzzle.Puzzle

	tick        int
	clock       float64
	paused      bool
	caught      bool
	coreReached bool

	listeners []Listener
}

// NewSession starts a round on the given network. rng drives puzzle
// generation for the whole session lifetime. Listeners passed here are
// attached before the opening reset, so they receive the first round's
// round_reset and the initial visibility diff.
func NewSession(cfg Config, pcfg pursuit.Config, net *neural.Network, rng *rand.Rand, listeners ...Listener) *Session {
	s := &Session{
		cfg:       cfg.withDefaults(),
		pcfg:      pcfg,
		net:       net,
		tracker:   visibility.NewTracker(),
		rng:       rng,
		listeners: listeners,
	}
	s.RoundReset()
	return s
}

// Subscribe registers a listener for every event from now on. Events
// already emitted, including the opening reset, are not replayed.
func (s *Session) Subscribe(fn Listener) {
	s.listeners = append(s.listeners, fn)
}

// Network returns the network the session plays on. Callers treat it
// as read-only.
func (s *Session) Network() *neural.Network { return s.net }

// Pursuer returns the pursuer engine for read access.
func (s *Session) Pursuer() *pursuit.Engine { return s.pursuer }

// Path returns the explorer's movement history, entry first. Callers
// must not mutate it.
func (s *Session) Path() []neural.NodeID { return s.path }

// Head returns the node the explorer currently occupies.
func (s *Session) Head() neural.NodeID { return s.path[len(s.path)-1] }

// Tick returns the number of Advance calls this round.
func (s *Session) Tick() int { return s.tick }

// Clock returns the accumulated round time in seconds.
func (s *Session) Clock() float64 { return s.clock }

// Paused reports whether the session is frozen.
func (s *Session) Paused() bool { return s.paused }

// EncounterPending reports whether the pursuer holds the explorer.
func (s *Session) EncounterPending() bool { return s.caught }

// CoreReached reports whether the explorer has won the round.
func (s *Session) CoreReached() bool { return s.coreReached }

// Visible returns the current fog snapshot.
func (s *Session) Visible() visibility.Snapshot { return s.tracker.Current() }

func (s *Session) emit(ev Event) {
	ev.Tick = s.tick
	for _, fn := range s.listeners {
		fn(ev)
	}
}

func (s *Session) operable() error {
	switch {
	case s.paused:
		return ErrSessionPaused
	case s.caught:
		return ErrEncounterPending
	case s.coreReached:
		return ErrRoundOver
	}
	return nil
}

// refreshVisibility recomputes the fog from every lit, uncorrupted
// node and emits a diff when anything changed.
func (s *Session) refreshVisibility() {
	var sources []neural.NodeID
	for _, id := range s.net.NodeIDs() {
		node := s.net.Node(id)
		if node.Activated && !node.Blocked {
			sources = append(sources, id)
		}
	}
	snap := visibility.Compute(s.net, sources, s.cfg.VisionHops, visibility.PassGated)
	if d := s.tracker.Update(s.net, snap); !d.Empty() {
		s.emit(Event{Kind: EventVisibility, Diff: &d})
	}
}

// unlockFrontier makes every structural connection at the node
// attemptable and reports the fresh ones.
func (s *Session) unlockFrontier(id neural.NodeID) {
	for _, eid := range s.net.EdgesAt(id) {
		e := s.net.Edge(eid)
		if e.Decorative || e.Unlocked {
			continue
		}
		e.Unlocked = true
		s.emit(Event{Kind: EventEdgeUnlocked, Edge: eid})
	}
}

// ExplorerMove walks the explorer across an active connection onto an
// adjacent, uncorrupted node. First arrival lights the node up and
// unlocks its connections; stepping onto the pursuer is an encounter,
// stepping onto the core wins the round.
func (s *Session) ExplorerMove(to neural.NodeID) error {
	if err := s.operable(); err != nil {
		return err
	}
	node := s.net.Node(to)
	if node == nil {
		return fmt.Errorf("%w: %s", ErrUnknownNode, to)
	}
	head := s.Head()
	eid, ok := s.net.EdgeBetween(head, to)
	if !ok {
		return fmt.Errorf("%w: %s to %s", ErrNotAdjacent, head, to)
	}
	edge := s.net.Edge(eid)
	if edge.Decorative || edge.State != neural.EdgeActive {
		return fmt.Errorf("%w: %s", ErrEdgeNotActive, eid)
	}
	if node.Blocked {
		return fmt.Errorf("%w: %s", ErrNodeCorrupted, to)
	}

	s.path = append(s.path, to)
	s.pursuer.Replan()
	if !node.Activated {
		node.Activated = true
		s.emit(Event{Kind: EventNodeActivated, Node: to})
	}
	s.unlockFrontier(to)

	switch {
	case to == s.pursuer.At():
		ch := s.pursuer.Catch()
		s.caught = true
		s.emit(Event{Kind: EventCaught, Node: ch.Node})
	case to == s.net.CoreID:
		s.coreReached = true
		s.emit(Event{Kind: EventCoreReached, Node: to})
	}
	s.refreshVisibility()
	return nil
}

// BeginEdgeAttempt opens the trace challenge for a connection the
// explorer stands at. The connection turns solving until a trace is
// submitted or the pursuer tramples it.
func (s *Session) BeginEdgeAttempt(id neural.EdgeID) (puzzle.Puzzle, error) {
	if err := s.operable(); err != nil {
		return puzzle.Puzzle{}, err
	}
	edge := s.net.Edge(id)
	if edge == nil || edge.Decorative {
		return puzzle.Puzzle{}, fmt.Errorf("%w: %s", ErrUnknownEdge, id)
	}
	if !edge.Unlocked {
		return puzzle.Puzzle{}, fmt.Errorf("%w: %s", ErrEdgeLocked, id)
	}
	if !edge.Touches(s.Head()) {
		return puzzle.Puzzle{}, fmt.Errorf("%w: %s", ErrNotAtEdge, id)
	}
	switch edge.State {
	case neural.EdgeDormant, neural.EdgeFailed, neural.EdgePursuerPath:
	default:
		return puzzle.Puzzle{}, fmt.Errorf("%w: %s is %s", ErrNotAttemptable, id, edge.State)
	}

	p := puzzle.Generate(edge.Tier, s.rng)
	s.attempts[id] = p
	s.setEdgeState(edge, neural.EdgeSolving)
	s.refreshVisibility()
	return p, nil
}

// SubmitTrace resolves a pending attempt. A valid trace activates the
// connection; anything else burns it out. The returned result carries
// the validation detail; the error covers only invalid operations.
func (s *Session) SubmitTrace(id neural.EdgeID, trace []puzzle.Cell) (AttemptResult, error) {
	if err := s.operable(); err != nil {
		return AttemptResult{}, err
	}
	p, ok := s.attempts[id]
	if !ok {
		return AttemptResult{}, fmt.Errorf("%w: %s", ErrNoAttempt, id)
	}
	delete(s.attempts, id)
	edge := s.net.Edge(id)

	res := AttemptResult{Edge: id}
	if err := p.Validate(trace); err != nil {
		res.Reason = err.Error()
		s.setEdgeState(edge, neural.EdgeFailed)
	} else {
		res.Solved = true
		s.setEdgeState(edge, neural.EdgeActive)
	}
	s.refreshVisibility()
	return res, nil
}

// SetEdgeState applies a defender state change: raising a wall on a
// dormant, burned or trampled connection, or clearing one back to
// dormant. All other transitions are rejected.
func (s *Session) SetEdgeState(id neural.EdgeID, target neural.EdgeState) error {
	if err := s.operable(); err != nil {
		return err
	}
	edge := s.net.Edge(id)
	if edge == nil || edge.Decorative {
		return fmt.Errorf("%w: %s", ErrUnknownEdge, id)
	}

	allowed := false
	switch target {
	case neural.EdgeBlocked:
		allowed = edge.State == neural.EdgeDormant ||
			edge.State == neural.EdgeFailed ||
			edge.State == neural.EdgePursuerPath
	case neural.EdgeDormant:
		allowed = edge.State == neural.EdgeBlocked
	}
	if !allowed {
		return fmt.Errorf("%w: %s from %s to %s", ErrBadTransition, id, edge.State, target)
	}

	s.setEdgeState(edge, target)
	s.pursuer.Replan()
	s.refreshVisibility()
	return nil
}

// BlockNode corrupts a lit node to wall the pursuer off: never the
// entry, never the node under the explorer.
func (s *Session) BlockNode(id neural.NodeID) error {
	if err := s.operable(); err != nil {
		return err
	}
	node := s.net.Node(id)
	if node == nil || node.Decorative {
		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	if node.Blocked {
		return fmt.Errorf("%w: %s", ErrNodeCorrupted, id)
	}
	if !node.Activated || id == s.net.EntryID || id == s.Head() {
		return fmt.Errorf("%w: %s", ErrBadTarget, id)
	}
	node.Blocked = true
	s.pursuer.Replan()
	s.emit(Event{Kind: EventNodeBlocked, Node: id})
	s.refreshVisibility()
	return nil
}

// RepairNode clears a corrupted node.
func (s *Session) RepairNode(id neural.NodeID) error {
	if err := s.operable(); err != nil {
		return err
	}
	node := s.net.Node(id)
	if node == nil || node.Decorative {
		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	if !node.Blocked {
		return fmt.Errorf("%w: %s", ErrNodeNotCorrupted, id)
	}
	node.Blocked = false
	s.pursuer.Replan()
	s.emit(Event{Kind: EventNodeRepaired, Node: id})
	s.refreshVisibility()
	return nil
}

// ResolveEncounter ends a catch: the explorer falls back along their
// own trail until they are clear of the catch site, and the pursuer
// retreats and resumes the chase at reduced ramp.
func (s *Session) ResolveEncounter() error {
	if s.paused {
		return ErrSessionPaused
	}
	if !s.caught {
		return ErrNoEncounter
	}
	catch := s.pursuer.At()
	s.pushbackHead(catch)
	at := s.pursuer.ResolveEncounter(s.net, s.path)
	s.caught = false
	s.emit(Event{Kind: EventEncounterResolved, Node: s.Head()})
	s.emit(Event{Kind: EventPursuerMoved, Node: at})
	s.refreshVisibility()
	return nil
}

// pushbackHead trims the explorer's trail until the head is at least
// the pushback distance from the catch site and stands on a safe
// node, bottoming out at the entry.
func (s *Session) pushbackHead(catch neural.NodeID) {
	dist := s.net.HopDistances(catch)
	hops := s.pcfg.PushbackHops
	if hops <= 0 {
		hops = pursuit.DefaultConfig().PushbackHops
	}
	for len(s.path) > 1 {
		head := s.Head()
		d, ok := dist[head]
		if ok && d >= hops && !s.net.Node(head).Blocked {
			return
		}
		s.path = s.path[:len(s.path)-1]
	}
}

// SetPaused freezes or resumes the whole session, pursuer included.
func (s *Session) SetPaused(paused bool) {
	if paused == s.paused {
		return
	}
	s.paused = paused
	s.pursuer.SetPaused(paused)
	if paused {
		s.emit(Event{Kind: EventPaused})
	} else {
		s.emit(Event{Kind: EventResumed})
	}
}

// RoundReset restores round-start conditions on the same network:
// flags reset, trail back to the entry, the pursuer returned to its
// spawn with part of its speed ramp kept, pending attempts dropped and
// the fog replayed from scratch. Resetting an already-reset round
// changes nothing but the replay.
func (s *Session) RoundReset() {
	s.net.ResetFlags()
	s.path = []neural.NodeID{s.net.EntryID}
	if s.pursuer == nil {
		s.pursuer = pursuit.NewEngine(s.pcfg, pursuit.SpawnNode(s.net))
	} else {
		s.pursuer.RoundReset(s.net)
	}
	s.attempts = make(map[neural.EdgeID]puzzle.Puzzle)
	s.tick = 0
	s.clock = 0
	s.paused = false
	s.caught = false
	s.coreReached = false
	s.tracker.Reset()
	s.emit(Event{Kind: EventRoundReset})
	s.refreshVisibility()
}

// Advance moves simulated time forward by dt seconds: the pursuer
// acts, its effects become events, and the fog is refreshed. While
// paused or after the core is reached, time stands still.
func (s *Session) Advance(dt float64) {
	if dt <= 0 || s.paused || s.coreReached {
		return
	}
	s.tick++
	s.clock += dt

	for _, c := range s.pursuer.Advance(s.net, s.path, dt) {
		switch c.Kind {
		case pursuit.ChangeTrail:
			// A trampled connection kills any trace in progress.
			delete(s.attempts, c.Edge)
			s.emit(Event{Kind: EventEdgeState, Edge: c.Edge, State: neural.EdgePursuerPath.String()})
		case pursuit.ChangeNode:
			s.emit(Event{Kind: EventPursuerMoved, Node: c.Node})
		case pursuit.ChangeHackStart:
			s.emit(Event{Kind: EventHackStarted, Node: c.Node})
		case pursuit.ChangeHackDone:
			// A landed hack clears the corruption in its way.
			s.emit(Event{Kind: EventHackLanded, Node: c.Node})
			s.emit(Event{Kind: EventNodeRepaired, Node: c.Node})
		case pursuit.ChangeHackAbort:
			s.emit(Event{Kind: EventHackAborted, Node: c.Node})
		case pursuit.ChangeEdgeCleared:
			s.emit(Event{Kind: EventEdgeState, Edge: c.Edge, State: neural.EdgeDormant.String()})
		case pursuit.ChangeCaught:
			s.caught = true
			s.emit(Event{Kind: EventCaught, Node: c.Node})
		}
	}
	s.refreshVisibility()
}

func (s *Session) setEdgeState(edge *neural.Edge, state neural.EdgeState) {
	if edge.State == state {
		return
	}
	edge.State = state
	s.emit(Event{Kind: EventEdgeState, Edge: edge.ID, State: state.String()})
}
