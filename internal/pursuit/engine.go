package pursuit

import (
	"encoding/json"

	"github.com/neurodive/neurodive-server/internal/neural"
)

// State is the pursuer's behavior mode.
type State int

const (
	StatePursuing State = iota
	StateHacking
	StateCaught
	StatePaused
)

func (s State) String() string {
	switch s {
	case StatePursuing:
		return "pursuing"
	case StateHacking:
		return "hacking"
	case StateCaught:
		return "caught"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the state as its string name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ChangeKind labels one observable effect of advancing the pursuer.
type ChangeKind int

const (
	ChangeTrail ChangeKind = iota
	ChangeNode
	ChangeHackStart
	ChangeHackDone
	ChangeHackAbort
	ChangeEdgeCleared
	ChangeCaught
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeTrail:
		return "trail"
	case ChangeNode:
		return "node"
	case ChangeHackStart:
		return "hack_start"
	case ChangeHackDone:
		return "hack_done"
	case ChangeHackAbort:
		return "hack_abort"
	case ChangeEdgeCleared:
		return "edge_cleared"
	case ChangeCaught:
		return "caught"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the kind as its string name.
func (k ChangeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Change is one observable effect of an engine step, in the order it
// happened.
type Change struct {
	Kind ChangeKind    `json:"kind"`
	Node neural.NodeID `json:"node,omitempty"`
	Edge neural.EdgeID `json:"edge,omitempty"`
}

// Config are the pursuer tuning knobs. Zero values fall back to
// DefaultConfig.
type Config struct {
	BaseSpeed    float64 `yaml:"base_speed"`    // units per second at round start
	SpeedRamp    float64 `yaml:"speed_ramp"`    // fractional speed gain per second
	SpeedCap     float64 `yaml:"speed_cap"`     // units per second, ramp ceiling
	HackDuration float64 `yaml:"hack_duration"` // seconds to clear one corrupted node
	PushbackHops int     `yaml:"pushback_hops"` // retreat distance after an encounter
}

// DefaultConfig returns the tuning used for a standard match.
func DefaultConfig() Config {
	return Config{
		BaseSpeed:    1.2,
		SpeedRamp:    0.01,
		SpeedCap:     3.0,
		HackDuration: 4,
		PushbackHops: 2,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaseSpeed <= 0 {
		c.BaseSpeed = d.BaseSpeed
	}
	if c.SpeedRamp < 0 {
		c.SpeedRamp = d.SpeedRamp
	}
	if c.SpeedCap <= 0 {
		c.SpeedCap = d.SpeedCap
	}
	if c.HackDuration <= 0 {
		c.HackDuration = d.HackDuration
	}
	if c.PushbackHops <= 0 {
		c.PushbackHops = d.PushbackHops
	}
	return c
}

// rampDecay is the fraction of elapsed ramp time kept after an
// encounter or a round transition, so the pursuer resumes slower but
// not from scratch.
const rampDecay = 0.5

// Engine is the pursuer's full runtime state. It chases the nearest
// node of the explorer's trail, hacks through corrupted nodes when the
// trail is walled off entirely, and reports every observable effect as
// a Change. Not safe for concurrent use; the owning session serializes
// access.
type Engine struct {
	cfg Config

	state  State
	resume State // mode to restore when unpausing

	at       neural.NodeID // last node reached
	next     neural.NodeID // node currently moving toward, "" when at rest
	progress float64       // distance covered along the current edge
	plan     []neural.NodeID
	dirty    bool // route invalidated by a mutation

	elapsed       float64 // seconds of active pursuit, drives the ramp
	hackRemaining float64
	hackTarget    neural.NodeID
}

// NewEngine returns a pursuer standing on spawn, ready to chase.
func NewEngine(cfg Config, spawn neural.NodeID) *Engine {
	return &Engine{
		cfg:   cfg.withDefaults(),
		state: StatePursuing,
		at:    spawn,
		dirty: true,
	}
}

// State returns the current behavior mode.
func (e *Engine) State() State { return e.state }

// At returns the last node the pursuer reached. While moving, this is
// the trailing end of the edge it is on.
func (e *Engine) At() neural.NodeID { return e.at }

// Plan returns the remaining route, next hop first. Callers must not
// mutate it.
func (e *Engine) Plan() []neural.NodeID { return e.plan }

// HackTarget returns the node being cleared while hacking, or "".
func (e *Engine) HackTarget() neural.NodeID {
	if e.state != StateHacking {
		return ""
	}
	return e.hackTarget
}

// Speed returns the current ramped speed in units per second.
func (e *Engine) Speed() float64 {
	s := e.cfg.BaseSpeed * (1 + e.elapsed*e.cfg.SpeedRamp)
	if s > e.cfg.SpeedCap {
		s = e.cfg.SpeedCap
	}
	return s
}

// Position returns the pursuer's interpolated location for renderers.
func (e *Engine) Position(net *neural.Network) neural.Vec3 {
	from := net.Node(e.at)
	if from == nil {
		return neural.Vec3{}
	}
	if e.next == "" {
		return from.Pos
	}
	to := net.Node(e.next)
	length := from.Pos.DistanceTo(to.Pos)
	if length == 0 {
		return to.Pos
	}
	t := e.progress / length
	if t > 1 {
		t = 1
	}
	return from.Pos.Add(to.Pos.Sub(from.Pos).Scale(t))
}

// SetPaused freezes or resumes the pursuer. Pausing mid-hack keeps the
// hack timer where it was.
func (e *Engine) SetPaused(paused bool) {
	switch {
	case paused && e.state != StatePaused && e.state != StateCaught:
		e.resume = e.state
		e.state = StatePaused
	case !paused && e.state == StatePaused:
		e.state = e.resume
	}
}

// Catch marks the pursuer as having the explorer, freezing it until
// the encounter is resolved. Used when the explorer walks into the
// pursuer; the engine detects the reverse itself during Advance.
func (e *Engine) Catch() Change {
	e.state = StateCaught
	e.next = ""
	e.progress = 0
	e.plan = nil
	e.hackRemaining = 0
	e.hackTarget = ""
	return Change{Kind: ChangeCaught, Node: e.at}
}

// ResolveEncounter relocates the pursuer away from the catch site,
// decays part of its speed ramp and resumes the chase against the
// explorer's trimmed trail. It returns the node the pursuer now
// occupies.
func (e *Engine) ResolveEncounter(net *neural.Network, trail []neural.NodeID) neural.NodeID {
	e.at = relocation(net, e.at, trail, e.cfg.PushbackHops)
	e.next = ""
	e.progress = 0
	e.plan = nil
	e.dirty = true
	e.state = StatePursuing
	e.elapsed *= rampDecay
	e.hackRemaining = 0
	e.hackTarget = ""
	return e.at
}

// RoundReset returns the pursuer to its computed spawn for the next
// round on the same network, keeping part of the speed ramp.
func (e *Engine) RoundReset(net *neural.Network) neural.NodeID {
	e.at = SpawnNode(net)
	e.next = ""
	e.progress = 0
	e.plan = nil
	e.dirty = true
	e.state = StatePursuing
	e.elapsed *= rampDecay
	e.hackRemaining = 0
	e.hackTarget = ""
	return e.at
}

// Replan marks the current route stale so the next Advance rebuilds
// it. Call after any mutation the route may depend on: the explorer
// moved, an edge was walled, a node was corrupted or repaired.
func (e *Engine) Replan() {
	e.dirty = true
}

// Advance moves the pursuer by dt seconds against the explorer's trail
// and returns every observable effect in order. While hacking the
// pursuer stands still; while paused or holding the explorer it does
// nothing. An empty trail means the round has not started: the pursuer
// idles in place.
func (e *Engine) Advance(net *neural.Network, trail []neural.NodeID, dt float64) []Change {
	if dt <= 0 || e.state == StatePaused || e.state == StateCaught || len(trail) == 0 {
		return nil
	}
	e.elapsed += dt

	onTrail := make(map[neural.NodeID]bool, len(trail))
	for _, id := range trail {
		onTrail[id] = true
	}
	if e.next == "" && onTrail[e.at] {
		return []Change{e.Catch()}
	}

	if e.state == StateHacking {
		return e.advanceHack(net, trail, dt)
	}

	var changes []Change
	if e.dirty || (e.next == "" && len(e.plan) == 0) {
		if hack := e.replan(net, trail); hack != nil {
			return append(changes, *hack)
		}
	}

	budget := e.Speed() * dt
	for budget > 0 {
		if e.next == "" {
			if len(e.plan) == 0 {
				break
			}
			e.next = e.plan[0]
			e.plan = e.plan[1:]
			e.progress = 0
		}
		length := net.Node(e.at).Pos.DistanceTo(net.Node(e.next).Pos)
		remaining := length - e.progress
		if budget < remaining {
			e.progress += budget
			break
		}
		budget -= remaining
		changes = append(changes, e.arrive(net, onTrail)...)
		if e.state == StateCaught {
			break
		}
		if hack := e.replan(net, trail); hack != nil {
			return append(changes, *hack)
		}
	}
	return changes
}

// arrive finishes the current hop: the crossed edge becomes pursuer
// trail, the pursuer lands on the next node, and landing on the
// explorer's trail is a catch.
func (e *Engine) arrive(net *neural.Network, onTrail map[neural.NodeID]bool) []Change {
	var changes []Change
	if eid, ok := net.EdgeBetween(e.at, e.next); ok {
		edge := net.Edge(eid)
		if edge.State != neural.EdgePursuerPath && edge.State != neural.EdgeBlocked {
			edge.State = neural.EdgePursuerPath
			changes = append(changes, Change{Kind: ChangeTrail, Edge: eid})
		}
	}
	e.at = e.next
	e.next = ""
	e.progress = 0
	changes = append(changes, Change{Kind: ChangeNode, Node: e.at})
	if onTrail[e.at] {
		changes = append(changes, e.Catch())
	}
	return changes
}

// replan rebuilds the route toward the nearest trail node. When every
// route is closed it looks for a corrupted node to hack through; the
// returned change, if any, is the hack starting. With no route and no
// hack candidate the pursuer has nothing to do and idles until the
// next mutation.
func (e *Engine) replan(net *neural.Network, trail []neural.NodeID) *Change {
	e.dirty = false
	from := e.at
	if e.next != "" {
		// Mid-edge: finish the current hop, then follow the new route
		// from its far end.
		from = e.next
	}
	if path, ok := PlanPath(net, from, trail); ok {
		e.plan = path
		return nil
	}
	e.plan = nil
	if target, ok := FindHackTarget(net, e.at, trail); ok && e.next == "" {
		e.state = StateHacking
		e.hackTarget = target
		e.hackRemaining = e.cfg.HackDuration
		return &Change{Kind: ChangeHackStart, Node: target}
	}
	return nil
}

// advanceHack runs the hack timer. A hack is abandoned when the target
// was repaired out from under it or a mutation reopened a route to the
// trail; landing it clears the target and every wall touching it, then
// the chase replans immediately.
func (e *Engine) advanceHack(net *neural.Network, trail []neural.NodeID, dt float64) []Change {
	target := net.Node(e.hackTarget)
	if target == nil || !target.Blocked {
		return e.abortHack()
	}
	if e.dirty {
		e.dirty = false
		if _, ok := PlanPath(net, e.at, trail); ok {
			return e.abortHack()
		}
	}

	e.hackRemaining -= dt
	if e.hackRemaining > 0 {
		return nil
	}

	id := e.hackTarget
	e.state = StatePursuing
	e.hackRemaining = 0
	e.hackTarget = ""
	e.dirty = true

	target.Blocked = false
	changes := []Change{{Kind: ChangeHackDone, Node: id}}
	for _, eid := range net.EdgesAt(id) {
		edge := net.Edge(eid)
		if edge.State == neural.EdgeBlocked {
			edge.State = neural.EdgeDormant
			changes = append(changes, Change{Kind: ChangeEdgeCleared, Edge: eid})
		}
	}
	return changes
}

func (e *Engine) abortHack() []Change {
	id := e.hackTarget
	e.state = StatePursuing
	e.hackRemaining = 0
	e.hackTarget = ""
	e.dirty = true
	return []Change{{Kind: ChangeHackAbort, Node: id}}
}
