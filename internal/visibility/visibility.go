// Package visibility computes the explorer's fog of war: the part of
// the network within a bounded number of hops from the nodes the
// explorer has lit up, and the tick-to-tick differences a client needs
// to reveal or hide geometry exactly once.
package visibility

import (
	"github.com/neurodive/neurodive-server/internal/neural"
)

// PassFunc decides whether sight travels across an edge.
type PassFunc func(net *neural.Network, e *neural.Edge) bool

// PassOpen lets sight travel along any structural edge the protector
// has not walled off.
func PassOpen(net *neural.Network, e *neural.Edge) bool {
	return !e.Decorative && e.State != neural.EdgeBlocked
}

// PassGated additionally stops sight at edges the explorer has not yet
// unlocked or has burned with a failed trace. Session fog uses this
// variant.
func PassGated(net *neural.Network, e *neural.Edge) bool {
	return PassOpen(net, e) && e.Unlocked && e.State != neural.EdgeFailed
}

// Snapshot is the visible portion of the network at one instant.
type Snapshot struct {
	Nodes map[neural.NodeID]bool
	Edges map[neural.EdgeID]bool
}

// NodeVisible reports whether the node is inside the lit region.
func (s Snapshot) NodeVisible(id neural.NodeID) bool { return s.Nodes[id] }

// EdgeVisible reports whether the edge is inside the lit region.
func (s Snapshot) EdgeVisible(id neural.EdgeID) bool { return s.Edges[id] }

// Compute runs a breadth-first sweep from the source nodes, bounded to
// the given hop budget, crossing only edges the pass function allows.
// Blocked nodes become visible when reached but are opaque: sight does
// not continue through them. An edge is visible when both of its
// endpoints are. Neighbor expansion follows declaration order, so the
// result is deterministic for a given network.
func Compute(net *neural.Network, sources []neural.NodeID, hops int, pass PassFunc) Snapshot {
	snap := Snapshot{
		Nodes: make(map[neural.NodeID]bool),
		Edges: make(map[neural.EdgeID]bool),
	}

	type entry struct {
		id    neural.NodeID
		depth int
	}
	var queue []entry
	for _, id := range sources {
		if net.Node(id) == nil || snap.Nodes[id] {
			continue
		}
		snap.Nodes[id] = true
		queue = append(queue, entry{id, 0})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		node := net.Node(cur.id)
		if cur.depth >= hops || node.Blocked {
			continue
		}
		for _, next := range node.Neighbors {
			eid, ok := net.EdgeBetween(cur.id, next)
			if !ok || !pass(net, net.Edge(eid)) {
				continue
			}
			if snap.Nodes[next] {
				continue
			}
			snap.Nodes[next] = true
			queue = append(queue, entry{next, cur.depth + 1})
		}
	}

	for _, eid := range net.EdgeIDs() {
		e := net.Edge(eid)
		if e.Decorative {
			continue
		}
		if snap.Nodes[e.A] && snap.Nodes[e.B] {
			snap.Edges[eid] = true
		}
	}
	return snap
}

// Diff lists what changed between two snapshots, in network creation
// order.
type Diff struct {
	ShownNodes  []neural.NodeID `json:"shown_nodes,omitempty"`
	HiddenNodes []neural.NodeID `json:"hidden_nodes,omitempty"`
	ShownEdges  []neural.EdgeID `json:"shown_edges,omitempty"`
	HiddenEdges []neural.EdgeID `json:"hidden_edges,omitempty"`
}

// Empty reports whether the diff carries no changes.
func (d Diff) Empty() bool {
	return len(d.ShownNodes) == 0 && len(d.HiddenNodes) == 0 &&
		len(d.ShownEdges) == 0 && len(d.HiddenEdges) == 0
}

// Tracker remembers the last snapshot handed to Update so each
// appearance or disappearance is reported exactly once.
type Tracker struct {
	cur Snapshot
}

// NewTracker returns a tracker with nothing visible yet.
func NewTracker() *Tracker {
	return &Tracker{cur: Snapshot{
		Nodes: make(map[neural.NodeID]bool),
		Edges: make(map[neural.EdgeID]bool),
	}}
}

// Update replaces the tracked snapshot and returns the changes since
// the previous one.
func (t *Tracker) Update(net *neural.Network, snap Snapshot) Diff {
	var d Diff
	for _, id := range net.NodeIDs() {
		now, was := snap.Nodes[id], t.cur.Nodes[id]
		switch {
		case now && !was:
			d.ShownNodes = append(d.ShownNodes, id)
		case !now && was:
			d.HiddenNodes = append(d.HiddenNodes, id)
		}
	}
	for _, id := range net.EdgeIDs() {
		now, was := snap.Edges[id], t.cur.Edges[id]
		switch {
		case now && !was:
			d.ShownEdges = append(d.ShownEdges, id)
		case !now && was:
			d.HiddenEdges = append(d.HiddenEdges, id)
		}
	}
	t.cur = snap
	return d
}

// Current returns the last snapshot given to Update.
func (t *Tracker) Current() Snapshot { return t.cur }

// Reset forgets everything, so the next Update reports the whole
// visible region as newly shown.
func (t *Tracker) Reset() {
	t.cur = Snapshot{
		Nodes: make(map[neural.NodeID]bool),
		Edges: make(map[neural.EdgeID]bool),
	}
}
