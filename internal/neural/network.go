// Package neural models the procedurally generated network the match is
// played on: nodes positioned in 3D space, the connections between them,
// and the mutable activation / lock / block flags the simulation drives.
package neural

import (
	"encoding/json"
	"errors"
	"fmt"
)

// NodeID identifies a node within a single network.
type NodeID string

// EdgeID identifies an edge within a single network.
type EdgeID string

// NodeKind classifies a node's structural role.
type NodeKind int

const (
	KindNormal NodeKind = iota
	KindEntry
	KindCore
	KindJunction
)

func (k NodeKind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindEntry:
		return "entry"
	case KindCore:
		return "core"
	case KindJunction:
		return "junction"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the kind as its string name.
func (k NodeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// EdgeState is the lifecycle state of a connection.
type EdgeState int

const (
	EdgeDormant EdgeState = iota
	EdgeActive
	EdgeSolving
	EdgeBlocked
	EdgePursuerPath
	EdgeFailed
)

func (s EdgeState) String() string {
	switch s {
	case EdgeDormant:
		return "dormant"
	case EdgeActive:
		return "active"
	case EdgeSolving:
		return "solving"
	case EdgeBlocked:
		return "blocked"
	case EdgePursuerPath:
		return "pursuer_path"
	case EdgeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the state as its string name.
func (s EdgeState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ParseEdgeState maps a wire name back to an EdgeState.
func ParseEdgeState(name string) (EdgeState, error) {
	switch name {
	case "dormant":
		return EdgeDormant, nil
	case "active":
		return EdgeActive, nil
	case "solving":
		return EdgeSolving, nil
	case "blocked":
		return EdgeBlocked, nil
	case "pursuer_path":
		return EdgePursuerPath, nil
	case "failed":
		return EdgeFailed, nil
	default:
		return EdgeDormant, fmt.Errorf("unknown edge state %q", name)
	}
}

// Node is a single point in the network.
type Node struct {
	ID         NodeID   `json:"id"`
	Pos        Vec3     `json:"pos"`
	Kind       NodeKind `json:"kind"`
	Activated  bool     `json:"activated"`
	Blocked    bool     `json:"blocked"`
	Decorative bool     `json:"decorative,omitempty"`

	// Neighbors lists adjacent nodes in the order their edges were
	// added. Traversals iterate this order, which keeps pathfinding
	// deterministic for a given network.
	Neighbors []NodeID `json:"neighbors"`
}

// Edge is a connection between two nodes. A and B are ordered as given
// at creation time and never swapped.
type Edge struct {
	ID         EdgeID    `json:"id"`
	A          NodeID    `json:"a"`
	B          NodeID    `json:"b"`
	State      EdgeState `json:"state"`
	Tier       int       `json:"tier"`
	Unlocked   bool      `json:"unlocked"`
	Decorative bool      `json:"decorative,omitempty"`
}

// Other returns the endpoint opposite n, or "" when n is not an
// endpoint of the edge.
func (e *Edge) Other(n NodeID) NodeID {
	switch n {
	case e.A:
		return e.B
	case e.B:
		return e.A
	default:
		return ""
	}
}

// Touches reports whether n is one of the edge's endpoints.
func (e *Edge) Touches(n NodeID) bool {
	return n == e.A || n == e.B
}

var (
	ErrNodeMissing = errors.New("neural: node not found")
	ErrEdgeExists  = errors.New("neural: edge already exists")
	ErrSelfEdge    = errors.New("neural: edge endpoints are the same node")
)

// Network is the full graph for one match. It is not safe for
// concurrent mutation; the owning session serializes access.
type Network struct {
	Nodes   map[NodeID]*Node
	Edges   map[EdgeID]*Edge
	EntryID NodeID
	CoreID  NodeID

	// Radius is the approximate bounding extent used during
	// generation, kept for renderers and camera fitting.
	Radius float64

	nodeOrder []NodeID
	edgeOrder []EdgeID
	byPair    map[NodeID]map[NodeID]EdgeID
	nextNode  int
	nextEdge  int
}

// NewNetwork returns an empty network.
func NewNetwork() *Network {
	return &Network{
		Nodes:  make(map[NodeID]*Node),
		Edges:  make(map[EdgeID]*Edge),
		byPair: make(map[NodeID]map[NodeID]EdgeID),
	}
}

// AddNode creates a node at pos and returns it. IDs are assigned
// sequentially in creation order.
func (n *Network) AddNode(pos Vec3) *Node {
	id := NodeID(fmt.Sprintf("n%d", n.nextNode))
	n.nextNode++
	node := &Node{ID: id, Pos: pos, Kind: KindNormal}
	n.Nodes[id] = node
	n.nodeOrder = append(n.nodeOrder, id)
	return node
}

// AddEdge connects a and b and returns the new edge. Adding a
// duplicate or self edge is an error, as is an unknown endpoint.
func (n *Network) AddEdge(a, b NodeID) (*Edge, error) {
	if a == b {
		return nil, ErrSelfEdge
	}
	na, ok := n.Nodes[a]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeMissing, a)
	}
	nb, ok := n.Nodes[b]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeMissing, b)
	}
	if _, ok := n.EdgeBetween(a, b); ok {
		return nil, fmt.Errorf("%w: %s-%s", ErrEdgeExists, a, b)
	}

	id := EdgeID(fmt.Sprintf("e%d", n.nextEdge))
	n.nextEdge++
	edge := &Edge{ID: id, A: a, B: b, State: EdgeDormant}
	n.Edges[id] = edge
	n.edgeOrder = append(n.edgeOrder, id)
	na.Neighbors = append(na.Neighbors, b)
	nb.Neighbors = append(nb.Neighbors, a)
	if n.byPair[a] == nil {
		n.byPair[a] = make(map[NodeID]EdgeID)
	}
	if n.byPair[b] == nil {
		n.byPair[b] = make(map[NodeID]EdgeID)
	}
	n.byPair[a][b] = id
	n.byPair[b][a] = id
	return edge, nil
}

// Node returns the node with the given ID, or nil.
func (n *Network) Node(id NodeID) *Node {
	return n.Nodes[id]
}

// Edge returns the edge with the given ID, or nil.
func (n *Network) Edge(id EdgeID) *Edge {
	return n.Edges[id]
}

// EdgeBetween returns the edge connecting a and b, if any.
func (n *Network) EdgeBetween(a, b NodeID) (EdgeID, bool) {
	id, ok := n.byPair[a][b]
	return id, ok
}

// NodeIDs returns all node IDs in creation order. Callers must not
// mutate the returned slice.
func (n *Network) NodeIDs() []NodeID {
	return n.nodeOrder
}

// EdgeIDs returns all edge IDs in creation order. Callers must not
// mutate the returned slice.
func (n *Network) EdgeIDs() []EdgeID {
	return n.edgeOrder
}

// NodeCount returns the number of nodes.
func (n *Network) NodeCount() int { return len(n.nodeOrder) }

// EdgeCount returns the number of edges.
func (n *Network) EdgeCount() int { return len(n.edgeOrder) }

// Degree returns the number of edges incident to id.
func (n *Network) Degree(id NodeID) int {
	node := n.Nodes[id]
	if node == nil {
		return 0
	}
	return len(node.Neighbors)
}

// EdgesAt returns the IDs of all edges incident to id, in edge
// creation order.
func (n *Network) EdgesAt(id NodeID) []EdgeID {
	var out []EdgeID
	for _, eid := range n.edgeOrder {
		if n.Edges[eid].Touches(id) {
			out = append(out, eid)
		}
	}
	return out
}

// FirstStructuralEdge returns the earliest-created non-decorative edge
// incident to the entry node. This is the edge unlocked at round
// start.
func (n *Network) FirstStructuralEdge() (EdgeID, bool) {
	for _, eid := range n.edgeOrder {
		e := n.Edges[eid]
		if !e.Decorative && e.Touches(n.EntryID) {
			return eid, true
		}
	}
	return "", false
}

// ResetFlags restores the network's mutable state to round-start
// conditions: only the entry node activated, no blocks, every edge
// dormant and locked except decorative edges and the first structural
// edge at the entry. Topology, kinds and tiers are untouched. Calling
// it repeatedly yields the same state.
func (n *Network) ResetFlags() {
	for _, id := range n.nodeOrder {
		node := n.Nodes[id]
		node.Activated = id == n.EntryID
		node.Blocked = false
	}
	for _, id := range n.edgeOrder {
		e := n.Edges[id]
		e.State = EdgeDormant
		e.Unlocked = e.Decorative
	}
	if first, ok := n.FirstStructuralEdge(); ok {
		n.Edges[first].Unlocked = true
	}
}

// HopDistances runs a breadth-first traversal over non-decorative
// edges from the given node, ignoring activation and block flags, and
// returns the hop count to every reachable node. Neighbors expand in
// declaration order.
func (n *Network) HopDistances(from NodeID) map[NodeID]int {
	dist := map[NodeID]int{from: 0}
	queue := []NodeID{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		node := n.Nodes[cur]
		if node == nil {
			continue
		}
		for _, next := range node.Neighbors {
			eid, ok := n.EdgeBetween(cur, next)
			if !ok || n.Edges[eid].Decorative {
				continue
			}
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = dist[cur] + 1
			queue = append(queue, next)
		}
	}
	return dist
}

// networkWire is the serialized shape of a Network.
type networkWire struct {
	Nodes  []*Node `json:"nodes"`
	Edges  []*Edge `json:"edges"`
	Entry  NodeID  `json:"entry"`
	Core   NodeID  `json:"core"`
	Radius float64 `json:"radius"`
}

// MarshalJSON encodes the network with nodes and edges as arrays in
// creation order.
func (n *Network) MarshalJSON() ([]byte, error) {
	w := networkWire{
		Nodes:  make([]*Node, 0, len(n.nodeOrder)),
		Edges:  make([]*Edge, 0, len(n.edgeOrder)),
		Entry:  n.EntryID,
		Core:   n.CoreID,
		Radius: n.Radius,
	}
	for _, id := range n.nodeOrder {
		w.Nodes = append(w.Nodes, n.Nodes[id])
	}
	for _, id := range n.edgeOrder {
		w.Edges = append(w.Edges, n.Edges[id])
	}
	return json.Marshal(w)
}
