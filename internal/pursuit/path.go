// Package pursuit drives the autonomous process hunting the explorer:
// route planning over the network, ramping movement, hacks that bore
// through corrupted nodes, and catch handling.
package pursuit

import (
	"math"

	"github.com/neurodive/neurodive-server/internal/neural"
)

// passableEdge reports whether the pursuer may cross the edge.
// Decorative edges are scenery and walled-off edges are the defender's
// barrier; everything else is open to it, locked or not.
func passableEdge(e *neural.Edge) bool {
	return !e.Decorative && e.State != neural.EdgeBlocked
}

// enterable reports whether the pursuer may stand on the node. The
// exempt node is treated as clear, which is how a hack candidate is
// tested before committing to it.
func enterable(node *neural.Node, exempt neural.NodeID) bool {
	if node == nil || node.Decorative {
		return false
	}
	return !node.Blocked || node.ID == exempt
}

// PlanPath returns the hop-shortest route from start to the nearest of
// the targets, as the node sequence after start. Corrupted nodes and
// walled edges stop the search. Neighbor expansion follows declaration
// order and distance ties keep the first-discovered target, so the
// route is stable for a given network state. The second return is
// false when no target is reachable; a nil path with true means start
// already sits on a target.
func PlanPath(net *neural.Network, start neural.NodeID, targets []neural.NodeID) ([]neural.NodeID, bool) {
	return planExempt(net, start, targets, "")
}

// planExempt is PlanPath with one node's corruption hypothetically
// cleared.
func planExempt(net *neural.Network, start neural.NodeID, targets []neural.NodeID, exempt neural.NodeID) ([]neural.NodeID, bool) {
	if net.Node(start) == nil || len(targets) == 0 {
		return nil, false
	}
	want := make(map[neural.NodeID]bool, len(targets))
	for _, id := range targets {
		if net.Node(id) != nil {
			want[id] = true
		}
	}
	if len(want) == 0 {
		return nil, false
	}
	if want[start] {
		return nil, true
	}

	parent := map[neural.NodeID]neural.NodeID{start: start}
	queue := []neural.NodeID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range net.Node(cur).Neighbors {
			eid, ok := net.EdgeBetween(cur, next)
			if !ok || !passableEdge(net.Edge(eid)) {
				continue
			}
			if !enterable(net.Node(next), exempt) {
				continue
			}
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = cur
			if want[next] {
				return tracePath(parent, start, next), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

func tracePath(parent map[neural.NodeID]neural.NodeID, start, goal neural.NodeID) []neural.NodeID {
	var rev []neural.NodeID
	for cur := goal; cur != start; cur = parent[cur] {
		rev = append(rev, cur)
	}
	path := make([]neural.NodeID, len(rev))
	for i, id := range rev {
		path[len(rev)-1-i] = id
	}
	return path
}

// reachable returns the set of nodes the pursuer can walk to from
// start, honoring corruption and walls.
func reachable(net *neural.Network, start neural.NodeID) map[neural.NodeID]bool {
	seen := map[neural.NodeID]bool{start: true}
	queue := []neural.NodeID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range net.Node(cur).Neighbors {
			eid, ok := net.EdgeBetween(cur, next)
			if !ok || !passableEdge(net.Edge(eid)) {
				continue
			}
			if !enterable(net.Node(next), "") || seen[next] {
				continue
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}
	return seen
}

// FindHackTarget picks the corrupted node a hack will clear when no
// route to the explorer's trail exists. An adjacent corrupted node
// whose clearing would open a route wins outright; otherwise the
// straight-line nearest corrupted node on the edge of the reachable
// region is taken, so the pursuer at least digs toward the trail. The
// second return is false when nothing qualifies.
func FindHackTarget(net *neural.Network, start neural.NodeID, targets []neural.NodeID) (neural.NodeID, bool) {
	origin := net.Node(start)
	if origin == nil {
		return "", false
	}

	for _, nb := range origin.Neighbors {
		node := net.Node(nb)
		if node == nil || node.Decorative || !node.Blocked {
			continue
		}
		eid, ok := net.EdgeBetween(start, nb)
		if !ok || !passableEdge(net.Edge(eid)) {
			continue
		}
		if _, ok := planExempt(net, start, targets, nb); ok {
			return nb, true
		}
	}

	open := reachable(net, start)
	var target neural.NodeID
	best := math.Inf(1)
	for _, id := range net.NodeIDs() {
		node := net.Node(id)
		if node.Decorative || !node.Blocked {
			continue
		}
		if !bordersOpen(net, id, open) {
			continue
		}
		if d := origin.Pos.DistanceTo(node.Pos); d < best {
			target, best = id, d
		}
	}
	if target == "" {
		return "", false
	}
	return target, true
}

// bordersOpen reports whether the corrupted node touches the reachable
// region through a passable edge.
func bordersOpen(net *neural.Network, id neural.NodeID, open map[neural.NodeID]bool) bool {
	for _, nb := range net.Node(id).Neighbors {
		eid, ok := net.EdgeBetween(id, nb)
		if !ok || !passableEdge(net.Edge(eid)) {
			continue
		}
		if open[nb] && !net.Node(nb).Blocked {
			return true
		}
	}
	return false
}

// SpawnNode picks where the pursuer materializes at round start: the
// deepest node from the entry that is not the core, so the chase
// starts guarding the objective rather than camping the entry.
func SpawnNode(net *neural.Network) neural.NodeID {
	hops := net.HopDistances(net.EntryID)
	spawn := net.CoreID
	bestDepth := -1
	for _, id := range net.NodeIDs() {
		if id == net.EntryID || id == net.CoreID || net.Node(id).Decorative {
			continue
		}
		if d, ok := hops[id]; ok && d > bestDepth {
			spawn, bestDepth = id, d
		}
	}
	return spawn
}

// relocation returns the node the pursuer retreats to after an
// encounter: the hop ring at the given distance from the catch node
// (or the farthest reachable ring when the network is smaller),
// preferring candidates off the explorer's trail and deepest away from
// their new position.
func relocation(net *neural.Network, from neural.NodeID, trail []neural.NodeID, hops int) neural.NodeID {
	onTrail := make(map[neural.NodeID]bool, len(trail))
	for _, id := range trail {
		onTrail[id] = true
	}
	avoid := from
	if len(trail) > 0 {
		avoid = trail[len(trail)-1]
	}

	fromCatch := net.HopDistances(from)
	ring := -1
	for _, d := range fromCatch {
		if d <= hops && d > ring {
			ring = d
		}
	}
	if ring <= 0 {
		return from
	}

	fromAvoid := net.HopDistances(avoid)
	dest := from
	bestAway := -1
	bestClear := false
	for _, id := range net.NodeIDs() {
		if fromCatch[id] != ring || id == avoid || net.Node(id).Decorative {
			continue
		}
		clear := !onTrail[id]
		if bestClear && !clear {
			continue
		}
		away, ok := fromAvoid[id]
		if !ok {
			away = math.MaxInt
		}
		if clear == bestClear && away <= bestAway {
			continue
		}
		dest, bestAway, bestClear = id, away, clear
	}
	return dest
}
