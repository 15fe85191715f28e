package neural

import (
	"math"
	"math/rand"
	"sort"
)

// GenConfig controls procedural network generation. Zero values fall
// back to the defaults from DefaultGenConfig.
type GenConfig struct {
	NodeCount      int     `yaml:"node_count"`
	Radius         float64 `yaml:"radius"`
	MinDegree      int     `yaml:"min_degree"`
	MaxDegree      int     `yaml:"max_degree"`
	MinSeparation  float64 `yaml:"min_separation"`
	MaxEdgeLength  float64 `yaml:"max_edge_length"`
	JunctionDegree int     `yaml:"junction_degree"`
	RelaxSteps     int     `yaml:"relax_steps"`
	PlacementTries int     `yaml:"placement_tries"`
	Jitter         float64 `yaml:"jitter"`
}

// DefaultGenConfig returns the tuning used for a standard match.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		NodeCount:      40,
		Radius:         10,
		MinDegree:      2,
		MaxDegree:      5,
		MinSeparation:  2.5,
		MaxEdgeLength:  7,
		JunctionDegree: 4,
		RelaxSteps:     40,
		PlacementTries: 24,
		Jitter:         0.15,
	}
}

func (c GenConfig) withDefaults() GenConfig {
	d := DefaultGenConfig()
	if c.NodeCount <= 0 {
		c.NodeCount = d.NodeCount
	}
	if c.NodeCount < 2 {
		c.NodeCount = 2
	}
	if c.Radius <= 0 {
		c.Radius = d.Radius
	}
	if c.MinDegree <= 0 {
		c.MinDegree = d.MinDegree
	}
	if c.MaxDegree < c.MinDegree {
		c.MaxDegree = c.MinDegree + d.MaxDegree - d.MinDegree
	}
	if c.MinSeparation <= 0 {
		c.MinSeparation = d.MinSeparation
	}
	if c.MaxEdgeLength <= 0 {
		c.MaxEdgeLength = d.MaxEdgeLength
	}
	if c.JunctionDegree <= 0 {
		c.JunctionDegree = d.JunctionDegree
	}
	if c.RelaxSteps < 0 {
		c.RelaxSteps = d.RelaxSteps
	}
	if c.PlacementTries <= 0 {
		c.PlacementTries = d.PlacementTries
	}
	if c.Jitter <= 0 {
		c.Jitter = d.Jitter
	}
	return c
}

// Generate builds a playable network from cfg, drawing every random
// choice from rng. The same config and seed always produce the same
// network.
func Generate(cfg GenConfig, rng *rand.Rand) *Network {
	cfg = cfg.withDefaults()
	n := NewNetwork()
	n.Radius = cfg.Radius

	placeNodes(n, cfg, rng)
	linkNeighbors(n, cfg)
	raiseMinDegree(n, cfg)
	mergeComponents(n, cfg)
	assignEntryAndCore(n)
	relax(n, cfg)
	assignKinds(n, cfg)
	assignTiers(n)
	n.ResetFlags()
	return n
}

// placeNodes scatters NodeCount nodes over a sphere. Each node starts
// from an evenly distributed base point and is jittered until it
// clears the minimum separation, with a bounded number of tries; when
// every try collides, the candidate with the most clearance wins.
func placeNodes(n *Network, cfg GenConfig, rng *rand.Rand) {
	golden := math.Pi * (3 - math.Sqrt(5))
	placed := make([]Vec3, 0, cfg.NodeCount)
	for i := 0; i < cfg.NodeCount; i++ {
		y := 1 - 2*(float64(i)+0.5)/float64(cfg.NodeCount)
		ring := math.Sqrt(1 - y*y)
		theta := golden * float64(i)
		base := Vec3{X: math.Cos(theta) * ring, Y: y, Z: math.Sin(theta) * ring}.Scale(cfg.Radius)

		best := base
		bestClearance := math.Inf(-1)
		for try := 0; try < cfg.PlacementTries; try++ {
			cand := base.Add(randomJitter(rng, cfg.Radius*cfg.Jitter))
			clearance := math.Inf(1)
			for _, p := range placed {
				if d := cand.DistanceTo(p); d < clearance {
					clearance = d
				}
			}
			if clearance >= cfg.MinSeparation {
				best = cand
				break
			}
			if clearance > bestClearance {
				best = cand
				bestClearance = clearance
			}
		}
		placed = append(placed, best)
		n.AddNode(best)
	}
}

func randomJitter(rng *rand.Rand, scale float64) Vec3 {
	return Vec3{
		X: (rng.Float64()*2 - 1) * scale,
		Y: (rng.Float64()*2 - 1) * scale,
		Z: (rng.Float64()*2 - 1) * scale,
	}
}

// directionOverlap is the dot product above which two edge directions
// from the same node count as pointing the same way (about 20 deg).
const directionOverlap = 0.94

// linkNeighbors connects every node toward the minimum degree using
// its nearest in-range neighbors. The first pass skips candidates
// whose direction is already covered by an existing edge so edges fan
// out instead of bunching; a second pass fills any remaining degree
// without the direction filter.
func linkNeighbors(n *Network, cfg GenConfig) {
	for _, id := range n.NodeIDs() {
		cands := nearestCandidates(n, id, cfg.MaxEdgeLength)
		for pass := 0; pass < 2; pass++ {
			for _, cand := range cands {
				if n.Degree(id) >= cfg.MinDegree {
					break
				}
				if n.Degree(cand) >= cfg.MaxDegree {
					continue
				}
				if _, ok := n.EdgeBetween(id, cand); ok {
					continue
				}
				if pass == 0 && crowdsDirection(n, id, cand) {
					continue
				}
				if _, err := n.AddEdge(id, cand); err != nil {
					continue
				}
			}
			if n.Degree(id) >= cfg.MinDegree {
				break
			}
		}
	}
}

func crowdsDirection(n *Network, id, cand NodeID) bool {
	node := n.Nodes[id]
	dir := n.Nodes[cand].Pos.Sub(node.Pos).Normalized()
	for _, nb := range node.Neighbors {
		existing := n.Nodes[nb].Pos.Sub(node.Pos).Normalized()
		if dir.Dot(existing) > directionOverlap {
			return true
		}
	}
	return false
}

// nearestCandidates returns the other nodes sorted by distance from
// id, closest first, dropping anything beyond maxDist when maxDist is
// positive. Ties keep creation order.
func nearestCandidates(n *Network, id NodeID, maxDist float64) []NodeID {
	node := n.Nodes[id]
	type scored struct {
		id NodeID
		d  float64
	}
	cands := make([]scored, 0, n.NodeCount()-1)
	for _, other := range n.NodeIDs() {
		if other == id {
			continue
		}
		d := node.Pos.DistanceTo(n.Nodes[other].Pos)
		if maxDist > 0 && d > maxDist {
			continue
		}
		cands = append(cands, scored{other, d})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].d < cands[j].d })
	out := make([]NodeID, len(cands))
	for i, c := range cands {
		out[i] = c.id
	}
	return out
}

// raiseMinDegree links any node still short of the degree floor to its
// nearest non-neighbors with the length cap lifted. The cap is a
// preference, the floor is not.
func raiseMinDegree(n *Network, cfg GenConfig) {
	for _, id := range n.NodeIDs() {
		for _, cand := range nearestCandidates(n, id, 0) {
			if n.Degree(id) >= cfg.MinDegree {
				break
			}
			if n.Degree(cand) >= cfg.MaxDegree {
				continue
			}
			if _, err := n.AddEdge(id, cand); err != nil {
				continue
			}
		}
	}
}

// mergeComponents bridges disconnected components until one remains.
// Each round joins the two largest components through their closest
// node pair. Connectivity is mandatory: when every spanning pair is
// capped, the bridge pushes an endpoint past MaxDegree.
func mergeComponents(n *Network, cfg GenConfig) {
	for {
		comps := components(n)
		if len(comps) <= 1 {
			return
		}
		sort.SliceStable(comps, func(i, j int) bool { return len(comps[i]) > len(comps[j]) })
		a, b := closestPair(n, comps[0], comps[1], cfg.MaxDegree)
		if _, err := n.AddEdge(a, b); err != nil {
			return
		}
	}
}

// components returns the connected components of the graph, each in
// breadth-first order, ordered by their earliest-created node.
func components(n *Network) [][]NodeID {
	seen := make(map[NodeID]bool, n.NodeCount())
	var comps [][]NodeID
	for _, start := range n.NodeIDs() {
		if seen[start] {
			continue
		}
		comp := []NodeID{}
		queue := []NodeID{start}
		seen[start] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			comp = append(comp, cur)
			for _, next := range n.Nodes[cur].Neighbors {
				if !seen[next] {
					seen[next] = true
					queue = append(queue, next)
				}
			}
		}
		comps = append(comps, comp)
	}
	return comps
}

// closestPair picks the closest node pair spanning two components,
// preferring pairs where neither endpoint has hit the degree cap. With
// every pair capped it still returns the closest one, so the caller
// can always merge.
func closestPair(n *Network, ca, cb []NodeID, maxDegree int) (NodeID, NodeID) {
	bestA, bestB := ca[0], cb[0]
	best := math.Inf(1)
	bestCapped := true
	for _, a := range ca {
		for _, b := range cb {
			capped := n.Degree(a) >= maxDegree || n.Degree(b) >= maxDegree
			if capped && !bestCapped {
				continue
			}
			d := n.Nodes[a].Pos.DistanceTo(n.Nodes[b].Pos)
			if capped == bestCapped && d >= best {
				continue
			}
			bestA, bestB, best, bestCapped = a, b, d, capped
		}
	}
	return bestA, bestB
}

// assignEntryAndCore picks the entry at the bottom of the network and
// the core as deep into the graph as hops from the entry reach,
// breaking hop ties by straight-line distance.
func assignEntryAndCore(n *Network) {
	ids := n.NodeIDs()
	entry := ids[0]
	for _, id := range ids {
		if n.Nodes[id].Pos.Y < n.Nodes[entry].Pos.Y {
			entry = id
		}
	}
	n.EntryID = entry
	n.Nodes[entry].Kind = KindEntry

	hops := n.HopDistances(entry)
	core := entry
	bestHops := -1
	bestDist := -1.0
	for _, id := range ids {
		if id == entry {
			continue
		}
		h, ok := hops[id]
		if !ok {
			continue
		}
		d := n.Nodes[id].Pos.DistanceTo(n.Nodes[entry].Pos)
		if h > bestHops || (h == bestHops && d > bestDist) {
			core, bestHops, bestDist = id, h, d
		}
	}
	n.CoreID = core
	n.Nodes[core].Kind = KindCore
}

// assignKinds marks high-degree nodes as junctions. Entry and core
// keep their kinds regardless of degree.
func assignKinds(n *Network, cfg GenConfig) {
	for _, id := range n.NodeIDs() {
		node := n.Nodes[id]
		if node.Kind != KindNormal {
			continue
		}
		if len(node.Neighbors) >= cfg.JunctionDegree {
			node.Kind = KindJunction
		}
	}
}

// assignTiers buckets edges into difficulty tiers 1..3 by how deep
// their endpoints sit relative to the entry, in thirds of the maximum
// hop depth.
func assignTiers(n *Network) {
	hops := n.HopDistances(n.EntryID)
	maxHop := 0
	for _, h := range hops {
		if h > maxHop {
			maxHop = h
		}
	}
	for _, eid := range n.EdgeIDs() {
		e := n.Edges[eid]
		ha, okA := hops[e.A]
		hb, okB := hops[e.B]
		if e.Decorative || !okA || !okB || maxHop == 0 {
			e.Tier = 1
			continue
		}
		depth := (float64(ha) + float64(hb)) / 2 / float64(maxHop)
		switch {
		case depth < 1.0/3:
			e.Tier = 1
		case depth < 2.0/3:
			e.Tier = 2
		default:
			e.Tier = 3
		}
	}
}
