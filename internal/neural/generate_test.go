package neural

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDeterministic(t *testing.T) {
	cfg := DefaultGenConfig()
	first := Generate(cfg, rand.New(rand.NewSource(42)))
	second := Generate(cfg, rand.New(rand.NewSource(42)))

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b, "same seed must reproduce the network")

	other := Generate(cfg, rand.New(rand.NewSource(43)))
	c, err := json.Marshal(other)
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "different seed should move nodes")
}

func TestGenerateStructure(t *testing.T) {
	cfg := DefaultGenConfig()
	for _, seed := range []int64{1, 7, 1234, 99999} {
		n := Generate(cfg, rand.New(rand.NewSource(seed)))

		assert.Equal(t, cfg.NodeCount, n.NodeCount(), "seed %d", seed)
		require.NotEmpty(t, n.EntryID, "seed %d", seed)
		require.NotEmpty(t, n.CoreID, "seed %d", seed)
		assert.NotEqual(t, n.EntryID, n.CoreID, "seed %d", seed)
		assert.Equal(t, KindEntry, n.Nodes[n.EntryID].Kind, "seed %d", seed)
		assert.Equal(t, KindCore, n.Nodes[n.CoreID].Kind, "seed %d", seed)

		// Fully connected from the entry.
		dist := n.HopDistances(n.EntryID)
		assert.Len(t, dist, n.NodeCount(), "seed %d: unreachable nodes", seed)

		// Degree stays inside the configured band.
		for _, id := range n.NodeIDs() {
			deg := n.Degree(id)
			assert.GreaterOrEqual(t, deg, cfg.MinDegree, "seed %d node %s", seed, id)
			assert.LessOrEqual(t, deg, cfg.MaxDegree, "seed %d node %s", seed, id)
		}

		// Tiers cover only the legal band.
		for _, eid := range n.EdgeIDs() {
			tier := n.Edges[eid].Tier
			assert.GreaterOrEqual(t, tier, 1, "seed %d edge %s", seed, eid)
			assert.LessOrEqual(t, tier, 3, "seed %d edge %s", seed, eid)
		}
	}
}

// A tight band with short edges produces many degree-capped fragments,
// so the merge step has to bridge through capped nodes. The network
// must still come out fully connected.
func TestGenerateTightDegreeBandStaysConnected(t *testing.T) {
	cfg := DefaultGenConfig()
	cfg.MinDegree = 2
	cfg.MaxDegree = 2
	cfg.MaxEdgeLength = 3

	for _, seed := range []int64{1, 2, 3, 4, 5} {
		n := Generate(cfg, rand.New(rand.NewSource(seed)))

		dist := n.HopDistances(n.EntryID)
		assert.Len(t, dist, n.NodeCount(), "seed %d: every node must be reachable from the entry", seed)
		for _, id := range n.NodeIDs() {
			assert.GreaterOrEqual(t, n.Degree(id), 1, "seed %d node %s left isolated", seed, id)
		}
	}
}

func TestGenerateInitialFlags(t *testing.T) {
	n := Generate(DefaultGenConfig(), rand.New(rand.NewSource(5)))

	for _, id := range n.NodeIDs() {
		node := n.Nodes[id]
		assert.Equal(t, id == n.EntryID, node.Activated, "activation of %s", id)
		assert.False(t, node.Blocked, "block flag of %s", id)
	}

	first, ok := n.FirstStructuralEdge()
	require.True(t, ok)
	assert.True(t, n.Edges[first].Touches(n.EntryID))
	unlocked := 0
	for _, eid := range n.EdgeIDs() {
		e := n.Edges[eid]
		assert.Equal(t, EdgeDormant, e.State, "state of %s", eid)
		if e.Unlocked {
			unlocked++
			assert.Equal(t, first, eid)
		}
	}
	assert.Equal(t, 1, unlocked, "exactly the first edge at the entry starts unlocked")
}

func TestGenerateSpacing(t *testing.T) {
	cfg := DefaultGenConfig()
	n := Generate(cfg, rand.New(rand.NewSource(11)))

	ids := n.NodeIDs()
	for i, a := range ids {
		assert.LessOrEqual(t, n.Nodes[a].Pos.Norm(), cfg.Radius*2, "node %s drifted out of bounds", a)
		for _, b := range ids[i+1:] {
			d := n.Nodes[a].Pos.DistanceTo(n.Nodes[b].Pos)
			assert.Greater(t, d, cfg.MinSeparation*0.4, "nodes %s and %s collapsed together", a, b)
		}
	}
}

func TestGenerateSimplified(t *testing.T) {
	cfg := DefaultSimplifiedConfig()
	n := GenerateSimplified(cfg, rand.New(rand.NewSource(3)))

	var structuralNodes, decorNodes int
	for _, id := range n.NodeIDs() {
		if n.Nodes[id].Decorative {
			decorNodes++
		} else {
			structuralNodes++
		}
	}
	assert.Equal(t, cfg.PathHops+1, structuralNodes)
	assert.Equal(t, cfg.DecorCount, decorNodes)

	var structuralEdges int
	for _, eid := range n.EdgeIDs() {
		e := n.Edges[eid]
		if e.Decorative {
			assert.True(t, e.Unlocked, "decorative edge %s must render unlocked", eid)
			assert.True(t, n.Nodes[e.A].Decorative)
			assert.True(t, n.Nodes[e.B].Decorative)
		} else {
			structuralEdges++
		}
	}
	assert.Equal(t, cfg.PathHops, structuralEdges)

	// The playable part is a straight path from entry to core.
	dist := n.HopDistances(n.EntryID)
	assert.Equal(t, cfg.PathHops, dist[n.CoreID])
	assert.Len(t, dist, structuralNodes)

	first, ok := n.FirstStructuralEdge()
	require.True(t, ok)
	assert.True(t, n.Edges[first].Touches(n.EntryID))
	assert.True(t, n.Edges[first].Unlocked)
}

func TestGenerateConfigDefaults(t *testing.T) {
	n := Generate(GenConfig{}, rand.New(rand.NewSource(1)))
	assert.Equal(t, DefaultGenConfig().NodeCount, n.NodeCount())

	tiny := Generate(GenConfig{NodeCount: 2, MinDegree: 1, MaxDegree: 2}, rand.New(rand.NewSource(1)))
	assert.Equal(t, 2, tiny.NodeCount())
	assert.Equal(t, 1, tiny.EdgeCount())
	assert.NotEqual(t, tiny.EntryID, tiny.CoreID)
}
