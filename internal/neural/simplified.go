package neural

import (
	"math"
	"math/rand"
)

// SimplifiedConfig controls the reduced topology variant.
type SimplifiedConfig struct {
	PathHops   int     `yaml:"path_hops"`
	DecorCount int     `yaml:"decor_count"`
	DecorEdges int     `yaml:"decor_edges"`
	Radius     float64 `yaml:"radius"`
	Jitter     float64 `yaml:"jitter"`
}

// DefaultSimplifiedConfig returns the tuning used for short sessions.
func DefaultSimplifiedConfig() SimplifiedConfig {
	return SimplifiedConfig{
		PathHops:   4,
		DecorCount: 18,
		DecorEdges: 14,
		Radius:     10,
		Jitter:     0.12,
	}
}

func (c SimplifiedConfig) withDefaults() SimplifiedConfig {
	d := DefaultSimplifiedConfig()
	if c.PathHops <= 0 {
		c.PathHops = d.PathHops
	}
	if c.DecorCount < 0 {
		c.DecorCount = d.DecorCount
	}
	if c.DecorEdges < 0 {
		c.DecorEdges = d.DecorEdges
	}
	if c.Radius <= 0 {
		c.Radius = d.Radius
	}
	if c.Jitter <= 0 {
		c.Jitter = d.Jitter
	}
	return c
}

// GenerateSimplified builds the reduced topology used for short
// sessions: a single structural path of PathHops edges from entry to
// core, plus decorative nodes and connections that render as backdrop
// but never take part in play.
func GenerateSimplified(cfg SimplifiedConfig, rng *rand.Rand) *Network {
	cfg = cfg.withDefaults()
	n := NewNetwork()
	n.Radius = cfg.Radius

	// The structural path climbs from the bottom of the sphere to the
	// top with a gentle lateral swing.
	count := cfg.PathHops + 1
	var prev NodeID
	for i := 0; i < count; i++ {
		t := float64(i) / float64(count-1)
		lat := (t - 0.5) * math.Pi
		lon := math.Sin(t*math.Pi) * 0.7
		base := Vec3{
			X: math.Cos(lat) * math.Cos(lon),
			Y: math.Sin(lat),
			Z: math.Cos(lat) * math.Sin(lon),
		}.Scale(cfg.Radius)
		node := n.AddNode(base.Add(randomJitter(rng, cfg.Radius*cfg.Jitter)))
		if i == 0 {
			n.EntryID = node.ID
			node.Kind = KindEntry
		} else {
			if _, err := n.AddEdge(prev, node.ID); err != nil {
				continue
			}
		}
		if i == count-1 {
			n.CoreID = node.ID
			node.Kind = KindCore
		}
		prev = node.ID
	}

	addDecor(n, cfg, rng)
	assignTiers(n)
	n.ResetFlags()
	return n
}

// addDecor scatters backdrop nodes over the sphere and wires a few
// random connections between them.
func addDecor(n *Network, cfg SimplifiedConfig, rng *rand.Rand) {
	golden := math.Pi * (3 - math.Sqrt(5))
	decor := make([]NodeID, 0, cfg.DecorCount)
	for i := 0; i < cfg.DecorCount; i++ {
		y := 1 - 2*(float64(i)+0.5)/float64(cfg.DecorCount)
		ring := math.Sqrt(1 - y*y)
		theta := golden * float64(i)
		base := Vec3{X: math.Cos(theta) * ring, Y: y, Z: math.Sin(theta) * ring}.Scale(cfg.Radius * 1.1)
		node := n.AddNode(base.Add(randomJitter(rng, cfg.Radius*cfg.Jitter)))
		node.Decorative = true
		decor = append(decor, node.ID)
	}

	if len(decor) < 2 {
		return
	}
	added := 0
	for try := 0; try < cfg.DecorEdges*4 && added < cfg.DecorEdges; try++ {
		a := decor[rng.Intn(len(decor))]
		b := decor[rng.Intn(len(decor))]
		edge, err := n.AddEdge(a, b)
		if err != nil {
			continue
		}
		edge.Decorative = true
		added++
	}
}
