package neural

// relax runs a fixed number of force iterations to even out spacing
// after edges exist. Nodes repel each other, edges pull their
// endpoints toward a rest length, and a shell force draws every node
// back toward the generation radius. Only positions move; topology is
// already final.
func relax(n *Network, cfg GenConfig) {
	repel := cfg.MinSeparation * cfg.MinSeparation
	rest := (cfg.MinSeparation + cfg.MaxEdgeLength) / 2
	maxStep := cfg.Radius * 0.025
	const (
		springStrength = 0.08
		shellStrength  = 0.05
	)

	ids := n.NodeIDs()
	force := make(map[NodeID]Vec3, len(ids))
	for iter := 0; iter < cfg.RelaxSteps; iter++ {
		for _, id := range ids {
			force[id] = Vec3{}
		}

		for i, a := range ids {
			for _, b := range ids[i+1:] {
				delta := n.Nodes[a].Pos.Sub(n.Nodes[b].Pos)
				d := delta.Norm()
				if d < 1e-6 {
					continue
				}
				push := delta.Scale(repel / (d * d * d))
				force[a] = force[a].Add(push)
				force[b] = force[b].Sub(push)
			}
		}

		for _, eid := range n.EdgeIDs() {
			e := n.Edges[eid]
			delta := n.Nodes[e.B].Pos.Sub(n.Nodes[e.A].Pos)
			d := delta.Norm()
			if d < 1e-6 {
				continue
			}
			pull := delta.Scale(springStrength * (d - rest) / d)
			force[e.A] = force[e.A].Add(pull)
			force[e.B] = force[e.B].Sub(pull)
		}

		for _, id := range ids {
			node := n.Nodes[id]
			shell := node.Pos.Normalized().Scale(n.Radius).Sub(node.Pos)
			force[id] = force[id].Add(shell.Scale(shellStrength))
		}

		// Step cap keeps one crowded iteration from flinging a node.
		for _, id := range ids {
			step := force[id]
			if s := step.Norm(); s > maxStep {
				step = step.Scale(maxStep / s)
			}
			n.Nodes[id].Pos = n.Nodes[id].Pos.Add(step)
		}
	}
}
