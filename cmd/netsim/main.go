package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/neurodive/neurodive-server/internal/game"
	"github.com/neurodive/neurodive-server/internal/neural"
	"github.com/neurodive/neurodive-server/internal/puzzle"
	"github.com/neurodive/neurodive-server/internal/sim"
	"github.com/neurodive/neurodive-server/internal/tuning"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "netsim",
		Short: "Offline tooling for the neurodive network and pursuer",
		Long: `netsim generates networks and trace puzzles and runs headless
rounds against the pursuer, without a server or clients.

It exists for balancing: the same tuning file the server loads can be
fed to 'netsim simulate' to see how often a scripted explorer clears
the network before running out of luck.`,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("tuning", "", "Tuning YAML file (defaults apply when empty)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newGenerateCmd(),
		newPuzzleCmd(),
		newSimulateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{"version": version})
			} else {
				fmt.Printf("netsim version %s\n", version)
			}
		},
	}
}

func loadTuning(cmd *cobra.Command) (tuning.Tuning, error) {
	path, _ := cmd.Flags().GetString("tuning")
	return tuning.Load(path)
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a network and print it",
		Long: `Generate a network from the tuning (or defaults) and print it as
JSON or Graphviz DOT. The same seed always produces the same network.

Example:
  netsim generate --seed 7 --nodes 60 --format dot | dot -Tpng -o net.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, _ := cmd.Flags().GetInt64("seed")
			nodes, _ := cmd.Flags().GetInt("nodes")
			format, _ := cmd.Flags().GetString("format")
			simplified, _ := cmd.Flags().GetBool("simplified")

			tun, err := loadTuning(cmd)
			if err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seed))

			var net *neural.Network
			if simplified {
				net = neural.GenerateSimplified(tun.Simplified, rng)
			} else {
				cfg := tun.Network
				if nodes > 0 {
					cfg.NodeCount = nodes
				}
				net = neural.Generate(cfg, rng)
			}

			switch format {
			case "dot":
				return writeDOT(os.Stdout, net)
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(net)
			default:
				return fmt.Errorf("unknown format: %s (must be json or dot)", format)
			}
		},
	}

	cmd.Flags().Int64("seed", time.Now().UnixNano(), "Generation seed")
	cmd.Flags().Int("nodes", 0, "Node count override (0 = from tuning)")
	cmd.Flags().String("format", "json", "Output format (json, dot)")
	cmd.Flags().Bool("simplified", false, "Use the simplified layered generator")

	return cmd
}

func writeDOT(w io.Writer, net *neural.Network) error {
	fmt.Fprintln(w, "graph network {")
	fmt.Fprintln(w, "  layout=neato;")
	for _, id := range net.NodeIDs() {
		n := net.Node(id)
		attrs := fmt.Sprintf("pos=\"%.2f,%.2f!\"", n.Pos.X, n.Pos.Z)
		switch n.Kind {
		case neural.KindEntry:
			attrs += " shape=doublecircle color=green"
		case neural.KindCore:
			attrs += " shape=doublecircle color=red"
		case neural.KindJunction:
			attrs += " shape=diamond"
		}
		if n.Decorative {
			attrs += " style=dotted"
		}
		fmt.Fprintf(w, "  %s [%s];\n", id, attrs)
	}
	for _, id := range net.EdgeIDs() {
		e := net.Edge(id)
		attrs := fmt.Sprintf("label=\"%s\" tier=%d", id, e.Tier)
		if e.Decorative {
			attrs += " style=dotted"
		}
		fmt.Fprintf(w, "  %s -- %s [%s];\n", e.A, e.B, attrs)
	}
	fmt.Fprintln(w, "}")
	return nil
}

func newPuzzleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "puzzle",
		Short: "Generate a trace puzzle",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, _ := cmd.Flags().GetInt64("seed")
			tier, _ := cmd.Flags().GetInt("tier")
			solve, _ := cmd.Flags().GetBool("solve")
			jsonOut, _ := cmd.Flags().GetBool("json")

			rng := rand.New(rand.NewSource(seed))
			p := puzzle.Generate(tier, rng)

			var trace []puzzle.Cell
			if solve {
				trace = solveTrace(p)
				if err := p.Validate(trace); err != nil {
					return fmt.Errorf("solver produced an invalid trace: %w", err)
				}
			}

			if jsonOut {
				out := map[string]any{"puzzle": p}
				if solve {
					out["trace"] = trace
				}
				return json.NewEncoder(os.Stdout).Encode(out)
			}

			fmt.Printf("Tier %d, %dx%d grid, %d checkpoints:\n",
				p.Tier, p.Width, p.Height, len(p.Checkpoints))
			for i, c := range p.Checkpoints {
				fmt.Printf("  %d. (%d,%d)\n", i+1, c.X, c.Y)
			}
			if solve {
				fmt.Printf("Solution (%d cells):", len(trace))
				for _, c := range trace {
					fmt.Printf(" (%d,%d)", c.X, c.Y)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().Int64("seed", time.Now().UnixNano(), "Generation seed")
	cmd.Flags().Int("tier", 1, "Difficulty tier (1-3)")
	cmd.Flags().Bool("solve", false, "Print a valid trace alongside the puzzle")

	return cmd
}

// solveTrace finds a self-avoiding orthogonal path through the
// checkpoints in order by depth-first search. Every generated puzzle
// has at least one solution, so the search always terminates.
func solveTrace(p puzzle.Puzzle) []puzzle.Cell {
	cpIndex := make(map[puzzle.Cell]int, len(p.Checkpoints))
	for i, c := range p.Checkpoints {
		cpIndex[c] = i
	}
	last := p.Checkpoints[len(p.Checkpoints)-1]

	visited := make(map[puzzle.Cell]bool)
	var path []puzzle.Cell
	var dfs func(c puzzle.Cell, next int) bool
	dfs = func(c puzzle.Cell, next int) bool {
		if c.X < 0 || c.X >= p.Width || c.Y < 0 || c.Y >= p.Height || visited[c] {
			return false
		}
		if j, ok := cpIndex[c]; ok {
			if j != next {
				return false
			}
			next++
		}
		visited[c] = true
		path = append(path, c)
		if next == len(p.Checkpoints) && c == last {
			return true
		}
		for _, d := range [4]puzzle.Cell{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}} {
			if dfs(puzzle.Cell{X: c.X + d.X, Y: c.Y + d.Y}, next) {
				return true
			}
		}
		visited[c] = false
		path = path[:len(path)-1]
		return false
	}
	dfs(p.Checkpoints[0], 0)
	return path
}

// roundStats is the outcome of one headless round.
type roundStats struct {
	Round    int     `json:"round"`
	Cleared  bool    `json:"cleared"`
	Ticks    int     `json:"ticks"`
	Clock    float64 `json:"clock"`
	Catches  int     `json:"catches"`
	Attempts int     `json:"attempts"`
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run headless rounds with a scripted explorer",
		Long: `Run rounds on one generated network with a scripted explorer that
walks the shortest path to the core, solving every trace puzzle it
meets, with no protector helping it. The pursuer plays for real.

The clear rate under this script is a lower bound on what a human
pair achieves, which makes it a cheap balance probe for a tuning
change.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, _ := cmd.Flags().GetInt64("seed")
			nodes, _ := cmd.Flags().GetInt("nodes")
			rounds, _ := cmd.Flags().GetInt("rounds")
			maxTicks, _ := cmd.Flags().GetInt("max-ticks")
			actEvery, _ := cmd.Flags().GetInt("act-every")
			jsonOut, _ := cmd.Flags().GetBool("json")

			tun, err := loadTuning(cmd)
			if err != nil {
				return err
			}
			cfg := tun.Network
			if nodes > 0 {
				cfg.NodeCount = nodes
			}

			rng := rand.New(rand.NewSource(seed))
			net := neural.Generate(cfg, rng)
			s := sim.NewSession(tun.Session, tun.Pursuer, net, rng)

			var all []roundStats
			for round := 1; round <= rounds; round++ {
				st := runRound(s, round, maxTicks, actEvery)
				all = append(all, st)
				s.RoundReset()
			}

			cleared := 0
			for _, st := range all {
				if st.Cleared {
					cleared++
				}
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"seed":    seed,
					"nodes":   net.NodeCount(),
					"edges":   net.EdgeCount(),
					"rounds":  all,
					"cleared": cleared,
				})
			}

			fmt.Printf("Network: %d nodes, %d edges (seed %d)\n\n",
				net.NodeCount(), net.EdgeCount(), seed)
			for _, st := range all {
				result := "timed out"
				if st.Cleared {
					result = "cleared"
				}
				fmt.Printf("Round %d: %s in %d ticks (%.1fs), %d catches, %d traces\n",
					st.Round, result, st.Ticks, st.Clock, st.Catches, st.Attempts)
			}
			fmt.Printf("\nCleared %d/%d rounds\n", cleared, rounds)
			return nil
		},
	}

	cmd.Flags().Int64("seed", time.Now().UnixNano(), "Generation seed")
	cmd.Flags().Int("nodes", 0, "Node count override (0 = from tuning)")
	cmd.Flags().Int("rounds", 5, "Rounds to play on the same network")
	cmd.Flags().Int("max-ticks", 12000, "Tick budget per round before giving up")
	cmd.Flags().Int("act-every", 10, "Ticks between explorer actions")

	return cmd
}

// runRound drives one round at the server's tick rate until the core
// is reached or the budget runs out.
func runRound(s *sim.Session, round, maxTicks, actEvery int) roundStats {
	dt := 1.0 / float64(game.TickRate)
	st := roundStats{Round: round}

	for tick := 0; tick < maxTicks && !s.CoreReached(); tick++ {
		s.Advance(dt)
		if s.EncounterPending() {
			st.Catches++
			if err := s.ResolveEncounter(); err != nil {
				break
			}
			continue
		}
		if tick%actEvery == 0 {
			st.Attempts += explorerAct(s)
		}
	}

	st.Cleared = s.CoreReached()
	st.Ticks = s.Tick()
	st.Clock = s.Clock()
	return st
}

// explorerAct performs one scripted explorer action: step toward the
// core across an active connection, or open and solve the trace on the
// best connection available. Returns the number of traces attempted.
func explorerAct(s *sim.Session) int {
	net := s.Network()
	head := s.Head()
	dist := net.HopDistances(net.CoreID)

	// Rank the usable connections at the head by how much closer
	// their far end is to the core.
	type option struct {
		edge *neural.Edge
		to   neural.NodeID
	}
	var opts []option
	for _, eid := range net.EdgesAt(head) {
		e := net.Edge(eid)
		if e.Decorative {
			continue
		}
		to := e.Other(head)
		node := net.Node(to)
		if node == nil || node.Blocked {
			continue
		}
		if e.State != neural.EdgeActive && !e.Unlocked {
			continue
		}
		if _, ok := dist[to]; !ok {
			continue
		}
		opts = append(opts, option{edge: e, to: to})
	}
	sort.SliceStable(opts, func(i, j int) bool {
		return dist[opts[i].to] < dist[opts[j].to]
	})

	for _, o := range opts {
		if o.edge.State == neural.EdgeActive {
			if err := s.ExplorerMove(o.to); err == nil {
				return 0
			}
			continue
		}
		p, err := s.BeginEdgeAttempt(o.edge.ID)
		if err != nil {
			continue
		}
		if _, err := s.SubmitTrace(o.edge.ID, solveTrace(p)); err != nil {
			return 1
		}
		s.ExplorerMove(o.to)
		return 1
	}
	return 0
}
