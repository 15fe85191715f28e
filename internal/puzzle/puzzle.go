// Package puzzle builds and checks the trace challenge the explorer
// solves to activate a connection: a grid with ordered checkpoints
// that must be visited by an orthogonal, self-avoiding path.
package puzzle

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

// Cell is one grid square.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Puzzle is one trace challenge. Checkpoints are visited in order; the
// trace starts on the first and ends on the last.
type Puzzle struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Tier        int    `json:"tier"`
	Checkpoints []Cell `json:"checkpoints"`
}

var (
	ErrEmptyTrace      = errors.New("puzzle: empty trace")
	ErrOutOfBounds     = errors.New("puzzle: cell outside the grid")
	ErrNotAdjacent     = errors.New("puzzle: cells must share a side")
	ErrRevisited       = errors.New("puzzle: cell visited twice")
	ErrWrongStart      = errors.New("puzzle: trace must start on the first checkpoint")
	ErrCheckpointOrder = errors.New("puzzle: checkpoints out of order")
	ErrUnfinished      = errors.New("puzzle: trace must end on the final checkpoint")
)

// sizeForTier maps a difficulty tier to grid dimensions and
// checkpoint count. Tiers outside 1..3 clamp to the nearest.
func sizeForTier(tier int) (w, h, checkpoints int) {
	switch {
	case tier <= 1:
		return 4, 4, 3
	case tier == 2:
		return 5, 5, 4
	default:
		return 6, 6, 5
	}
}

// Generate builds a challenge for the given difficulty tier, drawing
// every random choice from rng. A full-coverage path over the grid is
// found first; the checkpoints are spread evenly along it, so the
// puzzle is always solvable.
func Generate(tier int, rng *rand.Rand) Puzzle {
	w, h, count := sizeForTier(tier)
	path := coverPath(w, h, rng)

	cps := make([]Cell, count)
	last := len(path) - 1
	for i := 0; i < count; i++ {
		idx := i * last / (count - 1)
		cps[i] = path[idx]
	}
	return Puzzle{Width: w, Height: h, Tier: clampTier(tier), Checkpoints: cps}
}

func clampTier(tier int) int {
	if tier < 1 {
		return 1
	}
	if tier > 3 {
		return 3
	}
	return tier
}

// Validate checks a submitted trace against the puzzle rules: inside
// the grid, orthogonal steps, no revisits, checkpoints in order,
// ending on the last one.
func (p Puzzle) Validate(trace []Cell) error {
	if len(trace) == 0 {
		return ErrEmptyTrace
	}
	if trace[0] != p.Checkpoints[0] {
		return ErrWrongStart
	}

	cpIndex := make(map[Cell]int, len(p.Checkpoints))
	for i, c := range p.Checkpoints {
		cpIndex[c] = i
	}

	seen := make(map[Cell]bool, len(trace))
	expected := 0
	for i, c := range trace {
		if c.X < 0 || c.X >= p.Width || c.Y < 0 || c.Y >= p.Height {
			return fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, c.X, c.Y)
		}
		if seen[c] {
			return fmt.Errorf("%w: (%d,%d)", ErrRevisited, c.X, c.Y)
		}
		seen[c] = true
		if i > 0 {
			prev := trace[i-1]
			dx, dy := c.X-prev.X, c.Y-prev.Y
			if dx*dx+dy*dy != 1 {
				return fmt.Errorf("%w: (%d,%d) to (%d,%d)", ErrNotAdjacent, prev.X, prev.Y, c.X, c.Y)
			}
		}
		if j, ok := cpIndex[c]; ok {
			if j != expected {
				return fmt.Errorf("%w: hit %d while expecting %d", ErrCheckpointOrder, j, expected)
			}
			expected++
		}
	}
	if expected != len(p.Checkpoints) || trace[len(trace)-1] != p.Checkpoints[len(p.Checkpoints)-1] {
		return ErrUnfinished
	}
	return nil
}

// coverPath returns a path visiting every grid cell exactly once. A
// randomized search with a fewest-exits-first heuristic runs under a
// step budget; when it blows the budget the deterministic serpentine
// sweep takes over, which always covers the grid.
func coverPath(w, h int, rng *rand.Rand) []Cell {
	start := Cell{X: rng.Intn(w), Y: rng.Intn(h)}
	wk := &walker{
		w:       w,
		h:       h,
		rng:     rng,
		visited: make([]bool, w*h),
		budget:  w * h * 64,
	}
	if wk.extend(start) {
		return wk.path
	}
	return serpentine(w, h)
}

type walker struct {
	w, h    int
	rng     *rand.Rand
	visited []bool
	path    []Cell
	budget  int
}

func (wk *walker) extend(c Cell) bool {
	wk.budget--
	if wk.budget < 0 {
		return false
	}
	wk.path = append(wk.path, c)
	wk.visited[c.Y*wk.w+c.X] = true
	if len(wk.path) == wk.w*wk.h {
		return true
	}
	for _, next := range wk.ordered(c) {
		if wk.extend(next) {
			return true
		}
		if wk.budget < 0 {
			return false
		}
	}
	wk.path = wk.path[:len(wk.path)-1]
	wk.visited[c.Y*wk.w+c.X] = false
	return false
}

// ordered returns the free neighbors of c, fewest onward exits first,
// with ties shuffled.
func (wk *walker) ordered(c Cell) []Cell {
	free := wk.freeNeighbors(c)
	wk.rng.Shuffle(len(free), func(i, j int) {
		free[i], free[j] = free[j], free[i]
	})
	sort.SliceStable(free, func(i, j int) bool {
		return len(wk.freeNeighbors(free[i])) < len(wk.freeNeighbors(free[j]))
	})
	return free
}

func (wk *walker) freeNeighbors(c Cell) []Cell {
	steps := [4]Cell{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	var out []Cell
	for _, s := range steps {
		n := Cell{X: c.X + s.X, Y: c.Y + s.Y}
		if n.X < 0 || n.X >= wk.w || n.Y < 0 || n.Y >= wk.h {
			continue
		}
		if wk.visited[n.Y*wk.w+n.X] {
			continue
		}
		out = append(out, n)
	}
	return out
}

// serpentine sweeps the grid row by row, alternating direction.
func serpentine(w, h int) []Cell {
	path := make([]Cell, 0, w*h)
	for y := 0; y < h; y++ {
		if y%2 == 0 {
			for x := 0; x < w; x++ {
				path = append(path, Cell{X: x, Y: y})
			}
		} else {
			for x := w - 1; x >= 0; x-- {
				path = append(path, Cell{X: x, Y: y})
			}
		}
	}
	return path
}
