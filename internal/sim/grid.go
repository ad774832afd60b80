package sim

import (
	"fmt"
	"math"
	"math/rand"
)

// Point is a cell coordinate.
type Point struct {
	X, Y int
}

// Grid is a fixed rectangular lattice where each cell holds at most one agent.
// A nil cell is empty.
type Grid struct {
	width, height int
	cells         []*Agent
	population    int
}

// NewGrid allocates an empty width x height lattice.
func NewGrid(width, height int) (*Grid, error) {
	if width <= 0 {
		return nil, configErr("grid.width", "must be positive, got %d", width)
	}
	if height <= 0 {
		return nil, configErr("grid.height", "must be positive, got %d", height)
	}
	return &Grid{
		width:  width,
		height: height,
		cells:  make([]*Agent, width*height),
	}, nil
}

// Width is the number of columns.
func (g *Grid) Width() int { return g.width }

// Height is the number of rows.
func (g *Grid) Height() int { return g.height }

// Capacity is the number of cells, the largest population the grid can hold.
func (g *Grid) Capacity() int { return g.width * g.height }

// Population is the number of agents currently placed.
func (g *Grid) Population() int { return g.population }

// InBounds reports whether (x, y) lies on the lattice.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// Clamp pulls a coordinate back onto the lattice.
func (g *Grid) Clamp(x, y int) (int, int) {
	return clampInt(x, 0, g.width-1), clampInt(y, 0, g.height-1)
}

// At returns the occupant of (x, y), or nil when the cell is empty or off-grid.
func (g *Grid) At(x, y int) *Agent {
	if !g.InBounds(x, y) {
		return nil
	}
	return g.cells[g.index(x, y)]
}

// PlaceRandom puts the agent on a uniformly random empty cell by rejection
// sampling.
func (g *Grid) PlaceRandom(a *Agent, rng *rand.Rand) error {
	if g.population >= g.Capacity() {
		return fmt.Errorf("place agent %d: %w", a.ID, ErrCapacityExhausted)
	}
	for {
		x, y := rng.Intn(g.width), rng.Intn(g.height)
		if g.cells[g.index(x, y)] == nil {
			g.claim(a, x, y)
			return nil
		}
	}
}

// PlaceAt puts the agent on a specific empty cell.
func (g *Grid) PlaceAt(a *Agent, x, y int) error {
	if !g.InBounds(x, y) {
		return configErr("placement", "(%d,%d) outside %dx%d grid", x, y, g.width, g.height)
	}
	if g.population >= g.Capacity() {
		return fmt.Errorf("place agent %d: %w", a.ID, ErrCapacityExhausted)
	}
	if other := g.cells[g.index(x, y)]; other != nil {
		return configErr("placement", "(%d,%d) already holds agent %d", x, y, other.ID)
	}
	g.claim(a, x, y)
	return nil
}

// Relocate moves a placed agent to (x, y). The target must be empty or already
// be the agent's own cell.
func (g *Grid) Relocate(a *Agent, x, y int) error {
	if !g.InBounds(x, y) {
		return fmt.Errorf("relocate agent %d to (%d,%d): out of bounds: %w", a.ID, x, y, ErrInvariantViolation)
	}
	if g.At(a.X, a.Y) != a {
		return fmt.Errorf("relocate agent %d: not at (%d,%d): %w", a.ID, a.X, a.Y, ErrInvariantViolation)
	}
	target := g.cells[g.index(x, y)]
	if target == a {
		return nil
	}
	if target != nil {
		return fmt.Errorf("relocate agent %d to (%d,%d): held by agent %d: %w", a.ID, x, y, target.ID, ErrInvariantViolation)
	}
	g.cells[g.index(a.X, a.Y)] = nil
	g.cells[g.index(x, y)] = a
	a.X, a.Y = x, y
	return nil
}

// Remove takes a placed agent off the lattice. Removing an agent that is not
// at its recorded cell is a no-op.
func (g *Grid) Remove(a *Agent) {
	if g.At(a.X, a.Y) != a {
		return
	}
	g.cells[g.index(a.X, a.Y)] = nil
	g.population--
}

// NeighborsWithin returns the agents whose Euclidean distance to (x, y) is in
// (0, radius]. Only the bounding box of the radius is scanned. Results follow
// grid order, x-major.
func (g *Grid) NeighborsWithin(x, y int, radius float64) []*Agent {
	if radius <= 0 {
		return nil
	}
	reach := int(math.Floor(radius))
	x0, y0 := g.Clamp(x-reach, y-reach)
	x1, y1 := g.Clamp(x+reach, y+reach)

	var found []*Agent
	for i := x0; i <= x1; i++ {
		for j := y0; j <= y1; j++ {
			a := g.cells[g.index(i, j)]
			if a == nil {
				continue
			}
			d := math.Hypot(float64(i-x), float64(j-y))
			if d > 0 && d <= radius {
				found = append(found, a)
			}
		}
	}
	return found
}

// Occupants lists every placed agent in grid order, x-major.
func (g *Grid) Occupants() []*Agent {
	out := make([]*Agent, 0, g.population)
	for i := 0; i < g.width; i++ {
		for j := 0; j < g.height; j++ {
			if a := g.cells[g.index(i, j)]; a != nil {
				out = append(out, a)
			}
		}
	}
	return out
}

func (g *Grid) claim(a *Agent, x, y int) {
	g.cells[g.index(x, y)] = a
	a.X, a.Y = x, y
	g.population++
}

// x-major layout matches the Occupants scan.
func (g *Grid) index(x, y int) int {
	return x*g.height + y
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
