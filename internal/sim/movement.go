package sim

import "math/rand"

// maxMoveAttempts bounds the candidate redraws of one agent in one step.
const maxMoveAttempts = 8

type direction int

const (
	north direction = iota
	south
	east
	west
)

// movement is the bounded random walk with distancing avoidance.
type movement struct {
	grid     *Grid
	maxStep  int
	distance float64
}

// candidate draws a direction and per-axis magnitudes in [0, maxStep]. The
// direction picks the axis and sign; the result is clamped onto the grid.
func (m movement) candidate(a *Agent, rng *rand.Rand) (int, int) {
	dir := direction(rng.Intn(4))
	dx := rng.Intn(m.maxStep + 1)
	dy := rng.Intn(m.maxStep + 1)

	x, y := a.X, a.Y
	switch dir {
	case north:
		y -= dy
	case south:
		y += dy
	case east:
		x += dx
	case west:
		x -= dx
	}
	return m.grid.Clamp(x, y)
}

// encroaches reports whether anyone other than the mover is within the
// exposure distance of (x, y).
func (m movement) encroaches(a *Agent, x, y int) bool {
	for _, n := range m.grid.NeighborsWithin(x, y, m.distance) {
		if n != a {
			return true
		}
	}
	return false
}

// move relocates one agent and reports whether it knowingly broke distancing.
// An agent whose every candidate is rejected stays where it is.
func (m movement) move(a *Agent, rng *rand.Rand) (bool, error) {
	for attempt := 0; attempt < maxMoveAttempts; attempt++ {
		x, y := m.candidate(a, rng)
		if other := m.grid.At(x, y); other != nil && other != a {
			continue
		}
		if !m.encroaches(a, x, y) {
			return false, m.grid.Relocate(a, x, y)
		}
		if rng.Float64() < a.Encroachment() {
			return true, m.grid.Relocate(a, x, y)
		}
	}
	return false, nil
}

// moveAll walks every agent in order and returns the number of violations.
func (m movement) moveAll(agents []*Agent, rng *rand.Rand) (int, error) {
	violations := 0
	for _, a := range agents {
		violated, err := m.move(a, rng)
		if err != nil {
			return violations, err
		}
		if violated {
			violations++
		}
	}
	return violations, nil
}
