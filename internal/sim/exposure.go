package sim

import "math/rand"

// exposure spreads the disease from INFECTED agents to SUSCEPTIBLE neighbors.
type exposure struct {
	grid     *Grid
	distance float64
	// chance returns the effective transmission probability for a source mask
	chance func(MaskLevel) float64
}

// spread evaluates each (infectious, susceptible neighbor) pair once, in grid
// order. The eligibility check re-reads the target state, so the first success
// wins. It returns the number of new exposures.
func (e exposure) spread(step int, rng *rand.Rand) (int, error) {
	var sources []*Agent
	for _, a := range e.grid.Occupants() {
		if a.State == Infected {
			sources = append(sources, a)
		}
	}

	exposed := 0
	for _, src := range sources {
		p := e.chance(src.Mask)
		for _, target := range e.grid.NeighborsWithin(src.X, src.Y, e.distance) {
			if target.State != Susceptible {
				continue
			}
			if rng.Float64() < p {
				if err := target.transition(Exposed, step); err != nil {
					return exposed, err
				}
				exposed++
			}
		}
	}
	return exposed, nil
}
