package sim

import (
	"fmt"
	"strings"
)

// Counts is the number of agents in each health state, indexed by state.
type Counts [numHealthStates]int

// Tally recounts the population from scratch.
func Tally(agents []*Agent) Counts {
	var c Counts
	for _, a := range agents {
		if a.State.valid() {
			c[a.State]++
		}
	}
	return c
}

// Get returns the count for one state.
func (c Counts) Get(s HealthState) int {
	if !s.valid() {
		return 0
	}
	return c[s]
}

// Total is the number of agents counted.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

func (c Counts) String() string {
	var b strings.Builder
	for i, v := range c {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%d", HealthState(i), v)
	}
	return b.String()
}
