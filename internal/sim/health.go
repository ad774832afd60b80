package sim

import (
	"fmt"
	"math"
	"math/rand"
)

// legal transitions; DEAD and RECOVERED have none
var transitions = map[HealthState][]HealthState{
	Susceptible:  {Exposed},
	Exposed:      {Infected},
	Infected:     {Hospitalized, Recovered},
	Hospitalized: {Critical, Recovered},
	Critical:     {Dead, Recovered},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to HealthState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves the state.
func (s HealthState) Terminal() bool {
	return len(transitions[s]) == 0
}

func invalidTransition(a *Agent, to HealthState) error {
	return fmt.Errorf("agent %d: %s -> %s: %w", a.ID, a.State, to, ErrInvariantViolation)
}

// StageOdds are the per-step chances of leaving a disease stage.
type StageOdds struct {
	Advance float64 // to the next, more severe stage
	Recover float64
}

// ProgressionTable holds the odds for the stages after INFECTED, keyed by
// state and risk bucket. A nil table disables progression past INFECTED.
type ProgressionTable map[HealthState]map[RiskBucket]StageOdds

// DefaultProgression scales severity with risk bucket.
func DefaultProgression() ProgressionTable {
	table := ProgressionTable{
		Infected:     {},
		Hospitalized: {},
		Critical:     {},
	}
	for r := RiskVeryLow; r <= RiskVeryHigh; r++ {
		w := float64(r)
		table[Infected][r] = StageOdds{Advance: 0.004 * w, Recover: 0.08}
		table[Hospitalized][r] = StageOdds{Advance: 0.02 * w, Recover: 0.07}
		table[Critical][r] = StageOdds{Advance: 0.03 * w, Recover: 0.05}
	}
	return table
}

func (t ProgressionTable) odds(s HealthState, r RiskBucket) (StageOdds, bool) {
	byRisk, ok := t[s]
	if !ok {
		return StageOdds{}, false
	}
	o, ok := byRisk[r]
	return o, ok
}

// nextSevere is the stage an agent advances to from s.
func nextSevere(s HealthState) HealthState {
	switch s {
	case Infected:
		return Hospitalized
	case Hospitalized:
		return Critical
	default:
		return Dead
	}
}

// progression applies the time-driven transitions for one step.
type progression struct {
	incubation int
	table      ProgressionTable
	// multiplies CRITICAL -> DEAD odds; 1 when hospitals are not overloaded
	deathBoost float64
}

func (p progression) apply(agents []*Agent, step int, rng *rand.Rand) error {
	for _, a := range agents {
		switch a.State {
		case Exposed:
			if step >= a.ExposedAt+p.incubation {
				if err := a.transition(Infected, step); err != nil {
					return err
				}
			}
		case Infected, Hospitalized, Critical:
			if p.table == nil || a.changedAt == step {
				continue
			}
			if err := p.advance(a, step, rng); err != nil {
				return err
			}
		}
	}
	return nil
}

// odds returns the stage odds of an agent, with the overload boost applied to
// CRITICAL agents.
func (p progression) odds(a *Agent) (StageOdds, bool) {
	o, ok := p.table.odds(a.State, a.Identity.Risk)
	if !ok {
		return StageOdds{}, false
	}
	if a.State == Critical && p.deathBoost > 1 {
		o.Advance = math.Max(0, math.Min(o.Advance*p.deathBoost, 1-o.Recover))
	}
	return o, true
}

func (p progression) advance(a *Agent, step int, rng *rand.Rand) error {
	o, ok := p.odds(a)
	if !ok {
		return nil
	}
	u := rng.Float64()
	switch {
	case u < o.Advance:
		return a.transition(nextSevere(a.State), step)
	case u < o.Advance+o.Recover:
		return a.transition(Recovered, step)
	}
	return nil
}
