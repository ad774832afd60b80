package sim

// NeverExposed is the ExposedAt value of an agent that has not been exposed.
const NeverExposed = -1

// HealthState is the disease state of a single agent.
type HealthState int

const (
	Susceptible HealthState = iota
	Exposed
	Infected
	Hospitalized
	Critical
	Dead
	Recovered

	numHealthStates = int(Recovered) + 1
)

var healthStateNames = [numHealthStates]string{
	"susceptible", "exposed", "infected", "hospitalized", "critical", "dead", "recovered",
}

// Display colors handed to the renderer.
var healthStateColors = [numHealthStates]string{
	"blue", "firebrick", "red", "darkred", "mediumvioletred", "black", "green",
}

// HealthStates lists every state in enumeration order.
func HealthStates() []HealthState {
	states := make([]HealthState, numHealthStates)
	for i := range states {
		states[i] = HealthState(i)
	}
	return states
}

func (s HealthState) valid() bool {
	return s >= Susceptible && s <= Recovered
}

func (s HealthState) String() string {
	if !s.valid() {
		return "unknown"
	}
	return healthStateNames[s]
}

// Color returns the display color name of the state.
func (s HealthState) Color() string {
	if !s.valid() {
		return "gray"
	}
	return healthStateColors[s]
}

// MaskLevel is the ordinal quality of the mask an agent wears.
type MaskLevel int

const (
	MaskNone MaskLevel = iota
	MaskCloth
	MaskSurgical
	MaskN95

	numMaskLevels = int(MaskN95) + 1
)

var maskNames = [numMaskLevels]string{"none", "cloth", "surgical", "n95"}

// Outward transmission multipliers; strictly decreasing with level.
var maskModifiers = [numMaskLevels]float64{1.0, 0.8, 0.5, 0.05}

func (m MaskLevel) String() string {
	if m < MaskNone || m > MaskN95 {
		return "unknown"
	}
	return maskNames[m]
}

// Modifier returns the factor applied to the base transmission chance when an
// agent wearing this mask is the source of an exposure.
func (m MaskLevel) Modifier() float64 {
	if m < MaskNone || m > MaskN95 {
		return 1.0
	}
	return maskModifiers[m]
}

// ParseMaskLevel maps a mask name back to its level.
func ParseMaskLevel(name string) (MaskLevel, bool) {
	for i, n := range maskNames {
		if n == name {
			return MaskLevel(i), true
		}
	}
	return MaskNone, false
}

// Agent is a simulated individual occupying exactly one grid cell.
type Agent struct {
	ID        int
	X, Y      int
	State     HealthState
	Mask      MaskLevel
	Adherence float64
	ExposedAt int
	Identity  Identity

	// step of the last state change, used to allow one transition per step
	changedAt int
}

// Encroachment is the chance the agent accepts a move that breaks distancing.
func (a *Agent) Encroachment() float64 {
	return 1 - a.Adherence
}

// transition moves the agent to the next state at the given step, refusing any
// edge the state machine does not allow.
func (a *Agent) transition(to HealthState, step int) error {
	if !CanTransition(a.State, to) {
		return invalidTransition(a, to)
	}
	a.State = to
	a.changedAt = step
	if to == Exposed {
		a.ExposedAt = step
	}
	return nil
}
