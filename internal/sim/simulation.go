package sim

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Config holds the parameters of one simulation.
type Config struct {
	Width, Height int
	Population    int
	Steps         int

	ExposureDistance float64
	MaxStep          int
	BaseTransmission float64
	IncubationPeriod int

	Masks      MaskPolicy
	Distancing DistancingPolicy

	// Progression enables the stages after INFECTED. Nil keeps agents INFECTED.
	Progression                 ProgressionTable
	HospitalCapacity            int
	DeathRateOverloadMultiplier float64

	// Seed drives every random draw. Zero seeds from the clock.
	Seed       int64
	Identities IdentitySource
	Logger     *log.Logger
}

// MaskPolicy assigns masks to new agents: uniformly at random over all levels,
// or a fixed level for everyone.
type MaskPolicy struct {
	Random bool
	Level  MaskLevel
}

// DistancingPolicy assigns adherence to new agents: uniformly in [0.4, 1.0],
// or a fixed value for everyone.
type DistancingPolicy struct {
	Random    bool
	Adherence float64
}

const (
	minRandomAdherence = 0.4
	maxRandomAdherence = 1.0
)

// Validate reports the first invalid parameter as a *ConfigError.
func (c Config) Validate() error {
	switch {
	case c.Width <= 0:
		return configErr("grid.width", "must be positive, got %d", c.Width)
	case c.Height <= 0:
		return configErr("grid.height", "must be positive, got %d", c.Height)
	case c.Population < 0:
		return configErr("population", "must not be negative, got %d", c.Population)
	case c.Population > c.Width*c.Height:
		return configErr("population", "%d exceeds grid capacity %d", c.Population, c.Width*c.Height)
	case c.Steps < 0:
		return configErr("steps", "must not be negative, got %d", c.Steps)
	case c.ExposureDistance < 0 || math.IsNaN(c.ExposureDistance):
		return configErr("exposure_distance", "must not be negative, got %v", c.ExposureDistance)
	case c.MaxStep < 0:
		return configErr("max_step", "must not be negative, got %d", c.MaxStep)
	case c.BaseTransmission < 0 || c.BaseTransmission > 1 || math.IsNaN(c.BaseTransmission):
		return configErr("base_transmission_chance", "must be in [0,1], got %v", c.BaseTransmission)
	case c.IncubationPeriod < 0:
		return configErr("incubation_period", "must not be negative, got %d", c.IncubationPeriod)
	case !c.Masks.Random && (c.Masks.Level < MaskNone || c.Masks.Level > MaskN95):
		return configErr("masks.level", "unknown level %d", c.Masks.Level)
	case !c.Distancing.Random && (c.Distancing.Adherence < 0 || c.Distancing.Adherence > 1 || math.IsNaN(c.Distancing.Adherence)):
		return configErr("distancing.adherence", "must be in [0,1], got %v", c.Distancing.Adherence)
	case c.HospitalCapacity < 0:
		return configErr("hospital.capacity", "must not be negative, got %d", c.HospitalCapacity)
	}
	return nil
}

// Snapshot is the state of every agent after one step, ordered by agent id.
type Snapshot struct {
	Step       int
	X, Y       []int
	Colors     []string
	Counts     Counts
	Violations int
}

// Simulation owns the grid, the agents, the clock and the random source.
// Step is the only mutator of the clock; the control knobs may be changed
// from other goroutines while it runs.
type Simulation struct {
	cfg    Config
	grid   *Grid
	rng    *rand.Rand
	logger *log.Logger

	stepMu sync.Mutex
	agents []*Agent
	nextID int
	clock  int
	seeded bool

	mu                 sync.RWMutex
	counts             Counts
	transmissionMod    float64
	modifierSet        bool
	lockdown           bool
	hospitalCapacity   int
	overloadMultiplier float64
}

// New validates the configuration and builds an empty simulation.
func New(cfg Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	grid, err := NewGrid(cfg.Width, cfg.Height)
	if err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.Identities == nil {
		cfg.Identities = DefaultIdentity
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Simulation{
		cfg:             cfg,
		grid:            grid,
		rng:             rand.New(rand.NewSource(seed)),
		logger:          logger,
		nextID:          1,
		transmissionMod: 1.0,
	}
	s.SetHospitalCapacity(cfg.HospitalCapacity)
	s.SetDeathRateOverloadMultiplier(cfg.DeathRateOverloadMultiplier)
	return s, nil
}

// Grid exposes the occupancy grid for inspection.
func (s *Simulation) Grid() *Grid { return s.grid }

// Clock returns the number of completed steps.
func (s *Simulation) Clock() int {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	return s.clock
}

// Agents returns the agents in id order. The slice is shared; callers must not
// step the simulation while holding on to it.
func (s *Simulation) Agents() []*Agent {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	return s.agents
}

// Population is the number of agents on the grid.
func (s *Simulation) Population() int {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	return s.grid.Population()
}

// Counts returns the per-state tally of the last completed step.
func (s *Simulation) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts
}

// Seed creates the population at random empty cells. The first agent is patient
// zero and starts EXPOSED.
func (s *Simulation) Seed(population int) error {
	if population < 0 {
		return configErr("population", "must not be negative, got %d", population)
	}
	if population > s.grid.Capacity() {
		return configErr("population", "%d exceeds grid capacity %d", population, s.grid.Capacity())
	}
	return s.seed(population, func(a *Agent) error {
		return s.grid.PlaceRandom(a, s.rng)
	})
}

// SeedAt creates one agent per point, in order. The first is patient zero.
func (s *Simulation) SeedAt(points []Point) error {
	i := 0
	return s.seed(len(points), func(a *Agent) error {
		p := points[i]
		i++
		return s.grid.PlaceAt(a, p.X, p.Y)
	})
}

func (s *Simulation) seed(n int, place func(*Agent) error) error {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	if s.seeded {
		return configErr("population", "simulation already seeded")
	}
	firstID := s.nextID
	placed := make([]*Agent, 0, n)
	for i := 0; i < n; i++ {
		a := s.newAgent()
		err := place(a)
		if err == nil {
			placed = append(placed, a)
			if a.ID == 1 {
				err = a.transition(Exposed, s.clock)
			}
		}
		if err != nil {
			// Undo the partial population so a later seed starts clean.
			for _, p := range placed {
				s.grid.Remove(p)
			}
			s.nextID = firstID
			return fmt.Errorf("seed: %w", err)
		}
	}
	s.agents = append(s.agents, placed...)
	s.seeded = true
	s.setCounts(Tally(s.agents))
	s.logger.Printf("seeded %d agents on a %dx%d grid", n, s.grid.Width(), s.grid.Height())
	s.logRoster()
	return nil
}

// logRoster lists every agent, one line each.
func (s *Simulation) logRoster() {
	for _, a := range s.agents {
		s.logger.Printf("agent id=%d name=%s age=%d pos=(%d,%d) state=%s mask=%s adherence=%.2f",
			a.ID, a.Identity.Name, a.Identity.Age(), a.X, a.Y, a.State, a.Mask, a.Adherence)
	}
}

func (s *Simulation) newAgent() *Agent {
	a := &Agent{
		ID:        s.nextID,
		State:     Susceptible,
		ExposedAt: NeverExposed,
		changedAt: -1,
	}
	s.nextID++

	if s.cfg.Masks.Random {
		a.Mask = MaskLevel(s.rng.Intn(numMaskLevels))
	} else {
		a.Mask = s.cfg.Masks.Level
	}
	if s.cfg.Distancing.Random {
		a.Adherence = minRandomAdherence + (maxRandomAdherence-minRandomAdherence)*s.rng.Float64()
	} else {
		a.Adherence = s.cfg.Distancing.Adherence
	}
	a.Identity = s.cfg.Identities(a.ID, s.rng)
	return a
}

// Step advances the clock by one and runs move, expose, progress and recount.
func (s *Simulation) Step() (Snapshot, error) {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	if !s.seeded {
		return Snapshot{}, errors.New("step: simulation has not been seeded")
	}
	s.clock++

	mobility := s.MobilityModifier()
	mv := movement{
		grid:     s.grid,
		maxStep:  int(math.Round(float64(s.cfg.MaxStep) * mobility)),
		distance: s.cfg.ExposureDistance,
	}
	violations, err := mv.moveAll(s.agents, s.rng)
	if err != nil {
		return Snapshot{}, fmt.Errorf("step %d: move: %w", s.clock, err)
	}

	ex := exposure{
		grid:     s.grid,
		distance: s.cfg.ExposureDistance,
		chance:   s.TransmissionChance,
	}
	if _, err := ex.spread(s.clock, s.rng); err != nil {
		return Snapshot{}, fmt.Errorf("step %d: expose: %w", s.clock, err)
	}

	prog := progression{
		incubation: s.cfg.IncubationPeriod,
		table:      s.cfg.Progression,
		deathBoost: s.deathBoost(Tally(s.agents)),
	}
	if err := prog.apply(s.agents, s.clock, s.rng); err != nil {
		return Snapshot{}, fmt.Errorf("step %d: progress: %w", s.clock, err)
	}

	counts := Tally(s.agents)
	if counts.Total() != s.grid.Population() {
		return Snapshot{}, fmt.Errorf("step %d: %d agents tallied, %d on grid: %w",
			s.clock, counts.Total(), s.grid.Population(), ErrInvariantViolation)
	}
	s.setCounts(counts)

	snap := s.snapshot(counts, violations)
	s.logger.Printf("step=%d %s violations=%d", s.clock, counts, violations)
	return snap, nil
}

// Run seeds the population and performs steps-1 steps, one snapshot each.
func (s *Simulation) Run(population, steps int) ([]Snapshot, error) {
	if steps <= 0 {
		return nil, configErr("steps", "must be positive, got %d", steps)
	}
	if err := s.Seed(population); err != nil {
		return nil, err
	}
	return s.RunSeeded(steps)
}

// RunSeeded performs steps-1 steps on a simulation that was already seeded,
// for example with SeedAt.
func (s *Simulation) RunSeeded(steps int) ([]Snapshot, error) {
	if steps <= 0 {
		return nil, configErr("steps", "must be positive, got %d", steps)
	}
	s.logger.Printf("running microsimulation with population of %d for %d steps", s.Population(), steps)

	snapshots := make([]Snapshot, 0, steps-1)
	for i := 0; i < steps-1; i++ {
		snap, err := s.Step()
		if err != nil {
			return snapshots, err
		}
		snapshots = append(snapshots, snap)
	}
	s.logger.Printf("simulation complete: %s", s.Counts())
	s.stepMu.Lock()
	s.logRoster()
	s.stepMu.Unlock()
	return snapshots, nil
}

// Play steps the simulation once per interval and hands each snapshot to
// report, until the context is cancelled or the configured step count is
// reached. An unseeded simulation is seeded with the configured population.
func (s *Simulation) Play(ctx context.Context, interval time.Duration, report func(Snapshot)) error {
	s.stepMu.Lock()
	seeded := s.seeded
	s.stepMu.Unlock()
	if !seeded {
		if err := s.Seed(s.cfg.Population); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if s.cfg.Steps > 0 && s.Clock() >= s.cfg.Steps-1 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snap, err := s.Step()
			if err != nil {
				return err
			}
			if report != nil {
				report(snap)
			}
		}
	}
}

func (s *Simulation) snapshot(counts Counts, violations int) Snapshot {
	snap := Snapshot{
		Step:       s.clock,
		X:          make([]int, len(s.agents)),
		Y:          make([]int, len(s.agents)),
		Colors:     make([]string, len(s.agents)),
		Counts:     counts,
		Violations: violations,
	}
	for i, a := range s.agents {
		snap.X[i] = a.X
		snap.Y[i] = a.Y
		snap.Colors[i] = a.State.Color()
	}
	return snap
}

func (s *Simulation) setCounts(c Counts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = c
}
