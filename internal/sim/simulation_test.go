package sim

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Width:            20,
		Height:           20,
		Population:       10,
		Steps:            10,
		ExposureDistance: 3,
		MaxStep:          3,
		BaseTransmission: 0.25,
		IncubationPeriod: 4,
		Masks:            MaskPolicy{Random: true},
		Distancing:       DistancingPolicy{Random: true},
		Seed:             42,
		Logger:           log.New(io.Discard, "", 0),
	}
}

func newTestSimulation(t *testing.T, adjust func(*Config)) *Simulation {
	t.Helper()
	cfg := testConfig()
	if adjust != nil {
		adjust(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestInfectionProbabilityDefaults(t *testing.T) {
	s := newTestSimulation(t, nil)
	if got := s.CurrentTransmissionModifier(); got != 1.0 {
		t.Fatalf("expected default modifier 1.0, got %v", got)
	}

	expected := 0.25
	if prob := s.InfectionProbability(); prob != expected {
		t.Fatalf("expected probability %v, got %v", expected, prob)
	}
}

func TestModifierApplied(t *testing.T) {
	s := newTestSimulation(t, func(c *Config) { c.BaseTransmission = 0.5 })
	s.UpdateTransmissionModifier(0.4)

	if got := s.CurrentTransmissionModifier(); got != 0.4 {
		t.Fatalf("expected modifier 0.4, got %v", got)
	}

	expected := 0.2
	if prob := s.InfectionProbability(); prob != expected {
		t.Fatalf("expected probability %v, got %v", expected, prob)
	}
}

func TestZeroModifierAllowed(t *testing.T) {
	s := newTestSimulation(t, func(c *Config) { c.BaseTransmission = 0.5 })
	s.UpdateTransmissionModifier(0)

	if got := s.CurrentTransmissionModifier(); got != 0 {
		t.Fatalf("expected modifier to be set to 0, got %v", got)
	}

	if prob := s.InfectionProbability(); prob != 0 {
		t.Fatalf("expected probability 0 when modifier is zero, got %v", prob)
	}
}

func TestPlayReports(t *testing.T) {
	s := newTestSimulation(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reported := make(chan Snapshot, 1)
	done := make(chan error, 1)

	go func() {
		done <- s.Play(ctx, 10*time.Millisecond, func(snap Snapshot) {
			select {
			case reported <- snap:
			default:
			}
			cancel()
		})
	}()

	select {
	case snap := <-reported:
		if snap.Step != 1 {
			t.Fatalf("expected first reported step 1, got %d", snap.Step)
		}
		if snap.Counts.Total() != 10 {
			t.Fatalf("expected 10 agents tallied, got %d", snap.Counts.Total())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for report")
	}

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPlayStopsAtConfiguredSteps(t *testing.T) {
	s := newTestSimulation(t, func(c *Config) { c.Steps = 4 })

	var steps []int
	err := s.Play(context.Background(), time.Millisecond, func(snap Snapshot) {
		steps = append(steps, snap.Step)
	})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if len(steps) != 3 || steps[2] != 3 {
		t.Fatalf("expected steps [1 2 3], got %v", steps)
	}
}

func TestOverloadBoostsDeathProbability(t *testing.T) {
	s := newTestSimulation(t, nil)
	s.SetHospitalCapacity(2)
	s.SetDeathRateOverloadMultiplier(3)

	var c Counts
	c[Hospitalized] = 4
	c[Critical] = 1
	s.setCounts(c)

	if !s.Overloaded() {
		t.Fatal("expected simulation to be overloaded")
	}
	if boost := s.deathBoost(s.Counts()); boost != 3 {
		t.Fatalf("expected overloaded death multiplier 3, got %v", boost)
	}

	s.SetHospitalCapacity(0)
	if s.Overloaded() {
		t.Fatal("zero capacity means unlimited")
	}
}

func TestLockdownTogglesMobility(t *testing.T) {
	s := newTestSimulation(t, nil)

	s.SetLockdown(true)
	if !s.LockdownEnabled() {
		t.Fatal("expected lockdown to be enabled")
	}
	if got := s.MobilityModifier(); got != 0.1 {
		t.Fatalf("expected mobility modifier to drop to 0.1, got %v", got)
	}

	s.SetLockdown(false)
	if s.LockdownEnabled() {
		t.Fatal("expected lockdown to be disabled")
	}
	if got := s.MobilityModifier(); got != 1.0 {
		t.Fatalf("expected mobility modifier to reset to 1.0, got %v", got)
	}
}

func TestApplyControlSettings(t *testing.T) {
	s := newTestSimulation(t, func(c *Config) { c.BaseTransmission = 0.3 })

	state := s.ApplyControlSettings(ControlSettings{
		TransmissionModifier:        0.75,
		LockdownEnabled:             true,
		HospitalCapacity:            -5,
		DeathRateOverloadMultiplier: 0.5,
	})

	if state.TransmissionModifier != 0.75 {
		t.Fatalf("expected transmission modifier 0.75, got %v", state.TransmissionModifier)
	}
	if !state.LockdownEnabled {
		t.Fatalf("expected lockdown to be enabled")
	}
	if state.HospitalCapacity != 0 {
		t.Fatalf("expected negative capacity to clamp to 0, got %v", state.HospitalCapacity)
	}
	if state.DeathRateOverloadMultiplier != 1 {
		t.Fatalf("expected overload multiplier to clamp to 1, got %v", state.DeathRateOverloadMultiplier)
	}
	if state.MobilityModifier != 0.1 {
		t.Fatalf("expected lockdown to adjust mobility modifier to 0.1, got %v", state.MobilityModifier)
	}
}

func TestApplyControlSettingsIsAtomic(t *testing.T) {
	s := newTestSimulation(t, nil)
	a := ControlSettings{TransmissionModifier: 0.2, LockdownEnabled: true, HospitalCapacity: 3, DeathRateOverloadMultiplier: 2}
	b := ControlSettings{TransmissionModifier: 0.9, LockdownEnabled: false, HospitalCapacity: 8, DeathRateOverloadMultiplier: 4}
	s.ApplyControlSettings(a)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				s.ApplyControlSettings(b)
			} else {
				s.ApplyControlSettings(a)
			}
		}
	}()

	for i := 0; i < 2000; i++ {
		got := s.Controls().ControlSettings
		if got != a && got != b {
			close(stop)
			wg.Wait()
			t.Fatalf("observed a half-applied update %+v", got)
		}
	}
	close(stop)
	wg.Wait()
}

func TestLockdownFreezesShortWalks(t *testing.T) {
	s := newTestSimulation(t, func(c *Config) { c.MaxStep = 3 })
	s.SetLockdown(true)
	if err := s.Seed(10); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	before := make([]Point, 0, 10)
	for _, a := range s.Agents() {
		before = append(before, Point{a.X, a.Y})
	}
	if _, err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	for i, a := range s.Agents() {
		if (Point{a.X, a.Y}) != before[i] {
			t.Fatalf("agent %d moved under lockdown", a.ID)
		}
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"grid.width":               func(c *Config) { c.Width = 0 },
		"population":               func(c *Config) { c.Population = 401 },
		"distancing.adherence":     func(c *Config) { c.Distancing = DistancingPolicy{Adherence: 1.5} },
		"base_transmission_chance": func(c *Config) { c.BaseTransmission = 2 },
		"max_step":                 func(c *Config) { c.MaxStep = -1 },
	}
	for field, adjust := range cases {
		cfg := testConfig()
		adjust(&cfg)
		_, err := New(cfg)
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) || cfgErr.Field != field {
			t.Fatalf("expected ConfigError on %s, got %v", field, err)
		}
		if !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("expected error to wrap ErrInvalidConfig, got %v", err)
		}
	}
}

func TestSeedGuaranteesPatientZero(t *testing.T) {
	s := newTestSimulation(t, func(c *Config) { c.BaseTransmission = 0 })
	if err := s.Seed(5); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	agents := s.Agents()
	if agents[0].ID != 1 || agents[0].State != Exposed || agents[0].ExposedAt != 0 {
		t.Fatalf("expected patient zero exposed at step 0, got %+v", agents[0])
	}
	if got := s.Counts().Get(Exposed); got != 1 {
		t.Fatalf("expected one EXPOSED agent after seeding, got %d", got)
	}
	for _, a := range agents[1:] {
		if a.State != Susceptible {
			t.Fatalf("agent %d seeded as %s", a.ID, a.State)
		}
		if a.Adherence < 0.4 || a.Adherence > 1 {
			t.Fatalf("agent %d adherence %v outside [0.4,1]", a.ID, a.Adherence)
		}
	}
}

func TestSeedErrors(t *testing.T) {
	s := newTestSimulation(t, func(c *Config) { c.Width, c.Height, c.Population = 2, 2, 4 })
	err := s.Seed(5)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected over-capacity population to be rejected, got %v", err)
	}

	if err := s.Seed(4); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := s.Seed(1); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected second seed to fail, got %v", err)
	}
}

func TestFailedSeedAtLeavesNoAgents(t *testing.T) {
	s := newTestSimulation(t, nil)
	if err := s.SeedAt([]Point{{1, 1}, {1, 1}}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected duplicate placement to be rejected, got %v", err)
	}
	if got := s.Grid().Population(); got != 0 {
		t.Fatalf("expected an empty grid after a failed seed, got %d agents", got)
	}
	if s.Grid().At(1, 1) != nil {
		t.Fatal("expected (1,1) to be released")
	}

	if err := s.SeedAt([]Point{{5, 5}, {6, 6}}); err != nil {
		t.Fatalf("SeedAt: %v", err)
	}
	agents := s.Agents()
	if len(agents) != 2 || agents[0].ID != 1 || agents[1].ID != 2 {
		t.Fatalf("expected agents 1 and 2, got %+v", agents)
	}
	if agents[0].State != Exposed {
		t.Fatalf("expected agent 1 to be patient zero, got %s", agents[0].State)
	}

	snap, err := s.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if snap.Counts.Total() != 2 || s.Population() != 2 {
		t.Fatalf("expected 2 agents after stepping, got %s", snap.Counts)
	}
}

func TestFailedSeedLeavesNoAgents(t *testing.T) {
	s := newTestSimulation(t, func(c *Config) { c.Width, c.Height, c.Population = 3, 3, 2 })
	if err := s.SeedAt([]Point{{0, 0}, {1, 1}, {3, 0}}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected out-of-bounds placement to be rejected, got %v", err)
	}
	if got := s.Grid().Population(); got != 0 {
		t.Fatalf("expected an empty grid after a failed seed, got %d agents", got)
	}
	if err := s.Seed(9); err != nil {
		t.Fatalf("expected a full seed after the failure, got %v", err)
	}
	if got := s.Population(); got != 9 {
		t.Fatalf("expected population 9, got %d", got)
	}
}

func TestRunLogsRoster(t *testing.T) {
	var buf bytes.Buffer
	s := newTestSimulation(t, func(c *Config) { c.Logger = log.New(&buf, "", 0) })
	if _, err := s.Run(3, 2); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var rows int
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.HasPrefix(line, "agent id=") {
			rows++
		}
	}
	if rows != 6 {
		t.Fatalf("expected the 3 agents listed at start and end, got %d rows:\n%s", rows, buf.String())
	}
	if !strings.Contains(buf.String(), "agent id=1 name=agent-1 ") || !strings.Contains(buf.String(), "state=exposed") {
		t.Fatalf("roster misses patient zero:\n%s", buf.String())
	}
}

func TestStepBeforeSeedFails(t *testing.T) {
	s := newTestSimulation(t, nil)
	if _, err := s.Step(); err == nil {
		t.Fatal("expected Step on an unseeded simulation to fail")
	}
}

func TestRunKeepsPopulationAndStateMachineConsistent(t *testing.T) {
	s := newTestSimulation(t, func(c *Config) {
		c.Width, c.Height = 30, 30
		c.BaseTransmission = 0.6
		c.Progression = DefaultProgression()
		c.HospitalCapacity = 2
		c.DeathRateOverloadMultiplier = 2
	})

	snaps, err := s.Run(60, 80)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(snaps) != 79 {
		t.Fatalf("expected 79 snapshots, got %d", len(snaps))
	}

	byColor := make(map[string]HealthState)
	for _, st := range HealthStates() {
		byColor[st.Color()] = st
	}

	prev := make([]HealthState, 60)
	for i := range prev {
		prev[i] = Susceptible
	}
	prev[0] = Exposed

	for _, snap := range snaps {
		if len(snap.X) != 60 || len(snap.Y) != 60 || len(snap.Colors) != 60 {
			t.Fatalf("step %d: snapshot lost agents", snap.Step)
		}
		if snap.Counts.Total() != 60 {
			t.Fatalf("step %d: tally %d", snap.Step, snap.Counts.Total())
		}
		seen := make(map[Point]bool)
		for i := range snap.X {
			p := Point{snap.X[i], snap.Y[i]}
			if seen[p] {
				t.Fatalf("step %d: two agents at %v", snap.Step, p)
			}
			seen[p] = true

			cur := byColor[snap.Colors[i]]
			if cur != prev[i] && !CanTransition(prev[i], cur) {
				t.Fatalf("step %d: agent %d went %s -> %s", snap.Step, i+1, prev[i], cur)
			}
			prev[i] = cur
		}
	}
	if s.Population() != 60 {
		t.Fatalf("expected population 60, got %d", s.Population())
	}
}

func TestRunIsReproducibleForASeed(t *testing.T) {
	first, err := newTestSimulation(t, nil).Run(10, 20)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := newTestSimulation(t, nil).Run(10, 20)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i := range first {
		for j := range first[i].X {
			if first[i].X[j] != second[i].X[j] || first[i].Y[j] != second[i].Y[j] || first[i].Colors[j] != second[i].Colors[j] {
				t.Fatalf("step %d agent %d differs between identical seeds", i+1, j+1)
			}
		}
	}
}

func TestIncubationDeterminism(t *testing.T) {
	s := newTestSimulation(t, func(c *Config) {
		c.BaseTransmission = 0
		c.IncubationPeriod = 3
	})
	snaps, err := s.Run(5, 6)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, snap := range snaps {
		want := Exposed.Color()
		if snap.Step >= 3 {
			want = Infected.Color()
		}
		if snap.Colors[0] != want {
			t.Fatalf("step %d: patient zero shows %s, want %s", snap.Step, snap.Colors[0], want)
		}
	}
}

func TestTwoAgentScenario(t *testing.T) {
	s := newTestSimulation(t, func(c *Config) {
		c.Width, c.Height = 10, 10
		c.ExposureDistance = 3
		c.MaxStep = 0
		c.BaseTransmission = 1
		c.IncubationPeriod = 4
		c.Masks = MaskPolicy{Level: MaskNone}
		c.Distancing = DistancingPolicy{Adherence: 1}
	})
	if err := s.SeedAt([]Point{{2, 2}, {4, 2}}); err != nil {
		t.Fatalf("SeedAt: %v", err)
	}

	snap, err := s.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if snap.Counts.Get(Exposed) != 1 || snap.Counts.Get(Susceptible) != 1 {
		t.Fatalf("step 1: unexpected counts %s", snap.Counts)
	}

	for s.Clock() < 4 {
		if snap, err = s.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if snap.Counts.Get(Infected) != 1 || snap.Counts.Get(Susceptible) != 1 {
		t.Fatalf("step 4: expected patient zero infected, got %s", snap.Counts)
	}

	if snap, err = s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	var want Counts
	want[Exposed] = 1
	want[Infected] = 1
	if snap.Counts != want {
		t.Fatalf("step 5: expected %s, got %s", want, snap.Counts)
	}
	if a := s.Agents()[1]; a.ExposedAt != 5 || a.X != 4 || a.Y != 2 {
		t.Fatalf("expected second agent exposed at step 5 in place, got %+v", a)
	}
}

func TestCountsString(t *testing.T) {
	var c Counts
	c[Susceptible] = 3
	c[Dead] = 1
	want := "susceptible=3 exposed=0 infected=0 hospitalized=0 critical=0 dead=1 recovered=0"
	if c.String() != want {
		t.Fatalf("expected %q, got %q", want, c.String())
	}
}
