package sim

import "math"

const lockdownMobility = 0.1

// ControlSettings are the live policy knobs a client can change mid-run.
type ControlSettings struct {
	TransmissionModifier        float64
	LockdownEnabled             bool
	HospitalCapacity            int
	DeathRateOverloadMultiplier float64
}

// ControlState reports the knobs after clamping, together with the values
// derived from them.
type ControlState struct {
	ControlSettings
	InfectionProbability float64
	MobilityModifier     float64
	Overloaded           bool
}

// UpdateTransmissionModifier records a policy transmission modifier, clamped
// to [0, 1].
func (s *Simulation) UpdateTransmissionModifier(modifier float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTransmissionModifierLocked(modifier)
}

func (s *Simulation) setTransmissionModifierLocked(modifier float64) {
	if modifier < 0 || math.IsNaN(modifier) {
		modifier = 0
	} else if modifier > 1 {
		modifier = 1
	}

	s.transmissionMod = modifier
	s.modifierSet = true
}

// CurrentTransmissionModifier returns the effective modifier, defaulting to 1.0
// when the value has not been set.
func (s *Simulation) CurrentTransmissionModifier() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.modifierSet {
		return 1.0
	}

	return s.transmissionMod
}

// InfectionProbability applies the modifier to the base transmission chance
// for an unmasked source, capped at 1.
func (s *Simulation) InfectionProbability() float64 {
	modifier := s.CurrentTransmissionModifier()
	probability := s.cfg.BaseTransmission * modifier
	return math.Min(probability, 1.0)
}

// TransmissionChance is the probability that a source wearing mask infects one
// susceptible neighbor in one step. The target's own mask plays no part.
func (s *Simulation) TransmissionChance(mask MaskLevel) float64 {
	return math.Min(mask.Modifier()*s.InfectionProbability(), 1.0)
}

// SetLockdown toggles the mobility restriction applied to max_step.
func (s *Simulation) SetLockdown(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockdown = enabled
}

// LockdownEnabled reports whether movement is currently restricted.
func (s *Simulation) LockdownEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lockdown
}

// MobilityModifier scales max_step: 0.1 under lockdown, 1.0 otherwise.
func (s *Simulation) MobilityModifier() float64 {
	if s.LockdownEnabled() {
		return lockdownMobility
	}
	return 1.0
}

// SetHospitalCapacity sets how many HOSPITALIZED and CRITICAL agents the
// hospitals absorb before CRITICAL agents die faster. Zero means unlimited.
func (s *Simulation) SetHospitalCapacity(capacity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setHospitalCapacityLocked(capacity)
}

func (s *Simulation) setHospitalCapacityLocked(capacity int) {
	if capacity < 0 {
		capacity = 0
	}
	s.hospitalCapacity = capacity
}

// SetDeathRateOverloadMultiplier sets the CRITICAL -> DEAD multiplier used
// while hospitals are overloaded. Values below 1 are clamped to 1.
func (s *Simulation) SetDeathRateOverloadMultiplier(multiplier float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setOverloadMultiplierLocked(multiplier)
}

func (s *Simulation) setOverloadMultiplierLocked(multiplier float64) {
	if multiplier < 1 || math.IsNaN(multiplier) {
		multiplier = 1
	}
	s.overloadMultiplier = multiplier
}

// Overloaded reports whether the last tally exceeded hospital capacity.
func (s *Simulation) Overloaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overloadedLocked(s.counts)
}

func (s *Simulation) overloadedLocked(c Counts) bool {
	if s.hospitalCapacity == 0 {
		return false
	}
	return c.Get(Hospitalized)+c.Get(Critical) > s.hospitalCapacity
}

func (s *Simulation) deathBoost(c Counts) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.overloadedLocked(c) {
		return s.overloadMultiplier
	}
	return 1
}

// ApplyControlSettings updates every knob under one lock, so a concurrent
// Step sees either the old settings or the new ones, and returns the result.
func (s *Simulation) ApplyControlSettings(settings ControlSettings) ControlState {
	s.mu.Lock()
	s.setTransmissionModifierLocked(settings.TransmissionModifier)
	s.lockdown = settings.LockdownEnabled
	s.setHospitalCapacityLocked(settings.HospitalCapacity)
	s.setOverloadMultiplierLocked(settings.DeathRateOverloadMultiplier)
	s.mu.Unlock()
	return s.Controls()
}

// Controls returns the current knob values.
func (s *Simulation) Controls() ControlState {
	s.mu.RLock()
	settings := ControlSettings{
		TransmissionModifier:        1.0,
		LockdownEnabled:             s.lockdown,
		HospitalCapacity:            s.hospitalCapacity,
		DeathRateOverloadMultiplier: s.overloadMultiplier,
	}
	if s.modifierSet {
		settings.TransmissionModifier = s.transmissionMod
	}
	overloaded := s.overloadedLocked(s.counts)
	s.mu.RUnlock()

	return ControlState{
		ControlSettings:      settings,
		InfectionProbability: s.InfectionProbability(),
		MobilityModifier:     s.MobilityModifier(),
		Overloaded:           overloaded,
	}
}
