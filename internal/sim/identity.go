package sim

import (
	"fmt"
	"math/rand"
	"time"
)

// RiskBucket is the coarse age-derived risk of severe disease.
type RiskBucket int

const (
	RiskVeryLow RiskBucket = iota + 1
	RiskLow
	RiskModerate
	RiskHigh
	RiskVeryHigh
)

func (r RiskBucket) String() string {
	switch r {
	case RiskVeryLow:
		return "Very Low"
	case RiskLow:
		return "Low"
	case RiskModerate:
		return "Moderate"
	case RiskHigh:
		return "High"
	case RiskVeryHigh:
		return "Very High"
	}
	return "Unknown"
}

// RiskForAge buckets an age in years.
func RiskForAge(age int) RiskBucket {
	switch {
	case age < 18:
		return RiskVeryLow
	case age <= 35:
		return RiskLow
	case age <= 55:
		return RiskModerate
	case age <= 75:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}

// Identity is the externally supplied, immutable attribute bundle of an agent.
type Identity struct {
	Name      string
	BirthDate time.Time
	Risk      RiskBucket
}

// Age is the age in whole years on the identity epoch.
func (id Identity) Age() int {
	age := identityEpoch.Year() - id.BirthDate.Year()
	if identityEpoch.YearDay() < id.BirthDate.YearDay() {
		age--
	}
	return age
}

// IdentitySource produces the identity of a newly created agent.
type IdentitySource func(id int, rng *rand.Rand) Identity

// identityEpoch keeps default ages reproducible across runs with the same seed.
var identityEpoch = time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC)

// DefaultIdentity names the agent after its id and draws an age in [0, 90].
func DefaultIdentity(id int, rng *rand.Rand) Identity {
	age := rng.Intn(91)
	return Identity{
		Name:      fmt.Sprintf("agent-%d", id),
		BirthDate: identityEpoch.AddDate(-age, 0, 0),
		Risk:      RiskForAge(age),
	}
}
