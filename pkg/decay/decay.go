// Package decay implements the read-time confidence and strength decay
// model for relations.
//
// Stored values never change from the passage of time: the effective
// value is recomputed on every read as an exponential half-life curve
// toward a floor. This avoids write amplification and lets decay
// parameters change without a data migration.
package decay

import (
	"math"
	"time"
)

// Params holds the decay curve for one relation type (or the global
// default). HalfLife is the elapsed time after which the distance to the
// floor halves; Floor is the value decay approaches but never crosses.
type Params struct {
	HalfLife time.Duration `yaml:"half_life"`
	Floor    float64       `yaml:"floor"`
}

// DefaultParams mirrors the long-lived memory profile: a 90-day
// half-life with a 0.1 floor, so relations are never fully forgotten.
func DefaultParams() Params {
	return Params{HalfLife: 90 * 24 * time.Hour, Floor: 0.1}
}

// Effective computes the decayed value of stored after elapsed time:
//
//	floor + (stored - floor) * 2^(-elapsed/halfLife)
//
// The result is monotone non-increasing in elapsed, stays inside [0,1],
// and equals stored at elapsed zero. Values already at or below the
// floor are returned unchanged; a non-positive half-life disables decay.
func (p Params) Effective(stored float64, elapsed time.Duration) float64 {
	stored = clampUnit(stored)
	if elapsed <= 0 || p.HalfLife <= 0 {
		return stored
	}
	floor := clampUnit(p.Floor)
	if stored <= floor {
		return stored
	}
	halved := math.Exp2(-elapsed.Seconds() / p.HalfLife.Seconds())
	return clampUnit(floor + (stored-floor)*halved)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Config holds the global decay parameters plus optional per-relation-type
// overrides. Parameters are configuration, never persisted per relation.
type Config struct {
	Default       Params            `yaml:"default"`
	RelationTypes map[string]Params `yaml:"relation_types"`
}

// DefaultConfig returns a Config with the default curve and no overrides.
func DefaultConfig() Config {
	return Config{Default: DefaultParams()}
}

// ForType returns the parameters for a relation type, falling back to
// the default curve.
func (c Config) ForType(relationType string) Params {
	if p, ok := c.RelationTypes[relationType]; ok {
		return p
	}
	return c.Default
}
