// Package growth maps a crop's environment to a health multiplier and a
// disturbance (death) probability.
//
// Health follows a bottleneck model: every variable is scored on its own and
// the worst-managed input caps the plant's overall health.
package growth

import (
	"math"

	"github.com/talgya/vertifarm/internal/crops"
)

// Response tiers, from within one tolerance band to beyond three.
const (
	TierIdeal    = 1.0
	TierStressed = 0.7
	TierPoor     = 0.4
	TierFloor    = 0.1
)

// DeathScale converts squared overshoot into a per-month death probability.
const DeathScale = 0.1

// bandEpsilon absorbs float rounding so values exactly on a band edge land
// in the nearer tier.
const bandEpsilon = 1e-9

// Conditions is the effective environment a plant experiences.
type Conditions map[crops.Var]float64

// Response scores one variable. The result never increases with deviation
// and is always strictly positive.
func Response(value, ideal, tolerance float64) float64 {
	d := math.Abs(value - ideal)
	switch {
	case d <= tolerance+bandEpsilon:
		return TierIdeal
	case d <= 2*tolerance+bandEpsilon:
		return TierStressed
	case d <= 3*tolerance+bandEpsilon:
		return TierPoor
	default:
		return TierFloor
	}
}

// HealthScore returns the minimum response across all five variables.
func HealthScore(def *crops.Definition, env Conditions) float64 {
	score := TierIdeal
	for _, v := range crops.Vars {
		if r := Response(env[v], def.Ideal[v], def.Tolerance[v]); r < score {
			score = r
		}
	}
	return score
}

// Overshoot returns how far the worst variable sits beyond its tolerance
// edge, in tolerance widths, and every variable that is out of band.
func Overshoot(def *crops.Definition, env Conditions) (float64, []crops.Var) {
	worst := 0.0
	var violated []crops.Var
	for _, v := range crops.Vars {
		tol := def.Tolerance[v]
		beyond := math.Abs(env[v]-def.Ideal[v]) - tol
		if beyond <= bandEpsilon {
			continue
		}
		violated = append(violated, v)
		if o := beyond / tol; o > worst {
			worst = o
		}
	}
	return worst, violated
}

// DeathProbability maps the worst overshoot to a monthly death probability.
func DeathProbability(overshoot float64) float64 {
	if overshoot <= 0 {
		return 0
	}
	return math.Min(1, overshoot*overshoot*DeathScale)
}

// Disturbance decides whether a plant dies this month given a uniform roll
// in [0, 1). Only the worst violator sets the risk; in-band variables never
// contribute.
func Disturbance(def *crops.Definition, env Conditions, roll float64) (bool, []crops.Var) {
	worst, violated := Overshoot(def, env)
	return roll < DeathProbability(worst), violated
}

// Ideal returns the conditions that exactly match a crop's setpoints.
func Ideal(def *crops.Definition) Conditions {
	c := make(Conditions, len(crops.Vars))
	for _, v := range crops.Vars {
		c[v] = def.Ideal[v]
	}
	return c
}
