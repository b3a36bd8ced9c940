package growth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/vertifarm/internal/crops"
)

func lettuce(t *testing.T) *crops.Definition {
	t.Helper()
	d, ok := crops.Default().Get("Lettuce")
	require.True(t, ok)
	return d
}

func TestResponseTiers(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{"at ideal", 10, TierIdeal},
		{"exact upper edge", 12, TierIdeal},
		{"exact lower edge", 8, TierIdeal},
		{"second band", 13, TierStressed},
		{"second band edge", 14, TierStressed},
		{"third band", 15.5, TierPoor},
		{"third band edge", 16, TierPoor},
		{"beyond", 40, TierFloor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Response(tt.value, 10, 2))
		})
	}
}

func TestResponseFloatEdgeLandsInNearerTier(t *testing.T) {
	// 0.2 - 0.15 is not exactly 0.05 in binary floating point.
	assert.Equal(t, TierIdeal, Response(0.15, 0.2, 0.05))
	assert.Equal(t, TierIdeal, Response(0.25, 0.2, 0.05))
}

func TestResponseMonotonicAndPositive(t *testing.T) {
	prev := Response(0, 0, 1)
	for d := 0.0; d <= 10; d += 0.01 {
		r := Response(d, 0, 1)
		assert.Greater(t, r, 0.0)
		assert.LessOrEqual(t, r, prev, "deviation %f", d)
		prev = r
	}
}

func TestHealthScoreIsMinimum(t *testing.T) {
	def := lettuce(t)

	env := Ideal(def)
	assert.Equal(t, TierIdeal, HealthScore(def, env))

	// Light two bands out, water three bands out: the minimum wins, not the mean or product.
	env[crops.Light] = def.Ideal[crops.Light] + 2*def.Tolerance[crops.Light]
	env[crops.Water] = def.Ideal[crops.Water] + 3*def.Tolerance[crops.Water]
	assert.Equal(t, TierPoor, HealthScore(def, env))

	env[crops.Nutrients] = 0
	assert.Equal(t, TierFloor, HealthScore(def, env))
}

func TestHealthScoreRange(t *testing.T) {
	for _, def := range crops.Default().All() {
		for _, scale := range []float64{0, 0.5, 1, 1.5, 3} {
			env := Conditions{}
			for _, v := range crops.Vars {
				env[v] = def.Ideal[v] * scale
			}
			s := HealthScore(def, env)
			assert.Greater(t, s, 0.0, def.Name)
			assert.LessOrEqual(t, s, 1.0, def.Name)
		}
	}
}

func TestDisturbanceNeverKillsInBand(t *testing.T) {
	def := lettuce(t)
	env := Ideal(def)
	for _, v := range crops.Vars {
		env[v] += def.Tolerance[v]
	}
	dead, violated := Disturbance(def, env, 0)
	assert.False(t, dead)
	assert.Empty(t, violated)
}

func TestDisturbanceUsesWorstViolator(t *testing.T) {
	def := lettuce(t)
	env := Ideal(def)
	// Light one tolerance width beyond its edge, humidity half a width beyond.
	env[crops.Light] = def.Ideal[crops.Light] + 2*def.Tolerance[crops.Light]
	env[crops.Humidity] = def.Ideal[crops.Humidity] - 1.5*def.Tolerance[crops.Humidity]

	worst, violated := Overshoot(def, env)
	assert.InDelta(t, 1.0, worst, 1e-9)
	assert.Equal(t, []crops.Var{crops.Light, crops.Humidity}, violated)
	assert.InDelta(t, 0.1, DeathProbability(worst), 1e-9)

	dead, _ := Disturbance(def, env, 0.09)
	assert.True(t, dead)
	dead, _ = Disturbance(def, env, 0.11)
	assert.False(t, dead)
}

func TestDeathProbabilityCapped(t *testing.T) {
	assert.Equal(t, 0.0, DeathProbability(0))
	assert.Equal(t, 1.0, DeathProbability(50))
	assert.Less(t, DeathProbability(1), DeathProbability(2))
}
