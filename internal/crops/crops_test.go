package crops

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	r := Default()
	require.Equal(t, 8, r.Len())

	lettuce, ok := r.Get("Lettuce")
	require.True(t, ok)
	assert.Equal(t, 1.0, lettuce.SeedCost)
	assert.Equal(t, 30, lettuce.GrowthDays)
	for _, v := range Vars {
		assert.Contains(t, lettuce.Ideal, v)
		assert.Greater(t, lettuce.Tolerance[v], 0.0)
	}
	assert.InDelta(t, 9.6, lettuce.YieldPerArea(), 1e-9)
	assert.Equal(t, 0, r.Index("Lettuce"))
	assert.Equal(t, -1, r.Index("Cabbage"))
}

func TestParseRejectsMissingVariable(t *testing.T) {
	raw := []byte(`
crops:
  - name: Lettuce
    max_yield: 0.24
    growth_days: 30
    space_required: 0.025
    ideal:     {N: 0.2,  W: 200, L: 12, T: 21}
    tolerance: {N: 0.05, W: 50,  L: 2,  T: 3,  H: 10}
    seed_cost: 1
`)
	_, err := Parse(raw)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestParseRejectsZeroTolerance(t *testing.T) {
	raw := []byte(`
crops:
  - name: Lettuce
    max_yield: 0.24
    growth_days: 30
    space_required: 0.025
    ideal:     {N: 0.2, W: 200, L: 12, T: 21, H: 60}
    tolerance: {N: 0,   W: 50,  L: 2,  T: 3,  H: 10}
    seed_cost: 1
`)
	_, err := Parse(raw)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	d := *Default().All()[0]
	_, err := NewRegistry([]Definition{d, d})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewRegistry(nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestNewRegistryRejectsIncompleteSetpoints(t *testing.T) {
	d := Definition{
		Name:          "Bare",
		MaxYield:      1,
		GrowthDays:    30,
		SpaceRequired: 1,
		Ideal:         map[Var]float64{Nutrients: 1},
		Tolerance:     map[Var]float64{Nutrients: 1},
	}
	_, err := NewRegistry([]Definition{d})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crops.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
crops:
  - name: Cress
    category: Herb
    max_yield: 0.1
    growth_days: 20
    space_required: 0.01
    ideal:     {N: 0.1,  W: 100, L: 10, T: 20, H: 60}
    tolerance: {N: 0.05, W: 20,  L: 2,  T: 2,  H: 10}
    seed_cost: 0.5
    supply_chain_cost: 5
    demand_ratio: 0.2
`), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cress"}, r.Names())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestParseVar(t *testing.T) {
	for in, want := range map[string]Var{"L": Light, "light": Light, "N": Nutrients, "humidity": Humidity} {
		got, ok := ParseVar(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := ParseVar("pH")
	assert.False(t, ok)
	assert.True(t, Temperature.Ambient())
	assert.False(t, Light.Ambient())
}
