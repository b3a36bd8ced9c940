package scenario

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/vertifarm/internal/crops"
	"github.com/talgya/vertifarm/internal/engine"
	"github.com/talgya/vertifarm/internal/entropy"
	"github.com/talgya/vertifarm/internal/farm"
)

func newSim(t *testing.T) *engine.Simulation {
	t.Helper()
	sim, err := engine.NewSimulation(crops.Default(), engine.DefaultEconomics(), 2)
	require.NoError(t, err)
	sim.Rand = entropy.Fixed(0.5)
	return sim
}

const season = `
# one lettuce crop on the bottom level
ambient T 21
set "Level 1" L 12
set "Level 1" water 200
set "Level 1" N 0.2
plant "Level 1" Lettuce 1000
simulate 2
status
market
sellall
remove harvested
simulate
`

func TestParse(t *testing.T) {
	script, err := Parse("season.farm", season)
	require.NoError(t, err)
	require.Len(t, script.Statements, 11)

	set := script.Statements[1].Set
	require.NotNil(t, set)
	assert.Equal(t, "Level 1", set.Level)
	assert.Equal(t, "L", set.Var)
	assert.Equal(t, 12.0, set.Value)

	plant := script.Statements[4].Plant
	require.NotNil(t, plant)
	assert.Equal(t, Plant{Level: "Level 1", Crop: "Lettuce", Count: 1000}, *plant)

	assert.Equal(t, 2, script.Statements[5].Simulate.Months)
	assert.Equal(t, "harvested", script.Statements[9].Remove.Which)
	assert.Equal(t, 0, script.Statements[10].Simulate.Months)
	assert.Equal(t, 7, script.Statements[4].Pos.Line)
}

func TestParseRemoveIDs(t *testing.T) {
	script, err := Parse("", "remove 3 4 9\noffer 2 10.5\nskip 1")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 9}, script.Statements[0].Remove.IDs)
	assert.Equal(t, Offer{Customer: 2, Price: 10.5}, *script.Statements[1].Offer)
	assert.Equal(t, 1, script.Statements[2].Skip.Customer)
}

func TestParseError(t *testing.T) {
	_, err := Parse("bad.farm", "plant Lettuce\n")
	assert.Error(t, err)
	_, err = Parse("bad.farm", "grow 3\n")
	assert.Error(t, err)
}

func TestRunSeason(t *testing.T) {
	sim := newSim(t)
	lines, err := Run(sim, "season.farm", season)
	require.NoError(t, err)

	assert.Equal(t, "Temperature = 21", lines[0])
	assert.Equal(t, "Level 1 Lighting = 12", lines[1])
	assert.Equal(t, "planted 1000 Lettuce on Level 1 (ids 1-1000), budget 9,000", lines[4])
	assert.True(t, strings.HasPrefix(lines[5], "month 1: costs "), lines[5])
	assert.Contains(t, lines[6], "harvested 1000, died 0")

	assert.Equal(t, 3, sim.Month())
	assert.Empty(t, sim.Farm.Ledger.Records)
	assert.Greater(t, sim.Performance().Revenue, 0.0)
	require.Len(t, sim.Markets, 1)
}

func TestRunStopsAtFailingStatement(t *testing.T) {
	sim := newSim(t)
	lines, err := Run(sim, "fail.farm", "plant \"Level 2\" Basil 2\nplant \"Level 2\" Basil 100000\nstatus\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, farm.ErrInsufficientResource)
	assert.Contains(t, err.Error(), "fail.farm:2:1")
	assert.Len(t, lines, 1)
	assert.Len(t, sim.Farm.Ledger.Records, 2)
}

func TestRunRejectsUnknownVariable(t *testing.T) {
	_, err := Run(newSim(t), "", "ambient pH 7")
	assert.ErrorIs(t, err, farm.ErrInvalidInput)
}

func TestRunNotes(t *testing.T) {
	econ := engine.DefaultEconomics()
	econ.RequireNotes = true
	sim, err := engine.NewSimulation(crops.Default(), econ, 2)
	require.NoError(t, err)
	sim.Rand = entropy.Fixed(0.5)

	_, err = Run(sim, "notes.farm", "plant \"Level 1\" Lettuce 5\nsimulate\n")
	assert.ErrorIs(t, err, engine.ErrNotesRequired)
	assert.Contains(t, err.Error(), "notes.farm:2:1")
	assert.Equal(t, 0, sim.Month())

	lines, err := Run(sim, "notes.farm", "notes \"trial run of lettuce\"\nsimulate\n")
	require.NoError(t, err)
	assert.Equal(t, "notes: trial run of lettuce", lines[0])
	assert.Equal(t, "trial run of lettuce", sim.LastReport().Notes)
}
