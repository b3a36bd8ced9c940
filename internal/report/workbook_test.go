package report

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/talgya/vertifarm/internal/crops"
	"github.com/talgya/vertifarm/internal/engine"
	"github.com/talgya/vertifarm/internal/entropy"
)

func playedSim(t *testing.T) *engine.Simulation {
	t.Helper()
	sim, err := engine.NewSimulation(crops.Default(), engine.DefaultEconomics(), 4)
	require.NoError(t, err)
	sim.Rand = entropy.Fixed(0.5)
	require.NoError(t, sim.SetEnvironment("Level 1", crops.Light, 12))
	require.NoError(t, sim.SetEnvironment("Level 1", crops.Water, 200))
	require.NoError(t, sim.SetEnvironment("Level 1", crops.Nutrients, 0.2))
	_, err = sim.Plant("Level 1", "Lettuce", 10)
	require.NoError(t, err)
	require.NoError(t, sim.SetNotes("first lettuce crop"))
	for i := 0; i < 2; i++ {
		_, err := sim.SimulateMonth()
		require.NoError(t, err)
	}
	sim.GenerateMarketCustomers()
	_, err = sim.SimulateMonth()
	require.NoError(t, err)
	return sim
}

func TestWorkbookSheets(t *testing.T) {
	sim := playedSim(t)

	var buf bytes.Buffer
	require.NoError(t, WriteTo(sim, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetLedger, SheetMonthly, SheetCosts, SheetMarket}, f.GetSheetList())

	costs, err := f.GetRows(SheetCosts)
	require.NoError(t, err)
	require.Len(t, costs, 4) // header + three months
	assert.Equal(t, "Month", costs[0][0])
	assert.Equal(t, "1", costs[1][0])
	assert.Equal(t, "300", costs[1][1])
	assert.Equal(t, "Notes", costs[0][8])
	assert.Equal(t, "first lettuce crop", costs[1][8])

	monthly, err := f.GetRows(SheetMonthly)
	require.NoError(t, err)
	require.Len(t, monthly, 3)
	assert.Equal(t, []string{"1", "Lettuce", "0", "0", "10", "0", "18"}, monthly[1])
	assert.Equal(t, []string{"2", "Lettuce", "10", "0", "0", "2.4", "18"}, monthly[2])

	market, err := f.GetRows(SheetMarket)
	require.NoError(t, err)
	require.Len(t, market, 2)
	assert.Equal(t, "Lettuce", market[1][5])
}

func TestWriteWorkbookToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "farm.xlsx")
	require.NoError(t, WriteWorkbook(playedSim(t), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	ledger, err := f.GetRows(SheetLedger)
	require.NoError(t, err)
	assert.Equal(t, "ID", ledger[0][0])
}
