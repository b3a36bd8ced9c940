package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/vertifarm/internal/crops"
	"github.com/talgya/vertifarm/internal/economy"
	"github.com/talgya/vertifarm/internal/entropy"
	"github.com/talgya/vertifarm/internal/farm"
)

func newSim(t *testing.T, src entropy.Source) *Simulation {
	t.Helper()
	sim, err := NewSimulation(crops.Default(), DefaultEconomics(), 1)
	require.NoError(t, err)
	sim.Rand = src
	return sim
}

// idealLettuce sets Level 1 to lettuce setpoints.
func idealLettuce(t *testing.T, sim *Simulation) {
	t.Helper()
	require.NoError(t, sim.SetEnvironment("Level 1", crops.Light, 12))
	require.NoError(t, sim.SetEnvironment("Level 1", crops.Water, 200))
	require.NoError(t, sim.SetEnvironment("Level 1", crops.Nutrients, 0.2))
	require.NoError(t, sim.SetAmbient(crops.Temperature, 21))
}

func TestFirstMonthAtLowestInputs(t *testing.T) {
	sim := newSim(t, entropy.New(5))

	_, err := sim.Plant("Level 1", "Lettuce", 5)
	require.NoError(t, err)
	assert.Equal(t, 9995.0, sim.Farm.Ledger.Budget)
	require.Len(t, sim.Farm.Ledger.Records, 5)
	for _, r := range sim.Farm.Ledger.Records {
		assert.Equal(t, farm.Growing, r.Status)
		assert.Equal(t, 1.0, r.Health)
		assert.Equal(t, 0, r.Age)
	}

	report, err := sim.SimulateMonth()
	require.NoError(t, err)

	assert.Greater(t, report.Costs.Operating(), 0.0)
	assert.Equal(t, 300.0, report.Costs.Rent)
	assert.Equal(t, 5.0, report.Costs.Seeds)
	assert.Equal(t, 305.0, report.Costs.Total)
	assert.Equal(t, 9695.0, sim.Farm.Ledger.Budget)

	for _, r := range sim.Farm.Ledger.Records {
		if r.Status == farm.Dead {
			assert.NotEmpty(t, r.Reason)
			continue
		}
		assert.Equal(t, farm.Growing, r.Status)
		assert.Equal(t, 30, r.Age)
		assert.Less(t, r.Health, 1.0)
	}
	assert.Equal(t, 1, sim.Month())
}

func TestHealthCompoundsUnderStress(t *testing.T) {
	sim := newSim(t, entropy.Fixed(0.5))
	idealLettuce(t, sim)
	// Two tolerance widths off: health tier 0.7, death probability 0.1.
	require.NoError(t, sim.SetEnvironment("Level 1", crops.Light, 16))

	_, err := sim.Plant("Level 1", "Lettuce", 3)
	require.NoError(t, err)

	_, err = sim.SimulateMonth()
	require.NoError(t, err)
	for _, r := range sim.Farm.Ledger.Records {
		assert.Equal(t, farm.Growing, r.Status)
		assert.InDelta(t, 0.7, r.Health, 1e-9)
		assert.Equal(t, 30, r.Age)
	}

	report, err := sim.SimulateMonth()
	require.NoError(t, err)
	require.Len(t, report.Entries, 3)
	for _, e := range report.Entries {
		assert.Equal(t, farm.Harvested, e.Status)
		assert.InDelta(t, 0.24*0.7, e.Yield, 1e-9)
	}
}

func TestHarvestAndPruneNextMonth(t *testing.T) {
	sim := newSim(t, entropy.Fixed(0.5))
	idealLettuce(t, sim)
	ids, err := sim.Plant("Level 1", "Lettuce", 4)
	require.NoError(t, err)

	_, err = sim.SimulateMonth()
	require.NoError(t, err)
	report, err := sim.SimulateMonth()
	require.NoError(t, err)

	require.Len(t, report.Entries, 4)
	for _, e := range report.Entries {
		assert.Equal(t, farm.Harvested, e.Status)
		assert.InDelta(t, 0.24, e.Yield, 1e-9)
		assert.LessOrEqual(t, e.Yield, 0.24)
		assert.InDelta(t, 0.24*report.Prices["Lettuce"], e.Revenue, 1e-9)
	}
	assert.InDelta(t, 0.96, sim.Farm.Ledger.Stock("Lettuce"), 1e-9)
	require.Len(t, report.Summary, 1)
	assert.Equal(t, CropSummary{Crop: "Lettuce", Harvested: 4, YieldKg: report.Summary[0].YieldKg}, report.Summary[0])

	// Terminal records stay visible for one cycle, then go.
	assert.Len(t, sim.Farm.Ledger.Records, 4)
	report, err = sim.SimulateMonth()
	require.NoError(t, err)
	assert.Equal(t, ids, report.Pruned)
	assert.Empty(t, sim.Farm.Ledger.Records)
}

func TestOneRollPerGrowingRecord(t *testing.T) {
	src := &entropy.Scripted{Rolls: []float64{0.5}}
	sim := newSim(t, src)
	idealLettuce(t, sim)
	_, err := sim.Plant("Level 1", "Lettuce", 3)
	require.NoError(t, err)
	_, err = sim.Plant("Level 2", "Basil", 2)
	require.NoError(t, err)

	_, err = sim.SimulateMonth()
	require.NoError(t, err)
	assert.Equal(t, 5, src.Drawn())
}

func TestUnknownCropAbortsBeforeChanges(t *testing.T) {
	sim := newSim(t, entropy.Fixed(0.5))
	_, err := sim.Plant("Level 1", "Lettuce", 2)
	require.NoError(t, err)
	sim.Farm.Ledger.Records[1].Crop = "Ghost"
	budget := sim.Farm.Ledger.Budget

	_, err = sim.SimulateMonth()
	assert.ErrorIs(t, err, farm.ErrConfiguration)
	assert.Equal(t, budget, sim.Farm.Ledger.Budget)
	assert.Equal(t, 0, sim.Month())
	assert.Equal(t, 0, sim.Farm.Ledger.Records[0].Age)
}

func TestSeasonOver(t *testing.T) {
	econ := DefaultEconomics()
	econ.MaxMonths = 2
	sim, err := NewSimulation(crops.Default(), econ, 1)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := sim.SimulateMonth()
		require.NoError(t, err)
	}
	_, err = sim.SimulateMonth()
	assert.ErrorIs(t, err, ErrSeasonOver)
	assert.Equal(t, 0, sim.Performance().MonthsLeft)
}

func TestActionsRecordedPerMonth(t *testing.T) {
	sim := newSim(t, entropy.Fixed(0.5))
	require.NoError(t, sim.SetEnvironment("Level 2", crops.Light, 12))
	require.NoError(t, sim.SetEnvironment("Level 2", crops.Light, 12))
	_, err := sim.Plant("Level 2", "Kale", 10)
	require.NoError(t, err)
	assert.Error(t, sim.SetEnvironment("Level 2", crops.Light, 12.5))

	report, err := sim.SimulateMonth()
	require.NoError(t, err)
	require.Len(t, report.Actions, 2)
	assert.Equal(t, "environment", report.Actions[0].Kind)
	assert.Equal(t, "Level 2 Lighting 0 → 12", report.Actions[0].Detail)
	assert.Equal(t, "10 Kale on Level 2", report.Actions[1].Detail)
	assert.Empty(t, sim.Actions)
}

func TestRevertedChangesDropOut(t *testing.T) {
	sim := newSim(t, entropy.Fixed(0.5))
	require.NoError(t, sim.SetEnvironment("Level 1", crops.Light, 12))
	require.NoError(t, sim.SetEnvironment("Level 1", crops.Light, 14))
	require.NoError(t, sim.SetEnvironment("Level 1", crops.Light, 0))
	require.NoError(t, sim.SetAmbient(crops.Temperature, 21))
	require.NoError(t, sim.SetEnvironment("Level 3", crops.Temperature, 24))
	require.NoError(t, sim.SetEnvironment("Level 2", crops.Water, 200))
	require.NoError(t, sim.SetEnvironment("Level 2", crops.Water, 250))

	require.Len(t, sim.Actions, 2)
	assert.Equal(t, "Temperature 20 → 24", sim.Actions[0].Detail)
	assert.Equal(t, "Level 2 Water 0 → 250", sim.Actions[1].Detail)

	_, err := sim.Plant("Level 1", "Lettuce", 3)
	require.NoError(t, err)
	require.NoError(t, sim.Remove([]farm.RecordID{1}))
	assert.Len(t, sim.Actions, 3)
}

func TestNotes(t *testing.T) {
	sim := newSim(t, entropy.Fixed(0.5))
	assert.ErrorIs(t, sim.SetNotes(strings.Repeat("é", MaxNotesLen+1)), farm.ErrInvalidInput)
	assert.Empty(t, sim.Notes)
	require.NoError(t, sim.SetNotes(strings.Repeat("é", MaxNotesLen)))
	require.NoError(t, sim.SetNotes("  raised light for lettuce  "))

	report, err := sim.SimulateMonth()
	require.NoError(t, err)
	assert.Equal(t, "raised light for lettuce", report.Notes)
	assert.Empty(t, sim.Notes)
}

func TestRequireNotes(t *testing.T) {
	econ := DefaultEconomics()
	econ.RequireNotes = true
	sim, err := NewSimulation(crops.Default(), econ, 1)
	require.NoError(t, err)
	_, err = sim.Plant("Level 1", "Lettuce", 2)
	require.NoError(t, err)

	_, err = sim.SimulateMonth()
	assert.ErrorIs(t, err, ErrNotesRequired)
	assert.Equal(t, 0, sim.Month())
	assert.Equal(t, 9998.0, sim.Farm.Ledger.Budget)
	assert.Equal(t, 0, sim.Farm.Ledger.Records[0].Age)

	require.NoError(t, sim.SetNotes("first planting"))
	_, err = sim.SimulateMonth()
	require.NoError(t, err)
	_, err = sim.SimulateMonth()
	assert.ErrorIs(t, err, ErrNotesRequired)
}

func TestMarketFlow(t *testing.T) {
	sim := newSim(t, entropy.Fixed(0.5))
	idealLettuce(t, sim)
	_, err := sim.Plant("Level 1", "Lettuce", 1000)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = sim.SimulateMonth()
		require.NoError(t, err)
	}
	stock := sim.Farm.Ledger.Stock("Lettuce")
	require.InDelta(t, 240, stock, 1e-6)

	_, err = sim.SubmitOffer(1, 10)
	assert.ErrorIs(t, err, ErrNoMarket)

	customers := sim.GenerateMarketCustomers()
	require.NotEmpty(t, customers)
	assert.Equal(t, customers, sim.GenerateMarketCustomers())

	budget := sim.Farm.Ledger.Budget
	first := customers[0]
	out, err := sim.SubmitOffer(first.ID, first.MaxPrice)
	require.NoError(t, err)
	if first.Crop == "Lettuce" {
		assert.Equal(t, economy.Accepted, out)
		assert.InDelta(t, budget+first.MaxPrice, sim.Farm.Ledger.Budget, 1e-9)
		assert.InDelta(t, stock-first.Quantity, sim.Farm.Ledger.Stock("Lettuce"), 1e-9)
	} else {
		assert.Equal(t, economy.Skipped, out)
	}

	_, err = sim.SubmitOffer(first.ID, 0)
	assert.ErrorIs(t, err, economy.ErrCustomerDecided)

	counts, err := sim.SellAll()
	require.NoError(t, err)
	assert.Equal(t, len(customers)-1, counts[economy.Accepted]+counts[economy.Skipped])

	_, err = sim.SimulateMonth()
	require.NoError(t, err)
	assert.Nil(t, sim.Day)
	require.Len(t, sim.Markets, 1)
	assert.Equal(t, 2, sim.Markets[0].Month)
	assert.Greater(t, sim.Markets[0].Revenue, 0.0)
	assert.Greater(t, sim.Performance().Revenue, 0.0)
}

func TestEngineStepRejectsReentry(t *testing.T) {
	sim := newSim(t, entropy.Fixed(0.5))
	e := NewEngine(sim)

	var inner error
	e.OnMonth = func(*Simulation, *TickReport) {
		_, inner = e.Step()
	}
	report, err := e.Step()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Month)
	assert.ErrorIs(t, inner, ErrTickInProgress)
}

func TestEngineRunStopsAtSeasonEnd(t *testing.T) {
	econ := DefaultEconomics()
	econ.MaxMonths = 3
	sim, err := NewSimulation(crops.Default(), econ, 1)
	require.NoError(t, err)

	e := NewEngine(sim)
	e.Interval = time.Millisecond
	months := 0
	e.OnMonth = func(*Simulation, *TickReport) { months++ }

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Run(ctx))
	assert.Equal(t, 3, months)
	assert.False(t, e.Running())

	require.NoError(t, e.Do(func(s *Simulation) error {
		assert.True(t, s.Over())
		return nil
	}))
}

func TestSimTime(t *testing.T) {
	assert.Equal(t, "Year 1 Month 1 (Day 0)", SimTime(0))
	assert.Equal(t, "Year 2 Month 1 (Day 360)", SimTime(12))
}
