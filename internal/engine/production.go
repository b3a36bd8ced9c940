// Monthly step: cost accrual, growth, harvest and death.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/vertifarm/internal/crops"
	"github.com/talgya/vertifarm/internal/farm"
	"github.com/talgya/vertifarm/internal/growth"
)

// SimulateMonth advances the farm one month. Order: close last month's
// market and prune its terminal records, charge operating costs, resolve
// every growing plant, reprice, then age survivors. A registry mismatch
// aborts before any change.
func (s *Simulation) SimulateMonth() (*TickReport, error) {
	if s.Over() {
		return nil, fmt.Errorf("%w: %d of %d months played", ErrSeasonOver, s.Farm.Month, s.Economics.MaxMonths)
	}
	if s.Economics.RequireNotes && s.Notes == "" {
		return nil, fmt.Errorf("%w: explain this month's changes before simulating", ErrNotesRequired)
	}
	if err := s.Farm.CheckRegistry(); err != nil {
		return nil, err
	}
	ledger := s.Farm.Ledger

	s.closeMarket()
	pruned := ledger.Prune()

	costs := s.operatingCosts()
	ledger.Debit(costs.Operating())

	entries := s.resolveGrowth()

	month := s.Farm.Month + 1
	s.Market.Reprice(s.Farm.Registry, s.Economics.Rates, ledger.Stock, month)
	prices := s.Market.Prices()
	for i := range entries {
		if entries[i].Status == farm.Harvested {
			entries[i].Revenue = entries[i].Yield * prices[entries[i].Crop]
		}
	}

	s.Farm.Month = month
	ledger.Each(func(r *farm.Record) {
		if r.Status == farm.Growing {
			r.Age += farm.DaysPerMonth
		}
	})

	report := &TickReport{
		Month:   month,
		SimTime: SimTime(month),
		Entries: entries,
		Costs:   costs,
		Prices:  prices,
		Summary: s.summarize(entries),
		Actions: s.Actions,
		Pruned:  pruned,
		Budget:  ledger.Budget,
		Notes:   s.Notes,
	}
	s.History = append(s.History, report)
	s.Actions = nil
	s.Notes = ""

	harvested, died := 0, 0
	for _, e := range entries {
		if e.Status == farm.Harvested {
			harvested++
		} else {
			died++
		}
	}
	slog.Info("monthly report",
		"month", month,
		"time", report.SimTime,
		"budget", fmt.Sprintf("%.2f", ledger.Budget),
		"costs", fmt.Sprintf("%.2f", costs.Total),
		"harvested", harvested,
		"died", died,
		"growing", ledger.Count(farm.Growing),
		"pruned", len(pruned),
	)
	return report, nil
}

// operatingCosts computes rent and per-level input costs for the month and
// collects seed spend since the last month.
func (s *Simulation) operatingCosts() Costs {
	layout := s.Farm.Layout
	rates := s.Economics.Rates
	c := Costs{Rent: layout.TotalArea() * s.Economics.RentRate}
	for _, level := range layout.Levels {
		in := s.Farm.Env.Levels[level]
		c.Electricity += in[crops.Light] * rates.Light * layout.LevelArea
		c.Water += in[crops.Water] * rates.Water * layout.LevelArea
		c.Nutrients += in[crops.Nutrients] * rates.Nutrient * layout.LevelArea
	}
	c.Seeds = s.Farm.Ledger.TakeSeedSpend()
	c.Total = c.Rent + c.Seeds + c.Electricity + c.Water + c.Nutrients
	return c
}

// resolveGrowth draws exactly one disturbance roll per growing plant and
// applies death, harvest or health decay.
func (s *Simulation) resolveGrowth() []Entry {
	conditions := make(map[string]growth.Conditions, len(s.Farm.Layout.Levels))
	for _, level := range s.Farm.Layout.Levels {
		conditions[level] = s.Farm.Conditions(level)
	}

	var entries []Entry
	s.Farm.Ledger.Each(func(r *farm.Record) {
		if r.Status != farm.Growing {
			return
		}
		def, _ := s.Farm.Registry.Get(r.Crop)
		env := conditions[r.Level]

		dead, violated := growth.Disturbance(def, env, s.Rand.Float64())
		switch {
		case dead:
			r.Die(violated)
		case r.Age >= def.GrowthDays:
			s.Farm.Ledger.Deposit(r.Crop, r.Harvest(def.MaxYield))
		default:
			r.Health *= growth.HealthScore(def, env)
			return
		}
		entries = append(entries, Entry{
			RecordID: r.ID,
			Crop:     r.Crop,
			Level:    r.Level,
			Status:   r.Status,
			Health:   r.Health,
			Yield:    r.Yield,
			Reason:   r.Reason,
		})
	})
	return entries
}

func (s *Simulation) summarize(entries []Entry) []CropSummary {
	byCrop := make(map[string]*CropSummary)
	get := func(crop string) *CropSummary {
		cs, ok := byCrop[crop]
		if !ok {
			cs = &CropSummary{Crop: crop}
			byCrop[crop] = cs
		}
		return cs
	}
	for _, e := range entries {
		cs := get(e.Crop)
		if e.Status == farm.Harvested {
			cs.Harvested++
			cs.YieldKg += e.Yield
		} else {
			cs.Died++
		}
	}
	s.Farm.Ledger.Each(func(r *farm.Record) {
		if r.Status == farm.Growing {
			get(r.Crop).Growing++
		}
	})

	out := make([]CropSummary, 0, len(byCrop))
	for _, name := range s.Farm.Registry.Names() {
		if cs, ok := byCrop[name]; ok {
			out = append(out, *cs)
		}
	}
	return out
}
