package gardener

import (
	"log/slog"

	"github.com/talgya/vertifarm/internal/farm"
)

// Cycle runs one observe → decide → act pass and records it in mem.
// It returns the record even when acting fails part-way.
func Cycle(o *Observer, a *Actor, p Policy, mem *CycleMemory) (*CycleRecord, error) {
	snap, err := o.Observe()
	if err != nil {
		return nil, err
	}
	h := Triage(snap)
	slog.Info("observation complete",
		"month", snap.Status.Month,
		"condition", h.Condition,
		"growing", h.Growing,
		"stock_kg", h.StockKg,
		"budget", snap.Ledger.Budget,
	)

	rec := &CycleRecord{Month: snap.Status.Month, Condition: h.Condition, Budget: snap.Ledger.Budget}
	plan := Decide(snap, h, p)
	for _, why := range plan.Rationale {
		slog.Debug("plan", "note", why)
	}

	out, err := a.Act(plan)
	rec.Steps = out.Executed
	rec.Planted = out.Planted
	if out.Report != nil {
		rec.Month = out.Report.Month
		rec.Budget = out.Report.Budget
		for _, e := range out.Report.Entries {
			switch e.Status {
			case farm.Harvested:
				rec.Harvested++
			case farm.Dead:
				rec.Died++
			}
		}
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if mem != nil {
		mem.Record(*rec)
		mem.Save()
	}
	return rec, err
}
