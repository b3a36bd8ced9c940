package gardener

import (
	"github.com/talgya/vertifarm/internal/farm"
)

// FarmHealth holds derived signals computed from a FarmSnapshot.
// Runs before Decide; deterministic and free.
type FarmHealth struct {
	Growing    int
	Harvested  int
	Dead       int
	StockKg    float64
	LevelCrops map[string]string // level → crop still growing there
	DeadCauses map[string]int    // death reason → records
	MonthsLeft int               // -1 = unlimited
	Condition  string            // "IDLE", "GROWING", "HARVEST", "OVER"
}

// Triage computes a FarmHealth from the snapshot's data.
func Triage(snap *FarmSnapshot) *FarmHealth {
	h := &FarmHealth{
		LevelCrops: make(map[string]string),
		DeadCauses: make(map[string]int),
		MonthsLeft: snap.Status.Performance.MonthsLeft,
	}
	if h.MonthsLeft == 0 && !snap.Status.SeasonOver {
		h.MonthsLeft = -1
	}

	for _, r := range snap.Ledger.Records {
		switch r.Status {
		case farm.Growing:
			h.Growing++
			h.LevelCrops[r.Level] = r.Crop
		case farm.Harvested:
			h.Harvested++
		case farm.Dead:
			h.Dead++
			h.DeadCauses[r.Reason]++
		}
	}
	for _, kg := range snap.Ledger.Inventory {
		h.StockKg += kg
	}

	switch {
	case snap.Status.SeasonOver:
		h.Condition = "OVER"
	case h.StockKg > 0:
		h.Condition = "HARVEST"
	case h.Growing > 0:
		h.Condition = "GROWING"
	default:
		h.Condition = "IDLE"
	}
	return h
}
