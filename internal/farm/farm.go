// Package farm holds the mutable farm state: growing levels, environment
// inputs and the ledger of planted crops, budget and harvested stock.
package farm

import (
	"fmt"

	"github.com/talgya/vertifarm/internal/crops"
)

// spaceEpsilon absorbs float drift when a level is filled exactly.
const spaceEpsilon = 1e-9

// Farm is the caller-owned farm context.
type Farm struct {
	Registry *crops.Registry
	Layout   Layout
	Ranges   Ranges
	Env      Environment
	Ledger   *Ledger
	Month    int // months simulated so far
}

// New creates a farm with default inputs and an empty ledger.
func New(reg *crops.Registry, layout Layout, ranges Ranges, budget float64) (*Farm, error) {
	if reg == nil {
		return nil, fmt.Errorf("%w: no crop registry", ErrConfiguration)
	}
	if err := layout.validate(); err != nil {
		return nil, err
	}
	if err := ranges.validate(); err != nil {
		return nil, err
	}
	return &Farm{
		Registry: reg,
		Layout:   layout,
		Ranges:   ranges,
		Env:      defaultEnvironment(layout, ranges),
		Ledger:   NewLedger(budget),
	}, nil
}

// Day returns the current simulated day.
func (f *Farm) Day() int {
	return f.Month * DaysPerMonth
}

// FreeArea returns unused area on a level.
func (f *Farm) FreeArea(level string) float64 {
	return f.Layout.LevelArea - f.Ledger.UsedArea(level)
}

// Plant adds count records of crop on level, debiting seed cost. Either all
// records are added or none are.
func (f *Farm) Plant(level, crop string, count int) ([]RecordID, error) {
	if !f.Layout.Has(level) {
		return nil, fmt.Errorf("%w: unknown level %q", ErrInvalidInput, level)
	}
	def, ok := f.Registry.Get(crop)
	if !ok {
		return nil, fmt.Errorf("%w: unknown crop %q", ErrInvalidInput, crop)
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive, got %d", ErrInvalidInput, count)
	}

	need := float64(count) * def.SpaceRequired
	if free := f.FreeArea(level); need > free+spaceEpsilon {
		return nil, fmt.Errorf("%w: %d %s need %.3f m², %s has %.3f m² free", ErrInsufficientSpace, count, crop, need, level, free)
	}
	cost := float64(count) * def.SeedCost
	if cost > f.Ledger.Budget {
		return nil, fmt.Errorf("%w: %d %s cost %.2f, budget %.2f", ErrInsufficientBudget, count, crop, cost, f.Ledger.Budget)
	}

	ids := make([]RecordID, 0, count)
	for i := 0; i < count; i++ {
		ids = append(ids, f.Ledger.append(Record{
			Level:      level,
			Crop:       crop,
			DayPlanted: f.Day(),
			Space:      def.SpaceRequired,
			Status:     Growing,
			Health:     1,
		}))
	}
	f.Ledger.Debit(cost)
	f.Ledger.PendingSeeds += cost
	return ids, nil
}

// Remove deletes records by id, typically dead or harvested cleanup.
func (f *Farm) Remove(ids []RecordID) error {
	return f.Ledger.Remove(ids)
}

// CheckRegistry verifies every record references a known crop.
func (f *Farm) CheckRegistry() error {
	for i := range f.Ledger.Records {
		r := &f.Ledger.Records[i]
		if _, ok := f.Registry.Get(r.Crop); !ok {
			return fmt.Errorf("%w: record %d references unknown crop %q", ErrConfiguration, r.ID, r.Crop)
		}
	}
	return nil
}
