package engine

import (
	"fmt"

	"github.com/talgya/vertifarm/internal/economy"
	"github.com/talgya/vertifarm/internal/farm"
)

// Economics holds the tunable parameters of a farm session.
type Economics struct {
	Layout         farm.Layout   `yaml:"layout" json:"layout"`
	Ranges         farm.Ranges   `yaml:"ranges" json:"ranges"`
	Rates          economy.Rates `yaml:"rates" json:"rates"`
	RentRate       float64       `yaml:"rent_rate" json:"rent_rate"` // per m² per month
	StartingBudget float64       `yaml:"starting_budget" json:"starting_budget"`
	MaxMonths      int           `yaml:"max_months" json:"max_months"` // 0 = unlimited
	RequireNotes   bool          `yaml:"require_notes" json:"require_notes"`
}

// DefaultEconomics returns the standard twelve-month game.
func DefaultEconomics() Economics {
	return Economics{
		Layout:         farm.DefaultLayout(),
		Ranges:         farm.DefaultRanges(),
		Rates:          economy.DefaultRates(),
		RentRate:       4,
		StartingBudget: 10000,
		MaxMonths:      12,
	}
}

// Validate rejects parameter sets the engine cannot run.
func (e Economics) Validate() error {
	if e.RentRate < 0 || e.Rates.Light < 0 || e.Rates.Water < 0 || e.Rates.Nutrient < 0 {
		return fmt.Errorf("%w: negative cost rate", farm.ErrConfiguration)
	}
	if e.Rates.Markup <= 0 {
		return fmt.Errorf("%w: markup must be positive", farm.ErrConfiguration)
	}
	if e.MaxMonths < 0 {
		return fmt.Errorf("%w: max_months must not be negative", farm.ErrConfiguration)
	}
	return nil
}
