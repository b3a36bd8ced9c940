package engine

import (
	"github.com/talgya/vertifarm/internal/crops"
	"github.com/talgya/vertifarm/internal/farm"
)

// Costs is one month's operating cost breakdown. Total includes seeds, which
// were already debited when planted.
type Costs struct {
	Rent        float64 `json:"rent"`
	Seeds       float64 `json:"seeds"`
	Electricity float64 `json:"electricity"`
	Water       float64 `json:"water"`
	Nutrients   float64 `json:"nutrients"`
	Total       float64 `json:"total"`
}

// Operating returns the part of the month's costs charged at the tick.
func (c Costs) Operating() float64 {
	return c.Total - c.Seeds
}

// Entry records one status change during a month.
type Entry struct {
	RecordID farm.RecordID `json:"record_id"`
	Crop     string        `json:"crop"`
	Level    string        `json:"level"`
	Status   farm.Status   `json:"status"`
	Health   float64       `json:"health"`
	Yield    float64       `json:"yield"`
	Revenue  float64       `json:"revenue"` // estimated value at this month's price
	Reason   string        `json:"reason,omitempty"`
}

// CropSummary aggregates one crop's results for the month.
type CropSummary struct {
	Crop      string  `json:"crop"`
	Harvested int     `json:"harvested"`
	Died      int     `json:"died"`
	Growing   int     `json:"growing"`
	YieldKg   float64 `json:"yield_kg"`
}

// Action is one caller change made between months. Environment actions
// carry the input and its month-start and current values.
type Action struct {
	Month  int       `json:"month"`
	Kind   string    `json:"kind"` // environment or plant
	Detail string    `json:"detail"`
	Level  string    `json:"level,omitempty"` // empty for ambient inputs
	Var    crops.Var `json:"var,omitempty"`
	From   float64   `json:"from,omitempty"`
	To     float64   `json:"to,omitempty"`
}

// TickReport is everything a month produced.
type TickReport struct {
	Month   int                `json:"month"`
	SimTime string             `json:"sim_time"`
	Entries []Entry            `json:"entries"`
	Costs   Costs              `json:"costs"`
	Prices  map[string]float64 `json:"prices"`
	Summary []CropSummary      `json:"summary"`
	Actions []Action           `json:"actions"`
	Pruned  []farm.RecordID    `json:"pruned"`
	Budget  float64            `json:"budget"`
	Notes   string             `json:"notes,omitempty"`
}

// Performance is the running scoreboard of a session.
type Performance struct {
	Month          int     `json:"month"`
	MonthsLeft     int     `json:"months_left"`
	Budget         float64 `json:"budget"`
	Revenue        float64 `json:"revenue"`
	Costs          float64 `json:"costs"`
	Profit         float64 `json:"profit"`
	Growing        int     `json:"growing"`
	InventoryKg    float64 `json:"inventory_kg"`
	InventoryValue float64 `json:"inventory_value"`
}
