// Package economy provides crop pricing, customer generation and the
// one-offer-per-customer negotiation used on market day.
package economy

import (
	"fmt"
	"math"

	"github.com/talgya/vertifarm/internal/crops"
)

// Rates are the operating cost rates shared by monthly cost accrual and the
// price model.
type Rates struct {
	Light    float64 `yaml:"light" json:"light"`       // per DLI per m² per month
	Water    float64 `yaml:"water" json:"water"`       // per mL/plant/day per m² per month
	Nutrient float64 `yaml:"nutrient" json:"nutrient"` // per g/plant/day per m² per month
	Markup   float64 `yaml:"markup" json:"markup"`
}

// DefaultRates returns the standard cost rates with a 10% markup.
func DefaultRates() Rates {
	return Rates{Light: 0.5, Water: 0.02, Nutrient: 2, Markup: 1.1}
}

// MinPrice keeps every crop sellable.
const MinPrice = 1

// ProductionCost returns the cost to grow one kg under ideal conditions.
func ProductionCost(def *crops.Definition, r Rates) float64 {
	perArea := def.Ideal[crops.Light]*r.Light +
		def.Ideal[crops.Water]*r.Water +
		def.Ideal[crops.Nutrients]*r.Nutrient
	months := float64(def.GrowthDays) / 30
	return perArea * months / def.YieldPerArea()
}

// Price returns the market price per kg: production and supply-chain cost
// plus markup, rounded, never below MinPrice.
func Price(def *crops.Definition, r Rates) float64 {
	p := math.Round(r.Markup * (ProductionCost(def, r) + def.SupplyChainCost))
	return math.Max(MinPrice, p)
}

// MarketEntry is the state of one crop on the market.
type MarketEntry struct {
	Crop           string  `json:"crop"`
	Price          float64 `json:"price"`           // per kg
	ProductionCost float64 `json:"production_cost"` // per kg, ideal conditions
	SupplyChain    float64 `json:"supply_chain"`    // per kg
	Supply         float64 `json:"supply"`          // kg on hand at reprice
	Demand         float64 `json:"demand"`          // kg wanted by this month's customers
}

// Market holds every crop's current price.
type Market struct {
	Month   int                     `json:"month"`
	Entries map[string]*MarketEntry `json:"entries"`
}

// NewMarket creates a market priced for the given registry.
func NewMarket(reg *crops.Registry, r Rates) *Market {
	m := &Market{Entries: make(map[string]*MarketEntry, reg.Len())}
	for _, def := range reg.All() {
		m.Entries[def.Name] = &MarketEntry{Crop: def.Name}
	}
	m.Reprice(reg, r, nil, 0)
	return m
}

// Reprice recomputes every entry from cost fundamentals. stock may be nil.
func (m *Market) Reprice(reg *crops.Registry, r Rates, stock func(crop string) float64, month int) {
	m.Month = month
	for _, def := range reg.All() {
		e, ok := m.Entries[def.Name]
		if !ok {
			e = &MarketEntry{Crop: def.Name}
			m.Entries[def.Name] = e
		}
		e.ProductionCost = ProductionCost(def, r)
		e.SupplyChain = def.SupplyChainCost
		e.Price = Price(def, r)
		e.Demand = 0
		if stock != nil {
			e.Supply = stock(def.Name)
		}
	}
}

// Price returns the current price of crop.
func (m *Market) Price(crop string) (float64, error) {
	e, ok := m.Entries[crop]
	if !ok {
		return 0, fmt.Errorf("%w: no market entry for %q", crops.ErrConfiguration, crop)
	}
	return e.Price, nil
}

// Prices returns a copy of every current price.
func (m *Market) Prices() map[string]float64 {
	out := make(map[string]float64, len(m.Entries))
	for name, e := range m.Entries {
		out[name] = e.Price
	}
	return out
}
