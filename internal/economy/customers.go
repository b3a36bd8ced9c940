package economy

import (
	"math"

	"github.com/talgya/vertifarm/internal/crops"
	"github.com/talgya/vertifarm/internal/entropy"
)

// Customer generation bounds.
const (
	MinCustomersPerCrop = 2
	MaxCustomersPerCrop = 4
	MinDemandFactor     = 0.5
	MinWillingness      = 0.90
	MaxWillingness      = 1.15
)

// Outcome is a customer's negotiation state. Every state but Pending is final.
type Outcome string

const (
	Pending  Outcome = "Pending"
	Accepted Outcome = "Accepted"
	Rejected Outcome = "Rejected"
	Skipped  Outcome = "Skipped"
)

// Customer is one buyer on market day. MaxPrice is the total the customer
// will pay for the whole quantity.
type Customer struct {
	ID       int     `json:"id"`
	Crop     string  `json:"crop"`
	Quantity float64 `json:"quantity"` // kg
	MaxPrice float64 `json:"max_price"`
	Outcome  Outcome `json:"outcome"`
	Offer    float64 `json:"offer,omitempty"`
}

// Capacity returns the kg per month an idealized farm of totalArea fully
// planted with def could produce.
func Capacity(def *crops.Definition, totalArea float64) float64 {
	plants := totalArea / def.SpaceRequired
	perMonth := math.Min(1, 30/float64(def.GrowthDays))
	return plants * def.MaxYield * perMonth
}

// GenerateCustomers draws this month's buyers. For each crop the total
// demand scales with farm capacity and the crop's demand ratio, then splits
// across 2-4 customers with random shares. IDs follow the shuffled order.
func GenerateCustomers(reg *crops.Registry, m *Market, totalArea float64, month int, rng entropy.Source, drift *DemandDrift) []Customer {
	var out []Customer
	for i, def := range reg.All() {
		price, err := m.Price(def.Name)
		if err != nil {
			continue
		}
		factor := MinDemandFactor + (1-MinDemandFactor)*rng.Float64()
		total := factor * Capacity(def, totalArea) * def.DemandRatio * drift.Factor(month, i)

		n := MinCustomersPerCrop + rng.Intn(MaxCustomersPerCrop-MinCustomersPerCrop+1)
		shares := make([]float64, n)
		sum := 0.0
		for j := range shares {
			shares[j] = 0.1 + rng.Float64()
			sum += shares[j]
		}

		demand := 0.0
		for _, share := range shares {
			qty := round(total*share/sum, 1)
			if qty <= 0 {
				continue
			}
			willing := MinWillingness + (MaxWillingness-MinWillingness)*rng.Float64()
			out = append(out, Customer{
				Crop:     def.Name,
				Quantity: qty,
				MaxPrice: round(price*willing*qty, 2),
				Outcome:  Pending,
			})
			demand += qty
		}
		if e, ok := m.Entries[def.Name]; ok {
			e.Demand = demand
		}
	}

	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	for i := range out {
		out[i].ID = i + 1
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
