// Market day: customer generation and offer resolution.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/vertifarm/internal/economy"
)

// GenerateMarketCustomers opens this month's market day. Calling it again in
// the same month returns the same customers.
func (s *Simulation) GenerateMarketCustomers() []economy.Customer {
	if s.Day == nil || s.Day.Month != s.Farm.Month {
		customers := economy.GenerateCustomers(
			s.Farm.Registry, s.Market, s.Farm.Layout.TotalArea(),
			s.Farm.Month, s.Rand, s.Drift,
		)
		s.Day = economy.NewMarketDay(s.Farm.Month, customers)
		slog.Info("market opened", "month", s.Farm.Month, "customers", len(customers))
	}
	out := make([]economy.Customer, len(s.Day.Customers))
	copy(out, s.Day.Customers)
	return out
}

// SubmitOffer makes the single offer the given customer will hear.
func (s *Simulation) SubmitOffer(customerID int, offer float64) (economy.Outcome, error) {
	if s.Day == nil {
		return "", ErrNoMarket
	}
	out, err := s.Day.SubmitOffer(s.Farm.Ledger, customerID, offer)
	if err != nil {
		slog.Debug("offer rejected", "customer", customerID, "offer", offer, "error", err)
		return "", err
	}
	return out, nil
}

// SkipCustomer passes on the current customer.
func (s *Simulation) SkipCustomer(customerID int) error {
	if s.Day == nil {
		return ErrNoMarket
	}
	return s.Day.Skip(customerID)
}

// SellAll offers every remaining customer their maximum price.
func (s *Simulation) SellAll() (map[economy.Outcome]int, error) {
	if s.Day == nil {
		return nil, ErrNoMarket
	}
	counts := make(map[economy.Outcome]int)
	for {
		c, ok := s.Day.Current()
		if !ok {
			return counts, nil
		}
		out, err := s.Day.SubmitOffer(s.Farm.Ledger, c.ID, c.MaxPrice)
		if err != nil {
			return counts, fmt.Errorf("customer %d: %w", c.ID, err)
		}
		counts[out]++
	}
}

// MarketSummary summarizes the open market day.
func (s *Simulation) MarketSummary() (economy.Summary, error) {
	if s.Day == nil {
		return economy.Summary{}, ErrNoMarket
	}
	return s.Day.Summary(s.Farm.Ledger.Inventory), nil
}

// closeMarket archives the open market day. Unsold stock stays in inventory.
func (s *Simulation) closeMarket() {
	if s.Day == nil {
		return
	}
	sum := s.Day.Summary(s.Farm.Ledger.Inventory)
	s.Markets = append(s.Markets, sum)
	slog.Info("market closed",
		"month", sum.Month,
		"revenue", fmt.Sprintf("%.2f", sum.Revenue),
		"accepted", sum.Outcomes[economy.Accepted],
		"rejected", sum.Outcomes[economy.Rejected],
		"skipped", sum.Outcomes[economy.Skipped],
	)
	s.Day = nil
}
