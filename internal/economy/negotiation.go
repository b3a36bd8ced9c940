package economy

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/vertifarm/internal/farm"
)

var (
	// ErrCustomerDecided rejects a second offer to the same customer.
	ErrCustomerDecided = errors.New("customer already decided")
	// ErrOutOfTurn rejects an offer to anyone but the current customer.
	ErrOutOfTurn = errors.New("customer out of turn")
)

// Stockroom is where sales draw produce from and deposit money to.
type Stockroom interface {
	Stock(crop string) float64
	Withdraw(crop string, kg float64) error
	Credit(amount float64)
}

// MarketDay is one month's customer queue. Customers are served strictly in
// order and each hears exactly one offer.
type MarketDay struct {
	Month     int        `json:"month"`
	Customers []Customer `json:"customers"`
	Cursor    int        `json:"cursor"`
	Revenue   float64    `json:"revenue"`
}

// NewMarketDay opens a market day for the given customers.
func NewMarketDay(month int, customers []Customer) *MarketDay {
	return &MarketDay{Month: month, Customers: customers}
}

// Current returns the customer awaiting an offer.
func (d *MarketDay) Current() (*Customer, bool) {
	if d.Cursor >= len(d.Customers) {
		return nil, false
	}
	return &d.Customers[d.Cursor], true
}

// Done reports whether every customer has been decided.
func (d *MarketDay) Done() bool {
	return d.Cursor >= len(d.Customers)
}

func (d *MarketDay) lookup(id int) (*Customer, error) {
	for i := range d.Customers {
		if d.Customers[i].ID == id {
			c := &d.Customers[i]
			if c.Outcome != Pending {
				return nil, fmt.Errorf("%w: customer %d is %s", ErrCustomerDecided, id, c.Outcome)
			}
			if i != d.Cursor {
				return nil, fmt.Errorf("%w: customer %d, current is %d", ErrOutOfTurn, id, d.Customers[d.Cursor].ID)
			}
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: no customer %d", farm.ErrInvalidInput, id)
}

// SubmitOffer resolves the single offer a customer will hear. A customer
// whose crop is not in stock is skipped whatever the offer.
func (d *MarketDay) SubmitOffer(store Stockroom, id int, offer float64) (Outcome, error) {
	if offer < 0 || math.IsNaN(offer) || math.IsInf(offer, 0) {
		return "", fmt.Errorf("%w: offer %g", farm.ErrInvalidInput, offer)
	}
	c, err := d.lookup(id)
	if err != nil {
		return "", err
	}

	c.Offer = offer
	switch {
	case store.Stock(c.Crop)+1e-9 < c.Quantity:
		c.Outcome = Skipped
	case offer <= c.MaxPrice:
		if err := store.Withdraw(c.Crop, c.Quantity); err != nil {
			c.Offer = 0
			return "", err
		}
		store.Credit(offer)
		d.Revenue += offer
		c.Outcome = Accepted
	default:
		c.Outcome = Rejected
	}
	d.Cursor++
	return c.Outcome, nil
}

// Skip passes on a customer without making an offer.
func (d *MarketDay) Skip(id int) error {
	c, err := d.lookup(id)
	if err != nil {
		return err
	}
	c.Outcome = Skipped
	d.Cursor++
	return nil
}

// Summary reports the outcome of a market day.
type Summary struct {
	Month    int                `json:"month"`
	Revenue  float64            `json:"revenue"`
	Outcomes map[Outcome]int    `json:"outcomes"`
	SoldKg   map[string]float64 `json:"sold_kg"`
	Leftover map[string]float64 `json:"leftover"` // unsold kg carried over
}

// Summary tallies results against the stock remaining in inventory.
func (d *MarketDay) Summary(inventory map[string]float64) Summary {
	s := Summary{
		Month:    d.Month,
		Revenue:  d.Revenue,
		Outcomes: make(map[Outcome]int),
		SoldKg:   make(map[string]float64),
		Leftover: make(map[string]float64),
	}
	for _, c := range d.Customers {
		s.Outcomes[c.Outcome]++
		if c.Outcome == Accepted {
			s.SoldKg[c.Crop] += c.Quantity
		}
	}
	for crop, kg := range inventory {
		if kg > 1e-9 {
			s.Leftover[crop] = kg
		}
	}
	return s
}

// PendingIDs lists customers still awaiting an offer, in serving order.
func (d *MarketDay) PendingIDs() []int {
	var ids []int
	for i := d.Cursor; i < len(d.Customers); i++ {
		ids = append(ids, d.Customers[i].ID)
	}
	return ids
}
