package farm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/talgya/vertifarm/internal/crops"
)

// DaysPerMonth is the age increment applied each simulated month.
const DaysPerMonth = 30

// RecordID identifies a planted-crop record. IDs are never reused.
type RecordID uint64

// Status is a record's lifecycle state. Harvested and Dead are terminal.
type Status string

const (
	Growing   Status = "Growing"
	Harvested Status = "Harvested"
	Dead      Status = "Dead"
)

// ParseStatus resolves a status name case-insensitively.
func ParseStatus(name string) (Status, error) {
	for _, s := range []Status{Growing, Harvested, Dead} {
		if strings.EqualFold(name, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, name)
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == Harvested || s == Dead
}

// Record is one individual plant.
type Record struct {
	ID         RecordID    `json:"id"`
	Level      string      `json:"level"`
	Crop       string      `json:"crop"`
	DayPlanted int         `json:"day_planted"`
	Age        int         `json:"age"` // days
	Space      float64     `json:"space"`
	Status     Status      `json:"status"`
	Reason     string      `json:"reason,omitempty"`
	Violated   []crops.Var `json:"violated,omitempty"`
	Health     float64     `json:"health"`
	Yield      float64     `json:"yield"` // kg, set on harvest
}

// Die marks the record dead, naming the variables that were out of band.
func (r *Record) Die(violated []crops.Var) {
	r.Status = Dead
	r.Violated = violated
	if len(violated) == 0 {
		r.Reason = "disturbance"
		return
	}
	names := make([]string, len(violated))
	for i, v := range violated {
		names[i] = v.Name()
	}
	r.Reason = "poor " + strings.Join(names, ", ")
}

// Harvest marks the record harvested and returns its yield.
func (r *Record) Harvest(maxYield float64) float64 {
	r.Status = Harvested
	r.Yield = maxYield * r.Health
	return r.Yield
}

// Ledger holds every planted-crop record plus the farm's money and stock.
// Records stay sorted by ID.
type Ledger struct {
	Records      []Record           `json:"records"`
	Budget       float64            `json:"budget"`
	Inventory    map[string]float64 `json:"inventory"` // kg harvested, unsold
	NextID       RecordID           `json:"next_id"`
	PendingSeeds float64            `json:"pending_seeds"` // seed spend since the last month was simulated
	TotalRevenue float64            `json:"total_revenue"`
	TotalCosts   float64            `json:"total_costs"`
}

// NewLedger creates an empty ledger with a starting budget.
func NewLedger(budget float64) *Ledger {
	return &Ledger{
		Budget:    budget,
		Inventory: make(map[string]float64),
		NextID:    1,
	}
}

func (l *Ledger) find(id RecordID) int {
	i := sort.Search(len(l.Records), func(i int) bool { return l.Records[i].ID >= id })
	if i < len(l.Records) && l.Records[i].ID == id {
		return i
	}
	return -1
}

// Get returns the record with id.
func (l *Ledger) Get(id RecordID) (*Record, bool) {
	i := l.find(id)
	if i < 0 {
		return nil, false
	}
	return &l.Records[i], true
}

// Each calls fn for every record in ID order. fn may mutate the record.
func (l *Ledger) Each(fn func(r *Record)) {
	for i := range l.Records {
		fn(&l.Records[i])
	}
}

// Count returns the number of records with status s.
func (l *Ledger) Count(s Status) int {
	n := 0
	for i := range l.Records {
		if l.Records[i].Status == s {
			n++
		}
	}
	return n
}

// UsedArea returns the space held by every record on a level. Dead and
// harvested plants keep their space until pruned or removed.
func (l *Ledger) UsedArea(level string) float64 {
	used := 0.0
	for i := range l.Records {
		r := &l.Records[i]
		if r.Level == level {
			used += r.Space
		}
	}
	return used
}

func (l *Ledger) append(r Record) RecordID {
	r.ID = l.NextID
	l.NextID++
	l.Records = append(l.Records, r)
	return r.ID
}

// Remove deletes the given records. Unknown ids reject the whole call.
func (l *Ledger) Remove(ids []RecordID) error {
	drop := make(map[RecordID]bool, len(ids))
	for _, id := range ids {
		if l.find(id) < 0 {
			return fmt.Errorf("%w: no record %d", ErrInvalidInput, id)
		}
		drop[id] = true
	}
	l.filter(func(r *Record) bool { return !drop[r.ID] })
	return nil
}

// Prune removes every terminal record and returns their ids.
func (l *Ledger) Prune() []RecordID {
	var pruned []RecordID
	l.filter(func(r *Record) bool {
		if r.Status.Terminal() {
			pruned = append(pruned, r.ID)
			return false
		}
		return true
	})
	return pruned
}

func (l *Ledger) filter(keep func(r *Record) bool) {
	kept := l.Records[:0]
	for i := range l.Records {
		if keep(&l.Records[i]) {
			kept = append(kept, l.Records[i])
		}
	}
	clear(l.Records[len(kept):])
	l.Records = kept
}

// Debit subtracts an operating cost from the budget.
func (l *Ledger) Debit(amount float64) {
	l.Budget -= amount
	l.TotalCosts += amount
}

// Credit adds sale revenue to the budget.
func (l *Ledger) Credit(amount float64) {
	l.Budget += amount
	l.TotalRevenue += amount
}

// Stock returns kg of crop on hand.
func (l *Ledger) Stock(crop string) float64 {
	return l.Inventory[crop]
}

// Deposit adds harvested kg to inventory.
func (l *Ledger) Deposit(crop string, kg float64) {
	l.Inventory[crop] += kg
}

// Withdraw removes sold kg from inventory.
func (l *Ledger) Withdraw(crop string, kg float64) error {
	have := l.Inventory[crop]
	if kg > have+1e-9 {
		return fmt.Errorf("%w: %s stock %.2f kg, need %.2f kg", ErrInsufficientResource, crop, have, kg)
	}
	l.Inventory[crop] = max(0, have-kg)
	return nil
}

// TakeSeedSpend returns and resets the seed spend accumulated since the last call.
func (l *Ledger) TakeSeedSpend() float64 {
	s := l.PendingSeeds
	l.PendingSeeds = 0
	return s
}

// Profit returns lifetime revenue minus lifetime costs.
func (l *Ledger) Profit() float64 {
	return l.TotalRevenue - l.TotalCosts
}
