// Simulation ties the farm, market and randomness together and runs them
// once per simulated month.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/talgya/vertifarm/internal/crops"
	"github.com/talgya/vertifarm/internal/economy"
	"github.com/talgya/vertifarm/internal/entropy"
	"github.com/talgya/vertifarm/internal/farm"
)

var (
	// ErrSeasonOver is returned once the session has run MaxMonths.
	ErrSeasonOver = errors.New("season over")
	// ErrNoMarket is returned when offers are made before customers exist.
	ErrNoMarket = errors.New("no market open")
	// ErrNotesRequired is returned when a month is simulated without notes
	// and Economics.RequireNotes is set.
	ErrNotesRequired = errors.New("notes required")
)

// MaxNotesLen is the longest month note accepted, in characters.
const MaxNotesLen = 1000

// Simulation is the caller-owned engine context. It is not safe for
// concurrent use; Engine serializes access.
type Simulation struct {
	SessionID string
	Farm      *farm.Farm
	Economics Economics
	Market    *economy.Market
	Day       *economy.MarketDay // open market day, nil until customers are generated
	History   []*TickReport
	Markets   []economy.Summary // closed market days
	Actions   []Action          // changes since the last month
	Notes     string            // the grower's reasons for this month's changes

	// Rand drives disturbance rolls and customer generation.
	Rand  entropy.Source
	Drift *economy.DemandDrift
}

// NewSimulation creates a fresh session.
func NewSimulation(reg *crops.Registry, econ Economics, seed int64) (*Simulation, error) {
	if err := econ.Validate(); err != nil {
		return nil, err
	}
	f, err := farm.New(reg, econ.Layout, econ.Ranges, econ.StartingBudget)
	if err != nil {
		return nil, err
	}
	return &Simulation{
		SessionID: uuid.NewString(),
		Farm:      f,
		Economics: econ,
		Market:    economy.NewMarket(reg, econ.Rates),
		Rand:      entropy.New(seed),
		Drift:     economy.NewDemandDrift(seed),
	}, nil
}

// Month returns the number of months simulated.
func (s *Simulation) Month() int {
	return s.Farm.Month
}

// Over reports whether the session has reached its month limit.
func (s *Simulation) Over() bool {
	return s.Economics.MaxMonths > 0 && s.Farm.Month >= s.Economics.MaxMonths
}

func (s *Simulation) record(kind, format string, args ...any) {
	s.Actions = append(s.Actions, Action{
		Month:  s.Farm.Month,
		Kind:   kind,
		Detail: fmt.Sprintf(format, args...),
	})
}

// recordChange logs an input change against the value it had when the month
// began. Setting an input back to that value drops its entry.
func (s *Simulation) recordChange(level string, v crops.Var, from, to float64) {
	if v.Ambient() {
		level = ""
	}
	for i := range s.Actions {
		a := &s.Actions[i]
		if a.Kind != "environment" || a.Level != level || a.Var != v {
			continue
		}
		if a.From == to {
			s.Actions = slices.Delete(s.Actions, i, i+1)
			return
		}
		a.To = to
		a.Detail = changeDetail(level, v, a.From, to)
		return
	}
	if from == to {
		return
	}
	s.Actions = append(s.Actions, Action{
		Month:  s.Farm.Month,
		Kind:   "environment",
		Detail: changeDetail(level, v, from, to),
		Level:  level,
		Var:    v,
		From:   from,
		To:     to,
	})
}

func changeDetail(level string, v crops.Var, from, to float64) string {
	if level == "" {
		return fmt.Sprintf("%s %g → %g", v.Name(), from, to)
	}
	return fmt.Sprintf("%s %s %g → %g", level, v.Name(), from, to)
}

// SetEnvironment changes one input on a level. T and H are farm-wide.
func (s *Simulation) SetEnvironment(level string, v crops.Var, value float64) error {
	prev := s.current(level, v)
	if err := s.Farm.SetEnvironment(level, v, value); err != nil {
		slog.Debug("environment change rejected", "level", level, "var", v, "value", value, "error", err)
		return err
	}
	s.recordChange(level, v, prev, value)
	return nil
}

// SetAmbient changes the shared temperature or humidity.
func (s *Simulation) SetAmbient(v crops.Var, value float64) error {
	prev := s.Farm.Env.Ambient[v]
	if err := s.Farm.SetAmbient(v, value); err != nil {
		slog.Debug("ambient change rejected", "var", v, "value", value, "error", err)
		return err
	}
	s.recordChange("", v, prev, value)
	return nil
}

// SetNotes stores the grower's reasons for this month's changes. They are
// attached to the next report and cleared once the month is simulated.
func (s *Simulation) SetNotes(notes string) error {
	notes = strings.TrimSpace(notes)
	if n := utf8.RuneCountInString(notes); n > MaxNotesLen {
		return fmt.Errorf("%w: notes are %d characters, limit is %d", farm.ErrInvalidInput, n, MaxNotesLen)
	}
	s.Notes = notes
	return nil
}

func (s *Simulation) current(level string, v crops.Var) float64 {
	if v.Ambient() {
		return s.Farm.Env.Ambient[v]
	}
	return s.Farm.Env.Levels[level][v]
}

// Plant adds count plants of crop on level.
func (s *Simulation) Plant(level, crop string, count int) ([]farm.RecordID, error) {
	ids, err := s.Farm.Plant(level, crop, count)
	if err != nil {
		slog.Debug("planting rejected", "level", level, "crop", crop, "count", count, "error", err)
		return nil, err
	}
	s.record("plant", "%d %s on %s", count, crop, level)
	return ids, nil
}

// Remove deletes ledger records.
func (s *Simulation) Remove(ids []farm.RecordID) error {
	return s.Farm.Remove(ids)
}

// RemoveTerminal deletes every harvested or dead record.
func (s *Simulation) RemoveTerminal(status ...farm.Status) []farm.RecordID {
	var ids []farm.RecordID
	s.Farm.Ledger.Each(func(r *farm.Record) {
		if !r.Status.Terminal() {
			return
		}
		if len(status) == 0 {
			ids = append(ids, r.ID)
			return
		}
		for _, st := range status {
			if r.Status == st {
				ids = append(ids, r.ID)
				return
			}
		}
	})
	if len(ids) > 0 {
		// ids come straight from the ledger, so Remove cannot fail.
		_ = s.Remove(ids)
	}
	return ids
}

// Performance returns the running scoreboard.
func (s *Simulation) Performance() Performance {
	l := s.Farm.Ledger
	p := Performance{
		Month:   s.Farm.Month,
		Budget:  l.Budget,
		Revenue: l.TotalRevenue,
		Costs:   l.TotalCosts,
		Profit:  l.Profit(),
		Growing: l.Count(farm.Growing),
	}
	if s.Economics.MaxMonths > 0 {
		p.MonthsLeft = max(0, s.Economics.MaxMonths-s.Farm.Month)
	}
	for crop, kg := range l.Inventory {
		p.InventoryKg += kg
		if price, err := s.Market.Price(crop); err == nil {
			p.InventoryValue += kg * price
		}
	}
	return p
}

// LastReport returns the most recent month's report, or nil.
func (s *Simulation) LastReport() *TickReport {
	if len(s.History) == 0 {
		return nil
	}
	return s.History[len(s.History)-1]
}
