package scenario

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/talgya/vertifarm/internal/crops"
	"github.com/talgya/vertifarm/internal/economy"
	"github.com/talgya/vertifarm/internal/engine"
	"github.com/talgya/vertifarm/internal/farm"
)

// Run parses and executes a script against sim, returning a transcript line
// per outcome. Execution stops at the first failing statement; the error
// names its position and the transcript so far is still returned.
func Run(sim *engine.Simulation, name, src string) ([]string, error) {
	script, err := Parse(name, src)
	if err != nil {
		return nil, err
	}
	return Exec(sim, script)
}

// Exec executes a parsed script.
func Exec(sim *engine.Simulation, script *Script) ([]string, error) {
	var out []string
	emit := func(format string, args ...any) {
		out = append(out, fmt.Sprintf(format, args...))
	}
	for _, st := range script.Statements {
		if err := exec(sim, st, emit); err != nil {
			return out, fmt.Errorf("%s: %w", st.Pos, err)
		}
	}
	return out, nil
}

func exec(sim *engine.Simulation, st *Statement, emit func(string, ...any)) error {
	switch {
	case st.Ambient != nil:
		v, err := parseVar(st.Ambient.Var)
		if err != nil {
			return err
		}
		if err := sim.SetAmbient(v, st.Ambient.Value); err != nil {
			return err
		}
		emit("%s = %g", v.Name(), st.Ambient.Value)

	case st.Set != nil:
		v, err := parseVar(st.Set.Var)
		if err != nil {
			return err
		}
		if err := sim.SetEnvironment(st.Set.Level, v, st.Set.Value); err != nil {
			return err
		}
		emit("%s %s = %g", st.Set.Level, v.Name(), st.Set.Value)

	case st.Plant != nil:
		p := st.Plant
		ids, err := sim.Plant(p.Level, p.Crop, p.Count)
		if err != nil {
			return err
		}
		emit("planted %d %s on %s (ids %d-%d), budget %s", p.Count, p.Crop, p.Level, ids[0], ids[len(ids)-1], money(sim.Farm.Ledger.Budget))

	case st.Remove != nil:
		var n int
		if st.Remove.Which != "" {
			switch st.Remove.Which {
			case "harvested":
				n = len(sim.RemoveTerminal(farm.Harvested))
			case "dead":
				n = len(sim.RemoveTerminal(farm.Dead))
			default:
				n = len(sim.RemoveTerminal())
			}
		} else {
			ids := make([]farm.RecordID, len(st.Remove.IDs))
			for i, id := range st.Remove.IDs {
				ids[i] = farm.RecordID(id)
			}
			if err := sim.Remove(ids); err != nil {
				return err
			}
			n = len(ids)
		}
		emit("removed %d records", n)

	case st.Simulate != nil:
		months := max(1, st.Simulate.Months)
		for i := 0; i < months; i++ {
			r, err := sim.SimulateMonth()
			if err != nil {
				return err
			}
			harvested, died := 0, 0
			for _, cs := range r.Summary {
				harvested += cs.Harvested
				died += cs.Died
			}
			emit("month %d: costs %s, harvested %d, died %d, budget %s",
				r.Month, money(r.Costs.Total), harvested, died, money(r.Budget))
		}

	case st.Market != nil:
		customers := sim.GenerateMarketCustomers()
		emit("market: %d customers", len(customers))
		for _, c := range customers {
			emit("  customer %d: %s kg %s, pays up to %s", c.ID, humanize.Ftoa(c.Quantity), c.Crop, money(c.MaxPrice))
		}

	case st.Offer != nil:
		out, err := sim.SubmitOffer(st.Offer.Customer, st.Offer.Price)
		if err != nil {
			return err
		}
		emit("customer %d: %s at %s", st.Offer.Customer, out, money(st.Offer.Price))

	case st.Skip != nil:
		if err := sim.SkipCustomer(st.Skip.Customer); err != nil {
			return err
		}
		emit("customer %d: %s", st.Skip.Customer, economy.Skipped)

	case st.SellAll != nil:
		counts, err := sim.SellAll()
		if err != nil {
			return err
		}
		emit("sold to everyone: %d accepted, %d skipped, budget %s",
			counts[economy.Accepted], counts[economy.Skipped], money(sim.Farm.Ledger.Budget))

	case st.Notes != nil:
		if err := sim.SetNotes(st.Notes.Text); err != nil {
			return err
		}
		emit("notes: %s", sim.Notes)

	case st.Status != nil:
		p := sim.Performance()
		emit("month %d: budget %s, revenue %s, costs %s, profit %s, %d growing",
			p.Month, money(p.Budget), money(p.Revenue), money(p.Costs), money(p.Profit), p.Growing)
	}
	return nil
}

func parseVar(s string) (crops.Var, error) {
	v, ok := crops.ParseVar(s)
	if !ok {
		return "", fmt.Errorf("%w: unknown variable %q", farm.ErrInvalidInput, s)
	}
	return v, nil
}

func money(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}
