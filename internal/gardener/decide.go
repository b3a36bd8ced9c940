package gardener

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/talgya/vertifarm/internal/crops"
	"github.com/talgya/vertifarm/internal/engine"
	"github.com/talgya/vertifarm/internal/farm"
	"github.com/talgya/vertifarm/internal/growth"
)

// Step kinds, in the order a plan runs them.
const (
	StepRemove      = "remove"
	StepSell        = "sell"
	StepAmbient     = "ambient"
	StepEnvironment = "environment"
	StepPlant       = "plant"
	StepNotes       = "notes"
	StepSimulate    = "simulate"
)

// Policy bounds what a plan may spend.
type Policy struct {
	Reserve float64 // share of the budget never spent on seed
}

// DefaultPolicy keeps 30% of the budget back for operating costs.
func DefaultPolicy() Policy {
	return Policy{Reserve: 0.3}
}

// Step is one admin call.
type Step struct {
	Kind  string    `json:"kind"`
	Level string    `json:"level,omitempty"`
	Var   crops.Var `json:"var,omitempty"`
	Value float64   `json:"value,omitempty"`
	Crop  string    `json:"crop,omitempty"`
	Count int       `json:"count,omitempty"`
	Text  string    `json:"text,omitempty"`
}

// Plan is the ordered list of steps for one cycle.
type Plan struct {
	Steps     []Step   `json:"steps"`
	Rationale []string `json:"rationale"`
}

func (p *Plan) add(s Step) { p.Steps = append(p.Steps, s) }

func (p *Plan) note(format string, args ...any) {
	p.Rationale = append(p.Rationale, fmt.Sprintf(format, args...))
}

// Decide turns a snapshot into a plan: clear terminal records, sell stock,
// hold every level at its crop's ideal, fill empty levels with the most
// profitable crop the shared climate allows, then advance one month.
func Decide(snap *FarmSnapshot, h *FarmHealth, p Policy) *Plan {
	plan := &Plan{}
	if h.Condition == "OVER" {
		plan.note("season over")
		return plan
	}

	if h.Harvested+h.Dead > 0 {
		plan.add(Step{Kind: StepRemove})
		plan.note("clear %d harvested and %d dead records", h.Harvested, h.Dead)
	}
	if h.StockKg > 0 {
		plan.add(Step{Kind: StepSell})
		plan.note("sell %.1f kg in stock", h.StockKg)
	}

	env := snap.Environment
	climate := []crops.Var{crops.Temperature, crops.Humidity}
	ambient := make(farm.Inputs, len(climate))
	for _, v := range climate {
		ambient[v] = env.Environment.Ambient[v]
	}
	// The climate is shared, so it only moves when nothing is growing.
	if h.Growing == 0 {
		if best := bestCrop(snap, h, "", nil); best != nil {
			for _, v := range climate {
				val := snapTo(env.Ranges[v], best.Ideal[v])
				if val != ambient[v] {
					plan.add(Step{Kind: StepAmbient, Var: v, Value: val})
				}
				ambient[v] = val
			}
			plan.note("climate for %s", best.Name)
		}
	}

	var empty []string
	for _, level := range env.Layout.Levels {
		if _, ok := h.LevelCrops[level]; !ok {
			empty = append(empty, level)
		}
	}
	seedBudget := snap.Ledger.Budget * (1 - p.Reserve)

	for _, level := range env.Layout.Levels {
		var def *crops.Definition
		name, growing := h.LevelCrops[level]
		if growing {
			def, _ = snap.Crop(name)
		} else {
			def = bestCrop(snap, h, level, ambient)
		}
		if def == nil {
			continue
		}

		for _, v := range []crops.Var{crops.Nutrients, crops.Water, crops.Light} {
			val := snapTo(env.Ranges[v], def.Ideal[v])
			if env.Environment.Levels[level][v] != val {
				plan.add(Step{Kind: StepEnvironment, Level: level, Var: v, Value: val})
			}
		}
		if growing {
			continue
		}

		// Terminal records are removed before planting, so their space counts.
		free := snap.Ledger.FreeArea[level] + terminalArea(snap, level)
		n := int(math.Floor(free/def.SpaceRequired + 1e-9))
		if def.SeedCost > 0 {
			share := seedBudget / float64(len(empty))
			n = min(n, int(math.Floor(share/def.SeedCost)))
		}
		if n > 0 {
			plan.add(Step{Kind: StepPlant, Level: level, Crop: def.Name, Count: n})
			plan.note("plant %d %s on %s", n, def.Name, level)
		}
	}

	plan.add(Step{Kind: StepNotes, Text: notesFor(plan.Rationale)})
	plan.add(Step{Kind: StepSimulate})
	return plan
}

// notesFor joins the rationale into month notes within the engine's limit.
func notesFor(rationale []string) string {
	text := strings.Join(rationale, "; ")
	if text == "" {
		text = "no changes"
	}
	if utf8.RuneCountInString(text) > engine.MaxNotesLen {
		text = string([]rune(text)[:engine.MaxNotesLen])
	}
	return text
}

// terminalArea sums the space held by harvested and dead records on level.
func terminalArea(snap *FarmSnapshot, level string) float64 {
	area := 0.0
	for _, r := range snap.Ledger.Records {
		if r.Level == level && r.Status.Terminal() {
			area += r.Space
		}
	}
	return area
}

// bestCrop picks the crop with the highest margin per m² per month. With a
// level and climate given, only crops that would grow at full health there
// are considered.
func bestCrop(snap *FarmSnapshot, h *FarmHealth, level string, ambient farm.Inputs) *crops.Definition {
	var best *crops.Definition
	bestScore := 0.0
	for i := range snap.Crops {
		def := &snap.Crops[i]
		months := monthsToHarvest(def)
		if h.MonthsLeft >= 0 && months > h.MonthsLeft {
			continue
		}
		entry, ok := snap.Market.Prices[def.Name]
		if !ok {
			continue
		}
		if ambient != nil && growth.HealthScore(def, conditions(snap, def, level, ambient)) < growth.TierIdeal {
			continue
		}
		score := (entry.Price*def.MaxYield - def.SeedCost) / (def.SpaceRequired * float64(months))
		if score > bestScore {
			best, bestScore = def, score
		}
	}
	return best
}

// monthsToHarvest counts the simulated months from planting to harvest.
func monthsToHarvest(def *crops.Definition) int {
	return int(math.Ceil(float64(def.GrowthDays)/farm.DaysPerMonth)) + 1
}

// conditions predicts what a crop on level would experience with its own
// ideal level inputs under the given climate.
func conditions(snap *FarmSnapshot, def *crops.Definition, level string, ambient farm.Inputs) growth.Conditions {
	c := make(growth.Conditions, len(crops.Vars))
	for _, v := range crops.Vars {
		if v.Ambient() {
			c[v] = ambient[v] + snap.Environment.Layout.Offset(level)
		} else {
			c[v] = snapTo(snap.Environment.Ranges[v], def.Ideal[v])
		}
	}
	return c
}

// snapTo returns the legal value nearest v.
func snapTo(r farm.InputRange, v float64) float64 {
	if r.Step <= 0 {
		return v
	}
	v = math.Max(r.Min, math.Min(r.Max, v))
	steps := math.Round((v - r.Min) / r.Step)
	return math.Round((r.Min+steps*r.Step)*1e6) / 1e6
}
