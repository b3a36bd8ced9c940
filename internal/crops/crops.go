// Package crops provides the crop registry: the static catalog of every crop
// the farm can grow, with its environmental setpoints, yields and costs.
package crops

import (
	"errors"
	"fmt"
	"sort"
)

// ErrConfiguration marks a missing or malformed registry entry. Fatal, never retried.
var ErrConfiguration = errors.New("configuration error")

// Var is one of the five controllable environmental variables.
type Var string

const (
	Nutrients   Var = "N"
	Water       Var = "W"
	Light       Var = "L"
	Temperature Var = "T"
	Humidity    Var = "H"
)

// Vars lists every environmental variable in canonical order.
var Vars = [...]Var{Nutrients, Water, Light, Temperature, Humidity}

// ParseVar accepts the short code ("L") or the full name ("light").
func ParseVar(s string) (Var, bool) {
	switch s {
	case "N", "n", "nutrients", "Nutrients":
		return Nutrients, true
	case "W", "w", "water", "Water":
		return Water, true
	case "L", "l", "light", "Light", "lighting", "Lighting":
		return Light, true
	case "T", "t", "temperature", "Temperature":
		return Temperature, true
	case "H", "h", "humidity", "Humidity":
		return Humidity, true
	}
	return "", false
}

// Name returns the human-readable variable name.
func (v Var) Name() string {
	switch v {
	case Nutrients:
		return "Nutrients"
	case Water:
		return "Water"
	case Light:
		return "Lighting"
	case Temperature:
		return "Temperature"
	case Humidity:
		return "Humidity"
	default:
		return string(v)
	}
}

// Unit returns the display unit the discretized inputs are expressed in.
func (v Var) Unit() string {
	switch v {
	case Nutrients:
		return "g/plant/day"
	case Water:
		return "mL/plant/day"
	case Light:
		return "DLI"
	case Temperature:
		return "°C"
	case Humidity:
		return "%"
	default:
		return ""
	}
}

// Ambient reports whether the variable is shared across levels (T, H)
// rather than set per level (N, W, L).
func (v Var) Ambient() bool {
	return v == Temperature || v == Humidity
}

// Definition is one crop's immutable catalog entry.
type Definition struct {
	Name            string          `yaml:"name" json:"name"`
	Category        string          `yaml:"category" json:"category"`
	MaxYield        float64         `yaml:"max_yield" json:"max_yield"`           // kg per plant at full health
	GrowthDays      int             `yaml:"growth_days" json:"growth_days"`       // days until harvest-eligible
	SpaceRequired   float64         `yaml:"space_required" json:"space_required"` // m² per plant
	Ideal           map[Var]float64 `yaml:"ideal" json:"ideal"`
	Tolerance       map[Var]float64 `yaml:"tolerance" json:"tolerance"`
	SeedCost        float64         `yaml:"seed_cost" json:"seed_cost"`
	SupplyChainCost float64         `yaml:"supply_chain_cost" json:"supply_chain_cost"` // per kg harvested
	DemandRatio     float64         `yaml:"demand_ratio" json:"demand_ratio"`           // share of farm capacity the market wants
}

// YieldPerArea returns the kg per m² a fully healthy planting produces.
func (d *Definition) YieldPerArea() float64 {
	return d.MaxYield / d.SpaceRequired
}

func (d *Definition) validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: crop with empty name", ErrConfiguration)
	}
	if d.MaxYield <= 0 || d.SpaceRequired <= 0 || d.GrowthDays <= 0 {
		return fmt.Errorf("%w: crop %q needs positive max_yield, space_required and growth_days", ErrConfiguration, d.Name)
	}
	if d.SeedCost < 0 || d.SupplyChainCost < 0 || d.DemandRatio < 0 {
		return fmt.Errorf("%w: crop %q has a negative cost or demand ratio", ErrConfiguration, d.Name)
	}
	for _, v := range Vars {
		if _, ok := d.Ideal[v]; !ok {
			return fmt.Errorf("%w: crop %q missing ideal %s", ErrConfiguration, d.Name, v)
		}
		tol, ok := d.Tolerance[v]
		if !ok {
			return fmt.Errorf("%w: crop %q missing tolerance %s", ErrConfiguration, d.Name, v)
		}
		if tol <= 0 {
			return fmt.Errorf("%w: crop %q tolerance %s must be positive", ErrConfiguration, d.Name, v)
		}
	}
	return nil
}

// Registry is the loaded crop catalog, keyed by crop name.
type Registry struct {
	defs  map[string]*Definition
	order []string
}

// NewRegistry validates every definition and builds a registry.
// Duplicate names and incomplete setpoints are configuration errors.
func NewRegistry(defs []Definition) (*Registry, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: empty crop registry", ErrConfiguration)
	}
	r := &Registry{defs: make(map[string]*Definition, len(defs))}
	for i := range defs {
		d := defs[i]
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.defs[d.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate crop %q", ErrConfiguration, d.Name)
		}
		r.defs[d.Name] = &d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// Get looks up a crop by name.
func (r *Registry) Get(name string) (*Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Names returns crop names in catalog order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Sorted returns crop names alphabetically.
func (r *Registry) Sorted() []string {
	out := r.Names()
	sort.Strings(out)
	return out
}

// All returns every definition in catalog order.
func (r *Registry) All() []*Definition {
	out := make([]*Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}

// Index returns the catalog position of a crop, or -1.
func (r *Registry) Index(name string) int {
	for i, n := range r.order {
		if n == name {
			return i
		}
	}
	return -1
}

// Len returns the number of crops.
func (r *Registry) Len() int { return len(r.order) }
