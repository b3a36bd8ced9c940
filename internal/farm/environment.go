package farm

import (
	"fmt"
	"math"

	"github.com/talgya/vertifarm/internal/crops"
	"github.com/talgya/vertifarm/internal/growth"
)

// GradientOffset is the default ambient T/H shift applied to the lowest (−)
// and highest (+) levels, in the variables' own units.
const GradientOffset = 0.1

// Default ambient setpoints for a new farm.
const (
	DefaultTemperature = 20
	DefaultHumidity    = 60
)

// Layout describes the farm's fixed growing levels, lowest first.
type Layout struct {
	Levels    []string `yaml:"levels" json:"levels"`
	LevelArea float64  `yaml:"level_area" json:"level_area"` // m² per level
	Gradient  float64  `yaml:"gradient" json:"gradient"`     // ambient shift at the end levels
}

// DefaultLayout is three 25 m² levels.
func DefaultLayout() Layout {
	return Layout{
		Levels:    []string{"Level 1", "Level 2", "Level 3"},
		LevelArea: 25,
		Gradient:  GradientOffset,
	}
}

// TotalArea returns the growing area across all levels.
func (l Layout) TotalArea() float64 {
	return float64(len(l.Levels)) * l.LevelArea
}

// Has reports whether level is part of the layout.
func (l Layout) Has(level string) bool {
	return l.index(level) >= 0
}

func (l Layout) index(level string) int {
	for i, name := range l.Levels {
		if name == level {
			return i
		}
	}
	return -1
}

// Offset returns the vertical gradient applied to ambient T and H on a level.
func (l Layout) Offset(level string) float64 {
	i := l.index(level)
	switch {
	case len(l.Levels) < 2 || i < 0:
		return 0
	case i == 0:
		return -l.Gradient
	case i == len(l.Levels)-1:
		return l.Gradient
	default:
		return 0
	}
}

func (l Layout) validate() error {
	if len(l.Levels) == 0 {
		return fmt.Errorf("%w: layout has no levels", ErrConfiguration)
	}
	if l.LevelArea <= 0 {
		return fmt.Errorf("%w: level area must be positive", ErrConfiguration)
	}
	if l.Gradient < 0 {
		return fmt.Errorf("%w: gradient must not be negative", ErrConfiguration)
	}
	seen := make(map[string]bool, len(l.Levels))
	for _, name := range l.Levels {
		if name == "" || seen[name] {
			return fmt.Errorf("%w: duplicate or empty level %q", ErrConfiguration, name)
		}
		seen[name] = true
	}
	return nil
}

// InputRange is a discretized legal value set: Min, Min+Step, ..., Max.
type InputRange struct {
	Min  float64 `yaml:"min" json:"min"`
	Max  float64 `yaml:"max" json:"max"`
	Step float64 `yaml:"step" json:"step"`
}

// Contains reports whether v is one of the range's legal values.
func (r InputRange) Contains(v float64) bool {
	const eps = 1e-6
	if math.IsNaN(v) || v < r.Min-eps || v > r.Max+eps {
		return false
	}
	steps := (v - r.Min) / r.Step
	return math.Abs(steps-math.Round(steps)) < eps
}

// Values enumerates every legal value.
func (r InputRange) Values() []float64 {
	n := int(math.Round((r.Max-r.Min)/r.Step)) + 1
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, r.Min+float64(i)*r.Step)
	}
	return out
}

// Ranges maps each variable to its legal value set.
type Ranges map[crops.Var]InputRange

// DefaultRanges returns the control-panel value sets.
func DefaultRanges() Ranges {
	return Ranges{
		crops.Nutrients:   {Min: 0, Max: 40, Step: 0.05},
		crops.Water:       {Min: 0, Max: 1000, Step: 10},
		crops.Light:       {Min: 0, Max: 30, Step: 1},
		crops.Temperature: {Min: 10, Max: 40, Step: 1},
		crops.Humidity:    {Min: 0, Max: 100, Step: 5},
	}
}

func (rs Ranges) validate() error {
	for _, v := range crops.Vars {
		r, ok := rs[v]
		if !ok {
			return fmt.Errorf("%w: no value range for %s", ErrConfiguration, v)
		}
		if r.Step <= 0 || r.Max < r.Min {
			return fmt.Errorf("%w: bad value range for %s", ErrConfiguration, v)
		}
	}
	return nil
}

// Inputs holds variable settings.
type Inputs map[crops.Var]float64

// Environment is the caller-controlled state: N, W and L per level, T and H
// shared across the farm.
type Environment struct {
	Levels  map[string]Inputs `json:"levels"`
	Ambient Inputs            `json:"ambient"`
}

func defaultEnvironment(layout Layout, ranges Ranges) Environment {
	env := Environment{
		Levels:  make(map[string]Inputs, len(layout.Levels)),
		Ambient: Inputs{},
	}
	for _, level := range layout.Levels {
		in := Inputs{}
		for _, v := range crops.Vars {
			if !v.Ambient() {
				in[v] = ranges[v].Min
			}
		}
		env.Levels[level] = in
	}
	env.Ambient[crops.Temperature] = defaultOrMin(ranges[crops.Temperature], DefaultTemperature)
	env.Ambient[crops.Humidity] = defaultOrMin(ranges[crops.Humidity], DefaultHumidity)
	return env
}

func defaultOrMin(r InputRange, v float64) float64 {
	if r.Contains(v) {
		return v
	}
	return r.Min
}

// Clone returns a deep copy.
func (e Environment) Clone() Environment {
	out := Environment{Levels: make(map[string]Inputs, len(e.Levels)), Ambient: Inputs{}}
	for level, in := range e.Levels {
		c := make(Inputs, len(in))
		for k, v := range in {
			c[k] = v
		}
		out.Levels[level] = c
	}
	for k, v := range e.Ambient {
		out.Ambient[k] = v
	}
	return out
}

// SetEnvironment validates and applies one input. T and H are ambient, so
// setting them on any level changes the shared value.
func (f *Farm) SetEnvironment(level string, v crops.Var, value float64) error {
	if !f.Layout.Has(level) {
		return fmt.Errorf("%w: unknown level %q", ErrInvalidInput, level)
	}
	if v.Ambient() {
		return f.SetAmbient(v, value)
	}
	if err := f.checkValue(v, value); err != nil {
		return err
	}
	f.Env.Levels[level][v] = value
	return nil
}

// SetAmbient sets the shared temperature or humidity.
func (f *Farm) SetAmbient(v crops.Var, value float64) error {
	if !v.Ambient() {
		return fmt.Errorf("%w: %s is set per level", ErrInvalidInput, v.Name())
	}
	if err := f.checkValue(v, value); err != nil {
		return err
	}
	f.Env.Ambient[v] = value
	return nil
}

func (f *Farm) checkValue(v crops.Var, value float64) error {
	r, ok := f.Ranges[v]
	if !ok {
		return fmt.Errorf("%w: unknown variable %q", ErrInvalidInput, v)
	}
	if !r.Contains(value) {
		return fmt.Errorf("%w: %s=%g not in [%g, %g] step %g", ErrInvalidInput, v.Name(), value, r.Min, r.Max, r.Step)
	}
	return nil
}

// Conditions returns the effective environment a plant on level experiences.
func (f *Farm) Conditions(level string) growth.Conditions {
	c := make(growth.Conditions, len(crops.Vars))
	for v, val := range f.Env.Levels[level] {
		c[v] = val
	}
	off := f.Layout.Offset(level)
	for v, val := range f.Env.Ambient {
		c[v] = val + off
	}
	return c
}
