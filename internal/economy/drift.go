package economy

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// DemandDrift is a smooth month-to-month demand multiplier per crop. Noise
// keeps consecutive months correlated instead of jumping like a fresh roll.
type DemandDrift struct {
	noise     opensimplex.Noise
	Amplitude float64
	Frequency float64
}

// NewDemandDrift creates a drift field for seed with a ±15% swing.
func NewDemandDrift(seed int64) *DemandDrift {
	return &DemandDrift{
		noise:     opensimplex.NewNormalized(seed),
		Amplitude: 0.15,
		Frequency: 0.35,
	}
}

// Factor returns the multiplier for a crop (by catalog index) in a month,
// in [1-Amplitude, 1+Amplitude]. A nil drift is flat.
func (d *DemandDrift) Factor(month, cropIndex int) float64 {
	if d == nil {
		return 1
	}
	n := d.noise.Eval2(float64(month)*d.Frequency, float64(cropIndex)*1.7)
	return 1 + d.Amplitude*(2*n-1)
}
