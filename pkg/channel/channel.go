// Package channel models the lossy optical link and the single-photon
// detector used by the BB84 simulation.
//
// The model is deliberately coarse: loss is a pure exponential in fibre
// length, the detector fires on a surviving photon with a fixed efficiency,
// and dark counts are independent per-slot noise clicks.
package channel

import (
	"math"
	"math/rand/v2"

	"github.com/sara-star-quant/hybrid-qkd/internal/constants"
	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
)

// Parameters describes one channel and detector configuration.
type Parameters struct {
	DistanceKM         float64 `json:"distance_km"`
	AttenuationDBPerKM float64 `json:"attenuation_db_per_km"`
	DetectorEfficiency float64 `json:"detector_efficiency"`
	DarkCountRate      float64 `json:"dark_count_rate"`
}

// DefaultParameters returns a standard telecom fibre link of the given length.
func DefaultParameters(distanceKM float64) Parameters {
	return Parameters{
		DistanceKM:         distanceKM,
		AttenuationDBPerKM: constants.DefaultAttenuationDBPerKM,
		DetectorEfficiency: constants.DefaultDetectorEfficiency,
		DarkCountRate:      constants.DefaultDarkCountRate,
	}
}

// WithDefaults fills an unset link with the standard fibre and detector
// figures. A link is unset when its attenuation, efficiency and dark count
// are all zero; DistanceKM is kept.
func (p Parameters) WithDefaults() Parameters {
	if p.AttenuationDBPerKM == 0 && p.DetectorEfficiency == 0 && p.DarkCountRate == 0 {
		return DefaultParameters(p.DistanceKM)
	}
	return p
}

// Validate rejects parameters outside their physical range.
func (p Parameters) Validate() error {
	checks := []struct {
		field    string
		value    float64
		upper    float64
		hasUpper bool
	}{
		{"distance_km", p.DistanceKM, 0, false},
		{"attenuation_db_per_km", p.AttenuationDBPerKM, 0, false},
		{"detector_efficiency", p.DetectorEfficiency, 1, true},
		{"dark_count_rate", p.DarkCountRate, 1, true},
	}

	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) || c.value < 0 || (c.hasUpper && c.value > c.upper) {
			return &qerrors.ChannelConfigError{Field: c.field, Value: c.value}
		}
	}
	return nil
}

// ArrivalProbability returns the probability that a photon survives the link.
func (p Parameters) ArrivalProbability() float64 {
	return ArrivalProbability(p.DistanceKM, p.AttenuationDBPerKM)
}

// ArrivalProbability computes 10^(-(α·d)/10). A lossless link returns exactly 1.
func ArrivalProbability(distanceKM, attenuationDBPerKM float64) float64 {
	totalLossDB := attenuationDBPerKM * distanceKM
	if totalLossDB == 0 {
		return 1.0
	}
	return math.Pow(10, -totalLossDB/10)
}

// Detection is the outcome of one detector slot.
type Detection struct {
	Click      bool // the detector fired
	FromPhoton bool // the click came from the sent photon and not a dark count
}

// SimulateDetection draws three uniform samples from rng, in order: photon
// arrival, detector efficiency, dark count. A slot where both a real photon
// and a dark count fire is reported as a dark count.
func SimulateDetection(rng *rand.Rand, probReach, detectorEfficiency, darkCountRate float64) Detection {
	s1 := rng.Float64()
	s2 := rng.Float64()
	s3 := rng.Float64()

	realClick := s1 < probReach && s2 < detectorEfficiency
	darkClick := s3 < darkCountRate

	return Detection{
		Click:      realClick || darkClick,
		FromPhoton: realClick && !darkClick,
	}
}
