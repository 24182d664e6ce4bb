package channel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
	"github.com/sara-star-quant/hybrid-qkd/pkg/crypto"
)

func TestArrivalProbability(t *testing.T) {
	tests := []struct {
		name        string
		distance    float64
		attenuation float64
		want        float64
	}{
		{"zero distance", 0, 0.2, 1.0},
		{"zero attenuation", 50, 0, 1.0},
		{"1 km standard fibre", 1, 0.2, 0.954992586},
		{"10 dB total loss", 50, 0.2, 0.1},
		{"20 dB total loss", 100, 0.2, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ArrivalProbability(tt.distance, tt.attenuation), 1e-9)
		})
	}
}

func TestArrivalProbabilityLosslessIsExact(t *testing.T) {
	for _, d := range []float64{0, 1, 1000} {
		assert.Equal(t, 1.0, ArrivalProbability(d, 0))
		assert.Equal(t, 1.0, ArrivalProbability(0, d))
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultParameters(10).Validate())

	tests := []struct {
		name  string
		p     Parameters
		field string
	}{
		{"negative distance", Parameters{DistanceKM: -1, DetectorEfficiency: 0.1}, "distance_km"},
		{"negative attenuation", Parameters{AttenuationDBPerKM: -0.2}, "attenuation_db_per_km"},
		{"efficiency above one", Parameters{DetectorEfficiency: 1.5}, "detector_efficiency"},
		{"negative dark count", Parameters{DarkCountRate: -1e-5}, "dark_count_rate"},
		{"NaN distance", Parameters{DistanceKM: math.NaN()}, "distance_km"},
		{"infinite attenuation", Parameters{AttenuationDBPerKM: math.Inf(1)}, "attenuation_db_per_km"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, qerrors.ErrChannelConfig)

			var cfgErr *qerrors.ChannelConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestSimulateDetectionBoundaries(t *testing.T) {
	rng := crypto.NewSeededRand(1)

	for i := 0; i < 1000; i++ {
		d := SimulateDetection(rng, 1, 1, 0)
		require.True(t, d.Click)
		require.True(t, d.FromPhoton)
	}

	for i := 0; i < 1000; i++ {
		d := SimulateDetection(rng, 0, 1, 0)
		require.False(t, d.Click)
		require.False(t, d.FromPhoton)
	}

	for i := 0; i < 1000; i++ {
		d := SimulateDetection(rng, 1, 1, 1)
		require.True(t, d.Click)
		require.False(t, d.FromPhoton, "a coincident dark count masks the photon")
	}
}

func TestSimulateDetectionConsumesThreeDraws(t *testing.T) {
	a := crypto.NewSeededRand(9)
	b := crypto.NewSeededRand(9)

	SimulateDetection(a, 0.5, 0.5, 0.5)
	b.Float64()
	b.Float64()
	b.Float64()

	assert.Equal(t, b.Uint64(), a.Uint64())
}

func TestSimulateDetectionRate(t *testing.T) {
	rng := crypto.NewSeededRand(2024)
	p := DefaultParameters(1)
	probReach := p.ArrivalProbability()

	const trials = 200000
	clicks := 0
	for i := 0; i < trials; i++ {
		if SimulateDetection(rng, probReach, p.DetectorEfficiency, p.DarkCountRate).Click {
			clicks++
		}
	}

	expected := probReach * p.DetectorEfficiency
	assert.InDelta(t, expected, float64(clicks)/trials, 0.005)
}

func TestWithDefaults(t *testing.T) {
	assert.Equal(t, DefaultParameters(25), Parameters{DistanceKM: 25}.WithDefaults())
	assert.Equal(t, DefaultParameters(0), Parameters{}.WithDefaults())

	dark := Parameters{DistanceKM: 5, DarkCountRate: 1}
	assert.Equal(t, dark, dark.WithDefaults())

	dead := Parameters{DistanceKM: 10, AttenuationDBPerKM: 0.2}
	assert.Equal(t, dead, dead.WithDefaults())
}
