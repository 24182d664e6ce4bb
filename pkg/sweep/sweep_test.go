package sweep

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
	"github.com/sara-star-quant/hybrid-qkd/pkg/channel"
	"github.com/sara-star-quant/hybrid-qkd/pkg/metrics"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = 7
	cfg.Logger = metrics.NullLogger()
	cfg.Collector = metrics.NewCollector(nil)
	cfg.Tracer = metrics.NoOpTracer{}
	return cfg
}

func TestDefaultSweep(t *testing.T) {
	points, err := Run(context.Background(), testConfig())
	require.NoError(t, err)
	require.Len(t, points, len(DefaultDistances))

	for i, p := range points {
		assert.Equal(t, DefaultDistances[i], p.DistanceKM)
		assert.Equal(t, 1, p.Runs)
		assert.InDelta(t, channel.ArrivalProbability(p.DistanceKM, 0.2), p.ProbReach, 1e-12)
	}
	assert.Greater(t, points[0].MeanSiftLen, points[3].MeanSiftLen, "loss grows with distance")
}

func TestSeedReproducibleAcrossConcurrency(t *testing.T) {
	cfg := testConfig()
	cfg.Repeats = 3

	cfg.Concurrency = 1
	serial, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	cfg.Concurrency = 8
	parallel, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
}

func TestDifferentSeedsDiffer(t *testing.T) {
	cfg := testConfig()
	cfg.Distances = []float64{1}
	cfg.Repeats = 4
	a, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	cfg.Seed = 8
	b, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.NotEqual(t, a[0].MeanSiftLen, b[0].MeanSiftLen)
}

func TestPerfectLinkAggregates(t *testing.T) {
	cfg := testConfig()
	cfg.Distances = []float64{0, 50}
	cfg.Repeats = 5
	cfg.QKD.N = 400
	cfg.QKD.Channel = channel.Parameters{DetectorEfficiency: 1}

	points, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	for _, p := range points {
		assert.Equal(t, 1.0, p.ProbReach)
		assert.Equal(t, 5, p.Runs)
		assert.Zero(t, p.Aborts())
		assert.Equal(t, 5, p.Agreed)
		assert.Equal(t, 5, p.QBERRuns)
		assert.Zero(t, p.MeanQBER)
		assert.Zero(t, p.StdDevQBER)
		assert.InDelta(t, 180, p.MeanSiftLen, 30, "about half of 400 minus the sample")
		assert.Positive(t, p.StdDevSiftLen)
		assert.Positive(t, p.MeanLeakage)
		assert.Zero(t, p.MeanResidual)
	}

	snap := cfg.Collector.Snapshot()
	assert.Equal(t, uint64(10), snap.QKDRuns)
}

func TestAbortsAreCounted(t *testing.T) {
	t.Run("no sifted bits", func(t *testing.T) {
		cfg := testConfig()
		cfg.Distances = []float64{10}
		cfg.Repeats = 3
		cfg.QKD.Channel = channel.Parameters{AttenuationDBPerKM: 0.2}

		points, err := Run(context.Background(), cfg)
		require.NoError(t, err)
		p := points[0]
		assert.Equal(t, 3, p.NoSiftedBits)
		assert.Zero(t, p.QBERRuns)
		assert.Zero(t, p.MeanQBER)
		assert.Zero(t, p.MeanSiftLen)
		assert.Equal(t, uint64(3), cfg.Collector.Snapshot().QKDNoSiftedBits)
	})

	t.Run("qber exceeded", func(t *testing.T) {
		cfg := testConfig()
		cfg.Distances = []float64{1}
		cfg.Repeats = 2
		cfg.QKD.MaxQBER = 0.1
		cfg.QKD.Channel = channel.Parameters{AttenuationDBPerKM: 0.2, DarkCountRate: 1}

		points, err := Run(context.Background(), cfg)
		require.NoError(t, err)
		p := points[0]
		assert.Equal(t, 2, p.QBERExceeded)
		assert.Equal(t, 2, p.QBERRuns)
		assert.Greater(t, p.MeanQBER, 0.1)
		assert.Zero(t, p.Agreed)
	})
}

func TestInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Distances = []float64{1, -5}
	_, err := Run(context.Background(), cfg)
	assert.ErrorIs(t, err, qerrors.ErrChannelConfig)

	cfg = testConfig()
	cfg.Repeats = -1
	_, err = Run(context.Background(), cfg)
	assert.Error(t, err)
}

func TestCancelledSweep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, testConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSweepSpans(t *testing.T) {
	cfg := testConfig()
	tr := metrics.NewSimpleTracer()
	cfg.Tracer = tr
	cfg.Distances = []float64{1, 2}

	_, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	spans := tr.Spans()
	require.Len(t, spans, 3)
	assert.Equal(t, metrics.SpanSweep, spans[2].Name)
	for _, s := range spans[:2] {
		assert.Equal(t, metrics.SpanSweepPoint, s.Name)
		assert.Equal(t, spans[2].SpanID, s.ParentID)
		assert.Contains(t, s.Attributes, "qkd.qber")
	}
}

func TestMeanStdDev(t *testing.T) {
	m, s := meanStdDev(nil)
	assert.Zero(t, m)
	assert.Zero(t, s)

	m, s = meanStdDev([]float64{4})
	assert.Equal(t, 4.0, m)
	assert.Zero(t, s)

	m, s = meanStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, m, 1e-12)
	assert.InDelta(t, 2.138089935, s, 1e-9)
}

func BenchmarkSweep(b *testing.B) {
	cfg := testConfig()
	for i := 0; i < b.N; i++ {
		if _, err := Run(context.Background(), cfg); err != nil {
			b.Fatal(err)
		}
	}
}
