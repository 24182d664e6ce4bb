package bb84

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
	"github.com/sara-star-quant/hybrid-qkd/pkg/channel"
	"github.com/sara-star-quant/hybrid-qkd/pkg/crypto"
	"github.com/sara-star-quant/hybrid-qkd/pkg/metrics"
)

func quietConfig(n int, p channel.Parameters) Config {
	cfg := DefaultConfig()
	cfg.N = n
	cfg.Channel = p
	cfg.Logger = metrics.NullLogger()
	return cfg
}

func TestRunShortLink(t *testing.T) {
	out, err := Run(context.Background(), crypto.NewSeededRand(300), quietConfig(300, channel.DefaultParameters(1.0)))
	require.NoError(t, err)

	assert.InDelta(t, 0.954992586, out.Metrics.ProbReach, 1e-6)
	assert.Equal(t, 1.0, out.Metrics.DistanceKM)
	assert.GreaterOrEqual(t, out.Metrics.SiftLen, 0)
	assert.Len(t, out.Key, 32)
	assert.Len(t, out.ReceiverKey, 32)
	assert.Equal(t, 4*((out.Metrics.SiftLen+15)/16), out.Metrics.LeakageBits)
}

func TestRunNoPhotons(t *testing.T) {
	out, err := Run(context.Background(), crypto.NewSeededRand(1), quietConfig(0, channel.DefaultParameters(10)))
	require.Error(t, err)
	assert.ErrorIs(t, err, qerrors.ErrNoSiftedBits)

	var kde *qerrors.KeyDistillationError
	require.ErrorAs(t, err, &kde)
	assert.Equal(t, qerrors.ReasonNoSiftedBits, kde.Reason)

	require.NotNil(t, out)
	assert.Nil(t, out.Key)
	assert.Zero(t, out.Metrics.SiftLen)
	assert.Equal(t, 10.0, out.Metrics.DistanceKM)
	assert.InDelta(t, 0.630957344, out.Metrics.ProbReach, 1e-6)
	assert.False(t, out.Agreed())
}

func TestRunDeterministic(t *testing.T) {
	cfg := quietConfig(2000, channel.DefaultParameters(2))

	a, err := Run(context.Background(), crypto.NewSeededRand(42), cfg)
	require.NoError(t, err)
	b, err := Run(context.Background(), crypto.NewSeededRand(42), cfg)
	require.NoError(t, err)
	c, err := Run(context.Background(), crypto.NewSeededRand(43), cfg)
	require.NoError(t, err)

	assert.Equal(t, a.Key, b.Key)
	assert.Equal(t, a.Metrics, b.Metrics)
	assert.NotEqual(t, a.Key, c.Key)
}

func TestRunPerfectLinkAgrees(t *testing.T) {
	out, err := Run(context.Background(), crypto.NewSeededRand(9), quietConfig(400, perfectLink))
	require.NoError(t, err)

	assert.Zero(t, out.Metrics.QBER)
	assert.Zero(t, out.Metrics.ResidualErrors)
	assert.True(t, out.Agreed())
	assert.InDelta(t, 200, out.Metrics.SiftLen+out.Metrics.SampleSize, 50)
}

func TestRunQBERThreshold(t *testing.T) {
	// Every click is a dark count, so sifted bits are coin flips.
	noisy := channel.Parameters{DetectorEfficiency: 0, DarkCountRate: 1}
	cfg := quietConfig(1000, noisy)
	cfg.MaxQBER = 0.10

	out, err := Run(context.Background(), crypto.NewSeededRand(5), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, qerrors.ErrQBERExceeded)

	var kde *qerrors.KeyDistillationError
	require.ErrorAs(t, err, &kde)
	assert.Greater(t, kde.QBER, 0.10)
	assert.Equal(t, 0.10, kde.Threshold)

	require.NotNil(t, out)
	assert.Nil(t, out.Key)
	assert.Greater(t, out.Metrics.SiftLen, 0)
	assert.Equal(t, SampleSize(out.Metrics.SiftLen+out.Metrics.SampleSize), out.Metrics.SampleSize)

	cfg.MaxQBER = 0
	out, err = Run(context.Background(), crypto.NewSeededRand(5), cfg)
	require.NoError(t, err)
	assert.Len(t, out.Key, 32)
	assert.Greater(t, out.Metrics.ResidualErrors, 0)
	assert.False(t, out.Agreed())
}

func TestRunDistanceOnlyLinkUsesDefaults(t *testing.T) {
	out, err := Run(context.Background(), crypto.NewSeededRand(11), quietConfig(1000, channel.Parameters{DistanceKM: 5}))
	require.NoError(t, err)

	want := channel.DefaultParameters(5)
	assert.InDelta(t, want.ArrivalProbability(), out.Metrics.ProbReach, 1e-12)
	assert.Equal(t, 5.0, out.Metrics.DistanceKM)
	assert.Greater(t, out.Metrics.SiftLen, 0)
	assert.Len(t, out.Key, 32)
}

func TestRunKeyLength(t *testing.T) {
	cfg := quietConfig(500, perfectLink)
	cfg.KeyLen = 16
	out, err := Run(context.Background(), crypto.NewSeededRand(3), cfg)
	require.NoError(t, err)
	assert.Len(t, out.Key, 16)
}

func TestRunInvalidConfig(t *testing.T) {
	_, err := Run(context.Background(), crypto.NewSeededRand(1), quietConfig(10, channel.Parameters{DistanceKM: -5}))
	assert.ErrorIs(t, err, qerrors.ErrChannelConfig)

	_, err = Run(context.Background(), crypto.NewSeededRand(1), quietConfig(-1, perfectLink))
	assert.ErrorIs(t, err, qerrors.ErrChannelConfig)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := Run(ctx, crypto.NewSeededRand(1), quietConfig(100, perfectLink))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
}

func BenchmarkRun(b *testing.B) {
	cfg := quietConfig(1000, channel.DefaultParameters(10))
	rng := crypto.NewSeededRand(1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Run(context.Background(), rng, cfg)
	}
}
