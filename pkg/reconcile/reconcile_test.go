package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
	"github.com/sara-star-quant/hybrid-qkd/pkg/crypto"
)

func randomBits(seed uint64, n int) []uint8 {
	rng := crypto.NewSeededRand(seed)
	bits := make([]uint8, n)
	for i := range bits {
		bits[i] = uint8(rng.IntN(2))
	}
	return bits
}

func TestIdenticalSequences(t *testing.T) {
	bits := randomBits(1, 64)
	receiver := append([]uint8(nil), bits...)

	for _, rounds := range []int{1, 4, 7} {
		res, err := Reconcile(bits, receiver, WithBlockSize(16), WithMaxRounds(rounds))
		require.NoError(t, err)
		assert.Equal(t, 4*rounds, res.LeakageBits)
		assert.Equal(t, bits, res.Corrected)
		assert.Zero(t, res.CorrectedBlocks)
	}
}

func TestDefaultsLeakage(t *testing.T) {
	bits := randomBits(2, 40) // blocks of 16, 16, 8
	res, err := Reconcile(bits, bits)
	require.NoError(t, err)
	assert.Equal(t, 3*4, res.LeakageBits)
}

func TestSingleErrorAtBlockStartFixedInOneRound(t *testing.T) {
	sender := randomBits(3, 64)
	receiver := append([]uint8(nil), sender...)
	receiver[32] ^= 1 // first bit of the third block

	res, err := Reconcile(sender, receiver, WithMaxRounds(1))
	require.NoError(t, err)
	assert.Equal(t, sender, res.Corrected)
	assert.Equal(t, 1, res.CorrectedBlocks)
	assert.Equal(t, 4, res.LeakageBits)
}

func TestFirstFlipRestoresParityOnly(t *testing.T) {
	sender := randomBits(4, 16)
	receiver := append([]uint8(nil), sender...)
	receiver[9] ^= 1

	res, err := Reconcile(sender, receiver, WithMaxRounds(4))
	require.NoError(t, err)
	assert.Equal(t, Parity(sender), Parity(res.Corrected))
	assert.Equal(t, 2, Mismatches(sender, res.Corrected), "flip lands on bit 0, error at bit 9 remains")
	assert.Equal(t, 1, res.CorrectedBlocks, "later rounds see matching parity")
}

func TestBisectFixesSingleErrorAnywhere(t *testing.T) {
	sender := randomBits(5, 64)

	for pos := 0; pos < 64; pos++ {
		receiver := append([]uint8(nil), sender...)
		receiver[pos] ^= 1

		res, err := Reconcile(sender, receiver, WithMaxRounds(1), WithStrategy(StrategyBisect))
		require.NoError(t, err)
		require.Equal(t, sender, res.Corrected, "error at %d", pos)
		assert.Equal(t, 4+4, res.LeakageBits, "4 block parities plus log2(16) bisection parities")
	}
}

func TestMultiErrorBlindSpot(t *testing.T) {
	sender := randomBits(6, 32)

	t.Run("even errors are invisible", func(t *testing.T) {
		receiver := append([]uint8(nil), sender...)
		receiver[3] ^= 1
		receiver[11] ^= 1

		for _, s := range []Strategy{StrategyFirstFlip, StrategyBisect} {
			res, err := Reconcile(sender, receiver, WithStrategy(s))
			require.NoError(t, err)
			assert.Equal(t, receiver, res.Corrected, s.String())
			assert.Equal(t, 2, Mismatches(sender, res.Corrected))
		}
	})

	t.Run("three errors are not all fixed", func(t *testing.T) {
		receiver := append([]uint8(nil), sender...)
		receiver[1] ^= 1
		receiver[5] ^= 1
		receiver[9] ^= 1

		res, err := Reconcile(sender, receiver, WithStrategy(StrategyBisect))
		require.NoError(t, err)
		assert.Equal(t, 2, Mismatches(sender, res.Corrected))
	})
}

func TestInputNotMutated(t *testing.T) {
	sender := randomBits(7, 48)
	receiver := randomBits(8, 48)
	before := append([]uint8(nil), receiver...)

	_, err := Reconcile(sender, receiver)
	require.NoError(t, err)
	assert.Equal(t, before, receiver)
}

func TestLengthPreserved(t *testing.T) {
	for _, n := range []int{0, 1, 15, 16, 17, 100} {
		res, err := Reconcile(randomBits(9, n), randomBits(10, n))
		require.NoError(t, err)
		assert.Len(t, res.Corrected, n)
	}
}

func TestInvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		sender   []uint8
		receiver []uint8
		opts     []Option
	}{
		{"length mismatch", make([]uint8, 4), make([]uint8, 5), nil},
		{"zero block size", make([]uint8, 4), make([]uint8, 4), []Option{WithBlockSize(0)}},
		{"negative rounds", make([]uint8, 4), make([]uint8, 4), []Option{WithMaxRounds(-1)}},
		{"unknown strategy", make([]uint8, 4), make([]uint8, 4), []Option{WithStrategy(Strategy(9))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reconcile(tt.sender, tt.receiver, tt.opts...)
			assert.ErrorIs(t, err, qerrors.ErrInvalidReconcileInput)
		})
	}
}

func TestParityAndMismatches(t *testing.T) {
	assert.Equal(t, uint8(0), Parity(nil))
	assert.Equal(t, uint8(1), Parity([]uint8{1, 0, 0}))
	assert.Equal(t, uint8(0), Parity([]uint8{1, 1, 0, 1, 1}))

	assert.Equal(t, 0, Mismatches([]uint8{1, 0}, []uint8{1, 0}))
	assert.Equal(t, 1, Mismatches([]uint8{1, 0}, []uint8{1, 1}))
	assert.Equal(t, 3, Mismatches([]uint8{1, 0, 1}, []uint8{0}))
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{StrategyFirstFlip, StrategyBisect} {
		got, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	got, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyFirstFlip, got)

	_, err = ParseStrategy("cascade")
	assert.ErrorIs(t, err, qerrors.ErrInvalidReconcileInput)
}

func BenchmarkReconcile(b *testing.B) {
	sender := randomBits(11, 4096)
	receiver := randomBits(12, 4096)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Reconcile(sender, receiver)
	}
}
