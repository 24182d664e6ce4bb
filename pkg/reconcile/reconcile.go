// Package reconcile corrects discrepancies between the two sifted BB84
// sequences with iterative block-parity disclosure.
//
// The algorithm is a simplified single-error heuristic and not Cascade:
//
//  1. Split both sequences into contiguous blocks of BlockSize bits (the last
//     block may be shorter).
//  2. Disclose the parity of every block. Each disclosed parity bit counts as
//     one bit of leakage to an eavesdropper.
//  3. For every block whose parities differ, flip the receiver's bits one at a
//     time and keep the first flip that makes the parities agree.
//
// Any single flip changes the parity of a block, so step 3 always keeps the
// flip of the block's first bit: the block's parity is restored, but the bit
// is only right when the error sat in that position. StrategyBisect replaces
// step 3 with a binary search over disclosed sub-block parities, which
// locates a lone error anywhere in the block at the cost of about
// log2(BlockSize) extra leaked bits per mismatched block.
//
// Steps 1-3 repeat for MaxRounds rounds even after the sequences agree. A
// block with an even number of errors has matching parity and is never
// touched; a block with an odd number of errors greater than one is "fixed"
// in parity only. Both are expected behavior and callers must treat the
// corrected sequence as probably, not certainly, equal to the reference.
package reconcile

import (
	"fmt"

	"github.com/sara-star-quant/hybrid-qkd/internal/constants"
	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
)

// Result is the outcome of a reconciliation run.
type Result struct {
	// Corrected is the receiver sequence after correction; same length as the input.
	Corrected []uint8

	// LeakageBits counts parity bits disclosed across all rounds.
	LeakageBits int

	// CorrectedBlocks counts single-bit corrections applied across all rounds.
	CorrectedBlocks int
}

// Strategy selects how a block with mismatched parity is corrected.
type Strategy int

const (
	// StrategyFirstFlip keeps the first single-bit flip that restores parity.
	StrategyFirstFlip Strategy = iota

	// StrategyBisect locates the error by halving the block and comparing
	// the parity of the left half. Each comparison is disclosed leakage.
	StrategyBisect
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyFirstFlip:
		return "first-flip"
	case StrategyBisect:
		return "bisect"
	default:
		return "unknown"
	}
}

// ParseStrategy maps "first-flip" or "bisect" to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "first-flip":
		return StrategyFirstFlip, nil
	case "bisect":
		return StrategyBisect, nil
	default:
		return 0, fmt.Errorf("%w: unknown strategy %q", qerrors.ErrInvalidReconcileInput, name)
	}
}

type options struct {
	blockSize int
	maxRounds int
	strategy  Strategy
}

// Option configures Reconcile.
type Option func(*options)

// WithBlockSize sets the parity block length in bits.
func WithBlockSize(n int) Option {
	return func(o *options) { o.blockSize = n }
}

// WithMaxRounds sets the number of parity passes.
func WithMaxRounds(n int) Option {
	return func(o *options) { o.maxRounds = n }
}

// WithStrategy selects the block correction strategy.
func WithStrategy(s Strategy) Option {
	return func(o *options) { o.strategy = s }
}

// Reconcile corrects receiver against the reference sequence sender. Neither
// input is modified.
func Reconcile(sender, receiver []uint8, opts ...Option) (*Result, error) {
	o := options{
		blockSize: constants.DefaultBlockSize,
		maxRounds: constants.DefaultMaxRounds,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if len(sender) != len(receiver) {
		return nil, fmt.Errorf("%w: sender has %d bits, receiver has %d", qerrors.ErrInvalidReconcileInput, len(sender), len(receiver))
	}
	if o.blockSize <= 0 || o.maxRounds < 0 || (o.strategy != StrategyFirstFlip && o.strategy != StrategyBisect) {
		return nil, fmt.Errorf("%w: block size %d, rounds %d", qerrors.ErrInvalidReconcileInput, o.blockSize, o.maxRounds)
	}

	corrected := make([]uint8, len(receiver))
	copy(corrected, receiver)

	res := &Result{Corrected: corrected}
	for round := 0; round < o.maxRounds; round++ {
		for start := 0; start < len(sender); start += o.blockSize {
			end := min(start+o.blockSize, len(sender))
			res.LeakageBits++

			want := Parity(sender[start:end])
			if Parity(corrected[start:end]) == want {
				continue
			}
			switch o.strategy {
			case StrategyBisect:
				idx, disclosed := bisect(sender[start:end], corrected[start:end])
				res.LeakageBits += disclosed
				corrected[start+idx] ^= 1
				res.CorrectedBlocks++
			default:
				if fixBlock(corrected[start:end], want) {
					res.CorrectedBlocks++
				}
			}
		}
	}

	return res, nil
}

// fixBlock tries each single-bit flip in order and keeps the first one that
// yields the wanted parity. The block is left unchanged if none does.
func fixBlock(block []uint8, want uint8) bool {
	for i := range block {
		block[i] ^= 1
		if Parity(block) == want {
			return true
		}
		block[i] ^= 1
	}
	return false
}

// bisect narrows a block known to have odd error parity down to one bit and
// returns its offset together with the number of parities disclosed.
func bisect(ref, block []uint8) (int, int) {
	lo, hi := 0, len(block)
	disclosed := 0
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		disclosed++
		if Parity(ref[lo:mid]) != Parity(block[lo:mid]) {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo, disclosed
}

// Parity returns the XOR of all bits (sum mod 2).
func Parity(bits []uint8) uint8 {
	var p uint8
	for _, b := range bits {
		p ^= b & 1
	}
	return p
}

// Mismatches counts positions where a and b differ. Extra bits in the longer
// slice count as mismatches.
func Mismatches(a, b []uint8) int {
	n := 0
	for i := 0; i < min(len(a), len(b)); i++ {
		if a[i]&1 != b[i]&1 {
			n++
		}
	}
	return n + max(len(a), len(b)) - min(len(a), len(b))
}
