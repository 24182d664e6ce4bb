// Package bb84 simulates the BB84 prepare-and-measure protocol over the
// lossy channel of package channel and distills a shared key from it.
//
// An Engine runs the quantum part of one session:
//
//	GENERATE -> MEASURE -> SIFT -> SAMPLE_QBER
//
// Run chains the engine with reconciliation and privacy amplification and is
// the usual entry point. Every session owns its Engine and RNG; neither is
// safe for concurrent use.
package bb84

import (
	"errors"
	"math/rand/v2"
	"slices"

	"github.com/sara-star-quant/hybrid-qkd/internal/constants"
	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
	"github.com/sara-star-quant/hybrid-qkd/pkg/channel"
	"github.com/sara-star-quant/hybrid-qkd/pkg/metrics"
)

// Engine runs the quantum stages of one BB84 session.
type Engine struct {
	params    channel.Parameters
	probReach float64
	rng       *rand.Rand
	logger    *metrics.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for stage transitions.
func WithLogger(l *metrics.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine validates params and binds the engine to rng.
func NewEngine(params channel.Parameters, rng *rand.Rand, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errors.New("bb84: nil random source")
	}

	e := &Engine{
		params:    params,
		probReach: params.ArrivalProbability(),
		rng:       rng,
		logger:    metrics.GetLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("bb84")
	return e, nil
}

// ProbReach returns the photon arrival probability of the engine's channel.
func (e *Engine) ProbReach() float64 {
	return e.probReach
}

// Parameters returns the channel parameters.
func (e *Engine) Parameters() channel.Parameters {
	return e.params
}

func (e *Engine) stage(s Stage, fields metrics.Fields) {
	e.logger.Debug(s.String(), fields)
}

// Generate draws n sender bits, then n sender bases, then n receiver bases.
func (e *Engine) Generate(n int) RawExchange {
	e.stage(StageGenerate, metrics.Fields{"n": n})

	raw := make(RawExchange, max(n, 0))
	for i := range raw {
		raw[i].SenderBit = uint8(e.rng.IntN(2))
	}
	for i := range raw {
		raw[i].SenderBasis = Basis(e.rng.IntN(2))
	}
	for i := range raw {
		raw[i].ReceiverBasis = Basis(e.rng.IntN(2))
	}
	return raw
}

// Measure fills in the receiver result of every slot. A real photon measured
// in the sender's basis yields the sender's bit; a mismatched basis or a dark
// count yields a uniformly random bit.
func (e *Engine) Measure(raw RawExchange) {
	e.stage(StageMeasure, metrics.Fields{"prob_reach": e.probReach})

	for i := range raw {
		d := channel.SimulateDetection(e.rng, e.probReach, e.params.DetectorEfficiency, e.params.DarkCountRate)
		switch {
		case !d.Click:
			raw[i].Result = ResultNone
		case d.FromPhoton && raw[i].SenderBasis == raw[i].ReceiverBasis:
			raw[i].Result = resultFromBit(raw[i].SenderBit)
		default:
			raw[i].Result = resultFromBit(uint8(e.rng.IntN(2)))
		}
	}
}

// Sift keeps the slots with matching bases and a detector click.
func Sift(raw RawExchange) SiftedKey {
	var key SiftedKey
	for _, s := range raw {
		bit, ok := s.Result.Bit()
		if !ok || s.SenderBasis != s.ReceiverBasis {
			continue
		}
		key.Sender = append(key.Sender, s.SenderBit)
		key.Receiver = append(key.Receiver, bit)
	}
	return key
}

// Sift is the engine-logged form of the package-level Sift.
func (e *Engine) Sift(raw RawExchange) SiftedKey {
	key := Sift(raw)
	e.stage(StageSift, metrics.Fields{"sift_len": key.Len()})
	return key
}

// SampleSize returns max(1, min(50, siftLen/10)).
func SampleSize(siftLen int) int {
	return max(1, min(constants.MaxQBERSampleSize, siftLen/constants.QBERSampleDivisor))
}

// SampleQBER discloses a random sample of the sifted key, counts the
// disagreements and removes the sampled positions from both sequences.
func (e *Engine) SampleQBER(key *SiftedKey) (Sample, error) {
	n := key.Len()
	if n == 0 {
		e.stage(StageAbort, metrics.Fields{"reason": qerrors.ReasonNoSiftedBits.String()})
		return Sample{}, qerrors.NewNoSiftedBitsError()
	}

	size := SampleSize(n)
	indices := e.rng.Perm(n)[:size]

	errs := 0
	for _, i := range indices {
		if key.Sender[i] != key.Receiver[i] {
			errs++
		}
	}

	slices.Sort(indices)
	key.RemoveIndices(indices)

	s := Sample{
		Indices: indices,
		Errors:  errs,
		QBER:    float64(errs) / float64(size),
	}
	e.stage(StageSampleQBER, metrics.Fields{"sample_size": size, "qber": s.QBER})
	return s, nil
}
