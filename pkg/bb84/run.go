package bb84

import (
	"context"
	"math/rand/v2"

	"github.com/sara-star-quant/hybrid-qkd/internal/constants"
	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
	"github.com/sara-star-quant/hybrid-qkd/pkg/amplify"
	"github.com/sara-star-quant/hybrid-qkd/pkg/channel"
	"github.com/sara-star-quant/hybrid-qkd/pkg/crypto"
	"github.com/sara-star-quant/hybrid-qkd/pkg/metrics"
	"github.com/sara-star-quant/hybrid-qkd/pkg/reconcile"
)

// Config parameterizes a full distillation run.
type Config struct {
	// N is the number of transmitted photons.
	N int

	// Channel describes the link. A zero link apart from DistanceKM gets
	// the default fibre and detector figures.
	Channel channel.Parameters

	// BlockSize and MaxRounds configure reconciliation. Zero selects the
	// default.
	BlockSize int
	MaxRounds int

	// Strategy selects the reconciliation block correction.
	Strategy reconcile.Strategy

	// KeyLen is the distilled key length in bytes. Zero selects the default.
	KeyLen int

	// Salt is the privacy amplification salt. Nil selects "bb84-salt".
	Salt []byte

	// MaxQBER aborts the run when the estimated QBER exceeds it. Zero
	// disables the check.
	MaxQBER float64

	Logger *metrics.Logger
}

// DefaultConfig returns the standard run: 1000 photons over 10 km of fibre.
func DefaultConfig() Config {
	return Config{
		N:         constants.DefaultPhotons,
		Channel:   channel.DefaultParameters(constants.DefaultDistanceKM),
		BlockSize: constants.DefaultBlockSize,
		MaxRounds: constants.DefaultMaxRounds,
		KeyLen:    constants.DistilledKeySize,
		Salt:      []byte(constants.AmplificationSalt),
	}
}

func (c Config) withDefaults() Config {
	c.Channel = c.Channel.WithDefaults()
	if c.BlockSize == 0 {
		c.BlockSize = constants.DefaultBlockSize
	}
	if c.MaxRounds == 0 {
		c.MaxRounds = constants.DefaultMaxRounds
	}
	if c.KeyLen == 0 {
		c.KeyLen = constants.DistilledKeySize
	}
	if c.Salt == nil {
		c.Salt = []byte(constants.AmplificationSalt)
	}
	return c
}

// Outcome is the result of Run.
type Outcome struct {
	// Key is distilled from the sender's sequence.
	Key []byte

	// ReceiverKey is distilled from the reconciled receiver sequence. It
	// equals Key exactly when reconciliation removed every error.
	ReceiverKey []byte

	Metrics Metrics
}

// Agreed reports whether both parties hold the same key.
func (o *Outcome) Agreed() bool {
	return o != nil && o.Key != nil && crypto.ConstantTimeCompare(o.Key, o.ReceiverKey)
}

// Zeroize erases both keys.
func (o *Outcome) Zeroize() {
	if o == nil {
		return
	}
	crypto.ZeroizeMultiple(o.Key, o.ReceiverKey)
}

// Run executes one BB84 session end to end: generate, measure, sift, sample
// the QBER, reconcile and amplify.
//
// When the session yields no sifted bits, or the QBER exceeds cfg.MaxQBER,
// Run returns an Outcome without keys whose Metrics describe the run so far,
// together with a *KeyDistillationError. ctx is checked between stages.
func Run(ctx context.Context, rng *rand.Rand, cfg Config) (*Outcome, error) {
	cfg = cfg.withDefaults()
	if cfg.N < 0 {
		return nil, &qerrors.ChannelConfigError{Field: "n", Value: float64(cfg.N)}
	}

	engine, err := NewEngine(cfg.Channel, rng, WithLogger(cfg.Logger))
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		Metrics: Metrics{
			DistanceKM: cfg.Channel.DistanceKM,
			ProbReach:  engine.ProbReach(),
		},
	}

	raw := engine.Generate(cfg.N)
	engine.Measure(raw)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := engine.Sift(raw)
	defer key.Wipe()

	sample, err := engine.SampleQBER(&key)
	if err != nil {
		return out, err
	}
	out.Metrics.SiftLen = key.Len()
	out.Metrics.SampleSize = len(sample.Indices)
	out.Metrics.QBER = sample.QBER

	if cfg.MaxQBER > 0 && sample.QBER > cfg.MaxQBER {
		engine.stage(StageAbort, metrics.Fields{"reason": qerrors.ReasonQBERExceeded.String()})
		return out, qerrors.NewQBERExceededError(sample.QBER, cfg.MaxQBER)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	engine.stage(StageReconcile, metrics.Fields{"block_size": cfg.BlockSize, "rounds": cfg.MaxRounds})
	rec, err := reconcile.Reconcile(key.Sender, key.Receiver,
		reconcile.WithBlockSize(cfg.BlockSize),
		reconcile.WithMaxRounds(cfg.MaxRounds),
		reconcile.WithStrategy(cfg.Strategy),
	)
	if err != nil {
		return nil, err
	}
	defer clear(rec.Corrected)
	out.Metrics.LeakageBits = rec.LeakageBits
	out.Metrics.ResidualErrors = reconcile.Mismatches(key.Sender, rec.Corrected)

	engine.stage(StageAmplify, metrics.Fields{"key_len": cfg.KeyLen})
	senderKey, err := amplify.Amplify(key.Sender, cfg.KeyLen, cfg.Salt)
	if err != nil {
		return nil, err
	}
	receiverKey, err := amplify.Amplify(rec.Corrected, cfg.KeyLen, cfg.Salt)
	if err != nil {
		crypto.Zeroize(senderKey)
		return nil, err
	}

	out.Key = senderKey
	out.ReceiverKey = receiverKey
	return out, nil
}
