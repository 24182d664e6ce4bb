package hybrid

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/sara-star-quant/hybrid-qkd/internal/constants"
	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
	"github.com/sara-star-quant/hybrid-qkd/pkg/auth"
	"github.com/sara-star-quant/hybrid-qkd/pkg/bb84"
	"github.com/sara-star-quant/hybrid-qkd/pkg/crypto"
	"github.com/sara-star-quant/hybrid-qkd/pkg/kem"
	"github.com/sara-star-quant/hybrid-qkd/pkg/metrics"
)

// Handshaker runs hybrid handshakes with one negotiated KEM.
type Handshaker struct {
	cfg    Config
	scheme kem.KEM

	rng     *rand.Rand
	signer  *auth.Signer
	peerKey []byte

	logger          *metrics.Logger
	tracer          metrics.Tracer
	collector       *metrics.Collector
	observerFactory ObserverFactory
	now             func() time.Time
}

// Option configures a Handshaker.
type Option func(*Handshaker)

// WithLogger sets the logger used by the handshake and the BB84 run.
func WithLogger(l *metrics.Logger) Option {
	return func(h *Handshaker) { h.logger = l }
}

// WithTracer sets the tracer for handshake and state spans.
func WithTracer(t metrics.Tracer) Option {
	return func(h *Handshaker) { h.tracer = t }
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(h *Handshaker) { h.collector = c }
}

// WithSigner signs every transcript hash with s.
func WithSigner(s *auth.Signer) Option {
	return func(h *Handshaker) { h.signer = s }
}

// WithPeerKey pins the public key transcript signatures are verified
// against. Without it the signer's own public key is used.
func WithPeerKey(pub []byte) Option {
	return func(h *Handshaker) { h.peerKey = append([]byte(nil), pub...) }
}

// WithRand sets the session RNG driving the BB84 run. The default is a fresh
// ChaCha8 generator seeded from the system CSPRNG per handshake.
func WithRand(rng *rand.Rand) Option {
	return func(h *Handshaker) { h.rng = rng }
}

// WithObserver replaces the default metrics observer.
func WithObserver(f ObserverFactory) Option {
	return func(h *Handshaker) { h.observerFactory = f }
}

// NewHandshaker negotiates the KEM named in cfg and returns a Handshaker.
func NewHandshaker(cfg Config, opts ...Option) (*Handshaker, error) {
	cfg = cfg.withDefaults()
	if err := cfg.QKD.Channel.Validate(); err != nil {
		return nil, err
	}
	if cfg.OutLen < 0 || 2*cfg.OutLen > constants.MaxExpandSize {
		return nil, qerrors.NewCryptoError("NewHandshaker", qerrors.ErrInvalidKeySize)
	}

	scheme, err := kem.Negotiate(cfg.KEM, cfg.AllowInsecureKEM)
	if err != nil {
		return nil, err
	}

	h := &Handshaker{
		cfg:    cfg,
		scheme: scheme,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = metrics.GetLogger()
	}
	return h, nil
}

// KEM returns the negotiated scheme.
func (h *Handshaker) KEM() kem.KEM {
	return h.scheme
}

// PerformHandshake runs a single handshake with cfg.
func PerformHandshake(ctx context.Context, cfg Config, opts ...Option) (*crypto.SessionKeys, *Info, error) {
	h, err := NewHandshaker(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return h.Perform(ctx)
}

// session holds the secrets of one handshake.
type session struct {
	pk, sk     []byte
	ct         []byte
	ssEnc      []byte
	ssDec      []byte
	qkd        *bb84.Outcome
	qkdErr     *qerrors.KeyDistillationError
	transcript []byte
}

func (s *session) wipe() {
	crypto.ZeroizeMultiple(s.sk, s.ssEnc, s.ssDec)
	s.qkd.Zeroize()
}

// Perform runs the handshake. On success it returns the session keys, which
// the caller must Zeroize. On failure the keys are nil and err is a
// *HandshakeError naming the failed state; Info still describes the attempt.
func (h *Handshaker) Perform(ctx context.Context) (*crypto.SessionKeys, *Info, error) {
	info := &Info{
		SessionID:     uuid.New(),
		KEM:           h.scheme.Name(),
		SecurityLevel: h.scheme.SecurityLevel(),
		Security:      h.scheme.SecurityLevel().String(),
		RekeyInterval: h.cfg.Policy.RekeyInterval,
	}
	obs := h.observerFor(info.SessionID)

	ctx, done := obs.OnHandshakeStart(ctx, info.KEM)
	start := h.now()

	s := &session{}
	defer s.wipe()

	keys, err := h.run(ctx, s, info, obs)
	info.Duration = h.now().Sub(start)
	if err != nil {
		info.States = append(info.States, StateAborted)
		done(err)
		return nil, info, err
	}

	info.States = append(info.States, StateDone)
	info.EstablishedAt = h.now()
	done(nil)
	return keys, info, nil
}

func (h *Handshaker) run(ctx context.Context, s *session, info *Info, obs Observer) (*crypto.SessionKeys, error) {
	steps := []struct {
		state State
		fn    func(context.Context, *session, *Info, Observer) error
	}{
		{StateKEMKeygen, h.keygen},
		{StateKEMEncap, h.encap},
		{StateKEMDecapVerify, h.decapVerify},
		{StateRunQKD, h.runQKD},
		{StateCheckQKD, h.checkQKD},
		{StateCombine, h.bindTranscript},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, qerrors.NewHandshakeError(step.state.String(), err)
		}
		if err := h.step(ctx, step.state, s, info, obs, step.fn); err != nil {
			return nil, err
		}
	}

	var ssQKD []byte
	if info.QKDUsed {
		ssQKD = s.qkd.Key
	}
	keys, err := crypto.DeriveSessionKeys(s.ssEnc, ssQKD, s.transcript, h.cfg.OutLen)
	if err != nil {
		return nil, qerrors.NewHandshakeError(StateCombine.String(), err)
	}
	return keys, nil
}

func (h *Handshaker) step(ctx context.Context, state State, s *session, info *Info, obs Observer,
	fn func(context.Context, *session, *Info, Observer) error) error {
	info.States = append(info.States, state)
	sctx, end := obs.OnState(ctx, state.String())
	err := fn(sctx, s, info, obs)
	end(err)
	if err != nil {
		return qerrors.NewHandshakeError(state.String(), err)
	}
	return nil
}

func (h *Handshaker) keygen(_ context.Context, s *session, info *Info, obs Observer) error {
	if info.Insecure() {
		if h.cfg.Policy.RequireRealKEM {
			return qerrors.NewKEMError(info.KEM, qerrors.ErrInsecureKEM)
		}
		obs.OnInsecureKEM(info.KEM)
	}

	pk, sk, err := h.scheme.GenerateKeyPair()
	if err != nil {
		obs.OnKEMFailure(err)
		return err
	}
	s.pk, s.sk = pk, sk
	info.KEMPublicKey = pk
	return nil
}

func (h *Handshaker) encap(_ context.Context, s *session, info *Info, obs Observer) error {
	ct, ss, err := h.scheme.Encapsulate(s.pk)
	if err != nil {
		obs.OnKEMFailure(err)
		return err
	}
	s.ct, s.ssEnc = ct, ss
	info.KEMCiphertext = ct
	return nil
}

func (h *Handshaker) decapVerify(_ context.Context, s *session, info *Info, obs Observer) error {
	ss, err := h.scheme.Decapsulate(s.ct, s.sk)
	if err != nil {
		obs.OnKEMFailure(err)
		return err
	}
	s.ssDec = ss
	if !crypto.ConstantTimeCompare(s.ssEnc, s.ssDec) {
		err := qerrors.NewKEMError(info.KEM+".Decapsulate", qerrors.ErrSecretMismatch)
		obs.OnKEMFailure(err)
		return err
	}
	return nil
}

func (h *Handshaker) runQKD(ctx context.Context, s *session, info *Info, obs Observer) error {
	cfg := h.cfg.QKD
	if cfg.Logger == nil {
		cfg.Logger = h.logger
	}
	if cfg.MaxQBER == 0 {
		cfg.MaxQBER = h.cfg.Policy.QBERMax
	}

	rng := h.rng
	if rng == nil {
		var err error
		if rng, err = crypto.NewSessionRand(); err != nil {
			return err
		}
	}

	out, err := bb84.Run(ctx, rng, cfg)
	if out != nil {
		info.QKD = out.Metrics
		metrics.Annotate(ctx, metrics.SpanAttributes{
			DistanceKM: out.Metrics.DistanceKM,
			SiftLen:    out.Metrics.SiftLen,
			QBER:       out.Metrics.QBER,
		}.ToMap())
	}

	var kdErr *qerrors.KeyDistillationError
	if errors.As(err, &kdErr) {
		s.qkdErr = kdErr
		return nil
	}
	if err != nil {
		return err
	}

	s.qkd = out
	obs.OnQKDResult(out.Metrics.SiftLen, out.Metrics.QBER, out.Metrics.LeakageBits, out.Metrics.ResidualErrors)
	return nil
}

func (h *Handshaker) checkQKD(_ context.Context, s *session, info *Info, obs Observer) error {
	if s.qkdErr == nil && info.QKD.QBER > h.cfg.Policy.QBERMax {
		s.qkdErr = qerrors.NewQBERExceededError(info.QKD.QBER, h.cfg.Policy.QBERMax)
	}

	if s.qkdErr == nil {
		info.QKDUsed = true
		return nil
	}

	s.qkd.Zeroize()
	obs.OnQKDAbort(s.qkdErr.Reason.String(), info.QKD.QBER)
	if !h.cfg.Policy.FallbackToKEMOnly {
		return s.qkdErr
	}
	obs.OnKEMOnlyFallback(s.qkdErr)
	return nil
}

func (h *Handshaker) bindTranscript(_ context.Context, s *session, info *Info, obs Observer) error {
	if !h.cfg.BindTranscript {
		return nil
	}

	s.transcript = crypto.TranscriptHash(
		[]byte(constants.DomainSeparatorTranscript),
		[]byte(info.KEM),
		s.pk,
		s.ct,
		qkdSummary(info),
	)
	info.TranscriptHash = s.transcript

	if h.signer == nil {
		return nil
	}

	sig, err := h.signer.Sign(s.transcript)
	if err != nil {
		return err
	}
	peer := h.peerKey
	if peer == nil {
		peer = h.signer.PublicKey()
	}
	if err := h.signer.Verify(peer, s.transcript, sig); err != nil {
		obs.OnSignatureFailure(err)
		return err
	}

	info.SignatureScheme = h.signer.Scheme()
	info.SignerPublicKey = peer
	info.Signature = sig
	return nil
}

// qkdSummary encodes the public QKD metrics bound into the transcript.
func qkdSummary(info *Info) []byte {
	m := info.QKD
	buf := make([]byte, 0, 41)
	buf = binary.BigEndian.AppendUint64(buf, uint64(m.SiftLen))
	buf = binary.BigEndian.AppendUint64(buf, uint64(m.SampleSize))
	buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(m.QBER))
	buf = binary.BigEndian.AppendUint64(buf, uint64(m.LeakageBits))
	buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(m.DistanceKM))
	if info.QKDUsed {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}
