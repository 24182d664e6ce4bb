package metrics

import (
	"context"
	"strings"
	"time"
)

// HandshakeObserver records metrics, spans and log lines for one hybrid
// handshake. It implements the hybrid package's Observer interface.
type HandshakeObserver struct {
	collector *Collector
	tracer    Tracer
	logger    *Logger
	sessionID string
}

// HandshakeObserverConfig configures a handshake observer. Nil fields fall
// back to the global collector, tracer and logger.
type HandshakeObserverConfig struct {
	Collector *Collector
	Tracer    Tracer
	Logger    *Logger
	SessionID string
}

// NewHandshakeObserver creates a new handshake observer.
func NewHandshakeObserver(cfg HandshakeObserverConfig) *HandshakeObserver {
	if cfg.Collector == nil {
		cfg.Collector = Global()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = GetTracer()
	}
	if cfg.Logger == nil {
		cfg.Logger = GetLogger()
	}

	logger := cfg.Logger.Named("handshake")
	if cfg.SessionID != "" {
		logger = logger.With(Fields{"session_id": cfg.SessionID})
	}

	return &HandshakeObserver{
		collector: cfg.Collector,
		tracer:    cfg.Tracer,
		logger:    logger,
		sessionID: cfg.SessionID,
	}
}

// StateSpanName returns the span name for an orchestrator state, e.g.
// "KEM_KEYGEN" becomes "hybrid.handshake.kem_keygen".
func StateSpanName(state string) string {
	return SpanHandshake + "." + strings.ToLower(state)
}

// OnHandshakeStart opens the root handshake span. The returned function
// must be called exactly once with the handshake result.
func (o *HandshakeObserver) OnHandshakeStart(ctx context.Context, kem string) (context.Context, func(error)) {
	o.collector.HandshakeStarted()
	start := time.Now()
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanHandshake, WithAttributes(SpanAttributes{
		SessionID: o.sessionID,
		KEM:       kem,
	}.ToMap()))

	o.logger.Debug("handshake started", Fields{"kem": kem})

	return ctx, func(err error) {
		duration := time.Since(start)
		o.collector.RecordHandshakeLatency(duration)

		if err != nil {
			o.collector.HandshakeFailed()
			o.logger.Warn("handshake aborted", Fields{
				"error":    err.Error(),
				"duration": duration.String(),
			})
		} else {
			o.collector.HandshakeCompleted()
			o.logger.Info("handshake completed", Fields{
				"duration": duration.String(),
			})
		}

		endSpan(err)
	}
}

// OnState opens the span of one orchestrator state.
func (o *HandshakeObserver) OnState(ctx context.Context, state string) (context.Context, func(error)) {
	ctx, endSpan := o.tracer.StartSpan(ctx, StateSpanName(state))
	o.logger.Debug("state", Fields{"state": state})

	return ctx, func(err error) {
		if err != nil {
			o.logger.Debug("state failed", Fields{"state": state, "error": err.Error()})
		}
		endSpan(err)
	}
}

// OnQKDResult records a BB84 run that produced a key.
func (o *HandshakeObserver) OnQKDResult(siftLen int, qber float64, leakageBits, residualErrors int) {
	o.collector.RecordQKDRun(siftLen, qber, leakageBits, residualErrors)
	o.logger.Debug("qkd run", Fields{
		"sift_len":        siftLen,
		"qber":            qber,
		"leakage_bits":    leakageBits,
		"residual_errors": residualErrors,
	})
}

// OnQKDAbort records a BB84 run aborted for reason ("NoSiftedBits" or
// "QberExceeded").
func (o *HandshakeObserver) OnQKDAbort(reason string, qber float64) {
	switch reason {
	case "NoSiftedBits":
		o.collector.RecordNoSiftedBits()
	default:
		o.collector.RecordQBERExceeded(qber)
	}
	o.logger.Warn("qkd aborted", Fields{"reason": reason, "qber": qber})
}

// OnInsecureKEM records a session keyed with a simulated KEM.
func (o *HandshakeObserver) OnInsecureKEM(kem string) {
	o.collector.RecordInsecureSession()
	o.logger.Warn("using insecure simulated KEM", Fields{"kem": kem})
}

// OnKEMOnlyFallback records a session that continues without a QKD secret.
func (o *HandshakeObserver) OnKEMOnlyFallback(cause error) {
	o.collector.RecordKEMOnlyFallback()
	o.logger.Warn("falling back to KEM-only session keys", Fields{"cause": cause.Error()})
}

// OnKEMFailure records a failed KEM operation.
func (o *HandshakeObserver) OnKEMFailure(err error) {
	o.collector.RecordKEMFailure()
	o.logger.Error("kem failure", Fields{"error": err.Error()})
}

// OnSignatureFailure records a transcript signature that did not verify.
func (o *HandshakeObserver) OnSignatureFailure(err error) {
	o.collector.RecordSignatureFailure()
	o.logger.Error("transcript signature rejected", Fields{"error": err.Error()})
}

// Logger returns the observer's logger for custom logging.
func (o *HandshakeObserver) Logger() *Logger {
	return o.logger
}

// --- Instrumented Channel ---

// InstrumentedChannel wraps AEAD seal and open calls with metrics and spans.
type InstrumentedChannel struct {
	collector *Collector
	tracer    Tracer
	logger    *Logger
}

// NewInstrumentedChannel creates a channel wrapper. Nil arguments fall back
// to the globals.
func NewInstrumentedChannel(c *Collector, t Tracer, l *Logger) *InstrumentedChannel {
	if c == nil {
		c = Global()
	}
	if t == nil {
		t = GetTracer()
	}
	if l == nil {
		l = GetLogger()
	}
	return &InstrumentedChannel{collector: c, tracer: t, logger: l.Named("channel")}
}

// WrapSeal runs fn under a seal span and records plaintextLen on success.
func (ic *InstrumentedChannel) WrapSeal(ctx context.Context, plaintextLen int, fn func() error) error {
	_, end := ic.tracer.StartSpan(ctx, SpanSeal)
	err := fn()
	if err != nil {
		ic.collector.RecordSealError()
		ic.logger.Debug("seal failed", Fields{"error": err.Error()})
	} else {
		ic.collector.RecordSealed(plaintextLen)
	}
	end(err)
	return err
}

// WrapOpen runs fn under an open span. fn returns the plaintext length.
func (ic *InstrumentedChannel) WrapOpen(ctx context.Context, fn func() (int, error)) error {
	_, end := ic.tracer.StartSpan(ctx, SpanOpen)
	n, err := fn()
	if err != nil {
		ic.collector.RecordAuthFailure()
		ic.logger.Warn("open failed", Fields{"error": err.Error()})
	} else {
		ic.collector.RecordOpened(n)
	}
	end(err)
	return err
}
