package metrics

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracer opens spans around handshake states, BB84 runs and channel
// operations. NoOpTracer, SimpleTracer and OTelTracer implement it.
type Tracer interface {
	// StartSpan returns a context carrying the new span and a function that
	// ends it. Spans started from that context become its children.
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder)
}

// SpanEnder ends a span. A non-nil error marks the span as failed.
type SpanEnder func(err error)

// SpanOption configures a span at start.
type SpanOption func(*spanConfig)

type spanConfig struct {
	attributes map[string]any
}

func newSpanConfig(opts []SpanOption) *spanConfig {
	cfg := &spanConfig{attributes: make(map[string]any)}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithAttributes adds attributes to the span. Later options win on
// duplicate keys.
func WithAttributes(attrs map[string]any) SpanOption {
	return func(c *spanConfig) {
		for k, v := range attrs {
			c.attributes[k] = v
		}
	}
}

// Annotate attaches attributes to the span carried by ctx after it has
// started, e.g. the QBER once a run has sampled it. It is a no-op when ctx
// carries no recording span.
func Annotate(ctx context.Context, attrs map[string]any) {
	if len(attrs) == 0 {
		return
	}
	if s := liveSpanFromContext(ctx); s != nil {
		s.mu.Lock()
		for k, v := range attrs {
			s.span.Attributes[k] = v
		}
		s.mu.Unlock()
		return
	}
	annotateOTel(ctx, attrs)
}

// NoOpTracer drops every span.
type NoOpTracer struct{}

// StartSpan returns ctx unchanged.
func (NoOpTracer) StartSpan(ctx context.Context, _ string, _ ...SpanOption) (context.Context, SpanEnder) {
	return ctx, func(error) {}
}

// SimpleTracer keeps finished spans in memory, in the order they ended.
// The CLI prints them in --tracing=simple mode and tests assert on them.
type SimpleTracer struct {
	mu    sync.Mutex
	spans []RecordedSpan
}

// RecordedSpan is a finished span.
type RecordedSpan struct {
	Name       string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Attributes map[string]any
	Error      error
	TraceID    string
	SpanID     string
	ParentID   string
}

// liveSpan is a span that has started but not ended.
type liveSpan struct {
	mu   sync.Mutex
	span RecordedSpan
}

// NewSimpleTracer creates an empty SimpleTracer.
func NewSimpleTracer() *SimpleTracer {
	return &SimpleTracer{}
}

// StartSpan starts a span, inheriting the trace of any span in ctx.
func (t *SimpleTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	cfg := newSpanConfig(opts)

	live := &liveSpan{span: RecordedSpan{
		Name:       name,
		StartTime:  time.Now(),
		Attributes: cfg.attributes,
		SpanID:     uuid.NewString(),
	}}
	if parent := liveSpanFromContext(ctx); parent != nil {
		live.span.ParentID = parent.span.SpanID
		live.span.TraceID = parent.span.TraceID
	} else {
		live.span.TraceID = uuid.NewString()
	}

	var once sync.Once
	return context.WithValue(ctx, spanContextKey{}, live), func(err error) {
		once.Do(func() {
			live.mu.Lock()
			live.span.EndTime = time.Now()
			live.span.Duration = live.span.EndTime.Sub(live.span.StartTime)
			live.span.Error = err
			done := live.span
			live.mu.Unlock()

			t.mu.Lock()
			t.spans = append(t.spans, done)
			t.mu.Unlock()
		})
	}
}

// Spans returns a copy of the finished spans.
func (t *SimpleTracer) Spans() []RecordedSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]RecordedSpan(nil), t.spans...)
}

// SpansWithPrefix returns the finished spans whose name starts with prefix,
// e.g. SpanHandshake+"." for the per-state spans.
func (t *SimpleTracer) SpansWithPrefix(prefix string) []RecordedSpan {
	var out []RecordedSpan
	for _, s := range t.Spans() {
		if strings.HasPrefix(s.Name, prefix) {
			out = append(out, s)
		}
	}
	return out
}

// Reset drops all finished spans.
func (t *SimpleTracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = nil
}

type spanContextKey struct{}

func liveSpanFromContext(ctx context.Context) *liveSpan {
	s, _ := ctx.Value(spanContextKey{}).(*liveSpan)
	return s
}

var (
	globalTracer   Tracer = NoOpTracer{}
	globalTracerMu sync.RWMutex
)

// SetTracer replaces the global tracer.
func SetTracer(t Tracer) {
	globalTracerMu.Lock()
	defer globalTracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer.
func GetTracer() Tracer {
	globalTracerMu.RLock()
	defer globalTracerMu.RUnlock()
	return globalTracer
}

// StartSpan starts a span on the global tracer.
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	return GetTracer().StartSpan(ctx, name, opts...)
}

// Span names. Each handshake state has a child span of SpanHandshake named
// by StateSpanName.
const (
	SpanHandshake      = "hybrid.handshake"
	SpanKEMKeygen      = "hybrid.handshake.kem_keygen"
	SpanKEMEncap       = "hybrid.handshake.kem_encap"
	SpanKEMDecapVerify = "hybrid.handshake.kem_decap_verify"
	SpanRunQKD         = "hybrid.handshake.run_qkd"
	SpanCheckQKD       = "hybrid.handshake.check_qkd"
	SpanCombine        = "hybrid.handshake.combine"
	SpanSweep          = "hybrid.sweep"
	SpanSweepPoint     = "hybrid.sweep.point"
	SpanSeal           = "hybrid.channel.seal"
	SpanOpen           = "hybrid.channel.open"
)

// SpanAttributes are the attributes shared by handshake and sweep spans.
// Zero fields are omitted. Key material never goes into attributes.
type SpanAttributes struct {
	SessionID  string
	KEM        string
	DistanceKM float64
	SiftLen    int
	QBER       float64
	Insecure   bool
}

// ToMap converts the attributes to the generic form tracers accept.
func (a SpanAttributes) ToMap() map[string]any {
	m := make(map[string]any)
	if a.SessionID != "" {
		m["session.id"] = a.SessionID
	}
	if a.KEM != "" {
		m["kem.name"] = a.KEM
	}
	if a.DistanceKM > 0 {
		m["qkd.distance_km"] = a.DistanceKM
	}
	if a.SiftLen > 0 {
		m["qkd.sift_len"] = a.SiftLen
		m["qkd.qber"] = a.QBER
	}
	if a.Insecure {
		m["kem.insecure"] = true
	}
	return m
}
