package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNoOpTracer(t *testing.T) {
	ctx := context.Background()
	got, end := NoOpTracer{}.StartSpan(ctx, SpanHandshake)
	if got != ctx {
		t.Error("NoOpTracer should return the context unchanged")
	}
	end(nil)
	end(errors.New("aborted"))
}

func TestSimpleTracerRecordsHandshake(t *testing.T) {
	tracer := NewSimpleTracer()

	ctx, endHandshake := tracer.StartSpan(context.Background(), SpanHandshake,
		WithAttributes(SpanAttributes{KEM: "ML-KEM-768"}.ToMap()))
	_, endKeygen := tracer.StartSpan(ctx, SpanKEMKeygen)
	time.Sleep(5 * time.Millisecond)
	endKeygen(nil)
	qkdErr := errors.New("qber too high")
	_, endQKD := tracer.StartSpan(ctx, SpanCheckQKD)
	endQKD(qkdErr)
	endHandshake(qkdErr)

	spans := tracer.Spans()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}

	keygen, check, root := spans[0], spans[1], spans[2]
	if root.Name != SpanHandshake || root.ParentID != "" {
		t.Errorf("unexpected root span %+v", root)
	}
	if root.Attributes["kem.name"] != "ML-KEM-768" {
		t.Error("expected kem.name attribute on the handshake span")
	}
	for _, child := range []RecordedSpan{keygen, check} {
		if child.ParentID != root.SpanID || child.TraceID != root.TraceID {
			t.Errorf("%s is not a child of the handshake span", child.Name)
		}
	}
	if keygen.Duration < 5*time.Millisecond {
		t.Errorf("expected keygen duration >= 5ms, got %v", keygen.Duration)
	}
	if !errors.Is(check.Error, qkdErr) || keygen.Error != nil {
		t.Error("span errors not recorded")
	}
}

func TestSimpleTracerEndIsIdempotent(t *testing.T) {
	tracer := NewSimpleTracer()
	_, end := tracer.StartSpan(context.Background(), SpanSeal)
	end(nil)
	end(errors.New("late"))

	spans := tracer.Spans()
	if len(spans) != 1 || spans[0].Error != nil {
		t.Fatalf("expected one successful span, got %+v", spans)
	}
}

func TestAnnotate(t *testing.T) {
	tracer := NewSimpleTracer()
	ctx, end := tracer.StartSpan(context.Background(), SpanRunQKD,
		WithAttributes(map[string]any{"qkd.n": 200}))
	Annotate(ctx, SpanAttributes{SiftLen: 12, QBER: 0.05}.ToMap())
	Annotate(ctx, nil)
	end(nil)

	attrs := tracer.Spans()[0].Attributes
	if attrs["qkd.n"] != 200 || attrs["qkd.sift_len"] != 12 || attrs["qkd.qber"] != 0.05 {
		t.Errorf("unexpected attributes %v", attrs)
	}

	// No span in the context.
	Annotate(context.Background(), map[string]any{"qkd.qber": 0.5})
}

func TestWithAttributesMerges(t *testing.T) {
	tracer := NewSimpleTracer()
	_, end := tracer.StartSpan(context.Background(), SpanSweepPoint,
		WithAttributes(map[string]any{"qkd.distance_km": 1.0, "runs": 3}),
		WithAttributes(map[string]any{"qkd.distance_km": 5.0}),
	)
	end(nil)

	attrs := tracer.Spans()[0].Attributes
	if attrs["qkd.distance_km"] != 5.0 || attrs["runs"] != 3 {
		t.Errorf("unexpected attributes %v", attrs)
	}
}

func TestSpansWithPrefixAndReset(t *testing.T) {
	tracer := NewSimpleTracer()
	ctx, endRoot := tracer.StartSpan(context.Background(), SpanHandshake)
	for _, name := range []string{SpanKEMKeygen, SpanKEMEncap, SpanSeal} {
		_, end := tracer.StartSpan(ctx, name)
		end(nil)
	}
	endRoot(nil)

	if got := len(tracer.SpansWithPrefix(SpanHandshake + ".")); got != 2 {
		t.Errorf("expected 2 state spans, got %d", got)
	}
	if got := len(tracer.SpansWithPrefix("hybrid.")); got != 4 {
		t.Errorf("expected 4 spans, got %d", got)
	}

	tracer.Reset()
	if len(tracer.Spans()) != 0 {
		t.Error("expected no spans after reset")
	}
}

func TestGlobalTracer(t *testing.T) {
	if _, ok := GetTracer().(NoOpTracer); !ok {
		t.Error("default tracer should be NoOpTracer")
	}

	simple := NewSimpleTracer()
	SetTracer(simple)
	defer SetTracer(NoOpTracer{})

	_, end := StartSpan(context.Background(), SpanSweep)
	end(nil)
	if len(simple.Spans()) != 1 {
		t.Error("expected span from the global StartSpan")
	}
}

func TestSpanAttributes(t *testing.T) {
	m := SpanAttributes{
		SessionID:  "sess-123",
		KEM:        "SIMULATED",
		DistanceKM: 5,
		SiftLen:    42,
		QBER:       0.05,
		Insecure:   true,
	}.ToMap()

	want := map[string]any{
		"session.id":      "sess-123",
		"kem.name":        "SIMULATED",
		"qkd.distance_km": 5.0,
		"qkd.sift_len":    42,
		"qkd.qber":        0.05,
		"kem.insecure":    true,
	}
	if len(m) != len(want) {
		t.Fatalf("expected %d attributes, got %v", len(want), m)
	}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("%s = %v, want %v", k, m[k], v)
		}
	}

	if len(SpanAttributes{}.ToMap()) != 0 {
		t.Error("expected no attributes for the zero value")
	}
}

func TestSpanNamesUnique(t *testing.T) {
	names := []string{
		SpanHandshake, SpanKEMKeygen, SpanKEMEncap, SpanKEMDecapVerify,
		SpanRunQKD, SpanCheckQKD, SpanCombine,
		SpanSweep, SpanSweepPoint, SpanSeal, SpanOpen,
	}
	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] {
			t.Errorf("duplicate span name %q", name)
		}
		seen[name] = true
	}
}

func TestSimpleTracerConcurrentSessions(t *testing.T) {
	tracer := NewSimpleTracer()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				ctx, end := tracer.StartSpan(context.Background(), SpanSweepPoint)
				Annotate(ctx, map[string]any{"run": j})
				end(nil)
			}
		}()
	}
	wg.Wait()

	spans := tracer.Spans()
	if len(spans) != 400 {
		t.Fatalf("expected 400 spans, got %d", len(spans))
	}
	traces := make(map[string]bool)
	for _, s := range spans {
		traces[s.TraceID] = true
	}
	if len(traces) != 400 {
		t.Errorf("expected one trace per root span, got %d", len(traces))
	}
}
