package metrics

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestOTelTracerSatisfiesTracer(t *testing.T) {
	var _ Tracer = NewOTelTracer("")
	var _ Tracer = NewOTelTracerFromProvider(noop.NewTracerProvider(), "test")
}

func TestOTelTracerStartSpan(t *testing.T) {
	tracer := NewOTelTracerFromProvider(noop.NewTracerProvider(), "test")

	ctx, end := tracer.StartSpan(context.Background(), SpanRunQKD,
		WithAttributes(SpanAttributes{KEM: "CH-KEM", SiftLen: 10, QBER: 0.1}.ToMap()),
	)
	if trace.SpanFromContext(ctx) == nil {
		t.Error("expected a span in the returned context")
	}

	// noop spans do not record; Annotate must not panic on them.
	Annotate(ctx, map[string]any{"qkd.qber": 0.2})

	end(nil)
	end(errors.New("double end must not panic"))
}

type stateName string

func (s stateName) String() string { return string(s) }

func TestOTelAttributes(t *testing.T) {
	attrs := otelAttributes(map[string]any{
		"s":     "x",
		"b":     true,
		"i":     3,
		"f":     0.5,
		"u":     uint64(7),
		"ss":    []string{"a", "b"},
		"state": stateName("RUN_QKD"),
		"any":   struct{}{},
	})

	got := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, kv := range attrs {
		got[kv.Key] = kv.Value
	}

	if got["s"].AsString() != "x" {
		t.Error("expected string attribute")
	}
	if !got["b"].AsBool() {
		t.Error("expected bool attribute")
	}
	if got["i"].AsInt64() != 3 || got["u"].AsInt64() != 7 {
		t.Error("expected integer attributes")
	}
	if got["f"].AsFloat64() != 0.5 {
		t.Error("expected float attribute")
	}
	if len(got["ss"].AsStringSlice()) != 2 {
		t.Error("expected string slice attribute")
	}
	if got["state"].AsString() != "RUN_QKD" {
		t.Errorf("expected Stringer attribute, got %q", got["state"].AsString())
	}
	if got["any"].AsString() != "{}" {
		t.Errorf("expected fallback string attribute, got %q", got["any"].AsString())
	}
}
