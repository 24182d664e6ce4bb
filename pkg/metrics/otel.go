package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultInstrumentation = "hybrid-qkd"

// OTelTracer sends spans to an OpenTelemetry provider. Without a provider
// registered through otel.SetTracerProvider the spans are dropped.
type OTelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer uses the global provider.
func NewOTelTracer(name string) *OTelTracer {
	return NewOTelTracerFromProvider(otel.GetTracerProvider(), name)
}

// NewOTelTracerFromProvider uses tp.
func NewOTelTracerFromProvider(tp trace.TracerProvider, name string) *OTelTracer {
	if name == "" {
		name = defaultInstrumentation
	}
	return &OTelTracer{tracer: tp.Tracer(name)}
}

// StartSpan starts an internal span. Handshake spans carry no remote peer.
func (t *OTelTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	cfg := newSpanConfig(opts)

	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(otelAttributes(cfg.attributes)...),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

func annotateOTel(ctx context.Context, attrs map[string]any) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(otelAttributes(attrs)...)
}

func otelAttributes(attrs map[string]any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		var kv attribute.KeyValue
		switch val := v.(type) {
		case string:
			kv = attribute.String(k, val)
		case bool:
			kv = attribute.Bool(k, val)
		case int:
			kv = attribute.Int(k, val)
		case int64:
			kv = attribute.Int64(k, val)
		case uint64:
			kv = attribute.Int64(k, int64(val))
		case float64:
			kv = attribute.Float64(k, val)
		case []string:
			kv = attribute.StringSlice(k, val)
		case fmt.Stringer:
			kv = attribute.Stringer(k, val)
		default:
			kv = attribute.String(k, fmt.Sprint(val))
		}
		out = append(out, kv)
	}
	return out
}
