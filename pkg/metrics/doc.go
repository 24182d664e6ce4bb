// Package metrics provides observability primitives for the hybrid QKD
// handshake.
//
// # Overview
//
// The package offers:
//   - Metrics collection (counters and histograms)
//   - Prometheus-compatible text export
//   - Tracing through a small Tracer interface with an OpenTelemetry adapter
//   - Structured logging with levels
//
// # Metrics Collection
//
// The Collector aggregates metrics from handshakes and BB84 runs:
//
//	collector := metrics.NewCollector(metrics.Labels{"instance": "node-1"})
//
//	collector.HandshakeStarted()
//	collector.RecordQKDRun(siftLen, qber, leakageBits, residualErrors)
//	collector.RecordQBERExceeded(qber)
//	collector.RecordKEMOnlyFallback()
//	collector.HandshakeCompleted()
//
//	snap := collector.Snapshot()
//
// Handshake code normally does not call the collector directly. It receives a
// HandshakeObserver, which records counters, opens spans per orchestrator
// state and logs with the session id attached:
//
//	obs := metrics.NewHandshakeObserver(metrics.HandshakeObserverConfig{
//		SessionID: id,
//	})
//
// # Prometheus Export
//
//	exporter := metrics.NewPrometheusExporter(collector, "hybrid_qkd")
//	http.Handle("/metrics", exporter.Handler())
//
// # Tracing
//
//	metrics.SetTracer(metrics.NewOTelTracer("hybrid-qkd"))
//
//	ctx, end := metrics.StartSpan(ctx, metrics.SpanRunQKD)
//	out, err := bb84.Run(ctx, rng, cfg)
//	metrics.Annotate(ctx, metrics.SpanAttributes{SiftLen: out.Metrics.SiftLen}.ToMap())
//	end(err)
//
// # Structured Logging
//
//	logger := metrics.NewLogger(
//		metrics.WithLevel(metrics.LevelInfo),
//		metrics.WithFormat(metrics.FormatJSON),
//		metrics.WithFields(metrics.Fields{"service": "hybrid-qkd"}),
//	)
//
//	logger.Named("bb84").Debug("stage", metrics.Fields{"stage": "SIFT"})
package metrics
