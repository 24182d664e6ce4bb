package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
)

// PrometheusExporter exports metrics in Prometheus text format.
type PrometheusExporter struct {
	collector *Collector
	namespace string
}

// NewPrometheusExporter creates a new Prometheus exporter for the given collector.
// The namespace is prepended to all metric names (e.g., "hybrid_qkd").
func NewPrometheusExporter(c *Collector, namespace string) *PrometheusExporter {
	return &PrometheusExporter{
		collector: c,
		namespace: namespace,
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (e *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		e.WriteMetrics(w)
	})
}

// WriteMetrics writes all metrics in Prometheus text format to the writer.
func (e *PrometheusExporter) WriteMetrics(w io.Writer) {
	snap := e.collector.Snapshot()
	labels := e.formatLabels(snap.Labels)

	counters := []struct {
		name, help string
		value      uint64
	}{
		{"handshakes_started_total", "Total handshakes attempted", snap.HandshakesStarted},
		{"handshakes_completed_total", "Total handshakes that produced session keys", snap.HandshakesCompleted},
		{"handshakes_failed_total", "Total handshakes that aborted", snap.HandshakesFailed},
		{"qkd_runs_total", "Total BB84 runs", snap.QKDRuns},
		{"qkd_residual_error_runs_total", "BB84 runs whose reconciled sequences still differed", snap.ResidualErrorRuns},
		{"insecure_sessions_total", "Sessions keyed with the simulated KEM", snap.InsecureSessions},
		{"kem_only_fallbacks_total", "Sessions that fell back to the KEM secret alone", snap.KEMOnlyFallbacks},
		{"kem_failures_total", "Total KEM operation failures", snap.KEMFailures},
		{"signature_failures_total", "Transcript signatures that failed verification", snap.SignatureFailures},
		{"bytes_sealed_total", "Total plaintext bytes sealed", snap.BytesSealed},
		{"bytes_opened_total", "Total plaintext bytes opened", snap.BytesOpened},
		{"seal_errors_total", "Total encryption errors", snap.SealErrors},
		{"auth_failures_total", "Total AEAD authentication failures", snap.AuthFailures},
	}
	for _, c := range counters {
		e.writeHelp(w, c.name, c.help)
		e.writeType(w, c.name, "counter")
		e.writeMetric(w, c.name, labels, float64(c.value))
	}

	// Aborts carry an extra reason label.
	e.writeHelp(w, "qkd_aborts_total", "BB84 runs aborted, by reason")
	e.writeType(w, "qkd_aborts_total", "counter")
	for _, r := range []struct {
		reason string
		value  uint64
	}{
		{"NoSiftedBits", snap.QKDNoSiftedBits},
		{"QberExceeded", snap.QKDQBERExceeded},
	} {
		e.writeMetric(w, "qkd_aborts_total", joinLabels(labels, `reason="`+r.reason+`"`), float64(r.value))
	}

	e.writeHelp(w, "uptime_seconds", "Time since the collector was created")
	e.writeType(w, "uptime_seconds", "gauge")
	e.writeMetric(w, "uptime_seconds", labels, snap.Uptime.Seconds())

	e.writeHistogram(w, "handshake_duration_milliseconds", "Handshake duration in milliseconds", labels, snap.HandshakeLatency)
	e.writeHistogram(w, "qkd_sifted_bits", "Sifted key length in bits", labels, snap.SiftedLength)
	e.writeHistogram(w, "qkd_qber", "Estimated quantum bit error rate", labels, snap.QBER)
	e.writeHistogram(w, "qkd_leakage_bits", "Parity bits disclosed during reconciliation", labels, snap.Leakage)
}

func joinLabels(a, b string) string {
	if a == "" {
		return b
	}
	return a + "," + b
}

// writeHelp writes a HELP line.
func (e *PrometheusExporter) writeHelp(w io.Writer, name, help string) {
	fmt.Fprintf(w, "# HELP %s_%s %s\n", e.namespace, name, help)
}

// writeType writes a TYPE line.
func (e *PrometheusExporter) writeType(w io.Writer, name, typ string) {
	fmt.Fprintf(w, "# TYPE %s_%s %s\n", e.namespace, name, typ)
}

// writeMetric writes a single metric line.
func (e *PrometheusExporter) writeMetric(w io.Writer, name, labels string, value float64) {
	if labels != "" {
		fmt.Fprintf(w, "%s_%s{%s} %g\n", e.namespace, name, labels, value)
	} else {
		fmt.Fprintf(w, "%s_%s %g\n", e.namespace, name, value)
	}
}

// writeHistogram writes a histogram in Prometheus format.
func (e *PrometheusExporter) writeHistogram(w io.Writer, name, help, labels string, h HistogramSummary) {
	e.writeHelp(w, name, help)
	e.writeType(w, name, "histogram")

	fullName := e.namespace + "_" + name

	// Write bucket counts
	for _, b := range h.Buckets {
		le := fmt.Sprintf("%g", b.UpperBound)
		if math.IsInf(b.UpperBound, 1) {
			le = "+Inf"
		}
		if labels != "" {
			fmt.Fprintf(w, "%s_bucket{%s,le=\"%s\"} %d\n", fullName, labels, le, b.Count)
		} else {
			fmt.Fprintf(w, "%s_bucket{le=\"%s\"} %d\n", fullName, le, b.Count)
		}
	}

	// Write sum and count
	if labels != "" {
		fmt.Fprintf(w, "%s_sum{%s} %g\n", fullName, labels, h.Sum)
		fmt.Fprintf(w, "%s_count{%s} %d\n", fullName, labels, h.Count)
	} else {
		fmt.Fprintf(w, "%s_sum %g\n", fullName, h.Sum)
		fmt.Fprintf(w, "%s_count %d\n", fullName, h.Count)
	}
}

// formatLabels converts Labels to Prometheus label format.
func (e *PrometheusExporter) formatLabels(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}

	// Sort keys for consistent output
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		// Escape label values
		v := escapePromValue(labels[k])
		parts = append(parts, fmt.Sprintf("%s=\"%s\"", k, v))
	}

	return strings.Join(parts, ",")
}

// escapePromValue escapes a string for use as a Prometheus label value.
func escapePromValue(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
