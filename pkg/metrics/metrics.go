package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates metrics from handshakes and BB84 runs.
type Collector struct {
	// Handshake metrics
	handshakesStarted   atomic.Uint64
	handshakesCompleted atomic.Uint64
	handshakesFailed    atomic.Uint64
	handshakeLatency    *Histogram

	// QKD metrics
	qkdRuns           atomic.Uint64
	qkdNoSiftedBits   atomic.Uint64
	qkdQBERExceeded   atomic.Uint64
	siftedLength      *Histogram
	qber              *Histogram
	leakage           *Histogram
	residualErrorRuns atomic.Uint64

	// Security metrics
	insecureSessions  atomic.Uint64
	kemOnlyFallbacks  atomic.Uint64
	kemFailures       atomic.Uint64
	signatureFailures atomic.Uint64

	// Channel (AEAD) metrics
	bytesSealed  atomic.Uint64
	bytesOpened  atomic.Uint64
	sealErrors   atomic.Uint64
	authFailures atomic.Uint64

	// Creation time for uptime tracking
	createdAt time.Time

	// Labels for this collector instance
	labels Labels
}

// Labels represents key-value pairs for metric labeling.
type Labels map[string]string

// NewCollector creates a new metrics collector.
func NewCollector(labels Labels) *Collector {
	if labels == nil {
		labels = make(Labels)
	}

	return &Collector{
		handshakeLatency: NewHistogram(HandshakeLatencyBuckets),
		siftedLength:     NewHistogram(SiftedLengthBuckets),
		qber:             NewHistogram(QBERBuckets),
		leakage:          NewHistogram(LeakageBuckets),
		createdAt:        time.Now(),
		labels:           labels,
	}
}

// Default bucket configurations for histograms.
var (
	// HandshakeLatencyBuckets for handshake duration (milliseconds).
	HandshakeLatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}

	// SiftedLengthBuckets for the sifted key length (bits).
	SiftedLengthBuckets = []float64{0, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

	// QBERBuckets for the estimated quantum bit error rate.
	QBERBuckets = []float64{0, 0.01, 0.02, 0.05, 0.08, 0.1, 0.15, 0.25, 0.5}

	// LeakageBuckets for reconciliation leakage (bits).
	LeakageBuckets = []float64{4, 16, 64, 128, 256, 512, 1024, 4096}
)

// --- Handshake Metrics ---

// HandshakeStarted records a handshake attempt.
func (c *Collector) HandshakeStarted() {
	c.handshakesStarted.Add(1)
}

// HandshakeCompleted records a handshake that produced session keys.
func (c *Collector) HandshakeCompleted() {
	c.handshakesCompleted.Add(1)
}

// HandshakeFailed records a handshake that aborted.
func (c *Collector) HandshakeFailed() {
	c.handshakesFailed.Add(1)
}

// RecordHandshakeLatency records a handshake duration.
func (c *Collector) RecordHandshakeLatency(d time.Duration) {
	c.handshakeLatency.Observe(float64(d.Microseconds()) / 1000)
}

// --- QKD Metrics ---

// RecordQKDRun records the metrics of a BB84 run that reached sampling.
func (c *Collector) RecordQKDRun(siftLen int, qber float64, leakageBits, residualErrors int) {
	c.qkdRuns.Add(1)
	c.siftedLength.Observe(float64(siftLen))
	c.qber.Observe(qber)
	c.leakage.Observe(float64(leakageBits))
	if residualErrors > 0 {
		c.residualErrorRuns.Add(1)
	}
}

// RecordNoSiftedBits records a run aborted because sifting kept nothing.
func (c *Collector) RecordNoSiftedBits() {
	c.qkdRuns.Add(1)
	c.qkdNoSiftedBits.Add(1)
	c.siftedLength.Observe(0)
}

// RecordQBERExceeded records a run aborted by the QBER threshold.
func (c *Collector) RecordQBERExceeded(qber float64) {
	c.qkdQBERExceeded.Add(1)
	c.qber.Observe(qber)
}

// --- Security Metrics ---

// RecordInsecureSession records a session keyed with a simulated KEM.
func (c *Collector) RecordInsecureSession() {
	c.insecureSessions.Add(1)
}

// RecordKEMOnlyFallback records a session that dropped the QKD secret.
func (c *Collector) RecordKEMOnlyFallback() {
	c.kemOnlyFallbacks.Add(1)
}

// RecordKEMFailure records a failed KEM operation.
func (c *Collector) RecordKEMFailure() {
	c.kemFailures.Add(1)
}

// RecordSignatureFailure records a transcript signature that did not verify.
func (c *Collector) RecordSignatureFailure() {
	c.signatureFailures.Add(1)
}

// --- Channel Metrics ---

// RecordSealed adds to the sealed plaintext byte counter.
func (c *Collector) RecordSealed(n int) {
	c.bytesSealed.Add(uint64(n))
}

// RecordOpened adds to the opened plaintext byte counter.
func (c *Collector) RecordOpened(n int) {
	c.bytesOpened.Add(uint64(n))
}

// RecordSealError increments the encryption error counter.
func (c *Collector) RecordSealError() {
	c.sealErrors.Add(1)
}

// RecordAuthFailure increments the AEAD authentication failure counter.
func (c *Collector) RecordAuthFailure() {
	c.authFailures.Add(1)
}

// --- Snapshot ---

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Timestamp time.Time
	Uptime    time.Duration

	HandshakesStarted   uint64
	HandshakesCompleted uint64
	HandshakesFailed    uint64

	QKDRuns           uint64
	QKDNoSiftedBits   uint64
	QKDQBERExceeded   uint64
	ResidualErrorRuns uint64

	InsecureSessions  uint64
	KEMOnlyFallbacks  uint64
	KEMFailures       uint64
	SignatureFailures uint64

	BytesSealed  uint64
	BytesOpened  uint64
	SealErrors   uint64
	AuthFailures uint64

	HandshakeLatency HistogramSummary
	SiftedLength     HistogramSummary
	QBER             HistogramSummary
	Leakage          HistogramSummary

	Labels Labels
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:           time.Now(),
		Uptime:              time.Since(c.createdAt),
		HandshakesStarted:   c.handshakesStarted.Load(),
		HandshakesCompleted: c.handshakesCompleted.Load(),
		HandshakesFailed:    c.handshakesFailed.Load(),
		QKDRuns:             c.qkdRuns.Load(),
		QKDNoSiftedBits:     c.qkdNoSiftedBits.Load(),
		QKDQBERExceeded:     c.qkdQBERExceeded.Load(),
		ResidualErrorRuns:   c.residualErrorRuns.Load(),
		InsecureSessions:    c.insecureSessions.Load(),
		KEMOnlyFallbacks:    c.kemOnlyFallbacks.Load(),
		KEMFailures:         c.kemFailures.Load(),
		SignatureFailures:   c.signatureFailures.Load(),
		BytesSealed:         c.bytesSealed.Load(),
		BytesOpened:         c.bytesOpened.Load(),
		SealErrors:          c.sealErrors.Load(),
		AuthFailures:        c.authFailures.Load(),
		HandshakeLatency:    c.handshakeLatency.Summary(),
		SiftedLength:        c.siftedLength.Summary(),
		QBER:                c.qber.Summary(),
		Leakage:             c.leakage.Summary(),
		Labels:              c.labels,
	}
}

// Reset clears all metrics (useful for testing).
func (c *Collector) Reset() {
	for _, v := range []*atomic.Uint64{
		&c.handshakesStarted, &c.handshakesCompleted, &c.handshakesFailed,
		&c.qkdRuns, &c.qkdNoSiftedBits, &c.qkdQBERExceeded, &c.residualErrorRuns,
		&c.insecureSessions, &c.kemOnlyFallbacks, &c.kemFailures, &c.signatureFailures,
		&c.bytesSealed, &c.bytesOpened, &c.sealErrors, &c.authFailures,
	} {
		v.Store(0)
	}
	c.handshakeLatency.Reset()
	c.siftedLength.Reset()
	c.qber.Reset()
	c.leakage.Reset()
	c.createdAt = time.Now()
}

// --- Global Collector ---

var (
	globalCollector   *Collector
	globalCollectorMu sync.RWMutex
)

// Global returns the global metrics collector, creating it on first use.
func Global() *Collector {
	globalCollectorMu.RLock()
	c := globalCollector
	globalCollectorMu.RUnlock()
	if c != nil {
		return c
	}

	globalCollectorMu.Lock()
	defer globalCollectorMu.Unlock()
	if globalCollector == nil {
		globalCollector = NewCollector(Labels{"instance": "default"})
	}
	return globalCollector
}

// SetGlobal sets the global metrics collector.
// Should be called during initialization before any metrics are recorded.
func SetGlobal(c *Collector) {
	globalCollectorMu.Lock()
	defer globalCollectorMu.Unlock()
	globalCollector = c
}
