package metrics

import (
	"math"
	"sort"
	"sync"
)

// Histogram tracks the distribution of values across fixed buckets.
// Safe for concurrent use.
type Histogram struct {
	mu     sync.RWMutex
	bounds []float64 // inclusive upper bounds, ascending
	counts []uint64  // per bucket, last one is +Inf
	sum    float64
	count  uint64
	min    float64
	max    float64
}

// NewHistogram creates a histogram with the given bucket upper bounds.
func NewHistogram(bounds []float64) *Histogram {
	b := make([]float64, len(bounds))
	copy(b, bounds)
	sort.Float64s(b)

	return &Histogram{
		bounds: b,
		counts: make([]uint64, len(b)+1),
		min:    math.MaxFloat64,
		max:    -math.MaxFloat64,
	}
}

// Observe records a value. NaN is ignored.
func (h *Histogram) Observe(v float64) {
	if math.IsNaN(v) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.counts[sort.SearchFloat64s(h.bounds, v)]++
	h.sum += v
	h.count++
	h.min = math.Min(h.min, v)
	h.max = math.Max(h.max, v)
}

// HistogramSummary contains summarized histogram data.
type HistogramSummary struct {
	Count       uint64              `json:"count"`
	Sum         float64             `json:"sum"`
	Min         float64             `json:"min"`
	Max         float64             `json:"max"`
	Mean        float64             `json:"mean"`
	Buckets     []BucketCount       `json:"buckets"`
	Percentiles map[float64]float64 `json:"percentiles,omitempty"`
}

// BucketCount is a cumulative bucket count.
type BucketCount struct {
	UpperBound float64 `json:"le"`
	Count      uint64  `json:"count"`
}

// Summary returns a summary of the histogram.
func (h *Histogram) Summary() HistogramSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 {
		return HistogramSummary{
			Buckets:     make([]BucketCount, 0),
			Percentiles: make(map[float64]float64),
		}
	}

	buckets := make([]BucketCount, len(h.counts))
	var cumulative uint64
	for i, c := range h.counts {
		cumulative += c
		bound := math.Inf(1)
		if i < len(h.bounds) {
			bound = h.bounds[i]
		}
		buckets[i] = BucketCount{UpperBound: bound, Count: cumulative}
	}

	return HistogramSummary{
		Count:       h.count,
		Sum:         h.sum,
		Min:         h.min,
		Max:         h.max,
		Mean:        h.sum / float64(h.count),
		Buckets:     buckets,
		Percentiles: h.percentiles(0.5, 0.9, 0.95, 0.99),
	}
}

// percentiles estimates quantiles by linear interpolation inside the bucket
// that holds the rank. Estimates are clamped to the observed range.
func (h *Histogram) percentiles(ps ...float64) map[float64]float64 {
	result := make(map[float64]float64, len(ps))
	if h.count == 0 {
		return result
	}

	for _, p := range ps {
		rank := p * float64(h.count)
		var cumulative uint64

		for i, c := range h.counts {
			cumulative += c
			if float64(cumulative) < rank || c == 0 {
				continue
			}

			lower := h.min
			if i > 0 {
				lower = math.Max(h.bounds[i-1], h.min)
			}
			upper := h.max
			if i < len(h.bounds) {
				upper = math.Min(h.bounds[i], h.max)
			}

			fraction := (rank - float64(cumulative-c)) / float64(c)
			result[p] = lower + fraction*(upper-lower)
			break
		}
	}

	return result
}

// Reset clears all histogram data.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clear(h.counts)
	h.sum = 0
	h.count = 0
	h.min = math.MaxFloat64
	h.max = -math.MaxFloat64
}

// Count returns the total number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Mean returns the mean of all observations.
func (h *Histogram) Mean() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.count == 0 {
		return 0
	}
	return h.sum / float64(h.count)
}
