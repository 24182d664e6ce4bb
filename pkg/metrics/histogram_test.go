package metrics

import (
	"math"
	"sync"
	"testing"
)

func TestHistogramSiftedLengths(t *testing.T) {
	h := NewHistogram(SiftedLengthBuckets)
	for _, v := range []float64{0, 8, 40, 40, 600} {
		h.Observe(v)
	}

	s := h.Summary()
	if s.Count != 5 || h.Count() != 5 {
		t.Fatalf("expected 5 observations, got %d", s.Count)
	}
	if s.Sum != 688 || s.Mean != 137.6 || h.Mean() != 137.6 {
		t.Errorf("unexpected sum %g / mean %g", s.Sum, s.Mean)
	}
	if s.Min != 0 || s.Max != 600 {
		t.Errorf("unexpected range [%g, %g]", s.Min, s.Max)
	}

	// Cumulative counts per upper bound, bounds inclusive.
	want := map[float64]uint64{0: 1, 10: 2, 25: 2, 50: 4, 500: 4, 1000: 5, 5000: 5}
	for _, b := range s.Buckets {
		if n, ok := want[b.UpperBound]; ok && b.Count != n {
			t.Errorf("bucket le=%g: expected %d, got %d", b.UpperBound, n, b.Count)
		}
	}
	if last := s.Buckets[len(s.Buckets)-1]; !math.IsInf(last.UpperBound, 1) || last.Count != 5 {
		t.Errorf("unexpected +Inf bucket %+v", last)
	}
}

func TestHistogramQBERBoundaries(t *testing.T) {
	h := NewHistogram(QBERBuckets)
	h.Observe(0)
	h.Observe(0.1)  // exactly the default policy threshold
	h.Observe(0.11) // just above it
	h.Observe(0.75) // overflow

	want := map[float64]uint64{0: 1, 0.1: 2, 0.15: 3, 0.5: 3}
	for _, b := range h.Summary().Buckets {
		if n, ok := want[b.UpperBound]; ok && b.Count != n {
			t.Errorf("bucket le=%g: expected %d, got %d", b.UpperBound, n, b.Count)
		}
	}
}

func TestHistogramEmptyAndReset(t *testing.T) {
	h := NewHistogram(LeakageBuckets)
	if h.Count() != 0 || h.Mean() != 0 {
		t.Error("expected an empty histogram")
	}
	if s := h.Summary(); s.Count != 0 || len(s.Buckets) != 0 || len(s.Percentiles) != 0 {
		t.Errorf("unexpected empty summary %+v", s)
	}

	h.Observe(16)
	h.Observe(64)
	h.Reset()
	if h.Count() != 0 {
		t.Errorf("expected count 0 after reset, got %d", h.Count())
	}

	h.Observe(4)
	if s := h.Summary(); s.Min != 4 || s.Max != 4 {
		t.Errorf("reset did not clear min/max: [%g, %g]", s.Min, s.Max)
	}
}

func TestHistogramLatencyPercentiles(t *testing.T) {
	h := NewHistogram(HandshakeLatencyBuckets)
	for i := 1; i <= 1000; i++ {
		h.Observe(float64(i))
	}

	p := h.Summary().Percentiles
	for _, tt := range []struct{ q, want float64 }{{0.5, 500}, {0.9, 900}, {0.99, 990}} {
		if math.Abs(p[tt.q]-tt.want) > 100 {
			t.Errorf("p%g = %g, want about %g", tt.q*100, p[tt.q], tt.want)
		}
	}
}

func TestHistogramPercentilesWithinObservedRange(t *testing.T) {
	h := NewHistogram(SiftedLengthBuckets)
	for _, v := range []float64{120, 130, 140, 150} {
		h.Observe(v)
	}
	for q, v := range h.Summary().Percentiles {
		if v < 120 || v > 150 {
			t.Errorf("p%g = %g outside observed range [120, 150]", q*100, v)
		}
	}
}

func TestHistogramSortsBounds(t *testing.T) {
	h := NewHistogram([]float64{0.1, 0, 0.05})
	h.Observe(0.02)

	b := h.Summary().Buckets
	if b[0].UpperBound != 0 || b[1].UpperBound != 0.05 || b[2].UpperBound != 0.1 {
		t.Errorf("bounds not sorted: %+v", b)
	}
	if b[0].Count != 0 || b[1].Count != 1 {
		t.Errorf("0.02 landed in the wrong bucket: %+v", b)
	}
}

func TestHistogramIgnoresNaN(t *testing.T) {
	h := NewHistogram(QBERBuckets)
	h.Observe(math.NaN())
	h.Observe(0.05)
	if h.Count() != 1 || h.Mean() != 0.05 {
		t.Errorf("NaN was recorded: count %d, mean %g", h.Count(), h.Mean())
	}
}

func TestHistogramConcurrentSessions(t *testing.T) {
	h := NewHistogram(QBERBuckets)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 125; j++ {
				h.Observe(float64(j%10) / 100)
			}
		}()
	}
	wg.Wait()

	if h.Count() != 1000 {
		t.Errorf("expected 1000 observations, got %d", h.Count())
	}
}
