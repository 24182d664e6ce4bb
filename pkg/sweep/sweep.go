// Package sweep measures BB84 behavior across fibre lengths. Every
// (distance, repeat) pair is an independent session with its own RNG, so
// sessions run in parallel and a seeded sweep is reproducible regardless of
// concurrency.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
	"github.com/sara-star-quant/hybrid-qkd/pkg/bb84"
	"github.com/sara-star-quant/hybrid-qkd/pkg/crypto"
	"github.com/sara-star-quant/hybrid-qkd/pkg/metrics"
)

// DefaultDistances are the fibre lengths swept when none are given.
var DefaultDistances = []float64{1, 5, 10, 20}

// DefaultN is the photon count per session in a sweep.
const DefaultN = 800

// Config describes a sweep.
type Config struct {
	Distances []float64
	Repeats   int

	// QKD is the per-session template. Its Channel.DistanceKM is replaced
	// by each swept distance; a zero Channel selects the default link.
	QKD bb84.Config

	// Seed makes the sweep reproducible. Zero seeds every session from the
	// system CSPRNG.
	Seed uint64

	// Concurrency bounds parallel sessions. Zero selects GOMAXPROCS.
	Concurrency int

	Logger    *metrics.Logger
	Collector *metrics.Collector
	Tracer    metrics.Tracer
}

// DefaultConfig returns the standard monitor sweep.
func DefaultConfig() Config {
	qkd := bb84.DefaultConfig()
	qkd.N = DefaultN
	return Config{
		Distances: DefaultDistances,
		Repeats:   1,
		QKD:       qkd,
	}
}

// Point aggregates the sessions run at one distance.
type Point struct {
	DistanceKM float64 `json:"distance_km"`
	ProbReach  float64 `json:"prob_reach"`

	Runs         int `json:"runs"`
	NoSiftedBits int `json:"no_sifted_bits"`
	QBERExceeded int `json:"qber_exceeded"`
	Agreed       int `json:"agreed"`

	MeanSiftLen   float64 `json:"mean_sift_len"`
	StdDevSiftLen float64 `json:"stddev_sift_len"`

	// QBERRuns counts the sessions that produced a QBER estimate; the QBER
	// statistics are zero when it is zero.
	QBERRuns     int     `json:"qber_runs"`
	MeanQBER     float64 `json:"mean_qber"`
	StdDevQBER   float64 `json:"stddev_qber"`
	MeanLeakage  float64 `json:"mean_leakage_bits"`
	MeanResidual float64 `json:"mean_residual_errors"`
}

// Aborts returns the number of sessions that produced no key.
func (p Point) Aborts() int {
	return p.NoSiftedBits + p.QBERExceeded
}

type result struct {
	metrics bb84.Metrics
	reason  qerrors.DistillationReason
	agreed  bool
}

// Run executes the sweep and returns one Point per distance, in input order.
// A distillation abort is recorded in the Point; any other failure stops the
// sweep and is returned.
func Run(ctx context.Context, cfg Config) ([]Point, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger.Named("sweep")
	ctx, endSweep := cfg.Tracer.StartSpan(ctx, metrics.SpanSweep)

	results := make([][]result, len(cfg.Distances))
	for i := range results {
		results[i] = make([]result, cfg.Repeats)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	for di, d := range cfg.Distances {
		for r := 0; r < cfg.Repeats; r++ {
			idx := di*cfg.Repeats + r
			g.Go(func() error {
				res, err := runOne(gctx, cfg, d, idx)
				if err != nil {
					return fmt.Errorf("distance %g km, repeat %d: %w", d, r, err)
				}
				results[di][r] = res
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		endSweep(err)
		return nil, err
	}

	points := make([]Point, len(cfg.Distances))
	for i, d := range cfg.Distances {
		points[i] = aggregate(d, results[i])
		logger.Info("point", metrics.Fields{
			"distance_km": d,
			"runs":        points[i].Runs,
			"aborts":      points[i].Aborts(),
			"sift_len":    points[i].MeanSiftLen,
			"qber":        points[i].MeanQBER,
			"prob_reach":  points[i].ProbReach,
		})
	}
	endSweep(nil)
	return points, nil
}

func (c Config) withDefaults() (Config, error) {
	if len(c.Distances) == 0 {
		c.Distances = DefaultDistances
	}
	if c.Repeats == 0 {
		c.Repeats = 1
	}
	if c.Repeats < 0 {
		return c, fmt.Errorf("sweep: invalid repeats %d", c.Repeats)
	}
	if c.QKD.N == 0 {
		c.QKD.N = DefaultN
	}
	c.QKD.Channel = c.QKD.Channel.WithDefaults()
	for _, d := range c.Distances {
		p := c.QKD.Channel
		p.DistanceKM = d
		if err := p.Validate(); err != nil {
			return c, err
		}
	}
	if c.Concurrency <= 0 {
		c.Concurrency = runtime.GOMAXPROCS(0)
	}
	if c.Logger == nil {
		c.Logger = metrics.GetLogger()
	}
	if c.Collector == nil {
		c.Collector = metrics.Global()
	}
	if c.Tracer == nil {
		c.Tracer = metrics.GetTracer()
	}
	return c, nil
}

func runOne(ctx context.Context, cfg Config, distance float64, idx int) (result, error) {
	ctx, end := cfg.Tracer.StartSpan(ctx, metrics.SpanSweepPoint,
		metrics.WithAttributes(metrics.SpanAttributes{DistanceKM: distance}.ToMap()))

	qcfg := cfg.QKD
	qcfg.Channel.DistanceKM = distance
	if qcfg.Logger == nil {
		qcfg.Logger = cfg.Logger
	}

	rng := crypto.NewSeededRand(crypto.DeriveSeed(cfg.Seed, idx))
	if cfg.Seed == 0 {
		var err error
		if rng, err = crypto.NewSessionRand(); err != nil {
			end(err)
			return result{}, err
		}
	}

	out, err := bb84.Run(ctx, rng, qcfg)
	if out != nil {
		metrics.Annotate(ctx, map[string]any{
			"qkd.sift_len": out.Metrics.SiftLen,
			"qkd.qber":     out.Metrics.QBER,
			"sweep.run":    idx,
		})
	}
	var kdErr *qerrors.KeyDistillationError
	switch {
	case errors.As(err, &kdErr):
		metrics.Annotate(ctx, map[string]any{"qkd.abort": kdErr.Reason.String()})
		end(nil)
		switch kdErr.Reason {
		case qerrors.ReasonNoSiftedBits:
			cfg.Collector.RecordNoSiftedBits()
		default:
			cfg.Collector.RecordQBERExceeded(out.Metrics.QBER)
		}
		return result{metrics: out.Metrics, reason: kdErr.Reason}, nil
	case err != nil:
		end(err)
		return result{}, err
	}
	defer out.Zeroize()

	m := out.Metrics
	cfg.Collector.RecordQKDRun(m.SiftLen, m.QBER, m.LeakageBits, m.ResidualErrors)
	end(nil)
	return result{metrics: m, agreed: out.Agreed()}, nil
}

func aggregate(distance float64, runs []result) Point {
	p := Point{DistanceKM: distance, Runs: len(runs)}

	sift := make([]float64, 0, len(runs))
	var qber, leakage, residual []float64
	for _, r := range runs {
		p.ProbReach = r.metrics.ProbReach
		sift = append(sift, float64(r.metrics.SiftLen))

		switch r.reason {
		case qerrors.ReasonNoSiftedBits:
			p.NoSiftedBits++
			continue
		case qerrors.ReasonQBERExceeded:
			p.QBERExceeded++
			qber = append(qber, r.metrics.QBER)
			continue
		}

		qber = append(qber, r.metrics.QBER)
		leakage = append(leakage, float64(r.metrics.LeakageBits))
		residual = append(residual, float64(r.metrics.ResidualErrors))
		if r.agreed {
			p.Agreed++
		}
	}

	p.MeanSiftLen, p.StdDevSiftLen = meanStdDev(sift)
	p.QBERRuns = len(qber)
	p.MeanQBER, p.StdDevQBER = meanStdDev(qber)
	p.MeanLeakage, _ = meanStdDev(leakage)
	p.MeanResidual, _ = meanStdDev(residual)
	return p
}

// meanStdDev returns the sample mean and standard deviation, with zero for
// statistics that are undefined on fewer than one or two values.
func meanStdDev(xs []float64) (float64, float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	default:
		return stat.MeanStdDev(xs, nil)
	}
}
