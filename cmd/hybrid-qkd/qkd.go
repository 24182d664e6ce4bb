package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	flag "github.com/spf13/pflag"

	"github.com/sara-star-quant/hybrid-qkd/internal/constants"
	qerrors "github.com/sara-star-quant/hybrid-qkd/internal/errors"
	"github.com/sara-star-quant/hybrid-qkd/internal/store"
	"github.com/sara-star-quant/hybrid-qkd/pkg/bb84"
	"github.com/sara-star-quant/hybrid-qkd/pkg/channel"
	"github.com/sara-star-quant/hybrid-qkd/pkg/crypto"
	"github.com/sara-star-quant/hybrid-qkd/pkg/reconcile"
	"github.com/sara-star-quant/hybrid-qkd/pkg/sweep"
)

// linkFlags describe the fibre, the detector and the distillation settings.
type linkFlags struct {
	n           int
	distance    float64
	attenuation float64
	efficiency  float64
	darkCount   float64
	blockSize   int
	rounds      int
	strategy    string
	seed        uint64
}

func (f *linkFlags) register(fs *flag.FlagSet, n int, distanceKM float64) {
	f.registerChannel(fs, n)
	fs.Float64VarP(&f.distance, "distance", "d", distanceKM, "Fibre length in km")
	fs.Uint64Var(&f.seed, "seed", 0, "Seed the simulation for a reproducible run (0 = random)")
}

// registerChannel adds every link flag except distance and seed.
func (f *linkFlags) registerChannel(fs *flag.FlagSet, n int) {
	fs.IntVarP(&f.n, "n", "n", n, "Photons sent per BB84 session")
	fs.Float64Var(&f.attenuation, "attenuation", constants.DefaultAttenuationDBPerKM, "Fibre loss in dB/km")
	fs.Float64Var(&f.efficiency, "efficiency", constants.DefaultDetectorEfficiency, "Detector efficiency (0-1)")
	fs.Float64Var(&f.darkCount, "dark-count", constants.DefaultDarkCountRate, "Dark count probability per slot")
	fs.IntVar(&f.blockSize, "block", constants.DefaultBlockSize, "Reconciliation block size in bits")
	fs.IntVar(&f.rounds, "rounds", constants.DefaultMaxRounds, "Reconciliation rounds")
	fs.StringVar(&f.strategy, "strategy", reconcile.StrategyFirstFlip.String(), "Block correction: first-flip or bisect")
}

func (f *linkFlags) config() (bb84.Config, error) {
	strategy, err := reconcile.ParseStrategy(f.strategy)
	if err != nil {
		return bb84.Config{}, err
	}
	cfg := bb84.DefaultConfig()
	cfg.N = f.n
	cfg.Channel = channel.Parameters{
		DistanceKM:         f.distance,
		AttenuationDBPerKM: f.attenuation,
		DetectorEfficiency: f.efficiency,
		DarkCountRate:      f.darkCount,
	}
	cfg.BlockSize = f.blockSize
	cfg.MaxRounds = f.rounds
	cfg.Strategy = strategy
	return cfg, cfg.Channel.Validate()
}

type bb84Report struct {
	bb84.Metrics
	Agreed    bool   `json:"agreed"`
	Abort     string `json:"abort,omitempty"`
	KeyDigest string `json:"key_digest,omitempty"`
}

func bb84Command(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("bb84", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var lf linkFlags
	var of obsFlags
	lf.register(fs, constants.DefaultPhotons, constants.DefaultDistanceKM)
	of.register(fs)
	keyLen := fs.Int("key-len", constants.DistilledKeySize, "Distilled key length in bytes")
	maxQBER := fs.Float64("max-qber", 0, "Abort when the estimated QBER exceeds this (0 = never)")
	jsonOut := fs.Bool("json", false, "Print the run metrics as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := lf.config()
	if err != nil {
		return err
	}
	cfg.KeyLen = *keyLen
	cfg.MaxQBER = *maxQBER

	obs, err := of.setup(stderr)
	if err != nil {
		return err
	}
	cfg.Logger = obs.logger

	rng := crypto.NewSeededRand(lf.seed)
	if lf.seed == 0 {
		if rng, err = crypto.NewSessionRand(); err != nil {
			return err
		}
	}

	out, err := bb84.Run(ctx, rng, cfg)
	var kdErr *qerrors.KeyDistillationError
	if err != nil && !errors.As(err, &kdErr) {
		return err
	}
	defer out.Zeroize()

	report := bb84Report{Metrics: out.Metrics, Agreed: out.Agreed()}
	if kdErr != nil {
		report.Abort = kdErr.Reason.String()
		if kdErr.Reason == qerrors.ReasonNoSiftedBits {
			obs.collector.RecordNoSiftedBits()
		} else {
			obs.collector.RecordQBERExceeded(kdErr.QBER)
		}
	} else {
		obs.collector.RecordQKDRun(out.Metrics.SiftLen, out.Metrics.QBER, out.Metrics.LeakageBits, out.Metrics.ResidualErrors)
		report.KeyDigest = hex.EncodeToString(crypto.TranscriptHash(out.Key)[:8])
	}

	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printBB84(stdout, report)
	}
	return of.finish(obs, stdout)
}

func printBB84(w io.Writer, r bb84Report) {
	fmt.Fprintf(w, "BB84 over %.1f km (p_reach %.6f)\n", r.DistanceKM, r.ProbReach)
	fmt.Fprintf(w, "  sifted:    %d bits\n", r.SiftLen)
	fmt.Fprintf(w, "  sample:    %d bits\n", r.SampleSize)
	fmt.Fprintf(w, "  qber:      %.4f\n", r.QBER)
	if r.Abort != "" {
		fmt.Fprintf(w, "  aborted:   %s\n", r.Abort)
		return
	}
	fmt.Fprintf(w, "  leakage:   %d bits\n", r.LeakageBits)
	fmt.Fprintf(w, "  residual:  %d errors\n", r.ResidualErrors)
	fmt.Fprintf(w, "  agreed:    %t\n", r.Agreed)
	fmt.Fprintf(w, "  key hash:  %s...\n", r.KeyDigest)
}

func sweepCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var lf linkFlags
	var of obsFlags
	lf.registerChannel(fs, sweep.DefaultN)
	of.register(fs)
	distances := fs.Float64Slice("distances", sweep.DefaultDistances, "Comma-separated fibre lengths in km")
	repeats := fs.IntP("repeats", "r", 1, "Sessions per distance")
	seed := fs.Uint64("seed", 0, "Seed the sweep for reproducible output (0 = random)")
	concurrency := fs.IntP("concurrency", "c", 0, "Parallel sessions (0 = GOMAXPROCS)")
	db := fs.String("db", "", "Record the sweep in this SQLite database")
	jsonOut := fs.Bool("json", false, "Print the sweep points as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	qkd, err := lf.config()
	if err != nil {
		return err
	}

	obs, err := of.setup(stderr)
	if err != nil {
		return err
	}

	cfg := sweep.Config{
		Distances:   *distances,
		Repeats:     *repeats,
		QKD:         qkd,
		Seed:        *seed,
		Concurrency: *concurrency,
		Logger:      obs.logger,
		Collector:   obs.collector,
		Tracer:      obs.tracer,
	}
	points, err := sweep.Run(ctx, cfg)
	if err != nil {
		return err
	}

	if *db != "" {
		s, err := store.NewSQLiteStore(*db)
		if err != nil {
			return err
		}
		id, err := s.SaveSweep(ctx, points)
		if closeErr := s.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(stderr, "Sweep recorded as %s\n", id)
	}

	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(points); err != nil {
			return err
		}
	} else {
		printSweep(stdout, points)
	}
	return of.finish(obs, stdout)
}

func printSweep(w io.Writer, points []sweep.Point) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "km\tp_reach\truns\taborts\tsift\tqber\tleakage\tresidual\tagreed\t")
	for _, p := range points {
		fmt.Fprintf(tw, "%.1f\t%.4f\t%d\t%d\t%.1f±%.1f\t%.4f\t%.1f\t%.2f\t%d\t\n",
			p.DistanceKM, p.ProbReach, p.Runs, p.Aborts(),
			p.MeanSiftLen, p.StdDevSiftLen, p.MeanQBER,
			p.MeanLeakage, p.MeanResidual, p.Agreed)
	}
	tw.Flush() //nolint:errcheck
}
