package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/sara-star-quant/hybrid-qkd/pkg/metrics"
)

// obsFlags are the logging, tracing and metrics flags shared by all commands.
type obsFlags struct {
	logLevel   string
	logFormat  string
	tracing    string
	metricsOut string
}

func (o *obsFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&o.logLevel, "log-level", "warn", "Log level: debug, info, warn, error, silent")
	fs.StringVar(&o.logFormat, "log-format", "text", "Log format: text or json")
	fs.StringVar(&o.tracing, "tracing", "none", "Tracing mode: none, simple, otel")
	fs.StringVar(&o.metricsOut, "metrics-out", "", "Write Prometheus metrics to this file when done ('-' for stdout)")
}

type observability struct {
	collector *metrics.Collector
	logger    *metrics.Logger
	tracer    metrics.Tracer
}

func (o *obsFlags) setup(stderr io.Writer) (*observability, error) {
	level, err := parseLogLevel(o.logLevel)
	if err != nil {
		return nil, err
	}
	format, err := metrics.ParseFormat(o.logFormat)
	if err != nil {
		return nil, err
	}

	logger := metrics.NewLogger(
		metrics.WithOutput(stderr),
		metrics.WithLevel(level),
		metrics.WithFormat(format),
		metrics.WithFields(metrics.Fields{"app": "hybrid-qkd"}),
	)
	metrics.SetLogger(logger)

	var tracer metrics.Tracer
	switch strings.ToLower(o.tracing) {
	case "none":
		tracer = metrics.NoOpTracer{}
	case "simple":
		tracer = metrics.NewSimpleTracer()
	case "otel":
		tracer = metrics.NewOTelTracer("hybrid-qkd")
	default:
		return nil, fmt.Errorf("invalid tracing mode: %s (use none, simple, or otel)", o.tracing)
	}
	metrics.SetTracer(tracer)

	collector := metrics.NewCollector(metrics.Labels{"service": "hybrid-qkd"})
	metrics.SetGlobal(collector)

	return &observability{collector: collector, logger: logger, tracer: tracer}, nil
}

// finish writes the metrics dump and, in simple tracing mode, the span log.
func (o *obsFlags) finish(obs *observability, stdout io.Writer) error {
	if st, ok := obs.tracer.(*metrics.SimpleTracer); ok {
		for _, s := range st.Spans() {
			fields := metrics.Fields{"duration": s.Duration.String(), "trace_id": s.TraceID}
			if s.Error != nil {
				fields["error"] = s.Error.Error()
			}
			obs.logger.Info("span "+s.Name, fields)
		}
	}

	if o.metricsOut == "" {
		return nil
	}
	exporter := metrics.NewPrometheusExporter(obs.collector, "hybrid_qkd")
	if o.metricsOut == "-" {
		exporter.WriteMetrics(stdout)
		return nil
	}
	f, err := os.Create(o.metricsOut)
	if err != nil {
		return fmt.Errorf("metrics output: %w", err)
	}
	exporter.WriteMetrics(f)
	return f.Close()
}

func parseLogLevel(level string) (metrics.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return metrics.LevelDebug, nil
	case "info":
		return metrics.LevelInfo, nil
	case "warn", "warning":
		return metrics.LevelWarn, nil
	case "error":
		return metrics.LevelError, nil
	case "silent", "off", "none":
		return metrics.LevelSilent, nil
	default:
		return metrics.LevelInfo, fmt.Errorf("invalid log level: %s (use debug, info, warn, error, silent)", level)
	}
}
