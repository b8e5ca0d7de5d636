package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hejijunhao/vitals/internal/config"
	"github.com/hejijunhao/vitals/internal/engine"
	"github.com/hejijunhao/vitals/internal/engine/dedup"
	"github.com/hejijunhao/vitals/internal/engine/predictor"
	"github.com/hejijunhao/vitals/internal/logging"
	"github.com/hejijunhao/vitals/internal/metrics"
	"github.com/hejijunhao/vitals/internal/output"
	"github.com/hejijunhao/vitals/internal/output/async"
	"github.com/hejijunhao/vitals/internal/output/kafka"
	"github.com/hejijunhao/vitals/internal/output/multi"
	"github.com/hejijunhao/vitals/internal/output/postgres"
	"github.com/hejijunhao/vitals/internal/output/stdout"
	"github.com/hejijunhao/vitals/internal/output/webhook"
	"github.com/hejijunhao/vitals/internal/pipeline"
	"github.com/hejijunhao/vitals/internal/source"

	// Register source implementations.
	_ "github.com/hejijunhao/vitals/internal/source/api"
	_ "github.com/hejijunhao/vitals/internal/source/replay"
)

func main() {
	inv, err := parseArgs(os.Args[1:])
	if err != nil {
		printUsageError(os.Stderr, err)
		os.Exit(2)
	}
	if inv.help {
		fmt.Fprint(os.Stdout, synopsis)
		return
	}

	cfg := config.Load()
	if inv.output != "" {
		cfg.Output.Path = inv.output
	}

	logging.Init(cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(inv, cfg); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(inv invocation, cfg config.Config) error {
	// Set up graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	// Resolve source.
	fetcher, err := source.Open(sourceConfig(cfg.Source))
	if err != nil {
		return err
	}

	// Initialize predictor and engine.
	p, closePredictor, err := newPredictor(cfg.Predictor, cfg.Source.FetchTimeout)
	if err != nil {
		return err
	}
	defer closePredictor()

	// Metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Output.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.Output.MetricsAddr, Handler: metricsMux(reg)}
		go func() {
			slog.Info("metrics listening", "addr", cfg.Output.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Warn("metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			srv.Shutdown(shutdownCtx)
		}()
	}

	opts := []pipeline.Option{
		pipeline.WithInterval(cfg.Pipeline.PollInterval),
		pipeline.WithFetchTimeout(cfg.Source.FetchTimeout),
		pipeline.WithRetry(cfg.Pipeline.RetryAttempts, cfg.Pipeline.RetryBase),
		pipeline.WithDedup(dedup.Config{IgnoreTimestamp: cfg.Pipeline.DedupIgnoreTimestamp}),
		pipeline.WithOutputPath(cfg.Output.Path),
		pipeline.WithMetrics(m),
	}

	mirrors, err := newMirrors(ctx, cfg.Output)
	if err != nil {
		return err
	}
	if mirrors.Len() > 0 {
		// Mirrors drain in the background; Close waits at most MirrorDrain.
		a := async.New(mirrors, async.WithDrainTimeout(cfg.Output.MirrorDrain))
		defer a.Close()
		opts = append(opts, pipeline.WithMirror(a))
	}

	runner := pipeline.New(fetcher, engine.New(p), opts...)

	slog.Info("vitals starting", "mode", inv.mode, "source", cfg.Source.Provider, "predictor", cfg.Predictor.Kind)
	var res *pipeline.Result
	if inv.mode == pipeline.ModeRealtime {
		res, err = runner.Realtime(ctx)
	} else {
		res, err = runner.Batch(ctx, inv.cycles)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "vitals: wrote %d predictions to %s (run %s, %d cycles)\n",
		res.Unique, res.Path, res.RunID, res.Cycles)
	return nil
}

func sourceConfig(c config.SourceConfig) source.Config {
	endpoint := c.Endpoint
	if c.Provider == "replay" {
		endpoint = c.ReplayPath
	}
	return source.Config{
		Provider:   c.Provider,
		Endpoint:   endpoint,
		APIKey:     c.APIKey,
		RecordsKey: c.RecordsKey,
		Timeout:    c.FetchTimeout,
	}
}

// newPredictor builds the configured predictor and a function releasing it.
func newPredictor(c config.PredictorConfig, timeout time.Duration) (predictor.Predictor, func(), error) {
	switch c.Kind {
	case "onnx":
		o, err := predictor.NewONNX(c.ModelPath, c.ORTLib)
		if err != nil {
			return nil, nil, err
		}
		return o, func() { o.Close() }, nil
	case "remote":
		return predictor.NewRemote(c.URL, "", timeout), func() {}, nil
	case "rules":
		return predictor.NewRules(c.AlarmThreshold), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown predictor %q", c.Kind)
	}
}

// newMirrors opens every configured mirror. The result may be empty.
func newMirrors(ctx context.Context, c config.OutputConfig) (*multi.Multi, error) {
	var outs []output.Output
	if c.WebhookURL != "" {
		outs = append(outs, webhook.New(c.WebhookURL))
	}
	if c.PostgresURL != "" {
		pg, err := postgres.Open(ctx, c.PostgresURL)
		if err != nil {
			return nil, err
		}
		outs = append(outs, pg)
	}
	if c.Stdout {
		outs = append(outs, stdout.New(false))
	}
	if len(c.KafkaBrokers) > 0 {
		outs = append(outs, kafka.New(c.KafkaBrokers, c.KafkaTopic))
	}
	return multi.New(outs...), nil
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}
