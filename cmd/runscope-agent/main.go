// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Runscope-agent hosts an instrumented cooperative executor and serves
// live diagnostics about it. A small pool of worker goroutines polls
// demo tasks; every spawn, poll, wake, and timer flows through the
// lossy event queue into the aggregator, which publishes snapshots to
// subscribers on the inspection socket.
//
// Connect with the runscope CLI:
//
//	runscope --socket /run/user/1000/runscope.sock watch
//
// When server.metrics_address is set, aggregator health is also
// exported at /metrics for Prometheus.
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

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/runscope/lib/aggregator"
	"github.com/bureau-foundation/runscope/lib/clock"
	"github.com/bureau-foundation/runscope/lib/config"
	"github.com/bureau-foundation/runscope/lib/event"
	"github.com/bureau-foundation/runscope/lib/instrument"
	"github.com/bureau-foundation/runscope/lib/process"
	"github.com/bureau-foundation/runscope/lib/promexport"
	"github.com/bureau-foundation/runscope/lib/publish"
	"github.com/bureau-foundation/runscope/lib/ring"
	"github.com/bureau-foundation/runscope/lib/server"
	"github.com/bureau-foundation/runscope/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	configPath     string
	socketPath     string
	metricsAddress string
	logLevel       string
	workers        int
	spawnInterval  time.Duration
	showVersion    bool
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("runscope-agent", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to runscope.yaml (default: $"+config.EnvVar+", then built-in defaults)")
	flagSet.StringVar(&opts.socketPath, "socket", "", "override server.socket_path")
	flagSet.StringVar(&opts.metricsAddress, "metrics-address", "", "override server.metrics_address")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "override log.level")
	flagSet.IntVar(&opts.workers, "workers", 4, "executor worker goroutines")
	flagSet.DurationVar(&opts.spawnInterval, "spawn-interval", 200*time.Millisecond, "how often the demo workload spawns a task")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return process.Usage("%v", err)
	}
	if opts.showVersion {
		version.Print("runscope-agent")
		return nil
	}
	if opts.workers < 1 {
		return process.Usage("--workers must be at least 1, got %d", opts.workers)
	}
	if opts.spawnInterval <= 0 {
		return process.Usage("--spawn-interval must be positive, got %v", opts.spawnInterval)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, opts, logger)
}

// loadConfig resolves the config file, then applies flag overrides.
func loadConfig(opts options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case opts.configPath != "":
		cfg, err = config.LoadFile(opts.configPath)
	case os.Getenv(config.EnvVar) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
		cfg.ExpandVariables()
	}
	if err != nil {
		return nil, err
	}

	if opts.socketPath != "" {
		cfg.Server.SocketPath = opts.socketPath
	}
	if opts.metricsAddress != "" {
		cfg.Server.MetricsAddress = opts.metricsAddress
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config, opts options, logger *slog.Logger) error {
	clk := clock.Real()
	collector := cfg.Collector

	queue := ring.New[event.Event](collector.EventQueueCapacity)
	agg, err := aggregator.New(aggregator.Config{
		Queue: queue,
		Publisher: publish.New(publish.Config{
			Buffer: collector.SubscriberBuffer,
			Logger: logger.With("component", "publisher"),
		}),
		Clock:              clk,
		Logger:             logger.With("component", "aggregator"),
		Retention:          collector.RetentionDuration,
		AsyncOpRetention:   collector.AsyncOpRetention,
		PublishInterval:    collector.PublishInterval,
		ResidentCapacity:   collector.ResidentCapacity,
		HistogramPrecision: collector.HistogramPrecision,
	})
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		SocketPath: cfg.Server.SocketPath,
		Source:     agg,
		Version:    version.Short(),
		Clock:      clk,
		Logger:     logger.With("component", "server"),
	})
	if err != nil {
		return err
	}

	aggregatorDone := make(chan error, 1)
	go func() { aggregatorDone <- agg.Run(ctx) }()

	serverDone := make(chan error, 1)
	go func() { serverDone <- srv.Serve(ctx) }()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		metricsServer, err = startMetrics(cfg.Server.MetricsAddress, agg, logger)
		if err != nil {
			return err
		}
	}

	recorder := instrument.New(queue, clk, "runscope::demo")
	exec := newExecutor(recorder, logger.With("component", "executor"))
	exec.start(ctx, opts.workers)
	demo := &workload{executor: exec, clock: clk, lifetime: ctx}
	demo.seed()
	go demo.run(ctx, opts.spawnInterval)

	logger.Info("runscope agent running",
		"version", version.Info(),
		"socket", cfg.Server.SocketPath,
		"metrics_address", cfg.Server.MetricsAddress,
		"workers", opts.workers,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	exec.wait()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown", "error", err)
		}
	}
	if err := <-serverDone; err != nil {
		logger.Error("socket server error", "error", err)
	}
	if err := <-aggregatorDone; err != nil {
		return fmt.Errorf("aggregator: %w", err)
	}
	logger.Info("stopped", "dropped_events", recorder.Dropped())
	return nil
}

func startMetrics(address string, agg *aggregator.Aggregator, logger *slog.Logger) (*http.Server, error) {
	registry := prom.NewRegistry()
	if _, err := promexport.Register(registry, "", agg); err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "address", address, "error", err)
		}
	}()
	return metricsServer, nil
}
