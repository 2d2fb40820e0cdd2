// Package main is the docquery command. It runs one simple query against the
// configured database and prints the result as JSON, or serves the admin
// endpoints with "serve".
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pitabwire/docquery/internal/admin"
	"github.com/pitabwire/docquery/internal/config"
	"github.com/pitabwire/docquery/internal/observability"
	"github.com/pitabwire/docquery/mapper"
	"github.com/pitabwire/docquery/simplequery"
	"github.com/pitabwire/docquery/transport"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("docquery", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "config.yaml", "path to configuration file")
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage(fs)
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 1
	}

	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	ctx = observability.WithLogger(ctx, logger)

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "docquery", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingShutdown(flushCtx); err != nil {
			logger.Error("tracing shutdown error", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.Metrics.Enabled {
		metrics = observability.InitMetrics(registry,
			observability.WithCollectionLabel(cfg.Observability.Metrics.CollectionLabel),
		)
	}

	client, err := transport.NewClient(cfg.Database,
		transport.WithLogger(logger),
		transport.WithMetrics(metrics),
	)
	if err != nil {
		logger.Error("database client initialization failed", zap.Error(err))
		return 1
	}

	manager := simplequery.NewManager(client, mapper.NewRegistry(),
		simplequery.WithLogger(logger),
		simplequery.WithMetrics(metrics),
		simplequery.WithDefaultLimit(cfg.Query.DefaultLimit),
	)

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	if cmd == "serve" {
		return serve(ctx, cfg, client, metrics, registry, logger)
	}

	if err := runQuery(ctx, manager, cmd, cmdArgs, stdout, stderr); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(stderr, err)
			return 2
		}
		fmt.Fprintf(stderr, "%s: %v\n", cmd, err)
		return 1
	}
	return 0
}

// serve runs the admin server until a signal arrives.
func serve(
	ctx context.Context,
	cfg *config.Config,
	client *transport.Client,
	metrics *observability.Metrics,
	registry *prometheus.Registry,
	logger *zap.Logger,
) int {
	deps := admin.Dependencies{
		Logger:      logger,
		Metrics:     metrics,
		Readiness:   observability.ReadinessChecks{Database: client},
		MetricsPath: cfg.Observability.Metrics.Path,
	}
	if metrics != nil {
		deps.Gatherer = registry
	}

	srv, err := admin.Listen(cfg.Server, admin.NewRouter(deps), logger)
	if err != nil {
		logger.Error("admin server failed to start", zap.Error(err))
		return 1
	}
	srv.Start()
	logger.Info("docquery serving",
		zap.String("addr", srv.Addr()),
		zap.String("database", cfg.Database.Endpoint),
		zap.String("version", version),
		zap.String("commit", commit),
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err, ok := <-srv.Errors():
		if ok {
			logger.Error("admin server error", zap.Error(err))
			return 1
		}
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintln(out, "usage: docquery [-config file] <command> [flags] <collection>")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "commands:")
	for _, c := range commands {
		fmt.Fprintf(out, "  %-18s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(out, "  %-18s %s\n", "serve", "serve /health, /ready and metrics until interrupted")
	fmt.Fprintln(out)
	fs.PrintDefaults()
}
