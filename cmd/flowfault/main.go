// Package main implements flowfault, which builds the error handlers of the
// configured flows, exposes their metrics and replays sample faults through
// them.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/mulesoft/mule-sub047/config"
	"github.com/mulesoft/mule-sub047/expression"
	"github.com/mulesoft/mule-sub047/health"
	"github.com/mulesoft/mule-sub047/metric"
	"github.com/mulesoft/mule-sub047/natsclient"
	"github.com/mulesoft/mule-sub047/notification"
	"github.com/mulesoft/mule-sub047/system"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "flowfault"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cli := parseFlags()
	if err := validateFlags(cli); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cli.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	loader := config.NewLoader()
	for _, path := range cli.ConfigPaths {
		loader.AddLayer(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	if cli.Validate {
		logger.Info("Configuration is valid", "layers", cli.ConfigPaths, "flows", len(cfg.Flows))
		return nil
	}
	logger.Info("Starting flowfault", "layers", cli.ConfigPaths)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor(appName)

	natsClient, err := setupNATS(ctx, cfg.NATS, registry, monitor, logger)
	if err != nil {
		return err
	}
	if natsClient != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
			defer cancel()
			_ = natsClient.Close(closeCtx)
		}()
	}

	faults := &publishFaults{client: natsClient}
	notifier, err := setupNotifications(cfg, natsClient, faults, registry, logger)
	if err != nil {
		return err
	}

	evaluator, err := expression.NewExpressionEvaluator(
		expression.WithLogger(logger),
		expression.WithMetrics(registry),
	)
	if err != nil {
		return fmt.Errorf("create expression evaluator: %w", err)
	}

	deps := config.BuildDeps{
		Evaluator:       evaluator,
		Notifier:        notifier,
		MetricsRegistry: registry,
		Logger:          logger,
	}
	if natsClient != nil {
		deps.Publisher = natsClient
	}
	flows, err := config.Build(cfg, deps)
	if err != nil {
		return fmt.Errorf("build error handlers: %w", err)
	}
	defer func() {
		if err := flows.Dispose(); err != nil {
			logger.Warn("Disposing error handlers failed", "error", err)
		}
	}()

	strategy := system.New(cfg.System, system.Dependencies{
		Repository:      flows.Repository,
		Locator:         flows.Locator,
		Notifier:        notifier,
		MetricsRegistry: registry,
		Logger:          logger,
	})
	if err := strategy.Initialise(); err != nil {
		return fmt.Errorf("initialise system strategy: %w", err)
	}
	defer func() { _ = strategy.Dispose() }()
	faults.attach(strategy)

	monitor.Register("system", func() health.Status {
		return health.FromLifecycle("system", strategy.State())
	})
	for _, name := range flows.Names() {
		chain, _ := flows.Chain(name)
		monitor.Register("flow:"+name, func() health.Status {
			return health.FromLifecycle(name, chain.State())
		})
	}

	db, err := sqlx.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	monitor.Update("database", health.FromError("database", db.PingContext(ctx)))

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Enabled {
		server := metric.NewServer(cfg.Metrics.Address, cfg.Metrics.Path, registry)
		server.SetHealthHandler(monitor)
		logger.Info("Serving metrics", "address", server.Address())
		g.Go(func() error { return server.Start(gctx) })
	}

	g.Go(func() error {
		r := &replayer{
			flows:    flows,
			strategy: strategy,
			db:       db,
			logger:   logger.With("component", "replay"),
		}
		return r.run(gctx, cli.Replay)
	})

	err = g.Wait()
	logger.Info("Stopped flowfault")
	return err
}

func setupNATS(
	ctx context.Context,
	cfg config.NATSConfig,
	registry *metric.MetricsRegistry,
	monitor *health.Monitor,
	logger *slog.Logger,
) (*natsclient.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	monitor.Update("nats", health.NewDegraded("nats", "connecting"))

	opts := []natsclient.Option{
		natsclient.WithName(cfg.Name),
		natsclient.WithMaxReconnects(cfg.MaxReconnects),
		natsclient.WithReconnectWait(cfg.ReconnectWait),
		natsclient.WithTimeout(cfg.ConnectWait),
		natsclient.WithMetrics(registry),
		natsclient.WithLogger(logger),
		natsclient.OnHealthChange(func(healthy bool) {
			if healthy {
				monitor.Update("nats", health.NewHealthy("nats", "connected"))
				return
			}
			monitor.Update("nats", health.NewUnhealthy("nats", "disconnected"))
		}),
	}
	if cfg.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.Token))
	}

	client, err := natsclient.NewClient(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectWait+time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		// the first failed publish hands the client to the system strategy
		logger.Warn("NATS unavailable at startup", "url", cfg.URL, "error", err)
		monitor.Update("nats", health.FromError("nats", err))
	}
	return client, nil
}

func setupNotifications(
	cfg *config.Config,
	client *natsclient.Client,
	faults *publishFaults,
	registry *metric.MetricsRegistry,
	logger *slog.Logger,
) (notification.Dispatcher, error) {
	var sinks []notification.Sink
	if cfg.Notifications.Log {
		level, err := config.ParseLevel(cfg.Notifications.LogLevel)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, notification.NewLogSink(logger, level))
	}
	if cfg.Notifications.NATS && client != nil {
		sinks = append(sinks, notification.NewNATSSink(client, cfg.Notifications.SubjectPrefix,
			notification.OnPublishFailure(faults.failed)))
	}
	if len(sinks) == 0 {
		return notification.Nop{}, nil
	}
	return notification.NewFanOut(sinks,
		notification.WithMetrics(registry.CoreMetrics()),
		notification.WithLogger(logger),
	), nil
}
