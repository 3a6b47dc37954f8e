package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"oneiro-hq/morpheus/pkg/alerting"
	"oneiro-hq/morpheus/pkg/breaker"
	"oneiro-hq/morpheus/pkg/cli"
	"oneiro-hq/morpheus/pkg/config"
	"oneiro-hq/morpheus/pkg/extract"
	"oneiro-hq/morpheus/pkg/fallback"
	"oneiro-hq/morpheus/pkg/gateway"
	"oneiro-hq/morpheus/pkg/health"
	"oneiro-hq/morpheus/pkg/logging"
	"oneiro-hq/morpheus/pkg/metrics"
	"oneiro-hq/morpheus/pkg/providerfactory"
	"oneiro-hq/morpheus/pkg/retry"
	"oneiro-hq/morpheus/pkg/schema"
	"oneiro-hq/morpheus/pkg/server"
	"oneiro-hq/morpheus/pkg/snapshot"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Morpheus gateway",
	Long: `Start the Morpheus gateway with the specified configuration.

The gateway listens on the configured address, routes dream generation
requests across the configured providers, and exposes health, monitoring,
and Prometheus endpoints alongside the generation API.

Examples:
  # Start with default config
  morpheus run

  # Start with custom config
  morpheus run --config /etc/morpheus/config.yaml

  # Override listen address
  morpheus run --listen 0.0.0.0:8085

  # Validate config without starting
  morpheus run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	if _, err := logging.Setup(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return cli.NewConfigError("logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	printBanner(cfg)

	ctx, cancel := context.WithCancel(cli.SetupSignalHandler())
	defer cancel()

	// Observability backbone.
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(metrics.Config{
		Namespace: cfg.Metrics.Namespace,
		Subsystem: cfg.Metrics.Subsystem,
	}, registry)
	collector.Start(ctx)
	defer collector.Close()

	alerts := alerting.NewManager(alerting.Config{
		SuppressionWindow:   cfg.Alerting.SuppressionWindow,
		EscalationThreshold: cfg.Alerting.EscalationThreshold,
		ProviderHourlyCap:   cfg.Alerting.ProviderHourlyCap,
	}, buildAlertChannels(cfg.Alerting)...)
	alerts.Start(ctx)
	defer alerts.Close()

	// Generation pipeline and gateway. The health monitor is created first
	// so the gateway can consult it during selection.
	pipeline := schema.NewPipeline(schema.NewRegistry(), cfg.Validation.MaxRepairAttempts)

	monitor := health.NewMonitor(health.Config{
		ProbeInterval:    cfg.Health.ProbeInterval,
		ProbeTimeout:     cfg.Health.ProbeTimeout,
		SuccessRateFloor: cfg.Health.SuccessRateFloor,
	}, collector)

	gw := gateway.NewManager(gateway.Config{
		Schema:             cfg.Gateway.DefaultSchema,
		DefaultTemperature: cfg.Gateway.DefaultTemperature,
		DefaultMaxTokens:   cfg.Gateway.DefaultMaxTokens,
		Breaker: breaker.Config{
			FailureThreshold:     cfg.Breaker.FailureThreshold,
			FailureRateThreshold: cfg.Breaker.FailureRateThreshold,
			MinimumSamples:       cfg.Breaker.MinimumSamples,
			Cooldown:             cfg.Breaker.Cooldown,
		},
	}, gateway.Deps{
		Pipeline:  pipeline,
		Extractor: extract.New(),
		Retry:     retry.New(),
		Metrics:   collector,
		Alerts:    alerts,
		Fallback:  fallback.New(pipeline),
		Health:    monitor.Status,
	})
	defer gw.Close()

	built, err := providerfactory.BuildAll(cfg.Providers)
	if err != nil {
		return fmt.Errorf("failed to build providers: %w", err)
	}
	for _, p := range built {
		gw.Register(p)
	}
	fmt.Printf("✓ Providers initialized (%d providers)\n", len(built))

	// Health monitoring over the registered fleet.
	for _, p := range built {
		target := health.Target{
			Name:        p.Name(),
			SLATargetMs: p.Config().SLATargetMs,
			Prober:      p,
			Cooldown:    cfg.Breaker.Cooldown,
		}
		if managed, ok := gw.Entry(p.Name()); ok {
			target.Breaker = managed.Breaker
		}
		monitor.Register(target)
	}
	monitor.Start(ctx)

	evaluator := alerting.NewEvaluator(collector, alerts, gw.Names)

	// Snapshot persistence, when enabled.
	var (
		store    *snapshot.Store
		archiver *snapshot.Archiver
	)
	if cfg.Snapshot.SnapshotEnabled() {
		opened, err := snapshot.Open(snapshot.Config{
			Path:      cfg.Snapshot.Path,
			Retention: cfg.Snapshot.Retention,
		})
		if err != nil {
			slog.Warn("snapshot store unavailable, continuing without persistence", "error", err)
		} else {
			defer opened.Close()
			store = opened
			archiver = snapshot.NewArchiver(store, collector, alerts)
			fmt.Printf("✓ Snapshot store opened (%s)\n", cfg.Snapshot.Path)
		}
	}

	srv, err := server.New(cfg.Server, cfg.Metrics, server.Deps{
		Gateway:   gw,
		Health:    monitor,
		Metrics:   collector,
		Registry:  registry,
		Alerts:    alerts,
		Evaluator: evaluator,
		Archiver:  archiver,
		Store:     store,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Hot reload: a changed file replaces the singleton. Provider enabled
	// and priority apply live; new providers, credentials, and server
	// settings take effect on restart.
	if watcher, err := config.NewWatcher(cfgFile); err != nil {
		slog.Warn("configuration watcher unavailable", "error", err)
	} else {
		go func() {
			if err := watcher.Watch(ctx, func(next *config.Config) {
				for name, pc := range next.Providers {
					gw.Reconfigure(name, pc.ProviderEnabled(), pc.Priority)
				}
				slog.Info("configuration reloaded; new providers and server changes apply on restart")
			}); err != nil {
				slog.Error("configuration watcher stopped", "error", err)
			}
		}()
	}

	return srv.Start(ctx)
}

// buildAlertChannels turns the configured channel names into deliverers.
func buildAlertChannels(cfg config.AlertingConfig) []alerting.Channel {
	channels := make([]alerting.Channel, 0, len(cfg.Channels))
	for _, name := range cfg.Channels {
		switch name {
		case "log":
			channels = append(channels, alerting.NewLogChannel())
		case "console":
			channels = append(channels, alerting.NewConsoleChannel())
		case "webhook":
			channels = append(channels, alerting.NewWebhookChannel(cfg.WebhookURL, 0))
		case "email":
			channels = append(channels, alerting.NewEmailChannel(alerting.EmailConfig{
				Host:     cfg.Email.Host,
				Port:     cfg.Email.Port,
				Username: cfg.Email.Username,
				Password: cfg.Email.Password,
				From:     cfg.Email.From,
				To:       cfg.Email.To,
			}))
		}
	}
	if len(channels) == 0 {
		channels = append(channels, alerting.NewLogChannel())
	}
	return channels
}

func printBanner(cfg *config.Config) {
	fmt.Printf("Morpheus v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	enabled := 0
	for _, pc := range cfg.Providers {
		if pc.ProviderEnabled() {
			enabled++
		}
	}
	slog.Debug("providers configured", "total", len(cfg.Providers), "enabled", enabled)
}
