package exporter

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ydelafollye/aws-cost-dashboard-go/internal/collector"
	"github.com/ydelafollye/aws-cost-dashboard-go/internal/config"
	"github.com/ydelafollye/aws-cost-dashboard-go/internal/selection"
	"github.com/ydelafollye/aws-cost-dashboard-go/internal/server"
	"github.com/ydelafollye/aws-cost-dashboard-go/pkg/timeutil"
)

type Exporter struct {
	config     *config.Config
	controller *selection.Controller
	collector  *collector.CostCollector
	server     *server.Server
	logger     *slog.Logger
}

// NewController builds the selection controller from the configured
// defaults and time zone.
func NewController(cfg *config.Config, logger *slog.Logger) (*selection.Controller, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, errors.Wrapf(err, "loading timezone %q", cfg.Timezone)
	}
	mode, err := timeutil.ParseComparisonMode(cfg.Selection.Comparison.Mode)
	if err != nil {
		return nil, err
	}

	return selection.New(selection.Defaults{
		Preset:         timeutil.PresetID(cfg.Selection.DefaultPreset),
		CompareEnabled: cfg.Selection.Comparison.Enabled,
		CompareMode:    mode,
	},
		selection.WithLocation(loc),
		selection.WithLogger(logger),
	), nil
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Exporter, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctrl, err := NewController(cfg, logger.With("component", "selection"))
	if err != nil {
		return nil, errors.Wrap(err, "creating selection controller")
	}

	// Init collector
	coll, err := collector.New(ctx, cfg, ctrl, logger.With("component", "collector"))
	if err != nil {
		return nil, errors.Wrap(err, "creating collector")
	}
	ctrl.SubscribePeriod(coll)
	ctrl.SubscribeComparison(coll)

	// Record collector into Prometheus
	if err := prometheus.Register(coll); err != nil {
		// Ignore error if already registered
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if !errors.As(err, &alreadyRegistered) {
			return nil, errors.Wrap(err, "registering collector")
		}
	}

	// Create HTTP server
	srv := server.New(cfg.ExporterPort, ctrl, logger.With("component", "server"))

	return &Exporter{
		config:     cfg,
		controller: ctrl,
		collector:  coll,
		server:     srv,
		logger:     logger,
	}, nil
}

// Run HTTP server and Poller
func (e *Exporter) Run(ctx context.Context) error {
	p := e.controller.Period()
	e.logger.Info("starting dashboard",
		"port", e.config.ExporterPort,
		"polling_interval", e.config.PollingInterval,
		"accounts", len(e.config.TargetAWSAccounts),
		"metrics", len(e.config.Metrics),
		"period", p.Name(),
		"range", p.Range.String(),
	)

	// Channel to capture goroutines error
	errCh := make(chan error, 2)

	// Start HTTP server
	go func() {
		if err := e.server.Start(); err != nil {
			errCh <- errors.Wrap(err, "server error")
		}
	}()

	// Start the poller
	poller := NewPoller(e.collector, e.controller, e.config.PollingInterval, e.logger.With("component", "poller"))
	go func() {
		if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- errors.Wrap(err, "poller error")
		}
	}()

	// Wait for error or shutdown signal
	select {
	case err := <-errCh:
		e.logger.Error("component failed", "error", err)
		e.shutdown()
		return err

	case <-ctx.Done():
		e.logger.Info("shutdown signal received")
		e.shutdown()
		return nil
	}
}

// Shutdown all components
func (e *Exporter) shutdown() {
	e.logger.Info("shutting down dashboard")

	// Shutdown timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stop HTTP server
	if err := e.server.Shutdown(ctx); err != nil {
		e.logger.Error("server shutdown error", "error", err)
	}

	// Unregister from Prometheus
	prometheus.Unregister(e.collector)

	e.logger.Info("dashboard stopped")
}

// Return the collector for testing
func (e *Exporter) Collector() *collector.CostCollector {
	return e.collector
}

// Controller returns the selection controller.
func (e *Exporter) Controller() *selection.Controller {
	return e.controller
}

// Return exporter config
func (e *Exporter) Config() *config.Config {
	return e.config
}
