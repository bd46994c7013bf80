package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/matsecom/pkg/app"
	"github.com/platinummonkey/matsecom/pkg/billing"
	"github.com/platinummonkey/matsecom/pkg/config"
	"github.com/platinummonkey/matsecom/pkg/observability"
)

var version = "dev"

var runOnce = flag.Bool("run-once", false, "Run one billing cycle and exit")

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.InfoLevel, nil).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, nil).WithField("service", "matsecom-billing")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, version)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize services")
		os.Exit(1)
	}
	defer a.Close()

	cycle := a.NewCycle()

	if *runOnce {
		if err := runCycle(ctx, cycle, logger); err != nil {
			a.Close()
			os.Exit(1)
		}
		return
	}

	a.Start(ctx)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.Billing.Schedule, func() {
		runCycle(ctx, cycle, logger)
	}); err != nil {
		logger.WithError(err).Error("Failed to schedule billing cycle")
		os.Exit(1)
	}
	c.Start()
	logger.WithField("schedule", cfg.Billing.Schedule).Info("Billing scheduler started")

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	shutdown.Register("scheduler", func(ctx context.Context) error {
		select {
		case <-c.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, a.Health)
	if a.Registry != nil {
		observability.RegisterMetricsEndpoint(healthMux, a.Registry)
	}
	healthServer := &http.Server{Addr: cfg.Server.HealthAddr(), Handler: healthMux}
	shutdown.AddServer(healthServer)
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	if err := shutdown.Wait(ctx); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
	}
	logger.Info("Billing scheduler stopped")
}

func runCycle(ctx context.Context, cycle *billing.Cycle, logger *observability.Logger) error {
	result, err := cycle.Run(ctx)
	if err != nil {
		logger.WithError(err).Error("Billing cycle failed")
		return err
	}
	if result.Skipped {
		return nil
	}
	logger.WithFields(map[string]interface{}{
		"run_id":   result.RunID,
		"invoices": len(result.Invoices),
		"failures": len(result.Failures),
	}).Info("Billing cycle completed")
	return nil
}
