// Package observability provides structured logging, Prometheus metrics, OpenTelemetry
// tracing, health checks and graceful shutdown for the matsecom binaries.
//
// # Structured Logging
//
// Logger wraps logrus with a JSON formatter:
//
//	logger := observability.NewLogger(observability.ParseLevel("info"), os.Stdout)
//	logger.WithField("subscriber_id", id).Info("Session recorded")
//
// Packages that take a *logrus.Logger receive logger.Logrus().
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveSimulation("AV", "OK", volume, 0)
//	metrics.ObserveInvoice(inv.Charges, inv.SessionCount, nil)
//
// A nil *Metrics records nothing, so services can run without a registry.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version, store, redisClient)
//	checker.AddOptional("invoice_archive", archive)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "matsecom",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
