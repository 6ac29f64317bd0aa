// Package observability provides structured logging, Prometheus metrics,
// and graceful shutdown management for the AgencyHub service.
//
// # Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("agency_id", agencyID).Info("grant created")
//
// Loggers are immutable; WithField/WithFields/WithError return derived
// loggers. FromContext enriches a logger with the request ID and agency
// ID carried in the request context.
//
// # Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.PermissionChecksTotal.WithLabelValues("clients", "read", "allowed").Inc()
//
// # Shutdown
//
//	sm := observability.NewShutdownManager(logger, server, 30*time.Second)
//	sm.RegisterShutdownFunc(func(ctx context.Context) error { return db.Close() })
//	sm.WaitForShutdown()
package observability
