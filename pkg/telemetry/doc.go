// Package telemetry provides the observability instrumentation of the SQLite
// connector.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus) and a small event publisher behind a
// single Telemetry value that the connector receives at construction.
//
// # Usage
//
// Initialize telemetry at process startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = version
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Connector code wraps every public call in an Operation:
//
//	op := tel.StartOperation(ctx, "execute_create", dbName, "User")
//	id, err := create(op.Ctx)
//	op.End(err, string(connector.ClassOf(err)))
//
// An Operation carries a span named "connector.<operation>", a logger scoped
// with the operation, database and model, and a timer feeding
// operation_duration_seconds.
//
// # Logging
//
//	logger := tel.Logger.NewComponentLogger("stores")
//	logger.WithDatabase("tenant_a").WithModel("User").Debug("attached")
//
// Log levels: trace, debug, info, warn, error, fatal, disabled. SQL statements
// are logged at trace level, connection and transaction lifecycle at debug.
//
// # Metrics
//
// Every collector lives in a per-instance registry, so several connectors in
// one process (or one test binary) never collide:
//
//   - pool_acquisitions_total{outcome}, pool_wait_seconds
//   - database_attachments_total
//   - transactions_total{outcome=commit|rollback}
//   - statements_total{kind}
//   - operations_total{operation,outcome}, operation_duration_seconds{operation}
//   - rows_affected_total{operation}
//   - errors_by_class_total{class}
//
// Metrics.Serve exposes them over HTTP until its context is cancelled.
//
// # Events
//
// The EventPublisher announces committed and failed mutations and first-time
// database attachments. Delivery is synchronous unless EnableAsync is set.
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    audit.Record(e)
//	}, telemetry.FilterByType(telemetry.EventTypeMutationCommitted))
package telemetry
