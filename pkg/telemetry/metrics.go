package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeCommit   = "commit"
	OutcomeRollback = "rollback"
)

// Metrics provides Prometheus metrics for the connector. Every method is safe
// to call on a disabled or nil instance.
type Metrics struct {
	config MetricsConfig

	// Pool metrics
	poolAcquisitions *prometheus.CounterVec
	poolWait         prometheus.Histogram
	attachments      prometheus.Counter

	// Transaction and statement metrics
	transactions *prometheus.CounterVec
	statements   *prometheus.CounterVec

	// Operation metrics
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	rowsAffected      *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with its own registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		poolAcquisitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pool_acquisitions_total",
				Help:      "Total number of connection checkouts by outcome",
			},
			[]string{"outcome"},
		),
		poolWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pool_wait_seconds",
				Help:      "Time spent waiting for a pooled connection",
				Buckets:   buckets,
			},
		),
		attachments: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "database_attachments_total",
				Help:      "Total number of tenant databases attached to a connection",
			},
		),

		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Total number of transactions by outcome",
			},
			[]string{"outcome"},
		),
		statements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "statements_total",
				Help:      "Total number of SQL statements executed by kind",
			},
			[]string{"kind"},
		),

		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of connector operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of connector operations in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		rowsAffected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_affected_total",
				Help:      "Total number of rows written by mutations",
			},
			[]string{"operation"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
	}

	registry.MustRegister(
		m.poolAcquisitions,
		m.poolWait,
		m.attachments,
		m.transactions,
		m.statements,
		m.operations,
		m.operationDuration,
		m.rowsAffected,
		m.errorsByClass,
	)

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// RecordPoolAcquire records a connection checkout and the time spent waiting.
func (m *Metrics) RecordPoolAcquire(wait time.Duration, err error) {
	if !m.enabled() {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.poolAcquisitions.WithLabelValues(outcome).Inc()
	m.poolWait.Observe(wait.Seconds())
}

// RecordAttach records a tenant database attachment.
func (m *Metrics) RecordAttach() {
	if !m.enabled() {
		return
	}
	m.attachments.Inc()
}

// RecordTransaction records a finished transaction.
func (m *Metrics) RecordTransaction(committed bool) {
	if !m.enabled() {
		return
	}
	outcome := OutcomeRollback
	if committed {
		outcome = OutcomeCommit
	}
	m.transactions.WithLabelValues(outcome).Inc()
}

// RecordStatement records an executed statement of the given kind
// (select, insert, update, delete, pragma).
func (m *Metrics) RecordStatement(kind string) {
	if !m.enabled() {
		return
	}
	m.statements.WithLabelValues(kind).Inc()
}

// RecordOperation records a finished connector operation.
func (m *Metrics) RecordOperation(operation string, duration time.Duration, err error) {
	if !m.enabled() {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRowsAffected adds the rows written by a mutation.
func (m *Metrics) RecordRowsAffected(operation string, n int) {
	if !m.enabled() || n <= 0 {
		return
	}
	m.rowsAffected.WithLabelValues(operation).Add(float64(n))
}

// RecordError records an error by class.
func (m *Metrics) RecordError(errorClass string) {
	if !m.enabled() {
		return
	}
	if errorClass == "" {
		errorClass = "unclassified"
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
}

// Registry returns the registry backing the metrics, or nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes the metrics endpoint until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, logger *Logger) error {
	if !m.enabled() {
		return errors.New("metrics are disabled")
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("serving metrics on %s%s", m.config.ListenAddress, path)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
