package stores

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/openfroyo/sqlconnector/pkg/connector"
	"github.com/openfroyo/sqlconnector/pkg/telemetry"

	// SQLite driver
	_ "modernc.org/sqlite"
)

// baseDSN opens a private in-memory database per pooled connection; tenant
// files are attached to it on demand. Transactions stay deferred: an
// immediate BEGIN would lock every database attached to the connection, not
// just the tenant the call touches.
const baseDSN = ":memory:?_pragma=busy_timeout(5000)"

// DefaultConnectionLimit is used when Config.ConnectionLimit is zero.
const DefaultConnectionLimit = 10

// Config holds the connector configuration.
type Config struct {
	// ConnectionLimit is the maximum number of pooled connections.
	ConnectionLimit int

	// TestMode detaches the tenant database at the end of every call.
	TestMode bool

	// RootPath is the directory under which tenant files live, as
	// <RootPath>/db/<name>.db.
	RootPath string

	// AcquireTimeout bounds the wait for a free connection. Zero waits
	// until the caller's context is done.
	AcquireTimeout time.Duration
}

// SQLite is the SQLite connector. It implements both
// connector.DatabaseExecutor and connector.DatabaseMutactionExecutor and is
// safe for concurrent use.
type SQLite struct {
	db     *sql.DB
	cfg    Config
	tel    *telemetry.Telemetry
	logger *telemetry.Logger
}

var (
	_ connector.DatabaseExecutor          = (*SQLite)(nil)
	_ connector.DatabaseMutactionExecutor = (*SQLite)(nil)
)

// Option configures a SQLite connector.
type Option func(*SQLite)

// WithTelemetry sets the telemetry used for logs, spans, metrics and events.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(s *SQLite) {
		if tel != nil {
			s.tel = tel
		}
	}
}

// NewSQLite creates the connector and its connection pool.
func NewSQLite(cfg Config, opts ...Option) (*SQLite, error) {
	db, err := sql.Open("sqlite", baseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s, err := newWithDB(db, cfg, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// newWithDB builds the connector around an already opened pool.
func newWithDB(db *sql.DB, cfg Config, opts ...Option) (*SQLite, error) {
	if cfg.ConnectionLimit < 0 {
		return nil, fmt.Errorf("connection limit must not be negative, got %d", cfg.ConnectionLimit)
	}
	if cfg.ConnectionLimit == 0 {
		cfg.ConnectionLimit = DefaultConnectionLimit
	}
	if cfg.RootPath == "" {
		cfg.RootPath = "."
	}

	db.SetMaxOpenConns(cfg.ConnectionLimit)
	db.SetMaxIdleConns(cfg.ConnectionLimit)
	// Attachments live on the connection, so idle connections are kept.
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	s := &SQLite{
		db:  db,
		cfg: cfg,
		tel: telemetry.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.tel.Logger.NewComponentLogger("stores")

	s.logger.WithFields(map[string]interface{}{
		"connection_limit": cfg.ConnectionLimit,
		"root_path":        cfg.RootPath,
		"test_mode":        cfg.TestMode,
	}).Debug("sqlite connector initialised")

	return s, nil
}

// Config returns the effective configuration.
func (s *SQLite) Config() Config {
	return s.cfg
}

// DatabasePath returns the file backing the named tenant database.
func (s *SQLite) DatabasePath(name string) string {
	return filepath.Join(s.cfg.RootPath, "db", name+".db")
}

// Close closes every pooled connection.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies that a connection can be checked out and used.
func (s *SQLite) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return connector.NewDriverError("database ping failed", err).WithOperation("health_check")
	}

	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return connector.NewDriverError("health check query failed", err).WithOperation("health_check")
	}
	return nil
}
