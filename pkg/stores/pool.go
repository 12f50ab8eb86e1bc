package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openfroyo/sqlconnector/pkg/connector"
	"github.com/openfroyo/sqlconnector/pkg/datamodel"
	"github.com/openfroyo/sqlconnector/pkg/telemetry"
)

// withConnection checks out one pooled connection, makes sure dbName is
// attached to it and runs fn. The connection goes back to the pool when fn
// returns; in test mode the database is detached first.
func (s *SQLite) withConnection(ctx context.Context, dbName string, fn func(*sql.Conn) error) error {
	if err := validateDatabaseName(dbName); err != nil {
		return err
	}

	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	logger := s.logger.WithDatabase(dbName)
	stmtCtx := context.WithoutCancel(ctx)

	if err := s.attachDatabase(stmtCtx, conn, dbName, logger); err != nil {
		return err
	}

	fnErr := fn(conn)

	if s.cfg.TestMode {
		if _, err := conn.ExecContext(stmtCtx, "DETACH DATABASE ?", dbName); err != nil {
			detachErr := connector.NewDriverError("failed to detach database", err).WithDetail("database", dbName)
			if fnErr == nil {
				return detachErr
			}
			logger.WithError(err).Warn("failed to detach database after failed call")
		} else {
			logger.Debug("detached database")
		}
	}

	return fnErr
}

// validateDatabaseName rejects names that are not identifiers and the schema
// names SQLite reserves for the base and temporary databases.
func validateDatabaseName(dbName string) error {
	if !datamodel.IsIdentifier(dbName) {
		return connector.NewContractViolation(fmt.Sprintf("invalid database name %q", dbName), nil)
	}
	switch strings.ToLower(dbName) {
	case "main", "temp":
		return connector.NewContractViolation(fmt.Sprintf("database name %q is reserved", dbName), nil)
	}
	return nil
}

func (s *SQLite) acquire(ctx context.Context) (*sql.Conn, error) {
	acquireCtx := ctx
	if s.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, s.cfg.AcquireTimeout)
		defer cancel()
	}

	timer := telemetry.NewTimer()
	conn, err := s.db.Conn(acquireCtx)
	s.tel.Metrics.RecordPoolAcquire(timer.Duration(), err)
	if err != nil {
		return nil, connector.NewPoolExhaustionError("failed to acquire connection", err).
			WithDetail("connection_limit", s.cfg.ConnectionLimit)
	}
	return conn, nil
}

// attachDatabase attaches <RootPath>/db/<dbName>.db under the schema name
// dbName unless the connection already has it, then enables foreign keys.
// dbName must already be a validated identifier.
func (s *SQLite) attachDatabase(ctx context.Context, conn *sql.Conn, dbName string, logger *telemetry.Logger) error {
	attached, err := attachedDatabases(ctx, conn)
	if err != nil {
		return connector.NewDriverError("failed to list attached databases", err)
	}
	s.tel.Metrics.RecordStatement("pragma")

	if !attached[dbName] {
		path := s.DatabasePath(dbName)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return connector.NewDriverError("failed to create database directory", err).WithDetail("path", path)
		}

		if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS ?", path, dbName); err != nil {
			return connector.NewDriverError("failed to attach database", err).
				WithDetail("database", dbName).
				WithDetail("path", path)
		}
		// journal_mode is a property of the file and sticks once set.
		if _, err := conn.ExecContext(ctx, `PRAGMA "`+dbName+`".journal_mode = WAL`); err != nil {
			return connector.NewDriverError("failed to enable WAL", err).WithDetail("database", dbName)
		}
		s.tel.Metrics.RecordAttach()
		if err := s.tel.Events.PublishDatabaseAttached(dbName, path); err != nil {
			logger.WithError(err).Warn("failed to publish attach event")
		}
		logger.WithField("path", path).Debug("attached database")
	}

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return connector.NewDriverError("failed to enable foreign keys", err)
	}
	s.tel.Metrics.RecordStatement("pragma")
	return nil
}

func attachedDatabases(ctx context.Context, conn *sql.Conn) (map[string]bool, error) {
	rows, err := conn.QueryContext(ctx, "PRAGMA database_list")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var (
			seq  int64
			name string
			file sql.NullString
		)
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return nil, err
		}
		out[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("database_list returned no schemas")
	}
	return out, nil
}
