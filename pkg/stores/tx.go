package stores

import (
	"context"
	"database/sql"

	"github.com/openfroyo/sqlconnector/pkg/connector"
	"github.com/openfroyo/sqlconnector/pkg/query"
	"github.com/openfroyo/sqlconnector/pkg/telemetry"
)

// Tx is one open transaction on one pooled connection, scoped to a tenant
// database. Statements built through it are qualified with that database.
type Tx struct {
	tx      *sql.Tx
	db      string
	logger  *telemetry.Logger
	metrics *telemetry.Metrics

	queries   query.QueryBuilder
	mutations query.MutationBuilder
}

// Database returns the tenant database the transaction runs against.
func (tx *Tx) Database() string {
	return tx.db
}

// withTransaction runs fn inside a transaction on a connection with dbName
// attached. The transaction commits only when fn returns nil; otherwise it is
// rolled back and fn's error is returned unchanged.
func (s *SQLite) withTransaction(ctx context.Context, dbName string, fn func(*Tx) error) error {
	return s.withConnection(ctx, dbName, func(conn *sql.Conn) error {
		logger := s.logger.WithDatabase(dbName)
		if l, ok := telemetry.LookupContext(ctx); ok {
			logger = l.NewComponentLogger("stores")
		}

		// Statements run to completion once started; ctx only carries
		// tracing and logging values past this point.
		sqlTx, err := conn.BeginTx(context.WithoutCancel(ctx), nil)
		if err != nil {
			return connector.NewDriverError("failed to begin transaction", err)
		}

		tx := &Tx{
			tx:        sqlTx,
			db:        dbName,
			logger:    logger,
			metrics:   s.tel.Metrics,
			queries:   query.NewQueryBuilder(dbName),
			mutations: query.NewMutationBuilder(dbName),
		}

		if err := fn(tx); err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil {
				logger.WithError(rbErr).Warn("failed to roll back transaction")
			}
			s.tel.Metrics.RecordTransaction(false)
			logger.WithError(err).Debug("transaction rolled back")
			return err
		}

		if err := sqlTx.Commit(); err != nil {
			s.tel.Metrics.RecordTransaction(false)
			return connector.NewDriverError("failed to commit transaction", err)
		}
		s.tel.Metrics.RecordTransaction(true)
		logger.Debug("transaction committed")
		return nil
	})
}

// reserve takes the write lock of the transaction's database through a write
// on table that matches no rows. It must be the first statement: a write
// lock requested after a read fails at once with SQLITE_BUSY when another
// connection committed in between, while a first write waits under
// busy_timeout. Only this database is locked, unlike BEGIN IMMEDIATE, which
// locks every database attached to the connection.
func (tx *Tx) reserve(ctx context.Context, table string) error {
	_, err := tx.executeOne(ctx, query.Delete{
		Table: query.Table{Name: table},
		Where: query.Any(),
	})
	return err
}
