package stores

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openfroyo/sqlconnector/pkg/connector"
	"github.com/openfroyo/sqlconnector/pkg/query"
)

// row is a scanned result row.
type row struct {
	vals []any
}

func (r *row) Len() int {
	return len(r.vals)
}

func (r *row) Raw(i int) (any, error) {
	if i < 0 || i >= len(r.vals) {
		return nil, connector.NewContractViolation(fmt.Sprintf("column %d out of range (row has %d)", i, len(r.vals)), nil)
	}
	return r.vals[i], nil
}

// query runs sel and calls fn for every row in result order. The first error
// from fn stops iteration and is returned unchanged.
func (tx *Tx) query(ctx context.Context, sel query.Select, fn func(connector.Row) error) error {
	sqlText, args, err := tx.build(sel)
	if err != nil {
		return err
	}

	rows, err := tx.tx.QueryContext(context.WithoutCancel(ctx), sqlText, args...)
	if err != nil {
		return connector.NewDriverError("failed to execute query", err).WithDetail("table", sel.Table.Name)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return connector.NewDriverError("failed to read result columns", err)
	}

	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return connector.NewDriverError("failed to scan row", err)
		}
		if err := fn(&row{vals: vals}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return connector.NewDriverError("failed to iterate rows", err)
	}
	return nil
}

// queryAll runs sel and decodes every row. Either all rows decode or nothing
// is returned.
func queryAll[T any](ctx context.Context, tx *Tx, sel query.Select, decode connector.RowDecoder[T]) ([]T, error) {
	var out []T
	err := tx.query(ctx, sel, func(r connector.Row) error {
		v, err := decode(r)
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// executeOne runs a single write statement.
func (tx *Tx) executeOne(ctx context.Context, stmt query.Statement) (sql.Result, error) {
	sqlText, args, err := tx.build(stmt)
	if err != nil {
		return nil, err
	}

	res, err := tx.tx.ExecContext(context.WithoutCancel(ctx), sqlText, args...)
	if err != nil {
		return nil, connector.NewDriverError("failed to execute statement", err).WithDetail("kind", statementKind(stmt))
	}
	return res, nil
}

// executeMany runs statements in order and stops at the first failure.
func (tx *Tx) executeMany(ctx context.Context, stmts []query.Statement) error {
	for _, stmt := range stmts {
		if _, err := tx.executeOne(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Tx) build(stmt query.Statement) (string, []any, error) {
	sqlText, args, err := query.Build(query.InDatabase(stmt, tx.db))
	if err != nil {
		return "", nil, connector.NewContractViolation("failed to build statement", err)
	}

	kind := statementKind(stmt)
	tx.metrics.RecordStatement(kind)
	if tx.logger.Enabled(zerolog.TraceLevel) {
		tx.logger.WithFields(map[string]interface{}{
			"sql":    sqlText,
			"params": len(args),
			"kind":   kind,
		}).Trace("executing statement")
	}
	return sqlText, args, nil
}

func statementKind(stmt query.Statement) string {
	switch stmt.(type) {
	case query.Select:
		return "select"
	case query.Insert:
		return "insert"
	case query.Update:
		return "update"
	case query.Delete:
		return "delete"
	default:
		return "unknown"
	}
}
