package stores

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/openfroyo/sqlconnector/pkg/connector"
	"github.com/openfroyo/sqlconnector/pkg/datamodel"
	"github.com/openfroyo/sqlconnector/pkg/query"
	"github.com/openfroyo/sqlconnector/pkg/telemetry"
	"github.com/openfroyo/sqlconnector/pkg/values"
)

// Operation names used in logs, spans, metrics and errors.
const (
	OpCreate     = "execute_create"
	OpUpdate     = "execute_update"
	OpUpdateMany = "execute_update_many"
	OpUpsert     = "execute_upsert"
	OpDelete     = "execute_delete"
	OpRaw        = "execute_raw"
	OpWithRows   = "with_rows"
)

// outcome summarises a committed mutation for metrics and events.
type outcome struct {
	rows int
	data map[string]interface{}
}

// ExecuteCreate inserts a node and the elements of its list fields, and
// returns the node's identifier.
func (s *SQLite) ExecuteCreate(ctx context.Context, dbName string, m *connector.CreateNode) (values.Identifier, error) {
	if m == nil || m.Model == nil {
		return values.Identifier{}, connector.NewContractViolation("create mutation has no model", nil).WithOperation(OpCreate)
	}

	var id values.Identifier
	err := s.runMutation(ctx, OpCreate, dbName, m.Model.Name, func(ctx context.Context, tx *Tx) (outcome, error) {
		var err error
		if id, err = tx.createNode(ctx, m); err != nil {
			return outcome{}, err
		}
		return outcome{rows: 1, data: map[string]interface{}{"id": id.String()}}, nil
	})
	if err != nil {
		return values.Identifier{}, err
	}
	return id, nil
}

// ExecuteUpdate updates the node identified by m.Where and returns its
// identifier. A selector matching nothing fails with a selector unresolved
// error.
func (s *SQLite) ExecuteUpdate(ctx context.Context, dbName string, m *connector.UpdateNode) (values.Identifier, error) {
	if m == nil || m.Where.Model() == nil {
		return values.Identifier{}, connector.NewContractViolation("update mutation has no selector", nil).WithOperation(OpUpdate)
	}
	model := m.Where.Model()

	var id values.Identifier
	err := s.runMutation(ctx, OpUpdate, dbName, model.Name, func(ctx context.Context, tx *Tx) (outcome, error) {
		var err error
		if id, err = tx.idFor(ctx, m.Where); err != nil {
			return outcome{}, err
		}
		if err := tx.updateByID(ctx, model, id, m.NonListArgs, m.ListArgs); err != nil {
			return outcome{}, err
		}
		return outcome{rows: 1, data: map[string]interface{}{"id": id.String()}}, nil
	})
	if err != nil {
		return values.Identifier{}, err
	}
	return id, nil
}

// ExecuteUpdateMany updates every node of m.Model matching m.Filter and
// returns how many matched.
func (s *SQLite) ExecuteUpdateMany(ctx context.Context, dbName string, m *connector.UpdateNodes) (int, error) {
	if m == nil || m.Model == nil {
		return 0, connector.NewContractViolation("update-many mutation has no model", nil).WithOperation(OpUpdateMany)
	}

	var count int
	err := s.runMutation(ctx, OpUpdateMany, dbName, m.Model.Name, func(ctx context.Context, tx *Tx) (outcome, error) {
		var err error
		if count, err = tx.updateNodes(ctx, m); err != nil {
			return outcome{}, err
		}
		return outcome{rows: count, data: map[string]interface{}{"count": count}}, nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ExecuteUpsert updates the node identified by m.Where or, when no node
// matches, creates one from m.Create. The result type reports which branch
// ran.
func (s *SQLite) ExecuteUpsert(ctx context.Context, dbName string, m *connector.UpsertNode) (values.Identifier, connector.ResultType, error) {
	if m == nil || m.Where.Model() == nil {
		return values.Identifier{}, connector.ResultCreate, connector.NewContractViolation("upsert mutation has no selector", nil).WithOperation(OpUpsert)
	}
	model := m.Where.Model()

	var (
		id     values.Identifier
		result connector.ResultType
	)
	err := s.runMutation(ctx, OpUpsert, dbName, model.Name, func(ctx context.Context, tx *Tx) (outcome, error) {
		var err error
		id, result, err = tx.upsert(ctx, m)
		if err != nil {
			return outcome{}, err
		}
		return outcome{rows: 1, data: map[string]interface{}{
			"id":     id.String(),
			"result": result.String(),
		}}, nil
	})
	if err != nil {
		return values.Identifier{}, connector.ResultCreate, err
	}
	return id, result, nil
}

// ExecuteDelete is not supported. It fails without opening a transaction.
func (s *SQLite) ExecuteDelete(ctx context.Context, dbName string, m *connector.DeleteNode) (*connector.SingleNode, error) {
	return nil, s.notSupported(ctx, OpDelete, dbName, selectorModelName(m))
}

// ExecuteRaw is disabled. The statement is never run.
func (s *SQLite) ExecuteRaw(ctx context.Context, _ string) (json.RawMessage, error) {
	return nil, s.notSupported(ctx, OpRaw, "", "")
}

func (s *SQLite) notSupported(ctx context.Context, operation, dbName, model string) error {
	op := s.tel.StartOperation(ctx, operation, dbName, model)
	err := connector.NotSupported(operation)
	op.End(err, string(err.Class))
	return err
}

// runMutation runs fn in one transaction and records the outcome. Errors are
// returned unchanged apart from gaining the operation name.
func (s *SQLite) runMutation(ctx context.Context, operation, dbName, model string, fn func(context.Context, *Tx) (outcome, error)) error {
	op := s.tel.StartOperation(ctx, operation, dbName, model)

	var out outcome
	err := s.withTransaction(op.Ctx, dbName, func(tx *Tx) error {
		if err := tx.reserve(op.Ctx, model); err != nil {
			return err
		}
		var err error
		out, err = fn(op.Ctx, tx)
		return err
	})

	class := connector.ClassOf(err)
	op.End(err, string(class))

	if err != nil {
		var ce *connector.ConnectorError
		if errors.As(err, &ce) && ce.Operation == "" {
			ce.WithOperation(operation)
		}
		logFailure(op.Logger, err, class)
		if pubErr := s.tel.Events.PublishMutationFailed(dbName, model, operation, string(class), err); pubErr != nil {
			op.Logger.WithError(pubErr).Warn("failed to publish mutation event")
		}
		return err
	}

	s.tel.Metrics.RecordRowsAffected(operation, out.rows)
	op.SetAttributes(telemetry.AttrRowsAffected.Int(out.rows))
	op.Logger.WithFields(out.data).Info("mutation committed")
	if pubErr := s.tel.Events.PublishMutationCommitted(dbName, model, operation, out.data); pubErr != nil {
		op.Logger.WithError(pubErr).Warn("failed to publish mutation event")
	}
	return nil
}

func logFailure(logger *telemetry.Logger, err error, class connector.ErrorClass) {
	logger = logger.WithError(err).WithField("class", string(class))
	if class == connector.ErrorClassSelectorUnresolved {
		logger.Warn("mutation target not found")
		return
	}
	logger.Error("mutation failed")
}

func (tx *Tx) createNode(ctx context.Context, m *connector.CreateNode) (values.Identifier, error) {
	ins, given, err := tx.mutations.CreateNode(m.Model, m.NonListArgs)
	if err != nil {
		return values.Identifier{}, connector.NewContractViolation("invalid create arguments", err)
	}

	res, err := tx.executeOne(ctx, ins)
	if err != nil {
		return values.Identifier{}, err
	}

	var id values.Identifier
	if given != nil {
		id = *given
	} else {
		n, err := res.LastInsertId()
		if err != nil {
			return values.Identifier{}, connector.NewDriverError("failed to read inserted row id", err)
		}
		id = values.IntID(n)
	}

	if err := tx.createListValues(ctx, m.Model, id, m.ListArgs); err != nil {
		return values.Identifier{}, err
	}
	return id, nil
}

func (tx *Tx) createListValues(ctx context.Context, model *datamodel.Model, id values.Identifier, args []datamodel.ListArg) error {
	ids := []values.Identifier{id}
	for _, la := range args {
		f, err := listField(model, la.Name)
		if err != nil {
			return err
		}
		for _, ins := range tx.mutations.CreateScalarListValues(f, ids, la.Values) {
			if _, err := tx.executeOne(ctx, ins); err != nil {
				return err
			}
		}
	}
	return nil
}

// updateByID applies args to one row. Without non-list args no row update
// is issued; list fields are still replaced.
func (tx *Tx) updateByID(ctx context.Context, model *datamodel.Model, id values.Identifier, nonList []datamodel.Arg, lists []datamodel.ListArg) error {
	if len(nonList) > 0 {
		upd, err := tx.mutations.UpdateNodeByID(model, id, nonList)
		if err != nil {
			return connector.NewContractViolation("invalid update arguments", err)
		}
		if _, err := tx.executeOne(ctx, upd); err != nil {
			return err
		}
	}
	return tx.replaceListValues(ctx, model, []values.Identifier{id}, lists)
}

func (tx *Tx) updateNodes(ctx context.Context, m *connector.UpdateNodes) (int, error) {
	ids, err := tx.idsFor(ctx, m.Model, query.Arguments{Filter: m.Filter})
	if err != nil {
		return 0, err
	}

	if len(m.NonListArgs) > 0 {
		updates, err := tx.mutations.UpdateByIDs(m.Model, ids, m.NonListArgs)
		if err != nil {
			return 0, connector.NewContractViolation("invalid update arguments", err)
		}
		for _, upd := range updates {
			if _, err := tx.executeOne(ctx, upd); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.replaceListValues(ctx, m.Model, ids, m.ListArgs); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// replaceListValues deletes and re-inserts the elements of every list arg
// for all ids.
func (tx *Tx) replaceListValues(ctx context.Context, model *datamodel.Model, ids []values.Identifier, args []datamodel.ListArg) error {
	for _, la := range args {
		f, err := listField(model, la.Name)
		if err != nil {
			return err
		}
		if err := tx.executeMany(ctx, tx.mutations.UpdateScalarListValueByIDs(f, ids, la.Values)); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Tx) upsert(ctx context.Context, m *connector.UpsertNode) (values.Identifier, connector.ResultType, error) {
	model := m.Where.Model()

	id, err := tx.idFor(ctx, m.Where)
	switch {
	case connector.IsSelectorUnresolved(err):
		create := m.Create
		if create.Model == nil {
			create.Model = model
		}
		tx.logger.Debug("upsert selector unresolved, creating")
		id, err := tx.createNode(ctx, &create)
		if err != nil {
			return values.Identifier{}, connector.ResultCreate, err
		}
		return id, connector.ResultCreate, nil
	case err != nil:
		return values.Identifier{}, connector.ResultCreate, err
	}

	if err := tx.updateByID(ctx, model, id, m.Update.NonListArgs, m.Update.ListArgs); err != nil {
		return values.Identifier{}, connector.ResultUpdate, err
	}
	return id, connector.ResultUpdate, nil
}

func listField(model *datamodel.Model, name string) (*datamodel.Field, error) {
	f, err := query.ListField(model, name)
	if err != nil {
		return nil, connector.NewContractViolation("invalid list argument", err)
	}
	return f, nil
}

func selectorModelName(m *connector.DeleteNode) string {
	if m == nil || m.Where.Model() == nil {
		return ""
	}
	return m.Where.Model().Name
}
