package stores

import (
	"context"
	"fmt"

	"github.com/openfroyo/sqlconnector/pkg/connector"
	"github.com/openfroyo/sqlconnector/pkg/datamodel"
	"github.com/openfroyo/sqlconnector/pkg/query"
	"github.com/openfroyo/sqlconnector/pkg/telemetry"
	"github.com/openfroyo/sqlconnector/pkg/values"
)

// WithRows runs sel against dbName in one transaction and calls fn for each
// row in result order. An error from fn aborts the call and is returned
// unchanged.
func (s *SQLite) WithRows(ctx context.Context, sel query.Select, dbName string, fn func(connector.Row) error) error {
	op := s.tel.StartOperation(ctx, OpWithRows, dbName, sel.Table.Name)

	n := 0
	err := s.withTransaction(op.Ctx, dbName, func(tx *Tx) error {
		return tx.query(op.Ctx, sel, func(r connector.Row) error {
			n++
			return fn(r)
		})
	})
	if err == nil {
		op.SetAttributes(telemetry.AttrRowsAffected.Int(n))
	}
	op.End(err, string(connector.ClassOf(err)))
	return err
}

// GetNodes reads the scalar fields of every node of m matching args.
func (s *SQLite) GetNodes(ctx context.Context, dbName string, m *datamodel.Model, args query.Arguments) ([]values.Node, error) {
	p := datamodel.ScalarProjection(m)
	sel := query.NewQueryBuilder(dbName).GetNodes(m, args, p)
	return connector.WithRows(ctx, s, sel, dbName, NodeDecoder(p))
}

// GetNodeByWhere reads the scalar fields of the node identified by sel.
// A selector matching nothing yields a *connector.SelectorUnresolvedError.
func (s *SQLite) GetNodeByWhere(ctx context.Context, dbName string, sel datamodel.NodeSelector) (values.Node, error) {
	m := sel.Model()
	if m == nil {
		return values.Node{}, connector.NewContractViolation("selector has no field", nil)
	}

	args := query.SelectorArguments(sel)
	args.First = 1
	nodes, err := s.GetNodes(ctx, dbName, m, args)
	if err != nil {
		return values.Node{}, err
	}
	if len(nodes) == 0 {
		return values.Node{}, &connector.SelectorUnresolvedError{Model: m.Name, Field: sel.Field.Name, Value: sel.Value}
	}
	return nodes[0], nil
}

// ReadListValues reads the elements of list field f for the given owners.
// Each owner's elements come back in position order; owners without
// elements are absent from the map.
func (s *SQLite) ReadListValues(ctx context.Context, dbName string, f *datamodel.Field, ids []values.Identifier) (map[values.Identifier][]values.Value, error) {
	if f == nil || f.Kind() != datamodel.FieldKindScalarList {
		return nil, connector.NewContractViolation("not a scalar list field", nil)
	}
	out := make(map[values.Identifier][]values.Value)
	if len(ids) == 0 {
		return out, nil
	}

	ownerType := f.Model().IDField().Type
	sel := query.NewQueryBuilder(dbName).ScalarListValues(f, ids)
	err := s.WithRows(ctx, sel, dbName, func(r connector.Row) error {
		owner, err := DecodeIdentifier(ownerType, r, 0)
		if err != nil {
			return fmt.Errorf("failed to decode list owner: %w", err)
		}
		v, err := DecodeValue(f.Type, r, 2)
		if err != nil {
			return fmt.Errorf("failed to decode %s element: %w", f.Name, err)
		}
		out[owner] = append(out[owner], v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
