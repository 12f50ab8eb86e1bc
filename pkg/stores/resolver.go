package stores

import (
	"context"

	"github.com/openfroyo/sqlconnector/pkg/connector"
	"github.com/openfroyo/sqlconnector/pkg/datamodel"
	"github.com/openfroyo/sqlconnector/pkg/query"
	"github.com/openfroyo/sqlconnector/pkg/values"
)

// idsFor returns the identifiers of every row of m matching args, in result
// order.
func (tx *Tx) idsFor(ctx context.Context, m *datamodel.Model, args query.Arguments) ([]values.Identifier, error) {
	sel := tx.queries.GetNodes(m, args, datamodel.IDProjection(m))
	return queryAll(ctx, tx, sel, IdentifierDecoder(m.IDField()))
}

// idFor resolves sel to a single identifier. A selector matching no row
// yields a *connector.SelectorUnresolvedError.
func (tx *Tx) idFor(ctx context.Context, sel datamodel.NodeSelector) (values.Identifier, error) {
	m := sel.Model()
	if m == nil || sel.Field == nil {
		return values.Identifier{}, connector.NewContractViolation("selector has no field", nil)
	}

	args := query.SelectorArguments(sel)
	args.First = 1
	ids, err := tx.idsFor(ctx, m, args)
	if err != nil {
		return values.Identifier{}, err
	}
	if len(ids) == 0 {
		return values.Identifier{}, &connector.SelectorUnresolvedError{
			Model: m.Name,
			Field: sel.Field.Name,
			Value: sel.Value,
		}
	}
	return ids[0], nil
}
