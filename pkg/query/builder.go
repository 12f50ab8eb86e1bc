package query

import (
	"github.com/openfroyo/sqlconnector/pkg/datamodel"
	"github.com/openfroyo/sqlconnector/pkg/values"
)

// Arguments are the read arguments of a node query. Skip and First are
// ignored when zero. Without an explicit order, rows are ordered by id.
type Arguments struct {
	Filter  Condition
	OrderBy []OrderBy
	Skip    int
	First   int
}

// SelectorArguments filters on a single field/value pair. A null value
// matches rows where the field is NULL.
func SelectorArguments(sel datamodel.NodeSelector) Arguments {
	if sel.Value.IsNull() {
		return Arguments{Filter: Null(sel.Field.Name)}
	}
	return Arguments{Filter: Eq(sel.Field.Name, sel.Value)}
}

// QueryBuilder builds read statements against one database.
type QueryBuilder struct {
	Database string
}

// NewQueryBuilder returns a builder qualifying tables with db. An empty db
// leaves tables unqualified.
func NewQueryBuilder(db string) QueryBuilder {
	return QueryBuilder{Database: db}
}

func (b QueryBuilder) table(name string) Table {
	return Table{Database: b.Database, Name: name}
}

// GetNodes selects the projected columns of the model's rows matching args.
func (b QueryBuilder) GetNodes(m *datamodel.Model, args Arguments, p datamodel.Projection) Select {
	order := args.OrderBy
	if len(order) == 0 {
		order = []OrderBy{Asc(m.IDField().Name)}
	}
	return Select{
		Table:   b.table(m.Name),
		Columns: p.Names(),
		Where:   args.Filter,
		OrderBy: order,
		Limit:   args.First,
		Offset:  args.Skip,
	}
}

// GetNodeByWhere selects the projected columns of the row matching sel.
func (b QueryBuilder) GetNodeByWhere(sel datamodel.NodeSelector, p datamodel.Projection) Select {
	return b.GetNodes(sel.Model(), SelectorArguments(sel), p)
}

// ScalarListValues reads the elements of a list field for a set of owners,
// ordered by owner and then position.
func (b QueryBuilder) ScalarListValues(f *datamodel.Field, ids []values.Identifier) Select {
	lt := f.ScalarListTable()
	return Select{
		Table:   b.table(lt.Name),
		Columns: []string{lt.NodeIDColumn, lt.PositionColumn, lt.ValueColumn},
		Where:   In(lt.NodeIDColumn, ids),
		OrderBy: []OrderBy{Asc(lt.NodeIDColumn), Asc(lt.PositionColumn)},
	}
}
