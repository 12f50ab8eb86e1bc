package query

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/openfroyo/sqlconnector/pkg/datamodel"
	"github.com/openfroyo/sqlconnector/pkg/values"
)

// ListPositionStep is the gap between consecutive element positions of a
// list field.
const ListPositionStep = 1000

// listRowsPerInsert keeps each list insert below MaxBindParams; every row
// binds owner, position and value.
const listRowsPerInsert = MaxBindParams / 3

// MutationBuilder builds write statements against one database.
type MutationBuilder struct {
	Database string
}

// NewMutationBuilder returns a builder qualifying tables with db.
func NewMutationBuilder(db string) MutationBuilder {
	return MutationBuilder{Database: db}
}

func (b MutationBuilder) table(name string) Table {
	return Table{Database: b.Database, Name: name}
}

// CreateNode builds the insert for a new row. The returned identifier is set
// when it is known before execution: supplied in args, or generated for
// UUID, String and GraphQLID ids. It is nil for Int ids left to the engine.
func (b MutationBuilder) CreateNode(m *datamodel.Model, args []datamodel.Arg) (Insert, *values.Identifier, error) {
	idField := m.IDField()
	cols := make([]string, 0, len(args)+1)
	row := make([]any, 0, len(args)+1)
	var id *values.Identifier

	for _, a := range args {
		f, err := scalarField(m, a.Name)
		if err != nil {
			return Insert{}, nil, err
		}
		if f == idField {
			if a.Value.IsNull() {
				continue
			}
			given, err := a.Value.AsIdentifier()
			if err != nil {
				return Insert{}, nil, fmt.Errorf("model %s: %w", m.Name, err)
			}
			kind, _ := idField.Type.IDKind()
			if given, err = given.Convert(kind); err != nil {
				return Insert{}, nil, fmt.Errorf("%w: model %s: %w", ErrInvalidID, m.Name, err)
			}
			id = &given
			cols = append(cols, f.Name)
			row = append(row, given)
			continue
		}
		cols = append(cols, f.Name)
		row = append(row, a.Value)
	}

	if id == nil {
		generated, ok := generateID(idField.Type)
		if ok {
			id = &generated
			cols = append(cols, idField.Name)
			row = append(row, generated)
		}
	}

	return Insert{
		Table:   b.table(m.Name),
		Columns: cols,
		Rows:    [][]any{row},
	}, id, nil
}

func generateID(t datamodel.TypeIdentifier) (values.Identifier, bool) {
	switch t {
	case datamodel.TypeUUID:
		return values.UUIDID(uuid.New()), true
	case datamodel.TypeString, datamodel.TypeGraphQLID:
		return values.StringID(uuid.New().String()), true
	}
	return values.Identifier{}, false
}

// UpdateNodeByID builds the update of one row's scalar columns.
func (b MutationBuilder) UpdateNodeByID(m *datamodel.Model, id values.Identifier, args []datamodel.Arg) (Update, error) {
	set, err := assignments(m, args)
	if err != nil {
		return Update{}, err
	}
	return Update{
		Table: b.table(m.Name),
		Set:   set,
		Where: Eq(m.IDField().Name, id),
	}, nil
}

// UpdateByIDs builds the updates applying args to every row in ids. The id
// set is split so that no statement exceeds MaxBindParams.
func (b MutationBuilder) UpdateByIDs(m *datamodel.Model, ids []values.Identifier, args []datamodel.Arg) ([]Update, error) {
	set, err := assignments(m, args)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	size := MaxBindParams - len(set)
	if size < 1 {
		return nil, fmt.Errorf("%w: %d assignments exceed the parameter limit", ErrInvalidStatement, len(set))
	}

	var out []Update
	for _, part := range chunk(ids, size) {
		out = append(out, Update{
			Table: b.table(m.Name),
			Set:   set,
			Where: In(m.IDField().Name, part),
		})
	}
	return out, nil
}

// CreateScalarListValues builds the inserts storing vals as the elements of
// list field f for every owner in ids. Element i gets position
// ListPositionStep*(i+1). No statement is built for an empty list.
func (b MutationBuilder) CreateScalarListValues(f *datamodel.Field, ids []values.Identifier, vals []values.Value) []Insert {
	if len(ids) == 0 || len(vals) == 0 {
		return nil
	}

	lt := f.ScalarListTable()
	rows := make([][]any, 0, len(ids)*len(vals))
	for _, id := range ids {
		for i, v := range vals {
			rows = append(rows, []any{id, int64(ListPositionStep * (i + 1)), v})
		}
	}

	var out []Insert
	for _, part := range chunk(rows, listRowsPerInsert) {
		out = append(out, Insert{
			Table:   b.table(lt.Name),
			Columns: []string{lt.NodeIDColumn, lt.PositionColumn, lt.ValueColumn},
			Rows:    part,
		})
	}
	return out
}

// DeleteScalarListByIDs builds the deletes removing every element of list
// field f owned by ids.
func (b MutationBuilder) DeleteScalarListByIDs(f *datamodel.Field, ids []values.Identifier) []Delete {
	lt := f.ScalarListTable()
	var out []Delete
	for _, part := range chunk(ids, MaxBindParams) {
		out = append(out, Delete{
			Table: b.table(lt.Name),
			Where: In(lt.NodeIDColumn, part),
		})
	}
	return out
}

// UpdateScalarListValueByIDs builds the statements replacing the elements of
// list field f for every owner in ids: all deletes, then all inserts.
func (b MutationBuilder) UpdateScalarListValueByIDs(f *datamodel.Field, ids []values.Identifier, vals []values.Value) []Statement {
	var out []Statement
	for _, d := range b.DeleteScalarListByIDs(f, ids) {
		out = append(out, d)
	}
	for _, ins := range b.CreateScalarListValues(f, ids, vals) {
		out = append(out, ins)
	}
	return out
}

func assignments(m *datamodel.Model, args []datamodel.Arg) ([]Assignment, error) {
	set := make([]Assignment, 0, len(args))
	for _, a := range args {
		f, err := scalarField(m, a.Name)
		if err != nil {
			return nil, err
		}
		set = append(set, Assignment{Column: f.Name, Value: a.Value})
	}
	return set, nil
}

func scalarField(m *datamodel.Model, name string) (*datamodel.Field, error) {
	f, err := m.FindField(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, m.Name, name)
	}
	if !f.IsScalarNonList() {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotScalarField, m.Name, name)
	}
	return f, nil
}

// ListField resolves a list argument to its field.
func ListField(m *datamodel.Model, name string) (*datamodel.Field, error) {
	f, err := m.FindField(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, m.Name, name)
	}
	if f.Kind() != datamodel.FieldKindScalarList {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotListField, m.Name, name)
	}
	return f, nil
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
