// Package query holds the abstract statement model consumed by the connector
// and its SQLite renderer. Statements are plain values: builders in this
// package translate models, selectors and mutation arguments into them, and
// Build turns any of them into SQL text plus positional parameters.
package query

import "errors"

var (
	// ErrUnknownField is returned when an argument names a field the model
	// does not have.
	ErrUnknownField = errors.New("unknown field")
	// ErrNotScalarField is returned when a list or relation field is used
	// where a table column is required.
	ErrNotScalarField = errors.New("field is not a scalar column")
	// ErrNotListField is returned when a list argument names a field that
	// is not a scalar list.
	ErrNotListField = errors.New("field is not a scalar list")
	// ErrInvalidID is returned when a supplied id does not fit the id
	// field's type.
	ErrInvalidID = errors.New("invalid id")
	// ErrInvalidStatement is returned by Build for statements that cannot
	// be rendered.
	ErrInvalidStatement = errors.New("invalid statement")
)

// Table names a table, optionally qualified by an attached database.
type Table struct {
	Database string
	Name     string
}

// Statement is any renderable statement: Select, Insert, Update or Delete.
type Statement interface {
	statement()
}

// OrderBy is one ordering term.
type OrderBy struct {
	Column string
	Desc   bool
}

// Asc orders by column ascending.
func Asc(column string) OrderBy { return OrderBy{Column: column} }

// Desc orders by column descending.
func Desc(column string) OrderBy { return OrderBy{Column: column, Desc: true} }

// Select reads columns of one table. Limit and Offset are ignored when zero.
type Select struct {
	Table   Table
	Columns []string
	Where   Condition
	OrderBy []OrderBy
	Limit   int
	Offset  int
}

// Insert writes one or more rows. Every row must have one value per column.
type Insert struct {
	Table   Table
	Columns []string
	Rows    [][]any
}

// Assignment sets one column in an Update.
type Assignment struct {
	Column string
	Value  any
}

// Update modifies the rows matching Where.
type Update struct {
	Table Table
	Set   []Assignment
	Where Condition
}

// Delete removes the rows matching Where.
type Delete struct {
	Table Table
	Where Condition
}

func (Select) statement() {}
func (Insert) statement() {}
func (Update) statement() {}
func (Delete) statement() {}

// InDatabase returns a copy of the statement qualified by db when it does not
// already name a database.
func InDatabase(stmt Statement, db string) Statement {
	switch s := stmt.(type) {
	case Select:
		s.Table = qualify(s.Table, db)
		return s
	case Insert:
		s.Table = qualify(s.Table, db)
		return s
	case Update:
		s.Table = qualify(s.Table, db)
		return s
	case Delete:
		s.Table = qualify(s.Table, db)
		return s
	}
	return stmt
}

func qualify(t Table, db string) Table {
	if t.Database == "" {
		t.Database = db
	}
	return t
}
