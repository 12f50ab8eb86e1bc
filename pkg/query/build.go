package query

import (
	"fmt"
	"strings"
)

// MaxBindParams is the number of bound parameters a single SQLite statement
// may carry.
const MaxBindParams = 999

type arger interface {
	Arg() any
}

// Build renders a statement as SQLite SQL with positional "?" parameters.
func Build(stmt Statement) (string, []any, error) {
	b := &builder{}
	var err error

	switch s := stmt.(type) {
	case Select:
		err = b.selectStmt(s)
	case Insert:
		err = b.insertStmt(s)
	case Update:
		err = b.updateStmt(s)
	case Delete:
		err = b.deleteStmt(s)
	default:
		err = fmt.Errorf("%w: unsupported statement %T", ErrInvalidStatement, stmt)
	}
	if err != nil {
		return "", nil, err
	}
	return b.sql.String(), b.args, nil
}

type builder struct {
	sql  strings.Builder
	args []any
}

func (b *builder) write(parts ...string) {
	for _, p := range parts {
		b.sql.WriteString(p)
	}
}

func (b *builder) bind(v any) {
	if a, ok := v.(arger); ok {
		v = a.Arg()
	}
	b.args = append(b.args, v)
	b.sql.WriteByte('?')
}

func (b *builder) selectStmt(s Select) error {
	if s.Table.Name == "" {
		return fmt.Errorf("%w: select without table", ErrInvalidStatement)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("%w: select without columns", ErrInvalidStatement)
	}

	b.write("SELECT ")
	for i, c := range s.Columns {
		if i > 0 {
			b.write(", ")
		}
		b.write(quoteIdent(c))
	}
	b.write(" FROM ", quoteTable(s.Table))

	if err := b.where(s.Where); err != nil {
		return err
	}

	if len(s.OrderBy) > 0 {
		b.write(" ORDER BY ")
		for i, o := range s.OrderBy {
			if i > 0 {
				b.write(", ")
			}
			b.write(quoteIdent(o.Column))
			if o.Desc {
				b.write(" DESC")
			} else {
				b.write(" ASC")
			}
		}
	}

	switch {
	case s.Limit > 0:
		b.write(fmt.Sprintf(" LIMIT %d", s.Limit))
	case s.Offset > 0:
		// SQLite only accepts OFFSET after a LIMIT clause.
		b.write(" LIMIT -1")
	}
	if s.Offset > 0 {
		b.write(fmt.Sprintf(" OFFSET %d", s.Offset))
	}
	return nil
}

func (b *builder) insertStmt(s Insert) error {
	if s.Table.Name == "" {
		return fmt.Errorf("%w: insert without table", ErrInvalidStatement)
	}
	if len(s.Rows) == 0 {
		return fmt.Errorf("%w: insert without rows", ErrInvalidStatement)
	}

	b.write("INSERT INTO ", quoteTable(s.Table))
	if len(s.Columns) == 0 {
		if len(s.Rows) > 1 || len(s.Rows[0]) > 0 {
			return fmt.Errorf("%w: insert values without columns", ErrInvalidStatement)
		}
		b.write(" DEFAULT VALUES")
		return nil
	}

	b.write(" (")
	for i, c := range s.Columns {
		if i > 0 {
			b.write(", ")
		}
		b.write(quoteIdent(c))
	}
	b.write(") VALUES ")

	for r, row := range s.Rows {
		if len(row) != len(s.Columns) {
			return fmt.Errorf("%w: row %d has %d values for %d columns", ErrInvalidStatement, r, len(row), len(s.Columns))
		}
		if r > 0 {
			b.write(", ")
		}
		b.write("(")
		for i, v := range row {
			if i > 0 {
				b.write(", ")
			}
			b.bind(v)
		}
		b.write(")")
	}
	return nil
}

func (b *builder) updateStmt(s Update) error {
	if s.Table.Name == "" {
		return fmt.Errorf("%w: update without table", ErrInvalidStatement)
	}
	if len(s.Set) == 0 {
		return fmt.Errorf("%w: update without assignments", ErrInvalidStatement)
	}

	b.write("UPDATE ", quoteTable(s.Table), " SET ")
	for i, a := range s.Set {
		if i > 0 {
			b.write(", ")
		}
		b.write(quoteIdent(a.Column), " = ")
		b.bind(a.Value)
	}
	return b.where(s.Where)
}

func (b *builder) deleteStmt(s Delete) error {
	if s.Table.Name == "" {
		return fmt.Errorf("%w: delete without table", ErrInvalidStatement)
	}
	b.write("DELETE FROM ", quoteTable(s.Table))
	return b.where(s.Where)
}

func (b *builder) where(c Condition) error {
	if c == nil {
		return nil
	}
	b.write(" WHERE ")
	return b.condition(c)
}

func (b *builder) condition(c Condition) error {
	switch c := c.(type) {
	case Compare:
		b.write(quoteIdent(c.Column), " ", string(c.Op), " ")
		b.bind(c.Value)

	case InList:
		if len(c.Values) == 0 {
			if c.Negated {
				b.write("1=1")
			} else {
				b.write("1=0")
			}
			return nil
		}
		b.write(quoteIdent(c.Column))
		if c.Negated {
			b.write(" NOT")
		}
		b.write(" IN (")
		for i, v := range c.Values {
			if i > 0 {
				b.write(", ")
			}
			b.bind(v)
		}
		b.write(")")

	case IsNull:
		b.write(quoteIdent(c.Column))
		if c.Negated {
			b.write(" IS NOT NULL")
		} else {
			b.write(" IS NULL")
		}

	case And:
		return b.group(c, " AND ", "1=1")

	case Or:
		return b.group(c, " OR ", "1=0")

	case Not:
		if c.Cond == nil {
			return fmt.Errorf("%w: NOT without operand", ErrInvalidStatement)
		}
		b.write("NOT (")
		if err := b.condition(c.Cond); err != nil {
			return err
		}
		b.write(")")

	default:
		return fmt.Errorf("%w: unsupported condition %T", ErrInvalidStatement, c)
	}
	return nil
}

func (b *builder) group(conds []Condition, sep, empty string) error {
	if len(conds) == 0 {
		b.write(empty)
		return nil
	}
	b.write("(")
	for i, c := range conds {
		if i > 0 {
			b.write(sep)
		}
		if err := b.condition(c); err != nil {
			return err
		}
	}
	b.write(")")
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteTable(t Table) string {
	if t.Database == "" {
		return quoteIdent(t.Name)
	}
	return quoteIdent(t.Database) + "." + quoteIdent(t.Name)
}
