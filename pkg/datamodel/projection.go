package datamodel

// Projection is an ordered set of scalar, non-list fields materialised by a
// query. The same order drives both the SQL column list and positional row
// decoding. Relation and list fields are dropped at construction, so a
// projection can never ask the decoder for a relation column.
type Projection struct {
	fields []*Field
}

// NewProjection builds a projection from the given fields, keeping only the
// scalar non-list ones.
func NewProjection(fields ...*Field) Projection {
	kept := make([]*Field, 0, len(fields))
	for _, f := range fields {
		if f != nil && f.IsScalarNonList() {
			kept = append(kept, f)
		}
	}
	return Projection{fields: kept}
}

// ScalarProjection projects every scalar column of the model.
func ScalarProjection(m *Model) Projection {
	return NewProjection(m.Fields...)
}

// IDProjection projects only the model's identifier.
func IDProjection(m *Model) Projection {
	return NewProjection(m.IDField())
}

// Fields returns the projected fields in order.
func (p Projection) Fields() []*Field {
	out := make([]*Field, len(p.fields))
	copy(out, p.fields)
	return out
}

// Len returns the number of projected fields.
func (p Projection) Len() int {
	return len(p.fields)
}

// Field returns the i-th projected field.
func (p Projection) Field(i int) *Field {
	return p.fields[i]
}

// Names returns the projected field names in order.
func (p Projection) Names() []string {
	names := make([]string, len(p.fields))
	for i, f := range p.fields {
		names[i] = f.Name
	}
	return names
}
