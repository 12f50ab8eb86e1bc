// Package datamodel describes the models the connector operates on: named
// entity types with ordered, typed fields. Models are loaded once, linked, and
// then shared read-only by every connector operation.
package datamodel

import (
	"fmt"

	"github.com/openfroyo/sqlconnector/pkg/values"
)

// TypeIdentifier is the declared domain type of a field.
type TypeIdentifier string

const (
	TypeString    TypeIdentifier = "String"
	TypeGraphQLID TypeIdentifier = "GraphQLID"
	TypeUUID      TypeIdentifier = "UUID"
	TypeInt       TypeIdentifier = "Int"
	TypeFloat     TypeIdentifier = "Float"
	TypeBoolean   TypeIdentifier = "Boolean"
	TypeEnum      TypeIdentifier = "Enum"
	TypeJSON      TypeIdentifier = "Json"
	TypeDateTime  TypeIdentifier = "DateTime"
	TypeRelation  TypeIdentifier = "Relation"
)

// IsValidIDType reports whether the type can back an id field.
func (t TypeIdentifier) IsValidIDType() bool {
	switch t {
	case TypeInt, TypeUUID, TypeString, TypeGraphQLID:
		return true
	}
	return false
}

// IDKind returns the identifier kind rows of an id field of this type read
// back as.
func (t TypeIdentifier) IDKind() (values.IDKind, bool) {
	switch t {
	case TypeInt:
		return values.IDKindInt, true
	case TypeUUID:
		return values.IDKindUUID, true
	case TypeString, TypeGraphQLID:
		return values.IDKindString, true
	}
	return 0, false
}

// FieldKind classifies a field by how it is stored.
type FieldKind int

const (
	// FieldKindScalar is stored as a column of the model table.
	FieldKindScalar FieldKind = iota
	// FieldKindScalarList is stored in an auxiliary list table.
	FieldKindScalarList
	// FieldKindRelation is not stored on the model table at all.
	FieldKindRelation
)

// Field is a single field of a model.
type Field struct {
	Name         string         `yaml:"name" validate:"required,identifier"`
	Type         TypeIdentifier `yaml:"type" validate:"required,oneof=String GraphQLID UUID Int Float Boolean Enum Json DateTime Relation"`
	IsList       bool           `yaml:"list"`
	IsID         bool           `yaml:"id"`
	IsRequired   bool           `yaml:"required"`
	RelatedModel string         `yaml:"relatedModel" validate:"required_if=Type Relation"`
	EnumValues   []string       `yaml:"enum" validate:"required_if=Type Enum"`

	model *Model
}

// Model returns the model that owns the field. It is nil until the model is linked.
func (f *Field) Model() *Model {
	return f.model
}

// Kind returns the storage kind of the field.
func (f *Field) Kind() FieldKind {
	switch {
	case f.Type == TypeRelation:
		return FieldKindRelation
	case f.IsList:
		return FieldKindScalarList
	default:
		return FieldKindScalar
	}
}

// IsScalarNonList reports whether the field is a column of the model table.
func (f *Field) IsScalarNonList() bool {
	return f.Kind() == FieldKindScalar
}

// ScalarListTable returns the auxiliary table holding the elements of a
// scalar list field.
func (f *Field) ScalarListTable() ScalarListTable {
	modelName := ""
	if f.model != nil {
		modelName = f.model.Name
	}
	return ScalarListTable{
		Name:           modelName + "_" + f.Name,
		NodeIDColumn:   ScalarListNodeIDColumn,
		PositionColumn: ScalarListPositionColumn,
		ValueColumn:    ScalarListValueColumn,
		Field:          f,
	}
}

// Column names of auxiliary list tables.
const (
	ScalarListNodeIDColumn   = "nodeId"
	ScalarListPositionColumn = "position"
	ScalarListValueColumn    = "value"
)

// ScalarListTable describes the side table of one scalar list field.
type ScalarListTable struct {
	Name           string
	NodeIDColumn   string
	PositionColumn string
	ValueColumn    string
	Field          *Field
}

// Model is a named entity type with an ordered set of fields.
type Model struct {
	Name   string   `yaml:"name" validate:"required,identifier"`
	Fields []*Field `yaml:"fields" validate:"required,min=1,dive"`

	idField *Field
	byName  map[string]*Field
}

// NewModel creates and links a model from its fields.
func NewModel(name string, fields ...*Field) (*Model, error) {
	m := &Model{Name: name, Fields: fields}
	if err := m.link(); err != nil {
		return nil, err
	}
	return m, nil
}

// link builds the field index and back references and checks the model's
// structural invariants.
func (m *Model) link() error {
	m.byName = make(map[string]*Field, len(m.Fields))
	m.idField = nil

	for _, f := range m.Fields {
		if f == nil {
			return fmt.Errorf("model %s: nil field", m.Name)
		}
		if _, dup := m.byName[f.Name]; dup {
			return fmt.Errorf("model %s: duplicate field %q", m.Name, f.Name)
		}
		f.model = m
		m.byName[f.Name] = f

		if f.IsID {
			if m.idField != nil {
				return fmt.Errorf("model %s: more than one id field (%s, %s)", m.Name, m.idField.Name, f.Name)
			}
			if !f.Type.IsValidIDType() || f.IsList {
				return fmt.Errorf("model %s: field %s of type %s cannot be an id", m.Name, f.Name, f.Type)
			}
			m.idField = f
		}
	}

	if m.idField == nil {
		return fmt.Errorf("model %s: no id field", m.Name)
	}
	return nil
}

// IDField returns the model's identifier field.
func (m *Model) IDField() *Field {
	return m.idField
}

// FindField looks up a field by name.
func (m *Model) FindField(name string) (*Field, error) {
	if f, ok := m.byName[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("model %s has no field %q", m.Name, name)
}

// ScalarFields returns the fields stored as columns of the model table, in
// declaration order.
func (m *Model) ScalarFields() []*Field {
	out := make([]*Field, 0, len(m.Fields))
	for _, f := range m.Fields {
		if f.IsScalarNonList() {
			out = append(out, f)
		}
	}
	return out
}

// ScalarListFields returns the fields stored in auxiliary list tables.
func (m *Model) ScalarListFields() []*Field {
	var out []*Field
	for _, f := range m.Fields {
		if f.Kind() == FieldKindScalarList {
			out = append(out, f)
		}
	}
	return out
}

// Arg is a non-list argument of a mutation: a field name and its new value.
type Arg struct {
	Name  string
	Value values.Value
}

// ListArg is a list argument of a mutation: a list field name and the full
// ordered sequence replacing its elements.
type ListArg struct {
	Name   string
	Values []values.Value
}

// NodeSelector is a field/value predicate identifying at most one row.
type NodeSelector struct {
	Field *Field
	Value values.Value
}

// NewNodeSelector builds a selector on the named field of a model.
func NewNodeSelector(m *Model, field string, value values.Value) (NodeSelector, error) {
	f, err := m.FindField(field)
	if err != nil {
		return NodeSelector{}, err
	}
	if !f.IsScalarNonList() {
		return NodeSelector{}, fmt.Errorf("field %s.%s cannot be used as a selector", m.Name, field)
	}
	return NodeSelector{Field: f, Value: value}, nil
}

// Model returns the model the selector applies to.
func (s NodeSelector) Model() *Model {
	if s.Field == nil {
		return nil
	}
	return s.Field.Model()
}
