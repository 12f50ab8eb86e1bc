package stores

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/sqlconnector/pkg/connector"
	"github.com/openfroyo/sqlconnector/pkg/datamodel"
	"github.com/openfroyo/sqlconnector/pkg/values"
)

// DecodeValue converts column i of r into a value of the declared type. A
// NULL column decodes to values.Null() for every type. UUID columns holding
// text that is not a UUID decode to a String value.
func DecodeValue(typ datamodel.TypeIdentifier, r connector.Row, i int) (values.Value, error) {
	raw, err := r.Raw(i)
	if err != nil {
		return values.Value{}, err
	}
	if raw == nil {
		return values.Null(), nil
	}

	switch typ {
	case datamodel.TypeString:
		s, ok := asText(raw)
		if !ok {
			return values.Value{}, decodeError(typ, i, raw)
		}
		return values.String(s), nil

	case datamodel.TypeEnum:
		s, ok := asText(raw)
		if !ok {
			return values.Value{}, decodeError(typ, i, raw)
		}
		return values.Enum(s), nil

	case datamodel.TypeJSON:
		s, ok := asText(raw)
		if !ok {
			return values.Value{}, decodeError(typ, i, raw)
		}
		if !json.Valid([]byte(s)) {
			return values.Value{}, connector.NewValueDecodeError(fmt.Sprintf("column %d does not hold a JSON document", i), nil)
		}
		return values.JSON(json.RawMessage(s)), nil

	case datamodel.TypeGraphQLID:
		switch v := raw.(type) {
		case int64:
			return values.ID(values.IntID(v)), nil
		case string:
			return values.ID(values.StringID(v)), nil
		case []byte:
			return values.ID(values.StringID(string(v))), nil
		}
		return values.Value{}, decodeError(typ, i, raw)

	case datamodel.TypeUUID:
		switch v := raw.(type) {
		case []byte:
			if len(v) == 16 {
				u, err := uuid.FromBytes(v)
				if err != nil {
					return values.Value{}, connector.NewValueDecodeError(fmt.Sprintf("column %d holds an invalid UUID blob", i), err)
				}
				return values.UUID(u), nil
			}
			return uuidOrString(string(v)), nil
		case string:
			return uuidOrString(v), nil
		}
		return values.Value{}, decodeError(typ, i, raw)

	case datamodel.TypeInt:
		n, ok := raw.(int64)
		if !ok {
			return values.Value{}, decodeError(typ, i, raw)
		}
		return values.Int(n), nil

	case datamodel.TypeFloat:
		switch v := raw.(type) {
		case float64:
			return values.Float(v), nil
		case int64:
			return values.Float(float64(v)), nil
		}
		return values.Value{}, decodeError(typ, i, raw)

	case datamodel.TypeBoolean:
		switch v := raw.(type) {
		case bool:
			return values.Boolean(v), nil
		case int64:
			return values.Boolean(v != 0), nil
		}
		return values.Value{}, decodeError(typ, i, raw)

	case datamodel.TypeDateTime:
		switch v := raw.(type) {
		case int64:
			return values.DateTime(fromUnixMillis(v)), nil
		case time.Time:
			return values.DateTime(v), nil
		}
		return values.Value{}, decodeError(typ, i, raw)

	case datamodel.TypeRelation:
		return values.Value{}, connector.NewContractViolation(fmt.Sprintf("column %d: relation fields have no column value", i), nil)
	}

	return values.Value{}, connector.NewContractViolation(fmt.Sprintf("column %d: unknown type %q", i, typ), nil)
}

// DecodeIdentifier converts column i of r into a row identifier of the given
// id type. Unlike DecodeValue, NULL is an error.
func DecodeIdentifier(typ datamodel.TypeIdentifier, r connector.Row, i int) (values.Identifier, error) {
	if !typ.IsValidIDType() {
		return values.Identifier{}, connector.NewContractViolation(fmt.Sprintf("type %s cannot back an identifier", typ), nil)
	}

	v, err := DecodeValue(typ, r, i)
	if err != nil {
		return values.Identifier{}, err
	}
	if v.IsNull() {
		return values.Identifier{}, connector.NewValueDecodeError(fmt.Sprintf("column %d: identifier is NULL", i), nil)
	}

	id, err := v.AsIdentifier()
	if err != nil {
		return values.Identifier{}, connector.NewValueDecodeError(fmt.Sprintf("column %d", i), err)
	}
	return id, nil
}

// ReadRow decodes a row positionally against a projection.
func ReadRow(r connector.Row, p datamodel.Projection) (values.Node, error) {
	if r.Len() < p.Len() {
		return values.Node{}, connector.NewContractViolation(
			fmt.Sprintf("row has %d columns, projection needs %d", r.Len(), p.Len()), nil)
	}

	vals := make([]values.Value, p.Len())
	for i := range vals {
		f := p.Field(i)
		v, err := DecodeValue(f.Type, r, i)
		if err != nil {
			return values.Node{}, fmt.Errorf("failed to decode %s.%s: %w", modelName(f), f.Name, err)
		}
		vals[i] = v
	}
	return values.NewNode(p.Names(), vals), nil
}

// NodeDecoder returns a row decoder for the given projection.
func NodeDecoder(p datamodel.Projection) connector.RowDecoder[values.Node] {
	return func(r connector.Row) (values.Node, error) {
		return ReadRow(r, p)
	}
}

// IdentifierDecoder returns a row decoder reading the identifier in column 0.
func IdentifierDecoder(idField *datamodel.Field) connector.RowDecoder[values.Identifier] {
	return func(r connector.Row) (values.Identifier, error) {
		return DecodeIdentifier(idField.Type, r, 0)
	}
}

// fromUnixMillis splits a millisecond timestamp into seconds and a
// nanosecond remainder.
func fromUnixMillis(ms int64) time.Time {
	return time.Unix(ms/1000, (ms%1000)*int64(time.Millisecond)).UTC()
}

func uuidOrString(s string) values.Value {
	u, err := uuid.Parse(s)
	if err != nil {
		return values.String(s)
	}
	return values.UUID(u)
}

func asText(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	}
	return "", false
}

func decodeError(typ datamodel.TypeIdentifier, i int, raw any) error {
	return connector.NewValueDecodeError(fmt.Sprintf("column %d: cannot decode %T as %s", i, raw, typ), nil)
}

func modelName(f *datamodel.Field) string {
	if m := f.Model(); m != nil {
		return m.Name
	}
	return "?"
}
