// Package values defines the connector's domain value model: a tagged union
// over every value a column can hold, independent of the storage engine's
// column types, plus row identifiers and decoded nodes.
package values

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Kind is the variant tag of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindIdentifier
	KindUUID
	KindInt
	KindBoolean
	KindEnum
	KindJSON
	KindFloat
	KindDateTime
)

var kindNames = map[Kind]string{
	KindNull:       "null",
	KindString:     "string",
	KindIdentifier: "identifier",
	KindUUID:       "uuid",
	KindInt:        "int",
	KindBoolean:    "boolean",
	KindEnum:       "enum",
	KindJSON:       "json",
	KindFloat:      "float",
	KindDateTime:   "datetime",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a domain value. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	i    int64
	f    float64
	b    bool
	u    uuid.UUID
	t    time.Time
	id   Identifier
	raw  json.RawMessage
}

// Null returns the null value.
func Null() Value { return Value{} }

// String creates a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Enum creates an enum symbol value.
func Enum(symbol string) Value { return Value{kind: KindEnum, str: symbol} }

// Int creates an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float creates a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Boolean creates a boolean value.
func Boolean(b bool) Value { return Value{kind: KindBoolean, b: b} }

// UUID creates a UUID value.
func UUID(u uuid.UUID) Value { return Value{kind: KindUUID, u: u} }

// ID creates an identifier value.
func ID(id Identifier) Value { return Value{kind: KindIdentifier, id: id} }

// DateTime creates a timestamp value. The time is normalised to UTC.
func DateTime(t time.Time) Value { return Value{kind: KindDateTime, t: t.UTC()} }

// JSON creates a JSON document value. The document is not validated here.
func JSON(doc json.RawMessage) Value {
	cp := make(json.RawMessage, len(doc))
	copy(cp, doc)
	return Value{kind: KindJSON, raw: cp}
}

// Kind returns the variant of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the payload of a string or enum value.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString || v.kind == KindEnum
}

// AsInt returns the payload of an integer value.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the payload of a float value.
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsBool returns the payload of a boolean value.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBoolean }

// AsUUID returns the payload of a UUID value.
func (v Value) AsUUID() (uuid.UUID, bool) { return v.u, v.kind == KindUUID }

// AsTime returns the payload of a date-time value.
func (v Value) AsTime() (time.Time, bool) { return v.t, v.kind == KindDateTime }

// AsJSON returns the payload of a JSON value.
func (v Value) AsJSON() (json.RawMessage, bool) { return v.raw, v.kind == KindJSON }

// AsIdentifier converts the value into a row identifier. Identifier, integer,
// UUID and string values convert; everything else fails.
func (v Value) AsIdentifier() (Identifier, error) {
	switch v.kind {
	case KindIdentifier:
		return v.id, nil
	case KindInt:
		return IntID(v.i), nil
	case KindUUID:
		return UUIDID(v.u), nil
	case KindString:
		return StringID(v.str), nil
	default:
		return Identifier{}, fmt.Errorf("value of kind %s cannot be used as an identifier", v.kind)
	}
}

// Arg returns the representation bound as a statement parameter.
// Date-times are stored as millisecond epoch integers, UUIDs and JSON
// documents as text, and null as SQL NULL.
func (v Value) Arg() any {
	switch v.kind {
	case KindString, KindEnum:
		return v.str
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBoolean:
		return v.b
	case KindUUID:
		return v.u.String()
	case KindIdentifier:
		return v.id.Arg()
	case KindDateTime:
		return v.t.UnixMilli()
	case KindJSON:
		return string(v.raw)
	default:
		return nil
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString, KindEnum:
		return v.str == o.str
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindBoolean:
		return v.b == o.b
	case KindUUID:
		return v.u == o.u
	case KindIdentifier:
		return v.id == o.id
	case KindDateTime:
		return v.t.Equal(o.t)
	case KindJSON:
		return string(v.raw) == string(o.raw)
	}
	return false
}

// String implements fmt.Stringer.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString, KindEnum:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.b)
	case KindUUID:
		return v.u.String()
	case KindIdentifier:
		return v.id.String()
	case KindDateTime:
		return v.t.Format(time.RFC3339Nano)
	case KindJSON:
		return string(v.raw)
	}
	return ""
}

// MarshalJSON encodes the payload as its natural JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString, KindEnum:
		return json.Marshal(v.str)
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindBoolean:
		return json.Marshal(v.b)
	case KindUUID:
		return json.Marshal(v.u.String())
	case KindIdentifier:
		return v.id.MarshalJSON()
	case KindDateTime:
		return json.Marshal(v.t.Format(time.RFC3339Nano))
	case KindJSON:
		if len(v.raw) == 0 {
			return []byte("null"), nil
		}
		return v.raw, nil
	}
	return nil, fmt.Errorf("cannot marshal value of kind %s", v.kind)
}
