package values

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// IDKind is the variant tag of an Identifier.
type IDKind int

const (
	IDKindInt IDKind = iota
	IDKindUUID
	IDKindString
)

// String returns the name of the identifier kind.
func (k IDKind) String() string {
	switch k {
	case IDKindInt:
		return "int"
	case IDKindUUID:
		return "uuid"
	case IDKindString:
		return "string"
	default:
		return fmt.Sprintf("IDKind(%d)", int(k))
	}
}

// Identifier uniquely addresses one row of a model's table.
// Identifiers are comparable and can be used as map keys.
type Identifier struct {
	kind IDKind
	i    int64
	u    uuid.UUID
	s    string
}

// IntID creates an integer identifier.
func IntID(i int64) Identifier {
	return Identifier{kind: IDKindInt, i: i}
}

// UUIDID creates a UUID identifier.
func UUIDID(u uuid.UUID) Identifier {
	return Identifier{kind: IDKindUUID, u: u}
}

// StringID creates a string identifier.
func StringID(s string) Identifier {
	return Identifier{kind: IDKindString, s: s}
}

// Convert returns id as an identifier of the given kind. Integers and UUIDs
// convert to their text form, and text converts back when it parses.
func (id Identifier) Convert(kind IDKind) (Identifier, error) {
	if id.kind == kind {
		return id, nil
	}

	switch kind {
	case IDKindString:
		return StringID(id.String()), nil
	case IDKindInt:
		if id.kind == IDKindString {
			if i, err := strconv.ParseInt(id.s, 10, 64); err == nil {
				return IntID(i), nil
			}
		}
	case IDKindUUID:
		if id.kind == IDKindString {
			if u, err := uuid.Parse(id.s); err == nil {
				return UUIDID(u), nil
			}
		}
	}
	return Identifier{}, fmt.Errorf("%s identifier %q cannot be used as a %s identifier", id.kind, id.String(), kind)
}

// Kind returns the identifier variant.
func (id Identifier) Kind() IDKind {
	return id.kind
}

// Int returns the integer payload and whether the identifier is an integer.
func (id Identifier) Int() (int64, bool) {
	return id.i, id.kind == IDKindInt
}

// UUID returns the UUID payload and whether the identifier is a UUID.
func (id Identifier) UUID() (uuid.UUID, bool) {
	return id.u, id.kind == IDKindUUID
}

// Str returns the string payload and whether the identifier is a string.
func (id Identifier) Str() (string, bool) {
	return id.s, id.kind == IDKindString
}

// Arg returns the value bound as a statement parameter.
// UUIDs are stored in their canonical text form.
func (id Identifier) Arg() any {
	switch id.kind {
	case IDKindInt:
		return id.i
	case IDKindUUID:
		return id.u.String()
	default:
		return id.s
	}
}

// Value wraps the identifier into a domain value.
func (id Identifier) Value() Value {
	return ID(id)
}

// String implements fmt.Stringer.
func (id Identifier) String() string {
	switch id.kind {
	case IDKindInt:
		return strconv.FormatInt(id.i, 10)
	case IDKindUUID:
		return id.u.String()
	default:
		return id.s
	}
}

// MarshalJSON encodes integer identifiers as numbers and the rest as strings.
func (id Identifier) MarshalJSON() ([]byte, error) {
	if id.kind == IDKindInt {
		return json.Marshal(id.i)
	}
	return json.Marshal(id.String())
}
