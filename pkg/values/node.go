package values

import (
	"bytes"
	"encoding/json"
)

// Node is one decoded row: values in projection order, keyed by field name.
type Node struct {
	Fields []string
	Values []Value
}

// NewNode creates a node. fields and vals must have the same length.
func NewNode(fields []string, vals []Value) Node {
	return Node{Fields: fields, Values: vals}
}

// Get returns the value of the named field.
func (n Node) Get(field string) (Value, bool) {
	for i, name := range n.Fields {
		if name == field && i < len(n.Values) {
			return n.Values[i], true
		}
	}
	return Value{}, false
}

// MarshalJSON encodes the node as an object preserving field order.
func (n Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range n.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var val Value
		if i < len(n.Values) {
			val = n.Values[i]
		}
		encoded, err := val.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
