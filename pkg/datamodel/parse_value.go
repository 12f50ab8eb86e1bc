package datamodel

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/sqlconnector/pkg/values"
)

// ParseValue converts a decoded JSON scalar into a value of the field's
// declared type. raw is expected to come from a json.Decoder with UseNumber
// enabled, although plain float64 numbers are accepted too. JSON null maps to
// the null value for every type.
func (f *Field) ParseValue(raw any) (values.Value, error) {
	if raw == nil {
		return values.Null(), nil
	}

	switch f.Type {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return values.Value{}, f.typeMismatch(raw)
		}
		return values.String(s), nil

	case TypeEnum:
		s, ok := raw.(string)
		if !ok {
			return values.Value{}, f.typeMismatch(raw)
		}
		if len(f.EnumValues) > 0 && !slices.Contains(f.EnumValues, s) {
			return values.Value{}, fmt.Errorf("field %s: %q is not one of %v", f.Name, s, f.EnumValues)
		}
		return values.Enum(s), nil

	case TypeInt:
		i, err := toInt(raw)
		if err != nil {
			return values.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return values.Int(i), nil

	case TypeFloat:
		switch n := raw.(type) {
		case json.Number:
			fl, err := n.Float64()
			if err != nil {
				return values.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
			}
			return values.Float(fl), nil
		case float64:
			return values.Float(n), nil
		}
		return values.Value{}, f.typeMismatch(raw)

	case TypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return values.Value{}, f.typeMismatch(raw)
		}
		return values.Boolean(b), nil

	case TypeUUID:
		s, ok := raw.(string)
		if !ok {
			return values.Value{}, f.typeMismatch(raw)
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return values.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return values.UUID(u), nil

	case TypeGraphQLID:
		switch v := raw.(type) {
		case string:
			return values.ID(values.StringID(v)), nil
		case json.Number, float64:
			i, err := toInt(v)
			if err != nil {
				return values.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
			}
			return values.ID(values.IntID(i)), nil
		}
		return values.Value{}, f.typeMismatch(raw)

	case TypeDateTime:
		switch v := raw.(type) {
		case string:
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return values.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
			}
			return values.DateTime(t), nil
		case json.Number, float64:
			ms, err := toInt(v)
			if err != nil {
				return values.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
			}
			return values.DateTime(time.UnixMilli(ms)), nil
		}
		return values.Value{}, f.typeMismatch(raw)

	case TypeJSON:
		doc, err := json.Marshal(raw)
		if err != nil {
			return values.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return values.JSON(doc), nil
	}

	return values.Value{}, fmt.Errorf("field %s: type %s has no value representation", f.Name, f.Type)
}

func (f *Field) typeMismatch(raw any) error {
	return fmt.Errorf("field %s: cannot use %T as %s", f.Name, raw, f.Type)
}

func toInt(raw any) (int64, error) {
	switch n := raw.(type) {
	case json.Number:
		return n.Int64()
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	}
	return 0, fmt.Errorf("cannot use %T as an integer", raw)
}
