package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfroyo/sqlconnector/pkg/datamodel"
	"github.com/openfroyo/sqlconnector/pkg/query"
	"github.com/openfroyo/sqlconnector/pkg/values"
)

// decodeObject parses a JSON object. A leading '@' reads the object from the
// named file, "@-" from stdin. Numbers are kept as json.Number so integer
// fields keep their precision.
func decodeObject(cmd *cobra.Command, input string) (map[string]any, error) {
	data := []byte(input)
	if name, ok := strings.CutPrefix(input, "@"); ok {
		var err error
		if name == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(name)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	return obj, nil
}

// parseArgs splits an object into scalar and list arguments of m. Keys are
// processed in sorted order.
func parseArgs(m *datamodel.Model, obj map[string]any) ([]datamodel.Arg, []datamodel.ListArg, error) {
	var (
		args  []datamodel.Arg
		lists []datamodel.ListArg
	)
	for _, name := range slices.Sorted(maps.Keys(obj)) {
		f, err := m.FindField(name)
		if err != nil {
			return nil, nil, err
		}
		if f.Kind() == datamodel.FieldKindRelation {
			return nil, nil, fmt.Errorf("field %s.%s is a relation", m.Name, name)
		}

		if !f.IsList {
			v, err := f.ParseValue(obj[name])
			if err != nil {
				return nil, nil, err
			}
			args = append(args, datamodel.Arg{Name: name, Value: v})
			continue
		}

		raw, ok := obj[name].([]any)
		if !ok {
			return nil, nil, fmt.Errorf("field %s.%s expects a JSON array", m.Name, name)
		}
		list := datamodel.ListArg{Name: name}
		for _, el := range raw {
			v, err := f.ParseValue(el)
			if err != nil {
				return nil, nil, err
			}
			list.Values = append(list.Values, v)
		}
		lists = append(lists, list)
	}
	return args, lists, nil
}

// parseSelector turns a single-key object into a node selector.
func parseSelector(m *datamodel.Model, obj map[string]any) (datamodel.NodeSelector, error) {
	if len(obj) != 1 {
		return datamodel.NodeSelector{}, errors.New("a selector must name exactly one field")
	}
	var name string
	for k := range obj {
		name = k
	}

	f, err := m.FindField(name)
	if err != nil {
		return datamodel.NodeSelector{}, err
	}
	v, err := f.ParseValue(obj[name])
	if err != nil {
		return datamodel.NodeSelector{}, err
	}
	return datamodel.NewNodeSelector(m, name, v)
}

// filterOperators maps the keys of an operator object to conditions.
var filterOperators = map[string]func(string, any) query.Condition{
	"eq":   query.Eq,
	"ne":   query.NotEq,
	"lt":   query.Lt,
	"lte":  query.Lte,
	"gt":   query.Gt,
	"gte":  query.Gte,
	"like": query.Like,
}

// parseFilter turns an object into a conjunction of conditions. A plain
// value matches by equality and JSON null matches NULL columns. An object
// value applies operators, as in {"age": {"gte": 18, "lt": 65}}. Json fields
// always compare by equality. An empty or nil object matches everything.
func parseFilter(m *datamodel.Model, obj map[string]any) (query.Condition, error) {
	if len(obj) == 0 {
		return nil, nil
	}

	conds := make([]query.Condition, 0, len(obj))
	for _, name := range slices.Sorted(maps.Keys(obj)) {
		f, err := m.FindField(name)
		if err != nil {
			return nil, err
		}
		if !f.IsScalarNonList() {
			return nil, fmt.Errorf("field %s.%s cannot be filtered on", m.Name, name)
		}

		if ops, ok := obj[name].(map[string]any); ok && f.Type != datamodel.TypeJSON {
			fieldConds, err := parseOperators(f, ops)
			if err != nil {
				return nil, fmt.Errorf("field %s.%s: %w", m.Name, name, err)
			}
			conds = append(conds, fieldConds...)
			continue
		}

		v, err := f.ParseValue(obj[name])
		if err != nil {
			return nil, err
		}
		if v.IsNull() {
			conds = append(conds, query.Null(name))
			continue
		}
		conds = append(conds, query.Eq(name, v))
	}
	return query.All(conds...), nil
}

func parseOperators(f *datamodel.Field, ops map[string]any) ([]query.Condition, error) {
	if len(ops) == 0 {
		return nil, errors.New("empty operator object")
	}

	conds := make([]query.Condition, 0, len(ops))
	for _, op := range slices.Sorted(maps.Keys(ops)) {
		raw := ops[op]
		switch op {
		case "null":
			isNull, ok := raw.(bool)
			if !ok {
				return nil, errors.New(`operator "null" expects a boolean`)
			}
			if isNull {
				conds = append(conds, query.Null(f.Name))
			} else {
				conds = append(conds, query.NotNull(f.Name))
			}

		case "in", "notIn":
			list, ok := raw.([]any)
			if !ok {
				return nil, fmt.Errorf("operator %q expects a JSON array", op)
			}
			vals := make([]values.Value, 0, len(list))
			for _, el := range list {
				v, err := f.ParseValue(el)
				if err != nil {
					return nil, err
				}
				if v.IsNull() {
					return nil, fmt.Errorf("operator %q does not accept null", op)
				}
				vals = append(vals, v)
			}
			if op == "in" {
				conds = append(conds, query.In(f.Name, vals))
			} else {
				conds = append(conds, query.NotIn(f.Name, vals))
			}

		default:
			build, ok := filterOperators[op]
			if !ok {
				return nil, fmt.Errorf("unknown operator %q", op)
			}
			v, err := f.ParseValue(raw)
			if err != nil {
				return nil, err
			}
			switch {
			case !v.IsNull():
				conds = append(conds, build(f.Name, v))
			case op == "eq":
				conds = append(conds, query.Null(f.Name))
			case op == "ne":
				conds = append(conds, query.NotNull(f.Name))
			default:
				return nil, fmt.Errorf("operator %q does not accept null", op)
			}
		}
	}
	return conds, nil
}

// optionalObject decodes input when it is set.
func optionalObject(cmd *cobra.Command, input string) (map[string]any, error) {
	if input == "" {
		return nil, nil
	}
	return decodeObject(cmd, input)
}

// writeJSON prints v as indented JSON on the command's output.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
