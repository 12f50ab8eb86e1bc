// Package connector defines the contracts between the query layer and a
// relational storage connector: the read and mutation executor interfaces,
// the mutation descriptors they consume, and the error taxonomy every
// connector reports through.
//
// A connector executes every call inside exactly one transaction on one
// pooled connection. Reads stream rows to a caller-supplied decoder; any
// decoder error aborts the call and nothing is returned. Mutations return the
// identifier (or count) of the affected rows after a successful commit.
package connector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openfroyo/sqlconnector/pkg/datamodel"
	"github.com/openfroyo/sqlconnector/pkg/query"
	"github.com/openfroyo/sqlconnector/pkg/values"
)

// Row is one result row positioned for decoding. Raw returns the engine's
// native value for column i: nil, int64, float64, string, []byte, bool or
// time.Time.
type Row interface {
	Len() int
	Raw(i int) (any, error)
}

// RowDecoder converts a result row into a caller type.
type RowDecoder[T any] func(Row) (T, error)

// DatabaseExecutor runs read queries against one tenant database.
type DatabaseExecutor interface {
	// WithRows executes sel and calls fn for each row in result order. A
	// select without a database qualifier is run against dbName.
	WithRows(ctx context.Context, sel query.Select, dbName string, fn func(Row) error) error
}

// WithRows executes sel and decodes every row with decode. Either every row
// decodes and the full slice is returned, or the first error is.
func WithRows[T any](ctx context.Context, exec DatabaseExecutor, sel query.Select, dbName string, decode RowDecoder[T]) ([]T, error) {
	var out []T
	err := exec.WithRows(ctx, sel, dbName, func(r Row) error {
		v, err := decode(r)
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DatabaseMutactionExecutor applies mutations against one tenant database.
type DatabaseMutactionExecutor interface {
	ExecuteRaw(ctx context.Context, query string) (json.RawMessage, error)
	ExecuteCreate(ctx context.Context, dbName string, m *CreateNode) (values.Identifier, error)
	ExecuteUpdate(ctx context.Context, dbName string, m *UpdateNode) (values.Identifier, error)
	ExecuteUpdateMany(ctx context.Context, dbName string, m *UpdateNodes) (int, error)
	ExecuteUpsert(ctx context.Context, dbName string, m *UpsertNode) (values.Identifier, ResultType, error)
	ExecuteDelete(ctx context.Context, dbName string, m *DeleteNode) (*SingleNode, error)
}

// CreateNode inserts one row of Model and the elements of its list fields.
type CreateNode struct {
	Model       *datamodel.Model
	NonListArgs []datamodel.Arg
	ListArgs    []datamodel.ListArg
}

// UpdateNode changes the row identified by Where.
type UpdateNode struct {
	Where       datamodel.NodeSelector
	NonListArgs []datamodel.Arg
	ListArgs    []datamodel.ListArg
}

// UpdateNodes changes every row of Model matching Filter. A nil filter
// matches every row.
type UpdateNodes struct {
	Model       *datamodel.Model
	Filter      query.Condition
	NonListArgs []datamodel.Arg
	ListArgs    []datamodel.ListArg
}

// UpsertNode updates the row identified by Where or, when there is none,
// creates one. The Where selector of Update is ignored in favour of Where.
type UpsertNode struct {
	Where  datamodel.NodeSelector
	Create CreateNode
	Update UpdateNode
}

// DeleteNode removes the row identified by Where.
type DeleteNode struct {
	Where datamodel.NodeSelector
}

// SingleNode is a node returned by a mutation.
type SingleNode struct {
	Node values.Node `json:"node"`
}

// ResultType tells which branch an upsert took.
type ResultType int

const (
	ResultCreate ResultType = iota
	ResultUpdate
)

// String implements fmt.Stringer.
func (r ResultType) String() string {
	switch r {
	case ResultCreate:
		return "create"
	case ResultUpdate:
		return "update"
	default:
		return fmt.Sprintf("ResultType(%d)", int(r))
	}
}

// MarshalJSON encodes the result type as its name.
func (r ResultType) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}
