package stores

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/openfroyo/sqlconnector/pkg/connector"
	"github.com/openfroyo/sqlconnector/pkg/datamodel"
	"github.com/openfroyo/sqlconnector/pkg/query"
	"github.com/openfroyo/sqlconnector/pkg/stores/storetest"
	"github.com/openfroyo/sqlconnector/pkg/values"
)

const testTenant = "tenant_a"

type fixture struct {
	s    *SQLite
	root string
	user *datamodel.Model
	doc  *datamodel.Model
	lbl  *datamodel.Model
}

// setupTestConnector provisions testTenant in a temporary root and opens a
// connector over it.
func setupTestConnector(t *testing.T, cfg Config) *fixture {
	t.Helper()

	if cfg.RootPath == "" {
		cfg.RootPath = t.TempDir()
	}
	storetest.MustProvision(t, cfg.RootPath, testTenant)

	s, err := NewSQLite(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	dm := storetest.MustDatamodel(t)
	f := &fixture{s: s, root: cfg.RootPath}
	f.user, err = dm.Model("User")
	require.NoError(t, err)
	f.doc, err = dm.Model("Document")
	require.NoError(t, err)
	f.lbl, err = dm.Model("Label")
	require.NoError(t, err)
	return f
}

func strs(ss ...string) []values.Value {
	out := make([]values.Value, len(ss))
	for i, s := range ss {
		out[i] = values.String(s)
	}
	return out
}

func selector(t *testing.T, m *datamodel.Model, field string, v values.Value) datamodel.NodeSelector {
	t.Helper()

	sel, err := datamodel.NewNodeSelector(m, field, v)
	require.NoError(t, err)
	return sel
}

func (f *fixture) createUser(t *testing.T, name string, tags ...string) values.Identifier {
	t.Helper()

	m := &connector.CreateNode{
		Model:       f.user,
		NonListArgs: []datamodel.Arg{{Name: "name", Value: values.String(name)}},
	}
	if tags != nil {
		m.ListArgs = []datamodel.ListArg{{Name: "tags", Values: strs(tags...)}}
	}
	id, err := f.s.ExecuteCreate(context.Background(), testTenant, m)
	require.NoError(t, err)
	return id
}

func (f *fixture) tags(t *testing.T, id values.Identifier) []string {
	t.Helper()

	field, err := f.user.FindField("tags")
	require.NoError(t, err)
	lists, err := f.s.ReadListValues(context.Background(), testTenant, field, []values.Identifier{id})
	require.NoError(t, err)

	var out []string
	for _, v := range lists[id] {
		s, ok := v.AsString()
		require.True(t, ok)
		out = append(out, s)
	}
	return out
}

// tableRows counts the rows of a tenant table.
func (f *fixture) tableRows(t *testing.T, table, column string) int {
	t.Helper()

	n := 0
	sel := query.Select{Table: query.Table{Name: table}, Columns: []string{column}}
	err := f.s.WithRows(context.Background(), sel, testTenant, func(connector.Row) error {
		n++
		return nil
	})
	require.NoError(t, err)
	return n
}

func (f *fixture) userNode(t *testing.T, id values.Identifier) values.Node {
	t.Helper()

	n, _ := id.Int()
	node, err := f.s.GetNodeByWhere(context.Background(), testTenant, selector(t, f.user, "id", values.Int(n)))
	require.NoError(t, err)
	return node
}

func TestConnectorLifecycle(t *testing.T) {
	s, err := NewSQLite(Config{RootPath: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, DefaultConnectionLimit, s.Config().ConnectionLimit)
	require.NoError(t, s.HealthCheck(context.Background()))
	require.NoError(t, s.Close())

	_, err = NewSQLite(Config{ConnectionLimit: -1})
	assert.Error(t, err)
}

func TestAttachCreatesTenantFile(t *testing.T) {
	root := t.TempDir()
	s, err := NewSQLite(Config{RootPath: root})
	require.NoError(t, err)
	defer s.Close()

	sel := query.Select{Table: query.Table{Name: "sqlite_master"}, Columns: []string{"name"}}
	err = s.WithRows(context.Background(), sel, "fresh", func(connector.Row) error { return nil })
	require.NoError(t, err)

	_, err = os.Stat(storetest.DatabasePath(root, "fresh"))
	assert.NoError(t, err)
	assert.Equal(t, storetest.DatabasePath(root, "fresh"), s.DatabasePath("fresh"))
}

func TestInvalidDatabaseName(t *testing.T) {
	f := setupTestConnector(t, Config{})

	_, err := f.s.ExecuteCreate(context.Background(), "bad name; DROP", &connector.CreateNode{Model: f.user})
	assert.True(t, connector.IsContractViolation(err))
}

func TestCreateWithListArgs(t *testing.T) {
	f := setupTestConnector(t, Config{})

	id := f.createUser(t, "Ada", "a", "b")
	assert.Equal(t, values.IDKindInt, id.Kind())

	node, err := f.s.GetNodeByWhere(context.Background(), testTenant, selector(t, f.user, "name", values.String("Ada")))
	require.NoError(t, err)
	got, ok := node.Get("id")
	require.True(t, ok)
	resolved, err := got.AsIdentifier()
	require.NoError(t, err)
	assert.Equal(t, id, resolved)

	assert.Equal(t, []string{"a", "b"}, f.tags(t, id))
}

func TestCreateListKeepsInputOrder(t *testing.T) {
	f := setupTestConnector(t, Config{})

	in := []string{"zeta", "alpha", "mid", "alpha"}
	id := f.createUser(t, "Grace", in...)
	assert.Equal(t, in, f.tags(t, id))
	assert.Equal(t, len(in), f.tableRows(t, "User_tags", "nodeId"))
}

func TestCreateEmptyListWritesNothing(t *testing.T) {
	f := setupTestConnector(t, Config{})

	f.createUser(t, "Ada", []string{}...)
	assert.Equal(t, 0, f.tableRows(t, "User_tags", "nodeId"))
}

func TestCreateGeneratedIDs(t *testing.T) {
	f := setupTestConnector(t, Config{})
	ctx := context.Background()

	docID, err := f.s.ExecuteCreate(ctx, testTenant, &connector.CreateNode{
		Model:       f.doc,
		NonListArgs: []datamodel.Arg{{Name: "title", Value: values.String("design notes")}},
		ListArgs:    []datamodel.ListArg{{Name: "scores", Values: []values.Value{values.Float(0.5), values.Float(2)}}},
	})
	require.NoError(t, err)
	require.Equal(t, values.IDKindUUID, docID.Kind())

	u, _ := docID.UUID()
	node, err := f.s.GetNodeByWhere(ctx, testTenant, selector(t, f.doc, "id", values.UUID(u)))
	require.NoError(t, err)
	title, _ := node.Get("title")
	assert.Equal(t, "design notes", title.String())

	scores, err := f.doc.FindField("scores")
	require.NoError(t, err)
	lists, err := f.s.ReadListValues(ctx, testTenant, scores, []values.Identifier{docID})
	require.NoError(t, err)
	require.Len(t, lists[docID], 2)
	assert.True(t, values.Float(0.5).Equal(lists[docID][0]))
	assert.True(t, values.Float(2).Equal(lists[docID][1]))

	lblID, err := f.s.ExecuteCreate(ctx, testTenant, &connector.CreateNode{Model: f.lbl})
	require.NoError(t, err)
	assert.Equal(t, values.IDKindString, lblID.Kind())

	given := values.StringID("lbl-given")
	lblID, err = f.s.ExecuteCreate(ctx, testTenant, &connector.CreateNode{
		Model:       f.lbl,
		NonListArgs: []datamodel.Arg{{Name: "id", Value: given.Value()}},
	})
	require.NoError(t, err)
	assert.Equal(t, given, lblID)
}

func TestCreateIsAtomic(t *testing.T) {
	f := setupTestConnector(t, Config{})

	_, err := f.s.ExecuteCreate(context.Background(), testTenant, &connector.CreateNode{
		Model:       f.user,
		NonListArgs: []datamodel.Arg{{Name: "name", Value: values.String("Ada")}},
		ListArgs:    []datamodel.ListArg{{Name: "nicknames", Values: strs("x")}},
	})
	require.Error(t, err)
	assert.True(t, connector.IsContractViolation(err))

	assert.Equal(t, 0, f.tableRows(t, "User", "id"))
}

func TestCreateConstraintViolation(t *testing.T) {
	f := setupTestConnector(t, Config{})

	_, err := f.s.ExecuteCreate(context.Background(), testTenant, &connector.CreateNode{
		Model:       f.user,
		NonListArgs: []datamodel.Arg{{Name: "name", Value: values.Null()}},
	})
	require.Error(t, err)
	assert.True(t, connector.IsDriverError(err))

	var ce *connector.ConnectorError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, OpCreate, ce.Operation)
}

func TestUpdateReplacesListWithEmpty(t *testing.T) {
	f := setupTestConnector(t, Config{})
	id := f.createUser(t, "Ada", "a", "b")

	got, err := f.s.ExecuteUpdate(context.Background(), testTenant, &connector.UpdateNode{
		Where:    selector(t, f.user, "name", values.String("Ada")),
		ListArgs: []datamodel.ListArg{{Name: "tags", Values: nil}},
	})
	require.NoError(t, err)
	assert.Equal(t, id, got)

	assert.Empty(t, f.tags(t, id))
	assert.Equal(t, 0, f.tableRows(t, "User_tags", "nodeId"))
}

func TestUpdateListOnFieldWithoutValues(t *testing.T) {
	f := setupTestConnector(t, Config{})
	id := f.createUser(t, "Ada")

	_, err := f.s.ExecuteUpdate(context.Background(), testTenant, &connector.UpdateNode{
		Where:    selector(t, f.user, "name", values.String("Ada")),
		ListArgs: []datamodel.ListArg{{Name: "tags", Values: strs("x", "y")}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, f.tags(t, id))
}

func TestUpdateIsIdempotent(t *testing.T) {
	f := setupTestConnector(t, Config{})
	id := f.createUser(t, "Ada", "a")

	update := &connector.UpdateNode{
		Where: selector(t, f.user, "name", values.String("Ada")),
		NonListArgs: []datamodel.Arg{
			{Name: "age", Value: values.Int(36)},
			{Name: "role", Value: values.Enum("ADMIN")},
		},
		ListArgs: []datamodel.ListArg{{Name: "tags", Values: strs("b", "c")}},
	}

	_, err := f.s.ExecuteUpdate(context.Background(), testTenant, update)
	require.NoError(t, err)
	first := f.userNode(t, id)
	firstTags := f.tags(t, id)

	_, err = f.s.ExecuteUpdate(context.Background(), testTenant, update)
	require.NoError(t, err)
	second := f.userNode(t, id)

	assert.Equal(t, first, second)
	assert.Equal(t, firstTags, f.tags(t, id))
	assert.Equal(t, []string{"b", "c"}, firstTags)
	assert.Equal(t, 2, f.tableRows(t, "User_tags", "nodeId"))
}

func TestUpdateUnresolvedSelector(t *testing.T) {
	f := setupTestConnector(t, Config{})

	_, err := f.s.ExecuteUpdate(context.Background(), testTenant, &connector.UpdateNode{
		Where:       selector(t, f.user, "name", values.String("nobody")),
		NonListArgs: []datamodel.Arg{{Name: "age", Value: values.Int(1)}},
	})
	require.Error(t, err)
	assert.True(t, connector.IsSelectorUnresolved(err))
	assert.Equal(t, connector.ErrorClassSelectorUnresolved, connector.ClassOf(err))

	var su *connector.SelectorUnresolvedError
	require.True(t, errors.As(err, &su))
	assert.Equal(t, "User", su.Model)
	assert.Equal(t, "name", su.Field)
	assert.Equal(t, "nobody", su.Value.String())
}

func TestUpsert(t *testing.T) {
	f := setupTestConnector(t, Config{})
	ctx := context.Background()

	email := values.String("x@y.z")
	upsert := &connector.UpsertNode{
		Where: selector(t, f.user, "email", email),
		Create: connector.CreateNode{
			NonListArgs: []datamodel.Arg{
				{Name: "name", Value: values.String("X")},
				{Name: "email", Value: email},
			},
		},
		Update: connector.UpdateNode{
			NonListArgs: []datamodel.Arg{{Name: "age", Value: values.Int(7)}},
		},
	}

	created, result, err := f.s.ExecuteUpsert(ctx, testTenant, upsert)
	require.NoError(t, err)
	assert.Equal(t, connector.ResultCreate, result)

	updated, result, err := f.s.ExecuteUpsert(ctx, testTenant, upsert)
	require.NoError(t, err)
	assert.Equal(t, connector.ResultUpdate, result)
	assert.Equal(t, created, updated)

	node := f.userNode(t, created)
	age, _ := node.Get("age")
	assert.True(t, values.Int(7).Equal(age))
	assert.Equal(t, 1, f.tableRows(t, "User", "id"))
}

func TestUpsertPropagatesOtherErrors(t *testing.T) {
	f := setupTestConnector(t, Config{})
	f.createUser(t, "Ada")

	// A missing table fails resolution with a driver error, which must not
	// be mistaken for an unresolved selector.
	ghost, err := datamodel.NewModel("Ghost",
		&datamodel.Field{Name: "id", Type: datamodel.TypeInt, IsID: true},
		&datamodel.Field{Name: "name", Type: datamodel.TypeString},
	)
	require.NoError(t, err)

	_, _, err = f.s.ExecuteUpsert(context.Background(), testTenant, &connector.UpsertNode{
		Where:  selector(t, ghost, "name", values.String("Ada")),
		Create: connector.CreateNode{NonListArgs: []datamodel.Arg{{Name: "name", Value: values.String("Ada")}}},
	})
	require.Error(t, err)
	assert.True(t, connector.IsDriverError(err))
	assert.False(t, connector.IsSelectorUnresolved(err))
}

func TestUpdateManyCount(t *testing.T) {
	f := setupTestConnector(t, Config{})
	ctx := context.Background()

	for i, name := range []string{"a", "b", "c"} {
		_, err := f.s.ExecuteCreate(ctx, testTenant, &connector.CreateNode{
			Model: f.user,
			NonListArgs: []datamodel.Arg{
				{Name: "name", Value: values.String(name)},
				{Name: "age", Value: values.Int(int64(20 + i))},
			},
		})
		require.NoError(t, err)
	}

	count, err := f.s.ExecuteUpdateMany(ctx, testTenant, &connector.UpdateNodes{
		Model:  f.user,
		Filter: query.Gte("age", values.Int(21)),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = f.s.ExecuteUpdateMany(ctx, testTenant, &connector.UpdateNodes{
		Model:       f.user,
		NonListArgs: []datamodel.Arg{{Name: "active", Value: values.Boolean(true)}},
		ListArgs:    []datamodel.ListArg{{Name: "tags", Values: strs("bulk")}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 3, f.tableRows(t, "User_tags", "nodeId"))

	nodes, err := f.s.GetNodes(ctx, testTenant, f.user, query.Arguments{
		Filter: query.Eq("active", values.Boolean(true)),
	})
	require.NoError(t, err)
	assert.Len(t, nodes, 3)

	count, err = f.s.ExecuteUpdateMany(ctx, testTenant, &connector.UpdateNodes{
		Model:       f.user,
		Filter:      query.Eq("name", values.String("nobody")),
		NonListArgs: []datamodel.Arg{{Name: "age", Value: values.Int(1)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestValueRoundTrip(t *testing.T) {
	f := setupTestConnector(t, Config{})
	ctx := context.Background()

	ext := uuid.MustParse("0b7a4f5e-52c4-4f5e-9a0b-6c3f2f1f8f11")
	created := time.Date(2024, 5, 6, 7, 8, 9, 123000000, time.UTC)
	args := []datamodel.Arg{
		{Name: "name", Value: values.String("Ada")},
		{Name: "email", Value: values.String("ada@example.com")},
		{Name: "age", Value: values.Int(36)},
		{Name: "score", Value: values.Float(9.75)},
		{Name: "active", Value: values.Boolean(true)},
		{Name: "role", Value: values.Enum("MEMBER")},
		{Name: "profile", Value: values.JSON(json.RawMessage(`{"lang":"en","langs":2}`))},
		{Name: "createdAt", Value: values.DateTime(created)},
		{Name: "externalId", Value: values.UUID(ext)},
		{Name: "ref", Value: values.ID(values.StringID("ref-1"))},
	}

	id, err := f.s.ExecuteCreate(ctx, testTenant, &connector.CreateNode{Model: f.user, NonListArgs: args})
	require.NoError(t, err)

	node := f.userNode(t, id)
	for _, a := range args {
		got, ok := node.Get(a.Name)
		require.True(t, ok, a.Name)
		assert.True(t, a.Value.Equal(got), "%s: want %s (%s), got %s (%s)", a.Name, a.Value, a.Value.Kind(), got, got.Kind())
	}
}

func TestNullRoundTrip(t *testing.T) {
	f := setupTestConnector(t, Config{})
	ctx := context.Background()

	nullable := []string{"email", "age", "score", "active", "role", "profile", "createdAt", "externalId", "ref"}
	args := []datamodel.Arg{{Name: "name", Value: values.String("Ada")}}
	for _, name := range nullable {
		args = append(args, datamodel.Arg{Name: name, Value: values.Null()})
	}

	id, err := f.s.ExecuteCreate(ctx, testTenant, &connector.CreateNode{Model: f.user, NonListArgs: args})
	require.NoError(t, err)

	node := f.userNode(t, id)
	for _, name := range nullable {
		got, ok := node.Get(name)
		require.True(t, ok, name)
		assert.True(t, got.IsNull(), "%s: got %s", name, got)
	}

	// Nulling previously set values reads back as null too.
	_, err = f.s.ExecuteUpdate(ctx, testTenant, &connector.UpdateNode{
		Where: selector(t, f.user, "name", values.String("Ada")),
		NonListArgs: []datamodel.Arg{
			{Name: "age", Value: values.Int(3)},
			{Name: "createdAt", Value: values.DateTime(time.Now())},
		},
	})
	require.NoError(t, err)
	_, err = f.s.ExecuteUpdate(ctx, testTenant, &connector.UpdateNode{
		Where: selector(t, f.user, "name", values.String("Ada")),
		NonListArgs: []datamodel.Arg{
			{Name: "age", Value: values.Null()},
			{Name: "createdAt", Value: values.Null()},
		},
	})
	require.NoError(t, err)

	node = f.userNode(t, id)
	for _, name := range []string{"age", "createdAt"} {
		got, _ := node.Get(name)
		assert.True(t, got.IsNull(), name)
	}

	// Null list elements survive too.
	_, err = f.s.ExecuteUpdate(ctx, testTenant, &connector.UpdateNode{
		Where:    selector(t, f.user, "name", values.String("Ada")),
		ListArgs: []datamodel.ListArg{{Name: "tags", Values: []values.Value{values.Null(), values.String("x")}}},
	})
	require.NoError(t, err)
	field, _ := f.user.FindField("tags")
	lists, err := f.s.ReadListValues(ctx, testTenant, field, []values.Identifier{id})
	require.NoError(t, err)
	require.Len(t, lists[id], 2)
	assert.True(t, lists[id][0].IsNull())
}

func TestReadsHonourArguments(t *testing.T) {
	f := setupTestConnector(t, Config{})
	for _, name := range []string{"d", "b", "a", "c"} {
		f.createUser(t, name)
	}

	nodes, err := f.s.GetNodes(context.Background(), testTenant, f.user, query.Arguments{
		OrderBy: []query.OrderBy{query.Desc("name")},
		Skip:    1,
		First:   2,
	})
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	var names []string
	for _, n := range nodes {
		v, _ := n.Get("name")
		names = append(names, v.String())
	}
	assert.Equal(t, []string{"c", "b"}, names)

	nodes, err = f.s.GetNodes(context.Background(), testTenant, f.user, query.Arguments{
		Filter: query.Any(query.Eq("name", values.String("a")), query.Eq("name", values.String("d"))),
	})
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestWithRowsDecodeFailureReturnsNothing(t *testing.T) {
	f := setupTestConnector(t, Config{})
	f.createUser(t, "a")
	f.createUser(t, "b")

	boom := errors.New("boom")
	calls := 0
	sel := query.NewQueryBuilder("").GetNodes(f.user, query.Arguments{}, datamodel.ScalarProjection(f.user))
	nodes, err := connector.WithRows(context.Background(), f.s, sel, testTenant, func(r connector.Row) (values.Node, error) {
		calls++
		if calls == 2 {
			return values.Node{}, boom
		}
		return ReadRow(r, datamodel.ScalarProjection(f.user))
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, nodes)
}

func TestFailingStatementRollsBack(t *testing.T) {
	f := setupTestConnector(t, Config{})
	ctx := context.Background()

	mb := query.NewMutationBuilder("")
	insert := func(name values.Value) query.Statement {
		ins, _, err := mb.CreateNode(f.user, []datamodel.Arg{{Name: "name", Value: name}})
		require.NoError(t, err)
		return ins
	}

	err := f.s.withTransaction(ctx, testTenant, func(tx *Tx) error {
		return tx.executeMany(ctx, []query.Statement{
			insert(values.String("first")),
			insert(values.Null()), // violates NOT NULL
			insert(values.String("third")),
		})
	})
	require.Error(t, err)
	assert.True(t, connector.IsDriverError(err))

	assert.Equal(t, 0, f.tableRows(t, "User", "id"))
}

func TestUnitOfWorkErrorRollsBack(t *testing.T) {
	f := setupTestConnector(t, Config{})
	ctx := context.Background()

	sentinel := errors.New("stop")
	err := f.s.withTransaction(ctx, testTenant, func(tx *Tx) error {
		ins, _, err := tx.mutations.CreateNode(f.user, []datamodel.Arg{{Name: "name", Value: values.String("Ada")}})
		if err != nil {
			return err
		}
		if _, err := tx.executeOne(ctx, ins); err != nil {
			return err
		}
		return sentinel
	})
	assert.Same(t, sentinel, err)
	assert.Equal(t, 0, f.tableRows(t, "User", "id"))
}

func TestDeleteAndRawNotSupported(t *testing.T) {
	f := setupTestConnector(t, Config{})
	ctx := context.Background()
	f.createUser(t, "Ada")

	node, err := f.s.ExecuteDelete(ctx, testTenant, &connector.DeleteNode{
		Where: selector(t, f.user, "name", values.String("Ada")),
	})
	assert.Nil(t, node)
	assert.True(t, connector.IsContractViolation(err))
	assert.ErrorIs(t, err, connector.ErrNotSupported)
	assert.Equal(t, 1, f.tableRows(t, "User", "id"))

	raw, err := f.s.ExecuteRaw(ctx, `DELETE FROM "User"`)
	assert.Nil(t, raw)
	assert.ErrorIs(t, err, connector.ErrNotSupported)
	assert.Equal(t, 1, f.tableRows(t, "User", "id"))
}

func TestNilDescriptors(t *testing.T) {
	f := setupTestConnector(t, Config{})
	ctx := context.Background()

	_, err := f.s.ExecuteCreate(ctx, testTenant, nil)
	assert.True(t, connector.IsContractViolation(err))
	_, err = f.s.ExecuteUpdate(ctx, testTenant, &connector.UpdateNode{})
	assert.True(t, connector.IsContractViolation(err))
	_, err = f.s.ExecuteUpdateMany(ctx, testTenant, nil)
	assert.True(t, connector.IsContractViolation(err))
	_, _, err = f.s.ExecuteUpsert(ctx, testTenant, nil)
	assert.True(t, connector.IsContractViolation(err))
}

func attachedOn(t *testing.T, conn *sql.Conn) map[string]bool {
	t.Helper()

	attached, err := attachedDatabases(context.Background(), conn)
	require.NoError(t, err)
	return attached
}

func TestAttachmentStaysOnConnection(t *testing.T) {
	f := setupTestConnector(t, Config{ConnectionLimit: 1})
	f.createUser(t, "Ada")

	conn, err := f.s.db.Conn(context.Background())
	require.NoError(t, err)
	defer conn.Close()
	assert.True(t, attachedOn(t, conn)[testTenant])
}

func TestTestModeDetaches(t *testing.T) {
	f := setupTestConnector(t, Config{ConnectionLimit: 1, TestMode: true})
	f.createUser(t, "Ada")
	assert.Equal(t, 1, f.tableRows(t, "User", "id"))

	conn, err := f.s.db.Conn(context.Background())
	require.NoError(t, err)
	defer conn.Close()
	assert.False(t, attachedOn(t, conn)[testTenant])
}

func TestPoolExhaustion(t *testing.T) {
	f := setupTestConnector(t, Config{ConnectionLimit: 1, AcquireTimeout: 50 * time.Millisecond})

	held, err := f.s.db.Conn(context.Background())
	require.NoError(t, err)

	_, err = f.s.ExecuteCreate(context.Background(), testTenant, &connector.CreateNode{
		Model:       f.user,
		NonListArgs: []datamodel.Arg{{Name: "name", Value: values.String("Ada")}},
	})
	require.Error(t, err)
	assert.True(t, connector.IsPoolExhaustion(err))

	require.NoError(t, held.Close())
	f.createUser(t, "Ada")
}

func TestConcurrentTenants(t *testing.T) {
	root := t.TempDir()
	tenants := []string{"tenant_a", "tenant_b", "tenant_c", "tenant_d"}
	storetest.MustProvision(t, root, tenants...)

	s, err := NewSQLite(Config{RootPath: root, ConnectionLimit: 4})
	require.NoError(t, err)
	defer s.Close()

	user, err := storetest.MustDatamodel(t).Model("User")
	require.NoError(t, err)

	const perTenant = 10
	g, ctx := errgroup.WithContext(context.Background())
	for _, tenant := range tenants {
		g.Go(func() error {
			for i := 0; i < perTenant; i++ {
				_, err := s.ExecuteCreate(ctx, tenant, &connector.CreateNode{
					Model: user,
					NonListArgs: []datamodel.Arg{
						{Name: "name", Value: values.String(fmt.Sprintf("%s-%d", tenant, i))},
					},
					ListArgs: []datamodel.ListArg{{Name: "tags", Values: strs(tenant)}},
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, tenant := range tenants {
		nodes, err := s.GetNodes(context.Background(), tenant, user, query.Arguments{})
		require.NoError(t, err)
		assert.Len(t, nodes, perTenant, tenant)
		for _, n := range nodes {
			name, _ := n.Get("name")
			assert.Contains(t, name.String(), tenant)
		}
	}
}

func TestConcurrentUpdatesSameTenant(t *testing.T) {
	f := setupTestConnector(t, Config{ConnectionLimit: 8})
	id := f.createUser(t, "Ada", "start")

	const writers = 32
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			_, err := f.s.ExecuteUpdate(ctx, testTenant, &connector.UpdateNode{
				Where:       selector(t, f.user, "name", values.String("Ada")),
				NonListArgs: []datamodel.Arg{{Name: "age", Value: values.Int(int64(i))}},
				ListArgs:    []datamodel.ListArg{{Name: "tags", Values: strs(fmt.Sprint(i))}},
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Len(t, f.tags(t, id), 1)
	assert.Equal(t, 1, f.tableRows(t, "User", "id"))
}

func TestConcurrentUpsertsSameSelector(t *testing.T) {
	f := setupTestConnector(t, Config{ConnectionLimit: 8})

	const writers = 16
	results := make([]connector.ResultType, writers)
	ids := make([]values.Identifier, writers)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			var err error
			ids[i], results[i], err = f.s.ExecuteUpsert(ctx, testTenant, &connector.UpsertNode{
				Where: selector(t, f.user, "email", values.String("x@y.z")),
				Create: connector.CreateNode{NonListArgs: []datamodel.Arg{
					{Name: "name", Value: values.String("X")},
					{Name: "email", Value: values.String("x@y.z")},
				}},
				Update: connector.UpdateNode{NonListArgs: []datamodel.Arg{
					{Name: "age", Value: values.Int(int64(i))},
				}},
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	creates := 0
	for i := range results {
		if results[i] == connector.ResultCreate {
			creates++
		}
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, creates)
	assert.Equal(t, 1, f.tableRows(t, "User", "id"))
}

func TestCreateConvertsGivenID(t *testing.T) {
	f := setupTestConnector(t, Config{})
	ctx := context.Background()

	id, err := f.s.ExecuteCreate(ctx, testTenant, &connector.CreateNode{
		Model: f.user,
		NonListArgs: []datamodel.Arg{
			{Name: "id", Value: values.String("42")},
			{Name: "name", Value: values.String("Ada")},
		},
		ListArgs: []datamodel.ListArg{{Name: "tags", Values: strs("t")}},
	})
	require.NoError(t, err)
	assert.Equal(t, values.IntID(42), id)
	assert.Equal(t, []string{"t"}, f.tags(t, id))

	u := uuid.New()
	docID, err := f.s.ExecuteCreate(ctx, testTenant, &connector.CreateNode{
		Model:       f.doc,
		NonListArgs: []datamodel.Arg{{Name: "id", Value: values.String(u.String())}},
	})
	require.NoError(t, err)
	assert.Equal(t, values.UUIDID(u), docID)

	_, err = f.s.ExecuteCreate(ctx, testTenant, &connector.CreateNode{
		Model: f.user,
		NonListArgs: []datamodel.Arg{
			{Name: "id", Value: values.String("forty-two")},
			{Name: "name", Value: values.String("Bob")},
		},
	})
	require.Error(t, err)
	assert.True(t, connector.IsContractViolation(err))
	assert.ErrorIs(t, err, query.ErrInvalidID)
}

func TestNullSelectorMatchesNullColumn(t *testing.T) {
	f := setupTestConnector(t, Config{})
	ctx := context.Background()
	id := f.createUser(t, "Ada")

	noEmail := selector(t, f.user, "email", values.Null())
	node, err := f.s.GetNodeByWhere(ctx, testTenant, noEmail)
	require.NoError(t, err)
	name, _ := node.Get("name")
	assert.Equal(t, "Ada", name.String())

	got, result, err := f.s.ExecuteUpsert(ctx, testTenant, &connector.UpsertNode{
		Where:  noEmail,
		Create: connector.CreateNode{NonListArgs: []datamodel.Arg{{Name: "name", Value: values.String("Other")}}},
		Update: connector.UpdateNode{NonListArgs: []datamodel.Arg{{Name: "age", Value: values.Int(5)}}},
	})
	require.NoError(t, err)
	assert.Equal(t, connector.ResultUpdate, result)
	assert.Equal(t, id, got)
	assert.Equal(t, 1, f.tableRows(t, "User", "id"))
}

func TestReservedDatabaseNames(t *testing.T) {
	f := setupTestConnector(t, Config{})

	for _, name := range []string{"main", "temp", "TEMP"} {
		_, err := f.s.ExecuteCreate(context.Background(), name, &connector.CreateNode{Model: f.user})
		assert.True(t, connector.IsContractViolation(err), name)

		_, err = os.Stat(storetest.DatabasePath(f.root, name))
		assert.True(t, os.IsNotExist(err), name)
	}
}
