package datamodel

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/sqlconnector/pkg/values"
)

const userModelYAML = `
models:
  - name: User
    fields:
      - name: id
        type: Int
        id: true
      - name: name
        type: String
        required: true
      - name: email
        type: String
      - name: role
        type: Enum
        enum: [ADMIN, MEMBER]
      - name: tags
        type: String
        list: true
      - name: posts
        type: Relation
        relatedModel: Post
        list: true
  - name: Post
    fields:
      - name: id
        type: UUID
        id: true
      - name: title
        type: String
`

func TestParse(t *testing.T) {
	dm, err := Parse([]byte(userModelYAML))
	require.NoError(t, err)
	require.Len(t, dm.Models, 2)

	user, err := dm.Model("User")
	require.NoError(t, err)
	assert.Equal(t, "id", user.IDField().Name)

	scalars := user.ScalarFields()
	names := make([]string, len(scalars))
	for i, f := range scalars {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"id", "name", "email", "role"}, names)

	lists := user.ScalarListFields()
	require.Len(t, lists, 1)
	assert.Equal(t, "User_tags", lists[0].ScalarListTable().Name)

	posts, err := user.FindField("posts")
	require.NoError(t, err)
	assert.Equal(t, FieldKindRelation, posts.Kind())
	assert.Same(t, user, posts.Model())

	_, err = dm.Model("Comment")
	assert.Error(t, err)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "no models",
			doc:  "models: []",
		},
		{
			name: "bad identifier",
			doc: `
models:
  - name: "User Table"
    fields:
      - {name: id, type: Int, id: true}
`,
		},
		{
			name: "unknown type",
			doc: `
models:
  - name: User
    fields:
      - {name: id, type: Long, id: true}
`,
		},
		{
			name: "missing id",
			doc: `
models:
  - name: User
    fields:
      - {name: name, type: String}
`,
		},
		{
			name: "two ids",
			doc: `
models:
  - name: User
    fields:
      - {name: id, type: Int, id: true}
      - {name: key, type: String, id: true}
`,
		},
		{
			name: "float id",
			doc: `
models:
  - name: User
    fields:
      - {name: id, type: Float, id: true}
`,
		},
		{
			name: "dangling relation",
			doc: `
models:
  - name: User
    fields:
      - {name: id, type: Int, id: true}
      - {name: posts, type: Relation, relatedModel: Post}
`,
		},
		{
			name: "enum without values",
			doc: `
models:
  - name: User
    fields:
      - {name: id, type: Int, id: true}
      - {name: role, type: Enum}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datamodel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(userModelYAML), 0o600))

	dm, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, dm.Models, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewModel(t *testing.T) {
	m, err := NewModel("Tag",
		&Field{Name: "id", Type: TypeString, IsID: true},
		&Field{Name: "label", Type: TypeString},
	)
	require.NoError(t, err)
	assert.Equal(t, "id", m.IDField().Name)

	_, err = NewModel("Tag",
		&Field{Name: "id", Type: TypeString, IsID: true},
		&Field{Name: "id", Type: TypeString},
	)
	assert.Error(t, err)
}

func TestProjectionDropsNonScalars(t *testing.T) {
	dm, err := Parse([]byte(userModelYAML))
	require.NoError(t, err)
	user, _ := dm.Model("User")

	p := ScalarProjection(user)
	assert.Equal(t, []string{"id", "name", "email", "role"}, p.Names())

	tags, _ := user.FindField("tags")
	posts, _ := user.FindField("posts")
	name, _ := user.FindField("name")
	p = NewProjection(tags, posts, name, nil)
	assert.Equal(t, 1, p.Len())
	assert.Same(t, name, p.Field(0))

	assert.Equal(t, []string{"id"}, IDProjection(user).Names())
}

func TestNewNodeSelector(t *testing.T) {
	dm, err := Parse([]byte(userModelYAML))
	require.NoError(t, err)
	user, _ := dm.Model("User")

	sel, err := NewNodeSelector(user, "email", values.String("a@b.c"))
	require.NoError(t, err)
	assert.Same(t, user, sel.Model())

	_, err = NewNodeSelector(user, "tags", values.String("x"))
	assert.Error(t, err)

	_, err = NewNodeSelector(user, "nope", values.String("x"))
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	tests := []struct {
		name    string
		field   Field
		raw     any
		want    values.Value
		wantErr bool
	}{
		{"null", Field{Name: "x", Type: TypeInt}, nil, values.Null(), false},
		{"string", Field{Name: "x", Type: TypeString}, "hi", values.String("hi"), false},
		{"string mismatch", Field{Name: "x", Type: TypeString}, true, values.Value{}, true},
		{"int", Field{Name: "x", Type: TypeInt}, json.Number("12"), values.Int(12), false},
		{"int from float64", Field{Name: "x", Type: TypeInt}, float64(3), values.Int(3), false},
		{"int fraction", Field{Name: "x", Type: TypeInt}, json.Number("1.5"), values.Value{}, true},
		{"float", Field{Name: "x", Type: TypeFloat}, json.Number("1.5"), values.Float(1.5), false},
		{"boolean", Field{Name: "x", Type: TypeBoolean}, false, values.Boolean(false), false},
		{"enum", Field{Name: "x", Type: TypeEnum, EnumValues: []string{"A", "B"}}, "B", values.Enum("B"), false},
		{"enum outside set", Field{Name: "x", Type: TypeEnum, EnumValues: []string{"A"}}, "C", values.Value{}, true},
		{"datetime text", Field{Name: "x", Type: TypeDateTime}, "2024-05-06T07:08:09Z", values.DateTime(ts), false},
		{"datetime millis", Field{Name: "x", Type: TypeDateTime}, json.Number("1714979289000"), values.DateTime(ts), false},
		{"graphql id int", Field{Name: "x", Type: TypeGraphQLID}, json.Number("5"), values.ID(values.IntID(5)), false},
		{"graphql id string", Field{Name: "x", Type: TypeGraphQLID}, "c5", values.ID(values.StringID("c5")), false},
		{"uuid invalid", Field{Name: "x", Type: TypeUUID}, "nope", values.Value{}, true},
		{"json object", Field{Name: "x", Type: TypeJSON}, map[string]any{"a": json.Number("1")}, values.JSON(json.RawMessage(`{"a":1}`)), false},
		{"relation", Field{Name: "x", Type: TypeRelation}, "1", values.Value{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.field.ParseValue(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
		})
	}
}
