package stores_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/openfroyo/sqlconnector/pkg/connector"
	"github.com/openfroyo/sqlconnector/pkg/datamodel"
	"github.com/openfroyo/sqlconnector/pkg/stores"
	"github.com/openfroyo/sqlconnector/pkg/stores/storetest"
	"github.com/openfroyo/sqlconnector/pkg/values"
)

// exampleConnector provisions a tenant in a temporary directory.
func exampleConnector() (*stores.SQLite, *datamodel.Model, func()) {
	root, err := os.MkdirTemp("", "froyo-sql-example")
	if err != nil {
		log.Fatal(err)
	}
	if err := storetest.Provision(context.Background(), root, "tenant_a"); err != nil {
		log.Fatal(err)
	}

	s, err := stores.NewSQLite(stores.Config{RootPath: root})
	if err != nil {
		log.Fatal(err)
	}

	dm, err := storetest.Datamodel()
	if err != nil {
		log.Fatal(err)
	}
	user, err := dm.Model("User")
	if err != nil {
		log.Fatal(err)
	}

	return s, user, func() {
		_ = s.Close()
		_ = os.RemoveAll(root)
	}
}

// ExampleSQLite_ExecuteCreate creates a user with a list field and reads the
// list back.
func ExampleSQLite_ExecuteCreate() {
	s, user, cleanup := exampleConnector()
	defer cleanup()
	ctx := context.Background()

	id, err := s.ExecuteCreate(ctx, "tenant_a", &connector.CreateNode{
		Model:       user,
		NonListArgs: []datamodel.Arg{{Name: "name", Value: values.String("Ada")}},
		ListArgs: []datamodel.ListArg{{
			Name:   "tags",
			Values: []values.Value{values.String("a"), values.String("b")},
		}},
	})
	if err != nil {
		log.Fatal(err)
	}

	tags, _ := user.FindField("tags")
	lists, err := s.ReadListValues(ctx, "tenant_a", tags, []values.Identifier{id})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(id, lists[id])
	// Output: 1 [a b]
}

// ExampleSQLite_ExecuteUpsert shows the create-then-update behaviour of an
// upsert on a unique field.
func ExampleSQLite_ExecuteUpsert() {
	s, user, cleanup := exampleConnector()
	defer cleanup()
	ctx := context.Background()

	where, _ := datamodel.NewNodeSelector(user, "email", values.String("x@y.z"))
	upsert := &connector.UpsertNode{
		Where: where,
		Create: connector.CreateNode{NonListArgs: []datamodel.Arg{
			{Name: "name", Value: values.String("X")},
			{Name: "email", Value: values.String("x@y.z")},
		}},
		Update: connector.UpdateNode{NonListArgs: []datamodel.Arg{
			{Name: "age", Value: values.Int(30)},
		}},
	}

	for i := 0; i < 2; i++ {
		id, result, err := s.ExecuteUpsert(ctx, "tenant_a", upsert)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(result, id)
	}
	// Output:
	// create 1
	// update 1
}

// ExampleSQLite_ExecuteDelete shows that deletes are refused.
func ExampleSQLite_ExecuteDelete() {
	s, user, cleanup := exampleConnector()
	defer cleanup()

	where, _ := datamodel.NewNodeSelector(user, "name", values.String("Ada"))
	_, err := s.ExecuteDelete(context.Background(), "tenant_a", &connector.DeleteNode{Where: where})
	fmt.Println(connector.IsContractViolation(err))
	// Output: true
}
