// Package stores implements the SQLite connector.
//
// A single pool of modernc.org/sqlite connections serves every tenant. Each
// pooled connection opens a private in-memory main database; tenant files
// under <RootPath>/db/<name>.db are attached to it by name the first time a
// call for that tenant lands on the connection, and stay attached until the
// connection is closed (or, in test mode, until the call returns).
//
// Every public operation checks out one connection, opens one transaction
// and commits only if all of its statements succeed:
//
//	s, err := stores.NewSQLite(stores.Config{RootPath: "/var/lib/froyo"})
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	id, err := s.ExecuteCreate(ctx, "tenant_a", &connector.CreateNode{
//		Model:       user,
//		NonListArgs: []datamodel.Arg{{Name: "name", Value: values.String("Ada")}},
//		ListArgs: []datamodel.ListArg{{
//			Name:   "tags",
//			Values: []values.Value{values.String("a"), values.String("b")},
//		}},
//	})
//
// List fields live in side tables named <Model>_<field> with the columns
// nodeId, position and value. Updates replace the whole list: the owner's
// rows are deleted and the new elements inserted in order.
//
// Date-times are stored as millisecond epoch integers, UUIDs as text, JSON
// documents as text and booleans as 0/1. Reads accept UUIDs stored as 16
// byte blobs too.
//
// ExecuteDelete and ExecuteRaw are not supported and fail with a contract
// violation wrapping connector.ErrNotSupported.
package stores
