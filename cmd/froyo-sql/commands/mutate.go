package commands

import (
	"github.com/spf13/cobra"

	"github.com/openfroyo/sqlconnector/pkg/connector"
	"github.com/openfroyo/sqlconnector/pkg/values"
)

type idOutput struct {
	ID values.Identifier `json:"id"`
}

func newCreateCommand(a *app) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "create <database> <model>",
		Short: "Create a node",
		Long: `Create one node of a model. Scalar fields become columns of the model
table, list fields are written to their list tables in input order.`,
		Example: `  froyo-sql create tenant_a User --data '{"name": "Ada", "tags": ["a", "b"]}'

  # Read the arguments from a file
  froyo-sql create tenant_a User --data @user.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(args[1])
			if err != nil {
				return err
			}
			obj, err := decodeObject(cmd, data)
			if err != nil {
				return err
			}
			nonList, lists, err := parseArgs(m, obj)
			if err != nil {
				return err
			}

			id, err := a.store.ExecuteCreate(cmd.Context(), args[0], &connector.CreateNode{
				Model:       m,
				NonListArgs: nonList,
				ListArgs:    lists,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd, idOutput{ID: id})
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "{}", "JSON object of field values")

	return cmd
}

func newUpdateCommand(a *app) *cobra.Command {
	var where, data string

	cmd := &cobra.Command{
		Use:   "update <database> <model>",
		Short: "Update the node matching a selector",
		Long: `Update the node selected by a single field/value pair. List fields in the
data replace the stored list entirely.`,
		Example: `  froyo-sql update tenant_a User --where '{"email": "ada@example.com"}' --data '{"age": 36}'`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(args[1])
			if err != nil {
				return err
			}
			whereObj, err := decodeObject(cmd, where)
			if err != nil {
				return err
			}
			sel, err := parseSelector(m, whereObj)
			if err != nil {
				return err
			}
			obj, err := decodeObject(cmd, data)
			if err != nil {
				return err
			}
			nonList, lists, err := parseArgs(m, obj)
			if err != nil {
				return err
			}

			id, err := a.store.ExecuteUpdate(cmd.Context(), args[0], &connector.UpdateNode{
				Where:       sel,
				NonListArgs: nonList,
				ListArgs:    lists,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd, idOutput{ID: id})
		},
	}

	cmd.Flags().StringVarP(&where, "where", "w", "", "JSON selector with exactly one field")
	cmd.Flags().StringVarP(&data, "data", "d", "{}", "JSON object of field values")
	_ = cmd.MarkFlagRequired("where")

	return cmd
}

func newUpdateManyCommand(a *app) *cobra.Command {
	var filter, data string

	cmd := &cobra.Command{
		Use:   "update-many <database> <model>",
		Short: "Update every node matching a filter",
		Example: `  froyo-sql update-many tenant_a User --filter '{"role": "MEMBER"}' --data '{"active": false}'`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(args[1])
			if err != nil {
				return err
			}
			filterObj, err := optionalObject(cmd, filter)
			if err != nil {
				return err
			}
			cond, err := parseFilter(m, filterObj)
			if err != nil {
				return err
			}
			obj, err := decodeObject(cmd, data)
			if err != nil {
				return err
			}
			nonList, lists, err := parseArgs(m, obj)
			if err != nil {
				return err
			}

			count, err := a.store.ExecuteUpdateMany(cmd.Context(), args[0], &connector.UpdateNodes{
				Model:       m,
				Filter:      cond,
				NonListArgs: nonList,
				ListArgs:    lists,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd, struct {
				Count int `json:"count"`
			}{count})
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "", "JSON filter object: field values or operator objects (all nodes when empty)")
	cmd.Flags().StringVarP(&data, "data", "d", "{}", "JSON object of field values")

	return cmd
}

func newUpsertCommand(a *app) *cobra.Command {
	var where, create, update string

	cmd := &cobra.Command{
		Use:   "upsert <database> <model>",
		Short: "Update the node matching a selector, or create it",
		Example: `  froyo-sql upsert tenant_a User \
    --where '{"email": "ada@example.com"}' \
    --create '{"name": "Ada", "email": "ada@example.com"}' \
    --update '{"age": 37}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(args[1])
			if err != nil {
				return err
			}
			whereObj, err := decodeObject(cmd, where)
			if err != nil {
				return err
			}
			sel, err := parseSelector(m, whereObj)
			if err != nil {
				return err
			}
			createObj, err := decodeObject(cmd, create)
			if err != nil {
				return err
			}
			createArgs, createLists, err := parseArgs(m, createObj)
			if err != nil {
				return err
			}
			updateObj, err := decodeObject(cmd, update)
			if err != nil {
				return err
			}
			updateArgs, updateLists, err := parseArgs(m, updateObj)
			if err != nil {
				return err
			}

			id, result, err := a.store.ExecuteUpsert(cmd.Context(), args[0], &connector.UpsertNode{
				Where:  sel,
				Create: connector.CreateNode{Model: m, NonListArgs: createArgs, ListArgs: createLists},
				Update: connector.UpdateNode{Where: sel, NonListArgs: updateArgs, ListArgs: updateLists},
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd, struct {
				ID     values.Identifier    `json:"id"`
				Result connector.ResultType `json:"result"`
			}{id, result})
		},
	}

	cmd.Flags().StringVarP(&where, "where", "w", "", "JSON selector with exactly one field")
	cmd.Flags().StringVar(&create, "create", "{}", "JSON field values used when nothing matches")
	cmd.Flags().StringVar(&update, "update", "{}", "JSON field values used when a node matches")
	_ = cmd.MarkFlagRequired("where")

	return cmd
}

func newDeleteCommand(a *app) *cobra.Command {
	var where string

	cmd := &cobra.Command{
		Use:   "delete <database> <model>",
		Short: "Delete a node (not supported by the SQLite connector)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(args[1])
			if err != nil {
				return err
			}
			whereObj, err := decodeObject(cmd, where)
			if err != nil {
				return err
			}
			sel, err := parseSelector(m, whereObj)
			if err != nil {
				return err
			}

			node, err := a.store.ExecuteDelete(cmd.Context(), args[0], &connector.DeleteNode{Where: sel})
			if err != nil {
				return err
			}
			return writeJSON(cmd, node)
		},
	}

	cmd.Flags().StringVarP(&where, "where", "w", "", "JSON selector with exactly one field")
	_ = cmd.MarkFlagRequired("where")

	return cmd
}

func newRawCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "raw <query>",
		Short: "Run a raw query (not supported by the SQLite connector)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.store.ExecuteRaw(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(out, '\n'))
			return err
		},
	}
}
