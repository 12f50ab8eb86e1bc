package commands

import (
	"github.com/spf13/cobra"

	"github.com/openfroyo/sqlconnector/pkg/connector"
	"github.com/openfroyo/sqlconnector/pkg/datamodel"
	"github.com/openfroyo/sqlconnector/pkg/query"
	"github.com/openfroyo/sqlconnector/pkg/values"
)

// nodeOutput is one node with its list fields.
type nodeOutput struct {
	Node  values.Node               `json:"node"`
	Lists map[string][]values.Value `json:"lists,omitempty"`
}

func newQueryCommand(a *app) *cobra.Command {
	var (
		filter string
		first  int
		skip   int
		lists  bool
	)

	cmd := &cobra.Command{
		Use:   "query <database> <model>",
		Short: "List nodes of a model",
		Example: `  # Every user, ordered by id
  froyo-sql query tenant_a User

  # The first ten admins with their list fields
  froyo-sql query tenant_a User --filter '{"role": "ADMIN"}' --first 10 --lists

  # Adults whose name starts with A
  froyo-sql query tenant_a User --filter '{"age": {"gte": 18}, "name": {"like": "A%"}}'`,
		Args: cobra.ExactArgs(2),
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

			ctx := cmd.Context()
			nodes, err := a.store.GetNodes(ctx, args[0], m, query.Arguments{
				Filter: cond,
				First:  first,
				Skip:   skip,
			})
			if err != nil {
				return err
			}

			out := make([]nodeOutput, len(nodes))
			for i, n := range nodes {
				out[i].Node = n
			}
			if lists && len(nodes) > 0 {
				if err := a.attachLists(cmd, args[0], m, out); err != nil {
					return err
				}
			}
			return writeJSON(cmd, out)
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "", "JSON filter object: field values or operator objects such as {\"age\": {\"gte\": 18}}")
	cmd.Flags().IntVar(&first, "first", 0, "maximum number of nodes (0 for all)")
	cmd.Flags().IntVar(&skip, "skip", 0, "number of nodes to skip")
	cmd.Flags().BoolVar(&lists, "lists", false, "include list fields")

	return cmd
}

// attachLists reads every list field of m for the nodes in out.
func (a *app) attachLists(cmd *cobra.Command, dbName string, m *datamodel.Model, out []nodeOutput) error {
	idField := m.IDField()
	ids := make([]values.Identifier, 0, len(out))
	for _, o := range out {
		v, _ := o.Node.Get(idField.Name)
		id, err := v.AsIdentifier()
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	for _, f := range m.ScalarListFields() {
		byID, err := a.store.ReadListValues(cmd.Context(), dbName, f, ids)
		if err != nil {
			return err
		}
		for i := range out {
			if out[i].Lists == nil {
				out[i].Lists = make(map[string][]values.Value)
			}
			vals := byID[ids[i]]
			if vals == nil {
				vals = []values.Value{}
			}
			out[i].Lists[f.Name] = vals
		}
	}
	return nil
}

func newCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check [database...]",
		Short: "Check the connector and optionally attach tenant databases",
		Long: `Check that the connection pool is healthy. Every named database is attached
and read once, which fails when its file cannot be opened.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.store.HealthCheck(ctx); err != nil {
				return err
			}

			sel := query.Select{
				Table:   query.Table{Name: "sqlite_master"},
				Columns: []string{"name"},
				Where:   query.Eq("type", "table"),
			}
			for _, db := range args {
				var tables int
				err := a.store.WithRows(ctx, sel, db, func(_ connector.Row) error {
					tables++
					return nil
				})
				if err != nil {
					return err
				}
				a.tel.Logger.WithDatabase(db).WithField("tables", tables).Info("database attached")
			}

			return writeJSON(cmd, struct {
				Status    string   `json:"status"`
				Databases []string `json:"databases,omitempty"`
			}{"ok", args})
		},
	}
}

func newServeMetricsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve Prometheus metrics until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.tel.Metrics.Serve(cmd.Context(), a.tel.Logger)
		},
	}
}
