package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/sqlconnector/pkg/config"
	"github.com/openfroyo/sqlconnector/pkg/datamodel"
	"github.com/openfroyo/sqlconnector/pkg/stores"
	"github.com/openfroyo/sqlconnector/pkg/telemetry"
)

// app holds what every command needs once the configuration is loaded.
type app struct {
	configPath string

	cfg   *config.Config
	tel   *telemetry.Telemetry
	dm    *datamodel.Datamodel
	store *stores.SQLite
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	a := &app{}
	defer func() {
		_ = a.close(context.Background())
	}()
	return newRootCommand(a, version, commit, buildDate).ExecuteContext(ctx)
}

func newRootCommand(a *app, version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "froyo-sql",
		Short: "froyo-sql - SQLite connector for per-tenant relational storage",
		Long: `froyo-sql executes create, update, update-many and upsert mutations
against per-tenant SQLite database files described by a YAML datamodel.

Every tenant lives in <root-path>/db/<tenant>.db and is attached to the
pooled connection on first use. Each mutation runs in its own transaction.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file path")
	config.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newCheckCommand(a))
	rootCmd.AddCommand(newQueryCommand(a))
	rootCmd.AddCommand(newCreateCommand(a))
	rootCmd.AddCommand(newUpdateCommand(a))
	rootCmd.AddCommand(newUpdateManyCommand(a))
	rootCmd.AddCommand(newUpsertCommand(a))
	rootCmd.AddCommand(newDeleteCommand(a))
	rootCmd.AddCommand(newRawCommand(a))
	rootCmd.AddCommand(newServeMetricsCommand(a))

	return rootCmd
}

// open loads the configuration and builds telemetry, the datamodel and the
// connector.
func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	tel, err := telemetry.NewTelemetry(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialise telemetry: %w", err)
	}
	a.tel = tel

	if cfg.Datamodel != "" {
		dm, err := datamodel.LoadFile(cfg.Datamodel)
		if err != nil {
			return err
		}
		a.dm = dm
	}

	store, err := stores.NewSQLite(cfg.Connector.Store(), stores.WithTelemetry(tel))
	if err != nil {
		return err
	}
	a.store = store

	tel.Logger.WithFields(map[string]interface{}{
		"root_path":        cfg.Connector.RootPath,
		"connection_limit": cfg.Connector.ConnectionLimit,
		"test_mode":        cfg.Connector.TestMode,
	}).Debug("connector ready")
	return nil
}

// model looks up a model of the configured datamodel.
func (a *app) model(name string) (*datamodel.Model, error) {
	if a.dm == nil {
		return nil, errors.New("no datamodel configured (set --datamodel or FROYO_SQL_DATAMODEL)")
	}
	return a.dm.Model(name)
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	if a.tel != nil {
		errs = append(errs, a.tel.Shutdown(ctx))
		a.tel = nil
	}
	return errors.Join(errs...)
}
