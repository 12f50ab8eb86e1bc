// Package storetest provisions tenant database files and a matching
// datamodel for connector tests.
package storetest

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/openfroyo/sqlconnector/pkg/datamodel"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

//go:embed datamodel.yaml
var datamodelYAML []byte

// DatabasePath returns the tenant file location the connector uses for
// tenant under rootPath.
func DatabasePath(rootPath, tenant string) string {
	return filepath.Join(rootPath, "db", tenant+".db")
}

// Provision creates the tenant file under rootPath and migrates it to the
// fixture schema. Provisioning an existing tenant is a no-op.
func Provision(ctx context.Context, rootPath, tenant string) error {
	path := DatabasePath(rootPath, tenant)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	// Closing the migration instance closes db as well.
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Datamodel returns the models matching the fixture schema: User (Int id,
// one column per scalar type, a tags list), Document (UUID id, a scores
// list) and Label (GraphQLID id).
func Datamodel() (*datamodel.Datamodel, error) {
	return datamodel.Parse(datamodelYAML)
}

// MustDatamodel is Datamodel for tests.
func MustDatamodel(tb testing.TB) *datamodel.Datamodel {
	tb.Helper()

	dm, err := Datamodel()
	if err != nil {
		tb.Fatalf("failed to load fixture datamodel: %v", err)
	}
	return dm
}

// MustProvision is Provision for tests.
func MustProvision(tb testing.TB, rootPath string, tenants ...string) {
	tb.Helper()

	for _, tenant := range tenants {
		if err := Provision(context.Background(), rootPath, tenant); err != nil {
			tb.Fatalf("failed to provision %s: %v", tenant, err)
		}
	}
}
