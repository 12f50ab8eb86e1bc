package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/openfroyo/sqlconnector/pkg/stores"
	"github.com/openfroyo/sqlconnector/pkg/telemetry"
)

// Config is the complete froyo-sql configuration.
type Config struct {
	// Connector configures the SQLite connector.
	Connector ConnectorConfig `koanf:"connector"`

	// Datamodel is the path of the YAML datamodel file.
	Datamodel string `koanf:"datamodel"`

	// Telemetry configures logging, tracing, metrics and events.
	Telemetry *telemetry.Config `koanf:"telemetry" validate:"required"`
}

// ConnectorConfig configures the SQLite connector.
type ConnectorConfig struct {
	// ConnectionLimit is the pool size.
	ConnectionLimit int `koanf:"connection_limit" validate:"min=1,max=1024"`

	// TestMode detaches tenant databases after every call.
	TestMode bool `koanf:"test_mode"`

	// RootPath is the directory holding db/<tenant>.db files.
	RootPath string `koanf:"root_path" validate:"required"`

	// AcquireTimeout bounds the wait for a pooled connection. Zero waits
	// indefinitely.
	AcquireTimeout time.Duration `koanf:"acquire_timeout" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Connector: ConnectorConfig{
			ConnectionLimit: stores.DefaultConnectionLimit,
			RootPath:        ".",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Store converts the connector section into the connector's own config.
func (c ConnectorConfig) Store() stores.Config {
	return stores.Config{
		ConnectionLimit: c.ConnectionLimit,
		TestMode:        c.TestMode,
		RootPath:        c.RootPath,
		AcquireTimeout:  c.AcquireTimeout,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return c.Telemetry.Validate()
}
