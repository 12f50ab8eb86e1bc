package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/openfroyo/sqlconnector/pkg/stores"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FROYO_SQL_"

// DefaultFiles are looked up in the working directory when no file is given.
var DefaultFiles = []string{"froyo-sql.yaml", "froyo-sql.yml"}

// envKeys maps environment variables (without EnvPrefix) to config keys.
var envKeys = map[string]string{
	"CONNECTION_LIMIT":  "connector.connection_limit",
	"TEST_MODE":         "connector.test_mode",
	"ROOT_PATH":         "connector.root_path",
	"ACQUIRE_TIMEOUT":   "connector.acquire_timeout",
	"DATAMODEL":         "datamodel",
	"LOG_LEVEL":         "telemetry.logging.level",
	"LOG_FORMAT":        "telemetry.logging.format",
	"TRACING_EXPORTER":  "telemetry.tracing.exporter",
	"TRACING_ENDPOINT":  "telemetry.tracing.endpoint",
	"METRICS_ADDRESS":   "telemetry.metrics.listen_address",
	"SERVICE_VERSION":   "telemetry.service_version",
	"ENVIRONMENT":       "telemetry.environment",
	"EVENTS_ASYNC":      "telemetry.events.enable_async",
	"TRACING_ENABLED":   "telemetry.tracing.enabled",
	"METRICS_ENABLED":   "telemetry.metrics.enabled",
	"LOG_OUTPUT":        "telemetry.logging.output",
	"LOG_ENABLE_CALLER": "telemetry.logging.enable_caller",
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"connection-limit": "connector.connection_limit",
	"test-mode":        "connector.test_mode",
	"root-path":        "connector.root_path",
	"acquire-timeout":  "connector.acquire_timeout",
	"datamodel":        "datamodel",
	"log-level":        "telemetry.logging.level",
	"log-format":       "telemetry.logging.format",
}

// BindFlags registers the flags Load understands on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.Int("connection-limit", stores.DefaultConnectionLimit, "maximum number of pooled connections")
	fs.Bool("test-mode", false, "detach tenant databases after every call")
	fs.String("root-path", ".", "directory holding db/<tenant>.db files")
	fs.Duration("acquire-timeout", 0, "maximum wait for a pooled connection (0 waits indefinitely)")
	fs.String("datamodel", "", "path of the YAML datamodel")
	fs.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	fs.String("log-format", "console", "log format (console, json)")
}

// Load builds the configuration from defaults, cfgFile, the environment and
// flags, in increasing precedence. An empty cfgFile falls back to
// DefaultFiles; flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"connector.connection_limit": stores.DefaultConnectionLimit,
		"connector.root_path":        ".",
		"connector.test_mode":        false,
		"connector.acquire_timeout":  time.Duration(0),
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if path := findConfigFile(cfgFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else if cfgFile != "" {
		return nil, fmt.Errorf("config file %s not found", cfgFile)
	}

	// 3. Environment. Unknown FROYO_SQL_ variables are ignored.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return envKeys[strings.TrimPrefix(s, EnvPrefix)]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, only those explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile returns explicit if it exists, otherwise the first of
// DefaultFiles present in the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}
	for _, name := range DefaultFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}
