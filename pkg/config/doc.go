// Package config loads the froyo-sql configuration.
//
// Values are layered, later layers winning:
//
//  1. built-in defaults
//  2. a YAML file (froyo-sql.yaml in the working directory unless a path is given)
//  3. FROYO_SQL_* environment variables
//  4. command line flags that were explicitly set
//
// The result is validated before it is returned.
//
// # File format
//
//	connector:
//	  connection_limit: 10
//	  test_mode: false
//	  root_path: /var/lib/froyo-sql
//	  acquire_timeout: 5s
//	datamodel: datamodel.yaml
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
//	  metrics:
//	    listen_address: ":9090"
//
// # Environment
//
//	FROYO_SQL_CONNECTION_LIMIT   connector.connection_limit
//	FROYO_SQL_TEST_MODE          connector.test_mode
//	FROYO_SQL_ROOT_PATH          connector.root_path
//	FROYO_SQL_ACQUIRE_TIMEOUT    connector.acquire_timeout
//	FROYO_SQL_DATAMODEL          datamodel
//	FROYO_SQL_LOG_LEVEL          telemetry.logging.level
//	FROYO_SQL_LOG_FORMAT         telemetry.logging.format
//	FROYO_SQL_TRACING_EXPORTER   telemetry.tracing.exporter
//	FROYO_SQL_TRACING_ENDPOINT   telemetry.tracing.endpoint
//	FROYO_SQL_METRICS_ADDRESS    telemetry.metrics.listen_address
package config
