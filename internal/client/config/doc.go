// Package config loads runtime configuration for the linkkeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the linkkeeper HTTP API
//	-d string   path of the local state database
//	-t int      per-request timeout (seconds)
//	-r int      retries for idempotent requests that failed transiently
//	-i int      server health polling interval (seconds)
//
// # JSON schema
//
// Durations accept strings like "15s" or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8000",
//	  "state_path": "linkkeeper.db",
//	  "request_timeout": "45s",
//	  "max_retries": 2,
//	  "online_check_interval": "5s"
//	}
package config
