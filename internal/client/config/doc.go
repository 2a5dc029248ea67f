// Package config loads runtime configuration for the SecureShare CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// # JSON schema
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "secret_key": "secretKey",
//	  "user": "alice",
//	  "token_validity": "15m",
//	  "call_timeout": "10s"
//	}
package config
