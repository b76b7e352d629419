// Package config loads and validates Netward configuration.
//
// Configuration is read from a YAML file, with hardcoded defaults applied
// first and NETWARD_* environment variables applied last. Secrets (JWT
// signing key, broker and admin passwords) are expected via environment
// variables rather than the config file.
package config
