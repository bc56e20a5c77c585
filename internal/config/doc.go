// Package config loads, normalizes, and validates the TOML configuration
// shared by the CLI and the watcher daemon.
package config
