// Package config loads, defaults, and validates the TOML configuration that
// drives the anonymization pipeline.
package config
