// Package config loads, normalizes, and validates Plenary's TOML
// configuration. Secrets (API keys, DSNs) may be supplied through PLENARY_*
// environment variables instead of the config file.
package config
