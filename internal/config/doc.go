// Package config loads, normalizes, and validates oakpipe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours OAKPIPE_* environment overrides,
// optionally sourced from a .env file beside the config. The Config type holds
// every toggle the pipeline reads at startup; it is treated as read-only once
// Load returns, so a change requires a restart.
//
// Every validation failure wraps services.ErrConfigInvalid so callers can map
// it to the startup-validation exit code without string matching.
package config
