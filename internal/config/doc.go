// Package config loads, normalizes, and validates amequeue configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads optional .env files and honours
// environment fallbacks such as AME_HOST. The Config type centralizes every
// knob the daemon and CLI need: how to reach the encoding service, how hard the
// job state machine retries, and where logs and presets live.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
