// Package config loads, normalizes, and validates tamperwatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files or the legacy YAML layout, and honours
// environment fallbacks such as TAMPERWATCH_REQUEST_LINK. The Config type
// centralizes every knob the daemon and CLI need: watch and reference
// folders, per-camera thresholds, evidence retention, and the notification
// endpoint.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical extensions, and clear validation errors.
package config
