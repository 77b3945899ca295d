// Package config loads, normalizes, and validates captionstudio configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, overlays a .env file, and honours environment
// fallbacks such as OPENAI_API_KEY. The Config type centralizes every knob the
// CLI, transcription service and export pipeline need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, clamped export limits, and clear validation errors.
package config
