// Package config loads, normalizes, and validates keepsake
// configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every
// knob the CLI and the orchestration core need: engine selection and
// binaries, storage mode and roots, backup pattern options, and
// logging. Always obtain settings through this package so downstream
// code receives sanitized paths and clear validation errors.
package config
