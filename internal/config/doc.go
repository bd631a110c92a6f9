// Package config loads, normalizes, and validates the TOML configuration that
// drives job execution.
//
// Load resolves the config path (explicit flag, then the user config dir, then
// a project-local overdub.toml), decodes on top of Default(), expands all path
// fields, and validates the result. A missing file is not an error; defaults
// apply.
package config
