// Package config loads, validates, and normalizes Clipspace configuration.
//
// Configuration is a single TOML file. Load resolves the file path (explicit
// path, then ~/.config/clipspace/config.toml, then ./clipspace.toml), decodes
// it over the defaults, expands all path fields, and validates the result.
package config
