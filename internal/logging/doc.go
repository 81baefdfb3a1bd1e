// Package logging builds slog loggers with console and JSON handlers and
// provides the standardized attribute keys used across the daemon.
package logging
