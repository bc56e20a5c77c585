// Package logging builds slog loggers with the console and JSON handlers
// shared by every reelsync component, plus attribute helpers and
// context-derived log fields.
package logging
