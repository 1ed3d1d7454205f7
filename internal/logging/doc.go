// Package logging assembles structured slog loggers and formatting helpers used
// across sumcheck components.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so the watcher and filer can tag every line
// produced while handling one download with the same correlation ID. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// records with the same field names (event_type, error_hint, impact) as the
// rest of the system.
package logging
