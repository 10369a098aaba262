// Package logging assembles the structured slog loggers used across
// keepsake.
//
// It owns the console and JSON handlers, level parsing, and the
// stdout+file output plumbing, and exposes a no-op logger for tests
// and wiring code that cannot fail. Prefer these constructors over
// hand-rolled slog setup so every component emits log lines with the
// same shape.
package logging
