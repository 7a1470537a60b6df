// Package logging builds the application's slog loggers and provides the
// standardized attribute keys and context helpers shared across components.
package logging
