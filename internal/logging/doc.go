// Package logging centralizes slog construction and the attribute helpers
// used across the pipeline.
package logging
