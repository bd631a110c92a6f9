// Package logging builds the slog loggers used across the pipeline: a compact
// console handler for interactive use, a JSON handler for machine ingestion,
// and helpers that stamp job/stage correlation fields from context.
package logging
