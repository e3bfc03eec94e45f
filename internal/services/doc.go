// Package services defines shared utilities consumed by the pipeline stage
// handlers and external collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp batch IDs, bake groups, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent batch statuses (failed vs cancelled).
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability) stays uniform across the pipeline.
package services
