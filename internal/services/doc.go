// Package services defines shared utilities consumed by the collection
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, study IDs, proteome IDs, and stage
//     names for logging.
//   - Structured error markers plus the Wrap helper so every fatal condition
//     (lookup, download, format, metadata, validation, transfer) can be
//     classified with errors.Is and recorded in the run ledger.
//
// Use these helpers when wiring new pipeline steps so operational behaviour
// (error handling, observability) stays uniform across the run.
package services
