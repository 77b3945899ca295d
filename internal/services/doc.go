// Package services defines shared utilities consumed by the transcription and
// export pipelines.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper and the typed
//     ServiceError, which classify failures (decode, encode, audio capture,
//     ASR, timeout) so callers can tell fatal errors from degradations.
//
// Use these helpers when wiring new pipeline stages so error handling and
// observability stay uniform.
package services
