// Package jobs records transcription and export runs in a SQLite database
// (modernc.org/sqlite, no cgo).
//
// A run is opened with Begin and closed with Complete or Fail. Completed runs
// that carried warnings are stored as degraded so history distinguishes
// fallback captions and video-only exports from clean results. Maintenance
// uses AbandonRunning and PruneFinished to keep the table small.
package jobs
