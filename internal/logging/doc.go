// Package logging assembles structured slog loggers for captionstudio.
//
// It owns the console and JSON handlers, level parsing, and output routing
// (stderr plus the persistent log file). Context helpers tag lines with job
// IDs, stages and correlation IDs; WarnWithContext enforces the event_type,
// error_hint and impact fields on every warning. Prune implements the
// retention sweeps the maintenance scheduler runs.
package logging
