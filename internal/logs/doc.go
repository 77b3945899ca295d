// Package logs tails the captionstudio log file for `captionstudio logs`.
//
// Negative offsets mean "last N lines"; positive offsets resume a previous
// read. Follow polls for appended lines until the caller's context ends.
// Match terms filter lines by substring, which is how the CLI narrows output
// to one job ID.
package logs
