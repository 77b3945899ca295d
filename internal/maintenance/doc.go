// Package maintenance expires old logs, work files, cached transcripts and
// job history. Runner performs one pass; Scheduler repeats it on the
// configured cron schedule.
package maintenance
