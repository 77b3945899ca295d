// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe; Summarize reduces the result to the dimensions,
// duration, frame rate and audio presence the export pipeline sizes its
// decoder and encoder from.
package ffprobe
