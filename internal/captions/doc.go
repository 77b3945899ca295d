// Package captions defines caption segments, their JSON wire shape, and the
// normalizer that turns raw ASR output into a displayable sequence.
//
// Normalize never fails. Timestamped chunks are trimmed, rounded to 100 ms and
// kept in engine order; a bare transcript becomes one five-second caption;
// anything else yields a fixed placeholder sequence flagged through
// Result.Source so callers can report the degradation.
package captions
