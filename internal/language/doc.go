// Package language resolves ASR language hints and identifies transcript
// languages.
//
// Hints arrive as words ("english", "hindi"), ISO codes, or BCP 47 tags; the
// ASR backends want ISO 639-1. Detect runs whatlanggo over finished
// transcripts so job records carry the language actually spoken.
package language
