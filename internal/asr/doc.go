// Package asr is the boundary to speech recognition engines.
//
// Engines return a Result, a closed union of Chunks, PlainText and Failure,
// which the caption normalizer consumes. A Handle owns one engine for the
// lifetime of the application: it loads lazily, lets concurrent callers share
// a single in-flight load, and serializes loads across processes with a file
// lock on the model cache. Two backends are provided: WhisperX run through
// uvx and an OpenAI-compatible HTTP endpoint. Extractor produces the 16 kHz
// mono WAV both backends consume, falling back to silence when ffmpeg stalls.
package asr
