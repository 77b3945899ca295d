// Package export burns captions into a video and re-encodes it.
//
// An Exporter drives one Job per request through Idle, Preparing, Capturing,
// Running, Finalizing and Done (or Failed). The frame loop pulls RGBA frames
// from a FrameSource, draws the overlay for each frame's playback time with
// the burnin renderer and hands the frame to an EncoderSession whose output
// is collected concurrently. Audio capture is best effort: when it cannot be
// established the export continues video-only with a warning.
//
// Exports end at end of stream, when the decoder stalls past the stall
// timeout, or at the wall-clock cap, whichever comes first. The cap can be
// lowered through configuration but never raised above
// config.HardExportCapSeconds. Every exit path releases the decoder, capture
// and encoder exactly once.
//
// The ffmpeg backend runs three processes: a decoder writing rawvideo to a
// pipe, an audio capture writing PCM to a pipe, and an encoder reading video
// on stdin and audio on file descriptor 3.
package export
