// Package transcribe turns a video into captions.
//
// A Service extracts mono 16 kHz audio, obtains the shared speech engine from
// an asr.Handle, and transcribes with the primary language hint. When that
// attempt yields nothing usable it retries once with the alternate hint and
// wider windows. The raw result is normalized by captions.Normalize, so the
// outcome is always a displayable caption list; recognition failures surface
// as fallback captions plus warnings rather than errors.
//
// Successful transcripts are cached under a BLAKE3 key of the source bytes
// and the language settings.
package transcribe
