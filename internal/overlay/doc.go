// Package overlay decides which caption is on screen and how it looks.
//
// Everything here is a pure function of the caption, the style and the
// playback time, so the preview composition and the burn-in export render
// identical frames.
package overlay
