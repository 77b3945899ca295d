// Package burnin rasterizes overlay frames into video pixels.
//
// Geometry comes from the overlay layout table so exported frames match the
// preview: a background sized to the measured text plus padding, the text at
// max(24, width/40) pixels scaled by the entrance spring, and for karaoke a
// highlighted spoken prefix drawn over an outline.
package burnin
