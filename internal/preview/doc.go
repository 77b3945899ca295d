// Package preview models the fixed preview timeline and renders PNG stills
// from it.
//
// The composition runs at 30 fps on a 1920x1080 canvas for at most 20
// seconds. Stills snap to the frame grid and go through the same overlay and
// burnin code as exports, so a still at t matches the exported frame at t.
package preview
