// Package fileutil holds small filesystem helpers shared by the caption cache
// and the CLI: BLAKE3 content hashing and atomic file replacement.
package fileutil
