// Package textutil sanitizes names derived from user media so they are safe
// to use as file names and log tokens.
package textutil
