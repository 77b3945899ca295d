// Package main hosts the captionstudio CLI entrypoint and command graph.
//
// The Cobra command tree covers transcription, burn-in export, preview
// stills, caption inspection, job history, maintenance and log tailing. It
// centralizes configuration resolution and logger setup so subcommands can
// focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
