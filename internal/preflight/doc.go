// Package preflight provides readiness checks for the filesystem paths,
// external binaries and transcription API that captionstudio depends on.
//
// These checks run in two contexts:
//   - The CLI transcribe and export commands call RunAll before starting a
//     job. Failing checks abort the job before any ffmpeg process starts.
//   - The CLI "captionstudio status" command uses individual check functions
//     (CheckASRFromConfig, CheckDirectoryAccess) to display health.
package preflight
