package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"captionstudio/internal/captions"
	"captionstudio/internal/config"
	"captionstudio/internal/textutil"
)

type transcribeReport struct {
	JobID       string             `json:"job_id"`
	Source      string             `json:"source"`
	Output      string             `json:"output"`
	Language    string             `json:"language"`
	Detected    string             `json:"detected_language,omitempty"`
	Origin      string             `json:"caption_source"`
	Cached      bool               `json:"cached"`
	SilentAudio bool               `json:"silent_audio"`
	Attempts    int                `json:"attempts"`
	Warnings    []string           `json:"warnings,omitempty"`
	Segments    []captions.Segment `json:"segments"`
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var (
		outputPath    string
		language      string
		noCache       bool
		skipPreflight bool
		jsonOutput    bool
	)

	cmd := &cobra.Command{
		Use:   "transcribe <video>",
		Short: "Transcribe a video into a captions JSON file",
		Long: `Extract the audio track, run speech recognition and write normalized captions.

Recognition failures never abort the command: placeholder captions are written
and the warnings explain what went wrong.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			if err := runPreflight(cmd.Context(), cfg, skipPreflight); err != nil {
				return err
			}

			logger := ctx.ensureLogger(cmd.ErrOrStderr())
			recorder := &jobRecorder{store: ctx.openJobs(cmd.ErrOrStderr()), logger: logger}
			defer recorder.close()

			handle, err := ctx.ensureASR(logger)
			if err != nil {
				return err
			}
			outcome, err := runTranscription(cmd.Context(), cfg, handle, logger, recorder, cmd.ErrOrStderr(), transcribeParams{
				source:    source,
				language:  language,
				skipCache: noCache,
			})
			if err != nil {
				return err
			}

			target := strings.TrimSpace(outputPath)
			if target == "" {
				target = filepath.Join(filepath.Dir(source), textutil.DerivedName(source, "captions", ".json"))
			} else if target, err = config.ExpandPath(target); err != nil {
				return err
			}
			if err := captions.Save(target, outcome.Segments); err != nil {
				return err
			}

			report := transcribeReport{
				JobID:       outcome.JobID,
				Source:      source,
				Output:      target,
				Language:    outcome.Language,
				Detected:    outcome.Detected.Code,
				Origin:      string(outcome.Source),
				Cached:      outcome.Cached,
				SilentAudio: outcome.SilentAudio,
				Attempts:    outcome.Attempts,
				Warnings:    outcome.Warnings,
				Segments:    outcome.Segments,
			}
			if jsonOutput {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %d captions to %s\n", len(outcome.Segments), target)
			fmt.Fprintf(out, "Source: %s  Language: %s  Cached: %s\n", report.Origin, report.Language, yesNo(report.Cached))
			if outcome.Fallback() {
				fmt.Fprintf(out, "Warning: placeholder captions written (%s)\n", warningsSummary(outcome.Warnings))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Captions file to write (default: <video>_captions.json next to the video)")
	cmd.Flags().StringVarP(&language, "language", "l", "", "Primary language hint (default from config)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Ignore cached transcripts")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip directory and dependency checks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print a JSON report instead of a summary")
	return cmd
}
