package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"captionstudio/internal/captions"
	"captionstudio/internal/config"
	"captionstudio/internal/export"
	"captionstudio/internal/fileutil"
	"captionstudio/internal/jobs"
	"captionstudio/internal/overlay"
	"captionstudio/internal/services"
	"captionstudio/internal/textutil"
)

type exportReport struct {
	JobID      string           `json:"job_id"`
	Source     string           `json:"source"`
	Output     string           `json:"output"`
	Style      string           `json:"style"`
	MimeType   string           `json:"mime_type"`
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	Frames     int              `json:"frames"`
	Duration   float64          `json:"duration_seconds"`
	Bytes      int              `json:"bytes"`
	HasAudio   bool             `json:"has_audio"`
	StopReason string           `json:"stop_reason"`
	Warnings   []export.Warning `json:"warnings,omitempty"`
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		captionsPath  string
		styleName     string
		outputPath    string
		language      string
		skipPreflight bool
		jsonOutput    bool
	)

	cmd := &cobra.Command{
		Use:   "export <video>",
		Short: "Burn captions into a video",
		Long: `Render styled captions over every frame and encode the result with the source audio.

Without --captions the video is transcribed first. Exports stop at the
configured wall-clock cap (at most two minutes) and keep what was rendered.
When an export fails, a text file with the captions and a retry command is
written next to the video.`,
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
			style, err := overlay.ParseStyle(styleName)
			if err != nil {
				return services.Wrap(services.ErrValidation, "export", "parse flags", "invalid --style", err)
			}
			if err := runPreflight(cmd.Context(), cfg, skipPreflight); err != nil {
				return err
			}

			logger := ctx.ensureLogger(cmd.ErrOrStderr())
			recorder := &jobRecorder{store: ctx.openJobs(cmd.ErrOrStderr()), logger: logger}
			defer recorder.close()
			// One correlation id ties the transcription and export jobs of a run together.
			runCtx := services.WithRequestID(cmd.Context(), uuid.NewString())

			var segments []captions.Segment
			if strings.TrimSpace(captionsPath) != "" {
				path, err := config.ExpandPath(captionsPath)
				if err != nil {
					return err
				}
				if segments, err = captions.Load(path); err != nil {
					return services.Wrap(services.ErrValidation, "export", "load captions", "captions file unusable", err)
				}
			} else {
				handle, err := ctx.ensureASR(logger)
				if err != nil {
					return err
				}
				outcome, err := runTranscription(runCtx, cfg, handle, logger, recorder, cmd.ErrOrStderr(), transcribeParams{
					source:   source,
					language: language,
				})
				if err != nil {
					return err
				}
				segments = outcome.Segments
				if outcome.Fallback() {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: exporting placeholder captions (%s)\n", warningsSummary(outcome.Warnings))
				}
			}

			target := strings.TrimSpace(outputPath)
			if target == "" {
				target = filepath.Join(filepath.Dir(source), textutil.DerivedName(source, "captioned", "."+cfg.Export.Container))
			} else if target, err = config.ExpandPath(target); err != nil {
				return err
			}

			recorder.begin(runCtx, jobs.Start{Kind: jobs.KindExport, SourcePath: source, Style: style.String()})
			report, err := runExport(runCtx, cfg, logger, cmd.ErrOrStderr(), export.Request{
				JobID:      recorder.id,
				SourcePath: source,
				Segments:   segments,
				Style:      style,
			}, target)
			if err != nil {
				recorder.fail(err)
				if !isCancelled(err) {
					reportFallbackInstructions(cmd.ErrOrStderr(), source, cfg.Export.Container, segments, style, err)
				}
				return err
			}

			codes := make([]string, 0, len(report.Warnings))
			for _, w := range report.Warnings {
				codes = append(codes, w.Code)
			}
			recorder.complete(jobs.Outcome{
				OutputPath:  target,
				Segments:    len(segments),
				Frames:      report.Frames,
				OutputBytes: int64(report.Bytes),
				Warnings:    codes,
			})

			if jsonOutput {
				return writeJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s (%dx%d, %d frames, %.1fs, %s)\n",
				target, report.Width, report.Height, report.Frames, report.Duration, formatBytes(int64(report.Bytes)))
			if !report.HasAudio {
				fmt.Fprintln(out, "Note: output has no audio track")
			}
			for _, w := range report.Warnings {
				fmt.Fprintf(out, "Warning: %s\n", w.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&captionsPath, "captions", "", "Captions JSON file (default: transcribe the video first)")
	cmd.Flags().StringVarP(&styleName, "style", "s", string(overlay.StyleBottom), "Caption style: bottom, top or karaoke")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: <video>_captioned.<container> next to the video)")
	cmd.Flags().StringVarP(&language, "language", "l", "", "Language hint when transcribing")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip directory and dependency checks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print a JSON report instead of a summary")
	return cmd
}

func runExport(ctx context.Context, cfg *config.Config, logger *slog.Logger, stderr io.Writer, req export.Request, target string) (exportReport, error) {
	printer := newProgressPrinter(stderr)
	exporter, err := export.NewFromConfig(cfg, logger, func(opts *export.Options) {
		opts.OnProgress = func(p export.Progress) {
			printer.update("render", fmt.Sprintf("Rendering frame %d", p.Frames), p.Percent)
		}
	})
	if err != nil {
		return exportReport{}, err
	}
	defer exporter.Close()

	art, err := exporter.Export(ctx, req)
	printer.done()
	if err != nil {
		return exportReport{}, err
	}
	if err := fileutil.WriteFileAtomic(target, art.Data, 0o644); err != nil {
		return exportReport{}, services.Wrap(services.ErrEncodeFailure, "export", "write output", "could not save export", err)
	}
	return exportReport{
		JobID:      req.JobID,
		Source:     req.SourcePath,
		Output:     target,
		Style:      req.Style.String(),
		MimeType:   art.MimeType,
		Width:      art.Width,
		Height:     art.Height,
		Frames:     art.Frames,
		Duration:   art.Duration(),
		Bytes:      len(art.Data),
		HasAudio:   art.HasAudio,
		StopReason: string(art.StopReason),
		Warnings:   art.Warnings,
	}, nil
}

// reportFallbackInstructions saves the fallback document next to source and
// tells the user where it went, or why it could not be written.
func reportFallbackInstructions(stderr io.Writer, source, container string, segments []captions.Segment, style overlay.Style, cause error) {
	doc, err := writeFallbackInstructions(source, container, segments, style, cause)
	if err != nil {
		fmt.Fprintf(stderr, "Export failed and the retry instructions could not be saved: %v\n", err)
		return
	}
	fmt.Fprintf(stderr, "Export failed; captions and retry steps saved to %s\n", doc)
}

func writeFallbackInstructions(source, container string, segments []captions.Segment, style overlay.Style, cause error) (string, error) {
	doc := export.FallbackInstructions(segments, style, source, container, cause)
	path := filepath.Join(filepath.Dir(source), textutil.DerivedName(source, "export_instructions", ".txt"))
	if err := fileutil.WriteFileAtomic(path, []byte(doc), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
