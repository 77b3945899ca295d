package main

import (
	"bytes"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"captionstudio/internal/burnin"
	"captionstudio/internal/captions"
	"captionstudio/internal/config"
	"captionstudio/internal/fileutil"
	"captionstudio/internal/overlay"
	"captionstudio/internal/preview"
	"captionstudio/internal/services"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var (
		styleName      string
		at             float64
		backgroundPath string
		outputPath     string
		listCues       bool
	)

	cmd := &cobra.Command{
		Use:   "preview <captions.json>",
		Short: "Render a caption preview still or list timeline cues",
		Long: `Render one frame of the preview composition as a PNG.

The composition is a fixed timeline (20 seconds at 30 fps by default) on a
dark backdrop or the given background image. Captions past the end of the
timeline are not shown.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			segments, err := captions.Load(path)
			if err != nil {
				return services.Wrap(services.ErrValidation, "preview", "load captions", "captions file unusable", err)
			}
			style, err := overlay.ParseStyle(styleName)
			if err != nil {
				return services.Wrap(services.ErrValidation, "preview", "parse flags", "invalid --style", err)
			}
			comp := preview.CompositionFromConfig(cfg.Preview)

			if listCues {
				return printCues(cmd, comp, segments)
			}

			frame, err := comp.FrameAt(at)
			if err != nil {
				return services.Wrap(services.ErrValidation, "preview", "parse flags", "invalid --at", err)
			}

			renderer, err := burnin.New(cfg.Export.FontPath)
			if err != nil {
				return services.Wrap(services.ErrConfiguration, "preview", "load font", "caption font unusable", err)
			}
			defer renderer.Close()

			var bg image.Image
			if strings.TrimSpace(backgroundPath) != "" {
				bgPath, err := config.ExpandPath(backgroundPath)
				if err != nil {
					return err
				}
				if bg, err = preview.LoadBackground(bgPath); err != nil {
					return services.Wrap(services.ErrValidation, "preview", "load background", "background image unusable", err)
				}
			}
			stills := preview.NewStills(comp, renderer, bg)

			var buf bytes.Buffer
			if err := stills.WritePNG(&buf, segments, style, comp.TimeAt(frame)); err != nil {
				return err
			}
			target := strings.TrimSpace(outputPath)
			if target == "" {
				target = "preview.png"
			} else if target, err = config.ExpandPath(target); err != nil {
				return err
			}
			if err := fileutil.WriteFileAtomic(target, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write preview: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s (frame %d of %d, %dx%d)\n", target, frame, comp.DurationFrames, comp.Width, comp.Height)
			if vf, ok := comp.Describe(segments, style, frame); ok {
				fmt.Fprintf(out, "Caption: %q (opacity %.2f, scale %.2f)\n", vf.Segment.Text, vf.Opacity, vf.Scale)
			} else {
				fmt.Fprintln(out, "No caption active at this time")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&styleName, "style", "s", string(overlay.StyleBottom), "Caption style: bottom, top or karaoke")
	cmd.Flags().Float64Var(&at, "at", 0, "Timeline position in seconds")
	cmd.Flags().StringVar(&backgroundPath, "background", "", "PNG or JPEG drawn behind the captions")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "PNG file to write (default: preview.png)")
	cmd.Flags().BoolVar(&listCues, "cues", false, "List captions on the preview timeline instead of rendering")
	return cmd
}

func printCues(cmd *cobra.Command, comp preview.Composition, segments []captions.Segment) error {
	cues := comp.Cues(segments)
	rows := make([][]string, 0, len(cues))
	for _, cue := range cues {
		end := strconv.Itoa(cue.EndFrame)
		if cue.Clipped {
			end += " (clipped)"
		}
		rows = append(rows, []string{
			strconv.Itoa(cue.Index + 1),
			strconv.Itoa(cue.StartFrame),
			end,
			cue.Segment.Text,
		})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Timeline: %d frames at %d fps (%.1fs)\n", comp.DurationFrames, comp.FrameRate, comp.Duration())
	if len(rows) == 0 {
		fmt.Fprintln(out, "No captions fall inside the preview timeline")
		return nil
	}
	fmt.Fprintln(out, renderTable([]string{"#", "Start frame", "End frame", "Text"}, rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignLeft}))
	return nil
}
