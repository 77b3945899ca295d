package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"captionstudio/internal/captions"
	"captionstudio/internal/config"
	"captionstudio/internal/language"
)

func newCaptionsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "captions",
		Short: "Inspect and validate caption files",
	}
	cmd.AddCommand(newCaptionsShowCommand())
	cmd.AddCommand(newCaptionsValidateCommand())
	return cmd
}

func newCaptionsShowCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "show <captions.json>",
		Short:       "Print captions as a table",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			segments, err := loadCaptionsArg(args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, segments)
			}
			rows := make([][]string, 0, len(segments))
			var total float64
			for i, seg := range segments {
				total += seg.Duration()
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					formatSeconds(seg.Start),
					formatSeconds(seg.End),
					fmt.Sprintf("%.1fs", seg.Duration()),
					seg.Text,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"#", "Start", "End", "Length", "Text"}, rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft}))

			text := ""
			for _, seg := range segments {
				text += seg.Text + " "
			}
			detected := language.Detect(text)
			lang := "unknown"
			if detected.Code != "" {
				lang = fmt.Sprintf("%s (%.0f%% confidence)", detected.Name, detected.Confidence*100)
			}
			fmt.Fprintf(out, "%d captions, %.1fs on screen, language %s\n", len(segments), total, lang)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the normalized captions as JSON")
	return cmd
}

func newCaptionsValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "validate <captions.json>",
		Short:       "Check a captions file for ordering and timing errors",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			segments, err := loadCaptionsArg(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Captions valid (%d segments)\n", len(segments))
			return nil
		},
	}
}

func loadCaptionsArg(arg string) ([]captions.Segment, error) {
	path, err := config.ExpandPath(arg)
	if err != nil {
		return nil, err
	}
	return captions.Load(path)
}

// formatSeconds renders m:ss.mmm.
func formatSeconds(v float64) string {
	ms := int64(v*1000 + 0.5)
	return fmt.Sprintf("%d:%02d.%03d", ms/60000, (ms/1000)%60, ms%1000)
}
