package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"go-live-lottie/internal/lottie"
	"go-live-lottie/internal/render"
)

// errInvalidDocuments makes inspect exit non-zero without printing twice.
var errInvalidDocuments = errors.New("one or more files are not Lottie animations")

type inspectResult struct {
	File     string           `json:"file"`
	Valid    bool             `json:"valid"`
	Reason   string           `json:"reason,omitempty"`
	Metadata *lottie.Metadata `json:"metadata,omitempty"`
}

func newInspectCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "inspect <file>...",
		Short:       "Classify files and print animation metadata",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]inspectResult, 0, len(args))
			for _, path := range args {
				result, err := inspectFile(path)
				if err != nil {
					return err
				}
				results = append(results, result)
			}

			if jsonOutput {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				colorize := shouldColorize(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), renderInspectTable(results, colorize))
			}

			for _, r := range results {
				if !r.Valid {
					return errInvalidDocuments
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit results as JSON")
	return cmd
}

func inspectFile(path string) (inspectResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return inspectResult{}, fmt.Errorf("read %s: %w", path, err)
	}
	content := string(raw)

	result := inspectResult{File: path}
	if reason := lottie.Diagnose(content); reason != nil {
		result.Reason = reason.Error()
		return result, nil
	}
	meta, ok := lottie.ReadMetadata(content)
	if !ok {
		result.Reason = "metadata unavailable"
		return result, nil
	}
	result.Valid = true
	result.Metadata = &meta
	return result, nil
}

func renderInspectTable(results []inspectResult, colorize bool) string {
	headers := []string{"File", "Lottie", "Version", "Frame rate", "Duration", "Size"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		name := filepath.Base(r.File)
		if !r.Valid {
			rows = append(rows, []string{name, paint("no", text.FgRed, colorize), r.Reason, "-", "-", "-"})
			continue
		}
		meta := *r.Metadata
		version := meta.Version
		if version == "" {
			version = "-"
		}
		rows = append(rows, []string{
			name,
			paint("yes", text.FgGreen, colorize),
			version,
			render.FormatFrameRate(meta.FrameRate),
			render.FormatDuration(meta),
			render.FormatNumber(meta.Width) + "x" + render.FormatNumber(meta.Height),
		})
	}
	return renderTable(headers, rows, aligns)
}

func paint(s string, color text.Color, colorize bool) string {
	if !colorize {
		return s
	}
	return color.Sprint(s)
}
