package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"trackline/internal/merger"
)

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var nameFlag string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "merge <file>",
		Short: "Merge a daily export into its session timeline",
		Long: `Merge a newly created PhoneTrack daily export into the cumulative
timeline for its session/user pair. This is the entry point the file-event
trigger invokes: the export's path is read for content and its base name
supplies the identity. Use --name when the readable path does not carry the
original export name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			info, err := os.Stat(absPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("file does not exist: %s", absPath)
				}
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", absPath)
			}

			return ctx.withMerger(func(m *merger.Merger) error {
				result, err := m.MergeFile(cmd.Context(), absPath, nameFlag, dryRun)
				if err != nil {
					return err
				}
				printResult(cmd, result)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&nameFlag, "name", "", "Base name used for identity parsing (defaults to the file's base name)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and report without writing the timeline")
	return cmd
}

func printResult(cmd *cobra.Command, result *merger.Result) {
	out := cmd.OutOrStdout()
	label := fmt.Sprintf("%s / %s", result.Identity.NormalizedSession(), result.Identity.NormalizedUser())
	switch {
	case result.DryRun:
		fmt.Fprintf(out, "Dry run for %s: would add %d points (%d -> %d) in %s\n",
			label, result.PointsAdded, result.PointsBefore, result.PointsTotal, result.TimelinePath)
	case !result.Written:
		fmt.Fprintf(out, "No valid points for %s, timeline unchanged (%d points)\n",
			label, result.PointsTotal)
	default:
		fmt.Fprintf(out, "Merged %s: +%d points (%d -> %d) in %s\n",
			label, result.PointsAdded, result.PointsBefore, result.PointsTotal, result.TimelinePath)
	}
	if result.PointsSkipped > 0 {
		fmt.Fprintf(out, "Warning: skipped %d malformed points\n", result.PointsSkipped)
	}
}
