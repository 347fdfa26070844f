package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"trackline/internal/merger"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "Merge every export found in a directory into its timeline",
		Long: `Walk a directory of PhoneTrack exports, group them by session and
normalized user name, and merge each group into its timeline. Defaults to the
PhoneTrack_export directory under the configured export root.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				abs, err := filepath.Abs(args[0])
				if err != nil {
					return fmt.Errorf("resolve directory: %w", err)
				}
				dir = abs
			}

			return ctx.withMerger(func(m *merger.Merger) error {
				results, err := m.ScanDir(cmd.Context(), dir, dryRun)
				for _, result := range results {
					printResult(cmd, result)
				}
				if err != nil {
					return err
				}
				if len(results) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No export files found")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and report without writing timelines")
	return cmd
}
