package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"trackline/internal/gpx"
)

func newTimelinesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "timelines",
		Short: "List merged timeline files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			paths, err := filepath.Glob(filepath.Join(cfg.TimelinesPath(), "*_TIMELINE.gpx"))
			if err != nil {
				return fmt.Errorf("list timelines: %w", err)
			}
			if len(paths) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No timelines found in", cfg.TimelinesPath())
				return nil
			}
			sort.Strings(paths)

			rows := make([][]string, 0, len(paths))
			for _, path := range paths {
				rows = append(rows, timelineRow(path))
			}
			writeTable(cmd.OutOrStdout(),
				[]string{"Timeline", "Points", "First", "Last"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft})
			return nil
		},
	}
}

func timelineRow(path string) []string {
	name := strings.TrimSuffix(filepath.Base(path), "_TIMELINE.gpx")
	doc, err := gpx.DecodeFile(path)
	if err != nil {
		return []string{name, "?", "unreadable", err.Error()}
	}
	if len(doc.Points) == 0 {
		return []string{name, "0", "-", "-"}
	}
	const layout = "2006-01-02 15:04:05"
	return []string{
		name,
		strconv.Itoa(len(doc.Points)),
		doc.Points[0].Time.UTC().Format(layout),
		doc.Points[len(doc.Points)-1].Time.UTC().Format(layout),
	}
}
