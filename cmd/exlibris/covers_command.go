package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/justyntemme/exlibris/internal/catalog"
)

func newCoversCommand(ctx *commandContext) *cobra.Command {
	coversCmd := &cobra.Command{
		Use:   "covers",
		Short: "Cover image maintenance",
	}
	coversCmd.AddCommand(newCoversBackfillCommand(ctx))
	return coversCmd
}

func newCoversBackfillCommand(ctx *commandContext) *cobra.Command {
	var opts catalog.BackfillOptions

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Cache covers for volumes that have a cover URL but no cover image",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			b := catalog.NewBackfiller(store.db, ctx.coverCacher(store.images), ctx.logger)
			report, err := b.Run(cmd.Context(), opts)
			if report != nil {
				fmt.Fprintln(cmd.OutOrStdout(), renderBackfill(report, opts.DryRun))
			}
			return err
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Max volumes to process (0 = no limit)")
	cmd.Flags().DurationVar(&opts.Sleep, "sleep", time.Second, "Pause between downloads")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "List the volumes without downloading")
	return cmd
}

func renderBackfill(report *catalog.BackfillReport, dryRun bool) string {
	rows := make([][]string, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		detail := ""
		if o.Err != nil {
			detail = o.Err.Error()
		}
		rows = append(rows, []string{strconv.FormatInt(o.VolumeID, 10), o.Title, o.Outcome, detail})
	}

	out := renderTable([]string{"ID", "Title", "Outcome", "Detail"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft})
	if dryRun {
		return out + fmt.Sprintf("\nDry run: %d volumes would be processed", len(report.Outcomes))
	}
	return out + fmt.Sprintf("\nCached: %d  Skipped: %d  Failed: %d", report.Cached, report.Skipped, report.Failed)
}
