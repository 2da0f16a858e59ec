package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newImagesCommand(ctx *commandContext) *cobra.Command {
	imagesCmd := &cobra.Command{
		Use:   "images",
		Short: "Stored image maintenance",
	}
	imagesCmd.AddCommand(newImagesCleanupCommand(ctx))
	return imagesCmd
}

func newImagesCleanupCommand(ctx *commandContext) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "List image files that no image record references",
		Long:  "List image files on disk that no image record references. Files are only deleted with --yes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			orphans, err := store.images.OrphanFiles(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(orphans) == 0 {
				fmt.Fprintln(out, "No orphaned image files")
				return nil
			}

			rows := make([][]string, 0, len(orphans))
			for _, p := range orphans {
				rows = append(rows, []string{p})
			}
			fmt.Fprintln(out, renderTable([]string{"Orphaned file"}, rows, nil))

			if !confirm {
				fmt.Fprintf(out, "%d files would be removed; rerun with --yes to delete them\n", len(orphans))
				return nil
			}
			if err := store.images.RemoveFiles(orphans); err != nil {
				return err
			}
			ctx.logger.Info("removed orphaned images", "count", len(orphans))
			fmt.Fprintf(out, "Removed %d files\n", len(orphans))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Delete the listed files")
	return cmd
}
