package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete uploaded images left behind by failed imports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			b, err := openBackend(ctx, slog.Default(), true)
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := b.svcs.Orphans.Sweep(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, removed %d, still referenced %d, already gone %d, failed %d\n",
				res.Scanned, res.Removed, res.Referenced, res.Missing, len(res.Failed))
			for _, url := range res.Failed {
				fmt.Fprintln(cmd.OutOrStdout(), "  failed:", url)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 500, "maximum orphans to process (env: BPP_LIMIT)")
	bindEnv(cmd.Flags())
	return cmd
}
