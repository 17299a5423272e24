package main

import (
	"fmt"
	"log/slog"

	"github.com/bpparchive/archive/internal/infra"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := infra.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return infra.RunMigrations(cfg.DSN(), slog.Default())
		},
	}
}
