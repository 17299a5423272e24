package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func newAdminKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin-key",
		Short: "Manage admin keys",
	}
	cmd.AddCommand(newAdminKeyCreateCmd())
	return cmd
}

func newAdminKeyCreateCmd() *cobra.Command {
	var name, key string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Store a new admin key (the plaintext is never persisted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if key == "" {
				key = os.Getenv("ADMIN_KEY")
			}
			if key == "" {
				return errors.New("--key or ADMIN_KEY is required")
			}

			ctx := cmd.Context()
			b, err := openBackend(ctx, slog.Default(), false)
			if err != nil {
				return err
			}
			defer b.Close()

			created, err := b.svcs.Admin.CreateKey(ctx, name, key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin key %q (id %d)\n", created.KeyName, created.ID)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&name, "name", "Master", "display name of the key (env: BPP_NAME)")
	fs.StringVar(&key, "key", "", "plaintext key; falls back to ADMIN_KEY (env: BPP_KEY)")
	bindEnv(fs)
	return cmd
}
