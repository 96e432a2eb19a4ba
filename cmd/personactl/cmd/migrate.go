package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Corphon/PersonaMarket/internal/storage"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the marketplace database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			// Open 会执行迁移
			db, err := storage.Open(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := db.CountArtisans(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "database ready at %s (%d artisans)\n", cfg.DatabasePath, n)
			return err
		},
	}
}
