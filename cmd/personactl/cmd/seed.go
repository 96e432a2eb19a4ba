package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Corphon/PersonaMarket/internal/di"
	"github.com/Corphon/PersonaMarket/internal/services"
	"github.com/Corphon/PersonaMarket/internal/storage"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE.toml",
		Short: "Import sample artisans and products from a TOML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := storage.LoadSeedFile(args[0])
			if err != nil {
				return err
			}

			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.InitServices(cmd.Context()); err != nil {
				return err
			}
			marketplace, err := di.Resolve[*services.MarketplaceService](a.Container(), di.ServiceMarketplace)
			if err != nil {
				return err
			}

			res, err := marketplace.Seed(cmd.Context(), seed)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), res,
				fmt.Sprintf("imported %d artisans and %d products into %s", res.Artisans, res.Products, a.GetConfig().DatabasePath))
		},
	}
}
