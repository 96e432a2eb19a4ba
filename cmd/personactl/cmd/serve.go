package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Corphon/PersonaMarket/internal/app"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and live preview websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}

			// 服务模式使用进程日志，级别取自配置
			a := app.New(cfg, nil)
			if err := a.Initialize(cmd.Context()); err != nil {
				a.Close()
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "listening on :%s\n", cfg.Port)
			return a.Run()
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "override PORT")
	return cmd
}
