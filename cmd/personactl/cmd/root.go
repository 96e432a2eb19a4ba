package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Corphon/PersonaMarket/internal/app"
	"github.com/Corphon/PersonaMarket/internal/config"
	"github.com/Corphon/PersonaMarket/internal/utils"
)

// rootOptions 所有子命令共享的参数
type rootOptions struct {
	cfgFile  string
	logLevel string
	jsonOut  bool
}

// NewRootCmd builds the personactl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "personactl",
		Short: "Persona-driven storytelling for artisan marketplaces",
		Long: `personactl runs the persona marketplace server and exposes the synthesis
engine from the command line.

Without a configured generative backend every command still works: text comes
from the deterministic persona templates and is marked template-fallback.

Examples:
  personactl serve
  personactl preview --name Maya --craft pottery --location Jaipur --tone warm --depth 7
  personactl generate title --craft pottery --location Jaipur
  personactl translate --to hi "Handmade with love"
  personactl seed seed/sample.toml`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/persona-market/config.toml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level for command output (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		newServeCmd(opts),
		newPreviewCmd(opts),
		newGenerateCmd(opts),
		newTranslateCmd(opts),
		newMigrateCmd(opts),
		newSeedCmd(opts),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	return config.Load(o.cfgFile)
}

// logger 命令行输出走 stdout，日志写 stderr
func (o *rootOptions) logger(cmd *cobra.Command) *utils.Logger {
	return utils.NewLogger(cmd.ErrOrStderr(), utils.ParseLogLevel(o.logLevel))
}

// newApp 加载配置并创建应用；调用方负责 Close
func (o *rootOptions) newApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, o.logger(cmd)), nil
}

// print 按 --json 输出结果；text 为纯文本模式下的输出
func (o *rootOptions) print(w io.Writer, v interface{}, text string) error {
	if o.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
