package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Corphon/PersonaMarket/internal/llm"
	"github.com/Corphon/PersonaMarket/internal/persona"
)

func newTranslateCmd(opts *rootOptions) *cobra.Command {
	var to, from string

	cmd := &cobra.Command{
		Use:   "translate [flags] TEXT...",
		Short: "Translate text; prints the input unchanged when translation is unavailable",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := llm.NormalizeLanguage(to); !ok {
				return fmt.Errorf("invalid target language %q", to)
			}
			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := a.InitPersona(cmd.Context()).Translate(cmd.Context(), strings.Join(args, " "), to, from)
			if !opts.jsonOut && out.Provenance == persona.ProvenanceTemplateFallback {
				fmt.Fprintln(cmd.ErrOrStderr(), "(translation unavailable, original text)")
			}
			return opts.print(cmd.OutOrStdout(), out, out.Text)
		},
	}
	cmd.Flags().StringVar(&to, "to", persona.DefaultLanguage, "target language (BCP 47)")
	cmd.Flags().StringVar(&from, "from", "", "source language, detected when empty")
	return cmd
}
