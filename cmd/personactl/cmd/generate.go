package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Corphon/PersonaMarket/internal/persona"
	"github.com/Corphon/PersonaMarket/internal/services"
)

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate text with the configured backend, falling back to templates",
		Long: `Generate persona text. Each subcommand makes a single attempt against the
configured backend; on any failure the template fallback is printed instead.

Examples:
  personactl generate bio --name Maya --craft pottery --location Jaipur --tone warm
  personactl generate title --craft "block printing" --location Bagru
  personactl generate description --product "Blue Vase" --category pottery
  personactl generate cultural --craft pottery --location Jaipur
  personactl generate marketing --type email --campaign festive
  personactl generate bundles --product "Blue Vase:pottery" --product "Indigo Scarf:textiles" --theme gift`,
	}

	cmd.AddCommand(
		newGenerateBioCmd(opts),
		newGenerateTitleCmd(opts),
		newGenerateDescriptionCmd(opts),
		newGenerateCulturalCmd(opts),
		newGenerateMarketingCmd(opts),
		newGenerateBundlesCmd(opts),
	)
	return cmd
}

// runGeneration 创建合成服务并执行 fn
func runGeneration(cmd *cobra.Command, opts *rootOptions, fn func(ps *services.PersonaService) persona.GeneratedText) error {
	a, err := opts.newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := fn(a.InitPersona(cmd.Context()))
	if !opts.jsonOut && out.Provenance == persona.ProvenanceTemplateFallback {
		fmt.Fprintln(cmd.ErrOrStderr(), "(template fallback)")
	}
	return opts.print(cmd.OutOrStdout(), out, out.Text)
}

func newGenerateBioCmd(opts *rootOptions) *cobra.Command {
	var flags factFlags
	cmd := &cobra.Command{
		Use:   "bio",
		Short: "Artisan biography (default tone warm)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.tone == "" {
				flags.tone = persona.ToneWarm.String()
			}
			return runGeneration(cmd, opts, func(ps *services.PersonaService) persona.GeneratedText {
				return ps.GenerateArtisanBio(cmd.Context(), flags.facts(), flags.params())
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newGenerateTitleCmd(opts *rootOptions) *cobra.Command {
	var flags factFlags
	cmd := &cobra.Command{
		Use:   "title",
		Short: "Story title (default tone poetic)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tone := persona.ParseToneOr(flags.tone, persona.TonePoetic)
			return runGeneration(cmd, opts, func(ps *services.PersonaService) persona.GeneratedText {
				return ps.GenerateStoryTitle(cmd.Context(), flags.facts(), tone)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newGenerateDescriptionCmd(opts *rootOptions) *cobra.Command {
	var (
		product persona.EntityFacts
		tone    string
	)
	cmd := &cobra.Command{
		Use:   "description",
		Short: "Product description in the maker's voice (default tone warm)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := persona.ParseToneOr(tone, persona.ToneWarm)
			return runGeneration(cmd, opts, func(ps *services.PersonaService) persona.GeneratedText {
				return ps.GenerateProductDescription(cmd.Context(), product, t)
			})
		},
	}
	cmd.Flags().StringVar(&product.Name, "product", "", "product name")
	cmd.Flags().StringVar(&product.Category, "category", "", "product category")
	cmd.Flags().StringVar(&product.CraftType, "craft", "", "craft type, used when category is empty")
	cmd.Flags().StringVar(&product.Materials, "materials", "", "materials used")
	cmd.Flags().StringVar(&product.BaseDescription, "description", "", "maker's own short description")
	cmd.Flags().StringVar(&product.CulturalSignificance, "significance", "", "cultural significance")
	cmd.Flags().StringVar(&tone, "tone", "", "friendly, formal, poetic or warm")
	return cmd
}

func newGenerateCulturalCmd(opts *rootOptions) *cobra.Command {
	var craft, location string
	cmd := &cobra.Command{
		Use:   "cultural",
		Short: "Cultural context of a craft",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGeneration(cmd, opts, func(ps *services.PersonaService) persona.GeneratedText {
				return ps.GenerateCulturalContext(cmd.Context(), craft, location)
			})
		},
	}
	cmd.Flags().StringVar(&craft, "craft", "", "craft type")
	cmd.Flags().StringVar(&location, "location", "", "region")
	return cmd
}

func newGenerateMarketingCmd(opts *rootOptions) *cobra.Command {
	var (
		req     services.MarketingRequest
		artisan factFlags
		product string
	)
	cmd := &cobra.Command{
		Use:   "marketing",
		Short: "Social media post or email campaign copy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Artisan = artisan.facts()
			req.Product = persona.EntityFacts{Name: product}
			req.Tone = artisan.tone
			return runGeneration(cmd, opts, func(ps *services.PersonaService) persona.GeneratedText {
				return ps.GenerateMarketingContent(cmd.Context(), req)
			})
		},
	}
	artisan.register(cmd)
	cmd.Flags().StringVar(&req.ContentType, "type", services.ContentTypeSocialMedia, "social_media or email")
	cmd.Flags().StringVar(&req.Platform, "platform", "", "social platform (default Instagram)")
	cmd.Flags().StringVar(&req.CampaignType, "campaign", "", "email campaign type (default newsletter)")
	cmd.Flags().StringVar(&req.TargetAudience, "audience", "", "email audience (default customers)")
	cmd.Flags().StringVar(&product, "product", "", "featured product name")
	return cmd
}

func newGenerateBundlesCmd(opts *rootOptions) *cobra.Command {
	var (
		products []string
		theme    string
	)
	cmd := &cobra.Command{
		Use:   "bundles",
		Short: "Product bundle suggestions (default theme complementary)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			facts := make([]persona.EntityFacts, 0, len(products))
			for _, p := range products {
				name, category, _ := strings.Cut(p, ":")
				facts = append(facts, persona.EntityFacts{Name: strings.TrimSpace(name), Category: strings.TrimSpace(category)})
			}

			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := a.InitPersona(cmd.Context()).GenerateProductBundles(cmd.Context(), facts, theme)
			if !opts.jsonOut && out.Provenance == persona.ProvenanceTemplateFallback {
				fmt.Fprintln(cmd.ErrOrStderr(), "(template fallback)")
			}

			var text strings.Builder
			for i, b := range out.Bundles {
				if i > 0 {
					text.WriteString("\n")
				}
				fmt.Fprintf(&text, "%s: %s", b.Name, strings.Join(b.Products, ", "))
				if b.Reason != "" {
					fmt.Fprintf(&text, "\n  %s", b.Reason)
				}
			}
			return opts.print(cmd.OutOrStdout(), out, text.String())
		},
	}
	cmd.Flags().StringArrayVar(&products, "product", nil, `product as "name" or "name:category", repeatable`)
	cmd.Flags().StringVar(&theme, "theme", services.DefaultBundleTheme, "bundle theme")
	return cmd
}
