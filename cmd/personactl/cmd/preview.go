package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Corphon/PersonaMarket/internal/persona"
	"github.com/Corphon/PersonaMarket/internal/services"
)

// factFlags 主体事实相关的通用参数
type factFlags struct {
	name       string
	craft      string
	location   string
	experience int
	tone       string
	depth      int
	style      string
}

func (f *factFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "artisan name")
	cmd.Flags().StringVar(&f.craft, "craft", "", "craft type, e.g. pottery")
	cmd.Flags().StringVar(&f.location, "location", "", "workshop location")
	cmd.Flags().IntVar(&f.experience, "experience", 0, "years of experience")
	cmd.Flags().StringVar(&f.tone, "tone", "", "friendly, formal, poetic or warm")
	cmd.Flags().IntVar(&f.depth, "depth", 0, "storytelling depth 1-10 (default 5)")
	cmd.Flags().StringVar(&f.style, "style", "", "persona style (default traditional)")
}

func (f *factFlags) facts() persona.EntityFacts {
	return persona.EntityFacts{
		Name:            f.name,
		CraftType:       f.craft,
		Location:        f.location,
		ExperienceYears: f.experience,
	}
}

func (f *factFlags) params() persona.PersonaParameters {
	return services.PersonaInput{Tone: f.tone, Style: f.style, StorytellingDepth: f.depth}.Parameters()
}

func newPreviewCmd(opts *rootOptions) *cobra.Command {
	var (
		flags     factFlags
		fragments bool
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Compose a bio from the persona templates (no network)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ps := services.NewPersonaService(nil, nil, opts.logger(cmd))
			facts, p := flags.facts(), flags.params()

			if fragments {
				parts := ps.PreviewFragments(facts, p)
				lines := make([]string, 0, len(parts))
				for _, frag := range parts {
					lines = append(lines, fmt.Sprintf("%-9s %s", frag.Name, frag.Text))
				}
				return opts.print(cmd.OutOrStdout(), parts, strings.Join(lines, "\n"))
			}

			bio := ps.PreviewBio(facts, p)
			return opts.print(cmd.OutOrStdout(), bio, bio.Text)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&fragments, "fragments", false, "print each fragment on its own line")
	return cmd
}
