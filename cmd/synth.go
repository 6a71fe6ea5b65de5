package cmd

import (
	"chimera/internal/chimera"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// synthCmd runs a full trait-to-sequence synthesis request
var synthCmd = &cobra.Command{
	Use:   "synth [category:value[:modifier]] ...",
	Short: "Synthesize a candidate sequence from a list of traits",
	Run:   chimera.SynthesizeCmd,
	Long: `Synthesize a candidate genetic sequence for a species from a list of traits.

Each trait is "category:value" with an optional magnitude modifier, eg
"pigmentation:pink" or "size:giant:extreme". Traits the catalog can't
resolve are skipped with a warning; the request still succeeds with the
remaining traits. The result is a JSON report with the assembled
sequence, the applied edits and a viability verdict.`,
	Example: `  chimera synth -p panda "pigmentation:pink" "size:miniature"
  chimera synth -p axolotl -t "pigmentation:glowing, behavior:docile" -o out.json
  chimera synth -p basilisk --imaginary -f traits.yaml`,
	SuggestionsMinimumDistance: 2,
	Aliases:                    []string{"synthesize", "design"},
}

func init() {
	synthCmd.Flags().StringP("species", "p", "", "species to design for")
	synthCmd.Flags().StringP("traits", "t", "", "comma separated trait list, category:value[:modifier]")
	synthCmd.Flags().StringP("traits-file", "f", "", "JSON or YAML file with the trait list")
	synthCmd.Flags().StringP("out", "o", "", "output file name (stdout if unset)")
	synthCmd.Flags().BoolP("imaginary", "i", false, "fall back to the generic base genome for unknown species")
	synthCmd.Flags().IntP("workers", "w", 0, "traits resolved concurrently (0 for one per CPU)")

	synthCmd.MarkFlagRequired("species")

	viper.BindPFlag("resolver.workers", synthCmd.Flags().Lookup("workers"))

	rootCmd.AddCommand(synthCmd)
}
