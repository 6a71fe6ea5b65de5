package cmd

import (
	"chimera/internal/chimera"

	"github.com/spf13/cobra"
)

// speciesCmd groups the reference genome commands
var speciesCmd = &cobra.Command{
	Use:                        "species",
	Short:                      "Inspect the available reference genomes",
	SuggestionsMinimumDistance: 2,
}

// speciesLsCmd lists the species with reference genomes on disk
var speciesLsCmd = &cobra.Command{
	Use:                        "ls",
	Short:                      "List species with a reference genome",
	Run:                        chimera.SpeciesLsCmd,
	SuggestionsMinimumDistance: 2,
	Aliases:                    []string{"list"},
}

func init() {
	speciesCmd.AddCommand(speciesLsCmd)
	rootCmd.AddCommand(speciesCmd)
}
