package cmd

import (
	"chimera/internal/chimera"

	"github.com/spf13/cobra"
)

// catalogCmd groups the marker catalog inspection commands
var catalogCmd = &cobra.Command{
	Use:                        "catalog",
	Short:                      "Inspect the trait marker catalog",
	SuggestionsMinimumDistance: 2,
}

// catalogFindCmd searches the catalog by marker id or trait value
var catalogFindCmd = &cobra.Command{
	Use:   "find [term]",
	Short: "Find markers by id or trait value",
	Run:   chimera.CatalogFindCmd,
	Long: `Find marker records whose id or trait value contains the search term.
'chimera catalog find pink' lists every pigmentation marker for pink.`,
	SuggestionsMinimumDistance: 2,
}

// catalogLsCmd lists every record in the catalog
var catalogLsCmd = &cobra.Command{
	Use:                        "ls",
	Short:                      "List every marker in the catalog",
	Run:                        chimera.CatalogLsCmd,
	SuggestionsMinimumDistance: 2,
	Aliases:                    []string{"list"},
}

func init() {
	catalogCmd.AddCommand(catalogFindCmd)
	catalogCmd.AddCommand(catalogLsCmd)
	rootCmd.AddCommand(catalogCmd)
}
