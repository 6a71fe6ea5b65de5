// Package cmd is for command line interactions with the chimera application
package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootSettingsFile is the default settings file, overridable with --settings
const RootSettingsFile = "settings.yaml"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "chimera",
	Short: `Design candidate genetic sequences from a list of desired organism traits.
Traits are resolved against a curated marker catalog, assembled over a species
reference genome, and scored for biological plausibility`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// settings is an optional parameter for a settings file (that overrides the fields in RootSettingsFile)
	rootCmd.PersistentFlags().StringP("settings", "s", RootSettingsFile, "path to a settings file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "whether to log debug output to stderr")

	// the engine paths are shared by every subcommand; binding them
	// here, once, keeps one viper key per flag
	rootCmd.PersistentFlags().StringP("catalog", "c", "data/catalog.json", "path to the marker catalog (JSON or SQLite)")
	rootCmd.PersistentFlags().StringP("genome-dir", "g", "data/genomes", "directory of reference genomes")

	viper.BindPFlag("settings", rootCmd.PersistentFlags().Lookup("settings"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("catalog", rootCmd.PersistentFlags().Lookup("catalog"))
	viper.BindPFlag("genome-dir", rootCmd.PersistentFlags().Lookup("genome-dir"))
}

// initConfig reads the settings file into viper, if one exists
func initConfig() {
	settings := viper.GetString("settings")
	if settings == "" {
		settings = RootSettingsFile
	}

	if _, err := os.Stat(settings); err != nil {
		return // no settings file, defaults and flags only
	}

	viper.SetConfigFile(settings)
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("failed to read settings from %s: %v", settings, err)
	}
}
