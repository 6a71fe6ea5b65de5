// Package config is for app wide settings that are unmarshalled
// from Viper (see: /cmd)
package config

import (
	"log"
	"runtime"

	"github.com/spf13/viper"
)

// NormalizerConfig is settings for trait normalization
type NormalizerConfig struct {
	// the minimum similarity for a fuzzy match against the
	// controlled vocabulary, in [0,1]
	SimilarityThreshold float64 `mapstructure:"similarity-threshold"`
}

// ResolverConfig is settings for marker resolution
type ResolverConfig struct {
	// the maximum number of times a locus can be duplicated by one edit
	MaxDuplication int `mapstructure:"max-duplication"`

	// the maximum length of a single edit payload in bp
	MaxPayload int `mapstructure:"max-payload"`

	// confidence multiplier applied to markers used across species
	SpeciesDiscount float64 `mapstructure:"species-discount"`

	// confidence beneath which an edit is flagged low-confidence
	LowConfidenceFloor float64 `mapstructure:"low-confidence-floor"`

	// the number of traits resolved concurrently per request
	Workers int `mapstructure:"workers"`
}

// AssemblyConfig is settings for sequence assembly
type AssemblyConfig struct {
	// allowed fractional deviation of the assembled sequence's
	// length from the base genome's before it's penalized
	LengthTolerance float64 `mapstructure:"length-tolerance"`
}

// ViabilityWeights are the per-check penalty weights
type ViabilityWeights struct {
	// penalty per out-of-frame insert/delete in a coding locus
	Frame float64 `mapstructure:"frame"`

	// penalty for length deviation beyond the assembly tolerance
	Length float64 `mapstructure:"length"`

	// penalty per overridden edit
	Overridden float64 `mapstructure:"overridden"`

	// penalty per cross-species edit
	SpeciesMismatch float64 `mapstructure:"species-mismatch"`

	// penalty per low-confidence edit
	LowConfidence float64 `mapstructure:"low-confidence"`

	// penalty per jointly-lethal marker pair
	Lethal float64 `mapstructure:"lethal"`

	// penalty for invalid symbols or extreme GC content
	Composition float64 `mapstructure:"composition"`
}

// ViabilityConfig is settings for viability scoring
type ViabilityConfig struct {
	// score at or above which a sequence is called viable
	ViableThreshold float64 `mapstructure:"viable-threshold"`

	// score at or above which a sequence is called marginal
	MarginalThreshold float64 `mapstructure:"marginal-threshold"`

	// cap on the total penalty contributed by any one flag category
	FlagPenaltyCap float64 `mapstructure:"flag-penalty-cap"`

	// the GC fraction range considered unremarkable
	GCMin float64 `mapstructure:"gc-min"`
	GCMax float64 `mapstructure:"gc-max"`

	Weights ViabilityWeights `mapstructure:"weights"`
}

// Config is the root-level settings struct and is a mix
// of settings available in settings.yaml and those
// available from the command line
type Config struct {
	// path to the marker catalog (JSON or SQLite by extension)
	Catalog string `mapstructure:"catalog"`

	// directory of per-species reference genomes
	GenomeDir string `mapstructure:"genome-dir"`

	// optional overrides for the embedded vocab tables
	Synonyms    string `mapstructure:"synonyms"`
	Modifiers   string `mapstructure:"modifiers"`
	LethalPairs string `mapstructure:"lethal-pairs"`

	// whether to log progress to stdout
	Verbose bool `mapstructure:"verbose"`

	Normalizer NormalizerConfig `mapstructure:"normalizer"`
	Resolver   ResolverConfig   `mapstructure:"resolver"`
	Assembly   AssemblyConfig   `mapstructure:"assembly"`
	Viability  ViabilityConfig  `mapstructure:"viability"`
}

// setDefaults registers the baseline settings with viper. Everything
// here can be overridden in settings.yaml or with command line flags
func setDefaults() {
	viper.SetDefault("catalog", "data/catalog.json")
	viper.SetDefault("genome-dir", "data/genomes")

	viper.SetDefault("normalizer.similarity-threshold", 0.8)

	viper.SetDefault("resolver.max-duplication", 8)
	viper.SetDefault("resolver.max-payload", 10000)
	viper.SetDefault("resolver.species-discount", 0.5)
	viper.SetDefault("resolver.low-confidence-floor", 0.3)
	viper.SetDefault("resolver.workers", runtime.NumCPU())

	viper.SetDefault("assembly.length-tolerance", 0.25)

	viper.SetDefault("viability.viable-threshold", 0.7)
	viper.SetDefault("viability.marginal-threshold", 0.4)
	viper.SetDefault("viability.flag-penalty-cap", 0.3)
	viper.SetDefault("viability.gc-min", 0.2)
	viper.SetDefault("viability.gc-max", 0.8)

	viper.SetDefault("viability.weights.frame", 0.15)
	viper.SetDefault("viability.weights.length", 0.2)
	viper.SetDefault("viability.weights.overridden", 0.05)
	viper.SetDefault("viability.weights.species-mismatch", 0.1)
	viper.SetDefault("viability.weights.low-confidence", 0.05)
	viper.SetDefault("viability.weights.lethal", 0.6)
	viper.SetDefault("viability.weights.composition", 0.1)
}

// New returns a new Config struct populated by Viper settings (either
// from the local settings.yaml) and/or command line arguments
func New() *Config {
	setDefaults()

	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		log.Fatalf("unable to decode settings into struct: %v", err)
	}

	return &c
}

// Verdict returns "viable", "marginal" or "nonviable" for a score
// using the configured thresholds. The mapping is monotonic: raising
// a score can never worsen the verdict
func (v ViabilityConfig) Verdict(score float64) string {
	switch {
	case score >= v.ViableThreshold:
		return "viable"
	case score >= v.MarginalThreshold:
		return "marginal"
	default:
		return "nonviable"
	}
}
