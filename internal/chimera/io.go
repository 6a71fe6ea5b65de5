package chimera

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"chimera/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// stderr is for user-facing failures (without an annoying timestamp)
var stderr = log.New(os.Stderr, "", 0)

// Flags contains parsed cobra flags like "traits", "species", "out"
// that are used by multiple commands
type Flags struct {
	// the traits to synthesize, in input order
	traits []RawTrait

	// the requested species
	species string

	// the name of the file to write the output to, "" for stdout
	out string

	// whether a species without a reference may use the generic base
	allowImaginary bool
}

// inputParser contains methods for parsing flags from the input &cobra.Command
type inputParser struct{}

// NewLogger builds the process logger. Debug level when verbose
func NewLogger(verbose bool) *zap.Logger {
	conf := zap.NewProductionConfig()
	conf.OutputPaths = []string{"stderr"}
	if verbose {
		conf.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	logger, err := conf.Build()
	if err != nil {
		stderr.Fatalf("failed to build logger: %v", err)
	}
	return logger
}

// SynthesizeCmd takes a cobra command (with its flags) and runs a
// full synthesis request against the configured catalog and genomes
func SynthesizeCmd(cmd *cobra.Command, args []string) {
	conf := config.New()
	logger := NewLogger(conf.Verbose)
	defer func() { _ = logger.Sync() }()

	flags, err := (inputParser{}).parse(cmd, args)
	if err != nil {
		stderr.Fatal(err)
	}

	s, err := NewSynthesizer(conf, logger)
	if err != nil {
		stderr.Fatalf("failed to start synthesis engine: %v", err)
	}

	result, err := s.Synthesize(context.Background(), Request{
		Traits:         flags.traits,
		Species:        flags.species,
		AllowImaginary: flags.allowImaginary,
	})
	if err != nil {
		stderr.Fatalf("failed to synthesize %s: %v", flags.species, err)
	}

	if err := writeResult(flags.out, result); err != nil {
		stderr.Fatalf("failed to write result: %v", err)
	}

	fmt.Fprintf(os.Stderr, "%s: %.2f (%s), %d warning(s)\n",
		flags.species, result.Viability.Score, result.Viability.Verdict, len(result.Warnings))
}

// CatalogFindCmd prints catalog records matching the query term
func CatalogFindCmd(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		stderr.Fatal("no search term given. see 'chimera catalog find --help'")
	}

	c := loadCatalogForCLI()
	records := c.Find(strings.Join(args, " "))
	if len(records) == 0 {
		stderr.Fatalf("no markers matching %q", strings.Join(args, " "))
	}
	printMarkers(records)
}

// CatalogLsCmd prints every record in the marker catalog
func CatalogLsCmd(cmd *cobra.Command, args []string) {
	printMarkers(loadCatalogForCLI().Records())
}

// SpeciesLsCmd prints the species with reference genomes available
func SpeciesLsCmd(cmd *cobra.Command, args []string) {
	conf := config.New()
	logger := NewLogger(false)
	defer func() { _ = logger.Sync() }()

	genomes, err := LoadGenomes(conf.GenomeDir, logger)
	if err != nil {
		stderr.Fatalf("failed to load reference genomes: %v", err)
	}

	for _, sp := range genomes.Species() {
		fmt.Println(sp)
	}
}

func loadCatalogForCLI() *Catalog {
	conf := config.New()
	logger := NewLogger(false)
	defer func() { _ = logger.Sync() }()

	c, err := LoadCatalog(conf.Catalog, logger)
	if err != nil {
		stderr.Fatalf("failed to load marker catalog: %v", err)
	}
	return c
}

// printMarkers writes records in aligned columns
func printMarkers(records []MarkerRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tVALUE\tSPECIES\tLOCUS\tOP\tCONF")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%.2f\n",
			r.ID, r.Category, r.Value, strings.Join(r.Species, ","), r.Locus, r.Op, r.Confidence)
	}
	w.Flush()
}

// parse gathers the traits, species, out path etc from a cobra cmd
func (p inputParser) parse(cmd *cobra.Command, args []string) (*Flags, error) {
	fs := &Flags{}
	var err error

	if fs.species, err = cmd.Flags().GetString("species"); err != nil || fs.species == "" {
		return nil, fmt.Errorf("no species chosen. see 'chimera synth --help'")
	}
	fs.species = strings.ToLower(strings.TrimSpace(fs.species))

	traits, _ := cmd.Flags().GetString("traits")
	traitsFile, _ := cmd.Flags().GetString("traits-file")
	switch {
	case traitsFile != "":
		if fs.traits, err = p.readTraitsFile(traitsFile); err != nil {
			return nil, err
		}
	case traits != "":
		if fs.traits, err = p.parseTraits(traits); err != nil {
			return nil, err
		}
	case len(args) > 0:
		if fs.traits, err = p.parseTraits(strings.Join(args, ",")); err != nil {
			return nil, err
		}
	}

	fs.out, _ = cmd.Flags().GetString("out")
	fs.allowImaginary, _ = cmd.Flags().GetBool("imaginary")

	return fs, nil
}

// parseTraits parses a comma separated trait list. Each entry is
// "category:value" or "category:value:modifier"
func (p inputParser) parseTraits(s string) ([]RawTrait, error) {
	var traits []RawTrait
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid trait %q: want category:value[:modifier]", entry)
		}

		t := RawTrait{
			Category: strings.TrimSpace(parts[0]),
			Value:    strings.TrimSpace(parts[1]),
		}
		if len(parts) == 3 {
			t.Modifier = strings.TrimSpace(parts[2])
		}
		traits = append(traits, t)
	}

	if len(traits) == 0 {
		return nil, fmt.Errorf("no traits chosen. see 'chimera synth --help'")
	}
	return traits, nil
}

// readTraitsFile reads a trait list from a JSON or YAML file
func (p inputParser) readTraitsFile(path string) ([]RawTrait, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read traits from %s: %w", path, err)
	}

	var traits []RawTrait
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(contents, &traits)
	default:
		err = yaml.Unmarshal(contents, &traits)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse traits in %s: %w", path, err)
	}
	if len(traits) == 0 {
		return nil, fmt.Errorf("no traits in %s", path)
	}

	return traits, nil
}

// writeResult writes the synthesis result as indented JSON to the
// out path, or stdout when none was given
func writeResult(out string, result *Result) error {
	contents, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	contents = append(contents, '\n')

	if out == "" {
		_, err = os.Stdout.Write(contents)
		return err
	}
	return os.WriteFile(out, contents, 0644)
}
