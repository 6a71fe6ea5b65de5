package chimera

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"chimera/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Request is one creature synthesis request as handed over by the
// upstream trait extractor
type Request struct {
	// structured traits, in the order the extractor found them
	Traits []RawTrait `json:"traits"`

	// the resolved species identifier
	Species string `json:"species"`

	// whether a species without a reference genome may fall back to
	// the synthetic generic base
	AllowImaginary bool `json:"allowImaginary,omitempty"`
}

// Result is everything a synthesis request produces. Partial success
// is the default: skipped traits land in Warnings, not in an error
type Result struct {
	// request id, assigned per invocation
	ID string `json:"id"`

	// the species whose reference was edited (the generic
	// pseudo-species for imaginary requests)
	Species string `json:"species"`

	// the assembled candidate sequence
	Seq string `json:"seq"`

	// every resolved edit in trait order, overridden ones included
	Edits []ResolvedEdit `json:"edits,omitempty"`

	// the edits that made it into the sequence, with final spans
	Applied []AppliedEdit `json:"applied,omitempty"`

	Viability ViabilityReport `json:"viability"`

	Warnings []Warning `json:"warnings,omitempty"`

	// wall-clock info, in the JSON output only
	Time      string  `json:"time"`
	Execution float64 `json:"execution"`
}

// Synthesizer is the synthesis façade: it owns the read-only catalog,
// reference genomes and vocab tables, and runs requests against them.
// Safe for concurrent requests; nothing here mutates after New
type Synthesizer struct {
	catalog *Catalog
	genomes *Genomes
	vocab   *Vocab
	lethal  *LethalPairs

	normalizer *Normalizer
	resolver   *Resolver
	simulator  *Simulator

	conf   *config.Config
	logger *zap.Logger
}

// NewSynthesizer loads the marker catalog, reference genomes and
// vocab tables and wires up the pipeline. This is the process's only
// I/O; every load failure here is fatal
func NewSynthesizer(conf *config.Config, logger *zap.Logger) (*Synthesizer, error) {
	catalog, err := LoadCatalog(conf.Catalog, logger)
	if err != nil {
		return nil, err
	}

	genomes, err := LoadGenomes(conf.GenomeDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference genomes: %w", err)
	}

	vocab, err := LoadVocab(conf.Synonyms, conf.Modifiers)
	if err != nil {
		return nil, fmt.Errorf("failed to load trait vocabulary: %w", err)
	}

	lethal, err := LoadLethalPairs(conf.LethalPairs)
	if err != nil {
		return nil, fmt.Errorf("failed to load lethal pair table: %w", err)
	}

	return &Synthesizer{
		catalog:    catalog,
		genomes:    genomes,
		vocab:      vocab,
		lethal:     lethal,
		normalizer: NewNormalizer(vocab, conf.Normalizer.SimilarityThreshold),
		resolver:   NewResolver(catalog, vocab, conf.Resolver, logger),
		simulator:  NewSimulator(conf.Viability, conf.Assembly.LengthTolerance, lethal),
		conf:       conf,
		logger:     logger,
	}, nil
}

// traitOutcome is one trait's resolution, reassembled in input order
// after the workers finish so results stay deterministic
type traitOutcome struct {
	edits    []ResolvedEdit
	warnings []Warning
}

// Synthesize runs one request through the pipeline: normalize and
// resolve each trait, assemble the resolved edits over the base
// genome, then score the candidate.
//
// Unrecognized traits, missing markers and incompatible edits are
// warnings; the request keeps going. The only per-request fatal error
// is an unknown species without the imaginary fallback. Cancellation
// is honored between stages; once assembly starts it runs to
// completion so a CandidateSequence is only ever a finished value
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	result := &Result{
		ID:      uuid.NewString(),
		Species: req.Species,
	}
	logger := s.logger.With(
		zap.String("request", result.ID),
		zap.String("species", req.Species))

	base, err := s.genomes.Get(req.Species)
	if err != nil {
		var unknown *UnknownSpeciesError
		if !errors.As(err, &unknown) || !req.AllowImaginary {
			return nil, err
		}

		base = GenericGenome()
		result.Species = base.Species
		result.Warnings = append(result.Warnings, Warning{
			Code:    WarnSpeciesFallback,
			Message: fmt.Sprintf("no reference genome for %q; using the generic base sequence", req.Species),
		})
		logger.Info("imaginary species, using generic base genome")
	}

	outcomes := make([]traitOutcome, len(req.Traits))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for i, raw := range req.Traits {
		i, raw := i, raw
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = s.resolveTrait(raw, req.Species)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var edits []ResolvedEdit
	for _, o := range outcomes {
		edits = append(edits, o.edits...)
		result.Warnings = append(result.Warnings, o.warnings...)
	}
	result.Edits = edits

	// last cancellation point before assembly; from here the
	// candidate is built as a single finished value
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidate, assemblyWarnings := Assemble(base, edits, logger)
	result.Warnings = append(result.Warnings, assemblyWarnings...)
	result.Seq = candidate.Seq
	result.Applied = candidate.Applied

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Viability = s.simulator.Score(candidate, base)

	elapsed := time.Since(start)
	result.Time = start.Format("2006-01-02 15:04:05")
	result.Execution = elapsed.Seconds()

	logger.Info("synthesis complete",
		zap.Int("traits", len(req.Traits)),
		zap.Int("applied", len(result.Applied)),
		zap.Int("warnings", len(result.Warnings)),
		zap.Float64("score", result.Viability.Score),
		zap.String("verdict", string(result.Viability.Verdict)),
		zap.Duration("elapsed", elapsed))

	return result, nil
}

// resolveTrait normalizes and resolves a single trait, converting
// the recoverable errors of both stages into warnings
func (s *Synthesizer) resolveTrait(raw RawTrait, species string) traitOutcome {
	var o traitOutcome

	trait, err := s.normalizer.Normalize(raw)
	if err != nil {
		o.warnings = append(o.warnings, Warning{
			Code:    WarnUnrecognizedTrait,
			Trait:   fmt.Sprintf("%s/%s", raw.Category, raw.Value),
			Message: err.Error(),
		})
		return o
	}

	edits, err := s.resolver.Resolve(trait, species)
	if err != nil {
		o.warnings = append(o.warnings, warn(WarnNoMarkerFound, trait, err))
		return o
	}

	for i := range edits {
		if edits[i].Flagged(FlagSpeciesMismatch) {
			o.warnings = append(o.warnings, Warning{
				Code:    WarnSpeciesFallback,
				Trait:   trait.String(),
				Message: fmt.Sprintf("marker %s is not documented for %q; applying it cross-species", edits[i].MarkerID, species),
			})
			break // one warning per trait is enough
		}
	}

	o.edits = edits
	return o
}

// Species lists the species with loaded reference genomes
func (s *Synthesizer) Species() []string {
	return s.genomes.Species()
}

// Catalog exposes the loaded marker catalog for the find/ls commands
func (s *Synthesizer) Catalog() *Catalog {
	return s.catalog
}

func (s *Synthesizer) workers() int {
	if s.conf.Resolver.Workers > 0 {
		return s.conf.Resolver.Workers
	}
	return runtime.NumCPU()
}
