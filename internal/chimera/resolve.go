package chimera

import (
	"strings"

	"chimera/config"

	"go.uber.org/zap"
)

// ConflictFlag marks a resolved edit that needed tie-breaking or a
// fallback on the way to resolution
type ConflictFlag string

// the conflict flags a resolved edit can carry
const (
	// a higher-confidence marker at the same locus won
	FlagOverridden ConflictFlag = "overridden"

	// the marker's confidence is beneath the configured floor
	FlagLowConfidence ConflictFlag = "low_confidence"

	// the marker isn't documented for the requested species
	FlagSpeciesMismatch ConflictFlag = "species_mismatch"
)

// ResolvedEdit is one marker turned into a concrete, scaled edit
// against the base genome. Owned by a single request and discarded
// after assembly
type ResolvedEdit struct {
	// the marker the edit came from
	Marker *MarkerRecord `json:"-"`

	// the marker's id, also present on Marker; kept for output
	MarkerID string `json:"marker"`

	// the normalized trait the edit satisfies
	Trait Trait `json:"trait"`

	// the target locus as written on the marker
	Locus string `json:"locus"`

	Op Op `json:"operation"`

	// payload after modifier amplification, empty for delete/duplicate
	Payload string `json:"payload,omitempty"`

	// duplication count for duplicate edits, always >= 1
	Repeat int `json:"repeat,omitempty"`

	// the marker confidence after any cross-species discount
	Confidence float64 `json:"confidence"`

	Flags []ConflictFlag `json:"flags,omitempty"`
}

// Flagged reports whether the edit carries a conflict flag
func (e *ResolvedEdit) Flagged(f ConflictFlag) bool {
	for _, have := range e.Flags {
		if have == f {
			return true
		}
	}
	return false
}

func (e *ResolvedEdit) addFlag(f ConflictFlag) {
	if !e.Flagged(f) {
		e.Flags = append(e.Flags, f)
	}
}

// Resolver maps normalized traits to candidate marker edits
type Resolver struct {
	catalog *Catalog
	vocab   *Vocab
	conf    config.ResolverConfig
	logger  *zap.Logger
}

// NewResolver returns a Resolver over the catalog and vocabulary
func NewResolver(catalog *Catalog, vocab *Vocab, conf config.ResolverConfig, logger *zap.Logger) *Resolver {
	return &Resolver{catalog: catalog, vocab: vocab, conf: conf, logger: logger}
}

// Resolve queries the catalog for a trait and returns the candidate
// edits, conflict-resolved and scaled by the trait's modifier.
//
// Markers documented for the species (or generic ones) are preferred;
// cross-species markers are used only when nothing else matches, with
// a confidence discount and a species_mismatch flag. When several
// candidates target the same locus the highest-confidence one wins
// and the rest are kept with overridden set, so callers can still
// report them. A NoMarkerFoundError comes back only when not even a
// category-wide fallback exists
func (r *Resolver) Resolve(trait Trait, species string) ([]ResolvedEdit, error) {
	matches := r.catalog.Lookup(species, trait.Category, trait.Value)

	synthetic := false
	if len(matches) == 0 {
		matches = r.catalog.Fallback(species, trait.Category)
		synthetic = true
	}
	if len(matches) == 0 {
		return nil, &NoMarkerFoundError{Trait: trait, Species: species}
	}

	// prefer markers documented for (or generic across) the species;
	// fall back to cross-species markers only when none are
	var applicable, foreign []*MarkerRecord
	for _, m := range matches {
		if m.AppliesTo(species) || m.Generic() {
			applicable = append(applicable, m)
		} else {
			foreign = append(foreign, m)
		}
	}

	mismatch := false
	if len(applicable) == 0 {
		applicable = foreign
		mismatch = true
	}

	edits := make([]ResolvedEdit, 0, len(applicable))
	for _, m := range applicable {
		e := ResolvedEdit{
			Marker:     m,
			MarkerID:   m.ID,
			Trait:      trait,
			Locus:      m.Locus,
			Op:         m.Op,
			Payload:    m.Payload,
			Repeat:     1,
			Confidence: m.Confidence,
		}

		if mismatch {
			e.Confidence *= r.conf.SpeciesDiscount
			e.addFlag(FlagSpeciesMismatch)
		}
		if synthetic && e.Confidence > r.conf.LowConfidenceFloor {
			// synthetic fallback edits are never trusted above the floor
			e.Confidence = r.conf.LowConfidenceFloor
		}

		r.scale(&e, trait.Modifier)

		if e.Confidence < r.conf.LowConfidenceFloor || synthetic {
			e.addFlag(FlagLowConfidence)
		}

		edits = append(edits, e)
	}

	r.override(edits)

	if r.logger.Core().Enabled(zap.DebugLevel) {
		r.logger.Debug("trait resolved",
			zap.String("trait", trait.String()),
			zap.String("species", species),
			zap.Int("edits", len(edits)),
			zap.Bool("synthetic", synthetic),
			zap.Bool("speciesMismatch", mismatch))
	}

	return edits, nil
}

// scale applies the trait's magnitude modifier to the edit, clamped
// to the configured safety bounds so no modifier can request a
// pathological sequence length
func (r *Resolver) scale(e *ResolvedEdit, modifier string) {
	// even unmodified payloads respect the payload bound
	if len(e.Payload) > r.conf.MaxPayload {
		e.Payload = e.Payload[:r.conf.MaxPayload]
	}
	if modifier == "" {
		return
	}

	rule, ok := r.vocab.Modifier(modifier)
	if !ok {
		return // normalizer guarantees known modifiers; tolerate anyway
	}

	switch e.Op {
	case OpDuplicate:
		e.Repeat = rule.Repeat
		if e.Repeat > r.conf.MaxDuplication {
			e.Repeat = r.conf.MaxDuplication
		}
		if e.Repeat < 1 {
			e.Repeat = 1
		}
	case OpInsert:
		amplify := rule.Amplify
		if len(e.Payload) > 0 {
			if max := r.conf.MaxPayload / len(e.Payload); amplify > max {
				amplify = max
			}
		}
		if amplify < 1 {
			amplify = 1
		}
		e.Payload = strings.Repeat(e.Payload, amplify)
	}
	// substitute and delete payloads are never scaled: changing a
	// replacement's length would break the marker's documented edit
}

// override resolves same-locus collisions: the edits arrive ranked
// (descending confidence, then exact species, then id), so the first
// edit seen at a locus wins and later ones are flagged overridden
func (r *Resolver) override(edits []ResolvedEdit) {
	won := make(map[string]string, len(edits)) // locus -> winning marker id
	for i := range edits {
		if winner, taken := won[edits[i].Locus]; taken {
			edits[i].addFlag(FlagOverridden)
			r.logger.Debug("marker overridden",
				zap.String("loser", edits[i].MarkerID),
				zap.String("winner", winner),
				zap.String("locus", edits[i].Locus))
			continue
		}
		won[edits[i].Locus] = edits[i].MarkerID
	}
}
