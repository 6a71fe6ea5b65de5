package chimera

import (
	"errors"
	"strings"
	"testing"

	"chimera/config"

	"go.uber.org/zap"
)

func testResolverConfig() config.ResolverConfig {
	return config.ResolverConfig{
		MaxDuplication:     4,
		MaxPayload:         1000,
		SpeciesDiscount:    0.5,
		LowConfidenceFloor: 0.3,
		Workers:            1,
	}
}

func newTestResolver(t *testing.T, records []MarkerRecord) *Resolver {
	t.Helper()
	c, err := NewCatalog(records, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	return NewResolver(c, testVocab(t), testResolverConfig(), zap.NewNop())
}

func TestResolver_sameLocusConflict(t *testing.T) {
	strong := validMarker("M-STRONG")
	strong.Confidence = 0.9

	weak := validMarker("M-WEAK")
	weak.Confidence = 0.4

	r := newTestResolver(t, []MarkerRecord{weak, strong})

	edits, err := r.Resolve(Trait{Category: CategoryPigmentation, Value: "pink"}, "panda")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(edits) != 2 {
		t.Fatalf("Resolve() returned %d edits, want 2", len(edits))
	}

	if edits[0].MarkerID != "M-STRONG" || edits[0].Flagged(FlagOverridden) {
		t.Errorf("winning edit = %s (overridden=%v), want M-STRONG unflagged",
			edits[0].MarkerID, edits[0].Flagged(FlagOverridden))
	}
	if edits[1].MarkerID != "M-WEAK" || !edits[1].Flagged(FlagOverridden) {
		t.Errorf("losing edit = %s (overridden=%v), want M-WEAK with overridden set",
			edits[1].MarkerID, edits[1].Flagged(FlagOverridden))
	}
}

func TestResolver_genericOutranksWeakerExact(t *testing.T) {
	exact := validMarker("M-EXACT")
	exact.Confidence = 0.9

	generic := validMarker("M-GENERIC")
	generic.Species = []string{GenericSpecies}
	generic.Confidence = 0.95

	r := newTestResolver(t, []MarkerRecord{exact, generic})

	edits, err := r.Resolve(Trait{Category: CategoryPigmentation, Value: "pink"}, "panda")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(edits) != 2 {
		t.Fatalf("Resolve() returned %d edits, want 2", len(edits))
	}

	// the better-attested generic marker wins the locus even against
	// an exact species match
	if edits[0].MarkerID != "M-GENERIC" || edits[0].Flagged(FlagOverridden) {
		t.Errorf("winning edit = %s (overridden=%v), want M-GENERIC unflagged",
			edits[0].MarkerID, edits[0].Flagged(FlagOverridden))
	}
	if edits[1].MarkerID != "M-EXACT" || !edits[1].Flagged(FlagOverridden) {
		t.Errorf("losing edit = %s (overridden=%v), want M-EXACT with overridden set",
			edits[1].MarkerID, edits[1].Flagged(FlagOverridden))
	}
}

func TestResolver_differentLociKept(t *testing.T) {
	a := validMarker("M-A")
	b := validMarker("M-B")
	b.Locus = "TYR"

	r := newTestResolver(t, []MarkerRecord{a, b})

	edits, err := r.Resolve(Trait{Category: CategoryPigmentation, Value: "pink"}, "panda")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	for _, e := range edits {
		if e.Flagged(FlagOverridden) {
			t.Errorf("edit %s at %s flagged overridden, want both kept", e.MarkerID, e.Locus)
		}
	}
}

func TestResolver_speciesFallback(t *testing.T) {
	foreign := validMarker("M-FOREIGN")
	foreign.Species = []string{"axolotl"}
	foreign.Confidence = 0.8

	r := newTestResolver(t, []MarkerRecord{foreign})

	edits, err := r.Resolve(Trait{Category: CategoryPigmentation, Value: "pink"}, "panda")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(edits) != 1 {
		t.Fatalf("Resolve() returned %d edits, want 1", len(edits))
	}

	e := edits[0]
	if !e.Flagged(FlagSpeciesMismatch) {
		t.Error("cross-species edit missing species_mismatch flag")
	}
	if e.Confidence != 0.4 {
		t.Errorf("cross-species confidence = %f, want 0.8 * 0.5 = 0.4", e.Confidence)
	}
}

func TestResolver_exactSpeciesPreferredOverForeign(t *testing.T) {
	exact := validMarker("M-EXACT")
	exact.Confidence = 0.5

	foreign := validMarker("M-FOREIGN")
	foreign.Species = []string{"axolotl"}
	foreign.Confidence = 0.95
	foreign.Locus = "TYR"

	r := newTestResolver(t, []MarkerRecord{exact, foreign})

	edits, err := r.Resolve(Trait{Category: CategoryPigmentation, Value: "pink"}, "panda")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(edits) != 1 || edits[0].MarkerID != "M-EXACT" {
		t.Errorf("Resolve() = %+v, want only the exact-species marker", edits)
	}
}

func TestResolver_wildcardFallback(t *testing.T) {
	wildcard := validMarker("M-ANY")
	wildcard.Value = WildcardValue
	wildcard.Species = []string{GenericSpecies}
	wildcard.Confidence = 0.9

	r := newTestResolver(t, []MarkerRecord{wildcard})

	edits, err := r.Resolve(Trait{Category: CategoryPigmentation, Value: "blue"}, "panda")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(edits) != 1 {
		t.Fatalf("Resolve() returned %d edits, want 1 synthetic fallback", len(edits))
	}

	e := edits[0]
	if !e.Flagged(FlagLowConfidence) {
		t.Error("synthetic fallback edit missing low_confidence flag")
	}
	if e.Confidence > 0.3 {
		t.Errorf("synthetic fallback confidence = %f, want clamped to the 0.3 floor", e.Confidence)
	}
}

func TestResolver_noMarkerFound(t *testing.T) {
	r := newTestResolver(t, []MarkerRecord{validMarker("M-01")})

	trait := Trait{Category: CategorySize, Value: "miniature"}
	_, err := r.Resolve(trait, "panda")

	var notFound *NoMarkerFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Resolve() error = %v, want *NoMarkerFoundError", err)
	}
	if notFound.Trait != trait {
		t.Errorf("NoMarkerFoundError.Trait = %+v, want %+v", notFound.Trait, trait)
	}
}

func TestResolver_modifierScaling(t *testing.T) {
	dup := validMarker("M-DUP")
	dup.Category = CategorySize
	dup.Value = "giant"
	dup.Op = OpDuplicate
	dup.Payload = ""

	ins := validMarker("M-INS")
	ins.Category = CategoryMorphology
	ins.Value = "winged"
	ins.Op = OpInsert
	ins.Payload = strings.Repeat("ACG", 100) // 300 bp

	tests := []struct {
		name        string
		record      MarkerRecord
		trait       Trait
		wantRepeat  int
		wantPayload int
	}{
		{
			"no modifier leaves the edit alone",
			dup,
			Trait{Category: CategorySize, Value: "giant"},
			1, 0,
		},
		{
			"extreme modifier raises duplication",
			dup,
			Trait{Category: CategorySize, Value: "giant", Modifier: "extreme"},
			4, 0, // table says 5, clamped to MaxDuplication 4
		},
		{
			"slight modifier keeps one copy",
			dup,
			Trait{Category: CategorySize, Value: "giant", Modifier: "slight"},
			1, 0,
		},
		{
			"pronounced modifier amplifies an insert payload",
			ins,
			Trait{Category: CategoryMorphology, Value: "winged", Modifier: "pronounced"},
			1, 600, // amplify 2
		},
		{
			"amplification clamped by the payload bound",
			ins,
			Trait{Category: CategoryMorphology, Value: "winged", Modifier: "extreme"},
			1, 900, // amplify 3 fits exactly inside MaxPayload 1000
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(t, []MarkerRecord{tt.record})

			edits, err := r.Resolve(tt.trait, "panda")
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if len(edits) != 1 {
				t.Fatalf("Resolve() returned %d edits, want 1", len(edits))
			}
			if edits[0].Repeat != tt.wantRepeat {
				t.Errorf("Repeat = %d, want %d", edits[0].Repeat, tt.wantRepeat)
			}
			if tt.wantPayload > 0 && len(edits[0].Payload) != tt.wantPayload {
				t.Errorf("len(Payload) = %d, want %d", len(edits[0].Payload), tt.wantPayload)
			}
		})
	}
}

func TestResolver_lowConfidenceFlag(t *testing.T) {
	weak := validMarker("M-WEAK")
	weak.Confidence = 0.2

	r := newTestResolver(t, []MarkerRecord{weak})

	edits, err := r.Resolve(Trait{Category: CategoryPigmentation, Value: "pink"}, "panda")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !edits[0].Flagged(FlagLowConfidence) {
		t.Error("edit beneath the confidence floor missing low_confidence flag")
	}
}
