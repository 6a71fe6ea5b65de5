// Package chimera turns a list of desired organism traits into a
// candidate genetic sequence and an estimate of its viability
package chimera

import "fmt"

// Category is a class of observable trait
type Category string

// the trait categories understood by the marker catalog
const (
	CategoryPigmentation Category = "pigmentation"
	CategorySize         Category = "size"
	CategoryBehavior     Category = "behavior"
	CategoryMorphology   Category = "morphology"
	CategoryPhysiology   Category = "physiology"
)

// categories is every known Category, in listing order
var categories = []Category{
	CategoryPigmentation,
	CategorySize,
	CategoryBehavior,
	CategoryMorphology,
	CategoryPhysiology,
}

// parseCategory maps a raw category string to a known Category
func parseCategory(s string) (Category, error) {
	for _, c := range categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown trait category %q", s)
}

// RawTrait is a single structured trait as passed in from the
// upstream trait extractor, before normalization
type RawTrait struct {
	// the trait's category, eg "pigmentation"
	Category string `json:"category" yaml:"category"`

	// the trait's free-form value, eg "glowing"
	Value string `json:"value" yaml:"value"`

	// an optional magnitude or qualifier, eg "slightly"
	Modifier string `json:"modifier,omitempty" yaml:"modifier,omitempty"`

	// an optional species the extractor attributed the trait to
	SpeciesHint string `json:"speciesHint,omitempty" yaml:"speciesHint,omitempty"`
}

// Trait is a normalized trait in the catalog's controlled
// vocabulary. Immutable once created
type Trait struct {
	Category Category `json:"category"`

	// the canonical trait value, eg "bioluminescent"
	Value string `json:"value"`

	// the canonical modifier name, empty if none was requested
	Modifier string `json:"modifier,omitempty"`

	// species the trait was attributed to, empty if unattributed
	Species string `json:"species,omitempty"`
}

// String is the trait as it appears in warnings and log lines
func (t Trait) String() string {
	if t.Modifier != "" {
		return fmt.Sprintf("%s/%s (%s)", t.Category, t.Value, t.Modifier)
	}
	return fmt.Sprintf("%s/%s", t.Category, t.Value)
}
