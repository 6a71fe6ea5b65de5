package chimera

import (
	"errors"
	"fmt"
)

// ErrEmptyCatalog is returned by LoadCatalog when no valid marker
// records survive parsing
var ErrEmptyCatalog = errors.New("marker catalog contains no valid records")

// CatalogLoadError means the marker catalog source could not be read
// at all. Startup-only and fatal
type CatalogLoadError struct {
	Path string
	Err  error
}

func (e *CatalogLoadError) Error() string {
	return fmt.Sprintf("failed to load marker catalog from %s: %v", e.Path, e.Err)
}

func (e *CatalogLoadError) Unwrap() error { return e.Err }

// UnknownSpeciesError means no reference genome exists for the
// requested species. Fatal per-request unless the caller allows
// imaginary species, in which case the generic base genome is used
type UnknownSpeciesError struct {
	Species string
}

func (e *UnknownSpeciesError) Error() string {
	return fmt.Sprintf("no reference genome for species %q", e.Species)
}

// UnrecognizedTraitError means a raw trait value couldn't be mapped
// into the controlled vocabulary. Recoverable: the trait is skipped
// and the request continues
type UnrecognizedTraitError struct {
	Value      string
	Closest    string
	Similarity float64
}

func (e *UnrecognizedTraitError) Error() string {
	if e.Closest == "" {
		return fmt.Sprintf("unrecognized trait %q", e.Value)
	}
	return fmt.Sprintf(
		"unrecognized trait %q (closest vocabulary term %q at %.2f similarity)",
		e.Value, e.Closest, e.Similarity,
	)
}

// NoMarkerFoundError means the catalog holds no marker, not even a
// generic fallback, for a normalized trait. Recoverable
type NoMarkerFoundError struct {
	Trait   Trait
	Species string
}

func (e *NoMarkerFoundError) Error() string {
	return fmt.Sprintf("no marker for trait %s in species %q", e.Trait, e.Species)
}

// AssemblyConflictError means two edits were structurally
// incompatible even after ordering. Recoverable: the lower-confidence
// edit is dropped and assembly continues
type AssemblyConflictError struct {
	Kept    string // marker id of the edit that was applied
	Dropped string // marker id of the edit that was dropped
	Locus   string
}

func (e *AssemblyConflictError) Error() string {
	return fmt.Sprintf(
		"edit %s conflicts with already-applied %s at %s; dropping %s",
		e.Dropped, e.Kept, e.Locus, e.Dropped,
	)
}

// Warning codes accumulated on a synthesis result
const (
	WarnUnrecognizedTrait = "unrecognized_trait"
	WarnNoMarkerFound     = "no_marker_found"
	WarnAssemblyConflict  = "assembly_conflict"
	WarnSpeciesFallback   = "species_fallback"
	WarnOutOfReference    = "out_of_reference"
)

// Warning is a recoverable problem recorded against a request. The
// pipeline never stops for one
type Warning struct {
	// one of the Warn* codes above
	Code string `json:"code"`

	// the trait the warning applies to, empty for request-level warnings
	Trait string `json:"trait,omitempty"`

	Message string `json:"message"`
}

// warn builds a Warning from a recoverable error
func warn(code string, trait Trait, err error) Warning {
	t := ""
	if trait.Value != "" {
		t = trait.String()
	}
	return Warning{Code: code, Trait: t, Message: err.Error()}
}
