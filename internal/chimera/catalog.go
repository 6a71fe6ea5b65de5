package chimera

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// GenericSpecies marks a marker record or genome as species-agnostic
const GenericSpecies = "generic"

// WildcardValue marks a marker record as a fallback for every trait
// value in its category
const WildcardValue = "*"

// Op is a kind of sequence edit
type Op string

// the edit operations a marker record can carry
const (
	OpInsert     Op = "insert"
	OpSubstitute Op = "substitute"
	OpDelete     Op = "delete"
	OpDuplicate  Op = "duplicate"
)

// validOp reports whether s names a known edit operation
func validOp(s Op) bool {
	switch s {
	case OpInsert, OpSubstitute, OpDelete, OpDuplicate:
		return true
	}
	return false
}

// MarkerRecord is one curated trait-to-marker association, read-only
// after catalog load
type MarkerRecord struct {
	// unique marker id, eg "PIG-MC1R-PNK-01"
	ID string `json:"id"`

	// the trait category this marker is associated with
	Category Category `json:"category"`

	// the canonical trait value, or "*" for a category-wide fallback
	Value string `json:"value"`

	// species this marker is documented in, or ["generic"]
	Species []string `json:"species"`

	// a symbolic gene name ("MC1R") or coordinate range ("1200-1260")
	Locus string `json:"locus"`

	// the edit the marker implies
	Op Op `json:"operation"`

	// sequence fragment for insert/substitute edits
	Payload string `json:"payload,omitempty"`

	// association confidence in [0,1]
	Confidence float64 `json:"confidence"`

	// where the association is documented
	Citation string `json:"citation,omitempty"`
}

// AppliesTo reports whether the marker is documented for the species
func (m *MarkerRecord) AppliesTo(species string) bool {
	for _, s := range m.Species {
		if s == species {
			return true
		}
	}
	return false
}

// Generic reports whether the marker applies to any species
func (m *MarkerRecord) Generic() bool {
	return m.AppliesTo(GenericSpecies)
}

// symbolicLocus matches gene-style locus names, eg "MC1R" or "hox1-b"
var symbolicLocus = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)

// locusRef is a parsed marker locus: either a symbolic gene name or
// an explicit coordinate range into the reference
type locusRef struct {
	name       string
	start, end int // 0-based half-open, valid only if !symbolic
	symbolic   bool
}

// parseLocus parses "start-end" coordinates or a symbolic gene name
func parseLocus(s string) (locusRef, error) {
	if i := strings.IndexByte(s, '-'); i > 0 {
		start, err1 := strconv.Atoi(s[:i])
		end, err2 := strconv.Atoi(s[i+1:])
		if err1 == nil && err2 == nil {
			if start < 0 || end < start {
				return locusRef{}, fmt.Errorf("invalid locus range %q", s)
			}
			return locusRef{name: s, start: start, end: end}, nil
		}
	}
	if !symbolicLocus.MatchString(s) {
		return locusRef{}, fmt.Errorf("invalid locus %q", s)
	}
	return locusRef{name: s, symbolic: true}, nil
}

// validate checks a marker record's required fields. Records that
// fail are skipped during catalog load, not fatal
func (m *MarkerRecord) validate() error {
	if m.ID == "" {
		return fmt.Errorf("marker missing id")
	}
	if _, err := parseCategory(string(m.Category)); err != nil {
		return fmt.Errorf("marker %s: %v", m.ID, err)
	}
	if m.Value == "" {
		return fmt.Errorf("marker %s: missing trait value", m.ID)
	}
	if len(m.Species) == 0 {
		return fmt.Errorf("marker %s: missing species applicability", m.ID)
	}
	if !validOp(m.Op) {
		return fmt.Errorf("marker %s: unknown operation %q", m.ID, m.Op)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("marker %s: confidence %f outside [0,1]", m.ID, m.Confidence)
	}
	if _, err := parseLocus(m.Locus); err != nil {
		return fmt.Errorf("marker %s: %v", m.ID, err)
	}
	switch m.Op {
	case OpInsert, OpSubstitute:
		if m.Payload == "" {
			return fmt.Errorf("marker %s: %s without payload", m.ID, m.Op)
		}
		if !validSeq(m.Payload) {
			return fmt.Errorf("marker %s: payload has non-nucleotide symbols", m.ID)
		}
	}
	return nil
}

// traitKey indexes markers by the trait they're associated with
type traitKey struct {
	category Category
	value    string
}

// Catalog is the queryable index of marker records. Read-only after
// load, so any number of requests can share one
type Catalog struct {
	records []MarkerRecord
	byTrait map[traitKey][]int
}

// NewCatalog indexes the valid records among those passed in,
// logging and skipping malformed ones. ErrEmptyCatalog if none remain
func NewCatalog(records []MarkerRecord, logger *zap.Logger) (*Catalog, error) {
	c := &Catalog{byTrait: make(map[traitKey][]int)}

	for _, r := range records {
		if err := r.validate(); err != nil {
			logger.Warn("skipping malformed marker record", zap.Error(err))
			continue
		}
		c.records = append(c.records, r)
	}
	if len(c.records) == 0 {
		return nil, ErrEmptyCatalog
	}

	for i, r := range c.records {
		k := traitKey{category: r.Category, value: r.Value}
		c.byTrait[k] = append(c.byTrait[k], i)
	}

	logger.Info("marker catalog loaded",
		zap.Int("records", len(c.records)),
		zap.Int("skipped", len(records)-len(c.records)))

	return c, nil
}

// LoadCatalog reads marker records from a JSON or SQLite source,
// chosen by file extension, and indexes them
func LoadCatalog(path string, logger *zap.Logger) (*Catalog, error) {
	var (
		records []MarkerRecord
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		records, err = readMarkersSQLite(path)
	default:
		records, err = readMarkersJSON(path)
	}
	if err != nil {
		return nil, &CatalogLoadError{Path: path, Err: err}
	}
	return NewCatalog(records, logger)
}

// readMarkersJSON reads a flat JSON array of marker records
func readMarkersJSON(path string) ([]MarkerRecord, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var records []MarkerRecord
	if err := json.Unmarshal(contents, &records); err != nil {
		return nil, fmt.Errorf("parse marker records: %w", err)
	}
	return records, nil
}

// Len is the number of valid records in the catalog
func (c *Catalog) Len() int {
	return len(c.records)
}

// Records returns every record, sorted by id. For listing only
func (c *Catalog) Records() []MarkerRecord {
	out := make([]MarkerRecord, len(c.records))
	copy(out, c.records)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Lookup returns every marker associated with a trait, ranked by
// descending confidence among the records documented for the species
// or generic, exact species documentation breaking confidence ties,
// then marker id so the order is total. Cross-species records come
// last regardless of confidence; they're included so the resolver can
// fall back on them (flagged) when nothing closer exists
func (c *Catalog) Lookup(species string, category Category, value string) []*MarkerRecord {
	return c.ranked(species, category, value)
}

// Fallback returns the category-wide wildcard markers, used when a
// trait value has no marker of its own
func (c *Catalog) Fallback(species string, category Category) []*MarkerRecord {
	return c.ranked(species, category, WildcardValue)
}

// speciesTier separates usable records (exact or generic) from the
// cross-species last resort
func speciesTier(m *MarkerRecord, species string) int {
	if m.AppliesTo(species) || m.Generic() {
		return 0
	}
	return 1
}

func (c *Catalog) ranked(species string, category Category, value string) []*MarkerRecord {
	idx := c.byTrait[traitKey{category: category, value: value}]

	matches := make([]*MarkerRecord, len(idx))
	for i, j := range idx {
		matches[i] = &c.records[j]
	}

	sort.Slice(matches, func(i, j int) bool {
		mi, mj := matches[i], matches[j]
		ti, tj := speciesTier(mi, species), speciesTier(mj, species)
		if ti != tj {
			return ti < tj
		}
		if mi.Confidence != mj.Confidence {
			return mi.Confidence > mj.Confidence
		}
		if ei, ej := mi.AppliesTo(species), mj.AppliesTo(species); ei != ej {
			return ei
		}
		return mi.ID < mj.ID
	})

	return matches
}

// Find returns records whose id or trait value contains the query,
// case-insensitively. For the "catalog find" command
func (c *Catalog) Find(query string) []MarkerRecord {
	query = strings.ToLower(query)

	var out []MarkerRecord
	for _, r := range c.Records() {
		if strings.Contains(strings.ToLower(r.ID), query) ||
			strings.Contains(strings.ToLower(r.Value), query) {
			out = append(out, r)
		}
	}
	return out
}
