package chimera

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/synonyms.yaml defaults/modifiers.yaml defaults/lethal.yaml
var defaultTables embed.FS

// ModifierRule says how a magnitude modifier scales an edit
type ModifierRule struct {
	Name     string   `yaml:"name"`
	Synonyms []string `yaml:"synonyms"`

	// locus duplication count for duplicate edits
	Repeat int `yaml:"repeat"`

	// payload repetition count for insert edits
	Amplify int `yaml:"amplify"`
}

// Vocab is the controlled trait vocabulary: canonical values per
// category, their synonyms, and the modifier table. Static after load
type Vocab struct {
	// canonical terms per category, sorted for deterministic fuzzy scans
	terms map[Category][]string

	// synonym -> canonical, per category, and the synonym keys sorted
	// so fuzzy scans are deterministic
	synonyms map[Category]map[string]string
	synKeys  map[Category][]string

	modifiers   map[string]ModifierRule
	modifierSyn map[string]string
	modSynKeys  []string
}

// LoadVocab builds the vocabulary from the synonym and modifier
// tables. Empty paths fall back to the embedded defaults
func LoadVocab(synonymsPath, modifiersPath string) (*Vocab, error) {
	synRaw, err := readTable(synonymsPath, "defaults/synonyms.yaml")
	if err != nil {
		return nil, err
	}
	modRaw, err := readTable(modifiersPath, "defaults/modifiers.yaml")
	if err != nil {
		return nil, err
	}

	var synTable map[string]map[string][]string
	if err := yaml.Unmarshal(synRaw, &synTable); err != nil {
		return nil, fmt.Errorf("parse synonym table: %w", err)
	}

	var modTable []ModifierRule
	if err := yaml.Unmarshal(modRaw, &modTable); err != nil {
		return nil, fmt.Errorf("parse modifier table: %w", err)
	}

	v := &Vocab{
		terms:       make(map[Category][]string),
		synonyms:    make(map[Category]map[string]string),
		synKeys:     make(map[Category][]string),
		modifiers:   make(map[string]ModifierRule),
		modifierSyn: make(map[string]string),
	}

	for cat, entries := range synTable {
		category, err := parseCategory(cat)
		if err != nil {
			return nil, fmt.Errorf("synonym table: %v", err)
		}

		v.synonyms[category] = make(map[string]string)
		for canonical, syns := range entries {
			v.terms[category] = append(v.terms[category], canonical)
			for _, s := range syns {
				v.synonyms[category][strings.ToLower(s)] = canonical
			}
		}
		sort.Strings(v.terms[category])
	}

	for _, rule := range modTable {
		if rule.Name == "" || rule.Repeat < 1 || rule.Amplify < 1 {
			return nil, fmt.Errorf("modifier table: invalid rule %+v", rule)
		}
		v.modifiers[rule.Name] = rule
		for _, s := range rule.Synonyms {
			v.modifierSyn[strings.ToLower(s)] = rule.Name
		}
	}

	for cat, syns := range v.synonyms {
		for s := range syns {
			v.synKeys[cat] = append(v.synKeys[cat], s)
		}
		sort.Strings(v.synKeys[cat])
	}
	for s := range v.modifierSyn {
		v.modSynKeys = append(v.modSynKeys, s)
	}
	sort.Strings(v.modSynKeys)

	return v, nil
}

// readTable reads an override file if a path is set, otherwise the
// embedded default
func readTable(path, embedded string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	return defaultTables.ReadFile(embedded)
}

// Terms returns the canonical values of a category, sorted
func (v *Vocab) Terms(category Category) []string {
	return v.terms[category]
}

// Canonical reports whether value is already a canonical term
func (v *Vocab) Canonical(category Category, value string) bool {
	for _, t := range v.terms[category] {
		if t == value {
			return true
		}
	}
	return false
}

// Synonym resolves a known synonym to its canonical term
func (v *Vocab) Synonym(category Category, value string) (string, bool) {
	canonical, ok := v.synonyms[category][value]
	return canonical, ok
}

// Modifier resolves a modifier name or synonym to its rule
func (v *Vocab) Modifier(value string) (ModifierRule, bool) {
	if rule, ok := v.modifiers[value]; ok {
		return rule, true
	}
	if name, ok := v.modifierSyn[value]; ok {
		return v.modifiers[name], true
	}
	return ModifierRule{}, false
}

// ModifierNames returns every canonical modifier name, sorted
func (v *Vocab) ModifierNames() []string {
	names := make([]string, 0, len(v.modifiers))
	for n := range v.modifiers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LethalPairs is the static table of marker pairs documented as
// jointly nonviable
type LethalPairs struct {
	pairs map[[2]string]bool
}

// LoadLethalPairs reads the lethal pair table, embedded by default
func LoadLethalPairs(path string) (*LethalPairs, error) {
	raw, err := readTable(path, "defaults/lethal.yaml")
	if err != nil {
		return nil, err
	}

	var table [][]string
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("parse lethal pair table: %w", err)
	}

	lp := &LethalPairs{pairs: make(map[[2]string]bool)}
	for _, pair := range table {
		if len(pair) != 2 {
			return nil, fmt.Errorf("lethal pair table: want 2 markers, got %v", pair)
		}
		lp.pairs[orderedPair(pair[0], pair[1])] = true
	}
	return lp, nil
}

// Lethal reports whether two markers are documented as jointly nonviable
func (lp *LethalPairs) Lethal(a, b string) bool {
	return lp.pairs[orderedPair(a, b)]
}

func orderedPair(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}
