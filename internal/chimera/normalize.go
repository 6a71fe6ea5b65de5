package chimera

import "strings"

// Normalizer canonicalizes raw traits into the controlled vocabulary
type Normalizer struct {
	vocab *Vocab

	// minimum similarity for a fuzzy vocabulary match
	threshold float64
}

// NewNormalizer returns a Normalizer over the vocabulary
func NewNormalizer(vocab *Vocab, threshold float64) *Normalizer {
	return &Normalizer{vocab: vocab, threshold: threshold}
}

// Normalize maps a raw trait into the controlled vocabulary: exact
// match first, then the synonym table, then the closest fuzzy match
// above the similarity threshold. Returns an UnrecognizedTraitError
// when nothing clears the bar; the caller skips the trait and
// continues with the rest of the request
func (n *Normalizer) Normalize(raw RawTrait) (Trait, error) {
	category, err := parseCategory(strings.ToLower(strings.TrimSpace(raw.Category)))
	if err != nil {
		return Trait{}, &UnrecognizedTraitError{Value: raw.Category}
	}

	value, err := n.normalizeValue(category, raw.Value)
	if err != nil {
		return Trait{}, err
	}

	modifier := ""
	if m := strings.ToLower(strings.TrimSpace(raw.Modifier)); m != "" {
		rule, ok := n.vocab.Modifier(m)
		if !ok {
			rule, ok = n.fuzzyModifier(m)
		}
		if !ok {
			return Trait{}, &UnrecognizedTraitError{Value: raw.Modifier}
		}
		modifier = rule.Name
	}

	return Trait{
		Category: category,
		Value:    value,
		Modifier: modifier,
		Species:  strings.ToLower(strings.TrimSpace(raw.SpeciesHint)),
	}, nil
}

// normalizeValue canonicalizes the trait value itself
func (n *Normalizer) normalizeValue(category Category, raw string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return "", &UnrecognizedTraitError{Value: raw}
	}

	if n.vocab.Canonical(category, value) {
		return value, nil
	}
	if canonical, ok := n.vocab.Synonym(category, value); ok {
		return canonical, nil
	}

	// fuzzy: closest canonical term or synonym of the category. The
	// scans run in sorted order and ties keep the first candidate, so
	// the winner never depends on map iteration order
	best, bestSim := "", 0.0
	for _, term := range n.vocab.Terms(category) {
		if sim := similarity(value, term); sim > bestSim {
			best, bestSim = term, sim
		}
	}
	for _, syn := range n.vocab.synKeys[category] {
		if sim := similarity(value, syn); sim > bestSim {
			best, bestSim = n.vocab.synonyms[category][syn], sim
		}
	}

	if bestSim >= n.threshold {
		return best, nil
	}
	return "", &UnrecognizedTraitError{Value: raw, Closest: best, Similarity: bestSim}
}

// fuzzyModifier finds the closest modifier name above the threshold
func (n *Normalizer) fuzzyModifier(value string) (ModifierRule, bool) {
	best, bestSim := "", 0.0
	for _, name := range n.vocab.ModifierNames() {
		if sim := similarity(value, name); sim > bestSim {
			best, bestSim = name, sim
		}
	}
	for _, syn := range n.vocab.modSynKeys {
		if sim := similarity(value, syn); sim > bestSim {
			best, bestSim = n.vocab.modifierSyn[syn], sim
		}
	}

	if bestSim < n.threshold {
		return ModifierRule{}, false
	}
	rule, ok := n.vocab.Modifier(best)
	return rule, ok
}

// similarity is 1 minus the normalized edit distance between a and b
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(editDistance(a, b))/float64(longest)
}

// editDistance is the Levenshtein distance between a and b using a
// single rolling row
func editDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	row := make([]int, len(b)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(a); i++ {
		prev := row[0] // row[i-1][j-1]
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			next := row[j-1] + 1 // insertion
			if row[j]+1 < next { // deletion
				next = row[j] + 1
			}
			if prev+cost < next { // substitution
				next = prev + cost
			}

			prev, row[j] = row[j], next
		}
	}

	return row[len(b)]
}
