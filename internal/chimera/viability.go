package chimera

import (
	"fmt"
	"math"
	"sort"

	"chimera/config"
)

// Verdict is the simulator's overall call on a candidate sequence
type Verdict string

// verdicts, a deterministic monotonic function of the score
const (
	VerdictViable    Verdict = "viable"
	VerdictMarginal  Verdict = "marginal"
	VerdictNonviable Verdict = "nonviable"
)

// issue severities
const (
	SeverityWarning = "warning"
	SeveritySevere  = "severe"
)

// issue codes, one per simulator check
const (
	IssueFrameShift    = "frame_shift"
	IssueLengthDrift   = "length_drift"
	IssueOverridden    = "overridden_edits"
	IssueCrossSpecies  = "cross_species_edits"
	IssueLowConfidence = "low_confidence_edits"
	IssueLethalPair    = "lethal_pair"
	IssueComposition   = "composition"
)

// Issue is one non-zero penalty with its human-readable reason
type Issue struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Locus    string `json:"locus,omitempty"`
	Message  string `json:"message"`
}

// ViabilityReport is the simulator's output: a score in [0,1], the
// verdict derived from it, and the issues behind every penalty
type ViabilityReport struct {
	Score   float64 `json:"score"`
	Verdict Verdict `json:"verdict"`
	Issues  []Issue `json:"issues,omitempty"`
}

// Simulator scores assembled sequences for biological plausibility.
// Score is a pure function: no randomness, no I/O, so the same
// candidate always yields the same report
type Simulator struct {
	conf config.ViabilityConfig

	// the assembly length tolerance the deviation check uses
	tolerance float64

	lethal *LethalPairs
}

// NewSimulator returns a Simulator with the configured weights
func NewSimulator(conf config.ViabilityConfig, tolerance float64, lethal *LethalPairs) *Simulator {
	return &Simulator{conf: conf, tolerance: tolerance, lethal: lethal}
}

// Score runs the fixed battery of structural checks over a candidate
// and returns the report. The final score is 1 minus the sum of
// clamped penalties
func (s *Simulator) Score(c *CandidateSequence, base *BaseGenome) ViabilityReport {
	var (
		penalty float64
		issues  []Issue
	)

	add := func(p float64, severity, code, locus, message string) {
		penalty += p
		issues = append(issues, Issue{
			Severity: severity,
			Code:     code,
			Locus:    locus,
			Message:  message,
		})
	}

	// 1: reading-frame integrity inside coding loci
	for _, a := range c.Applied {
		if a.Coding && a.Delta%3 != 0 {
			add(s.conf.Weights.Frame, SeverityWarning, IssueFrameShift, a.Edit.Locus,
				fmt.Sprintf("%s edit %s shifts the reading frame at %s by %+d bp",
					a.Edit.Op, a.Edit.MarkerID, a.Edit.Locus, a.Delta%3))
		}
	}

	// 2: aggregate length deviation from the reference
	if len(base.Seq) > 0 {
		dev := math.Abs(float64(len(c.Seq)-len(base.Seq))) / float64(len(base.Seq))
		if dev > s.tolerance {
			excess := math.Min(1, (dev-s.tolerance)/s.tolerance)
			add(s.conf.Weights.Length*excess, SeverityWarning, IssueLengthDrift, "",
				fmt.Sprintf("sequence length %d deviates %.1f%% from the %d bp reference (tolerance %.1f%%)",
					len(c.Seq), dev*100, len(base.Seq), s.tolerance*100))
		}
	}

	// 3: flagged edits, each category's total penalty bounded
	s.flagPenalties(c, add)

	// 4: known-lethal marker combinations
	s.lethalPairs(c, add)

	// 5: sequence composition
	s.composition(c, add)

	score := 1 - penalty
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return ViabilityReport{
		Score:   score,
		Verdict: Verdict(s.conf.Verdict(score)),
		Issues:  issues,
	}
}

// flagPenalties charges for overridden, cross-species and
// low-confidence edits. Every resolved edit counts, applied or not
func (s *Simulator) flagPenalties(c *CandidateSequence, add func(float64, string, string, string, string)) {
	counts := map[ConflictFlag]int{}
	tally := func(e *ResolvedEdit) {
		for _, f := range e.Flags {
			counts[f]++
		}
	}
	for i := range c.Applied {
		tally(&c.Applied[i].Edit)
	}
	for i := range c.Shadowed {
		tally(&c.Shadowed[i])
	}

	charge := func(flag ConflictFlag, weight float64, code, noun string) {
		n := counts[flag]
		if n == 0 {
			return
		}
		p := math.Min(weight*float64(n), s.conf.FlagPenaltyCap)
		add(p, SeverityWarning, code, "",
			fmt.Sprintf("%d %s edit(s) in the resolution", n, noun))
	}

	charge(FlagOverridden, s.conf.Weights.Overridden, IssueOverridden, "overridden")
	charge(FlagSpeciesMismatch, s.conf.Weights.SpeciesMismatch, IssueCrossSpecies, "cross-species")
	charge(FlagLowConfidence, s.conf.Weights.LowConfidence, IssueLowConfidence, "low-confidence")
}

// lethalPairs checks every applied marker pair against the static
// jointly-nonviable table
func (s *Simulator) lethalPairs(c *CandidateSequence, add func(float64, string, string, string, string)) {
	ids := make([]string, 0, len(c.Applied))
	for _, a := range c.Applied {
		ids = append(ids, a.Edit.MarkerID)
	}
	sort.Strings(ids)

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if s.lethal.Lethal(ids[i], ids[j]) {
				add(s.conf.Weights.Lethal, SeveritySevere, IssueLethalPair, "",
					fmt.Sprintf("markers %s and %s are documented as jointly nonviable", ids[i], ids[j]))
			}
		}
	}
}

// composition checks the assembled sequence's makeup: non-nucleotide
// symbols and extreme GC content both penalize
func (s *Simulator) composition(c *CandidateSequence, add func(float64, string, string, string, string)) {
	if len(c.Seq) == 0 {
		return
	}

	var gc, invalid int
	for i := 0; i < len(c.Seq); i++ {
		switch c.Seq[i] {
		case 'G', 'C':
			gc++
		case 'A', 'T', 'N':
		default:
			invalid++
		}
	}

	if invalid > 0 {
		add(s.conf.Weights.Composition, SeveritySevere, IssueComposition, "",
			fmt.Sprintf("%d non-nucleotide symbol(s) in the assembled sequence", invalid))
		return
	}

	frac := float64(gc) / float64(len(c.Seq))
	if frac < s.conf.GCMin || frac > s.conf.GCMax {
		add(s.conf.Weights.Composition, SeverityWarning, IssueComposition, "",
			fmt.Sprintf("GC fraction %.2f outside the expected [%.2f, %.2f] range",
				frac, s.conf.GCMin, s.conf.GCMax))
	}
}
