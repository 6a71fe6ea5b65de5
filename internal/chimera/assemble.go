package chimera

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// AppliedEdit is a resolved edit together with the span its payload
// occupies in the assembled sequence. Coordinates are 0-based
// half-open and final: later edits are always downstream, so a span
// never moves once recorded
type AppliedEdit struct {
	Edit ResolvedEdit `json:"edit"`

	Start int `json:"start"`
	End   int `json:"end"`

	// the edit's effect on sequence length in bp
	Delta int `json:"delta"`

	// whether the edit landed inside a coding locus of the reference
	Coding bool `json:"coding,omitempty"`

	// the edit's locus wasn't in the reference; its payload was
	// appended past the reference tail
	OutOfReference bool `json:"outOfReference,omitempty"`
}

// CandidateSequence is the assembled result: a single internally
// consistent sequence plus the edits that made it. Immutable once
// built; it is only ever constructed as a finished value
type CandidateSequence struct {
	Species string        `json:"species"`
	Seq     string        `json:"seq"`
	Applied []AppliedEdit `json:"applied"`

	// resolved edits that were not applied: overridden by a same-locus
	// winner, dropped in a structural conflict, or outside the
	// reference. Kept so scoring and output still see them
	Shadowed []ResolvedEdit `json:"shadowed,omitempty"`
}

// pendingEdit is a resolved edit with its target span translated
// into base-reference coordinates
type pendingEdit struct {
	edit       ResolvedEdit
	start, end int
	coding     bool
	outOfRef   bool
}

// consumedSpan remembers a base-coordinate range that a delete,
// substitute or duplicate has already rewritten, and which marker did
// it. Duplicates consume their source range too: their copies are
// spliced at the range end, so an edit inside the source would land
// inside the fresh copies if it were allowed through
type consumedSpan struct {
	start, end int
	markerID   string
}

func (s consumedSpan) overlaps(start, end int) bool {
	return start < s.end && end > s.start
}

func (s consumedSpan) contains(point int) bool {
	return point > s.start && point < s.end
}

// Assemble applies resolved edits to the base genome and returns the
// candidate sequence. Edits are applied in ascending locus order with
// ties broken by descending confidence, and every splice rebuilds the
// sequence value rather than mutating a shared buffer.
//
// The running coordinate shift is the correctness core here: after a
// length-changing edit, every pending downstream edit's coordinates
// move by the length delta. Range edits consume their source span, so
// applying in ascending start order leaves every surviving edit at or
// past the previous splice point, where the shift is always complete.
//
// Structurally incompatible edits (a range another edit already
// consumed) are dropped with an AssemblyConflictError warning; a
// single bad edit never aborts the request
func Assemble(base *BaseGenome, edits []ResolvedEdit, logger *zap.Logger) (*CandidateSequence, []Warning) {
	var warnings []Warning

	// translate loci into base coordinates, setting aside edits whose
	// locus isn't in the reference
	c := &CandidateSequence{Species: base.Species, Seq: base.Seq}

	var pending, outOfRef []pendingEdit
	for _, e := range edits {
		if e.Flagged(FlagOverridden) {
			// a same-locus winner already covers this edit
			c.Shadowed = append(c.Shadowed, e)
			continue
		}

		p, ok := locate(base, e)
		if !ok {
			if e.Op == OpInsert {
				p.outOfRef = true
				outOfRef = append(outOfRef, p)
				warnings = append(warnings, Warning{
					Code:    WarnOutOfReference,
					Trait:   e.Trait.String(),
					Message: fmt.Sprintf("locus %s is outside the %s reference; appending insert %s past the tail", e.Locus, base.Species, e.MarkerID),
				})
				continue
			}

			warnings = append(warnings, Warning{
				Code:    WarnOutOfReference,
				Trait:   e.Trait.String(),
				Message: fmt.Sprintf("dropping %s edit %s: locus %s is outside the %s reference", e.Op, e.MarkerID, e.Locus, base.Species),
			})
			c.Shadowed = append(c.Shadowed, e)
			continue
		}
		pending = append(pending, p)
	}

	// ascending start; inserts before range edits at the same position
	// (an insert at a boundary lands before the range, and must not
	// pick up that range's shift); remaining ties by descending
	// confidence so the stronger edit is applied first and wins any
	// overlap
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].start != pending[j].start {
			return pending[i].start < pending[j].start
		}
		ii, ij := pending[i].edit.Op == OpInsert, pending[j].edit.Op == OpInsert
		if ii != ij {
			return ii
		}
		if pending[i].edit.Confidence != pending[j].edit.Confidence {
			return pending[i].edit.Confidence > pending[j].edit.Confidence
		}
		return pending[i].edit.MarkerID < pending[j].edit.MarkerID
	})

	var consumed []consumedSpan
	shift := 0
	for _, p := range pending {
		if blocker, clash := conflicts(consumed, p); clash {
			err := &AssemblyConflictError{
				Kept:    blocker,
				Dropped: p.edit.MarkerID,
				Locus:   p.edit.Locus,
			}
			warnings = append(warnings, warn(WarnAssemblyConflict, p.edit.Trait, err))
			logger.Warn("incompatible edit dropped", zap.Error(err))
			c.Shadowed = append(c.Shadowed, p.edit)
			continue
		}

		shift = apply(c, p, shift)

		switch p.edit.Op {
		case OpSubstitute, OpDelete, OpDuplicate:
			consumed = append(consumed, consumedSpan{
				start:    p.start,
				end:      p.end,
				markerID: p.edit.MarkerID,
			})
		}
	}

	// out-of-reference inserts go past the tail, strongest first
	sort.SliceStable(outOfRef, func(i, j int) bool {
		if outOfRef[i].edit.Confidence != outOfRef[j].edit.Confidence {
			return outOfRef[i].edit.Confidence > outOfRef[j].edit.Confidence
		}
		return outOfRef[i].edit.MarkerID < outOfRef[j].edit.MarkerID
	})
	for _, p := range outOfRef {
		start := len(c.Seq)
		c.Seq += p.edit.Payload
		c.Applied = append(c.Applied, AppliedEdit{
			Edit:           p.edit,
			Start:          start,
			End:            len(c.Seq),
			Delta:          len(p.edit.Payload),
			OutOfReference: true,
		})
	}

	return c, warnings
}

// locate translates an edit's locus into base coordinates
func locate(base *BaseGenome, e ResolvedEdit) (pendingEdit, bool) {
	ref, err := parseLocus(e.Locus)
	if err != nil {
		return pendingEdit{edit: e}, false // validated at load; belt and braces
	}

	p := pendingEdit{edit: e}
	if ref.symbolic {
		span, ok := base.Locus(ref.name)
		if !ok {
			return p, false
		}
		p.start, p.end, p.coding = span.Start, span.End, span.Coding
		return p, true
	}

	if ref.end > len(base.Seq) {
		return p, false
	}
	p.start, p.end = ref.start, ref.end

	// coordinate edits inherit coding-ness from any locus they fall in
	for _, span := range base.Loci {
		if span.Coding && ref.start < span.End && ref.end > span.Start {
			p.coding = true
			break
		}
	}
	return p, true
}

// conflicts reports whether an edit's target range was already
// consumed, and by which marker
func conflicts(consumed []consumedSpan, p pendingEdit) (string, bool) {
	for _, s := range consumed {
		switch p.edit.Op {
		case OpInsert:
			// inserting at a boundary is fine; into a rewritten range is not
			if s.contains(p.start) {
				return s.markerID, true
			}
		default:
			if s.overlaps(p.start, p.end) {
				return s.markerID, true
			}
		}
	}
	return "", false
}

// apply splices one edit into the candidate at its shifted position
// and records the payload's final span. Returns the updated shift
func apply(c *CandidateSequence, p pendingEdit, shift int) int {
	e := p.edit
	a := AppliedEdit{Edit: e, Coding: p.coding}

	switch e.Op {
	case OpSubstitute:
		pos, end := p.start+shift, p.end+shift
		c.Seq = c.Seq[:pos] + e.Payload + c.Seq[end:]
		a.Start, a.End = pos, pos+len(e.Payload)
		a.Delta = len(e.Payload) - (p.end - p.start)

	case OpInsert:
		pos := p.start + shift
		c.Seq = c.Seq[:pos] + e.Payload + c.Seq[pos:]
		a.Start, a.End = pos, pos+len(e.Payload)
		a.Delta = len(e.Payload)

	case OpDelete:
		pos, end := p.start+shift, p.end+shift
		c.Seq = c.Seq[:pos] + c.Seq[end:]
		a.Start, a.End = pos, pos
		a.Delta = -(p.end - p.start)

	case OpDuplicate:
		pos, end := p.start+shift, p.end+shift
		copies := strings.Repeat(c.Seq[pos:end], e.Repeat)
		c.Seq = c.Seq[:end] + copies + c.Seq[end:]
		a.Start, a.End = end, end+len(copies)
		a.Delta = len(copies)
	}

	c.Applied = append(c.Applied, a)
	return shift + a.Delta
}
