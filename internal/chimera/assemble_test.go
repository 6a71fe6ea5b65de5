package chimera

import (
	"strings"
	"testing"

	"go.uber.org/zap"
)

// testBase returns a 100 bp reference with one coding and one
// non-coding locus
func testBase() *BaseGenome {
	return &BaseGenome{
		Species: "panda",
		Seq:     strings.Repeat("ACGTACGTAC", 10),
		Loci: map[string]LocusSpan{
			"GENE1": {Start: 10, End: 20, Coding: true},
			"GENE2": {Start: 40, End: 60},
		},
	}
}

func testEdit(markerID, locus string, op Op, payload string, confidence float64) ResolvedEdit {
	return ResolvedEdit{
		MarkerID:   markerID,
		Trait:      Trait{Category: CategoryPigmentation, Value: "pink"},
		Locus:      locus,
		Op:         op,
		Payload:    payload,
		Repeat:     1,
		Confidence: confidence,
	}
}

func Test_Assemble_coordinateShift(t *testing.T) {
	base := testBase()
	edits := []ResolvedEdit{
		// downstream edit listed first: ordering is by locus, not input
		testEdit("M-INS", "40-40", OpInsert, "GGGCCC", 0.8),
		testEdit("M-SUB", "GENE1", OpSubstitute, "TTTTTTTTTTTTT", 0.9), // 13 bp over a 10 bp span
	}

	c, warnings := Assemble(base, edits, zap.NewNop())
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(c.Applied) != 2 {
		t.Fatalf("applied %d edits, want 2", len(c.Applied))
	}

	sub, ins := c.Applied[0], c.Applied[1]
	if sub.Edit.MarkerID != "M-SUB" || ins.Edit.MarkerID != "M-INS" {
		t.Fatalf("applied order = [%s %s], want [M-SUB M-INS]", sub.Edit.MarkerID, ins.Edit.MarkerID)
	}

	// the substitute grows the sequence by 3 bp, so the insert's
	// position shifts from 40 to 43
	if sub.Start != 10 || sub.End != 23 || sub.Delta != 3 {
		t.Errorf("substitute span = [%d,%d) delta %d, want [10,23) delta 3", sub.Start, sub.End, sub.Delta)
	}
	if ins.Start != 43 || ins.End != 49 || ins.Delta != 6 {
		t.Errorf("insert span = [%d,%d) delta %d, want [43,49) delta 6", ins.Start, ins.End, ins.Delta)
	}

	// every recorded span holds exactly its payload
	for _, a := range c.Applied {
		if got := c.Seq[a.Start:a.End]; got != a.Edit.Payload {
			t.Errorf("span [%d,%d) holds %q, want payload %q", a.Start, a.End, got, a.Edit.Payload)
		}
	}

	if want := len(base.Seq) + 3 + 6; len(c.Seq) != want {
		t.Errorf("assembled length = %d, want %d", len(c.Seq), want)
	}
	if !sub.Coding {
		t.Error("GENE1 substitute should be marked coding")
	}
	if ins.Coding {
		t.Error("the 40-40 insert is outside every coding locus")
	}
}

func Test_Assemble_conflictDropped(t *testing.T) {
	base := testBase()
	edits := []ResolvedEdit{
		testEdit("M-DEL", "10-40", OpDelete, "", 0.9),
		testEdit("M-SUB", "20-30", OpSubstitute, "AAAAAAAAAA", 0.8),
	}

	c, warnings := Assemble(base, edits, zap.NewNop())

	if len(c.Applied) != 1 || c.Applied[0].Edit.MarkerID != "M-DEL" {
		t.Fatalf("applied = %v, want only M-DEL", c.Applied)
	}
	if len(c.Shadowed) != 1 || c.Shadowed[0].MarkerID != "M-SUB" {
		t.Fatalf("shadowed = %v, want only M-SUB", c.Shadowed)
	}

	var found bool
	for _, w := range warnings {
		if w.Code == WarnAssemblyConflict {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings %v missing an %s entry", warnings, WarnAssemblyConflict)
	}

	if want := len(base.Seq) - 30; len(c.Seq) != want {
		t.Errorf("assembled length = %d, want %d", len(c.Seq), want)
	}
}

func Test_Assemble_insertAtConsumedBoundary(t *testing.T) {
	base := testBase()
	edits := []ResolvedEdit{
		testEdit("M-DEL", "10-40", OpDelete, "", 0.9),
		// at the boundary of the deleted range, not inside it
		testEdit("M-INS", "10-10", OpInsert, "GGG", 0.5),
	}

	c, warnings := Assemble(base, edits, zap.NewNop())
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(c.Applied) != 2 {
		t.Fatalf("applied %d edits, want 2", len(c.Applied))
	}
}

func Test_Assemble_outOfReference(t *testing.T) {
	base := testBase()
	edits := []ResolvedEdit{
		testEdit("M-LUX", "LUXOP", OpInsert, "ATGGCA", 0.7),
		testEdit("M-GONE", "NOPE", OpDelete, "", 0.9),
	}

	c, warnings := Assemble(base, edits, zap.NewNop())

	// the insert is appended past the tail; the delete is dropped
	if len(c.Applied) != 1 {
		t.Fatalf("applied %d edits, want 1", len(c.Applied))
	}
	a := c.Applied[0]
	if !a.OutOfReference || a.Start != len(base.Seq) || a.End != len(base.Seq)+6 {
		t.Errorf("out-of-reference insert = %+v, want span [%d,%d)", a, len(base.Seq), len(base.Seq)+6)
	}
	if !strings.HasSuffix(c.Seq, "ATGGCA") {
		t.Error("assembled sequence should end with the appended payload")
	}

	if len(c.Shadowed) != 1 || c.Shadowed[0].MarkerID != "M-GONE" {
		t.Errorf("shadowed = %v, want only M-GONE", c.Shadowed)
	}
	if len(warnings) != 2 {
		t.Errorf("got %d warnings, want 2", len(warnings))
	}
	for _, w := range warnings {
		if w.Code != WarnOutOfReference {
			t.Errorf("warning code = %s, want %s", w.Code, WarnOutOfReference)
		}
	}
}

func Test_Assemble_overriddenSkipped(t *testing.T) {
	base := testBase()
	loser := testEdit("M-LOSE", "GENE1", OpSubstitute, "TTTTTTTTTT", 0.4)
	loser.Flags = []ConflictFlag{FlagOverridden}
	edits := []ResolvedEdit{
		testEdit("M-WIN", "GENE1", OpSubstitute, "AAAAAAAAAA", 0.9),
		loser,
	}

	c, warnings := Assemble(base, edits, zap.NewNop())
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(c.Applied) != 1 || c.Applied[0].Edit.MarkerID != "M-WIN" {
		t.Fatalf("applied = %v, want only M-WIN", c.Applied)
	}
	if len(c.Shadowed) != 1 || c.Shadowed[0].MarkerID != "M-LOSE" {
		t.Fatalf("shadowed = %v, want only M-LOSE", c.Shadowed)
	}
	if got := c.Seq[10:20]; got != "AAAAAAAAAA" {
		t.Errorf("GENE1 span holds %q, want the winner's payload", got)
	}
}

func Test_Assemble_duplicate(t *testing.T) {
	base := testBase()
	e := testEdit("M-DUP", "GENE1", OpDuplicate, "", 0.8)
	e.Repeat = 2

	c, warnings := Assemble(base, []ResolvedEdit{e}, zap.NewNop())
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	a := c.Applied[0]
	segment := base.Seq[10:20]
	if a.Start != 20 || a.End != 40 || a.Delta != 20 {
		t.Errorf("duplicate span = [%d,%d) delta %d, want [20,40) delta 20", a.Start, a.End, a.Delta)
	}
	if got := c.Seq[a.Start:a.End]; got != segment+segment {
		t.Errorf("duplicated span holds %q, want %q", got, segment+segment)
	}
	if len(c.Seq) != len(base.Seq)+20 {
		t.Errorf("assembled length = %d, want %d", len(c.Seq), len(base.Seq)+20)
	}
}

func Test_Assemble_duplicateSourceConsumed(t *testing.T) {
	base := testBase()
	dup := testEdit("M-DUP", "GENE2", OpDuplicate, "", 0.9)
	dup.Repeat = 1
	edits := []ResolvedEdit{
		dup,
		// inside the duplicated range; must not land in the copies
		testEdit("M-INS", "50-50", OpInsert, "GGGGGG", 0.5),
	}

	c, warnings := Assemble(base, edits, zap.NewNop())

	if len(c.Applied) != 1 || c.Applied[0].Edit.MarkerID != "M-DUP" {
		t.Fatalf("applied = %v, want only M-DUP", c.Applied)
	}
	if len(c.Shadowed) != 1 || c.Shadowed[0].MarkerID != "M-INS" {
		t.Fatalf("shadowed = %v, want only M-INS", c.Shadowed)
	}
	var found bool
	for _, w := range warnings {
		if w.Code == WarnAssemblyConflict {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings %v missing an %s entry", warnings, WarnAssemblyConflict)
	}

	// the duplicated span must hold an unbroken copy of its source
	a := c.Applied[0]
	if a.Start != 60 || a.End != 80 {
		t.Errorf("duplicate span = [%d,%d), want [60,80)", a.Start, a.End)
	}
	if got, want := c.Seq[a.Start:a.End], base.Seq[40:60]; got != want {
		t.Errorf("duplicated span holds %q, want %q", got, want)
	}
}

func Test_Assemble_duplicateShiftsDownstream(t *testing.T) {
	base := testBase()
	dup := testEdit("M-DUP", "GENE2", OpDuplicate, "", 0.9)
	dup.Repeat = 1
	edits := []ResolvedEdit{
		dup,
		testEdit("M-SUB", "70-80", OpSubstitute, "TTTTTTTTTT", 0.8),
	}

	c, warnings := Assemble(base, edits, zap.NewNop())
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(c.Applied) != 2 {
		t.Fatalf("applied %d edits, want 2", len(c.Applied))
	}

	// the duplicate adds 20 bp at position 60, so the substitute's
	// target moves from 70 to 90
	sub := c.Applied[1]
	if sub.Start != 90 || sub.End != 100 {
		t.Errorf("substitute span = [%d,%d), want [90,100)", sub.Start, sub.End)
	}
	for _, a := range c.Applied {
		if a.Edit.Payload == "" {
			continue
		}
		if got := c.Seq[a.Start:a.End]; got != a.Edit.Payload {
			t.Errorf("span [%d,%d) holds %q, want payload %q", a.Start, a.End, got, a.Edit.Payload)
		}
	}
}

func Test_Assemble_noEdits(t *testing.T) {
	base := testBase()

	c, warnings := Assemble(base, nil, zap.NewNop())
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if c.Seq != base.Seq {
		t.Error("an empty edit list should return the reference unchanged")
	}
	if len(c.Applied) != 0 || len(c.Shadowed) != 0 {
		t.Errorf("applied/shadowed = %d/%d, want 0/0", len(c.Applied), len(c.Shadowed))
	}
}
