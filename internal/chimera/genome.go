package chimera

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// validSeq reports whether s contains only nucleotide symbols
// (upper-case ACGT plus the ambiguity symbol N)
func validSeq(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'A', 'C', 'G', 'T', 'N':
		default:
			return false
		}
	}
	return true
}

// LocusSpan is a named region of a reference sequence. Coordinates
// are 0-based half-open
type LocusSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`

	// whether the locus is protein-coding; frame integrity is only
	// checked inside coding loci
	Coding bool `json:"coding,omitempty"`
}

// BaseGenome is the unmodified reference for a species: the starting
// point of every assembly. Read-only after load, shared by requests
type BaseGenome struct {
	Species string
	Seq     string
	Loci    map[string]LocusSpan
}

// Locus resolves a symbolic gene name to its span in the reference
func (g *BaseGenome) Locus(name string) (LocusSpan, bool) {
	span, ok := g.Loci[name]
	return span, ok
}

// Genomes holds every reference genome found at startup
type Genomes struct {
	bySpecies map[string]*BaseGenome
}

// LoadGenomes reads every <species>.fasta (with its optional
// <species>.loci.json index) beneath dir. Loading is the process's
// only genome I/O; requests only ever read the result
func LoadGenomes(dir string, logger *zap.Logger) (*Genomes, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.fasta"))
	if err != nil {
		return nil, err
	}

	gs := &Genomes{bySpecies: make(map[string]*BaseGenome)}
	for _, p := range paths {
		species := strings.TrimSuffix(filepath.Base(p), ".fasta")

		g, err := loadGenome(p, species)
		if err != nil {
			logger.Warn("skipping unreadable reference genome",
				zap.String("species", species), zap.Error(err))
			continue
		}

		gs.bySpecies[species] = g
		logger.Info("reference genome loaded",
			zap.String("species", species),
			zap.Int("bp", len(g.Seq)),
			zap.Int("loci", len(g.Loci)))
	}

	return gs, nil
}

// loadGenome reads one species reference: the first FASTA record plus
// the sibling locus index if present
func loadGenome(fastaPath, species string) (*BaseGenome, error) {
	f, err := os.Open(fastaPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := readFasta(f)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no FASTA records in %s", fastaPath)
	}
	seq := strings.ToUpper(records[0].seq)
	if !validSeq(seq) {
		return nil, fmt.Errorf("%s has non-nucleotide symbols", fastaPath)
	}

	g := &BaseGenome{Species: species, Seq: seq, Loci: map[string]LocusSpan{}}

	lociPath := strings.TrimSuffix(fastaPath, ".fasta") + ".loci.json"
	if contents, err := os.ReadFile(lociPath); err == nil {
		if err := json.Unmarshal(contents, &g.Loci); err != nil {
			return nil, fmt.Errorf("parse locus index %s: %w", lociPath, err)
		}
		for name, span := range g.Loci {
			if span.Start < 0 || span.End < span.Start || span.End > len(seq) {
				return nil, fmt.Errorf("locus %s outside reference bounds", name)
			}
		}
	}

	return g, nil
}

// Get returns the reference genome for a species, or an
// UnknownSpeciesError if none was loaded
func (gs *Genomes) Get(species string) (*BaseGenome, error) {
	if g, ok := gs.bySpecies[species]; ok {
		return g, nil
	}
	return nil, &UnknownSpeciesError{Species: species}
}

// Species lists every species with a loaded reference, sorted
func (gs *Genomes) Species() []string {
	out := make([]string, 0, len(gs.bySpecies))
	for sp := range gs.bySpecies {
		out = append(out, sp)
	}
	sort.Strings(out)
	return out
}

// genericMotif seeds the synthetic fallback reference. GC-balanced so
// the composition check stays quiet on an unedited generic genome
const genericMotif = "ATGGCTACCGATTACAAGGACGATGACGACAAGTGACGTATCGGCATCAGTTACGAGCTT"

// GenericGenome builds the synthetic reference used for imaginary
// species. Deterministic: the same sequence and loci every call
func GenericGenome() *BaseGenome {
	var b strings.Builder
	for i := 0; i < 150; i++ {
		b.WriteString(genericMotif)
	}
	seq := b.String()

	return &BaseGenome{
		Species: GenericSpecies,
		Seq:     seq,
		Loci: map[string]LocusSpan{
			"SYN1": {Start: 0, End: 600, Coding: true},
			"SYN2": {Start: 600, End: 2400, Coding: true},
			"SYN3": {Start: 2400, End: 4500},
			"SYN4": {Start: 4500, End: 7200, Coding: true},
			"SYN5": {Start: 7200, End: len(seq)},
		},
	}
}

// fastaRecord is a single parsed FASTA entry
type fastaRecord struct {
	id  string
	seq string
}

// readFasta parses FASTA records: '>' lines start a record, sequence
// lines are concatenated, whitespace is dropped
func readFasta(r io.Reader) ([]fastaRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		records []fastaRecord
		current fastaRecord
		started bool
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, ">") {
			if started {
				records = append(records, current)
			}
			started = true
			current = fastaRecord{}
			if fields := strings.Fields(line[1:]); len(fields) > 0 {
				current.id = fields[0]
			}
			continue
		}
		if !started {
			return nil, fmt.Errorf("sequence before FASTA header")
		}
		current.seq += line
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if started {
		records = append(records, current)
	}

	return records, nil
}
