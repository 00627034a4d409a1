package chbin

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// kmerIndex maps a k-mer to its column in the composition vector, or -1 if
// the k-mer contains a non-ACGT character.
func kmerIndex(kmer string) int {
	idx := 0
	for i := 0; i < len(kmer); i++ {
		idx <<= 2
		switch kmer[i] {
		case 'A', 'a':
		case 'C', 'c':
			idx |= 1
		case 'G', 'g':
			idx |= 2
		case 'T', 't':
			idx |= 3
		default:
			return -1
		}
	}
	return idx
}

// kmerColumns returns the number of columns of a k-mer composition vector.
func kmerColumns(k int) int {
	return 1 << (2 * uint(k))
}

// normalizeL1 scales a vector in place so it sums to 1. Zero vectors are
// left untouched.
func normalizeL1(v []float64) {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	if sum == 0 {
		return
	}
	for i := range v {
		v[i] /= sum
	}
}

// parseKmerCounts reads the count file of the kmer-counter tool into
// L1-normalized composition vectors keyed by contig id. Each line is
// "<header>\t<KMER>:<count> <KMER>:<count> ...".
func parseKmerCounts(path string, k int) (map[string][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open k-mer counts")
	}
	defer f.Close()

	cols := kmerColumns(k)
	comps := make(map[string][]float64)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		parts := strings.SplitN(text, "\t", 2)
		if len(parts) != 2 {
			return nil, &InputFormatError{Path: path, Line: line, Msg: "expected <contig>\\t<counts>"}
		}
		id := strings.TrimPrefix(parts[0], ">")

		vec := make([]float64, cols)
		for _, token := range strings.Fields(parts[1]) {
			kv := strings.SplitN(token, ":", 2)
			if len(kv) != 2 {
				return nil, &InputFormatError{Path: path, Line: line, Msg: "expected <kmer>:<count> token"}
			}
			idx := kmerIndex(kv[0])
			if idx < 0 || len(kv[0]) != k {
				return nil, &InputFormatError{Path: path, Line: line, Msg: "unexpected k-mer " + kv[0]}
			}
			n, err := strconv.ParseFloat(kv[1], 64)
			if err != nil {
				return nil, &InputFormatError{Path: path, Line: line, Msg: "bad count for " + kv[0]}
			}
			vec[idx] += n
		}

		normalizeL1(vec)
		comps[id] = vec
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to scan k-mer counts")
	}

	return comps, nil
}

// parseSeq2vecCounts reads the seq2vec output, which is one whitespace
// separated count vector per line in the order of the input FASTA.
func parseSeq2vecCounts(path string, ids []string, k int) (map[string][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open k-mer vectors")
	}
	defer f.Close()

	cols := kmerColumns(k)
	comps := make(map[string][]float64)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if line >= len(ids) {
			return nil, &InputFormatError{Path: path, Line: line + 1, Msg: "more vectors than FASTA records"}
		}

		fields := strings.Fields(text)
		if len(fields) != cols {
			return nil, &InputFormatError{Path: path, Line: line + 1, Msg: "wrong composition vector width"}
		}
		vec := make([]float64, cols)
		for i, field := range fields {
			if vec[i], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, &InputFormatError{Path: path, Line: line + 1, Msg: "bad count " + field}
			}
		}

		normalizeL1(vec)
		comps[ids[line]] = vec
		line++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to scan k-mer vectors")
	}

	if line != len(ids) {
		return nil, &InputFormatError{Path: path, Msg: "fewer vectors than FASTA records"}
	}

	return comps, nil
}

// parseCoverage reads the coverage table: one row per contig, the contig id
// followed by one depth column per sample. Depths are normalized per sample
// column to sum 1 and, when more than one sample exists, per contig row.
func parseCoverage(path string, delimiter string) (map[string][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open coverage table")
	}
	defer f.Close()

	var ids []string
	var rows [][]float64
	seen := make(map[string]bool)
	numSamples := -1

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(text) == "" {
			continue
		}

		fields := strings.Split(text, delimiter)
		if len(fields) < 2 {
			return nil, &InputFormatError{Path: path, Line: line, Msg: "expected a contig id and at least one depth column"}
		}
		if numSamples == -1 {
			numSamples = len(fields) - 1
		} else if len(fields)-1 != numSamples {
			return nil, &InputFormatError{Path: path, Line: line, Msg: "inconsistent sample column count"}
		}

		depths := make([]float64, numSamples)
		for i, field := range fields[1:] {
			if depths[i], err = strconv.ParseFloat(strings.TrimSpace(field), 64); err != nil {
				return nil, &InputFormatError{Path: path, Line: line, Msg: "bad depth value " + field}
			}
		}

		id := strings.TrimSpace(fields[0])
		if seen[id] {
			return nil, &InputFormatError{Path: path, Line: line, Msg: "duplicate contig id " + id}
		}
		seen[id] = true
		ids = append(ids, id)
		rows = append(rows, depths)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to scan coverage table")
	}
	if numSamples < 1 {
		return nil, &InputFormatError{Path: path, Msg: "empty coverage table"}
	}

	// normalize each sample column to sum 1
	colSums := make([]float64, numSamples)
	for _, row := range rows {
		for j, d := range row {
			colSums[j] += d
		}
	}
	for _, row := range rows {
		for j := range row {
			if colSums[j] != 0 {
				row[j] /= colSums[j]
			}
		}
	}

	// with multiple samples, normalize each contig row to sum 1
	if numSamples > 1 {
		for _, row := range rows {
			normalizeL1(row)
		}
	}

	coverages := make(map[string][]float64, len(ids))
	for i, id := range ids {
		coverages[id] = rows[i]
	}
	return coverages, nil
}

// buildContigs pairs sequences with coverage rows into Contig values.
// Composition vectors are attached later, after seed contigs have been
// split and the k-mer counter has run on the split set. A contig present
// in one source but absent from another is an InputMismatchError; nothing
// downstream runs after one.
func buildContigs(records []fastaRecord, coverages map[string][]float64, lengthFilterBp int) ([]*Contig, error) {
	seen := make(map[string]bool, len(records))
	contigs := make([]*Contig, 0, len(records))
	for _, r := range records {
		cov, ok := coverages[r.ID]
		if !ok {
			return nil, &InputMismatchError{ContigID: r.ID, Present: "contig FASTA", Missing: "coverage table"}
		}

		seen[r.ID] = true
		contigs = append(contigs, &Contig{
			ID:       r.ID,
			Seq:      r.Seq,
			Length:   len(r.Seq),
			Coverage: cov,
			Markers:  map[string]float64{},
			Filtered: len(r.Seq) < lengthFilterBp,
		})
	}

	for id := range coverages {
		if !seen[id] {
			return nil, &InputMismatchError{ContigID: id, Present: "coverage table", Missing: "contig FASTA"}
		}
	}

	return contigs, nil
}

// fuseVector concatenates a composition vector and a coverage vector into
// the joint feature space the distance engine works in.
func fuseVector(composition, coverage []float64) []float64 {
	v := make([]float64, 0, len(composition)+len(coverage))
	v = append(v, composition...)
	return append(v, coverage...)
}

// meanCoverage is the average normalized depth of a contig across samples.
func meanCoverage(c *Contig) float64 {
	if len(c.Coverage) == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range c.Coverage {
		sum += d
	}
	return sum / float64(len(c.Coverage))
}
