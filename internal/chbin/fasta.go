package chbin

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// fastaRecord is a single entry of a FASTA file.
type fastaRecord struct {
	ID  string
	Seq string
}

// non-nucleotide characters dropped from sequence bodies
var unwantedChars = regexp.MustCompile(`(?im)[^atgcn]|\W`)

// readFasta parses a (multi) FASTA file into records. The record id is the
// header up to the first whitespace, mirroring the ids the coverage table
// and the external tools report.
func readFasta(path string) ([]fastaRecord, error) {
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create path to input file")
		}
		path = abs
	}

	dat, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read input file")
	}

	lines := strings.Split(string(dat), "\n")

	var records []fastaRecord
	var headerIndices []int
	var ids []string
	seen := make(map[string]bool)
	for i, line := range lines {
		if strings.HasPrefix(line, ">") {
			header := strings.Fields(line[1:])
			if len(header) == 0 {
				return nil, &InputFormatError{Path: path, Line: i + 1, Msg: "empty FASTA header"}
			}
			if seen[header[0]] {
				return nil, &InputFormatError{Path: path, Line: i + 1, Msg: "duplicate FASTA record id " + header[0]}
			}
			seen[header[0]] = true
			headerIndices = append(headerIndices, i)
			ids = append(ids, header[0])
		} else if len(headerIndices) == 0 && strings.TrimSpace(line) != "" {
			return nil, &InputFormatError{Path: path, Line: i + 1, Msg: "sequence body before any FASTA header"}
		}
	}

	for i, headerIndex := range headerIndices {
		nextLine := len(lines)
		if i < len(headerIndices)-1 {
			nextLine = headerIndices[i+1]
		}
		seqJoined := strings.Join(lines[headerIndex+1:nextLine], "")
		seq := unwantedChars.ReplaceAllString(seqJoined, "")
		records = append(records, fastaRecord{ID: ids[i], Seq: strings.ToUpper(seq)})
	}

	if len(records) < 1 {
		return nil, &InputFormatError{Path: path, Msg: "no FASTA records found"}
	}

	return records, nil
}

// writeFasta writes records to path, wrapping sequence bodies at 80 columns.
func writeFasta(path string, records []fastaRecord) error {
	var sb strings.Builder
	for _, r := range records {
		sb.WriteString(">" + r.ID + "\n")
		for i := 0; i < len(r.Seq); i += 80 {
			end := i + 80
			if end > len(r.Seq) {
				end = len(r.Seq)
			}
			sb.WriteString(r.Seq[i:end] + "\n")
		}
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0666); err != nil {
		return errors.Wrapf(err, "failed to write FASTA to %s", path)
	}
	return nil
}

// ReadContigs loads a contig FASTA into bare Contig values (id, sequence
// and length only), enough for materializing a binning over them.
func ReadContigs(path string) ([]*Contig, error) {
	records, err := readFasta(path)
	if err != nil {
		return nil, err
	}

	contigs := make([]*Contig, len(records))
	for i, r := range records {
		contigs[i] = &Contig{ID: r.ID, Seq: r.Seq, Length: len(r.Seq), Markers: map[string]float64{}}
	}
	return contigs, nil
}

// splitSeq cuts a sequence into pieces of splitLen. The final piece absorbs
// the remainder, so every piece is at least splitLen long when the input is.
func splitSeq(seq string, splitLen int) []string {
	if splitLen <= 0 || len(seq) <= splitLen {
		return []string{seq}
	}

	var pieces []string
	for offset := 0; offset < len(seq); offset += splitLen {
		if offset+2*splitLen > len(seq) {
			pieces = append(pieces, seq[offset:])
			break
		}
		pieces = append(pieces, seq[offset:offset+splitLen])
	}
	return pieces
}

// fragmentName names the ith split piece of a contig.
func fragmentName(contigID string, i int) string {
	return fmt.Sprintf("%s_S%d", contigID, i)
}
