package chbin

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// UnbinnedLabel marks contigs excluded from binning in the assignment CSV.
const UnbinnedLabel = "unbinned"

// foldToParents folds fragment-level hard assignments back onto their
// parent contigs by majority vote, ties to the lower bin index.
func foldToParents(fragments []Fragment, hardBins []int) map[string]int {
	votes := make(map[string]map[int]int)
	for i, f := range fragments {
		if votes[f.Parent] == nil {
			votes[f.Parent] = make(map[int]int)
		}
		votes[f.Parent][hardBins[i]]++
	}

	parents := make(map[string]int, len(votes))
	for parent, counts := range votes {
		best, bestCount := -1, 0
		for bin, count := range counts {
			if count > bestCount || (count == bestCount && bin < best) {
				best, bestCount = bin, count
			}
		}
		parents[parent] = best
	}
	return parents
}

// writeBinCSV writes the final contig to bin mapping, one row per input
// contig in stable input order. Contigs excluded from binning get the
// unbinned pseudo-bin label.
func writeBinCSV(path string, contigs []*Contig, parentBins map[string]int) error {
	var sb strings.Builder
	sb.WriteString("CONTIG_NAME,BIN\n")
	for _, c := range contigs {
		if bin, ok := parentBins[c.ID]; ok {
			sb.WriteString(c.ID + "," + strconv.Itoa(bin) + "\n")
		} else {
			sb.WriteString(c.ID + "," + UnbinnedLabel + "\n")
		}
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0666); err != nil {
		return errors.Wrapf(err, "failed to write assignment CSV to %s", path)
	}
	return nil
}

// writeBinFastas groups contig sequences by bin index and writes one FASTA
// per non-empty bin under dir. Unbinned contigs get no sequence file.
func writeBinFastas(dir string, contigs []*Contig, parentBins map[string]int) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create bin directory %s", dir)
	}

	grouped := make(map[int][]fastaRecord)
	for _, c := range contigs {
		if bin, ok := parentBins[c.ID]; ok {
			grouped[bin] = append(grouped[bin], fastaRecord{ID: c.ID, Seq: c.Seq})
		}
	}

	for bin, records := range grouped {
		path := filepath.Join(dir, fmt.Sprintf("bin_%d.fasta", bin))
		if err := writeFasta(path, records); err != nil {
			return err
		}
	}
	return nil
}

// Materialize converts the final snapshot into the published artifacts:
// <out>/bin.csv and <out>/bins/bin_<i>.fasta per non-empty bin.
func Materialize(outDir string, contigs []*Contig, fragments []Fragment, final *Assignment) error {
	parentBins := foldToParents(fragments, final.HardBins)

	if err := writeBinCSV(filepath.Join(outDir, "bin.csv"), contigs, parentBins); err != nil {
		return err
	}
	return writeBinFastas(filepath.Join(outDir, "bins"), contigs, parentBins)
}
