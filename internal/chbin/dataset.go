package chbin

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kdsuneraavinash/CH-Bin/config"
	"github.com/kdsuneraavinash/CH-Bin/internal/tools"
	"github.com/kdsuneraavinash/CH-Bin/logger"
)

// Dataset is the assembled input of the refinement stage: the immutable
// contig set, the fragment-level feature table and the seeded bin count.
type Dataset struct {
	Contigs   []*Contig
	Fragments []Fragment
	NumBins   int

	// WorkDir is the per-run workspace holding tool intermediates
	WorkDir string

	// Warnings collected while seeding (reported with the final output)
	Warnings []Warning
}

// BuildDataset runs the feature stage: cross-check inputs, filter short
// contigs, locate markers, estimate the bin count, pick and split seeds,
// count k-mers, and fuse everything into per-fragment feature vectors.
// Fatal input conditions surface before the output directory is touched.
func BuildDataset(cfg config.Config, tk tools.Toolkit, contigFasta, coverageFile, outDir string) (*Dataset, error) {
	records, err := readFasta(contigFasta)
	if err != nil {
		return nil, err
	}
	coverages, err := parseCoverage(coverageFile, "\t")
	if err != nil {
		return nil, err
	}

	contigs, err := buildContigs(records, coverages, cfg.Features.ContigLengthFilterBp)
	if err != nil {
		return nil, err
	}

	// inputs are consistent; only now is the output directory mutated
	workDir := filepath.Join(outDir, "work-"+uuid.NewString())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create run workspace")
	}

	ds := &Dataset{Contigs: contigs, WorkDir: workDir}

	eligible := make([]fastaRecord, 0, len(contigs))
	filtered := 0
	for _, c := range contigs {
		if c.Filtered {
			filtered++
			continue
		}
		eligible = append(eligible, fastaRecord{ID: c.ID, Seq: c.Seq})
	}
	logger.Info("removed short contigs from seed eligibility",
		zap.Int("filtered", filtered), zap.Int("total", len(contigs)))
	if len(eligible) == 0 {
		return nil, &InsufficientEvidenceError{HitsFile: contigFasta}
	}

	filteredFasta := filepath.Join(workDir, "filtered-contigs.fasta")
	if err := writeFasta(filteredFasta, eligible); err != nil {
		return nil, err
	}

	// single-copy marker gene analysis on the eligible contigs
	proteinFasta, err := tk.PredictORFs(filteredFasta, workDir)
	if err != nil {
		return nil, err
	}
	hitsPath, err := tk.AlignMarkers(proteinFasta, workDir)
	if err != nil {
		return nil, err
	}
	hits, err := parseMarkerHits(hitsPath)
	if err != nil {
		return nil, err
	}

	carriers := locateMarkers(hits, cfg.Markers.AcceptThreshold, cfg.Markers.CoverageThreshold)
	if len(carriers) == 0 {
		return nil, &InsufficientEvidenceError{HitsFile: hitsPath}
	}
	attachMarkers(contigs, carriers)

	numBins := estimateBinCount(familyHistogram(contigs), cfg.Markers.SelectPercentile)
	seeds, warnings := selectSeeds(contigs, numBins)
	ds.Warnings = append(ds.Warnings, warnings...)
	ds.NumBins = len(seeds)
	logger.Info("estimated bins from marker histogram",
		zap.Int("estimated", numBins), zap.Int("seeded", ds.NumBins))

	seedBins := make(map[string]int, len(seeds))
	seedIDs := make([]string, len(seeds))
	for i, s := range seeds {
		seedBins[s.ID] = i
		seedIDs[i] = s.ID
	}
	seedsPath := filepath.Join(workDir, "seeds.txt")
	if err := os.WriteFile(seedsPath, []byte(strings.Join(seedIDs, "\n")+"\n"), 0666); err != nil {
		return nil, errors.Wrap(err, "failed to write seed witness file")
	}

	// split long seeds and lay out the fragment-level FASTA
	splitLen := cfg.Markers.SeedContigSplitLengthBp
	splitFastaRecords, fragments := splitRecords(contigs, seedBins, splitLen, cfg.Features.BinFilteredContigs)
	splitFasta := filepath.Join(workDir, "split-contigs.fasta")
	if err := writeFasta(splitFasta, splitFastaRecords); err != nil {
		return nil, err
	}

	countsPath, err := tk.CountKmers(splitFasta, workDir, cfg.Features.KmerK)
	if err != nil {
		return nil, err
	}

	var compositions map[string][]float64
	switch cfg.Features.KmerCounterTool {
	case "seq2vec":
		ids := make([]string, len(splitFastaRecords))
		for i, r := range splitFastaRecords {
			ids[i] = r.ID
		}
		compositions, err = parseSeq2vecCounts(countsPath, ids, cfg.Features.KmerK)
	default:
		compositions, err = parseKmerCounts(countsPath, cfg.Features.KmerK)
	}
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*Contig, len(contigs))
	for _, c := range contigs {
		byID[c.ID] = c
	}

	parentComps := make(map[string][][]float64)
	for i := range fragments {
		f := &fragments[i]
		comp, ok := compositions[f.ID]
		if !ok {
			return nil, &InputMismatchError{ContigID: f.ID, Present: "split FASTA", Missing: "composition profile"}
		}

		parent := byID[f.Parent]
		f.Vector = fuseVector(comp, parent.Coverage)
		parentComps[f.Parent] = append(parentComps[f.Parent], comp)
	}

	// contig-level composition: the mean of its fragment vectors
	for parent, comps := range parentComps {
		c := centroid(comps, nil)
		normalizeL1(c)
		byID[parent].Composition = c
	}

	ds.Fragments = fragments
	return ds, nil
}

// featureHeader is the fixed prefix of the feature table columns.
const featureHeader = "CONTIG_NAME,PARENT_NAME,CLUSTER"

// WriteFeatureTable persists the fused fragment table between the features
// and bin stages.
func WriteFeatureTable(path string, fragments []Fragment) error {
	var sb strings.Builder
	sb.WriteString(featureHeader)
	if len(fragments) > 0 {
		for i := range fragments[0].Vector {
			sb.WriteString(",F" + strconv.Itoa(i))
		}
	}
	sb.WriteString("\n")

	for _, f := range fragments {
		sb.WriteString(f.ID + "," + f.Parent + "," + strconv.Itoa(f.Bin))
		for _, v := range f.Vector {
			sb.WriteString("," + strconv.FormatFloat(v, 'g', -1, 64))
		}
		sb.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0666); err != nil {
		return errors.Wrapf(err, "failed to write feature table to %s", path)
	}
	return nil
}

// ReadFeatureTable loads a fragment table written by WriteFeatureTable and
// returns the fragments with the number of seeded bins.
func ReadFeatureTable(path string) ([]Fragment, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to open feature table")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	if !scanner.Scan() {
		return nil, 0, &InputFormatError{Path: path, Msg: "empty feature table"}
	}
	if !strings.HasPrefix(scanner.Text(), featureHeader) {
		return nil, 0, &InputFormatError{Path: path, Line: 1, Msg: "unexpected header"}
	}

	var fragments []Fragment
	numBins := 0
	width := 0
	line := 1
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		fields := strings.Split(text, ",")
		if len(fields) < 4 {
			return nil, 0, &InputFormatError{Path: path, Line: line, Msg: "expected id, parent, cluster and features"}
		}
		if width == 0 {
			width = len(fields)
		} else if len(fields) != width {
			return nil, 0, &InputFormatError{Path: path, Line: line, Msg: "inconsistent feature vector width"}
		}

		bin, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, 0, &InputFormatError{Path: path, Line: line, Msg: "bad cluster index " + fields[2]}
		}
		if bin+1 > numBins {
			numBins = bin + 1
		}

		vector := make([]float64, len(fields)-3)
		for i, field := range fields[3:] {
			if vector[i], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, 0, &InputFormatError{Path: path, Line: line, Msg: "bad feature value " + field}
			}
		}

		fragments = append(fragments, Fragment{ID: fields[0], Parent: fields[1], Bin: bin, Vector: vector})
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "failed to scan feature table")
	}

	// the refinement loop needs at least one seeded corner to exist
	if numBins == 0 {
		return nil, 0, &InputFormatError{Path: path, Msg: "no seeded fragments; every cluster index is -1"}
	}

	return fragments, numBins, nil
}
