package chbin

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MarkerHit is one row of the external marker-alignment output: an ORF on a
// contig aligned against one single-copy marker family.
type MarkerHit struct {
	ContigID string
	Family   string
	Score    float64

	// AlignedFraction is the aligned share of the marker profile length
	AlignedFraction float64
}

// contigIDFromORF recovers the source contig id from an ORF id of the form
// <contig>_<start>_<end>_<strand> emitted by the gene predictor. Contig ids
// may themselves contain underscores.
func contigIDFromORF(orfID string) string {
	parts := strings.Split(orfID, "_")
	if len(parts) <= 3 {
		return orfID
	}
	return strings.Join(parts[:len(parts)-3], "_")
}

// parseMarkerHits reads an hmmsearch per-domain hits table. Lines starting
// with # are comments. The columns used are the target (ORF) name, the
// query (marker family) name, the profile length, the full-sequence score
// and the alignment coordinates on the profile.
func parseMarkerHits(path string) ([]MarkerHit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open marker hits")
	}
	defer f.Close()

	var hits []MarkerHit
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) < 19 {
			return nil, &InputFormatError{Path: path, Line: line, Msg: "expected a 23-column per-domain hits row"}
		}

		qlen, err := strconv.ParseFloat(fields[5], 64)
		if err != nil || qlen <= 0 {
			return nil, &InputFormatError{Path: path, Line: line, Msg: "bad profile length " + fields[5]}
		}
		score, err := strconv.ParseFloat(fields[7], 64)
		if err != nil {
			return nil, &InputFormatError{Path: path, Line: line, Msg: "bad score " + fields[7]}
		}
		aliFrom, err := strconv.ParseFloat(fields[17], 64)
		if err != nil {
			return nil, &InputFormatError{Path: path, Line: line, Msg: "bad alignment start " + fields[17]}
		}
		aliTo, err := strconv.ParseFloat(fields[18], 64)
		if err != nil {
			return nil, &InputFormatError{Path: path, Line: line, Msg: "bad alignment end " + fields[18]}
		}

		hits = append(hits, MarkerHit{
			ContigID:        contigIDFromORF(fields[0]),
			Family:          fields[3],
			Score:           score,
			AlignedFraction: (aliTo - aliFrom + 1) / qlen,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to scan marker hits")
	}

	return hits, nil
}

// locateMarkers reduces raw hits to per-contig marker evidence. A contig
// carries a family when its best hit passes both the score and the aligned
// fraction thresholds; multiple hits for one family on a contig count once.
func locateMarkers(hits []MarkerHit, acceptThreshold, coverageThreshold float64) map[string]map[string]float64 {
	carriers := make(map[string]map[string]float64)
	for _, h := range hits {
		if h.Score < acceptThreshold || h.AlignedFraction < coverageThreshold {
			continue
		}

		families := carriers[h.ContigID]
		if families == nil {
			families = make(map[string]float64)
			carriers[h.ContigID] = families
		}
		if best, ok := families[h.Family]; !ok || h.Score > best {
			families[h.Family] = h.Score
		}
	}
	return carriers
}

// attachMarkers copies located marker evidence onto the contig set.
func attachMarkers(contigs []*Contig, carriers map[string]map[string]float64) {
	for _, c := range contigs {
		if families, ok := carriers[c.ID]; ok {
			c.Markers = families
		}
	}
}
