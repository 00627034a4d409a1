package chbin

import (
	"fmt"
	"math"
	"sort"
)

// familyHistogram builds the distribution of per-family carrier counts:
// histogram[c] is the number of marker families carried by exactly c
// contigs. Most single-copy families occur once per genome, so the bulk of
// the histogram sits near the true genome count.
func familyHistogram(contigs []*Contig) map[int]int {
	carriers := make(map[string]int)
	for _, c := range contigs {
		for family := range c.Markers {
			carriers[family]++
		}
	}

	histogram := make(map[int]int)
	for _, n := range carriers {
		histogram[n]++
	}
	return histogram
}

// estimateBinCount takes the configured percentile of the carrier-count
// histogram as the estimated number of bins.
func estimateBinCount(histogram map[int]int, percentile float64) int {
	if len(histogram) == 0 {
		return 0
	}

	maxCount := 0
	total := 0
	for c, freq := range histogram {
		if c > maxCount {
			maxCount = c
		}
		total += freq
	}

	target := int(math.Ceil(float64(total) * percentile))
	cumulative := 0
	for c := 1; c <= maxCount; c++ {
		if cumulative+histogram[c] >= target {
			return c
		}
		cumulative += histogram[c]
	}
	return maxCount
}

// bestMarkerScore is the highest accepted marker score on a contig.
func bestMarkerScore(c *Contig) float64 {
	best := 0.0
	for _, score := range c.Markers {
		if score > best {
			best = score
		}
	}
	return best
}

// selectSeeds ranks marker-bearing, seed-eligible contigs and picks the top
// n as seed contigs, one per bin. When fewer candidates exist than n, n is
// clamped and a DegenerateSeedCount warning is returned with the seeds.
func selectSeeds(contigs []*Contig, n int) ([]*Contig, []Warning) {
	var candidates []*Contig
	for _, c := range contigs {
		if !c.Filtered && len(c.Markers) > 0 {
			candidates = append(candidates, c)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if ca, cb := meanCoverage(a), meanCoverage(b); ca != cb {
			return ca > cb
		}
		if sa, sb := bestMarkerScore(a), bestMarkerScore(b); sa != sb {
			return sa > sb
		}
		if a.Length != b.Length {
			return a.Length > b.Length
		}
		return a.ID < b.ID
	})

	var warnings []Warning
	if len(candidates) < n {
		warnings = append(warnings, Warning{
			Kind: WarnDegenerateSeedCount,
			Msg:  fmt.Sprintf("estimated %d bins but only %d marker-bearing contigs; clamping", n, len(candidates)),
		})
		n = len(candidates)
	}

	return candidates[:n], warnings
}

// splitRecords lays out the fragment-level FASTA the k-mer counter runs on:
// every binnable contig appears once, except seed contigs longer than
// splitLen, which are partitioned into fixed-length pieces so one long seed
// cannot dominate its bin's centroid. Returns the records together with a
// skeleton Fragment per record (vectors attached later).
func splitRecords(contigs []*Contig, seedBins map[string]int, splitLen int, binFiltered bool) ([]fastaRecord, []Fragment) {
	var records []fastaRecord
	var fragments []Fragment

	for _, c := range contigs {
		bin, isSeed := seedBins[c.ID]
		if c.Filtered && !binFiltered {
			continue
		}
		if !isSeed {
			records = append(records, fastaRecord{ID: c.ID, Seq: c.Seq})
			fragments = append(fragments, Fragment{ID: c.ID, Parent: c.ID, Bin: -1})
			continue
		}

		for i, piece := range splitSeq(c.Seq, splitLen) {
			id := fragmentName(c.ID, i)
			records = append(records, fastaRecord{ID: id, Seq: piece})
			fragments = append(fragments, Fragment{ID: id, Parent: c.ID, Bin: bin})
		}
	}

	return records, fragments
}
