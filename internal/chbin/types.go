// Package chbin implements the binning core: feature fusion, marker-gene
// seed selection, and the iterative polytope assignment of contigs to
// per-genome bins.
package chbin

// Contig is an assembled sequence with its fused evidence. It is created
// once from the inputs and read-only afterwards.
type Contig struct {
	// ID from the FASTA header (up to the first whitespace)
	ID string

	// Seq is the cleaned sequence body
	Seq string

	// Length in bp
	Length int

	// Composition is the L1-normalized k-mer frequency vector (4^K columns)
	Composition []float64

	// Coverage is the normalized per-sample depth vector
	Coverage []float64

	// Markers maps marker family to the best accepted score on this contig
	Markers map[string]float64

	// Filtered is set when the contig is below the length threshold and
	// therefore not seed-eligible
	Filtered bool
}

// Features returns the fused composition+coverage vector of the contig.
func (c *Contig) Features() []float64 {
	v := make([]float64, 0, len(c.Composition)+len(c.Coverage))
	v = append(v, c.Composition...)
	return append(v, c.Coverage...)
}

// Fragment is one row of the assignment problem: a whole contig, or one
// split piece of a seed contig. Its vector is frozen at creation.
type Fragment struct {
	// ID of the fragment; split pieces are named <parent>_S<i>
	ID string

	// Parent contig id (equal to ID for unsplit contigs)
	Parent string

	// Bin index seeded at creation, -1 for non-seed fragments
	Bin int

	// Vector is the fused feature vector
	Vector []float64
}

// Bin is one cluster slot. The index is fixed at seeding; the
// representative and member set evolve with each refinement iteration.
type Bin struct {
	Index int

	// Representative is the current corner vector, recomputed each
	// Updating phase as the confidence-weighted centroid of the members
	Representative []float64

	// Members holds fragment indices, replaced wholesale each iteration
	Members []int
}

// BinWeight is the aggregated membership weight a contig puts on one bin.
type BinWeight struct {
	Bin    int
	Weight float64
}

// Assignment is one complete, immutable snapshot of the Assigning phase.
type Assignment struct {
	// HardBins holds the winning bin per fragment, index-aligned with
	// the fragment slice
	HardBins []int

	// Weights holds the per-bin aggregated weight distribution per
	// fragment, sorted by bin index
	Weights [][]BinWeight

	// Confidence is the winning bin's aggregated weight per fragment
	Confidence []float64
}

// Equal reports whether two snapshots hard-assign every fragment to the
// same bin.
func (a *Assignment) Equal(b *Assignment) bool {
	if b == nil || len(a.HardBins) != len(b.HardBins) {
		return false
	}
	for i, bin := range a.HardBins {
		if b.HardBins[i] != bin {
			return false
		}
	}
	return true
}

// changed counts fragments whose hard bin differs between two snapshots.
func (a *Assignment) changed(b *Assignment) int {
	n := 0
	for i, bin := range a.HardBins {
		if b.HardBins[i] != bin {
			n++
		}
	}
	return n
}
