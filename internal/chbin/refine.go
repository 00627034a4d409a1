package chbin

import (
	"fmt"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kdsuneraavinash/CH-Bin/config"
	"github.com/kdsuneraavinash/CH-Bin/logger"
)

// Binner runs the iterative polytope refinement: an Assigning phase that
// solves every fragment's membership weights against the current corner
// set, and an Updating phase that recomputes each bin's representative as
// the confidence-weighted centroid of its members. Each iteration produces
// a complete new snapshot; the switch between phases is a hard barrier.
type Binner struct {
	cfg       config.AlgoConfig
	fragments []Fragment
	bins      []*Bin
	workDir   string

	// Progress draws a per-iteration progress bar when set (CLI runs)
	Progress bool
}

// Result is the outcome of a refinement run.
type Result struct {
	// Final is the last complete Assignment snapshot
	Final *Assignment

	// Iterations actually performed
	Iterations int

	// Converged reports whether two consecutive snapshots matched
	Converged bool

	// Warnings collected during the run (reported with the output)
	Warnings []Warning
}

// NewBinner prepares a refinement run over the fragment table. numBins is
// fixed here; only representatives and memberships evolve afterwards.
func NewBinner(cfg config.AlgoConfig, fragments []Fragment, numBins int, workDir string) *Binner {
	bins := make([]*Bin, numBins)
	for i := range bins {
		bins[i] = &Bin{Index: i}
	}
	return &Binner{cfg: cfg, fragments: fragments, bins: bins, workDir: workDir}
}

// seedCorners builds the initial corner set: one corner per seed fragment,
// so a split seed contributes several corners to its bin. It also sets each
// bin's starting representative to the mean of its seed corners.
func (b *Binner) seedCorners() (corners [][]float64, cornerBins []int) {
	for _, f := range b.fragments {
		if f.Bin < 0 {
			continue
		}
		corners = append(corners, f.Vector)
		cornerBins = append(cornerBins, f.Bin)
	}

	for _, bin := range b.bins {
		var members [][]float64
		for i, cb := range cornerBins {
			if cb == bin.Index {
				members = append(members, corners[i])
			}
		}
		bin.Representative = centroid(members, nil)
	}

	return corners, cornerBins
}

// centroid averages vectors, optionally weighted. Returns nil for an empty
// or zero-weight member set.
func centroid(vectors [][]float64, weights []float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}

	sum := make([]float64, len(vectors[0]))
	total := 0.0
	for i, v := range vectors {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		total += w
		for c := range sum {
			sum[c] += w * v[c]
		}
	}
	if total == 0 {
		return nil
	}

	for c := range sum {
		sum[c] /= total
	}
	return sum
}

// assign runs the Assigning phase: a read-only data-parallel pass over the
// shared corner set, writing each fragment's entry into its own slot of a
// fresh snapshot. The WaitGroup is the barrier before any update.
func (b *Binner) assign(corners [][]float64, cornerBins []int, iteration int) (*Assignment, error) {
	points := make([][]float64, len(b.fragments))
	for i := range b.fragments {
		points[i] = b.fragments[i].Vector
	}

	store, err := newDistanceStore(b.cfg, points, corners, b.workDir)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	k := b.cfg.NumNeighbors
	if k > len(corners) {
		k = len(corners)
	}
	solver := weightSolver{metric: b.cfg.DistanceMetric, backend: b.cfg.QpSolver}

	snapshot := &Assignment{
		HardBins:   make([]int, len(b.fragments)),
		Weights:    make([][]BinWeight, len(b.fragments)),
		Confidence: make([]float64, len(b.fragments)),
	}

	var bar *pb.ProgressBar
	if b.Progress {
		logger.Info("assigning fragments", zap.Int("iteration", iteration))
		bar = pb.StartNew(len(b.fragments))
	}

	workers := b.cfg.NumWorkers
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	next := make(chan int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				mu.Lock()
				failed := firstErr != nil
				mu.Unlock()
				if failed {
					continue
				}

				hard, weights, conf, err := assignFragment(points[i], i, store, corners, cornerBins, k, solver)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}

				snapshot.HardBins[i] = hard
				snapshot.Weights[i] = weights
				snapshot.Confidence[i] = conf
				if bar != nil {
					bar.Increment()
				}
			}
		}()
	}

	for i := range b.fragments {
		next <- i
	}
	close(next)
	wg.Wait() // Assigning -> Updating barrier

	if bar != nil {
		bar.Finish()
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return snapshot, nil
}

// update runs the Updating phase: every bin's representative becomes the
// confidence-weighted centroid of its current members; membership sets are
// replaced wholesale. A bin that would be emptied keeps its prior
// representative. Returns the collapsed corner set, one corner per bin.
func (b *Binner) update(snapshot *Assignment) (corners [][]float64, cornerBins []int) {
	for _, bin := range b.bins {
		bin.Members = bin.Members[:0]
	}
	for i, hard := range snapshot.HardBins {
		b.bins[hard].Members = append(b.bins[hard].Members, i)
	}

	for _, bin := range b.bins {
		vectors := make([][]float64, len(bin.Members))
		weights := make([]float64, len(bin.Members))
		for m, idx := range bin.Members {
			vectors[m] = b.fragments[idx].Vector
			weights[m] = snapshot.Confidence[idx]
		}

		if c := centroid(vectors, weights); c != nil {
			bin.Representative = c
		}
		// otherwise the bin would be emptied: hold the prior value
	}

	corners = make([][]float64, len(b.bins))
	cornerBins = make([]int, len(b.bins))
	for i, bin := range b.bins {
		corners[i] = bin.Representative
		cornerBins[i] = bin.Index
	}
	return corners, cornerBins
}

// Run alternates Assigning and Updating until two consecutive snapshots
// are identical or the iteration bound is hit, in which case the last
// snapshot is kept and a NonConvergence warning is surfaced.
func (b *Binner) Run() (*Result, error) {
	res := &Result{}
	corners, cornerBins := b.seedCorners()
	if len(corners) == 0 {
		return nil, errors.New("no seeded fragments to refine from")
	}

	var prev *Assignment
	for iter := 1; iter <= b.cfg.MaxIterations; iter++ {
		snapshot, err := b.assign(corners, cornerBins, iter)
		if err != nil {
			return nil, err
		}

		res.Final = snapshot
		res.Iterations = iter

		if prev != nil {
			changed := snapshot.changed(prev)
			logger.Info("refinement iteration finished",
				zap.Int("iteration", iter),
				zap.Int("changed", changed))
			if changed == 0 {
				res.Converged = true
				return res, nil
			}
		}

		corners, cornerBins = b.update(snapshot)
		prev = snapshot
	}

	res.Warnings = append(res.Warnings, Warning{
		Kind: WarnNonConvergence,
		Msg: fmt.Sprintf("no stable assignment after %d iterations; keeping the last snapshot",
			b.cfg.MaxIterations),
	})
	return res, nil
}
