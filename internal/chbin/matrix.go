package chbin

import (
	"encoding/binary"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/kdsuneraavinash/CH-Bin/config"
)

// euclidean is the distance between two points of the joint feature space.
func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// DistanceStore is a materialized fragment x corner distance table. The two
// backings (dense in-memory, row-paged on-disk) are a performance choice
// only and agree numerically for identical inputs.
type DistanceStore interface {
	// Distance returns the distance between one fragment and one corner.
	Distance(frag, corner int) (float64, error)

	// Nearest returns the indices of the k nearest corners of a fragment
	// in ascending distance order, ties broken by lower corner index.
	Nearest(frag, k int) ([]int, error)

	// Close releases any backing resources.
	Close() error
}

// newDistanceStore materializes the distance table for the given fragments
// and corner set using the configured backing, filling rows in parallel.
func newDistanceStore(cfg config.AlgoConfig, points [][]float64, corners [][]float64, workDir string) (DistanceStore, error) {
	switch cfg.MatrixBacking {
	case config.BackingDisk:
		return newDiskStore(points, corners, workDir, cfg.NumWorkers)
	case config.BackingMemory, "":
		return newMemoryStore(points, corners, cfg.NumWorkers), nil
	}
	return nil, errors.Errorf("unknown matrix backing %q", cfg.MatrixBacking)
}

// fillRows computes distance rows [start, rows) over a bounded worker pool.
// emit is called once per fully computed row and must be safe for
// concurrent use across distinct rows.
func fillRows(points, corners [][]float64, workers int, emit func(row int, dists []float64) error) error {
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	next := make(chan int)

	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				if failed() {
					continue // drain the channel so the producer never blocks
				}
				dists := make([]float64, len(corners))
				for j, corner := range corners {
					dists[j] = euclidean(points[i], corner)
				}
				if err := emit(i, dists); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}
		}()
	}

	for i := range points {
		next <- i
	}
	close(next)
	wg.Wait()

	return firstErr
}

// nearestOf ranks one distance row and returns the k nearest corner
// indices, ascending, ties to the lower index.
func nearestOf(row []float64, k int) []int {
	idx := make([]int, len(row))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		if row[idx[a]] != row[idx[b]] {
			return row[idx[a]] < row[idx[b]]
		}
		return idx[a] < idx[b]
	})

	if k > len(idx) {
		k = len(idx)
	}
	return idx[:k]
}

// memoryStore is the dense in-memory backing.
type memoryStore struct {
	rows [][]float64
}

func newMemoryStore(points, corners [][]float64, workers int) *memoryStore {
	s := &memoryStore{rows: make([][]float64, len(points))}
	// rows are disjoint, so the emit writes never race
	_ = fillRows(points, corners, workers, func(row int, dists []float64) error {
		s.rows[row] = dists
		return nil
	})
	return s
}

func (s *memoryStore) Distance(frag, corner int) (float64, error) {
	return s.rows[frag][corner], nil
}

func (s *memoryStore) Nearest(frag, k int) ([]int, error) {
	return nearestOf(s.rows[frag], k), nil
}

func (s *memoryStore) Close() error { return nil }

// diskStore pages the table through a flat binary file of float64 rows.
// Every row is written with a single WriteAt at its fixed offset, so a
// reader observes either no row or a whole row, never a partial one.
type diskStore struct {
	f       *os.File
	path    string
	corners int
}

func newDiskStore(points, corners [][]float64, workDir string, workers int) (*diskStore, error) {
	f, err := os.CreateTemp(workDir, "distances-*.mat")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create distance matrix file")
	}

	s := &diskStore{f: f, path: f.Name(), corners: len(corners)}
	err = fillRows(points, corners, workers, func(row int, dists []float64) error {
		buf := make([]byte, 8*len(dists))
		for j, d := range dists {
			binary.LittleEndian.PutUint64(buf[8*j:], math.Float64bits(d))
		}
		if _, err := f.WriteAt(buf, int64(row)*int64(len(buf))); err != nil {
			return errors.Wrapf(err, "failed to write distance row %d", row)
		}
		return nil
	})
	if err != nil {
		f.Close()
		os.Remove(s.path)
		return nil, err
	}

	return s, nil
}

func (s *diskStore) row(frag int) ([]float64, error) {
	buf := make([]byte, 8*s.corners)
	if _, err := s.f.ReadAt(buf, int64(frag)*int64(len(buf))); err != nil {
		return nil, errors.Wrapf(err, "failed to read distance row %d", frag)
	}

	dists := make([]float64, s.corners)
	for j := range dists {
		dists[j] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*j:]))
	}
	return dists, nil
}

func (s *diskStore) Distance(frag, corner int) (float64, error) {
	buf := make([]byte, 8)
	offset := int64(frag)*int64(8*s.corners) + int64(8*corner)
	if _, err := s.f.ReadAt(buf, offset); err != nil {
		return 0, errors.Wrapf(err, "failed to read distance (%d,%d)", frag, corner)
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
}

func (s *diskStore) Nearest(frag, k int) ([]int, error) {
	row, err := s.row(frag)
	if err != nil {
		return nil, err
	}
	return nearestOf(row, k), nil
}

func (s *diskStore) Close() error {
	err := s.f.Close()
	if rmErr := os.Remove(s.path); err == nil {
		err = rmErr
	}
	return err
}
