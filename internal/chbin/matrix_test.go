package chbin

import (
	"math"
	"os"
	"reflect"
	"testing"

	"github.com/kdsuneraavinash/CH-Bin/config"
)

func Test_euclidean(t *testing.T) {
	tests := []struct {
		a, b []float64
		want float64
	}{
		{[]float64{0, 0}, []float64{3, 4}, 5},
		{[]float64{1, 1}, []float64{1, 1}, 0},
		{[]float64{-1}, []float64{2}, 3},
	}
	for _, tt := range tests {
		if got := euclidean(tt.a, tt.b); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("euclidean(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func Test_nearestOf(t *testing.T) {
	tests := []struct {
		name string
		row  []float64
		k    int
		want []int
	}{
		{name: "ascending order", row: []float64{3, 1, 2}, k: 3, want: []int{1, 2, 0}},
		{name: "truncated to k", row: []float64{3, 1, 2}, k: 2, want: []int{1, 2}},
		{name: "ties go to the lower index", row: []float64{2, 1, 1}, k: 3, want: []int{1, 2, 0}},
		{name: "k beyond the row", row: []float64{1}, k: 5, want: []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nearestOf(tt.row, tt.k); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("nearestOf(%v, %d) = %v, want %v", tt.row, tt.k, got, tt.want)
			}
		})
	}
}

func Test_distanceStore_backingsAgree(t *testing.T) {
	points := [][]float64{
		{0, 0},
		{1, 0},
		{0.3, 0.7},
		{0.5, 0.5},
	}
	corners := [][]float64{
		{0, 1},
		{1, 1},
		{0.5, 0},
	}

	mem, err := newDistanceStore(config.AlgoConfig{MatrixBacking: config.BackingMemory, NumWorkers: 2}, points, corners, "")
	if err != nil {
		t.Fatal(err)
	}
	defer mem.Close()

	workDir := t.TempDir()
	disk, err := newDistanceStore(config.AlgoConfig{MatrixBacking: config.BackingDisk, NumWorkers: 2}, points, corners, workDir)
	if err != nil {
		t.Fatal(err)
	}

	for i := range points {
		for j := range corners {
			md, err := mem.Distance(i, j)
			if err != nil {
				t.Fatal(err)
			}
			dd, err := disk.Distance(i, j)
			if err != nil {
				t.Fatal(err)
			}
			if md != dd {
				t.Errorf("Distance(%d,%d) memory %v disk %v", i, j, md, dd)
			}
			if want := euclidean(points[i], corners[j]); math.Abs(md-want) > 1e-12 {
				t.Errorf("Distance(%d,%d) = %v, want %v", i, j, md, want)
			}
		}

		mn, err := mem.Nearest(i, 2)
		if err != nil {
			t.Fatal(err)
		}
		dn, err := disk.Nearest(i, 2)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(mn, dn) {
			t.Errorf("Nearest(%d) memory %v disk %v", i, mn, dn)
		}
	}

	if err := disk.Close(); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("Close() left %d files in the work directory", len(entries))
	}
}

func Test_newDistanceStore_unknownBacking(t *testing.T) {
	_, err := newDistanceStore(config.AlgoConfig{MatrixBacking: "punchcards"}, nil, nil, "")
	if err == nil {
		t.Errorf("newDistanceStore() with an unknown backing returned no error")
	}
}

func Test_fillRows_propagatesError(t *testing.T) {
	points := make([][]float64, 100)
	for i := range points {
		points[i] = []float64{float64(i)}
	}
	corners := [][]float64{{0}}

	wantErr := os.ErrClosed
	err := fillRows(points, corners, 4, func(row int, dists []float64) error {
		if row == 7 {
			return wantErr
		}
		return nil
	})
	if err != wantErr {
		t.Errorf("fillRows() error = %v, want %v", err, wantErr)
	}
}
