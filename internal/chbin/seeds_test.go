package chbin

import (
	"reflect"
	"strings"
	"testing"
)

func Test_familyHistogram(t *testing.T) {
	contigs := []*Contig{
		{ID: "c1", Markers: map[string]float64{"PF001": 30, "PF002": 25}},
		{ID: "c2", Markers: map[string]float64{"PF001": 28}},
		{ID: "c3", Markers: map[string]float64{"PF001": 31, "PF003": 40}},
	}
	// PF001 on 3 contigs, PF002 and PF003 on 1 each
	want := map[int]int{1: 2, 3: 1}
	if got := familyHistogram(contigs); !reflect.DeepEqual(got, want) {
		t.Errorf("familyHistogram() = %v, want %v", got, want)
	}
}

func Test_estimateBinCount(t *testing.T) {
	tests := []struct {
		name       string
		histogram  map[int]int
		percentile float64
		want       int
	}{
		{
			name:       "bulk at one carrier",
			histogram:  map[int]int{1: 50, 2: 3, 3: 1},
			percentile: 0.5,
			want:       1,
		},
		{
			name:       "high percentile crosses into two",
			histogram:  map[int]int{1: 50, 2: 3, 3: 1},
			percentile: 0.95,
			want:       2,
		},
		{
			name:       "percentile past everything",
			histogram:  map[int]int{2: 4},
			percentile: 1.0,
			want:       2,
		},
		{
			name:       "no markers",
			histogram:  map[int]int{},
			percentile: 0.95,
			want:       0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := estimateBinCount(tt.histogram, tt.percentile); got != tt.want {
				t.Errorf("estimateBinCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func Test_selectSeeds(t *testing.T) {
	contigs := []*Contig{
		{ID: "low", Length: 9000, Coverage: []float64{0.1}, Markers: map[string]float64{"PF001": 50}},
		{ID: "high", Length: 5000, Coverage: []float64{0.9}, Markers: map[string]float64{"PF001": 20}},
		{ID: "bare", Length: 20000, Coverage: []float64{0.8}, Markers: map[string]float64{}},
		{ID: "short", Length: 500, Coverage: []float64{0.95}, Markers: map[string]float64{"PF002": 60}, Filtered: true},
		{ID: "mid", Length: 12000, Coverage: []float64{0.5}, Markers: map[string]float64{"PF003": 45}},
	}

	seeds, warnings := selectSeeds(contigs, 2)
	if len(warnings) != 0 {
		t.Fatalf("selectSeeds() warnings = %v, want none", warnings)
	}
	got := []string{seeds[0].ID, seeds[1].ID}
	// coverage ranks first; bare and filtered contigs are never candidates
	want := []string{"high", "mid"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("selectSeeds() = %v, want %v", got, want)
	}
}

func Test_selectSeeds_clamped(t *testing.T) {
	contigs := []*Contig{
		{ID: "only", Length: 9000, Coverage: []float64{0.5}, Markers: map[string]float64{"PF001": 50}},
	}
	seeds, warnings := selectSeeds(contigs, 5)
	if len(seeds) != 1 {
		t.Fatalf("selectSeeds() returned %d seeds, want 1", len(seeds))
	}
	if len(warnings) != 1 || warnings[0].Kind != WarnDegenerateSeedCount {
		t.Errorf("selectSeeds() warnings = %v, want a single %s warning", warnings, WarnDegenerateSeedCount)
	}
}

func Test_selectSeeds_tieBreaks(t *testing.T) {
	// equal coverage, equal best marker score, so length and then id decide
	contigs := []*Contig{
		{ID: "b", Length: 5000, Coverage: []float64{0.5}, Markers: map[string]float64{"PF001": 50}},
		{ID: "a", Length: 5000, Coverage: []float64{0.5}, Markers: map[string]float64{"PF001": 50}},
		{ID: "c", Length: 8000, Coverage: []float64{0.5}, Markers: map[string]float64{"PF001": 50}},
	}
	seeds, _ := selectSeeds(contigs, 3)
	got := []string{seeds[0].ID, seeds[1].ID, seeds[2].ID}
	want := []string{"c", "a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("selectSeeds() = %v, want %v", got, want)
	}
}

func Test_splitSeq(t *testing.T) {
	tests := []struct {
		name     string
		seq      string
		splitLen int
		want     []string
	}{
		{
			name:     "shorter than the split length",
			seq:      "ATGC",
			splitLen: 10,
			want:     []string{"ATGC"},
		},
		{
			name:     "exact multiple",
			seq:      strings.Repeat("A", 4) + strings.Repeat("C", 4),
			splitLen: 4,
			want:     []string{"AAAA", "CCCC"},
		},
		{
			name:     "remainder folded into the last piece",
			seq:      "AAAACCCCGG",
			splitLen: 4,
			want:     []string{"AAAA", "CCCCGG"},
		},
		{
			name:     "non positive split length",
			seq:      "ATGC",
			splitLen: 0,
			want:     []string{"ATGC"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitSeq(tt.seq, tt.splitLen); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitSeq() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_splitRecords(t *testing.T) {
	contigs := []*Contig{
		{ID: "seed", Seq: strings.Repeat("A", 4) + strings.Repeat("C", 4), Length: 8},
		{ID: "plain", Seq: "GGGG", Length: 4},
		{ID: "dropped", Seq: "TTTT", Length: 4, Filtered: true},
	}
	seedBins := map[string]int{"seed": 1}

	records, fragments := splitRecords(contigs, seedBins, 4, false)
	if len(records) != 3 || len(fragments) != 3 {
		t.Fatalf("splitRecords() returned %d records and %d fragments, want 3 and 3", len(records), len(fragments))
	}

	wantIDs := []string{"seed_S0", "seed_S1", "plain"}
	wantBins := []int{1, 1, -1}
	for i, f := range fragments {
		if f.ID != wantIDs[i] {
			t.Errorf("fragment %d id = %q, want %q", i, f.ID, wantIDs[i])
		}
		if f.Bin != wantBins[i] {
			t.Errorf("fragment %d bin = %d, want %d", i, f.Bin, wantBins[i])
		}
		if records[i].ID != wantIDs[i] {
			t.Errorf("record %d id = %q, want %q", i, records[i].ID, wantIDs[i])
		}
	}
	if fragments[0].Parent != "seed" || fragments[1].Parent != "seed" {
		t.Errorf("split fragments do not point back to the seed contig: %v", fragments[:2])
	}

	// with filtered contigs kept they are carried as plain fragments
	records, fragments = splitRecords(contigs, seedBins, 4, true)
	if len(records) != 4 {
		t.Fatalf("splitRecords() with filtered contigs kept returned %d records, want 4", len(records))
	}
	last := fragments[len(fragments)-1]
	if last.ID != "dropped" || last.Bin != -1 {
		t.Errorf("filtered fragment = %+v, want id %q and bin -1", last, "dropped")
	}
}
