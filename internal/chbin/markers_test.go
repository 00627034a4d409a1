package chbin

import (
	"errors"
	"math"
	"reflect"
	"strconv"
	"strings"
	"testing"
)

func Test_contigIDFromORF(t *testing.T) {
	tests := []struct {
		orfID string
		want  string
	}{
		{"contig1_100_900_+", "contig1"},
		{"NODE_12_length_3000_1_500_-", "NODE_12_length_3000"},
		{"plain", "plain"},
		{"a_b_c", "a_b_c"},
	}
	for _, tt := range tests {
		if got := contigIDFromORF(tt.orfID); got != tt.want {
			t.Errorf("contigIDFromORF(%q) = %q, want %q", tt.orfID, got, tt.want)
		}
	}
}

// domtbloutRow lays out the 23 whitespace separated columns of one
// per-domain hits row with only the consumed columns filled in.
func domtbloutRow(orf, family string, qlen, score, aliFrom, aliTo float64) string {
	cols := make([]string, 23)
	for i := range cols {
		cols[i] = "-"
	}
	cols[0] = orf
	cols[3] = family
	cols[5] = strconv.FormatFloat(qlen, 'f', -1, 64)
	cols[7] = strconv.FormatFloat(score, 'f', -1, 64)
	cols[17] = strconv.FormatFloat(aliFrom, 'f', -1, 64)
	cols[18] = strconv.FormatFloat(aliTo, 'f', -1, 64)
	return strings.Join(cols, " ")
}

func Test_parseMarkerHits(t *testing.T) {
	content := "# comment line\n" +
		domtbloutRow("contig1_1_500_+", "PF00001", 100, 42.5, 1, 90) + "\n" +
		"\n" +
		domtbloutRow("contig2_1_300_-", "PF00002", 200, 10.0, 51, 100) + "\n"
	path := writeTemp(t, "hits.hmmout", content)

	hits, err := parseMarkerHits(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("parseMarkerHits() returned %d hits, want 2", len(hits))
	}

	if hits[0].ContigID != "contig1" || hits[0].Family != "PF00001" || hits[0].Score != 42.5 {
		t.Errorf("hit 0 = %+v", hits[0])
	}
	if math.Abs(hits[0].AlignedFraction-0.9) > 1e-12 {
		t.Errorf("hit 0 aligned fraction = %v, want 0.9", hits[0].AlignedFraction)
	}
	if math.Abs(hits[1].AlignedFraction-0.25) > 1e-12 {
		t.Errorf("hit 1 aligned fraction = %v, want 0.25", hits[1].AlignedFraction)
	}
}

func Test_parseMarkerHits_malformed(t *testing.T) {
	path := writeTemp(t, "hits.hmmout", "too few columns\n")
	_, err := parseMarkerHits(path)
	var formatErr *InputFormatError
	if !errors.As(err, &formatErr) {
		t.Errorf("parseMarkerHits() error = %v, want an InputFormatError", err)
	}
}

func Test_locateMarkers(t *testing.T) {
	hits := []MarkerHit{
		{ContigID: "c1", Family: "PF001", Score: 50, AlignedFraction: 0.9},
		{ContigID: "c1", Family: "PF001", Score: 60, AlignedFraction: 0.8}, // better duplicate
		{ContigID: "c1", Family: "PF002", Score: 5, AlignedFraction: 0.9},  // below score threshold
		{ContigID: "c2", Family: "PF001", Score: 70, AlignedFraction: 0.2}, // below aligned fraction
		{ContigID: "c2", Family: "PF003", Score: 30, AlignedFraction: 0.5},
	}

	carriers := locateMarkers(hits, 10, 0.5)
	want := map[string]map[string]float64{
		"c1": {"PF001": 60},
		"c2": {"PF003": 30},
	}
	if !reflect.DeepEqual(carriers, want) {
		t.Errorf("locateMarkers() = %v, want %v", carriers, want)
	}
}

func Test_attachMarkers(t *testing.T) {
	contigs := []*Contig{
		{ID: "c1", Markers: map[string]float64{}},
		{ID: "c2", Markers: map[string]float64{}},
	}
	attachMarkers(contigs, map[string]map[string]float64{
		"c1": {"PF001": 60},
	})

	if len(contigs[0].Markers) != 1 || contigs[0].Markers["PF001"] != 60 {
		t.Errorf("contig c1 markers = %v, want PF001:60", contigs[0].Markers)
	}
	if len(contigs[1].Markers) != 0 {
		t.Errorf("contig c2 markers = %v, want none", contigs[1].Markers)
	}
}
