package chbin

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func Test_readFasta(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []fastaRecord
		wantErr bool
	}{
		{
			name:    "single record",
			content: ">c1 assembled with spades\nATGC\nATGC\n",
			want:    []fastaRecord{{ID: "c1", Seq: "ATGCATGC"}},
		},
		{
			name:    "multiple records",
			content: ">c1\nATGC\n>c2\nGGTT\n",
			want:    []fastaRecord{{ID: "c1", Seq: "ATGC"}, {ID: "c2", Seq: "GGTT"}},
		},
		{
			name:    "lowercase and gap characters",
			content: ">c1\natg-c\nn.NN\n",
			want:    []fastaRecord{{ID: "c1", Seq: "ATGCNNN"}},
		},
		{
			name:    "body before any header",
			content: "ATGC\n>c1\nATGC\n",
			wantErr: true,
		},
		{
			name:    "empty header",
			content: ">\nATGC\n",
			wantErr: true,
		},
		{
			name:    "duplicate record id",
			content: ">c1\nATGC\n>c1\nGGTT\n",
			wantErr: true,
		},
		{
			name:    "no records",
			content: "\n\n",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, "in.fasta", tt.content)
			got, err := readFasta(path)
			if tt.wantErr {
				var formatErr *InputFormatError
				if !errors.As(err, &formatErr) {
					t.Fatalf("readFasta() error = %v, want an InputFormatError", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("readFasta() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_writeFasta_roundTrip(t *testing.T) {
	records := []fastaRecord{
		{ID: "c1", Seq: strings.Repeat("ATGC", 50)}, // wraps over 80 columns
		{ID: "c2", Seq: "GG"},
	}
	path := writeTemp(t, "out.fasta", "")
	if err := writeFasta(path, records); err != nil {
		t.Fatal(err)
	}

	got, err := readFasta(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, records) {
		t.Errorf("round trip = %v, want %v", got, records)
	}
}

func Test_ReadContigs(t *testing.T) {
	path := writeTemp(t, "contigs.fasta", ">c1\nATGCATGC\n>c2\nGG\n")
	contigs, err := ReadContigs(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(contigs) != 2 {
		t.Fatalf("ReadContigs() returned %d contigs, want 2", len(contigs))
	}
	if contigs[0].ID != "c1" || contigs[0].Length != 8 {
		t.Errorf("contig 0 = %+v, want id c1 and length 8", contigs[0])
	}
}

func Test_fragmentName(t *testing.T) {
	if got := fragmentName("NODE_12", 3); got != "NODE_12_S3" {
		t.Errorf("fragmentName() = %q, want %q", got, "NODE_12_S3")
	}
}
