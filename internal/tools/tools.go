// Package tools drives the external gene-prediction, profile-search and
// k-mer counting binaries behind a capability interface, so the binning
// core can be tested against in-memory fakes and never spawns a process
// itself.
package tools

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"

	"github.com/kdsuneraavinash/CH-Bin/config"
)

// Toolkit is one method per external function the pipeline consumes.
type Toolkit interface {
	// PredictORFs runs the gene predictor on a contig FASTA and returns
	// the path of the predicted protein FASTA.
	PredictORFs(contigFasta, workDir string) (string, error)

	// AlignMarkers searches the predicted proteins against the marker
	// profile database and returns the path of the per-domain hits table.
	AlignMarkers(proteinFasta, workDir string) (string, error)

	// CountKmers counts k-mers of every record of a FASTA and returns the
	// path of the counts file.
	CountKmers(contigFasta, workDir string, k int) (string, error)
}

// ExecToolkit shells out to the configured binaries.
type ExecToolkit struct {
	Commands  config.CommandConfig
	Resources config.ResourceConfig

	// KmerTool selects the counting backend (kmer-counter/seq2vec)
	KmerTool string
}

// threads picks the CPU budget handed to the external tools.
func threads() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// run executes one external command, surfacing its stderr on failure.
func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s failed: %s", name, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// PredictORFs runs FragGeneScan over the contigs.
func (t ExecToolkit) PredictORFs(contigFasta, workDir string) (string, error) {
	dir := filepath.Join(workDir, "frag-gene-scan")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create gene prediction directory")
	}

	prefix := filepath.Join(dir, "frags")
	err := run(t.Commands.FragGeneScan,
		"-genome="+contigFasta,
		"-out="+prefix,
		"-complete=0",
		"-train=complete",
		fmt.Sprintf("-thread=%d", threads()),
	)
	if err != nil {
		return "", err
	}
	return prefix + ".faa", nil
}

// AlignMarkers runs hmmsearch against the single-copy marker profiles.
func (t ExecToolkit) AlignMarkers(proteinFasta, workDir string) (string, error) {
	dir := filepath.Join(workDir, "hmmer")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create marker search directory")
	}

	perDomainHits := filepath.Join(dir, "per-domain-hits.hmmout")
	err := run(t.Commands.HmmSearch,
		"-o", filepath.Join(dir, "stdout.txt"),
		"--domtblout", perDomainHits,
		"--tblout", filepath.Join(dir, "per-sequence-hits.hmmout"),
		"--cut_tc",
		"--cpu", fmt.Sprintf("%d", threads()),
		t.Resources.MarkersHmm,
		proteinFasta,
	)
	if err != nil {
		return "", err
	}
	return perDomainHits, nil
}

// CountKmers runs the configured k-mer counting backend over the (split)
// contigs. The two backends are interchangeable; only the output format
// differs, which the parsing side selects on the same setting.
func (t ExecToolkit) CountKmers(contigFasta, workDir string, k int) (string, error) {
	dir := filepath.Join(workDir, "kmers")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create k-mer count directory")
	}

	if t.KmerTool == "seq2vec" {
		out := filepath.Join(dir, "vectors.txt")
		err := run(t.Commands.KmerCounter,
			"-f", contigFasta,
			"-o", out,
			"-k", fmt.Sprintf("%d", k),
		)
		if err != nil {
			return "", err
		}
		return out, nil
	}

	err := run(t.Commands.KmerCounter,
		"--fasta",
		fmt.Sprintf("--k=%d", k),
		"--results-dir="+dir,
		contigFasta,
	)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "count.txt"), nil
}
