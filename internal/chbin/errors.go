package chbin

import "fmt"

// InputFormatError is fatal: a malformed row in one of the consumed files.
// Nothing is computed and no output directory is touched after it.
type InputFormatError struct {
	Path string
	Line int
	Msg  string
}

func (e *InputFormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed input %s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("malformed input %s: %s", e.Path, e.Msg)
}

// InputMismatchError is fatal: a contig id present in one input source is
// absent from another.
type InputMismatchError struct {
	ContigID string
	Present  string
	Missing  string
}

func (e *InputMismatchError) Error() string {
	return fmt.Sprintf("contig %q is in %s but missing from %s", e.ContigID, e.Present, e.Missing)
}

// InsufficientEvidenceError is fatal: no marker hit passed the acceptance
// threshold anywhere, so no informative seed exists.
type InsufficientEvidenceError struct {
	HitsFile string
}

func (e *InsufficientEvidenceError) Error() string {
	return fmt.Sprintf("no marker hit in %s passed the acceptance threshold; cannot seed any bin", e.HitsFile)
}

// Warning kinds surfaced alongside completed output.
const (
	WarnDegenerateSeedCount = "DegenerateSeedCount"
	WarnNonConvergence      = "NonConvergence"
)

// Warning is a recoverable condition collected during a run and reported
// with the final output, never raised mid-computation.
type Warning struct {
	Kind string
	Msg  string
}

func (w Warning) String() string {
	return w.Kind + ": " + w.Msg
}
