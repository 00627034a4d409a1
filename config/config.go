// Package config is for app wide settings that are unmarshalled
// from Viper (see: /cmd)
package config

import (
	"log"
	"runtime"

	"github.com/spf13/viper"
)

// Metric names for the polytope distance.
const (
	MetricConvex = "convex"
	MetricAffine = "affine"
)

// QP solver backend names.
const (
	SolverActiveSet = "activeset"
	SolverPGD       = "pgd"
)

// Distance matrix backing names.
const (
	BackingMemory = "memory"
	BackingDisk   = "disk"
)

// FeatureConfig holds settings for building the fused feature table.
type FeatureConfig struct {
	// k of the counted k-mers; the composition vector has 4^k columns
	KmerK int `mapstructure:"kmer-k"`

	// which external k-mer counter output to parse (kmer-counter/seq2vec)
	KmerCounterTool string `mapstructure:"kmer-counter-tool"`

	// contigs shorter than this many bp are not seed-eligible
	ContigLengthFilterBp int `mapstructure:"contig-length-filter-bp"`

	// whether length-filtered contigs are still assigned to bins;
	// when false they are routed to the unbinned pseudo-bin
	BinFilteredContigs bool `mapstructure:"bin-filtered-contigs"`
}

// MarkerConfig holds settings for the single-copy marker gene scan.
type MarkerConfig struct {
	// minimum hmmsearch bit score for a hit to count
	AcceptThreshold float64 `mapstructure:"scm-accept-threshold"`

	// minimum aligned fraction of the marker profile for a hit to count
	CoverageThreshold float64 `mapstructure:"scm-coverage-threshold"`

	// percentile of the per-family hit-count histogram used as the
	// estimated bin count (0.5 takes the median)
	SelectPercentile float64 `mapstructure:"scm-select-percentile"`

	// seeds longer than this many bp are split into fragments of this size
	SeedContigSplitLengthBp int `mapstructure:"seed-contig-split-length-bp"`
}

// AlgoConfig holds settings for the polytope assignment algorithm.
type AlgoConfig struct {
	// number of nearest corners forming each contig's polytope
	NumNeighbors int `mapstructure:"algo-num-neighbors"`

	// upper bound on refinement iterations
	MaxIterations int `mapstructure:"algo-max-iterations"`

	// polytope distance metric (convex/affine)
	DistanceMetric string `mapstructure:"algo-distance-metric"`

	// quadratic program backend (activeset/pgd)
	QpSolver string `mapstructure:"algo-qp-solver"`

	// distance matrix materialization (memory/disk)
	MatrixBacking string `mapstructure:"matrix-backing"`

	// workers for distance rows and per-contig solves; <=0 means NumCPU
	NumWorkers int `mapstructure:"num-workers"`
}

// CommandConfig points at the external binaries the pipeline shells out to.
type CommandConfig struct {
	FragGeneScan string `mapstructure:"frag-gene-scan"`
	HmmSearch    string `mapstructure:"hmm-search"`
	KmerCounter  string `mapstructure:"kmer-counter"`
}

// ResourceConfig points at static data files used by external tools.
type ResourceConfig struct {
	// the single-copy marker HMM profile database
	MarkersHmm string `mapstructure:"markers-hmm"`
}

// Config is the root-level settings struct and is a mix of settings
// available in chbin.yaml and those available from the command line.
// It is populated once and passed by value into each component.
type Config struct {
	Features  FeatureConfig  `mapstructure:"features"`
	Markers   MarkerConfig   `mapstructure:"markers"`
	Algo      AlgoConfig     `mapstructure:"algo"`
	Commands  CommandConfig  `mapstructure:"commands"`
	Resources ResourceConfig `mapstructure:"resources"`
}

// SetDefaults registers the default value of every setting with viper.
func SetDefaults() {
	viper.SetDefault("features.kmer-k", 4)
	viper.SetDefault("features.kmer-counter-tool", "kmer-counter")
	viper.SetDefault("features.contig-length-filter-bp", 1000)
	viper.SetDefault("features.bin-filtered-contigs", false)
	viper.SetDefault("markers.scm-accept-threshold", 40.0)
	viper.SetDefault("markers.scm-coverage-threshold", 0.4)
	viper.SetDefault("markers.scm-select-percentile", 0.95)
	viper.SetDefault("markers.seed-contig-split-length-bp", 10000)
	viper.SetDefault("algo.algo-num-neighbors", 15)
	viper.SetDefault("algo.algo-max-iterations", 10)
	viper.SetDefault("algo.algo-distance-metric", MetricConvex)
	viper.SetDefault("algo.algo-qp-solver", SolverActiveSet)
	viper.SetDefault("algo.matrix-backing", BackingMemory)
	viper.SetDefault("algo.num-workers", 0)
	viper.SetDefault("commands.frag-gene-scan", "run_FragGeneScan.pl")
	viper.SetDefault("commands.hmm-search", "hmmsearch")
	viper.SetDefault("commands.kmer-counter", "kmer-counter")
	viper.SetDefault("resources.markers-hmm", "marker.hmm")
}

// New returns a new Config struct populated by Viper settings (either
// from the local chbin.yaml) and/or command line arguments.
func New() Config {
	var c Config

	if err := viper.Unmarshal(&c); err != nil {
		log.Fatalf("unable to decode settings into struct, %v", err)
	}

	if c.Algo.NumWorkers <= 0 {
		c.Algo.NumWorkers = runtime.NumCPU()
	}

	return c
}
