package cmd

import (
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kdsuneraavinash/CH-Bin/config"
	"github.com/kdsuneraavinash/CH-Bin/internal/chbin"
	"github.com/kdsuneraavinash/CH-Bin/internal/tools"
	"github.com/kdsuneraavinash/CH-Bin/logger"
)

// featuresCmd builds the fused feature table from the raw inputs.
var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Build the fused composition+coverage feature table with initial seeds",
	Long: `Build the fused feature table for a set of assembly contigs.

Runs the external gene predictor and marker profile search to estimate the
number of genomes in the sample, picks one seed contig per genome, splits
long seeds, counts k-mers with the external counter, and fuses composition
and coverage into one vector per contig fragment. The resulting
features.csv is the input of "chbin bin".`,
	Run: runFeatures,
}

func runFeatures(cmd *cobra.Command, args []string) {
	contigs, _ := cmd.Flags().GetString("contigs")
	coverages, _ := cmd.Flags().GetString("coverages")
	out, _ := cmd.Flags().GetString("out")

	ds := buildDataset(contigs, coverages, out)

	featuresCsv := filepath.Join(out, "features.csv")
	if err := chbin.WriteFeatureTable(featuresCsv, ds.Fragments); err != nil {
		log.Fatalf("failed to write feature table: %v", err)
	}
	logger.Info("wrote feature table", zap.String("path", featuresCsv))

	reportWarnings(ds.Warnings)
}

// buildDataset runs the feature stage shared by "features" and "run".
func buildDataset(contigs, coverages, out string) *chbin.Dataset {
	c := config.New()

	if err := os.MkdirAll(out, 0755); err != nil {
		log.Fatalf("failed to create output directory %s: %v", out, err)
	}

	tk := tools.ExecToolkit{
		Commands:  c.Commands,
		Resources: c.Resources,
		KmerTool:  c.Features.KmerCounterTool,
	}

	ds, err := chbin.BuildDataset(c, tk, contigs, coverages, out)
	if err != nil {
		log.Fatalf("failed to build the feature dataset: %v", err)
	}
	return ds
}

// reportWarnings surfaces collected warnings after the output is written.
func reportWarnings(warnings []chbin.Warning) {
	for _, w := range warnings {
		logger.Warn(w.Msg, zap.String("kind", w.Kind))
	}
}

func init() {
	rootCmd.AddCommand(featuresCmd)

	featuresCmd.Flags().StringP("contigs", "i", "", "path to the assembly contig FASTA")
	featuresCmd.Flags().StringP("coverages", "a", "", "path to the per-sample coverage TSV")
	featuresCmd.Flags().StringP("out", "o", "", "output directory")

	featuresCmd.MarkFlagRequired("contigs")
	featuresCmd.MarkFlagRequired("coverages")
	featuresCmd.MarkFlagRequired("out")
}
