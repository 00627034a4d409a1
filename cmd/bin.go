package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kdsuneraavinash/CH-Bin/config"
	"github.com/kdsuneraavinash/CH-Bin/internal/chbin"
	"github.com/kdsuneraavinash/CH-Bin/logger"
)

// binCmd runs the polytope refinement over a prepared feature table.
var binCmd = &cobra.Command{
	Use:   "bin",
	Short: "Assign contigs to bins from a prepared feature table",
	Long: `Assign contigs to bins by iterative polytope refinement.

Reads the features.csv written by "chbin features", alternates weight
assignment and representative updates until the binning stabilizes, and
writes bin.csv plus one FASTA per non-empty bin.`,
	Run: runBin,
}

func runBin(cmd *cobra.Command, args []string) {
	features, _ := cmd.Flags().GetString("features")
	contigsPath, _ := cmd.Flags().GetString("contigs")
	out, _ := cmd.Flags().GetString("out")

	c := config.New()

	fragments, numBins, err := chbin.ReadFeatureTable(features)
	if err != nil {
		log.Fatalf("failed to read feature table: %v", err)
	}

	contigs, err := chbin.ReadContigs(contigsPath)
	if err != nil {
		log.Fatalf("failed to read contigs: %v", err)
	}

	if err := os.MkdirAll(out, 0755); err != nil {
		log.Fatalf("failed to create output directory %s: %v", out, err)
	}

	warnings := refineAndMaterialize(c, fragments, numBins, contigs, out)
	reportWarnings(warnings)
}

// refineAndMaterialize runs the refinement loop and writes the final
// binning, shared by "bin" and "run".
func refineAndMaterialize(c config.Config, fragments []chbin.Fragment, numBins int, contigs []*chbin.Contig, out string) []chbin.Warning {
	binner := chbin.NewBinner(c.Algo, fragments, numBins, out)
	binner.Progress = true

	res, err := binner.Run()
	if err != nil {
		log.Fatalf("failed to refine bins: %v", err)
	}
	logger.Info("refinement finished",
		zap.Int("iterations", res.Iterations),
		zap.Bool("converged", res.Converged))

	if err := chbin.Materialize(out, contigs, fragments, res.Final); err != nil {
		log.Fatalf("failed to write binning output: %v", err)
	}
	logger.Info("wrote binning output", zap.String("dir", out))

	return res.Warnings
}

func init() {
	rootCmd.AddCommand(binCmd)

	binCmd.Flags().StringP("features", "f", "", "path to the features.csv of a features run")
	binCmd.Flags().StringP("contigs", "i", "", "path to the assembly contig FASTA")
	binCmd.Flags().StringP("out", "o", "", "output directory")

	binCmd.MarkFlagRequired("features")
	binCmd.MarkFlagRequired("contigs")
	binCmd.MarkFlagRequired("out")
}
