package cmd

import (
	"log"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kdsuneraavinash/CH-Bin/config"
	"github.com/kdsuneraavinash/CH-Bin/internal/chbin"
)

// runCmd runs the whole pipeline end to end.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full binning pipeline: features, then bin",
	Run: func(cmd *cobra.Command, args []string) {
		contigsPath, _ := cmd.Flags().GetString("contigs")
		coverages, _ := cmd.Flags().GetString("coverages")
		out, _ := cmd.Flags().GetString("out")

		ds := buildDataset(contigsPath, coverages, out)
		if err := chbin.WriteFeatureTable(filepath.Join(ds.WorkDir, "features.csv"), ds.Fragments); err != nil {
			log.Fatalf("failed to write feature table: %v", err)
		}

		c := config.New()
		warnings := append(ds.Warnings,
			refineAndMaterialize(c, ds.Fragments, ds.NumBins, ds.Contigs, out)...)
		reportWarnings(warnings)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("contigs", "i", "", "path to the assembly contig FASTA")
	runCmd.Flags().StringP("coverages", "a", "", "path to the per-sample coverage TSV")
	runCmd.Flags().StringP("out", "o", "", "output directory")

	runCmd.MarkFlagRequired("contigs")
	runCmd.MarkFlagRequired("coverages")
	runCmd.MarkFlagRequired("out")
}
