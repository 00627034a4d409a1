// Package cmd is for command line interactions with the chbin application
package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/kdsuneraavinash/CH-Bin/config"
	"github.com/kdsuneraavinash/CH-Bin/logger"
)

var cfgFile string
var verbose bool

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "chbin",
	Short: `Bin metagenomic assembly contigs into per-genome clusters.
Combines k-mer composition, multi-sample coverage and single-copy
marker genes with a convex-polytope assignment algorithm`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zapcore.InfoLevel
		if verbose {
			level = zapcore.DebugLevel
		}
		if err := logger.Init(level); err != nil {
			log.Fatalf("failed to initialize logging: %v", err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	defer logger.Sync() //nolint:errcheck

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to a chbin.yaml settings file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")
}

// initConfig reads in the settings file, if one exists, on top of defaults.
func initConfig() {
	config.SetDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("chbin")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		// only a missing implicit chbin.yaml is tolerable
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("failed to read settings file: %v", err)
		}
	}
}
