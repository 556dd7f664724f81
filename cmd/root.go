package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"doghair/internal/logging"
)

// Verbose controls whether debug logs are printed.
var Verbose bool

var rootCmd = &cobra.Command{
	Use:   "doghair",
	Short: "Cluster-wide sampling coordinator",
	Long:  "doghair orchestrates per-node sampling collectors across a meshed cluster: boot, start, stop, pull, and crash-rebirth.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetVerbose(Verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "Enable verbose (debug) logging")
}
