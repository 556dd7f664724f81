package cmd

import (
	"github.com/spf13/cobra"

	"doghair/internal/collectorsim"
	"doghair/internal/logging"
)

var (
	collectorNode   string
	collectorListen string
	collectorDir    string
)

var collectorCmd = &cobra.Command{
	Use:   "collector",
	Short: "Run the reference collector peer",
	Run:   runCollector,
}

func init() {
	rootCmd.AddCommand(collectorCmd)
	collectorCmd.Flags().StringVar(&collectorNode, "node", "", "this peer's node id")
	collectorCmd.Flags().StringVar(&collectorListen, "listen", ":60100", "Lifecycle listen address")
	collectorCmd.Flags().StringVar(&collectorDir, "sample-dir", "/var/lib/doghair/samples", "directory to write sample files to")
}

func runCollector(cmd *cobra.Command, args []string) {
	log := logging.For("cmd")
	if collectorNode == "" {
		log.Fatal("--node is required")
	}

	c := collectorsim.NewCollector(collectorNode, collectorDir)
	log.WithField("listen", collectorListen).Info("collector listening")
	if err := c.Serve(collectorListen); err != nil {
		log.WithError(err).Fatal("collector stopped")
	}
}
