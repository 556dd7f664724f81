package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"doghair/internal/admin"
	"doghair/internal/config"
	"doghair/internal/logging"
)

// operatorSocket overrides config.SocketPath() for the five thin commands
// below. These are dispatchers only -- all the guard/effect logic lives in
// the coordinator they talk to.
var operatorSocket string

func addOperatorSocketFlag(c *cobra.Command) {
	c.Flags().StringVar(&operatorSocket, "socket", "", "admin UDS path (defaults to config.SocketPath)")
}

func operatorClient() *admin.Client {
	socket := operatorSocket
	if socket == "" {
		socket = config.SocketPath()
	}
	return admin.NewClient(socket, 0)
}

func runOperatorCommand(method string) {
	log := logging.For("cmd")
	result, err := operatorClient().Call(context.Background(), method)
	if err != nil {
		log.WithError(err).Fatal("command failed")
	}
	fmt.Println(result)
}

var startCollectCmd = &cobra.Command{
	Use:   "start_collect",
	Short: "Tell the coordinator to start collection on every peer",
	Run:   func(cmd *cobra.Command, args []string) { runOperatorCommand(admin.MethodStartCollect) },
}

var stopCollectCmd = &cobra.Command{
	Use:   "stop_collect",
	Short: "Tell the coordinator to stop collection on every peer",
	Run:   func(cmd *cobra.Command, args []string) { runOperatorCommand(admin.MethodStopCollect) },
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the coordinator's current roster, flag, and timestamps",
	Run:   func(cmd *cobra.Command, args []string) { runOperatorCommand(admin.MethodStatus) },
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Retrieve every peer's accumulated sample files",
	Run:   func(cmd *cobra.Command, args []string) { runOperatorCommand(admin.MethodPull) },
}

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Quit every peer and stop the coordinator",
	Run:   func(cmd *cobra.Command, args []string) { runOperatorCommand(admin.MethodShutdown) },
}

func init() {
	for _, c := range []*cobra.Command{startCollectCmd, stopCollectCmd, statusCmd, pullCmd, shutdownCmd} {
		addOperatorSocketFlag(c)
		rootCmd.AddCommand(c)
	}
}
