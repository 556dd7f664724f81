package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"doghair/internal/admin"
	"doghair/internal/config"
	"doghair/internal/core"
	"doghair/internal/distributor"
	"doghair/internal/logging"
)

var (
	coordPeers      []string
	coordSelfID     string
	coordSocket     string
	coordImage      string
	coordDockerPort string
)

var coordinatorCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Start the cluster sampling coordinator",
	Run:   runCoordinator,
}

func init() {
	rootCmd.AddCommand(coordinatorCmd)
	coordinatorCmd.Flags().StringSliceVar(&coordPeers, "peer", nil, "peer as node_id=host:port, repeatable")
	coordinatorCmd.Flags().StringVar(&coordSelfID, "self", "coordinator", "identity this coordinator advertises to peers")
	coordinatorCmd.Flags().StringVar(&coordSocket, "socket", "", "admin UDS path (defaults to config.SocketPath)")
	coordinatorCmd.Flags().StringVar(&coordImage, "image", "doghair-collector:latest", "collector image to distribute")
	coordinatorCmd.Flags().StringVar(&coordDockerPort, "docker-port", "2375", "remote Docker daemon port on each peer")
}

func runCoordinator(cmd *cobra.Command, args []string) {
	log := logging.For("cmd")

	peerAddrs, err := parsePeers(coordPeers)
	if err != nil {
		log.WithError(err).Fatal("invalid --peer")
	}

	socket := coordSocket
	if socket == "" {
		socket = config.SocketPath()
	}
	if err := os.MkdirAll(dirOf(socket), 0o755); err != nil {
		log.WithError(err).Fatal("could not create admin socket directory")
	}

	dist := &distributor.Distributor{
		Image: coordImage,
		DockerHost: func(peerAddr string) string {
			return fmt.Sprintf("tcp://%s:%s", hostOnly(peerAddr), coordDockerPort)
		},
	}

	peerList := make([]string, 0, len(peerAddrs))
	for _, a := range peerAddrs {
		peerList = append(peerList, a)
	}

	coordinator := core.New(core.Options{
		PeerAddrs: peerAddrs,
		SelfID:    coordSelfID,
		Dist:      dist,
		// A fatal startup error unloads the collector image from every
		// peer, best-effort, before the process exits.
		Fatal: func(err error) {
			dist.Unload(context.Background(), peerList)
			log.WithError(err).Fatal("coordinator aborted")
		},
	})
	coordinator.Start()

	dispatch := func(method string) (string, error) {
		switch method {
		case admin.MethodStartCollect:
			return coordinator.StartCollect()
		case admin.MethodStopCollect:
			return coordinator.StopCollect()
		case admin.MethodStatus:
			return coordinator.Status()
		case admin.MethodPull:
			return coordinator.Pull()
		case admin.MethodShutdown:
			return coordinator.Shutdown()
		default:
			return "", fmt.Errorf("unknown method %q", method)
		}
	}

	adminCtx, cancelAdmin := context.WithCancel(context.Background())
	server := admin.NewServer(socket, dispatch)
	go func() {
		if err := server.Start(adminCtx); err != nil {
			log.WithError(err).Error("admin channel stopped")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		log.Info("signal received, shutting down")
		_, _ = coordinator.Shutdown()
		<-coordinator.Done()
	case <-coordinator.Done():
		log.Info("coordinator shut down")
	}
	cancelAdmin()
}

func parsePeers(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, p := range raw {
		parts := strings.SplitN(p, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("expected node_id=host:port, got %q", p)
		}
		out[parts[0]] = parts[1]
	}
	return out, nil
}

func hostOnly(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[:i]
	}
	return addr
}

func dirOf(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i]
	}
	return "."
}
