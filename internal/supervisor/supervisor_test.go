package supervisor

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"doghair/internal/collectorsim"
	"doghair/internal/config"
	"doghair/internal/rpc"
)

func startTestPeer(t *testing.T, node string) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	c := collectorsim.NewCollector(node, t.TempDir())
	srv := rpc.Serve(lis, c.Handle)
	t.Cleanup(srv.Stop)

	return lis.Addr().String()
}

func TestBootSucceedsOnFirstBoot(t *testing.T) {
	addr := startTestPeer(t, "n1")

	conn, err := Boot(context.Background(), "n1", addr, rpc.ModeBoot, config.Load(), 2*time.Second)
	require.NoError(t, err)
	require.NotNil(t, conn)
	defer conn.Close()
}

func TestBootDistinguishesRebootMode(t *testing.T) {
	addr := startTestPeer(t, "n1")

	conn, err := Boot(context.Background(), "n1", addr, rpc.ModeReboot, config.Load(), 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
}

func TestBootFailsAgainstUnreachablePeer(t *testing.T) {
	_, err := Boot(context.Background(), "ghost", "127.0.0.1:1", rpc.ModeBoot, config.Load(), 500*time.Millisecond)
	require.Error(t, err)
}

func TestWatchReportsDeathOnClose(t *testing.T) {
	addr := startTestPeer(t, "n1")
	conn, err := Boot(context.Background(), "n1", addr, rpc.ModeBoot, config.Load(), 2*time.Second)
	require.NoError(t, err)

	died := make(chan string, 1)
	go Watch(conn, "n1", conn.Token, func(string, string) {}, func(node, token string, reason error) {
		died <- node
	})

	conn.Close()

	select {
	case node := <-died:
		require.Equal(t, "n1", node)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not report death after connection close")
	}
}
