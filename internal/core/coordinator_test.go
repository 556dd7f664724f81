package core

import (
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"doghair/internal/collectorsim"
	"doghair/internal/rpc"
)

// startTestPeer runs a real collectorsim.Collector on a loopback ephemeral
// port and returns its address (the server is stopped via t.Cleanup), so core tests exercise
// the actual Lifecycle wire protocol rather than a mock.
func startTestPeer(t *testing.T, node string) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	c := collectorsim.NewCollector(node, t.TempDir())
	srv := rpc.Serve(lis, c.Handle)
	t.Cleanup(srv.Stop)

	return lis.Addr().String()
}

// startKillablePeer is startTestPeer plus the ability to simulate a crash
// (kill) and a process restart on the same address (revive), so tests can
// drive a live peer through the Liveness Supervisor's death/reboot path
// instead of only exercising Boot/Watch in isolation.
func startKillablePeer(t *testing.T, node string) (addr string, kill func(), revive func() *collectorsim.Collector) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr = lis.Addr().String()

	current := rpc.Serve(lis, collectorsim.NewCollector(node, t.TempDir()).Handle)
	t.Cleanup(func() { current.Stop() })

	kill = func() { current.Stop() }
	revive = func() *collectorsim.Collector {
		newLis, err := net.Listen("tcp", addr)
		require.NoError(t, err)
		nc := collectorsim.NewCollector(node, t.TempDir())
		current = rpc.Serve(newLis, nc.Handle)
		return nc
	}
	return addr, kill, revive
}

func waitForRoster(t *testing.T, c *Coordinator, n int) {
	t.Helper()
	waitForRosterWithin(t, c, n, 5*time.Second)
}

func waitForRosterWithin(t *testing.T, c *Coordinator, n int, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		status, err := c.Status()
		require.NoError(t, err)
		if strings.HasPrefix(status, "roster ("+itoa(n)+")") {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("roster never reached size %d", n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func newTestCoordinator(t *testing.T, peers map[string]string) *Coordinator {
	t.Helper()
	c := New(Options{
		PeerAddrs: peers,
		SelfID:    "test-coordinator",
		Flag:      func() (bool, error) { return true, nil },
		Fatal:     func(err error) { t.Errorf("coordinator reported fatal: %v", err) },
	})
	c.Start()
	return c
}

func TestHappyPathStartStopCollect(t *testing.T) {
	addr1 := startTestPeer(t, "n1")
	addr2 := startTestPeer(t, "n2")

	c := newTestCoordinator(t, map[string]string{"n1": addr1, "n2": addr2})
	waitForRoster(t, c, 2)

	status, err := c.Status()
	require.NoError(t, err)
	require.Contains(t, status, "collecting: false")

	result, err := c.StartCollect()
	require.NoError(t, err)
	require.Contains(t, result, "started")

	status, err = c.Status()
	require.NoError(t, err)
	require.Contains(t, status, "collecting: true")

	result, err = c.StopCollect()
	require.NoError(t, err)
	require.Contains(t, result, "stopped")

	status, err = c.Status()
	require.NoError(t, err)
	require.Contains(t, status, "collecting: false")
}

func TestStartCollectRefusedWithNoCollectors(t *testing.T) {
	c := newTestCoordinator(t, nil)
	waitForRoster(t, c, 0)

	result, err := c.StartCollect()
	require.NoError(t, err)
	require.Contains(t, result, "no collectors")
}

func TestStopCollectRefusedWhenAlreadyStopped(t *testing.T) {
	addr := startTestPeer(t, "n1")
	c := newTestCoordinator(t, map[string]string{"n1": addr})
	waitForRoster(t, c, 1)

	result, err := c.StopCollect()
	require.NoError(t, err)
	require.Contains(t, result, "already stopped")
}

func TestRepeatedStartCollectIsIdempotent(t *testing.T) {
	addr := startTestPeer(t, "n1")
	c := newTestCoordinator(t, map[string]string{"n1": addr})
	waitForRoster(t, c, 1)

	first, err := c.StartCollect()
	require.NoError(t, err)
	require.Contains(t, first, "started")

	second, err := c.StartCollect()
	require.NoError(t, err)
	require.Contains(t, second, "collecting is going")
}

func TestPullRefusedWhileCollecting(t *testing.T) {
	addr := startTestPeer(t, "n1")
	c := newTestCoordinator(t, map[string]string{"n1": addr})
	waitForRoster(t, c, 1)

	_, err := c.StartCollect()
	require.NoError(t, err)

	result, err := c.Pull()
	require.NoError(t, err)
	require.Contains(t, result, "working now")
}

func TestPullRetrievesFilesAfterCollection(t *testing.T) {
	t.Setenv("DOGHAIR_INTERVAL_MS", "20")

	addr := startTestPeer(t, "n1")
	c := newTestCoordinator(t, map[string]string{"n1": addr})
	waitForRoster(t, c, 1)

	_, err := c.StartCollect()
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)

	_, err = c.StopCollect()
	require.NoError(t, err)

	result, err := c.Pull()
	require.NoError(t, err)
	require.Contains(t, result, "pull started")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, err := c.Status()
		require.NoError(t, err)
		if strings.Contains(status, "1/1 transferred") {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("pull cycle never completed")
}

func TestPeerCrashRebootsAndResumesCollectionWithFreshToken(t *testing.T) {
	t.Setenv("DOGHAIR_INTERVAL_MS", "20")

	addr, kill, revive := startKillablePeer(t, "n1")
	c := newTestCoordinator(t, map[string]string{"n1": addr})
	waitForRoster(t, c, 1)

	_, err := c.StartCollect()
	require.NoError(t, err)

	oldToken := c.state.Collectors["n1"].Token
	require.NotEmpty(t, oldToken)

	kill()
	newCollector := revive()
	waitForRosterWithin(t, c, 1, 10*time.Second)

	newToken := c.state.Collectors["n1"].Token
	require.NotEmpty(t, newToken)
	require.NotEqual(t, oldToken, newToken, "rebooted peer should get a fresh monitor-token")

	status, err := c.Status()
	require.NoError(t, err)
	require.Contains(t, status, "collecting: true")

	// The rebooted collector starts with collecting=false; samples only
	// appear if the coordinator re-sent start_collect after readmission.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		entries, _ := os.ReadDir(newCollector.SampleDir)
		if len(entries) > 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("rebooted peer never resumed collecting")
}

func TestPeerCrashWithoutRebootShrinksRosterByOne(t *testing.T) {
	addr1, kill1, _ := startKillablePeer(t, "n1")
	addr2 := startTestPeer(t, "n2")

	c := newTestCoordinator(t, map[string]string{"n1": addr1, "n2": addr2})
	waitForRoster(t, c, 2)

	_, err := c.StartCollect()
	require.NoError(t, err)

	kill1()

	deadline := time.Now().Add(7 * time.Second)
	for time.Now().Before(deadline) {
		status, statusErr := c.Status()
		require.NoError(t, statusErr)
		if strings.HasPrefix(status, "roster (1)") {
			require.Contains(t, status, "n2")
			require.Contains(t, status, "collecting: true")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatal("roster never shrank to 1 after unrecoverable peer crash")
}

func TestShutdownClosesDone(t *testing.T) {
	addr := startTestPeer(t, "n1")
	c := newTestCoordinator(t, map[string]string{"n1": addr})
	waitForRoster(t, c, 1)

	_, err := c.Shutdown()
	require.NoError(t, err)

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator did not finish shutting down")
	}
}
