package pull

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doghair/internal/rpc"
)

func TestNewRepoCreatesTimestampedDir(t *testing.T) {
	home := t.TempDir()
	now := time.Date(2026, time.March, 4, 9, 5, 2, 0, time.UTC)

	path, err := NewRepo(home, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "doghair_2026_03_04_09_05_02"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestReachableHostHonorsOverride(t *testing.T) {
	t.Setenv("DOGHAIR_COORD_HOST", "coordinator.example")
	host, err := ReachableHost()
	require.NoError(t, err)
	assert.Equal(t, "coordinator.example", host)
}

func TestHandshakeListensBeforeTransReq(t *testing.T) {
	dest := t.TempDir()

	var sent *rpc.Envelope
	done := make(chan struct{})

	c := &Coordinator{
		DestDir: dest,
		OnResult: func(peerID, filename string, ok bool) {
			assert.Equal(t, "peer-1", peerID)
			assert.Equal(t, "sample.dat", filename)
			assert.True(t, ok)
			close(done)
		},
	}

	c.Handshake(func(e *rpc.Envelope) error {
		sent = e
		go func() {
			conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(e.Port)))
			require.NoError(t, err)
			defer conn.Close()
			_, err = conn.Write([]byte("sampled bytes"))
			require.NoError(t, err)
		}()
		return nil
	}, "peer-1", "sample.dat")

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("transfer did not complete in time")
	}

	require.NotNil(t, sent)
	assert.Equal(t, rpc.KindTransReq, sent.Kind)

	data, err := os.ReadFile(filepath.Join(dest, "peer-1_sample.dat"))
	require.NoError(t, err)
	assert.Equal(t, "sampled bytes", string(data))
}
