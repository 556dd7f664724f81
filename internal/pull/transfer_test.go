package pull

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiveFileStreamsUntilClose(t *testing.T) {
	dest := t.TempDir()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan fileResult, 1)
	go receiveFile(lis, dest, "peer-1", "a.dat", done)

	conn, err := net.Dial("tcp", lis.Addr().String())
	require.NoError(t, err)
	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)
	conn.Close()

	select {
	case r := <-done:
		assert.True(t, r.ok)
		assert.Equal(t, "peer-1", r.peerID)
	case <-time.After(2 * time.Second):
		t.Fatal("receiveFile did not report completion")
	}

	data, err := os.ReadFile(filepath.Join(dest, "peer-1_a.dat"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestReceiveFileAbandonsOnAcceptTimeout(t *testing.T) {
	dest := t.TempDir()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	orig := acceptTimeout
	acceptTimeout = 50 * time.Millisecond
	defer func() { acceptTimeout = orig }()

	done := make(chan fileResult, 1)
	go receiveFile(lis, dest, "peer-1", "b.dat", done)

	select {
	case r := <-done:
		assert.False(t, r.ok)
	case <-time.After(2 * time.Second):
		t.Fatal("receiveFile did not abandon in time")
	}

	_, err = os.Stat(filepath.Join(dest, "peer-1_b.dat"))
	assert.True(t, os.IsNotExist(err))
}

func TestSafeNameJoinsPeerAndBasename(t *testing.T) {
	assert.Equal(t, "peer-1_sample.dat", safeName("peer-1", "../../etc/sample.dat"))
}
