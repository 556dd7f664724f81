package admin

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, dispatch Dispatch) (*Client, func()) {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "control.sock")
	server := NewServer(socket, dispatch)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)

	client := NewClient(socket, 2*time.Second)
	return client, func() {
		cancel()
		<-errCh
	}
}

func TestClientServerRoundTrip(t *testing.T) {
	client, stop := startTestServer(t, func(method string) (string, error) {
		return "ok:" + method, nil
	})
	defer stop()

	result, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok:"+MethodStatus, result)
}

func TestClientPropagatesDispatchError(t *testing.T) {
	client, stop := startTestServer(t, func(method string) (string, error) {
		return "", errors.New("collecting is going")
	})
	defer stop()

	_, err := client.StartCollect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collecting is going")
}

func TestClientHandlesConcurrentCalls(t *testing.T) {
	client, stop := startTestServer(t, func(method string) (string, error) {
		return method, nil
	})
	defer stop()

	errCh := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, err := client.Pull(context.Background())
			errCh <- err
		}()
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, <-errCh)
	}
}

func TestClientConnectionRefused(t *testing.T) {
	client := NewClient("/tmp/doghair-nonexistent.sock", time.Second)
	_, err := client.Status(context.Background())
	require.Error(t, err)
}
