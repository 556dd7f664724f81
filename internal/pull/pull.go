// Package pull implements the Pull Coordinator (component C6): the
// per-file TCP handoff that retrieves a peer's accumulated sample files
// into a timestamped repository on the coordinator host.
package pull

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"doghair/internal/logging"
	"doghair/internal/rpc"
)

// settleDelay is the pause between spawning a file's receiver and telling
// the peer where to connect, giving the receiver time to reach Accept.
const settleDelay = 500 * time.Millisecond

// Coordinator drives the per-file handshake for one pull cycle. A fresh
// Coordinator is used per cycle, scoped to that cycle's destination dir.
type Coordinator struct {
	DestDir  string
	OnResult func(peerID, filename string, ok bool)
}

// NewRepo creates and returns a timestamped doghair_* directory under home.
func NewRepo(home string, now time.Time) (string, error) {
	name := fmt.Sprintf("doghair_%d_%02d_%02d_%02d_%02d_%02d",
		now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second())
	path := filepath.Join(home, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// ReachableHost returns the hostname the coordinator advertises to peers
// in trans_req. DOGHAIR_COORD_HOST overrides auto-detection for
// environments where os.Hostname() is not reachable from peer nodes (e.g.
// inside containers on an overlay network).
func ReachableHost() (string, error) {
	if h := os.Getenv("DOGHAIR_COORD_HOST"); h != "" {
		return h, nil
	}
	return os.Hostname()
}

// Handshake answers one (pull_ack, peerID, filename) announcement. It opens
// an ephemeral listener and spawns the receiver *before* returning, so the
// listener is already accepting by the time trans_req goes out, then
// settles ~500ms and sends trans_req asynchronously so the caller (the
// State Core) never blocks.
func (c *Coordinator) Handshake(send func(*rpc.Envelope) error, peerID, filename string) {
	log := logging.For("pull").WithFields(map[string]any{"peer": peerID, "file": filename})

	lis, err := net.Listen("tcp", ":0")
	if err != nil {
		log.WithError(err).Error("could not open ephemeral listener")
		return
	}
	port := lis.Addr().(*net.TCPAddr).Port

	host, err := ReachableHost()
	if err != nil {
		log.WithError(err).Error("could not determine reachable hostname")
		lis.Close()
		return
	}

	done := make(chan fileResult, 1)
	go receiveFile(lis, c.DestDir, peerID, filename, done)
	go func() {
		r := <-done
		if c.OnResult != nil {
			c.OnResult(r.peerID, r.filename, r.ok)
		}
	}()

	go func() {
		time.Sleep(settleDelay)
		if err := send(&rpc.Envelope{
			Kind:     rpc.KindTransReq,
			Host:     host,
			Port:     port,
			Filename: filename,
		}); err != nil {
			log.WithError(err).Error("failed to send trans_req")
		}
	}()
}
