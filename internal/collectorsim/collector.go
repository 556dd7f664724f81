// Package collectorsim is a reference implementation of the peer side of
// the Lifecycle protocol -- the per-node "collector" worker that the State
// Core drives through init/collect/pause/pull/terminate. Its sampling
// cadence and file format are explicitly out of scope; this package exists
// so the coordinator has a real peer to exercise, grounded in the
// teacher's ticker-driven polling loops (cpuwatch.go/memwatch.go).
package collectorsim

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"doghair/internal/config"
	"doghair/internal/logging"
	"doghair/internal/rpc"
)

// Collector answers one coordinator's Lifecycle control stream: it applies
// start_link/start_collect/stop_collect/pull/quit, and appends timestamped
// sample lines to one file in SampleDir while collecting.
type Collector struct {
	NodeID    string
	SampleDir string

	mu        sync.Mutex
	collecting bool
	stopCh     chan struct{}
}

// NewCollector builds a Collector that writes samples under sampleDir.
func NewCollector(nodeID, sampleDir string) *Collector {
	return &Collector{NodeID: nodeID, SampleDir: sampleDir}
}

// Serve listens on addr and answers every incoming Lifecycle stream with
// Handle. It blocks; run it in its own goroutine.
func (c *Collector) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	rpc.Serve(lis, c.Handle)
	select {}
}

// Handle drives one coordinator connection end to end: a single stream
// carries start_link, then every subsequent lifecycle message, for as
// long as this collector instance lives.
func (c *Collector) Handle(stream rpc.LifecycleControlServer) error {
	log := logging.For("collectorsim").WithField("node", c.NodeID)

	for {
		env, err := stream.Recv()
		if err != nil {
			return err
		}

		switch env.Kind {
		case rpc.KindStartLink:
			log.WithField("mode", env.Mode).Info("start_link received")
			kind := rpc.KindLocalInit
			if env.Mode == rpc.ModeReboot {
				kind = rpc.KindLocalReboot
			}
			if err := stream.Send(&rpc.Envelope{Kind: kind, Node: c.NodeID, OK: true}); err != nil {
				return err
			}

		case rpc.KindStartCollect:
			c.startCollecting()
			log.Info("collection started")

		case rpc.KindStopCollect:
			c.stopCollecting()
			log.Info("collection stopped")

		case rpc.KindPull:
			for _, filename := range c.pendingFiles() {
				if err := stream.Send(&rpc.Envelope{Kind: rpc.KindPullAck, PeerID: c.NodeID, Filename: filename}); err != nil {
					return err
				}
			}

		case rpc.KindTransReq:
			go c.upload(env.Host, env.Port, env.Filename)

		case rpc.KindQuit:
			log.Info("quit received, closing stream")
			return nil

		default:
			log.WithField("kind", env.Kind).Debug("unhandled envelope kind")
		}
	}
}

func (c *Collector) startCollecting() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.collecting {
		return
	}
	c.collecting = true
	c.stopCh = make(chan struct{})
	go c.sampleLoop(c.stopCh)
}

func (c *Collector) stopCollecting() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.collecting {
		return
	}
	c.collecting = false
	close(c.stopCh)
}

// sampleLoop appends one sample line per configured interval until stopped.
// Sample content and cadence are deliberately synthetic here -- this is a
// reference peer, not a real metrics collector.
func (c *Collector) sampleLoop(stop <-chan struct{}) {
	cfg := config.Load()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case t := <-ticker.C:
			c.writeSample(t)
		}
	}
}

func (c *Collector) writeSample(t time.Time) {
	log := logging.For("collectorsim").WithField("node", c.NodeID)
	path := filepath.Join(c.SampleDir, "samples.dat")
	if err := os.MkdirAll(c.SampleDir, 0o755); err != nil {
		log.WithError(err).Warn("could not create sample directory")
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.WithError(err).Warn("could not open sample file")
		return
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "sample from %s at %s\n", c.NodeID, t); err != nil {
		log.WithError(err).Warn("could not write sample file")
	}
}

func (c *Collector) pendingFiles() []string {
	entries, err := os.ReadDir(c.SampleDir)
	if err != nil {
		return nil
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	return files
}

// upload streams one sample file to the coordinator's ephemeral listener
// and deletes it locally once fully sent.
func (c *Collector) upload(host string, port int, filename string) {
	log := logging.For("collectorsim").WithFields(map[string]any{"node": c.NodeID, "file": filename})

	path := filepath.Join(c.SampleDir, filename)
	f, err := os.Open(path)
	if err != nil {
		log.WithError(err).Warn("sample file vanished before upload")
		return
	}
	defer f.Close()

	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		log.WithError(err).Warn("could not reach coordinator for transfer")
		return
	}
	defer conn.Close()

	if _, err := io.Copy(conn, f); err != nil {
		log.WithError(err).Warn("transfer failed")
		return
	}
	os.Remove(path)
}
