package core

import (
	"context"
	"fmt"
	"time"

	"doghair/internal/distributor"
	"doghair/internal/logging"
	"doghair/internal/mesh"
	"doghair/internal/pull"
	"doghair/internal/rpc"
)

// inboxCapacity is generous headroom so peer replies never back up behind
// a slow administrative query; the Core still drains strictly in order.
const inboxCapacity = 256

// Coordinator is the State Core (component C7): it owns State and is the
// only thing that ever mutates it, one message at a time.
type Coordinator struct {
	state State
	conns map[string]*peerHandle

	peerAddrs map[string]string
	selfID    string

	flag mesh.FlagFunc
	dist *distributor.Distributor

	shuttingDown bool
	pullCoord    *pull.Coordinator

	inbox chan message
	done  chan struct{}
	fatal func(error)
}

// Options configures a new Coordinator.
type Options struct {
	// PeerAddrs maps node-id -> reachable Lifecycle address (host:port).
	PeerAddrs map[string]string
	// SelfID identifies the coordinator to peers during pull.
	SelfID string
	Flag   mesh.FlagFunc
	Dist   *distributor.Distributor
	// Fatal is invoked on an unrecoverable startup error (mesh probe
	// exhaustion, init_all boot failure/timeout). Defaults to a log call
	// plus os.Exit(1) when nil; tests supply their own.
	Fatal func(error)
}

// New builds a Coordinator. Call Start to begin the startup chain.
func New(opts Options) *Coordinator {
	fatal := opts.Fatal
	if fatal == nil {
		fatal = defaultFatal
	}
	return &Coordinator{
		state:     newState(),
		conns:     make(map[string]*peerHandle),
		peerAddrs: opts.PeerAddrs,
		selfID:    opts.SelfID,
		flag:      opts.Flag,
		dist:      opts.Dist,
		inbox:     make(chan message, inboxCapacity),
		done:      make(chan struct{}),
		fatal:     fatal,
	}
}

// Done is closed once a shutdown command has fully drained and unloaded
// every peer -- the signal that the coordinator process may now stop.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Start launches the serialized command loop and kicks off the
// init -> check_meshed -> distribute_code -> init_all startup chain via
// deferred self-posts.
func (c *Coordinator) Start() {
	go c.run()
	c.after(startupStepDelay, msgCheckMeshed{})
}

func (c *Coordinator) after(d time.Duration, m message) {
	time.AfterFunc(d, func() {
		select {
		case c.inbox <- m:
		case <-c.done:
		}
	})
}

func (c *Coordinator) post(m message) {
	select {
	case c.inbox <- m:
	case <-c.done:
	}
}

func (c *Coordinator) run() {
	for m := range c.inbox {
		c.handle(m)
	}
}

func (c *Coordinator) handle(m message) {
	switch msg := m.(type) {
	case msgCheckMeshed:
		c.onCheckMeshed()
	case msgMeshResult:
		c.onMeshResult(msg)
	case msgDistributeCode:
		c.onDistributeCode()
	case msgInitAllStep:
		c.handleInitAll(nil)
	case msgInitAllResult:
		c.onInitAllResult(msg)
	case cmdStartCollect:
		c.handleStartCollect(msg.reply)
	case cmdStopCollect:
		c.handleStopCollect(msg.reply)
	case cmdStatus:
		c.handleStatus(msg.reply)
	case cmdPull:
		c.handlePull(msg.reply)
	case cmdShutdown:
		c.handleShutdown(msg.reply)
	case msgPeerDied:
		c.onPeerDied(msg)
	case msgRebootResult:
		c.onRebootResult(msg)
	case msgPullAck:
		c.onPullAck(msg)
	case msgRetrieved:
		c.onRetrieved(msg)
	default:
		entry().Warnf("unknown message %T, ignored", m)
	}
}

func entry() *logging.Entry { return logging.For("core") }

func defaultFatal(err error) {
	logging.For("core").Fatal(err)
}

// --- startup chain -----------------------------------------------------

func (c *Coordinator) onCheckMeshed() {
	flag := c.flag
	if flag == nil {
		flag = mesh.EnvFlag
	}
	go func() {
		err := mesh.Probe(flag)
		c.post(msgMeshResult{err: err})
	}()
}

func (c *Coordinator) onMeshResult(msg msgMeshResult) {
	if msg.err != nil {
		c.fatal(msg.err)
		return
	}
	c.after(startupStepDelay, msgDistributeCode{})
}

func (c *Coordinator) onDistributeCode() {
	if c.dist == nil {
		c.after(startupStepDelay, msgInitAllStep{})
		return
	}
	addrs := make([]string, 0, len(c.peerAddrs))
	for _, a := range c.peerAddrs {
		addrs = append(addrs, a)
	}
	go func() {
		errs := c.dist.Distribute(context.Background(), addrs)
		for _, err := range errs {
			entry().WithError(err).Warn("code distribution error")
		}
		c.after(startupStepDelay, msgInitAllStep{})
	}()
}

// peerSend exposes the send side of a live peer's control stream to the
// Pull Coordinator's Handshake, without leaking *rpc.PeerConn out of core.
func (c *Coordinator) peerSend(node string) func(*rpc.Envelope) error {
	return func(e *rpc.Envelope) error {
		ph, ok := c.conns[node]
		if !ok {
			return fmt.Errorf("no live connection to %s", node)
		}
		return ph.conn.Send(e)
	}
}
