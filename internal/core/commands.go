package core

import (
	"context"
	"fmt"
	"time"

	"doghair/internal/config"
	"doghair/internal/pull"
	"doghair/internal/roster"
	"doghair/internal/rpc"
	"doghair/internal/supervisor"
)

// reply sends a single line to an operator command's reply channel, if the
// caller supplied one, without ever blocking the Core on a slow reader.
func reply(ch chan<- string, format string, args ...any) {
	if ch == nil {
		return
	}
	select {
	case ch <- fmt.Sprintf(format, args...):
	default:
	}
}

// --- init_all ------------------------------------------------------------

// handleInitAll applies the init_all guard (collectors = ∅) and, if it
// holds, boots every configured peer, one after another, in a single
// off-Core goroutine. Boot results are collected there and posted back as
// msgInitAllResult.
func (c *Coordinator) handleInitAll(replyCh chan<- string) {
	if len(c.state.Collectors) != 0 {
		entry().Warn("init_all refused: collectors already populated")
		reply(replyCh, "collectors already initialized")
		return
	}

	cfg := config.Load()
	go func() {
		results := make([]bootOutcome, 0, len(c.peerAddrs))
		for node, addr := range c.peerAddrs {
			ctx, cancel := context.WithTimeout(context.Background(), peerBootTimeout)
			conn, err := supervisor.Boot(ctx, node, addr, rpc.ModeBoot, cfg, peerBootTimeout)
			cancel()
			var ph *peerHandle
			if err == nil {
				ph = &peerHandle{addr: addr, conn: conn}
			}
			results = append(results, bootOutcome{node: node, conn: ph, err: err})
		}
		c.post(msgInitAllResult{results: results})
	}()

	reply(replyCh, "booting %d peers", len(c.peerAddrs))
}

// onInitAllResult installs every peer that booted successfully and starts
// its supervisor watch loop. Unlike a later crash/reboot, a failed or
// timed-out *initial* boot is fatal for the whole init phase -- the
// operator must restart the coordinator, not run with a partial roster.
func (c *Coordinator) onInitAllResult(msg msgInitAllResult) {
	for _, r := range msg.results {
		if r.err != nil {
			entry().WithField("node", r.node).WithError(r.err).Error("init_all: peer failed to boot")
			for _, ok := range msg.results {
				if ok.err == nil {
					ok.conn.conn.Close()
				}
			}
			c.fatal(fmt.Errorf("init_all: peer %s failed to boot: %w", r.node, r.err))
			return
		}
	}
	for _, r := range msg.results {
		c.admit(r.node, r.conn)
	}
	entry().WithField("roster_size", len(c.state.Collectors)).Info("init_all complete")
}

// admit installs a freshly booted/rebooted peer into both the roster and
// the live-connection table, and launches its supervisor watcher.
func (c *Coordinator) admit(node string, ph *peerHandle) {
	c.conns[node] = ph
	c.state.Collectors.Put(roster.Handle{NodeID: node, Token: ph.conn.Token})

	go supervisor.Watch(ph.conn, node, ph.conn.Token,
		func(node, filename string) { c.post(msgPullAck{node: node, filename: filename}) },
		func(node, token string, reason error) { c.post(msgPeerDied{node: node, token: token, reason: reason}) },
	)
}

// --- start_collect / stop_collect -----------------------------------------

func (c *Coordinator) handleStartCollect(replyCh chan<- string) {
	if len(c.state.Collectors) == 0 {
		entry().Warn("start_collect refused: there are no collectors at all")
		reply(replyCh, "there are no collectors at all")
		return
	}
	if c.state.Collecting {
		entry().Warn("start_collect refused: collecting is going")
		reply(replyCh, "collecting is going")
		return
	}

	c.state.Collecting = true
	c.state.StartClctTime = now()
	c.state.EndClctTime = undefined

	c.fanOut(rpc.KindStartCollect, 0)
	reply(replyCh, "collection started")
}

func (c *Coordinator) handleStopCollect(replyCh chan<- string) {
	if len(c.state.Collectors) == 0 {
		entry().Warn("stop_collect refused: there are no collectors at all")
		reply(replyCh, "there are no collectors at all")
		return
	}
	if !c.state.Collecting {
		entry().Warn("stop_collect refused: collecting is already stopped")
		reply(replyCh, "collecting is already stopped")
		return
	}

	c.state.Collecting = false
	c.state.EndClctTime = now()

	c.fanOut(rpc.KindStopCollect, stopStagger)
	reply(replyCh, "collection stopped")
}

// fanOut sends kind to every live peer, waiting stagger between sends to
// avoid remote races when many peers are told the same thing at once. It
// runs off-Core since the stagger can take hundreds of milliseconds.
func (c *Coordinator) fanOut(kind rpc.Kind, stagger time.Duration) {
	nodes := c.state.Collectors.Nodes()
	go func() {
		for i, node := range nodes {
			if i > 0 && stagger > 0 {
				time.Sleep(stagger)
			}
			send := c.peerSend(node)
			if err := send(&rpc.Envelope{Kind: kind}); err != nil {
				entry().WithField("node", node).WithError(err).Warn("fan-out send failed")
			}
		}
	}()
}

// --- status ----------------------------------------------------------------

func (c *Coordinator) handleStatus(replyCh chan<- string) {
	reply(replyCh, "%s", c.report())
}

// --- pull --------------------------------------------------------------

func (c *Coordinator) handlePull(replyCh chan<- string) {
	if c.state.Collecting {
		entry().Warn("pull refused: collector is working now")
		reply(replyCh, "collector is working now")
		return
	}
	if len(c.state.Collectors) == 0 {
		entry().Warn("pull refused: there are no collectors at all")
		reply(replyCh, "there are no collectors at all")
		return
	}

	home := config.HomeDir()
	repo, err := pull.NewRepo(home, time.Now())
	if err != nil {
		entry().WithError(err).Error("pull: could not create repository directory")
		reply(replyCh, "pull failed: %v", err)
		return
	}

	c.state.Repo = repo
	c.state.Transferred = 0
	c.state.PullTarget = len(c.state.Collectors)

	pc := &pull.Coordinator{
		DestDir: repo,
		OnResult: func(node, filename string, ok bool) {
			c.post(msgRetrieved{node: node, filename: filename, ok: ok})
		},
	}
	c.pullCoord = pc

	for _, node := range c.state.Collectors.Nodes() {
		send := c.peerSend(node)
		if err := send(&rpc.Envelope{Kind: rpc.KindPull, CoordAddr: c.selfID}); err != nil {
			entry().WithField("node", node).WithError(err).Warn("pull: failed to send pull")
		}
	}

	reply(replyCh, "pull started: %s", repo)
}

// onPullAck answers one peer's file announcement with the TCP handshake --
// the per-file receiver is already accepting before trans_req goes out.
func (c *Coordinator) onPullAck(msg msgPullAck) {
	if c.pullCoord == nil {
		entry().WithField("node", msg.node).Warn("pull_ack received with no active pull cycle, ignored")
		return
	}
	c.pullCoord.Handshake(c.peerSend(msg.node), msg.node, msg.filename)
}

// onRetrieved increments transferred and declares the cycle complete once
// it reaches the snapshot taken when the pull was issued.
func (c *Coordinator) onRetrieved(msg msgRetrieved) {
	if !msg.ok {
		entry().WithFields(map[string]any{"node": msg.node, "file": msg.filename}).Warn("pull: file transfer failed, skipped")
		return
	}
	c.state.Transferred++
	entry().WithFields(map[string]any{"node": msg.node, "file": msg.filename}).Info("file retrieved")
	if c.state.Transferred == c.state.PullTarget {
		entry().Info("data on all nodes transfered")
	}
}

// --- shutdown ------------------------------------------------------------

func (c *Coordinator) handleShutdown(replyCh chan<- string) {
	if c.shuttingDown {
		reply(replyCh, "shutdown already in progress")
		return
	}
	c.shuttingDown = true

	nodes := c.state.Collectors.Nodes()
	addrs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if ph, ok := c.conns[n]; ok {
			addrs = append(addrs, ph.addr)
		}
	}

	c.state.Collectors.Clear()

	go func() {
		for i, node := range nodes {
			if i > 0 {
				time.Sleep(quitStagger)
			}
			if ph, ok := c.conns[node]; ok {
				_ = ph.conn.Send(&rpc.Envelope{Kind: rpc.KindQuit})
			}
		}

		time.Sleep(shutdownDrain)

		for _, node := range nodes {
			if ph, ok := c.conns[node]; ok {
				ph.conn.Close()
			}
		}

		if c.dist != nil {
			for _, err := range c.dist.Unload(context.Background(), addrs) {
				entry().WithError(err).Warn("shutdown: image unload error")
			}
		}

		close(c.done)
	}()

	reply(replyCh, "shutdown in progress")
}

// --- Liveness Supervisor reactions ----------------------------------------

// onPeerDied is the synthesized death notification: locate the roster entry
// by monitor-token, remove it tentatively, and request a reboot. If the
// peer never rejoins, the roster simply shrinks -- the declared policy.
func (c *Coordinator) onPeerDied(msg msgPeerDied) {
	handle, ok := c.state.Collectors.FindByToken(msg.token)
	if !ok {
		entry().WithField("node", msg.node).Debug("death notice for unknown token, ignored")
		return
	}
	c.state.Collectors.Remove(handle.NodeID)
	delete(c.conns, handle.NodeID)
	entry().WithField("node", handle.NodeID).WithError(msg.reason).Warn("peer died, requesting reboot")

	addr, ok := c.peerAddrs[handle.NodeID]
	if !ok {
		entry().WithField("node", handle.NodeID).Warn("no known address for dead peer, it goes home")
		return
	}

	cfg := config.Load()
	node := handle.NodeID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), peerRebootTimeout)
		conn, err := supervisor.Boot(ctx, node, addr, rpc.ModeReboot, cfg, peerRebootTimeout)
		cancel()
		var ph *peerHandle
		if err == nil {
			ph = &peerHandle{addr: addr, conn: conn}
		}
		c.post(msgRebootResult{node: node, conn: ph, err: err})
	}()
}

// onRebootResult applies the reboot-ack guard: only after a successful ok
// does the peer get re-admitted, and only then -- if
// collecting is still true -- is it told to rejoin the active run. A
// blind sleep racing the reboot reply is deliberately not used here.
func (c *Coordinator) onRebootResult(msg msgRebootResult) {
	if msg.err != nil {
		entry().WithField("node", msg.node).WithError(msg.err).Warn("reboot failed or timed out, collector goes home")
		return
	}

	c.admit(msg.node, msg.conn)
	entry().WithField("node", msg.node).Info("collector rebirth")

	if !c.state.Collecting {
		return
	}

	node := msg.node
	go func() {
		time.Sleep(rebirthSettleDelay)
		send := c.peerSend(node)
		if err := send(&rpc.Envelope{Kind: rpc.KindStartCollect}); err != nil {
			entry().WithField("node", node).WithError(err).Warn("failed to rejoin rebooted peer to active run")
		}
	}()
}

func now() string {
	return time.Now().Format(time.RFC3339)
}
