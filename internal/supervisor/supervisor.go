// Package supervisor implements the Liveness Supervisor (component C5):
// the boot/reboot primitive shared by initial peer admission and
// crash-rebirth, and the connection watcher that synthesizes a death
// notification whenever a peer's control stream goes away.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"doghair/internal/config"
	"doghair/internal/logging"
	"doghair/internal/rpc"
)

// Boot dials a peer's Lifecycle endpoint, sends start_link, and waits up to
// timeout for the matching local_init/local_reboot reply. It is used both
// for initial admission (mode=boot) and for crash rebirth (mode=reboot).
func Boot(ctx context.Context, nodeID, addr string, mode rpc.Mode, cfg config.Config, timeout time.Duration) (*rpc.PeerConn, error) {
	log := logging.For("supervisor").WithFields(map[string]any{"node": nodeID, "mode": mode})

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := rpc.Connect(dialCtx, nodeID, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", nodeID, err)
	}

	if err := conn.Send(&rpc.Envelope{
		Kind:       rpc.KindStartLink,
		Mode:       mode,
		IntervalMS: cfg.Interval.Milliseconds(),
		TopN:       cfg.TopN,
		SMP:        cfg.SMP,
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("start_link %s: %w", nodeID, err)
	}

	wantKind := rpc.KindLocalInit
	if mode == rpc.ModeReboot {
		wantKind = rpc.KindLocalReboot
	}

	replyCh := make(chan *rpc.Envelope, 1)
	errCh := make(chan error, 1)
	go func() {
		env, err := conn.Recv()
		if err != nil {
			errCh <- err
			return
		}
		replyCh <- env
	}()

	select {
	case env := <-replyCh:
		if env.Kind != wantKind || !env.OK {
			conn.Close()
			return nil, fmt.Errorf("%s replied not-ok to %s", nodeID, wantKind)
		}
		log.Info("peer acknowledged")
		return conn, nil
	case err := <-errCh:
		conn.Close()
		return nil, fmt.Errorf("%s: %w", nodeID, err)
	case <-time.After(timeout):
		conn.Close()
		return nil, fmt.Errorf("%s: timed out waiting for %s", nodeID, wantKind)
	}
}

// Watch runs for the lifetime of conn, forwarding every pull_ack envelope
// the peer sends to onPullAck (other kinds are logged and dropped), and
// calling onDied exactly once when Recv finally
// returns an error -- the synthesized death notification.
func Watch(conn *rpc.PeerConn, nodeID, token string, onPullAck func(node, filename string), onDied func(node, token string, reason error)) {
	log := logging.For("supervisor").WithField("node", nodeID)
	for {
		env, err := conn.Recv()
		if err != nil {
			log.WithError(err).Warn("peer connection lost")
			onDied(nodeID, token, err)
			return
		}
		switch env.Kind {
		case rpc.KindPullAck:
			onPullAck(nodeID, env.Filename)
		default:
			log.WithField("kind", env.Kind).Debug("unexpected envelope on lifecycle stream")
		}
	}
}
