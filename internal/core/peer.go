package core

import "doghair/internal/rpc"

// peerHandle bundles a live peer's control connection with the address it
// was reached at, so the Liveness Supervisor can reboot it in place.
type peerHandle struct {
	addr string
	conn *rpc.PeerConn
}
