package rpc

import (
	"context"
	"net"

	"github.com/google/uuid"
	"google.golang.org/grpc"
)

// PeerConn is the coordinator's persistent handle on one peer: a dialed
// gRPC connection plus the single Control stream carrying every lifecycle
// message for that peer's entire lifetime. Token is the monitor-token the
// Liveness Supervisor uses to recognize this specific instance's death --
// here, simply a fresh identity minted per successful connect.
type PeerConn struct {
	NodeID string
	Token  string

	conn   *grpc.ClientConn
	stream LifecycleControlClient
}

// Connect dials addr (the peer's Lifecycle listener) and opens its Control
// stream. grpc.WithInsecure is deliberate: this protocol carries no secrets
// and channel encryption is out of scope.
func Connect(ctx context.Context, nodeID, addr string) (*PeerConn, error) {
	cc, err := grpc.DialContext(ctx, addr, grpc.WithInsecure(), grpc.WithBlock())
	if err != nil {
		return nil, err
	}
	client := NewLifecycleClient(cc)
	// The Control stream must outlive ctx, which is typically a short dial
	// timeout cancelled right after Connect returns -- use a fresh
	// long-lived context for the stream itself; Close tears it down.
	stream, err := client.Control(context.Background())
	if err != nil {
		cc.Close()
		return nil, err
	}
	return &PeerConn{
		NodeID: nodeID,
		Token:  uuid.NewString(),
		conn:   cc,
		stream: stream,
	}, nil
}

// Send delivers one envelope to the peer.
func (p *PeerConn) Send(e *Envelope) error { return p.stream.Send(e) }

// Recv blocks for the peer's next envelope. A returned error (including
// io.EOF) is the synthesized death notification described in the design
// notes: the stream is gone, so the peer is presumed dead.
func (p *PeerConn) Recv() (*Envelope, error) { return p.stream.Recv() }

// Close tears down the connection to this peer.
func (p *PeerConn) Close() error { return p.conn.Close() }

// ServeFunc handles one accepted peer Control stream.
type ServeFunc func(LifecycleControlServer) error

type funcServer struct{ fn ServeFunc }

func (f funcServer) Control(stream LifecycleControlServer) error { return f.fn(stream) }

// Serve starts a Lifecycle gRPC server on lis, dispatching every accepted
// stream to fn. It does not block; call Stop on the returned server (or
// close the listener) to tear it down.
func Serve(lis net.Listener, fn ServeFunc) *grpc.Server {
	s := grpc.NewServer()
	RegisterLifecycleServer(s, funcServer{fn})
	go s.Serve(lis)
	return s
}
