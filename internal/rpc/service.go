package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName mirrors what protoc-gen-go-grpc would derive from a
// `service Lifecycle` declaration; there is no .proto file behind it (see
// codec.go), so the ServiceDesc below is written by hand.
const serviceName = "doghair.Lifecycle"

// LifecycleServer is implemented by the collector peer process.
type LifecycleServer interface {
	Control(LifecycleControlServer) error
}

// LifecycleControlServer is the server-side handle on one peer's stream.
type LifecycleControlServer interface {
	Send(*Envelope) error
	Recv() (*Envelope, error)
	grpc.ServerStream
}

type lifecycleControlServer struct {
	grpc.ServerStream
}

func (x *lifecycleControlServer) Send(e *Envelope) error { return x.ServerStream.SendMsg(e) }

func (x *lifecycleControlServer) Recv() (*Envelope, error) {
	m := new(Envelope)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RegisterLifecycleServer wires srv into s under the Lifecycle service name.
func RegisterLifecycleServer(s *grpc.Server, srv LifecycleServer) {
	s.RegisterService(&lifecycleServiceDesc, srv)
}

func lifecycleControlHandler(srv any, stream grpc.ServerStream) error {
	return srv.(LifecycleServer).Control(&lifecycleControlServer{stream})
}

var lifecycleServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LifecycleServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Control",
			Handler:       lifecycleControlHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "doghair/internal/rpc/lifecycle",
}

// LifecycleClient dials a peer's Lifecycle service.
type LifecycleClient interface {
	Control(ctx context.Context, opts ...grpc.CallOption) (LifecycleControlClient, error)
}

type lifecycleClient struct {
	cc grpc.ClientConnInterface
}

// NewLifecycleClient builds a LifecycleClient over an existing connection.
func NewLifecycleClient(cc grpc.ClientConnInterface) LifecycleClient {
	return &lifecycleClient{cc}
}

func (c *lifecycleClient) Control(ctx context.Context, opts ...grpc.CallOption) (LifecycleControlClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &lifecycleServiceDesc.Streams[0], "/"+serviceName+"/Control", opts...)
	if err != nil {
		return nil, err
	}
	return &lifecycleControlClient{stream}, nil
}

// LifecycleControlClient is the coordinator's handle on one peer's stream.
type LifecycleControlClient interface {
	Send(*Envelope) error
	Recv() (*Envelope, error)
	grpc.ClientStream
}

type lifecycleControlClient struct {
	grpc.ClientStream
}

func (x *lifecycleControlClient) Send(e *Envelope) error { return x.ClientStream.SendMsg(e) }

func (x *lifecycleControlClient) Recv() (*Envelope, error) {
	m := new(Envelope)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
