// Package rpc is the coordinator<->collector control-plane wire protocol.
//
// It is a single bidirectional gRPC stream per peer (the "persistent
// connection carrying length-prefixed request/reply frames" called for
// in the design notes): the coordinator dials the peer's Lifecycle
// service once, and both sides Send/Recv tagged Envelope messages over
// that one stream for the lifetime of the peer. File transfer is
// deliberately NOT part of this protocol -- see internal/pull.
package rpc

// Kind tags which payload an Envelope carries.
type Kind string

const (
	KindStartLink    Kind = "start_link"
	KindLocalInit    Kind = "local_init"
	KindLocalReboot  Kind = "local_reboot"
	KindStartCollect Kind = "start_collect"
	KindStopCollect  Kind = "stop_collect"
	KindPull         Kind = "pull"
	KindPullAck      Kind = "pull_ack"
	KindTransReq     Kind = "trans_req"
	KindQuit         Kind = "quit"
)

// Mode distinguishes a peer's first boot from a post-crash reboot, so the
// peer knows whether it may encounter stale local state.
type Mode string

const (
	ModeBoot   Mode = "boot"
	ModeReboot Mode = "reboot"
)

// Envelope is the single message type exchanged on a Lifecycle stream.
// Only the fields relevant to Kind are populated; it is intentionally a
// flat struct rather than an interface-typed union so that the gob codec
// (see codec.go) needs no type registration.
type Envelope struct {
	Kind Kind

	// start_link: coordinator -> peer
	Mode       Mode
	IntervalMS int64
	TopN       int
	SMP        bool

	// local_init / local_reboot: peer -> coordinator
	Node string
	OK   bool

	// pull: coordinator -> peer
	CoordAddr string

	// pull_ack: peer -> coordinator (Filename is also set on trans_req)
	PeerID   string
	Filename string

	// trans_req: coordinator -> peer, together with Filename
	Host string
	Port int
}
