// Package roster holds the coordinator's authoritative mapping of
// peer-node-id to live collector handle (component C3 in the design).
//
// Roster is not a concurrent data structure: the State Core is the only
// mutator, serialized through its command loop, so a plain map is correct
// and sufficient. Readers that need a consistent view across goroutines
// (the status reporter, the Pull Coordinator) must go through Snapshot.
package roster

// Handle identifies one live remote collector: which node it runs on and
// the opaque token the Liveness Supervisor uses to recognize its death.
// In this implementation Token is the identity of the peer's control
// stream connection (see internal/rpc).
type Handle struct {
	NodeID string
	Token  string
}

// Roster is the live peer-node -> handle mapping. The zero value (nil) can
// be read but Put panics on it; build one with New.
type Roster map[string]Handle

// New returns an empty roster.
func New() Roster {
	return make(Roster)
}

// Put installs or replaces the handle for a node.
func (r Roster) Put(h Handle) {
	r[h.NodeID] = h
}

// Remove deletes a node's handle, if present.
func (r Roster) Remove(nodeID string) {
	delete(r, nodeID)
}

// FindByToken returns the node whose handle currently carries token.
func (r Roster) FindByToken(token string) (Handle, bool) {
	for _, h := range r {
		if h.Token == token {
			return h, true
		}
	}
	return Handle{}, false
}

// Nodes returns the set of live node IDs in unspecified order.
func (r Roster) Nodes() []string {
	nodes := make([]string, 0, len(r))
	for n := range r {
		nodes = append(nodes, n)
	}
	return nodes
}

// Snapshot returns a defensive copy safe to read outside the State Core's
// goroutine (e.g. from a status report already captured before replying).
func (r Roster) Snapshot() Roster {
	cp := make(Roster, len(r))
	for k, v := range r {
		cp[k] = v
	}
	return cp
}

// Clear empties the roster in place -- used on shutdown, when the roster
// is logically retired and every further lifecycle command is refused.
func (r Roster) Clear() {
	for k := range r {
		delete(r, k)
	}
}
