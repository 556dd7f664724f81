// Package core implements the State Core (component C7): the single
// serialized command stream that owns the coordinator's state record and
// invokes every other component. Nothing outside this package's run loop
// ever reads or writes a State directly.
package core

import "doghair/internal/roster"

// undefined is the sentinel timestamp used before a collection window's
// start/end has ever been recorded.
const undefined = "undefined"

// State is the coordinator's single process-wide state record. It is only
// ever touched from Coordinator.run.
type State struct {
	Collectors    roster.Roster
	Collecting    bool
	StartClctTime string
	EndClctTime   string
	Repo          string
	Transferred   int
	// PullTarget is the roster size snapshotted at pull issuance, resolving
	// the race between a reboot shrinking the roster and the pull-completion
	// equality check.
	PullTarget int
}

// newState returns the initial coordinator state: an empty roster and
// "undefined" timestamps.
func newState() State {
	return State{
		Collectors:    roster.New(),
		StartClctTime: undefined,
		EndClctTime:   undefined,
	}
}
