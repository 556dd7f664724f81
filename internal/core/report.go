package core

import (
	"fmt"
	"sort"
	"strings"

	"doghair/internal/config"
)

// report formats the current state for the status command: roster, flag,
// timestamps, and the live configuration that would be sent to the next
// peer that boots or reboots.
func (c *Coordinator) report() string {
	nodes := c.state.Collectors.Snapshot().Nodes()
	sort.Strings(nodes)

	cfg := config.Load()

	var b strings.Builder
	fmt.Fprintf(&b, "roster (%d): %s\n", len(nodes), strings.Join(nodes, ", "))
	fmt.Fprintf(&b, "collecting: %v\n", c.state.Collecting)
	fmt.Fprintf(&b, "start_clct_time: %s\n", c.state.StartClctTime)
	fmt.Fprintf(&b, "end_clct_time: %s\n", c.state.EndClctTime)
	if c.state.Repo != "" {
		fmt.Fprintf(&b, "repo: %s (%d/%d transferred)\n", c.state.Repo, c.state.Transferred, c.state.PullTarget)
	}
	fmt.Fprintf(&b, "config: interval=%s topn=%d smp=%v\n", cfg.Interval, cfg.TopN, cfg.SMP)
	return b.String()
}
