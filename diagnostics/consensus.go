package diagnostics

import (
	"sort"

	"github.com/1aeo/allium-sub000/collector"
)

// FromRelayDiagnostics condenses a collector evaluation into the snapshot
// consumed by GenerateRelayIssues. Per-authority variance is reconciled
// conservatively: thresholds fall back to the documented defaults and the
// relay's uptime statistics take the best value any authority observed.
func FromRelayDiagnostics(d *collector.RelayDiagnostics) *ConsensusData {
	c := &ConsensusData{
		Error:            d.Error,
		AuthorityCount:   d.AuthorityCount,
		VoteCount:        d.VoteCount,
		MajorityRequired: d.MajorityRequired,
		InConsensus:      d.InConsensus,

		IPv4ReachableCount: d.Reachability.IPv4Reachable,
		IPv6ReachableCount: d.Reachability.IPv6Reachable,
		IPv6TestedCount:    d.Reachability.IPv6Tested,
		IPv6NotTestedCount: d.Reachability.IPv6NotTested,

		GuardWFUThreshold: collector.DefaultGuardWFU,
		GuardTKThreshold:  collector.DefaultGuardTK,
		HSDirWFUThreshold: collector.DefaultHSDirWFU,
		HSDirTKThreshold:  collector.DefaultHSDirTK,

		MeasuredCount: d.Bandwidth.Sources,
	}

	if !d.Available {
		if c.Error == "" {
			c.Error = "relay diagnostics unavailable"
		}
		return c
	}

	if fe, ok := d.FlagEligibility["Stable"]; ok {
		c.StableEligibleCount = fe.EligibleCount
	}

	names := make([]string, 0, len(d.Votes))
	for name := range d.Votes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		vote := d.Votes[name]
		if vote.WFU != nil && *vote.WFU > c.WFU {
			c.WFU = *vote.WFU
		}
		if vote.TimeKnown != nil && float64(*vote.TimeKnown) > c.TimeKnown {
			c.TimeKnown = float64(*vote.TimeKnown)
		}
		if vote.Measured != nil {
			c.MeasuredValues = append(c.MeasuredValues, *vote.Measured)
		}
		if c.StaleDescAuthority == "" && vote.HasFlag("StaleDesc") {
			c.StaleDescAuthority = name
		}
	}

	return c
}
