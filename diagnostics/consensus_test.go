package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1aeo/allium-sub000/collector"
)

func TestFromRelayDiagnostics(t *testing.T) {
	wfuLow, wfuHigh := 0.90, 0.99
	tkLow, tkHigh := int64(100), int64(900000)
	m1, m2 := int64(1000), int64(1200)

	d := &collector.RelayDiagnostics{
		Available:        true,
		Fingerprint:      "68A483E05A2ABDCA6DA5A3EF8DB5177638A27F80",
		AuthorityCount:   9,
		VoteCount:        6,
		MajorityRequired: 5,
		InConsensus:      true,
		Votes: map[string]*collector.RelayVoteEntry{
			"auth1": {WFU: &wfuLow, TimeKnown: &tkHigh, Measured: &m1},
			"auth2": {WFU: &wfuHigh, TimeKnown: &tkLow, Measured: &m2, Flags: []string{"Running", "StaleDesc"}},
		},
		FlagEligibility: map[string]*collector.FlagEligibility{
			"Stable": {EligibleCount: 4},
		},
		Bandwidth:    collector.BandwidthSummary{Sources: 2},
		Reachability: collector.ReachabilitySummary{TotalVotes: 6, IPv4Reachable: 6, IPv6Tested: 5, IPv6Reachable: 5, IPv6NotTested: 1},
	}

	c := FromRelayDiagnostics(d)

	assert.Empty(t, c.Error)
	assert.Equal(t, 6, c.VoteCount)
	assert.Equal(t, 5, c.MajorityRequired)
	assert.True(t, c.InConsensus)

	// Best-observed uptime statistics across authorities.
	assert.Equal(t, 0.99, c.WFU)
	assert.Equal(t, float64(900000), c.TimeKnown)

	assert.Equal(t, 4, c.StableEligibleCount)
	assert.Equal(t, 2, c.MeasuredCount)
	require.Len(t, c.MeasuredValues, 2)
	assert.Equal(t, "auth2", c.StaleDescAuthority)

	assert.Equal(t, collector.DefaultGuardWFU, c.GuardWFUThreshold)
	assert.Equal(t, float64(collector.DefaultGuardTK), c.GuardTKThreshold)
}

func TestFromRelayDiagnosticsUnavailable(t *testing.T) {
	c := FromRelayDiagnostics(&collector.RelayDiagnostics{
		Available: false,
		Error:     "relay not found in votes",
	})

	assert.Equal(t, "relay not found in votes", c.Error)

	issues := GenerateRelayIssues(&RelayInfo{Nickname: "gone"}, c, opts())
	assert.Empty(t, issues)
}
