package diagnostics

import (
	"fmt"
	"time"
)

// Operational overload windows. A general-overload report younger than
// OverloadActiveWindow is considered live; between that and
// OverloadStaleWindow it is reported as historical; older reports are
// ignored.
const (
	OverloadActiveWindow = 72 * time.Hour
	OverloadStaleWindow  = 7 * 24 * time.Hour
)

// GuardBandwidthGuarantee is the advertised-bandwidth floor below which a
// relay will not be considered for the Guard flag.
const GuardBandwidthGuarantee = 2000000

// MinBandwidthMeasurements is the number of bandwidth authorities that
// should have measured a relay before its consensus weight is trustworthy.
const MinBandwidthMeasurements = 3

// ipv6NotTestedTrustLimit bounds how many authorities may be missing IPv6
// test results before the IPv6 signal is considered too unreliable to
// diagnose.
const ipv6NotTestedTrustLimit = 2

// RelayInfo carries the live relay fields the synthesizer inspects.
type RelayInfo struct {
	Nickname    string
	Fingerprint string
	Flags       []string

	ObservedBandwidth  int64
	Version            string
	RecommendedVersion *bool

	// Overload signals, as self-reported by the relay.
	OverloadGeneralTimestamp int64 // unix milliseconds, 0 when unset
	OverloadFDExhausted      bool
	OverloadWriteLimitHits   int64
	OverloadReadLimitHits    int64
	OverloadRateLimit        int64
	OverloadBurstLimit       int64
}

// HasFlag reports whether the relay currently holds the named flag.
func (r *RelayInfo) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// ConsensusData is a snapshot of consensus-evaluation facts for one relay.
// A non-empty Error marks the snapshot as unusable for derived issues.
type ConsensusData struct {
	Error string

	AuthorityCount   int
	VoteCount        int
	MajorityRequired int
	InConsensus      bool

	IPv4ReachableCount int
	IPv6ReachableCount int
	IPv6TestedCount    int
	IPv6NotTestedCount int

	WFU       float64
	TimeKnown float64

	GuardWFUThreshold float64
	GuardTKThreshold  float64
	HSDirWFUThreshold float64
	HSDirTKThreshold  float64

	StableEligibleCount int

	MeasuredCount      int
	MeasuredValues     []int64
	StaleDescAuthority string
}

// Options carries per-batch evaluation parameters. Now is sampled once by
// the caller so a batch of relays shares a single reference time.
type Options struct {
	Now time.Time
}

// GenerateRelayIssues evaluates every diagnostic rule against the relay and
// its consensus snapshot, returning issues ordered by category priority. A
// snapshot carrying an Error suppresses all consensus-derived issues;
// overload issues are still evaluated.
func GenerateRelayIssues(relay *RelayInfo, consensus *ConsensusData, opts Options) []Issue {
	var issues []Issue

	if consensus != nil && consensus.Error == "" {
		issues = append(issues, consensusIssues(relay, consensus)...)
	}
	issues = append(issues, overloadIssues(relay, opts.Now)...)

	sortByCategory(issues)
	return issues
}

func consensusIssues(relay *RelayInfo, c *ConsensusData) []Issue {
	var issues []Issue

	if !c.InConsensus {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Category: CategoryConsensus,
			Title:    "Not in consensus",
			Description: fmt.Sprintf("Only %d of %d authorities voted for this relay; %d are required.",
				c.VoteCount, c.AuthorityCount, c.MajorityRequired),
			Suggestion: "Check that the relay is running, reachable on its ORPort, and publishing descriptors.",
			DocURL:     "https://community.torproject.org/relay/setup/post-install/",
		})
	}

	issues = append(issues, reachabilityIssues(c)...)
	issues = append(issues, guardIssues(relay, c)...)
	issues = append(issues, stableIssues(relay, c)...)
	issues = append(issues, hsdirIssues(relay, c)...)
	issues = append(issues, bandwidthIssues(c)...)
	issues = append(issues, descriptorIssues(relay, c)...)

	return issues
}

func reachabilityIssues(c *ConsensusData) []Issue {
	var issues []Issue

	if c.IPv4ReachableCount < c.MajorityRequired {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Category: CategoryReachability,
			Title:    "IPv4 unreachable",
			Description: fmt.Sprintf("Only %d of %d authorities find the relay reachable over IPv4.",
				c.IPv4ReachableCount, c.AuthorityCount),
			Suggestion: "Verify the ORPort is open and not blocked by a firewall or NAT.",
		})
	} else if c.IPv4ReachableCount < c.AuthorityCount {
		issues = append(issues, Issue{
			Severity: SeverityInfo,
			Category: CategoryReachability,
			Title:    "Partial IPv4 reachability",
			Description: fmt.Sprintf("%d of %d authorities find the relay reachable over IPv4.",
				c.IPv4ReachableCount, c.AuthorityCount),
		})
	}

	// The IPv6 signal is only trusted when nearly every authority reports a
	// test result; a large not-tested set says more about the authorities
	// than about the relay.
	if c.IPv6NotTestedCount <= ipv6NotTestedTrustLimit && c.IPv6TestedCount > 0 && c.IPv6ReachableCount == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Category: CategoryReachability,
			Title:    "IPv6 unreachable",
			Description: fmt.Sprintf("None of the %d authorities testing IPv6 find the relay reachable.",
				c.IPv6TestedCount),
			Suggestion: "Confirm the advertised IPv6 address and that the ORPort accepts IPv6 connections.",
		})
	}

	return issues
}

func guardIssues(relay *RelayInfo, c *ConsensusData) []Issue {
	if relay.HasFlag("Guard") {
		return nil
	}

	var issues []Issue
	warn := func(title, description, suggestion string) {
		issues = append(issues, Issue{
			Severity:    SeverityWarning,
			Category:    CategoryGuard,
			Title:       title,
			Description: description,
			Suggestion:  suggestion,
		})
	}

	if relay.ObservedBandwidth < GuardBandwidthGuarantee {
		warn("Bandwidth below Guard requirement",
			fmt.Sprintf("Observed bandwidth %d B/s is below the %d B/s Guard floor.",
				relay.ObservedBandwidth, int64(GuardBandwidthGuarantee)),
			"Increase available bandwidth or bandwidth rate limits.")
	}
	if c.WFU < c.GuardWFUThreshold {
		warn("WFU below Guard threshold",
			fmt.Sprintf("Weighted fractional uptime %.4f is below the %.4f Guard threshold.",
				c.WFU, c.GuardWFUThreshold),
			"Keep the relay online continuously to raise its weighted uptime.")
	}
	if c.TimeKnown < c.GuardTKThreshold {
		warn("Time known below Guard threshold",
			fmt.Sprintf("The relay has been known for %.0fs, below the %.0fs Guard threshold.",
				c.TimeKnown, c.GuardTKThreshold),
			"The relay must stay in the consensus longer; no action is required.")
	}
	if !relay.HasFlag("Stable") {
		warn("Missing Stable flag",
			"The Guard flag requires the Stable flag.",
			"Avoid restarts; Stable is assigned once the relay's MTBF is high enough.")
	}
	if !relay.HasFlag("Fast") {
		warn("Missing Fast flag",
			"The Guard flag requires the Fast flag.",
			"Increase bandwidth so the relay clears the Fast speed threshold.")
	}

	return issues
}

func stableIssues(relay *RelayInfo, c *ConsensusData) []Issue {
	if relay.HasFlag("Stable") || c.StableEligibleCount >= c.MajorityRequired {
		return nil
	}
	return []Issue{{
		Severity: SeverityWarning,
		Category: CategoryStable,
		Title:    "Not eligible for Stable",
		Description: fmt.Sprintf("Only %d of %d required authorities consider the relay Stable-eligible.",
			c.StableEligibleCount, c.MajorityRequired),
		Suggestion: "Reduce downtime; Stable eligibility follows mean time between failures.",
	}}
}

func hsdirIssues(relay *RelayInfo, c *ConsensusData) []Issue {
	if relay.HasFlag("HSDir") {
		return nil
	}

	var issues []Issue
	warn := func(title, description string) {
		issues = append(issues, Issue{
			Severity:    SeverityWarning,
			Category:    CategoryHSDir,
			Title:       title,
			Description: description,
			Suggestion:  "HSDir requires a long-running, stable relay with a directory port.",
		})
	}

	if !relay.HasFlag("Stable") {
		warn("HSDir requires Stable", "The HSDir flag requires the Stable flag.")
	}
	if !relay.HasFlag("Fast") {
		warn("HSDir requires Fast", "The HSDir flag requires the Fast flag.")
	}
	if c.WFU < c.HSDirWFUThreshold {
		warn("WFU below HSDir threshold",
			fmt.Sprintf("Weighted fractional uptime %.4f is below the %.4f HSDir threshold.",
				c.WFU, c.HSDirWFUThreshold))
	}
	if c.TimeKnown < c.HSDirTKThreshold {
		warn("Time known below HSDir threshold",
			fmt.Sprintf("The relay has been known for %.0fs, below the %.0fs HSDir threshold.",
				c.TimeKnown, c.HSDirTKThreshold))
	}

	return issues
}

func bandwidthIssues(c *ConsensusData) []Issue {
	var issues []Issue

	if deviation, median, high := measurementDeviation(c.MeasuredValues); high {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Category: CategoryBandwidth,
			Title:    "High bandwidth measurement deviation",
			Description: fmt.Sprintf("Bandwidth measurements deviate by %.0f against a median of %.0f.",
				deviation, median),
			Suggestion: "Inconsistent measurements often indicate congestion or per-path throttling.",
		})
	}

	if c.MeasuredCount < MinBandwidthMeasurements {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Category: CategoryBandwidth,
			Title:    "Few bandwidth measurements",
			Description: fmt.Sprintf("Only %d bandwidth authorities measured the relay; at least %d are expected.",
				c.MeasuredCount, MinBandwidthMeasurements),
			Suggestion: "New relays take several days to be measured by all bandwidth scanners.",
		})
	} else if c.MeasuredCount < c.MajorityRequired {
		issues = append(issues, Issue{
			Severity: SeverityInfo,
			Category: CategoryBandwidth,
			Title:    "Partial bandwidth measurement coverage",
			Description: fmt.Sprintf("%d bandwidth authorities measured the relay, below the majority of %d.",
				c.MeasuredCount, c.MajorityRequired),
		})
	}

	return issues
}

// measurementDeviation reports the max absolute deviation from the median
// and whether it exceeds half the median.
func measurementDeviation(values []int64) (deviation, median float64, high bool) {
	if len(values) < 2 {
		return 0, 0, false
	}

	sorted := make([]int64, len(values))
	copy(sorted, values)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	median = float64(sorted[len(sorted)/2])

	for _, v := range values {
		d := float64(v) - median
		if d < 0 {
			d = -d
		}
		if d > deviation {
			deviation = d
		}
	}

	return deviation, median, median > 0 && deviation > median/2
}

func descriptorIssues(relay *RelayInfo, c *ConsensusData) []Issue {
	var issues []Issue

	if c.StaleDescAuthority != "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Category: CategoryDescriptor,
			Title:    "Stale descriptor",
			Description: fmt.Sprintf("Authority %s voted StaleDesc for this relay.",
				c.StaleDescAuthority),
			Suggestion: "The relay should republish its descriptor; check its clock and connectivity.",
		})
	}

	for _, flag := range []string{"BadExit", "MiddleOnly"} {
		if relay.HasFlag(flag) {
			issues = append(issues, Issue{
				Severity:    SeverityError,
				Category:    CategoryFlags,
				Title:       flag + " flag assigned",
				Description: fmt.Sprintf("The authorities assigned the %s flag, restricting how the relay is used.", flag),
				Suggestion:  "Contact the directory authorities if you believe this is in error.",
				DocURL:      "https://community.torproject.org/relay/community-resources/bad-relays/",
			})
		}
	}

	if relay.RecommendedVersion != nil && !*relay.RecommendedVersion {
		issues = append(issues, Issue{
			Severity:    SeverityWarning,
			Category:    CategoryVersion,
			Title:       "Running non-recommended version",
			Description: fmt.Sprintf("Version %s is not in the authorities' recommended list.", relay.Version),
			Suggestion:  "Upgrade to a supported release.",
		})
	}

	return issues
}

// overloadIssues evaluates relay self-reported overload signals against the
// reference time. These rules run even when consensus data is missing or
// marked stale.
func overloadIssues(relay *RelayInfo, now time.Time) []Issue {
	var issues []Issue
	add := func(severity Severity, title, description, suggestion string) {
		issues = append(issues, Issue{
			Severity:    severity,
			Category:    CategoryOverload,
			Title:       title,
			Description: description,
			Suggestion:  suggestion,
		})
	}

	if ts := relay.OverloadGeneralTimestamp; ts > 0 {
		age := now.Sub(time.UnixMilli(ts))
		switch {
		case age <= OverloadActiveWindow:
			add(SeverityError, "General Overload Active",
				fmt.Sprintf("The relay reported general overload %.0f hours ago.", age.Hours()),
				"Inspect CPU, memory and socket usage; consider raising resource limits.")
		case age <= OverloadStaleWindow:
			add(SeverityInfo, "Recent Overload Reported",
				fmt.Sprintf("The relay reported general overload %.0f hours ago; the condition appears resolved.", age.Hours()),
				"")
		}
	}

	if relay.OverloadFDExhausted {
		add(SeverityError, "File descriptor exhaustion",
			"The relay ran out of file descriptors.",
			"Raise the open-file limit (ulimit -n) for the relay process.")
	}

	limitHit := false
	if relay.OverloadWriteLimitHits > 0 {
		limitHit = true
		add(SeverityWarning, "Write limit reached",
			fmt.Sprintf("The configured write rate limit was hit %d times.", relay.OverloadWriteLimitHits),
			"Consider raising BandwidthRate/BandwidthBurst.")
	}
	if relay.OverloadReadLimitHits > 0 {
		limitHit = true
		add(SeverityWarning, "Read limit reached",
			fmt.Sprintf("The configured read rate limit was hit %d times.", relay.OverloadReadLimitHits),
			"Consider raising BandwidthRate/BandwidthBurst.")
	}
	if limitHit {
		add(SeverityInfo, "Configured rate limits",
			fmt.Sprintf("Rate limit %d B/s, burst limit %d B/s.", relay.OverloadRateLimit, relay.OverloadBurstLimit),
			"")
	}

	return issues
}
