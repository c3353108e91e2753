package collector

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// MajorityRequired returns the quorum size for the given authority count.
func MajorityRequired(authorityCount int) int {
	return authorityCount/2 + 1
}

var fingerprintRx = regexp.MustCompile(`^[0-9A-Fa-f]{40}$`)

// ValidFingerprint reports whether s is a well-formed relay fingerprint:
// exactly 40 case-insensitive hex characters.
func ValidFingerprint(s string) bool {
	return fingerprintRx.MatchString(s)
}

// Default eligibility thresholds, used when an authority's vote does not
// publish its own value.
const (
	DefaultGuardWFU = 0.98
	DefaultGuardTK  = 691200 // 8 days
	DefaultHSDirWFU = 0.98
	DefaultHSDirTK  = 691200
)

// FlagCheck is one authority's eligibility verdict for one flag.
type FlagCheck struct {
	Eligible bool
	Checks   map[string]bool
}

// FlagEligibility aggregates per-authority eligibility for one flag.
type FlagEligibility struct {
	EligibleCount int
	Authorities   map[string]FlagCheck
}

// BandwidthSummary aggregates bandwidth measurements across all reporting
// sources.
type BandwidthSummary struct {
	Sources int
	Average float64
	Min     float64
	Max     float64
	StdDev  float64
}

// ReachabilitySummary counts per-family reachability across voting
// authorities.
type ReachabilitySummary struct {
	TotalVotes    int
	IPv4Reachable int
	IPv6Reachable int
	IPv6Tested    int
	IPv6NotTested int
}

// RelayDiagnostics is the consensus-evaluation view of one relay.
type RelayDiagnostics struct {
	Available        bool
	Error            string
	Fingerprint      string
	Nickname         string
	AuthorityCount   int
	VoteCount        int
	MajorityRequired int
	InConsensus      bool
	Votes            map[string]*RelayVoteEntry
	FlagEligibility  map[string]*FlagEligibility
	Bandwidth        BandwidthSummary
	Reachability     ReachabilitySummary
}

// GetRelayDiagnostics evaluates quorum membership, flag eligibility,
// bandwidth statistics and reachability for one relay against the current
// fetch result. Invalid input or an unknown relay yields an unavailable
// result, never an error.
func (f *Fetcher) GetRelayDiagnostics(fingerprint string, authorityCount int) *RelayDiagnostics {
	if !ValidFingerprint(fingerprint) {
		return &RelayDiagnostics{Error: "invalid fingerprint: expected 40 hex characters"}
	}
	fingerprint = strings.ToUpper(fingerprint)

	res := f.Result()
	if res == nil {
		return &RelayDiagnostics{Fingerprint: fingerprint, Error: "no fetch data available"}
	}

	entry, ok := res.RelayIndex[fingerprint]
	if !ok {
		return &RelayDiagnostics{Fingerprint: fingerprint, Error: "relay not found in votes"}
	}

	d := &RelayDiagnostics{
		Available:        true,
		Fingerprint:      fingerprint,
		Nickname:         entry.Nickname,
		AuthorityCount:   authorityCount,
		VoteCount:        len(entry.Votes),
		MajorityRequired: MajorityRequired(authorityCount),
		Votes:            entry.Votes,
	}
	d.InConsensus = d.VoteCount >= d.MajorityRequired
	d.FlagEligibility = evaluateFlagEligibility(entry, res.FlagThresholds)
	d.Bandwidth = summarizeBandwidth(entry)
	d.Reachability = summarizeReachability(entry)

	return d
}

// ConsensusFlags returns the flags voted by a majority of the authorities
// that voted for the relay.
func (d *RelayDiagnostics) ConsensusFlags() []string {
	counts := make(map[string]int)
	for _, vote := range d.Votes {
		for _, flag := range vote.Flags {
			counts[flag]++
		}
	}

	required := MajorityRequired(len(d.Votes))
	flags := make([]string, 0, len(counts))
	for flag, n := range counts {
		if n >= required {
			flags = append(flags, flag)
		}
	}
	sort.Strings(flags)
	return flags
}

// evaluateFlagEligibility applies each authority's threshold table to its
// own vote for the relay. Authorities without a threshold table or without
// a vote do not participate.
func evaluateFlagEligibility(entry *RelayIndexEntry, thresholds map[string]map[string]float64) map[string]*FlagEligibility {
	eligibility := map[string]*FlagEligibility{
		"Guard":  {Authorities: make(map[string]FlagCheck)},
		"Stable": {Authorities: make(map[string]FlagCheck)},
		"Fast":   {Authorities: make(map[string]FlagCheck)},
		"HSDir":  {Authorities: make(map[string]FlagCheck)},
	}

	for authority, vote := range entry.Votes {
		table, ok := thresholds[authority]
		if !ok {
			continue
		}

		wfu := floatOrZero(vote.WFU)
		tk := float64(intOrZero(vote.TimeKnown))
		mtbf := float64(intOrZero(vote.MTBF))
		bandwidth := float64(intOrZero(vote.Bandwidth))

		record(eligibility["Guard"], authority, map[string]bool{
			"wfu":       wfu >= threshold(table, "guard-wfu", DefaultGuardWFU),
			"tk":        tk >= threshold(table, "guard-tk", DefaultGuardTK),
			"bandwidth": bandwidth >= threshold(table, "guard-bw-inc-exits", 0),
		})

		stableMTBF := threshold(table, "stable-mtbf", 0)
		record(eligibility["Stable"], authority, map[string]bool{
			"mtbf": stableMTBF == 0 || mtbf >= stableMTBF,
		})

		record(eligibility["Fast"], authority, map[string]bool{
			"bandwidth": bandwidth >= threshold(table, "fast-speed", 0),
		})

		record(eligibility["HSDir"], authority, map[string]bool{
			"wfu": wfu >= threshold(table, "hsdir-wfu", DefaultHSDirWFU),
			"tk":  tk >= threshold(table, "hsdir-tk", DefaultHSDirTK),
		})
	}

	return eligibility
}

func record(fe *FlagEligibility, authority string, checks map[string]bool) {
	eligible := true
	for _, ok := range checks {
		eligible = eligible && ok
	}
	fe.Authorities[authority] = FlagCheck{Eligible: eligible, Checks: checks}
	if eligible {
		fe.EligibleCount++
	}
}

func threshold(table map[string]float64, key string, fallback float64) float64 {
	if v, ok := table[key]; ok {
		return v
	}
	return fallback
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func intOrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

// summarizeBandwidth aggregates measured bandwidth from every reporting
// source: per-authority Measured vote fields plus bandwidth-file entries.
func summarizeBandwidth(entry *RelayIndexEntry) BandwidthSummary {
	values := make([]float64, 0, len(entry.Votes)+len(entry.BandwidthMeasurements))

	names := make([]string, 0, len(entry.Votes))
	for name := range entry.Votes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if m := entry.Votes[name].Measured; m != nil {
			values = append(values, float64(*m))
		}
	}
	for _, bw := range entry.BandwidthMeasurements {
		values = append(values, float64(bw))
	}

	if len(values) == 0 {
		return BandwidthSummary{}
	}

	s := BandwidthSummary{
		Sources: len(values),
		Min:     values[0],
		Max:     values[0],
	}
	var sum float64
	for _, v := range values {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Average = sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - s.Average) * (v - s.Average)
	}
	s.StdDev = math.Sqrt(variance / float64(len(values)))

	return s
}

// summarizeReachability counts reachability facts across votes. Any
// authority that voted for the relay implies IPv4 reachability; IPv6 is
// counted from explicit per-authority reachability flags.
func summarizeReachability(entry *RelayIndexEntry) ReachabilitySummary {
	s := ReachabilitySummary{
		TotalVotes:    len(entry.Votes),
		IPv4Reachable: len(entry.Votes),
	}
	for _, vote := range entry.Votes {
		if vote.IPv6Reachable == nil {
			s.IPv6NotTested++
			continue
		}
		s.IPv6Tested++
		if *vote.IPv6Reachable {
			s.IPv6Reachable++
		}
	}
	return s
}
