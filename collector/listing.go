package collector

import (
	"regexp"
	"sort"
	"strings"
)

// Archive listings are HTML pages whose anchors point at archived documents.
// Filenames begin with a fixed-width timestamp, so lexicographic comparison
// orders them chronologically:
//
//	2024-01-15-12-00-00-vote-<AUTHORITY-FINGERPRINT>-<DIGEST>
//	2024-01-15-12-35-00-bandwidth-<AUTHORITY-FINGERPRINT>
var (
	anchorRx        = regexp.MustCompile(`href="([^"]+)"`)
	voteFileRx      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2}-vote-([0-9A-Fa-f]{40})-`)
	bandwidthFileRx = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2}-bandwidth-`)
)

// ParseListing extracts candidate filenames from an archive listing page.
func ParseListing(html string) []string {
	matches := anchorRx.FindAllStringSubmatch(html, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimPrefix(m[1], "./")
		if voteFileRx.MatchString(name) || bandwidthFileRx.MatchString(name) {
			names = append(names, name)
		}
	}
	return names
}

// LatestVotes selects the most recent vote filename per authority
// fingerprint.
func LatestVotes(names []string) map[string]string {
	latest := make(map[string]string)
	for _, name := range names {
		m := voteFileRx.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		fingerprint := strings.ToUpper(m[1])
		if name > latest[fingerprint] {
			latest[fingerprint] = name
		}
	}
	return latest
}

// LatestBandwidthFile selects the single most recent bandwidth filename, or
// empty if there are none.
func LatestBandwidthFile(names []string) string {
	candidates := make([]string, 0, len(names))
	for _, name := range names {
		if bandwidthFileRx.MatchString(name) {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Strings(candidates)
	return candidates[len(candidates)-1]
}

var bandwidthAuthorityRx = regexp.MustCompile(`-bandwidth-([0-9A-Fa-f]{40})`)

// BandwidthFileAuthority extracts the authority fingerprint embedded in a
// bandwidth filename, or empty if the filename carries none.
func BandwidthFileAuthority(name string) string {
	m := bandwidthAuthorityRx.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}
