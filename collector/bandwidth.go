package collector

import (
	"regexp"
	"strconv"
	"strings"
)

// Bandwidth file data lines look like:
//
//	node_id=$68A483E05A2ABDCA6DA5A3EF8DB5177638A27F80 bw=760 nick=Test
//
// Header lines beginning with "@" or "#" and the leading timestamp are
// metadata.
var (
	nodeIDRx = regexp.MustCompile(`node_id=\$?([0-9A-Fa-f]{40})`)
	bwRx     = regexp.MustCompile(`bw=(\d+)`)
)

// ParseBandwidthFile parses a bandwidth measurement file into a fingerprint
// to measured-bandwidth map. Lines not matching the expected pattern are
// ignored without error.
func ParseBandwidthFile(text string) map[string]int64 {
	measurements := make(map[string]int64)

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "@") || strings.HasPrefix(line, "#") {
			continue
		}

		node := nodeIDRx.FindStringSubmatch(line)
		bw := bwRx.FindStringSubmatch(line)
		if node == nil || bw == nil {
			continue
		}

		value, err := strconv.ParseInt(bw[1], 10, 64)
		if err != nil {
			continue
		}

		measurements[strings.ToUpper(node[1])] = value
	}

	return measurements
}
