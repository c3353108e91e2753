package collector

import (
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
)

// RelayVoteEntry is one authority's view of a single relay.
type RelayVoteEntry struct {
	Nickname      string
	Fingerprint   string
	IP            string
	ORPort        uint16
	DirPort       uint16
	Flags         []string
	Bandwidth     *int64
	Measured      *int64
	WFU           *float64
	TimeKnown     *int64
	MTBF          *int64
	IPv6Address   string
	IPv6Reachable *bool
}

// HasFlag reports whether the authority voted the named flag for this relay.
func (e *RelayVoteEntry) HasFlag(flag string) bool {
	for _, f := range e.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Vote is one authority's parsed vote document.
type Vote struct {
	Authority           string
	Fingerprint         string
	Relays              map[string]*RelayVoteEntry
	FlagThresholds      map[string]float64
	HasBandwidthScanner bool
}

// ParseVote parses a vote document into per-relay entries and the
// authority's flag-threshold table.
//
// The document is line oriented. An "r" line opens a new relay record and
// flushes the previous one; "s", "w", "a" and "stats" lines attach to the
// most recent "r" line. Malformed relay lines are dropped without failing
// the parse.
func ParseVote(authority, fingerprint, text string) *Vote {
	vote := &Vote{
		Authority:      authority,
		Fingerprint:    fingerprint,
		Relays:         make(map[string]*RelayVoteEntry),
		FlagThresholds: make(map[string]float64),
	}

	var current *RelayVoteEntry
	flush := func() {
		if current != nil {
			vote.Relays[current.Fingerprint] = current
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "flag-thresholds":
			for _, kv := range fields[1:] {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					continue
				}
				value, err := parseThreshold(v)
				if err != nil {
					continue
				}
				vote.FlagThresholds[k] = value
			}

		case "bandwidth-file-headers":
			vote.HasBandwidthScanner = true

		case "r":
			flush()
			current = parseRelayLine(fields)

		case "s":
			if current != nil {
				current.Flags = append([]string{}, fields[1:]...)
			}

		case "w":
			if current == nil {
				continue
			}
			for _, kv := range fields[1:] {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					continue
				}
				n, err := strconv.ParseInt(v, 10, 64)
				if err != nil {
					continue
				}
				switch k {
				case "Bandwidth":
					current.Bandwidth = &n
				case "Measured":
					current.Measured = &n
				}
			}

		case "a":
			if current != nil && len(fields) > 1 {
				current.IPv6Address = fields[1]
				reachable := true
				current.IPv6Reachable = &reachable
			}

		case "stats":
			if current == nil {
				continue
			}
			for _, kv := range fields[1:] {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					continue
				}
				switch k {
				case "wfu":
					if f, err := strconv.ParseFloat(v, 64); err == nil {
						current.WFU = &f
					}
				case "tk":
					if n, err := strconv.ParseInt(v, 10, 64); err == nil {
						current.TimeKnown = &n
					}
				case "mtbf":
					if n, err := strconv.ParseInt(v, 10, 64); err == nil {
						current.MTBF = &n
					}
				}
			}
		}
	}
	flush()

	return vote
}

// parseRelayLine parses an "r" line:
//
//	r <nickname> <base64-identity> <digest> <publication> <ip> <or-port> <dir-port>
//
// Returns nil if the line is malformed or the identity does not decode to a
// 20-byte fingerprint.
func parseRelayLine(fields []string) *RelayVoteEntry {
	if len(fields) < 8 {
		return nil
	}

	fingerprint, ok := decodeIdentity(fields[2])
	if !ok {
		return nil
	}

	// The publication field may span one or two tokens, so take the address
	// and ports from the end of the line.
	n := len(fields)
	entry := &RelayVoteEntry{
		Nickname:    fields[1],
		Fingerprint: fingerprint,
		IP:          fields[n-3],
	}
	if port, err := strconv.ParseUint(fields[n-2], 10, 16); err == nil {
		entry.ORPort = uint16(port)
	}
	if port, err := strconv.ParseUint(fields[n-1], 10, 16); err == nil {
		entry.DirPort = uint16(port)
	}

	return entry
}

// decodeIdentity decodes a base64 relay identity, zero-padding to a multiple
// of four characters, into a 40-character uppercase hex fingerprint.
func decodeIdentity(identity string) (string, bool) {
	if pad := len(identity) % 4; pad != 0 {
		identity += strings.Repeat("=", 4-pad)
	}
	raw, err := base64.StdEncoding.DecodeString(identity)
	if err != nil || len(raw) != 20 {
		return "", false
	}
	return strings.ToUpper(hex.EncodeToString(raw)), true
}

// parseThreshold normalizes a flag-threshold value. Percentage strings
// become fractions in [0, 1], plain numbers become floats.
func parseThreshold(v string) (float64, error) {
	if strings.HasSuffix(v, "%") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
		if err != nil {
			return 0, err
		}
		return f / 100, nil
	}
	return strconv.ParseFloat(v, 64)
}
