package collector

import (
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(b byte) string {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = b
	}
	return base64.RawStdEncoding.EncodeToString(raw)
}

func sampleVote() string {
	return fmt.Sprintf(`network-status-version 3 vote
vote-status vote
published 2024-01-15 11:50:00
flag-thresholds stable-uptime=693369 stable-mtbf=153249 fast-speed=100 guard-wfu=98.000%% guard-tk=691200 guard-bw-inc-exits=10240000 enough-mtbf=1
bandwidth-file-headers timestamp=1705312800 version=1.4.0
r alpha %s AAAAAAAAAAAAAAAAAAAAAAAAAAA 2024-01-15 10:00:00 1.2.3.4 9001 9030
a [2001:db8::1]:9001
s Fast Running Stable V2Dir Valid
w Bandwidth=5000 Measured=4500
stats wfu=0.995 tk=1000000 mtbf=200000
r beta %s AAAAAAAAAAAAAAAAAAAAAAAAAAA 2024-01-15 10:05:00 5.6.7.8 443 0
s Running Valid
w Bandwidth=200`, identity(0x41), identity(0x42))
}

func TestParseVoteRelays(t *testing.T) {
	vote := ParseVote("moria1", "D586D18309DED4CD6D57C18FDB97EFA96D330566", sampleVote())

	require.Len(t, vote.Relays, 2)

	alpha := vote.Relays["4141414141414141414141414141414141414141"]
	require.NotNil(t, alpha)
	assert.Equal(t, "alpha", alpha.Nickname)
	assert.Equal(t, "1.2.3.4", alpha.IP)
	assert.Equal(t, uint16(9001), alpha.ORPort)
	assert.Equal(t, uint16(9030), alpha.DirPort)
	assert.Equal(t, []string{"Fast", "Running", "Stable", "V2Dir", "Valid"}, alpha.Flags)
	require.NotNil(t, alpha.Bandwidth)
	assert.Equal(t, int64(5000), *alpha.Bandwidth)
	require.NotNil(t, alpha.Measured)
	assert.Equal(t, int64(4500), *alpha.Measured)
	require.NotNil(t, alpha.WFU)
	assert.Equal(t, 0.995, *alpha.WFU)
	require.NotNil(t, alpha.TimeKnown)
	assert.Equal(t, int64(1000000), *alpha.TimeKnown)
	require.NotNil(t, alpha.MTBF)
	assert.Equal(t, int64(200000), *alpha.MTBF)
	assert.Equal(t, "[2001:db8::1]:9001", alpha.IPv6Address)
	require.NotNil(t, alpha.IPv6Reachable)
	assert.True(t, *alpha.IPv6Reachable)

	// The trailing relay record is flushed at end of input.
	beta := vote.Relays["4242424242424242424242424242424242424242"]
	require.NotNil(t, beta)
	assert.Equal(t, "beta", beta.Nickname)
	assert.Nil(t, beta.IPv6Reachable)
	assert.Nil(t, beta.Measured)
}

func TestParseVoteThresholds(t *testing.T) {
	vote := ParseVote("moria1", "", sampleVote())

	assert.Equal(t, 0.98, vote.FlagThresholds["guard-wfu"])
	assert.Equal(t, float64(691200), vote.FlagThresholds["guard-tk"])
	assert.Equal(t, float64(153249), vote.FlagThresholds["stable-mtbf"])
	assert.Equal(t, float64(100), vote.FlagThresholds["fast-speed"])
	assert.True(t, vote.HasBandwidthScanner)
}

func TestParseVoteIdempotent(t *testing.T) {
	text := sampleVote()
	assert.Equal(t, ParseVote("gabelmoo", "", text), ParseVote("gabelmoo", "", text))
}

func TestParseVoteMalformedRelayLines(t *testing.T) {
	cases := []struct {
		Name string
		Line string
	}{
		{"too few fields", "r short line"},
		{"bad base64", "r bad !!!! digest 2024-01-15 10:00:00 1.2.3.4 9001 9030"},
		{"wrong identity length", "r bad AAAA digest 2024-01-15 10:00:00 1.2.3.4 9001 9030"},
	}
	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			vote := ParseVote("moria1", "", c.Line+"\ns Running\n")
			assert.Empty(t, vote.Relays)
		})
	}
}

func TestDecodeIdentity(t *testing.T) {
	// A 27-character unpadded base64 identity is zero-padded and decoded
	// to a 40-character uppercase hex fingerprint.
	fingerprint, ok := decodeIdentity("AAAAAAAAAAAAAAAAAAAAAAAAAAA")
	require.True(t, ok)
	assert.Equal(t, "0000000000000000000000000000000000000000", fingerprint)
	assert.Len(t, fingerprint, 40)
}

func TestParseThreshold(t *testing.T) {
	cases := []struct {
		Input string
		Value float64
	}{
		{"98.000%", 0.98},
		{"50%", 0.5},
		{"691200", 691200},
		{"0.75", 0.75},
	}
	for _, c := range cases {
		v, err := parseThreshold(c.Input)
		require.NoError(t, err)
		assert.InDelta(t, c.Value, v, 1e-9)
	}

	_, err := parseThreshold("not-a-number")
	assert.Error(t, err)
}
