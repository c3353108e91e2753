package monitor

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"

	"github.com/1aeo/allium-sub000/dir"
	"github.com/1aeo/allium-sub000/log"
)

func testAuthorities(n int) []dir.Authority {
	authorities := make([]dir.Authority, n)
	for i := range authorities {
		authorities[i] = dir.Authority{
			Name:        fmt.Sprintf("auth%d", i+1),
			Fingerprint: fmt.Sprintf("%040d", i+1),
			Address:     fmt.Sprintf("192.0.2.%d:80", i+1),
		}
	}
	return authorities
}

func newTestMonitor(authorities []dir.Authority) *Monitor {
	httpClient := &http.Client{}
	httpmock.ActivateNonDefault(httpClient)
	return New(authorities, httpClient, tally.NoopScope, log.NewNop())
}

func probeURL(a dir.Authority) string {
	return a.URL() + ConsensusStatusPath
}

func TestCheckAllAuthorities(t *testing.T) {
	authorities := testAuthorities(3)
	m := newTestMonitor(authorities)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodHead, probeURL(authorities[0]),
		httpmock.NewStringResponder(200, ""))
	httpmock.RegisterResponder(http.MethodHead, probeURL(authorities[1]),
		httpmock.NewStringResponder(503, ""))
	httpmock.RegisterResponder(http.MethodHead, probeURL(authorities[2]),
		httpmock.NewErrorResponder(assert.AnError))

	status := m.CheckAllAuthorities(context.Background(), false)
	require.Len(t, status, 3)

	assert.True(t, status["auth1"].Online)
	require.NotNil(t, status["auth1"].LatencyMS)
	require.NotNil(t, status["auth1"].StatusCode)
	assert.Equal(t, 200, *status["auth1"].StatusCode)

	// HTTP errors are distinguished from connection failures but both are
	// offline.
	assert.False(t, status["auth2"].Online)
	require.NotNil(t, status["auth2"].StatusCode)
	assert.Equal(t, 503, *status["auth2"].StatusCode)
	assert.Contains(t, status["auth2"].Err, "503")

	assert.False(t, status["auth3"].Online)
	assert.Nil(t, status["auth3"].StatusCode)
	assert.NotEmpty(t, status["auth3"].Err)
}

func TestCheckAllAuthoritiesCache(t *testing.T) {
	authorities := testAuthorities(2)
	m := newTestMonitor(authorities)
	defer httpmock.DeactivateAndReset()

	for _, a := range authorities {
		httpmock.RegisterResponder(http.MethodHead, probeURL(a),
			httpmock.NewStringResponder(200, ""))
	}

	first := m.CheckAllAuthorities(context.Background(), false)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())

	// A second call within the cache window issues no probes and returns
	// the identical snapshot.
	second := m.CheckAllAuthorities(context.Background(), false)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
	assert.Equal(t, first, second)

	// Force bypasses the cache.
	m.CheckAllAuthorities(context.Background(), true)
	assert.Equal(t, 4, httpmock.GetTotalCallCount())
}

func TestCheckAllAuthoritiesCacheExpiry(t *testing.T) {
	authorities := testAuthorities(1)
	m := newTestMonitor(authorities)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodHead, probeURL(authorities[0]),
		httpmock.NewStringResponder(200, ""))

	now := time.Now()
	m.now = func() time.Time { return now }

	m.CheckAllAuthorities(context.Background(), false)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())

	now = now.Add(6 * time.Minute)
	m.CheckAllAuthorities(context.Background(), false)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func latency(ms float64) *float64 {
	return &ms
}

func TestGetSummary(t *testing.T) {
	status := map[string]Status{
		"auth1": {Online: true, LatencyMS: latency(100)},
		"auth2": {Online: true, LatencyMS: latency(700)},
		"auth3": {Online: false, Err: "connection refused"},
	}

	s := GetSummary(status)

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.OnlineCount)
	assert.Equal(t, 1, s.OfflineCount)
	assert.Equal(t, float64(400), s.AverageLatencyMS)
	assert.Equal(t, float64(100), s.MinLatencyMS)
	assert.Equal(t, float64(700), s.MaxLatencyMS)
	assert.Equal(t, []string{"auth2"}, s.SlowAuthorities)
	assert.Equal(t, []string{"auth3"}, s.OfflineAuthorities)
}

func TestGetAlerts(t *testing.T) {
	status := map[string]Status{
		"auth1": {Online: true, LatencyMS: latency(1500)},
		"auth2": {Online: false, Err: "timeout"},
	}

	alerts := GetAlerts(status)

	require.Len(t, alerts, 2)
	assert.Equal(t, AlertError, alerts[0].Severity)
	assert.Equal(t, "auth2", alerts[0].Authority)
	assert.Equal(t, AlertWarning, alerts[1].Severity)
	assert.Equal(t, "auth1", alerts[1].Authority)
}

func TestGetAlertsCritical(t *testing.T) {
	status := make(map[string]Status)
	for i := 1; i <= 9; i++ {
		status[fmt.Sprintf("auth%d", i)] = Status{Online: i > 5}
	}

	alerts := GetAlerts(status)

	// 5 offline of 9: a critical alert is prepended to the 5 per-authority
	// errors.
	require.Len(t, alerts, 6)
	assert.Equal(t, AlertCritical, alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "5/9")
	for _, alert := range alerts[1:] {
		assert.Equal(t, AlertError, alert.Severity)
	}
}
