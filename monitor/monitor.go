// Package monitor probes directory authority reachability and latency.
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/uber-go/tally"

	"github.com/1aeo/allium-sub000/dir"
	"github.com/1aeo/allium-sub000/log"
)

// ConsensusStatusPath is the directory sub-path probed on each authority.
const ConsensusStatusPath = "/tor/status-vote/current/consensus"

// Defaults for probing and caching.
const (
	DefaultProbeTimeout = 10 * time.Second
	DefaultCacheTTL     = 5 * time.Minute
	DefaultWorkers      = 4
)

// Latency levels used by Summary and Alerts.
const (
	SlowLatency  = 500 * time.Millisecond
	AlertLatency = 1000 * time.Millisecond
)

// Status is the outcome of probing one authority.
type Status struct {
	Online     bool
	LatencyMS  *float64
	StatusCode *int
	Err        string
	CheckedAt  time.Time
}

// Monitor probes the known authorities with a bounded worker pool and
// caches the last snapshot.
type Monitor struct {
	authorities []dir.Authority
	client      *http.Client
	timeout     time.Duration
	cacheTTL    time.Duration
	workers     int
	logger      log.Logger
	now         func() time.Time

	probeGauge  tally.Gauge
	onlineGauge tally.Gauge

	mu        sync.Mutex
	cached    map[string]Status
	checkedAt time.Time
}

// New builds a Monitor over the given authorities. A nil httpClient uses a
// client with the default probe timeout.
func New(authorities []dir.Authority, httpClient *http.Client, scope tally.Scope, logger log.Logger) *Monitor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultProbeTimeout}
	}
	sub := scope.SubScope("authority")
	return &Monitor{
		authorities: authorities,
		client:      httpClient,
		timeout:     DefaultProbeTimeout,
		cacheTTL:    DefaultCacheTTL,
		workers:     DefaultWorkers,
		logger:      log.ForComponent(logger, "monitor"),
		now:         time.Now,
		probeGauge:  sub.Gauge("probe_latency_ms"),
		onlineGauge: sub.Gauge("online"),
	}
}

// CheckAllAuthorities probes every known authority concurrently and returns
// a name-keyed status map. A snapshot younger than the cache TTL is reused
// unless force is set. Probe failures degrade to offline statuses and never
// abort sibling probes.
func (m *Monitor) CheckAllAuthorities(ctx context.Context, force bool) map[string]Status {
	m.mu.Lock()
	if !force && m.cached != nil && m.now().Sub(m.checkedAt) < m.cacheTTL {
		cached := m.cached
		m.mu.Unlock()
		return cached
	}
	m.mu.Unlock()

	type probeResult struct {
		name   string
		status Status
	}

	results := make(chan probeResult, len(m.authorities))
	sem := make(chan struct{}, m.workers)
	var wg sync.WaitGroup
	for _, authority := range m.authorities {
		wg.Add(1)
		go func(a dir.Authority) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- probeResult{name: a.Name, status: m.probe(ctx, a)}
		}(authority)
	}
	wg.Wait()
	close(results)

	status := make(map[string]Status, len(m.authorities))
	online := 0
	for r := range results {
		status[r.name] = r.status
		if r.status.Online {
			online++
		}
	}
	m.onlineGauge.Update(float64(online))
	m.logger.Info("authority check complete", "total", len(status), "online", online)

	m.mu.Lock()
	m.cached = status
	m.checkedAt = m.now()
	m.mu.Unlock()

	return status
}

// probe issues a no-body existence check against the authority's consensus
// status path, measuring wall-clock latency. Every failure mode is folded
// into the returned Status.
func (m *Monitor) probe(ctx context.Context, a dir.Authority) Status {
	status := Status{CheckedAt: m.now()}
	logger := log.ForAuthority(m.logger, a.Name)

	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, a.URL()+ConsensusStatusPath, nil)
	if err != nil {
		status.Err = err.Error()
		return status
	}

	start := time.Now()
	resp, err := m.client.Do(req)
	latency := float64(time.Since(start)) / float64(time.Millisecond)
	m.probeGauge.Update(latency)

	if err != nil {
		status.Err = err.Error()
		logger.Debug("authority probe failed", "err", err.Error())
		return status
	}
	resp.Body.Close()

	status.LatencyMS = &latency
	code := resp.StatusCode
	status.StatusCode = &code

	if code >= 400 {
		status.Err = fmt.Sprintf("http status %d", code)
		return status
	}

	status.Online = true
	return status
}

// Summary aggregates a status snapshot.
type Summary struct {
	Total              int
	OnlineCount        int
	OfflineCount       int
	AverageLatencyMS   float64
	MinLatencyMS       float64
	MaxLatencyMS       float64
	SlowAuthorities    []string
	OfflineAuthorities []string
	CheckedAt          time.Time
}

// GetSummary condenses a status map into totals and latency statistics.
// Latency statistics cover only authorities that produced a latency value.
func GetSummary(status map[string]Status) *Summary {
	s := &Summary{Total: len(status)}

	names := sortedNames(status)
	var latencies []float64
	for _, name := range names {
		st := status[name]
		if st.CheckedAt.After(s.CheckedAt) {
			s.CheckedAt = st.CheckedAt
		}
		if st.Online {
			s.OnlineCount++
		} else {
			s.OfflineCount++
			s.OfflineAuthorities = append(s.OfflineAuthorities, name)
		}
		if st.LatencyMS != nil {
			latencies = append(latencies, *st.LatencyMS)
			if *st.LatencyMS > float64(SlowLatency/time.Millisecond) {
				s.SlowAuthorities = append(s.SlowAuthorities, name)
			}
		}
	}

	if len(latencies) > 0 {
		s.MinLatencyMS = latencies[0]
		var sum float64
		for _, l := range latencies {
			sum += l
			if l < s.MinLatencyMS {
				s.MinLatencyMS = l
			}
			if l > s.MaxLatencyMS {
				s.MaxLatencyMS = l
			}
		}
		s.AverageLatencyMS = sum / float64(len(latencies))
	}

	return s
}

// Alert severities.
const (
	AlertCritical = "critical"
	AlertError    = "error"
	AlertWarning  = "warning"
)

// Alert is an actionable finding about authority health.
type Alert struct {
	Severity  string
	Authority string
	Message   string
}

// GetAlerts derives alerts from a status snapshot: an error per offline
// authority, a warning per slow authority, and a prepended critical alert
// when three or more authorities are down.
func GetAlerts(status map[string]Status) []Alert {
	var alerts []Alert
	offline := 0

	for _, name := range sortedNames(status) {
		st := status[name]
		if !st.Online {
			offline++
			msg := fmt.Sprintf("authority %s is offline", name)
			if st.Err != "" {
				msg += ": " + st.Err
			}
			alerts = append(alerts, Alert{Severity: AlertError, Authority: name, Message: msg})
			continue
		}
		if st.LatencyMS != nil && *st.LatencyMS > float64(AlertLatency/time.Millisecond) {
			alerts = append(alerts, Alert{
				Severity:  AlertWarning,
				Authority: name,
				Message:   fmt.Sprintf("authority %s is slow (%.0fms)", name, *st.LatencyMS),
			})
		}
	}

	if offline >= 3 {
		critical := Alert{
			Severity: AlertCritical,
			Message:  fmt.Sprintf("%d/%d authorities are offline", offline, len(status)),
		}
		alerts = append([]Alert{critical}, alerts...)
	}

	return alerts
}

func sortedNames(status map[string]Status) []string {
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
