// Package collector fetches vote and bandwidth documents from a CollecTor
// style archive and builds a per-relay voting index.
package collector

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/uber-go/tally"
	"go.uber.org/multierr"

	"github.com/1aeo/allium-sub000/dir"
	"github.com/1aeo/allium-sub000/log"
	"github.com/1aeo/allium-sub000/telemetry"
)

// DefaultArchiveURL is the recent relay-descriptors directory of the public
// CollecTor archive.
const DefaultArchiveURL = "https://collector.torproject.org/recent/relay-descriptors"

// Default timeouts for archive operations.
const (
	DefaultListingTimeout = 120 * time.Second
	DefaultVoteTimeout    = 60 * time.Second
)

// RelayIndexEntry is the merged cross-authority view of a single relay.
type RelayIndexEntry struct {
	Fingerprint           string
	Nickname              string
	Votes                 map[string]*RelayVoteEntry
	BandwidthMeasurements map[string]int64
}

// FetchResult is the outcome of one fetch cycle. It is always usable:
// failed steps degrade to empty maps and an entry in Errors.
type FetchResult struct {
	Votes                       map[string]*Vote
	BandwidthFile               map[string]int64
	BandwidthSource             string
	RelayIndex                  map[string]*RelayIndexEntry
	FlagThresholds              map[string]map[string]float64
	BandwidthScannerAuthorities []string
	Errors                      []string
	Timings                     map[string]time.Duration
	FetchedAt                   time.Time
}

// Fetcher retrieves votes and bandwidth files and maintains the relay index
// for diagnostics lookups.
type Fetcher struct {
	base        string
	client      *Client
	authorities []dir.Authority
	logger      log.Logger

	listingTimeout time.Duration
	voteTimeout    time.Duration

	votesGauge     tally.Gauge
	bandwidthGauge tally.Gauge
	errorCounter   tally.Counter
	download       *telemetry.Download

	mu     sync.RWMutex
	result *FetchResult
}

// NewFetcher builds a Fetcher against the given archive base URL. A nil
// httpClient uses http.DefaultClient; empty base uses DefaultArchiveURL.
func NewFetcher(base string, httpClient *http.Client, authorities []dir.Authority, scope tally.Scope, logger log.Logger) *Fetcher {
	if base == "" {
		base = DefaultArchiveURL
	}
	logger = log.ForComponent(logger, "collector")
	sub := scope.SubScope("fetch")
	download := telemetry.NewDownload(sub.Counter("bytes"))
	return &Fetcher{
		base:           base,
		client:         NewClient(httpClient, download, logger),
		authorities:    authorities,
		logger:         logger,
		listingTimeout: DefaultListingTimeout,
		voteTimeout:    DefaultVoteTimeout,
		votesGauge:     sub.Gauge("votes_duration_ms"),
		bandwidthGauge: sub.Gauge("bandwidth_duration_ms"),
		errorCounter:   sub.Counter("errors"),
		download:       download,
	}
}

// Downloaded returns the total number of document bytes fetched so far.
func (f *Fetcher) Downloaded() int64 {
	return f.download.Total()
}

// Result returns the most recent fetch result, or nil before the first
// FetchAll.
func (f *Fetcher) Result() *FetchResult {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.result
}

// FetchAll runs one full fetch cycle: the votes and bandwidth listings are
// fetched concurrently, the most recent documents are selected, fetched and
// parsed, and the relay index is rebuilt. FetchAll never fails; every error
// is recorded in the result's Errors list and degrades only the step that
// produced it.
func (f *Fetcher) FetchAll(ctx context.Context) *FetchResult {
	res := &FetchResult{
		Votes:          make(map[string]*Vote),
		BandwidthFile:  make(map[string]int64),
		RelayIndex:     make(map[string]*RelayIndexEntry),
		FlagThresholds: make(map[string]map[string]float64),
		Timings:        make(map[string]time.Duration),
		FetchedAt:      time.Now(),
	}

	var (
		wg           sync.WaitGroup
		votes        map[string]*Vote
		voteErr      error
		voteDuration time.Duration
		bwFile       map[string]int64
		bwName       string
		bwErr        error
		bwDuration   time.Duration
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		start := time.Now()
		votes, voteErr = f.fetchVotes(ctx)
		voteDuration = time.Since(start)
		f.votesGauge.Update(float64(voteDuration) / float64(time.Millisecond))
	}()
	go func() {
		defer wg.Done()
		start := time.Now()
		bwName, bwFile, bwErr = f.fetchBandwidth(ctx)
		bwDuration = time.Since(start)
		f.bandwidthGauge.Update(float64(bwDuration) / float64(time.Millisecond))
	}()
	wg.Wait()

	res.Timings["votes"] = voteDuration
	res.Timings["bandwidth"] = bwDuration

	for _, err := range multierr.Errors(multierr.Append(voteErr, bwErr)) {
		f.errorCounter.Inc(1)
		log.Err(f.logger, err, "fetch step failed")
		res.Errors = append(res.Errors, err.Error())
	}

	for name, vote := range votes {
		res.Votes[name] = vote
		res.FlagThresholds[name] = vote.FlagThresholds
		if vote.HasBandwidthScanner {
			res.BandwidthScannerAuthorities = append(res.BandwidthScannerAuthorities, name)
		}
	}
	sort.Strings(res.BandwidthScannerAuthorities)

	res.BandwidthFile = bwFile
	res.BandwidthSource = f.bandwidthSourceName(bwName)
	res.RelayIndex = buildRelayIndex(res.Votes, res.BandwidthFile, res.BandwidthSource)

	f.logger.Info("fetch cycle complete",
		"votes", len(res.Votes),
		"relays", len(res.RelayIndex),
		"measurements", len(res.BandwidthFile),
		"errors", len(res.Errors),
	)

	f.mu.Lock()
	f.result = res
	f.mu.Unlock()

	return res
}

// fetchVotes retrieves the votes listing, selects the most recent vote per
// authority and fetches them with a bounded worker pool. A failed vote is
// omitted without aborting its siblings; the combined error carries one
// entry per failure.
func (f *Fetcher) fetchVotes(ctx context.Context) (map[string]*Vote, error) {
	listingCtx, cancel := context.WithTimeout(ctx, f.listingTimeout)
	defer cancel()

	page, err := f.client.Fetch(listingCtx, f.base+"/votes/")
	if err != nil {
		return nil, err
	}

	latest := LatestVotes(ParseListing(page))

	type voteResult struct {
		name string
		vote *Vote
		err  error
	}

	results := make(chan voteResult, len(latest))
	var wg sync.WaitGroup
	for fingerprint, filename := range latest {
		wg.Add(1)
		go func(fingerprint, filename string) {
			defer wg.Done()

			name := f.authorityName(fingerprint)

			voteCtx, cancel := context.WithTimeout(ctx, f.voteTimeout)
			defer cancel()

			text, err := f.client.Fetch(voteCtx, f.base+"/votes/"+filename)
			if err != nil {
				results <- voteResult{name: name, err: errors.Wrapf(err, "vote for %s", name)}
				return
			}

			results <- voteResult{name: name, vote: ParseVote(name, fingerprint, text)}
		}(fingerprint, filename)
	}
	wg.Wait()
	close(results)

	votes := make(map[string]*Vote, len(latest))
	var errs error
	for r := range results {
		if r.err != nil {
			errs = multierr.Append(errs, r.err)
			continue
		}
		votes[r.name] = r.vote
	}

	return votes, errs
}

// fetchBandwidth retrieves the bandwidth listing and fetches the single
// most recent bandwidth file.
func (f *Fetcher) fetchBandwidth(ctx context.Context) (string, map[string]int64, error) {
	listingCtx, cancel := context.WithTimeout(ctx, f.listingTimeout)
	defer cancel()

	page, err := f.client.Fetch(listingCtx, f.base+"/bandwidths/")
	if err != nil {
		return "", nil, err
	}

	filename := LatestBandwidthFile(ParseListing(page))
	if filename == "" {
		return "", nil, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.voteTimeout)
	defer cancel()

	text, err := f.client.Fetch(fetchCtx, f.base+"/bandwidths/"+filename)
	if err != nil {
		return "", nil, err
	}

	return filename, ParseBandwidthFile(text), nil
}

// authorityName maps an authority fingerprint to its known name, falling
// back to the fingerprint itself.
func (f *Fetcher) authorityName(fingerprint string) string {
	for _, a := range f.authorities {
		if a.Fingerprint == fingerprint {
			return a.Name
		}
	}
	return fingerprint
}

func (f *Fetcher) bandwidthSourceName(filename string) string {
	if filename == "" {
		return ""
	}
	if fingerprint := BandwidthFileAuthority(filename); fingerprint != "" {
		return f.authorityName(fingerprint)
	}
	return "bandwidth-file"
}

// buildRelayIndex merges every vote's relays into one entry per
// fingerprint and overlays bandwidth-file measurements. Authorities are
// visited in name order so the first-seen nickname is deterministic.
func buildRelayIndex(votes map[string]*Vote, measurements map[string]int64, source string) map[string]*RelayIndexEntry {
	names := make([]string, 0, len(votes))
	for name := range votes {
		names = append(names, name)
	}
	sort.Strings(names)

	index := make(map[string]*RelayIndexEntry)
	for _, name := range names {
		for fingerprint, entry := range votes[name].Relays {
			idx, ok := index[fingerprint]
			if !ok {
				idx = &RelayIndexEntry{
					Fingerprint:           fingerprint,
					Nickname:              entry.Nickname,
					Votes:                 make(map[string]*RelayVoteEntry),
					BandwidthMeasurements: make(map[string]int64),
				}
				index[fingerprint] = idx
			}
			idx.Votes[name] = entry
		}
	}

	if source != "" {
		for fingerprint, bw := range measurements {
			if idx, ok := index[fingerprint]; ok {
				idx.BandwidthMeasurements[source] = bw
			}
		}
	}

	return index
}
