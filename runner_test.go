// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package streamsnake

import (
	"context"
	"encoding/json"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentberlin/streamsnake/testutil"
)

// fakeSink is an in-memory IngestSink recording everything upserted. It
// counts DedupSets calls so tests can prove the gate loads exactly once.
type fakeSink struct {
	mu         sync.Mutex
	items      map[string]*ContentItem
	streams    map[string][]ResolvedStream
	dedupCalls int
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		items:   make(map[string]*ContentItem),
		streams: make(map[string][]ResolvedStream),
	}
}

func (s *fakeSink) DedupSets(_ context.Context) (map[string]bool, map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dedupCalls++
	known := make(map[string]bool, len(s.items))
	stale := make(map[string]bool)
	for id := range s.items {
		known[id] = true
		if len(s.streams[id]) == 0 {
			stale[id] = true
		}
	}
	return known, stale, nil
}

func (s *fakeSink) Upsert(_ context.Context, item *ContentItem, streams []ResolvedStream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ContentID] = item
	s.streams[item.ContentID] = streams
	return nil
}

func (s *fakeSink) get(contentID string) (*ContentItem, []ResolvedStream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[contentID], s.streams[contentID]
}

// fullFixtureSite configures the whole pipeline against the fixture: deep
// validation required, streamless items rejected.
func fullFixtureSite(baseURL string) *Site {
	return &Site{
		Name:               "fixture",
		BaseURL:            baseURL,
		ListingURLs:        []string{baseURL + "/movie"},
		ItemLinkLocators:   []string{".film-poster a"},
		ItemURLPattern:     regexp.MustCompile(`^/movie/[a-z]+-\d+$`),
		TitleSelectors:     []string{"h2.heading-name"},
		SynopsisSelectors:  []string{"p.description"},
		PosterSelectors:    []string{".film-poster img"},
		QualitySelectors:   []string{"span.quality"},
		EmbedLocators:      []string{"a.link-item", "iframe"},
		ExcludedEmbedHosts: []string{"*doubleclick*"},
		ServerPriority:     map[string]int{"upcloud": 0, "vidcloud": 1},
		Resolver:           IframePollResolver{},
		Mode:               CollectAll,
		RequireDeepCheck:   true,
		Pagination:         PaginationConfig{ParamNames: []string{"page"}},
		Robots:             RobotsIgnore,
	}
}

func TestRunnerEndToEnd(t *testing.T) {
	srv := testutil.NewStreamSite()
	defer srv.Close()

	site := fullFixtureSite(srv.URL)
	sink := newFakeSink()
	fetcher := &httpFetcher{client: srv.Client()}

	runner := NewRunner(RunnerConfig{
		Sites:        []*Site{site},
		Sink:         sink,
		Log:          testWalkerLogger(),
		HTTPClient:   srv.Client(),
		RequestDelay: time.Millisecond,
		OpenFetcher:  func(SessionConfig) (Fetcher, error) { return fetcher, nil },
	})

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stats)

	// Three items on page 1, the page-2 repeat of beta is skipped, gamma's
	// only stream fails deep validation.
	assert.Equal(t, int64(3), stats.ItemsDiscovered.Load())
	assert.Equal(t, int64(2), stats.ItemsPersisted.Load())
	assert.Equal(t, int64(1), stats.ItemsFailed.Load())
	assert.Equal(t, int64(1), stats.ItemsSkipped.Load())
	assert.Equal(t, int64(4), stats.PagesFetched.Load())

	// One candidate per item survives extraction (alpha's about:blank link
	// and beta's tracking iframe never become candidates); gamma's stream
	// is the lone deep-check rejection.
	assert.Equal(t, int64(3), stats.StreamsResolved.Load())
	assert.Equal(t, int64(2), stats.StreamsValidated.Load())
	assert.Equal(t, int64(1), stats.StreamsRejected.Load())

	alphaID := site.ItemContentID(srv.URL + "/movie/alpha-1001")
	alpha, alphaStreams := sink.get(alphaID)
	require.NotNil(t, alpha)
	assert.Equal(t, "Alpha", alpha.Title)
	assert.Equal(t, 2021, alpha.ReleaseYear)
	assert.Equal(t, "A daring rescue.", alpha.Synopsis)
	assert.Equal(t, srv.URL+"/posters/alpha.jpg", alpha.PosterURL)
	require.Len(t, alphaStreams, 1)
	assert.Equal(t, srv.URL+"/embed/upcloud/alpha-stream-1", alphaStreams[0].URL)
	assert.Equal(t, "UpCloud", alphaStreams[0].ServerName)
	// The stream inherits the page badge since the resolver reported none.
	assert.Equal(t, ClassifyQuality("HD"), alphaStreams[0].Quality)

	betaID := site.ItemContentID(srv.URL + "/movie/beta-1002")
	beta, betaStreams := sink.get(betaID)
	require.NotNil(t, beta)
	assert.Equal(t, "Beta", beta.Title)
	require.Len(t, betaStreams, 1)
	// The tracking-host iframe never became a candidate.
	assert.Equal(t, srv.URL+"/embed/vidcloud/beta-stream-1", betaStreams[0].URL)

	gammaID := site.ItemContentID(srv.URL + "/movie/gamma-1003")
	gamma, _ := sink.get(gammaID)
	assert.Nil(t, gamma)

	// Dedup knowledge is loaded in one pass before the walk starts.
	assert.Equal(t, 1, sink.dedupCalls)

	assert.True(t, fetcher.closed)
}

func TestRunnerItemQuota(t *testing.T) {
	srv := testutil.NewStreamSite()
	defer srv.Close()

	site := fullFixtureSite(srv.URL)
	sink := newFakeSink()

	runner := NewRunner(RunnerConfig{
		Sites:           []*Site{site},
		Sink:            sink,
		Log:             testWalkerLogger(),
		HTTPClient:      srv.Client(),
		RequestDelay:    time.Millisecond,
		MaxItemsPerSite: 1,
		OpenFetcher: func(SessionConfig) (Fetcher, error) {
			return &httpFetcher{client: srv.Client()}, nil
		},
	})

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ItemsDiscovered.Load())
	assert.Equal(t, int64(1), stats.ItemsPersisted.Load())
}

func TestRunnerSkipStaleLeavesKnownItemsAlone(t *testing.T) {
	srv := testutil.NewStreamSite()
	defer srv.Close()

	site := fullFixtureSite(srv.URL)
	alphaID := site.ItemContentID(srv.URL + "/movie/alpha-1001")

	run := func(skipStale bool) (*RunStats, *fakeSink) {
		sink := newFakeSink()
		// Alpha is already known but all its streams are gone.
		sink.items[alphaID] = &ContentItem{ContentID: alphaID, Title: "Alpha"}

		runner := NewRunner(RunnerConfig{
			Sites:        []*Site{site},
			Sink:         sink,
			Log:          testWalkerLogger(),
			HTTPClient:   srv.Client(),
			RequestDelay: time.Millisecond,
			SkipStale:    skipStale,
			OpenFetcher: func(SessionConfig) (Fetcher, error) {
				return &httpFetcher{client: srv.Client()}, nil
			},
		})
		stats, err := runner.Run(context.Background())
		require.NoError(t, err)
		return stats, sink
	}

	stats, sink := run(true)
	assert.Equal(t, int64(2), stats.ItemsDiscovered.Load(), "stale alpha is excluded")
	// Alpha is skipped alongside beta's page-2 repeat.
	assert.Equal(t, int64(2), stats.ItemsSkipped.Load())
	item, _ := sink.get(alphaID)
	assert.Empty(t, item.SourceURL, "the seeded record was never touched")

	stats, sink = run(false)
	assert.Equal(t, int64(3), stats.ItemsDiscovered.Load(), "stale alpha is revisited")
	item, streams := sink.get(alphaID)
	assert.Equal(t, "Alpha", item.Title)
	assert.Len(t, streams, 1)
}

// A first-priority server whose stream fails validation must not end the
// item: the next server in priority order gets its turn.
func TestRunnerFirstSuccessFallsBackToNextServer(t *testing.T) {
	site := &Site{
		Name:             "scripted",
		BaseURL:          "https://scripted.test",
		ListingURLs:      []string{"https://scripted.test/movie"},
		ItemLinkLocators: []string{".film-poster a"},
		ItemURLPattern:   regexp.MustCompile(`^/movie/[a-z]+-\d+$`),
		TitleSelectors:   []string{"h2.heading-name"},
		EmbedLocators:    []string{"a.link-item"},
		ServerPriority:   map[string]int{"upcloud": 0, "vidcloud": 1},
		Resolver:         IframePollResolver{},
		Mode:             FirstSuccess,
		Pagination:       PaginationConfig{ParamNames: []string{"page"}},
		Robots:           RobotsIgnore,
	}

	deadURL := "https://u.example/a"
	liveURL := "https://cdn.example/vidcloud/healthy-stream-0001"
	fetcher := &scriptFetcher{pages: map[string]*RenderedPage{
		"https://scripted.test/movie": {
			FinalURL: "https://scripted.test/movie",
			HTML: `<html><body>
<div class="film-poster"><a href="/movie/one-1">One</a></div>
</body></html>`,
		},
		"https://scripted.test/movie/one-1": {
			FinalURL: "https://scripted.test/movie/one-1",
			HTML: `<html><body><h2 class="heading-name">One</h2>
<a class="link-item" href="` + deadURL + `">UpCloud</a>
<a class="link-item" href="` + liveURL + `">VidCloud</a>
</body></html>`,
		},
	}}

	sink := newFakeSink()
	runner := NewRunner(RunnerConfig{
		Sites:              []*Site{site},
		Sink:               sink,
		Log:                testWalkerLogger(),
		RequestDelay:       time.Millisecond,
		MaxPagesPerListing: 1,
		OpenFetcher:        func(SessionConfig) (Fetcher, error) { return fetcher, nil },
	})

	stats, err := runner.Run(context.Background())
	require.NoError(t, err)

	// UpCloud resolves first but its URL fails the quick check; VidCloud
	// is tried next and carries the item.
	assert.Equal(t, int64(1), stats.ItemsPersisted.Load())
	assert.Equal(t, int64(0), stats.ItemsFailed.Load())
	assert.Equal(t, int64(2), stats.StreamsResolved.Load())
	assert.Equal(t, int64(1), stats.StreamsRejected.Load())
	assert.Equal(t, int64(1), stats.StreamsValidated.Load())

	_, streams := sink.get(site.ItemContentID("https://scripted.test/movie/one-1"))
	require.Len(t, streams, 1)
	assert.Equal(t, liveURL, streams[0].URL)
	assert.Equal(t, "VidCloud", streams[0].ServerName)
}

func TestRunnerWalkerCarriesQuotas(t *testing.T) {
	runner := NewRunner(RunnerConfig{
		Sink:               newFakeSink(),
		MaxPagesPerListing: 7,
		ScrollAttempts:     4,
	})
	w := runner.newWalker(&Site{Name: "quota"}, &scriptFetcher{}, nil, nil, testWalkerLogger())
	assert.Equal(t, 7, w.MaxPages)
	assert.Equal(t, 4, w.ScrollAttempts)
}

func TestRunnerSideLogsFailedItems(t *testing.T) {
	srv := testutil.NewStreamSite()
	defer srv.Close()

	sideLogPath := t.TempDir() + "/failed_items.json"
	sideLog, err := OpenSideLog(sideLogPath)
	require.NoError(t, err)

	site := fullFixtureSite(srv.URL)
	sink := newFakeSink()

	runner := NewRunner(RunnerConfig{
		Sites:        []*Site{site},
		Sink:         sink,
		SideLog:      sideLog,
		Log:          testWalkerLogger(),
		HTTPClient:   srv.Client(),
		RequestDelay: time.Millisecond,
		OpenFetcher: func(SessionConfig) (Fetcher, error) {
			return &httpFetcher{client: srv.Client()}, nil
		},
	})

	_, err = runner.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, sideLog.Close())

	entries := readSideLog(t, sideLogPath)
	require.Len(t, entries, 1)
	assert.Equal(t, "fixture", entries[0].Site)
	assert.Equal(t, srv.URL+"/movie/gamma-1003", entries[0].SourceURL)
	assert.Equal(t, "validate", entries[0].Stage)
	// Enough identity for manual reconciliation: the synthesized content
	// id, the extracted title and the streams that were tried.
	assert.Equal(t, site.ItemContentID(srv.URL+"/movie/gamma-1003"), entries[0].ContentID)
	assert.Equal(t, "Gamma", entries[0].Title)
	assert.Equal(t, []string{srv.URL + "/embed/dead/gamma-stream-1"}, entries[0].StreamURLs)
}

func TestRunnerSessionFailureIsReported(t *testing.T) {
	srv := testutil.NewStreamSite()
	defer srv.Close()

	runner := NewRunner(RunnerConfig{
		Sites:        []*Site{fullFixtureSite(srv.URL)},
		Sink:         newFakeSink(),
		Log:          testWalkerLogger(),
		HTTPClient:   srv.Client(),
		RequestDelay: time.Millisecond,
		OpenFetcher: func(SessionConfig) (Fetcher, error) {
			return nil, assert.AnError
		},
	})

	_, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fixture")
	assert.Contains(t, err.Error(), "opening session")
}

func TestFailureStage(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"rendering detail page: timeout", "fetch"},
		{"extracting embed candidates: bad markup", "extract"},
		{"no playable streams for https://x", "validate"},
		{"persisting abc_123: disk full", "persist"},
		{"something else entirely", "pipeline"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, failureStage(errSentinel(tt.msg)), tt.msg)
	}
}

type errSentinel string

func (e errSentinel) Error() string { return string(e) }

// readSideLog decodes the JSON-lines side log written during a run.
func readSideLog(t *testing.T, path string) []FailedItem {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []FailedItem
	dec := json.NewDecoder(f)
	for dec.More() {
		var entry FailedItem
		require.NoError(t, dec.Decode(&entry))
		entries = append(entries, entry)
	}
	return entries
}
