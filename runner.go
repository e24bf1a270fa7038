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
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// IngestSink is where finished items land. The store implements it; tests
// substitute an in-memory fake.
type IngestSink interface {
	ContentLookup
	// Upsert persists the item and replaces its stream set. Streams not in
	// the new set are deactivated, not deleted.
	Upsert(ctx context.Context, item *ContentItem, streams []ResolvedStream) error
}

// RunnerConfig assembles one discovery run.
type RunnerConfig struct {
	Sites   []*Site
	Sink    IngestSink
	SideLog *SideLog
	Log     *slog.Logger

	// Session parameterizes the browser session each site gets.
	Session SessionConfig
	// HTTPClient serves resolvers, validation probes and sitemap fetches.
	HTTPClient *http.Client

	// RequestDelay is the mandatory pause between page loads per site.
	// Zero means 1s.
	RequestDelay time.Duration
	// MaxItemsPerSite bounds new items processed per site. Zero means
	// unbounded.
	MaxItemsPerSite int
	// MaxPagesPerListing bounds the walk per listing entry point.
	MaxPagesPerListing int
	// ScrollAttempts bounds the infinite-scroll loop per listing page.
	// Zero uses the walker's default.
	ScrollAttempts int
	// SkipStale leaves known items whose streams have all gone inactive
	// untouched instead of revisiting them.
	SkipStale bool
	// SiteConcurrency is how many sites run at once. Zero means 2.
	SiteConcurrency int

	// OpenFetcher overrides browser session creation; tests inject a stub.
	// Nil uses a real headless session.
	OpenFetcher func(SessionConfig) (Fetcher, error)
}

// Runner walks every configured site, pushing discovered items through
// dedup, resolution, validation and persistence. One browser session per
// site, sites in parallel, items within a site sequential.
type Runner struct {
	cfg   RunnerConfig
	stats *RunStats
	gate  *DedupGate
}

func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 20 * time.Second}
	}
	if cfg.RequestDelay <= 0 {
		cfg.RequestDelay = time.Second
	}
	if cfg.SiteConcurrency <= 0 {
		cfg.SiteConcurrency = 2
	}
	if cfg.OpenFetcher == nil {
		cfg.OpenFetcher = func(sc SessionConfig) (Fetcher, error) {
			return OpenSession(sc)
		}
	}
	return &Runner{
		cfg:   cfg,
		stats: NewRunStats(),
		gate:  NewDedupGate(cfg.Sink),
	}
}

// Run executes the whole discovery run and returns its stats. A site
// failing wholesale doesn't abort the others; the first site-level error
// is still reported after all sites finish.
func (r *Runner) Run(ctx context.Context) (*RunStats, error) {
	runID := uuid.NewString()
	r.stats.RunID = runID
	log := r.cfg.Log.With("run_id", runID)
	log.Info("starting discovery run", "sites", len(r.cfg.Sites))

	// One round trip to the store; Check never queries again during the run.
	if err := r.gate.Load(ctx); err != nil {
		return r.stats, fmt.Errorf("loading dedup sets: %w", err)
	}

	sem := make(chan struct{}, r.cfg.SiteConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, site := range r.cfg.Sites {
		wg.Add(1)
		go func(site *Site) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := r.runSite(ctx, log, site); err != nil {
				log.Error("site run failed", "site", site.Name, "error", err)
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("site %s: %w", site.Name, err)
				}
				mu.Unlock()
			}
		}(site)
	}
	wg.Wait()

	r.stats.LogSummary(log)
	return r.stats, firstErr
}

func (r *Runner) runSite(ctx context.Context, log *slog.Logger, site *Site) error {
	log = log.With("site", site.Name)

	fetcher, err := r.cfg.OpenFetcher(r.cfg.Session)
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	defer fetcher.Close()

	limiter := rate.NewLimiter(rate.Every(r.cfg.RequestDelay), 1)
	robots := NewRobotsGuard(site.Robots, r.cfg.Session.UserAgent, r.cfg.HTTPClient)
	validator := &Validator{Client: r.cfg.HTTPClient, Log: log}

	processed := 0
	walker := r.newWalker(site, fetcher, limiter, robots, log)
	walker.Visit = func(pageURL string, links []string) (int, bool, error) {
		r.stats.PagesFetched.Add(1)
		newItems := 0
		for _, link := range links {
			if err := ctx.Err(); err != nil {
				return newItems, true, err
			}
			if r.cfg.MaxItemsPerSite > 0 && processed >= r.cfg.MaxItemsPerSite {
				log.Info("item quota reached", "processed", processed)
				return newItems, true, nil
			}

			contentID := site.ItemContentID(link)
			decision := r.gate.Check(contentID)
			if decision == DecisionSkipSeen || decision == DecisionSkipKnown ||
				(decision == DecisionRevisit && r.cfg.SkipStale) {
				r.stats.ItemsSkipped.Add(1)
				continue
			}

			newItems++
			processed++
			r.stats.ItemsDiscovered.Add(1)
			fail := FailedItem{Site: site.Name, SourceURL: link, ContentID: contentID}
			if err := r.processItem(ctx, log, site, fetcher, limiter, robots, validator, contentID, link, &fail); err != nil {
				// Item failures are contained: log, side-log, move on.
				r.stats.ItemsFailed.Add(1)
				log.Warn("item failed", "url", link, "error", err)
				fail.Stage = failureStage(err)
				fail.Error = err.Error()
				r.cfg.SideLog.Record(fail)
			}
		}
		return newItems, false, nil
	}

	return walker.Walk(ctx)
}

func (r *Runner) newWalker(site *Site, fetcher Fetcher, limiter *rate.Limiter, robots *RobotsGuard, log *slog.Logger) *Walker {
	return &Walker{
		Site:           site,
		Fetcher:        fetcher,
		Limiter:        limiter,
		Robots:         robots,
		HTTPClient:     r.cfg.HTTPClient,
		Log:            log,
		MaxPages:       r.cfg.MaxPagesPerListing,
		ScrollAttempts: r.cfg.ScrollAttempts,
	}
}

// processItem runs the per-item pipeline: render the detail page, extract
// metadata and embed candidates, resolve, validate, persist.
func (r *Runner) processItem(
	ctx context.Context,
	log *slog.Logger,
	site *Site,
	fetcher Fetcher,
	limiter *rate.Limiter,
	robots *RobotsGuard,
	validator *Validator,
	contentID, sourceURL string,
	fail *FailedItem,
) error {
	if !robots.Allowed(sourceURL) {
		return fmt.Errorf("%w: robots.txt disallows %s", ErrBlocked, sourceURL)
	}
	if err := limiter.Wait(ctx); err != nil {
		return err
	}

	pg, err := fetcher.Render(ctx, sourceURL, []Interaction{Wait(1500 * time.Millisecond)})
	if err != nil {
		return fmt.Errorf("rendering detail page: %w", err)
	}

	item := ExtractMetadata(pg, site)
	item.ContentID = contentID
	fail.Title = item.Title
	pageQuality := ExtractQuality(pg.HTML, site)

	candidates, err := ExtractEmbedCandidates(pg.HTML, pg.FinalURL, site)
	if err != nil {
		return fmt.Errorf("extracting embed candidates: %w", err)
	}

	env := &ResolveEnv{
		Fetcher: fetcher,
		Client:  r.cfg.HTTPClient,
		Site:    site,
		PageURL: pg.FinalURL,
		Log:     log,
	}
	// Validation runs inside the resolve loop so a rejected stream sends
	// FirstSuccess on to the next server instead of ending the item.
	accept := func(stream *ResolvedStream) error {
		r.stats.StreamsResolved.Add(1)
		fail.StreamURLs = append(fail.StreamURLs, stream.URL)
		if err := validator.QuickCheck(stream.URL); err != nil {
			r.stats.StreamsRejected.Add(1)
			return err
		}
		if site.RequireDeepCheck {
			if err := validator.DeepCheck(ctx, stream.URL, pg.FinalURL); err != nil {
				r.stats.StreamsRejected.Add(1)
				return err
			}
		}
		return nil
	}
	valid := ResolveStreams(ctx, env, candidates, accept)
	for i := range valid {
		if valid[i].Quality == "" || valid[i].Quality == QualityUnknown {
			valid[i].Quality = pageQuality
		}
		if valid[i].Language == "" {
			valid[i].Language = DefaultLanguage
		}
	}
	r.stats.StreamsValidated.Add(int64(len(valid)))

	if len(valid) == 0 && !site.PersistWithoutStreams {
		return fmt.Errorf("no playable streams for %s", sourceURL)
	}

	if err := r.cfg.Sink.Upsert(ctx, item, valid); err != nil {
		return fmt.Errorf("persisting %s: %w", contentID, err)
	}
	r.stats.ItemsPersisted.Add(1)
	log.Info("item persisted",
		"title", item.Title, "year", item.ReleaseYear, "streams", len(valid))
	return nil
}

// failureStage names the pipeline stage a contained error came from for
// the side-log.
func failureStage(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "rendering detail page"):
		return "fetch"
	case strings.Contains(msg, "extracting embed"):
		return "extract"
	case strings.Contains(msg, "no playable streams"):
		return "validate"
	case strings.Contains(msg, "persisting"):
		return "persist"
	default:
		return "pipeline"
	}
}
