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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"golang.org/x/time/rate"
)

const (
	// emptyPageTolerance: this many consecutive listing pages with zero
	// new items end the walk ("end of reachable content").
	emptyPageTolerance = 3
	// emptyScrollTolerance: this many consecutive scrolls yielding no new
	// links mean the page is fully loaded.
	emptyScrollTolerance = 3
	// minListingBytes is the smallest body accepted as a real listing page
	// after a next-page navigation.
	minListingBytes = 1000
)

// nextControlLocators are tried in order when query-param rewriting fails.
// Disabled controls are excluded in the expression itself.
var nextControlLocators = []string{
	`//a[contains(text(), 'Next') and not(contains(@class, 'disabled'))]`,
	`//a[@rel='next' and not(contains(@class, 'disabled'))]`,
	`//a[contains(text(), '»')]`,
	`//a[contains(@class, 'next') and not(contains(@class, 'disabled'))]`,
	`//li[contains(@class, 'next') and not(contains(@class, 'disabled'))]/a`,
	`//a[contains(@aria-label, 'Next')]`,
}

// VisitFunc receives each fully loaded listing page's item links. It
// returns the number of links it actually queued as new work (duplicates
// don't count) and whether the walk should stop early (quota reached).
type VisitFunc func(pageURL string, links []string) (newItems int, stop bool, err error)

// Walker drives the listing walk for one site: load a page (scrolling it
// out if the site lazy-loads), hand the links to the visitor, then find the
// next page until the site or the quotas run out.
type Walker struct {
	Site    *Site
	Fetcher Fetcher
	// Limiter enforces the mandatory inter-request delay. Every page load
	// waits on it first.
	Limiter *rate.Limiter
	Robots  *RobotsGuard
	// HTTPClient serves sitemap fetches for sitemap-driven sites.
	HTTPClient *http.Client
	Log        *slog.Logger

	// MaxPages bounds the walk per listing entry point.
	MaxPages int
	// ScrollAttempts bounds the scroll loop per page.
	ScrollAttempts int
	// InitialWait and ScrollWait tune render settling times.
	InitialWait time.Duration
	ScrollWait  time.Duration

	// Visit receives each loaded page. Must be set before Walk.
	Visit VisitFunc
}

// Walk iterates every listing entry point of the site. Page-level failures
// (timeout, blocked) count as empty pages and the walk continues; only a
// visitor error or context cancellation aborts it.
func (w *Walker) Walk(ctx context.Context) error {
	if len(w.Site.Pagination.SitemapURLs) > 0 {
		return w.walkSitemaps(ctx)
	}

	for _, entry := range w.Site.ListingURLs {
		stop, err := w.walkListing(ctx, entry)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

func (w *Walker) walkListing(ctx context.Context, entry string) (stopped bool, err error) {
	log := w.Log.With("listing", entry)

	current, err := w.loadListingPage(ctx, entry)
	if err != nil {
		if isPageFailure(err) {
			log.Warn("listing entry unreachable, skipping", "error", err)
			return false, nil
		}
		return false, err
	}

	consecutiveEmpty := 0
	for pageNum := 1; pageNum <= w.maxPages(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		links, err := w.scrollOut(ctx, current)
		if err != nil && !isPageFailure(err) {
			return false, err
		}

		newItems, stop, err := w.Visit(current.FinalURL, links)
		if err != nil {
			return false, err
		}
		log.Info("listing page done",
			"page", pageNum, "links", len(links), "new", newItems)
		if stop {
			return true, nil
		}

		if newItems == 0 {
			consecutiveEmpty++
			if consecutiveEmpty >= emptyPageTolerance {
				log.Info("no new items on consecutive pages, ending walk",
					"pages", consecutiveEmpty)
				return false, nil
			}
		} else {
			consecutiveEmpty = 0
		}

		next, err := w.advance(ctx, current)
		if err != nil {
			if errors.Is(err, ErrPaginationExhausted) || isPageFailure(err) {
				log.Info("pagination exhausted", "page", pageNum)
				return false, nil
			}
			return false, err
		}
		current = next
	}
	return false, nil
}

func (w *Walker) maxPages() int {
	if w.MaxPages <= 0 {
		return 50
	}
	return w.MaxPages
}

// loadListingPage renders a listing URL after the rate limiter and robots
// guard clear it.
func (w *Walker) loadListingPage(ctx context.Context, pageURL string) (*RenderedPage, error) {
	if !w.Robots.Allowed(pageURL) {
		return nil, fmt.Errorf("%w: robots.txt disallows %s", ErrBlocked, pageURL)
	}
	if err := w.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return w.Fetcher.Render(ctx, pageURL, []Interaction{Wait(w.initialWait())})
}

// scrollOut extracts item links from a loaded page, scrolling it to the
// bottom repeatedly if the site lazy-loads, until no new links appear for
// several consecutive scrolls or the scroll quota runs out.
func (w *Walker) scrollOut(ctx context.Context, pg *RenderedPage) ([]string, error) {
	links, err := ExtractItemLinks(pg.HTML, pg.FinalURL, w.Site)
	if err != nil {
		return nil, err
	}
	if !w.Site.Pagination.UseScroll {
		return links, nil
	}

	known := make(map[string]bool, len(links))
	for _, l := range links {
		known[l] = true
	}

	emptyScrolls := 0
	for attempt := 0; attempt < w.scrollAttempts(); attempt++ {
		scrolled, err := w.Fetcher.Render(ctx, "", []Interaction{
			ScrollToBottom(),
			Wait(w.scrollWait()),
		})
		if err != nil {
			return links, err
		}

		more, err := ExtractItemLinks(scrolled.HTML, scrolled.FinalURL, w.Site)
		if err != nil {
			return links, err
		}

		found := 0
		for _, l := range more {
			if !known[l] {
				known[l] = true
				links = append(links, l)
				found++
			}
		}
		if found == 0 {
			emptyScrolls++
			if emptyScrolls >= emptyScrollTolerance {
				break
			}
		} else {
			emptyScrolls = 0
		}
	}
	return links, nil
}

// advance finds the next listing page. Strategies in order: rewrite the
// page query parameter, then activate a "next" control. Both must prove the
// browser actually moved: a changed address and a non-trivial body.
func (w *Walker) advance(ctx context.Context, current *RenderedPage) (*RenderedPage, error) {
	if next := rewritePageParam(current.FinalURL, w.Site.Pagination.ParamNames); next != "" && next != current.FinalURL {
		pg, err := w.loadListingPage(ctx, next)
		if err == nil && pg.FinalURL != current.FinalURL && len(pg.HTML) >= minListingBytes {
			return pg, nil
		}
		if err != nil && !isPageFailure(err) {
			return nil, err
		}
	}

	if w.Site.Pagination.UseNextControl {
		if pg, err := w.clickNextControl(ctx, current); err == nil {
			return pg, nil
		} else if !errors.Is(err, ErrPaginationExhausted) && !isPageFailure(err) {
			return nil, err
		}
	}

	return nil, ErrPaginationExhausted
}

func (w *Walker) clickNextControl(ctx context.Context, current *RenderedPage) (*RenderedPage, error) {
	doc, err := htmlquery.Parse(strings.NewReader(current.HTML))
	if err != nil {
		return nil, err
	}

	for _, locator := range nextControlLocators {
		node, err := htmlquery.Query(doc, locator)
		if err != nil || node == nil {
			continue
		}
		if err := w.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
		pg, err := w.Fetcher.Render(ctx, "", []Interaction{
			Click(locator),
			Wait(w.scrollWait()),
		})
		if err != nil {
			continue
		}
		if pg.FinalURL != current.FinalURL && len(pg.HTML) >= minListingBytes {
			return pg, nil
		}
	}
	return nil, ErrPaginationExhausted
}

// rewritePageParam bumps the first matching page parameter, or appends the
// first configured name at page 2 when none is present. Empty result means
// the strategy doesn't apply.
func rewritePageParam(rawURL string, paramNames []string) string {
	if len(paramNames) == 0 {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	for _, name := range paramNames {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				continue
			}
			q.Set(name, strconv.Itoa(n+1))
			u.RawQuery = q.Encode()
			return u.String()
		}
	}
	q.Set(paramNames[0], "2")
	u.RawQuery = q.Encode()
	return u.String()
}

// walkSitemaps short-circuits page walking for sitemap-driven sites: the
// whole candidate set arrives in one visit.
func (w *Walker) walkSitemaps(ctx context.Context) error {
	locs, err := FetchSitemapLinks(ctx, w.HTTPClient, w.Site.Pagination.SitemapURLs)
	if err != nil {
		w.Log.Warn("sitemap fetch failed", "error", err)
		return nil
	}

	var links []string
	for _, loc := range locs {
		if u, err := url.Parse(loc); err == nil && w.Site.MatchesItemURL(u.Path) {
			links = append(links, loc)
		}
	}
	_, _, err = w.Visit("sitemap", links)
	return err
}

func isPageFailure(err error) bool {
	return errors.Is(err, ErrFetchTimeout) || errors.Is(err, ErrBlocked)
}

func (w *Walker) initialWait() time.Duration {
	if w.InitialWait <= 0 {
		return 1500 * time.Millisecond
	}
	return w.InitialWait
}

func (w *Walker) scrollWait() time.Duration {
	if w.ScrollWait <= 0 {
		return 2 * time.Second
	}
	return w.ScrollWait
}

func (w *Walker) scrollAttempts() int {
	if w.ScrollAttempts <= 0 {
		return 10
	}
	return w.ScrollAttempts
}
