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
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// DefaultUserAgent mimics a desktop Chrome client. Target sites block the
// default automation UA outright.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Interaction is one scripted browser action executed during a render.
type Interaction struct {
	kind     string
	url      string
	selector string
	wait     time.Duration
}

// Navigate loads url in the session tab.
func Navigate(url string) Interaction { return Interaction{kind: "navigate", url: url} }

// ScrollToBottom scrolls the page to its full height, triggering
// lazy-loaded content.
func ScrollToBottom() Interaction { return Interaction{kind: "scroll"} }

// Wait pauses for d, letting scripts hydrate and requests settle.
func Wait(d time.Duration) Interaction { return Interaction{kind: "wait", wait: d} }

// Click activates the first element matching selector. Selectors starting
// with "//" are treated as XPath, everything else as CSS.
func Click(selector string) Interaction { return Interaction{kind: "click", selector: selector} }

// RenderedPage is the outcome of one render: the address the browser ended
// up on, the post-script markup, and the document title.
type RenderedPage struct {
	FinalURL string
	HTML     string
	Title    string
}

// Fetcher renders pages. The production implementation is Session; tests
// substitute a scripted fake.
//
// An empty url means "stay on the current page": interactions run against
// whatever the session last loaded. The scroll loop depends on this to
// re-capture markup between scrolls without re-navigating.
type Fetcher interface {
	Render(ctx context.Context, url string, interactions []Interaction) (*RenderedPage, error)
	Close() error
}

// SessionConfig configures the browser session for one crawl run.
type SessionConfig struct {
	Headless     bool
	WindowWidth  int
	WindowHeight int
	UserAgent    string
	// PageTimeout bounds every Render call. Zero means 30s.
	PageTimeout time.Duration
}

// blockedMarkers are substrings of rendered markup that indicate the site
// served an access-denied page instead of content.
var blockedMarkers = []string{
	"access denied",
	"403 forbidden",
	"attention required",
	"checking your browser",
	"just a moment",
	"are you a robot",
}

// Session is one long-lived headless-Chrome session. Startup costs a few
// hundred milliseconds plus ~100-200MB RAM, so a run opens exactly one and
// amortizes it across every page; Close must run on every exit path.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc
	timeout     time.Duration

	mu     sync.Mutex
	closed bool
}

// OpenSession starts headless Chrome with the automation fingerprint
// suppressed. Failure here is fatal to the run.
func OpenSession(cfg SessionConfig) (*Session, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.WindowWidth == 0 {
		cfg.WindowWidth = 1920
	}
	if cfg.WindowHeight == 0 {
		cfg.WindowHeight = 1080
	}
	if cfg.PageTimeout == 0 {
		cfg.PageTimeout = 30 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		chromedp.UserAgent(cfg.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserStop := chromedp.NewContext(allocCtx)

	s := &Session{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		browserStop: browserStop,
		timeout:     cfg.PageTimeout,
	}

	// Start the browser process and hide navigator.webdriver before any
	// site script can read it.
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(
			`Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`,
		).Do(ctx)
		return err
	}))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("starting browser session: %w", err)
	}
	return s, nil
}

// Render navigates to url, executes interactions in order, and returns the
// rendered page. ErrFetchTimeout and ErrBlocked are per-page failures the
// caller recovers from by skipping.
func (s *Session) Render(ctx context.Context, url string, interactions []Interaction) (*RenderedPage, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.mu.Unlock()

	runCtx, cancel := context.WithTimeout(s.browserCtx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var tasks chromedp.Tasks
	if url != "" {
		tasks = append(tasks,
			chromedp.Navigate(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
	}
	for _, in := range interactions {
		tasks = append(tasks, in.action())
	}

	var rendered RenderedPage
	tasks = append(tasks,
		chromedp.Location(&rendered.FinalURL),
		chromedp.Title(&rendered.Title),
		chromedp.OuterHTML("html", &rendered.HTML, chromedp.ByQuery),
	)

	if err := chromedp.Run(runCtx, tasks); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrFetchTimeout, url)
		}
		return nil, fmt.Errorf("rendering %s: %w", url, err)
	}

	if pageLooksBlocked(rendered.Title, rendered.HTML) {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, url)
	}
	return &rendered, nil
}

// Close terminates the browser process. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.browserStop()
	s.allocCancel()
	return nil
}

func (in Interaction) action() chromedp.Action {
	switch in.kind {
	case "navigate":
		return chromedp.Tasks{
			chromedp.Navigate(in.url),
			chromedp.WaitReady("body", chromedp.ByQuery),
		}
	case "scroll":
		return chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil)
	case "wait":
		return chromedp.Sleep(in.wait)
	case "click":
		if strings.HasPrefix(in.selector, "//") {
			return chromedp.Click(in.selector, chromedp.BySearch)
		}
		return chromedp.Click(in.selector, chromedp.ByQuery)
	default:
		return chromedp.Tasks{}
	}
}

func pageLooksBlocked(title, html string) bool {
	t := strings.ToLower(title)
	if strings.Contains(t, "403") {
		return true
	}
	// Markers sit in the first chunk of a block page; scanning the full
	// body would false-positive on article text quoting them.
	body := strings.ToLower(html)
	if len(body) > 4096 {
		body = body[:4096]
	}
	for _, marker := range blockedMarkers {
		if strings.Contains(t, marker) || strings.Contains(body, marker) {
			return true
		}
	}
	return false
}
