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
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gobwas/glob"
)

// ResolveEnv carries everything a resolver needs for one detail page.
// PageURL is the detail page address and doubles as the Referer for any
// plain HTTP the resolver does.
type ResolveEnv struct {
	Fetcher Fetcher
	Client  *http.Client
	Site    *Site
	PageURL string
	Log     *slog.Logger
}

// Resolver turns one embed candidate into a playable stream URL. A nil
// stream with nil error is not allowed; failures return an error so the
// orchestrator can move to the next candidate.
type Resolver interface {
	Resolve(ctx context.Context, env *ResolveEnv, cand EmbedCandidate) (*ResolvedStream, error)
}

// ResolveStreams runs the site's resolver over the candidates in priority
// order. Each resolved stream is handed to accept before it counts; a
// rejected stream moves on to the next candidate, so FirstSuccess stops at
// the first accepted stream, not merely the first resolved one. A nil
// accept takes every resolved stream. CollectAll keeps going and returns
// everything accepted. Per-candidate failures are logged and skipped,
// never fatal.
func ResolveStreams(ctx context.Context, env *ResolveEnv, candidates []EmbedCandidate, accept func(*ResolvedStream) error) []ResolvedStream {
	ordered := orderByPriority(candidates, env.Site.ServerPriority)

	var streams []ResolvedStream
	for _, cand := range ordered {
		if ctx.Err() != nil {
			break
		}
		stream, err := env.Site.Resolver.Resolve(ctx, env, cand)
		if err != nil {
			env.Log.Debug("candidate did not resolve",
				"server", cand.ServerName, "url", cand.URL, "error", err)
			continue
		}
		if accept != nil {
			if err := accept(stream); err != nil {
				env.Log.Debug("resolved stream rejected",
					"server", stream.ServerName, "url", stream.URL, "error", err)
				continue
			}
		}
		streams = append(streams, *stream)
		if env.Site.Mode == FirstSuccess {
			break
		}
	}
	return streams
}

// orderByPriority sorts candidates by the site's server ranking, lowest
// rank first. Unranked servers keep document order after all ranked ones.
func orderByPriority(candidates []EmbedCandidate, priority map[string]int) []EmbedCandidate {
	if len(priority) == 0 {
		return candidates
	}
	ordered := make([]EmbedCandidate, len(candidates))
	copy(ordered, candidates)
	rank := func(c EmbedCandidate) int {
		if r, ok := priority[strings.ToLower(c.ServerName)]; ok {
			return r
		}
		return len(priority) + 1
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return rank(ordered[i]) < rank(ordered[j])
	})
	return ordered
}

// RedirectResolver follows the candidate's link through its HTTP redirect
// chain and takes the final address as the stream URL. Sites that gate
// hoster links behind a bounce endpoint resolve this way.
type RedirectResolver struct {
	// Timeout bounds the whole redirect chain. Zero means 15s.
	Timeout time.Duration
}

func (r RedirectResolver) Resolve(ctx context.Context, env *ResolveEnv, cand EmbedCandidate) (*ResolvedStream, error) {
	if cand.URL == "" {
		return nil, fmt.Errorf("candidate has no link to follow")
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, cand.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Referer", env.PageURL)

	resp, err := env.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	final := resp.Request.URL.String()
	if final == cand.URL {
		return nil, fmt.Errorf("no redirect from %s", cand.URL)
	}
	server := cand.ServerName
	if server == "" || server == ServerOther {
		server = ClassifyServer(final)
	}
	return &ResolvedStream{
		URL:        final,
		ServerName: server,
		Language:   DefaultLanguage,
	}, nil
}

// IframePollResolver activates a server control on the already loaded
// detail page and polls for the embed iframe to receive its src. Player
// pages populate the iframe asynchronously, so a few short waits are
// needed before giving up.
type IframePollResolver struct {
	// Attempts is the poll count per candidate. Zero means 3.
	Attempts int
	// PollWait is the settle time between polls. Zero means 2s.
	PollWait time.Duration
}

func (r IframePollResolver) Resolve(ctx context.Context, env *ResolveEnv, cand EmbedCandidate) (*ResolvedStream, error) {
	if cand.URL != "" {
		// The iframe was already populated at extraction time.
		return &ResolvedStream{
			URL:        cand.URL,
			ServerName: cand.ServerName,
			Language:   DefaultLanguage,
		}, nil
	}
	if cand.DataID == "" {
		return nil, fmt.Errorf("candidate has neither link nor data id")
	}

	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	wait := r.PollWait
	if wait <= 0 {
		wait = 2 * time.Second
	}

	selector := fmt.Sprintf(`//*[@data-id='%s' or @data-linkid='%s']`, cand.DataID, cand.DataID)
	interactions := []Interaction{Click(selector), Wait(wait)}
	for attempt := 0; attempt < attempts; attempt++ {
		pg, err := env.Fetcher.Render(ctx, "", interactions)
		if err != nil {
			return nil, err
		}
		// Only wait on subsequent polls, the click already happened.
		interactions = []Interaction{Wait(wait)}

		src, err := firstIframeSrc(pg.HTML, pg.FinalURL, env.Site)
		if err != nil {
			return nil, err
		}
		if src != "" {
			server := cand.ServerName
			if server == "" || server == ServerOther {
				server = ClassifyServer(src)
			}
			return &ResolvedStream{
				URL:        src,
				ServerName: server,
				Language:   DefaultLanguage,
			}, nil
		}
	}
	return nil, fmt.Errorf("iframe src never populated for %q", cand.Label)
}

// firstIframeSrc returns the first iframe src on the page that isn't an
// excluded (tracking) host, absolutized against the page URL.
func firstIframeSrc(html, pageURL string, site *Site) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	excluded := make([]glob.Glob, 0, len(site.ExcludedEmbedHosts))
	for _, pattern := range site.ExcludedEmbedHosts {
		if g, err := glob.Compile(pattern); err == nil {
			excluded = append(excluded, g)
		}
	}
	var src string
	doc.Find("iframe").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		raw, ok := sel.Attr("src")
		if !ok || raw == "" || strings.HasPrefix(raw, "about:") {
			return true
		}
		abs, _, okRef := normalizeRef(pageURL, raw)
		if !okRef || hostExcluded(abs, excluded) {
			return true
		}
		src = abs
		return false
	})
	return src, nil
}

// AjaxSourcesResolver exchanges the candidate's data id for a stream URL
// via the site's sources endpoint, which answers with a small JSON object
// carrying the link.
type AjaxSourcesResolver struct {
	// EndpointFormat receives the data id, e.g. "%s/ajax/episode/sources/%s"
	// after the base URL is joined.
	EndpointFormat string
	Timeout        time.Duration
}

func (r AjaxSourcesResolver) Resolve(ctx context.Context, env *ResolveEnv, cand EmbedCandidate) (*ResolvedStream, error) {
	if cand.DataID == "" {
		return nil, fmt.Errorf("candidate has no data id")
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := strings.TrimRight(env.Site.BaseURL, "/") + fmt.Sprintf(r.EndpointFormat, cand.DataID)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Referer", env.PageURL)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := env.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sources endpoint answered %d", resp.StatusCode)
	}

	var payload struct {
		Link string `json:"link"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding sources response: %w", err)
	}
	if payload.Link == "" {
		return nil, fmt.Errorf("sources response carries no link")
	}

	server := cand.ServerName
	if server == "" || server == ServerOther {
		server = ClassifyServer(payload.Link)
	}
	return &ResolvedStream{
		URL:        payload.Link,
		ServerName: server,
		Language:   DefaultLanguage,
	}, nil
}
