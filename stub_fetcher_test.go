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
	"io"
	"net/http"
	"regexp"
	"strings"
)

// httpFetcher renders pages with a plain GET, standing in for the browser
// session in tests against static fixture sites.
type httpFetcher struct {
	client *http.Client
	closed bool
}

func (f *httpFetcher) Render(ctx context.Context, pageURL string, _ []Interaction) (*RenderedPage, error) {
	if pageURL == "" {
		return nil, errors.New("httpFetcher cannot act on the current page")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	html := string(body)
	return &RenderedPage{
		FinalURL: resp.Request.URL.String(),
		HTML:     html,
		Title:    extractTitleForTest(html),
	}, nil
}

func (f *httpFetcher) Close() error {
	f.closed = true
	return nil
}

var testTitleRe = regexp.MustCompile(`<title>(.*?)</title>`)

func extractTitleForTest(html string) string {
	if m := testTitleRe.FindStringSubmatch(html); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// scriptFetcher serves scripted pages: navigations hit the pages map and
// in-place renders (scrolls, clicks) consume the inPlace queue.
type scriptFetcher struct {
	pages   map[string]*RenderedPage
	inPlace []*RenderedPage
	renders int
}

func (f *scriptFetcher) Render(_ context.Context, pageURL string, _ []Interaction) (*RenderedPage, error) {
	f.renders++
	if pageURL == "" {
		if len(f.inPlace) == 0 {
			return nil, errors.New("no scripted in-place render left")
		}
		pg := f.inPlace[0]
		f.inPlace = f.inPlace[1:]
		return pg, nil
	}
	pg, ok := f.pages[pageURL]
	if !ok {
		return nil, ErrFetchTimeout
	}
	return pg, nil
}

func (f *scriptFetcher) Close() error { return nil }
