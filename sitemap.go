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
	"net/http"
	"strings"

	"github.com/antchfx/xmlquery"
)

// FetchSitemapLinks collects <loc> entries from the given sitemap URLs.
// Sitemap indexes are followed one level deep. Used by sites whose listing
// discovery runs off published content sitemaps instead of page walking.
func FetchSitemapLinks(ctx context.Context, client *http.Client, sitemapURLs []string) ([]string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	seen := make(map[string]bool)
	var links []string
	for _, sitemapURL := range sitemapURLs {
		locs, nested, err := fetchSitemap(ctx, client, sitemapURL)
		if err != nil {
			return links, err
		}
		for _, child := range nested {
			childLocs, _, err := fetchSitemap(ctx, client, child)
			if err != nil {
				continue
			}
			locs = append(locs, childLocs...)
		}
		for _, loc := range locs {
			if !seen[loc] {
				seen[loc] = true
				links = append(links, loc)
			}
		}
	}
	return links, nil
}

// fetchSitemap returns page locations and, for index files, nested sitemap
// locations.
func fetchSitemap(ctx context.Context, client *http.Client, sitemapURL string) (locs, nested []string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("sitemap %s: status %d", sitemapURL, resp.StatusCode)
	}

	doc, err := xmlquery.Parse(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	for _, node := range xmlquery.Find(doc, "//urlset/url/loc") {
		if loc := strings.TrimSpace(node.InnerText()); loc != "" {
			locs = append(locs, loc)
		}
	}
	for _, node := range xmlquery.Find(doc, "//sitemapindex/sitemap/loc") {
		if loc := strings.TrimSpace(node.InnerText()); loc != "" {
			nested = append(nested, loc)
		}
	}
	return locs, nested, nil
}
