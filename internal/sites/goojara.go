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

package sites

import (
	"regexp"

	"github.com/agentberlin/streamsnake"
)

// goojaraItemURL: detail pages are a short opaque token after /m. Listing
// and category pages (/watch-movies, /mTv) fail the length bound.
var goojaraItemURL = regexp.MustCompile(`^/m[a-zA-Z0-9]{5,6}$`)

// Goojara lists movies on an infinite-scroll page with a ?p= fallback.
// Server links bounce through a go.php redirect to the actual hoster, so
// resolution is a plain redirect follow.
func Goojara() *streamsnake.Site {
	return &streamsnake.Site{
		Name:    "goojara",
		BaseURL: "https://www.goojara.to",
		ListingURLs: []string{
			"https://www.goojara.to/watch-movies",
		},
		ItemLinkLocators: []string{
			"div.dflex > div > a",
			"div.mxwd a",
			"a[href^='/m']",
		},
		ItemURLPattern: goojaraItemURL,
		TitleSelectors: []string{
			"div.marl h1",
			"h1",
		},
		SynopsisSelectors: []string{
			"div.marl p",
			"p.fimm",
		},
		PosterSelectors: []string{
			"div.mimg img",
			"meta[property='og:image']",
		},
		QualitySelectors: []string{
			"div.marl span.hd",
			"span.quality",
		},
		EmbedLocators: []string{
			"div.wsel a[href*='go.php']",
			"a[href*='go.php']",
		},
		ServerPriority: map[string]int{
			"dood":   0,
			"wootly": 1,
		},
		Resolver:              streamsnake.RedirectResolver{},
		Mode:                  streamsnake.CollectAll,
		RequireDeepCheck:      false,
		PersistWithoutStreams: true,
		Pagination: streamsnake.PaginationConfig{
			ParamNames: []string{"p"},
			UseScroll:  true,
		},
		Robots: streamsnake.RobotsIgnore,
	}
}
