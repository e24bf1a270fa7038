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

var sflixItemURL = regexp.MustCompile(`^/movie/[a-z0-9-]+-\d+$`)

// trackingHosts are iframe hosts that carry ads or analytics, never
// streams. Shared by the sites that extract raw iframes.
var trackingHosts = []string{
	"*doubleclick*",
	"*googlesyndication*",
	"*google-analytics*",
	"*googletagmanager*",
	"*adservice*",
	"*facebook*",
	"*adsco*",
	"*popads*",
}

// Sflix paginates with a classic ?page= parameter and loads the player
// iframe after a server tab is selected, so candidates resolve by polling
// for the iframe src.
func Sflix() *streamsnake.Site {
	return &streamsnake.Site{
		Name:    "sflix",
		BaseURL: "https://sflix.to",
		ListingURLs: []string{
			"https://sflix.to/movie",
		},
		ItemLinkLocators: []string{
			".flw-item .film-poster > a",
			"a.film-poster-ahref",
			"a[href^='/movie/']",
		},
		ItemURLPattern: sflixItemURL,
		TitleSelectors: []string{
			"h2.heading-name a",
			"h2.heading-name",
			".detail_page-infor h2",
		},
		SynopsisSelectors: []string{
			".description",
			".detail_page-infor .description",
		},
		PosterSelectors: []string{
			".detail_page-infor .film-poster img",
			".film-poster img",
			"meta[property='og:image']",
		},
		QualitySelectors: []string{
			".detail_page-infor span.quality",
			"span.quality",
		},
		EmbedLocators: []string{
			".link-item[data-id]",
			"a[data-id]",
			"iframe#iframe-embed",
		},
		ExcludedEmbedHosts: trackingHosts,
		ServerPriority: map[string]int{
			"upcloud":   0,
			"megacloud": 1,
			"vidcloud":  2,
			"akcloud":   3,
		},
		Resolver:              streamsnake.IframePollResolver{},
		Mode:                  streamsnake.CollectAll,
		RequireDeepCheck:      false,
		PersistWithoutStreams: true,
		Pagination: streamsnake.PaginationConfig{
			ParamNames:     []string{"page"},
			UseNextControl: true,
		},
		Robots: streamsnake.RobotsIgnore,
	}
}
