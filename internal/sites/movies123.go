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

var movies123ItemURL = regexp.MustCompile(`^/film/[a-z0-9-]+$`)

// Movies123 exposes server choices as data-linkid attributes and answers
// an ajax sources endpoint with the embed link, no browser interaction
// needed past the detail page itself.
func Movies123() *streamsnake.Site {
	return &streamsnake.Site{
		Name:    "123movies",
		BaseURL: "https://ww.123movies.ac",
		ListingURLs: []string{
			"https://ww.123movies.ac/movies",
		},
		ItemLinkLocators: []string{
			".ml-item > a",
			"a[href^='/film/']",
		},
		ItemURLPattern: movies123ItemURL,
		TitleSelectors: []string{
			"h1[itemprop='name']",
			".mvic-desc h3",
		},
		SynopsisSelectors: []string{
			".mvic-desc .desc",
			"p[itemprop='description']",
		},
		PosterSelectors: []string{
			".mvic-thumb img",
			"meta[property='og:image']",
		},
		QualitySelectors: []string{
			".mvic-info .quality",
			"span.quality",
		},
		EmbedLocators: []string{
			"a[data-linkid]",
			".server-item[data-linkid]",
		},
		ExcludedEmbedHosts: trackingHosts,
		Resolver: streamsnake.AjaxSourcesResolver{
			EndpointFormat: "/ajax/episode/sources/%s",
		},
		Mode:                  streamsnake.CollectAll,
		RequireDeepCheck:      false,
		PersistWithoutStreams: false,
		Pagination: streamsnake.PaginationConfig{
			ParamNames:     []string{"page"},
			UseNextControl: true,
		},
		Robots: streamsnake.RobotsIgnore,
	}
}
