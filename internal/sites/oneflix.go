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

var oneflixItemURL = regexp.MustCompile(`^/movie/[a-z0-9-]+-\d+$`)

// Oneflix is the strict site of the set: first working server wins, every
// stream gets the network deep check, and items with no playable stream
// are not persisted at all.
func Oneflix() *streamsnake.Site {
	return &streamsnake.Site{
		Name:    "1flix",
		BaseURL: "https://1flix.to",
		ListingURLs: []string{
			"https://1flix.to/movie",
		},
		ItemLinkLocators: []string{
			".flw-item .film-poster > a",
			"a.film-poster-ahref",
			"a[href^='/movie/']",
		},
		ItemURLPattern: oneflixItemURL,
		TitleSelectors: []string{
			"h2.heading-name a",
			"h2.heading-name",
		},
		SynopsisSelectors: []string{
			".description",
		},
		PosterSelectors: []string{
			".film-poster img",
			"meta[property='og:image']",
		},
		QualitySelectors: []string{
			"span.quality",
		},
		EmbedLocators: []string{
			".link-item[data-id]",
			"a[data-linkid]",
			"a[data-id]",
		},
		ExcludedEmbedHosts: trackingHosts,
		ServerPriority: map[string]int{
			"upcloud":   0,
			"megacloud": 1,
			"vidcloud":  2,
		},
		Resolver:              streamsnake.IframePollResolver{Attempts: 3},
		Mode:                  streamsnake.FirstSuccess,
		RequireDeepCheck:      true,
		PersistWithoutStreams: false,
		Pagination: streamsnake.PaginationConfig{
			ParamNames:     []string{"page"},
			UseNextControl: true,
		},
		Robots: streamsnake.RobotsIgnore,
	}
}
