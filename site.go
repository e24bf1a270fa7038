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

import "regexp"

// ResolveMode controls how many server candidates a site attempts per item.
type ResolveMode int

const (
	// FirstSuccess stops at the first server that yields a validated URL.
	FirstSuccess ResolveMode = iota
	// CollectAll attempts every discovered server candidate.
	CollectAll
)

// RobotsMode controls whether listing fetches consult robots.txt.
// Target sites in this domain block crawlers wholesale, so the historical
// default is to ignore it; "respect" is available per site.
const (
	RobotsIgnore  = "ignore"
	RobotsRespect = "respect"
)

// PaginationConfig parameterizes the listing walk for one site.
type PaginationConfig struct {
	// ParamNames are the query parameters tried for next-page URL rewriting,
	// in order ("p", "page"). Empty disables the rewrite strategy.
	ParamNames []string
	// UseNextControl enables next-control discovery (text "Next", rel=next,
	// pagination class names) when URL rewriting fails.
	UseNextControl bool
	// UseScroll enables the infinite-scroll load loop on each listing page.
	UseScroll bool
	// SitemapURLs, when set, replaces page walking entirely: listing URLs
	// come from the named content sitemaps.
	SitemapURLs []string
}

// Site is the per-site configuration object the whole pipeline is
// parameterized by. Sites differ almost exclusively by selector lists, URL
// shapes and server priorities; the pipeline itself is shared.
type Site struct {
	// Name tags persisted records (sourceSite) and log lines.
	Name string
	// BaseURL resolves relative links and serves as validation referer.
	BaseURL string
	// ListingURLs are the entry points of the listing walk.
	ListingURLs []string

	// ItemLinkLocators is the ranked list of CSS selectors for item links on
	// a listing page. The first locator yielding at least one link wins.
	ItemLinkLocators []string
	// ItemURLPattern is the authoritative membership test for "is this a
	// content page", applied to the normalized path. Locators only find
	// candidates.
	ItemURLPattern *regexp.Regexp

	// Detail-page metadata locators, each a ranked fallback chain.
	TitleSelectors    []string
	SynopsisSelectors []string
	PosterSelectors   []string
	// QualitySelectors locate the page-level quality badge. The classified
	// value applies to streams whose resolver didn't report one.
	QualitySelectors []string

	// EmbedLocators is the ranked list of CSS selectors for server/embed
	// candidates on a detail page.
	EmbedLocators []string
	// ExcludedEmbedHosts are glob patterns for tracking/ad iframe hosts.
	ExcludedEmbedHosts []string

	// ServerPriority ranks server names (lowercase) for trial order; lower
	// is earlier. Unlisted servers sort last.
	ServerPriority map[string]int
	// Resolver turns an embed candidate into a final playable URL.
	Resolver Resolver
	// Mode selects first-success or collect-all resolution.
	Mode ResolveMode

	// RequireDeepCheck gates persistence on network validation. Sites that
	// favor throughput accept quick-check-only.
	RequireDeepCheck bool
	// PersistWithoutStreams keeps the item when no server resolved.
	// Policy is explicit per site; there is no universal rule.
	PersistWithoutStreams bool

	// Pagination parameterizes the listing walk.
	Pagination PaginationConfig
	// Robots is RobotsIgnore or RobotsRespect. Empty means ignore.
	Robots string

	// ContentID derives the stable identity from a detail-page URL. Nil
	// falls back to SynthesizeContentID.
	ContentID func(sourceURL string) string
}

// ItemContentID applies the site's identity rule.
func (s *Site) ItemContentID(sourceURL string) string {
	if s.ContentID != nil {
		return s.ContentID(sourceURL)
	}
	return SynthesizeContentID(s.Name, sourceURL)
}

// MatchesItemURL reports whether path is a content page for this site.
func (s *Site) MatchesItemURL(path string) bool {
	if s.ItemURLPattern == nil {
		return false
	}
	return s.ItemURLPattern.MatchString(path)
}
