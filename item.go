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
	"fmt"
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ContentType distinguishes a single movie from an episode-grouped series.
type ContentType string

const (
	ContentTypeMovie  ContentType = "movie"
	ContentTypeSeries ContentType = "series"
)

// ContentStatus is the release state of an item.
type ContentStatus string

const (
	StatusReleased ContentStatus = "released"
	StatusUpcoming ContentStatus = "upcoming"
)

// UnknownTitle is the sentinel used when no title could be extracted.
// Title is never stored empty.
const UnknownTitle = "Unknown Title"

// DefaultLanguage is assumed when the source exposes no language signal.
const DefaultLanguage = "EN"

// ContentItem is one movie or series extracted from a source site, keyed by
// a stable ContentID: the external catalog ID when the site exposes one,
// otherwise a hash synthesized from the source site and page path.
type ContentItem struct {
	ContentID   string
	Title       string
	ReleaseYear int // 0 when unknown
	Synopsis    string
	PosterURL   string
	SourceURL   string
	SourceSite  string
	Type        ContentType
	Status      ContentStatus
	// Metadata is an open bag for source-shaped extras: genres, cast,
	// season lists. Shapes vary per site, so it stays loosely typed.
	Metadata map[string]any
}

// Normalize enforces the boundary invariants: a non-empty title, a plausible
// 4-digit release year, and defaults for type and status.
func (it *ContentItem) Normalize() {
	it.Title = strings.TrimSpace(it.Title)
	if it.Title == "" {
		it.Title = UnknownTitle
	}
	if it.ReleaseYear != 0 && (it.ReleaseYear < 1000 || it.ReleaseYear > 9999) {
		it.ReleaseYear = 0
	}
	if it.Type == "" {
		it.Type = ContentTypeMovie
	}
	if it.Status == "" {
		it.Status = StatusReleased
	}
}

// ResolvedStream is one playable-URL candidate resolved for a ContentItem.
type ResolvedStream struct {
	URL        string
	ServerName string
	Quality    string
	Language   string
}

// SynthesizeContentID derives a stable identifier from the source site tag
// and the page path, for sites without an external catalog ID. Re-scraping
// the same page always yields the same ID: query and fragment are ignored.
func SynthesizeContentID(siteTag, sourceURL string) string {
	path := sourceURL
	if u, err := url.Parse(sourceURL); err == nil && u.Path != "" {
		path = u.Path
	}
	return fmt.Sprintf("%s_%016x", siteTag, xxhash.Sum64String(siteTag+path))
}
