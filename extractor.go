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
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gobwas/glob"
	"github.com/kennygrant/sanitize"
	whatwgUrl "github.com/nlnwa/whatwg-url/url"
)

var urlParser = whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign())

// knownServers is the server-name taxonomy. Labels are classified by
// case-insensitive substring match against these brand tokens.
var knownServers = []string{
	"UpCloud",
	"MegaCloud",
	"VidCloud",
	"AkCloud",
	"VidSrc",
	"Dood",
	"Wootly",
	"Streamtape",
	"MixDrop",
}

// ServerOther is the classification for labels matching no known brand.
const ServerOther = "Other"

// EmbedCandidate is one server/embed option found on a detail page, in
// document order.
type EmbedCandidate struct {
	// URL is the candidate's href or src, resolved against the page base.
	URL string
	// Label is the visible text of the control, used for server and
	// quality classification.
	Label string
	// ServerName is the classified brand, or "Other".
	ServerName string
	// DataID carries a data-id/data-linkid attribute for sites that
	// resolve streams through a secondary JSON endpoint.
	DataID string
}

// ExtractItemLinks finds content-page links in rendered listing markup.
// Site locators are tried in rank order and the first one yielding results
// wins; the site's URL-shape predicate then decides membership. Selectors
// only find candidates, the URL shape is the authority.
func ExtractItemLinks(html, baseURL string, site *Site) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var hrefs []string
	for _, locator := range site.ItemLinkLocators {
		doc.Find(locator).Each(func(_ int, sel *goquery.Selection) {
			if href, ok := sel.Attr("href"); ok {
				hrefs = append(hrefs, href)
			}
		})
		if len(hrefs) > 0 {
			break
		}
	}

	seen := make(map[string]bool)
	var links []string
	for _, href := range hrefs {
		abs, path, ok := normalizeLink(baseURL, href)
		if !ok || !site.MatchesItemURL(path) {
			continue
		}
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	}
	return links, nil
}

// ExtractEmbedCandidates finds server/embed options in rendered detail-page
// markup, preserving document order. Tracking and ad iframes are filtered
// out by host glob patterns.
func ExtractEmbedCandidates(html, baseURL string, site *Site) ([]EmbedCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	excluded := make([]glob.Glob, 0, len(site.ExcludedEmbedHosts))
	for _, pattern := range site.ExcludedEmbedHosts {
		if g, err := glob.Compile(pattern); err == nil {
			excluded = append(excluded, g)
		}
	}

	var candidates []EmbedCandidate
	seen := make(map[string]bool)
	for _, locator := range site.EmbedLocators {
		doc.Find(locator).Each(func(_ int, sel *goquery.Selection) {
			raw, _ := sel.Attr("href")
			if raw == "" {
				raw, _ = sel.Attr("src")
			}
			dataID, ok := sel.Attr("data-id")
			if !ok {
				dataID, _ = sel.Attr("data-linkid")
			}
			if raw == "" && dataID == "" {
				return
			}

			abs := raw
			if raw != "" {
				var ok bool
				abs, _, ok = normalizeRef(baseURL, raw)
				if !ok || hostExcluded(abs, excluded) {
					return
				}
			}

			key := abs + "|" + dataID
			if seen[key] {
				return
			}
			seen[key] = true

			label := strings.TrimSpace(sel.Text())
			candidates = append(candidates, EmbedCandidate{
				URL:        abs,
				Label:      label,
				ServerName: ClassifyServer(label + " " + abs),
				DataID:     dataID,
			})
		})
		if len(candidates) > 0 {
			break
		}
	}
	return candidates, nil
}

// ExtractMetadata pulls title, year, synopsis and poster from a rendered
// detail page using the site's fallback selector chains.
func ExtractMetadata(pg *RenderedPage, site *Site) *ContentItem {
	item := &ContentItem{
		SourceURL:  pg.FinalURL,
		SourceSite: site.Name,
		Type:       ContentTypeMovie,
		Status:     StatusReleased,
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pg.HTML))
	if err != nil {
		item.Normalize()
		return item
	}

	rawTitle := firstText(doc, site.TitleSelectors)
	if rawTitle == "" {
		rawTitle = pg.Title
	}
	item.Title, item.ReleaseYear = SplitTitleYear(rawTitle)

	synopsis := firstText(doc, site.SynopsisSelectors)
	if synopsis == "" {
		if desc, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
			synopsis = desc
		}
	}
	// og:description occasionally carries markup and entities.
	item.Synopsis = strings.TrimSpace(sanitize.HTML(synopsis))

	for _, selector := range site.PosterSelectors {
		sel := doc.Find(selector).First()
		src, ok := sel.Attr("data-src")
		if !ok {
			src, ok = sel.Attr("src")
		}
		if !ok {
			src, ok = sel.Attr("content")
		}
		if ok && src != "" {
			if abs, _, okRef := normalizeRef(pg.FinalURL, src); okRef {
				item.PosterURL = abs
				break
			}
		}
	}

	item.Normalize()
	return item
}

// ExtractQuality reads the page-level quality badge and maps it into the
// quality taxonomy. Pages without a badge come back as QualityUnknown.
func ExtractQuality(html string, site *Site) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return QualityUnknown
	}
	return ClassifyQuality(firstText(doc, site.QualitySelectors))
}

var titleYearRe = regexp.MustCompile(`^(.*?)[\s\p{Zs}]*\((\d{4})\)\s*$`)

// SplitTitleYear parses the "Title (2023)" convention. Titles without the
// year suffix come back with year 0.
func SplitTitleYear(raw string) (string, int) {
	raw = strings.TrimSpace(raw)
	if m := titleYearRe.FindStringSubmatch(raw); m != nil {
		year, _ := strconv.Atoi(m[2])
		return strings.TrimSpace(m[1]), year
	}
	return raw, 0
}

// ClassifyServer maps a label to the server taxonomy by case-insensitive
// brand-token scan.
func ClassifyServer(label string) string {
	low := strings.ToLower(label)
	for _, server := range knownServers {
		if strings.Contains(low, strings.ToLower(server)) {
			return server
		}
	}
	return ServerOther
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		if text := strings.TrimSpace(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// normalizeLink resolves href against base and strips query and fragment:
// item identity lives in the path alone. Returns the absolute URL and path.
func normalizeLink(base, href string) (abs, path string, ok bool) {
	abs, path, ok = normalizeRef(base, href)
	if !ok {
		return "", "", false
	}
	u, err := url.Parse(abs)
	if err != nil {
		return "", "", false
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), u.Path, true
}

// normalizeRef resolves href against base, keeping query parameters.
func normalizeRef(base, href string) (abs, path string, ok bool) {
	parsed, err := urlParser.ParseRef(base, strings.TrimSpace(href))
	if err != nil {
		return "", "", false
	}
	u, err := url.Parse(parsed.Href(true))
	if err != nil {
		return "", "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", false
	}
	return u.String(), u.Path, true
}

func hostExcluded(rawURL string, patterns []glob.Glob) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, g := range patterns {
		if g.Match(host) {
			return true
		}
	}
	return false
}
