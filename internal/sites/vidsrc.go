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
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/agentberlin/streamsnake"
	"github.com/agentberlin/streamsnake/internal/tmdb"
)

const (
	vidsrcToBase = "https://vidsrc.to/embed"
	vidsrcMeBase = "https://vidsrc.me/embed"
)

// vidsrcUnavailableMarkers in an embed page body mean the hoster has no
// source for the title even though the page answers 200.
var vidsrcUnavailableMarkers = []string{
	"media is unavailable",
	"not found",
	"no sources",
	"this title does not exist",
}

// VidsrcAdapter discovers titles through the TMDB API instead of walking
// listing markup, then pairs each title with the two vidsrc embed hosts.
// It shares the dedup gate, validation shape and sink with the markup
// pipeline.
type VidsrcAdapter struct {
	TMDB    *tmdb.Client
	Sink    streamsnake.IngestSink
	Client  *http.Client
	Log     *slog.Logger
	SideLog *streamsnake.SideLog
	Stats   *streamsnake.RunStats

	// Pages is how many discover pages to pull per media type.
	Pages int
	// MediaTypes selects "movie", "series" or both.
	MediaTypes []string
	// MaxItems bounds processed titles across the whole adapter run.
	MaxItems int
}

const vidsrcSiteName = "vidsrc"

// Run pulls discover pages and pushes each title through detail lookup,
// embed validation and persistence. Title-level failures are contained.
func (a *VidsrcAdapter) Run(ctx context.Context) error {
	if a.Client == nil {
		a.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if a.Log == nil {
		a.Log = slog.Default()
	}
	if a.Stats == nil {
		a.Stats = streamsnake.NewRunStats()
	}
	pages := a.Pages
	if pages <= 0 {
		pages = 1
	}
	mediaTypes := a.MediaTypes
	if len(mediaTypes) == 0 {
		mediaTypes = []string{"movie", "series"}
	}

	gate := streamsnake.NewDedupGate(a.Sink)
	if err := gate.Load(ctx); err != nil {
		return fmt.Errorf("loading dedup sets: %w", err)
	}
	log := a.Log.With("site", vidsrcSiteName)

	processed := 0
	for _, mediaType := range mediaTypes {
		for page := 1; page <= pages; page++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			entries, totalPages, err := a.TMDB.Discover(ctx, mediaType, page)
			if err != nil {
				return fmt.Errorf("discover %s page %d: %w", mediaType, page, err)
			}
			a.Stats.PagesFetched.Add(1)

			for _, entry := range entries {
				if a.MaxItems > 0 && processed >= a.MaxItems {
					log.Info("item quota reached", "processed", processed)
					return nil
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				processed++
				fail := streamsnake.FailedItem{
					Site:      vidsrcSiteName,
					SourceURL: fmt.Sprintf("tmdb:%s:%d", mediaType, entry.TMDBID),
				}
				if err := a.processTitle(ctx, log, gate, mediaType, entry, &fail); err != nil {
					a.Stats.ItemsFailed.Add(1)
					log.Warn("title failed", "tmdb_id", entry.TMDBID, "error", err)
					fail.Stage = "pipeline"
					fail.Error = err.Error()
					a.SideLog.Record(fail)
				}
			}
			if page >= totalPages {
				break
			}
		}
	}
	return nil
}

func (a *VidsrcAdapter) processTitle(
	ctx context.Context,
	log *slog.Logger,
	gate *streamsnake.DedupGate,
	mediaType string,
	entry tmdb.DiscoverEntry,
	fail *streamsnake.FailedItem,
) error {
	title, err := a.TMDB.Details(ctx, mediaType, entry.TMDBID)
	if err != nil {
		return fmt.Errorf("details: %w", err)
	}

	contentID := title.IMDBID
	if contentID == "" {
		contentID = fmt.Sprintf("tmdb_%d", title.TMDBID)
	}
	fail.ContentID = contentID
	fail.Title = title.Name

	decision := gate.Check(contentID)
	if decision == streamsnake.DecisionSkipSeen || decision == streamsnake.DecisionSkipKnown {
		a.Stats.ItemsSkipped.Add(1)
		return nil
	}
	a.Stats.ItemsDiscovered.Add(1)

	item := a.buildItem(contentID, title)

	var streams []streamsnake.ResolvedStream
	// Embeds only exist for released titles with an IMDB identity.
	if title.Released && title.IMDBID != "" {
		for _, embed := range embedURLs(mediaType, title.IMDBID) {
			a.Stats.StreamsResolved.Add(1)
			fail.StreamURLs = append(fail.StreamURLs, embed.url)
			if a.embedAlive(ctx, embed.url) {
				a.Stats.StreamsValidated.Add(1)
				streams = append(streams, streamsnake.ResolvedStream{
					URL:        embed.url,
					ServerName: embed.server,
					Quality:    streamsnake.QualityUnknown,
					Language:   streamsnake.DefaultLanguage,
				})
			} else {
				a.Stats.StreamsRejected.Add(1)
			}
		}
	}

	// Upcoming titles persist streamless and pick up embeds on a later
	// revisit; a released title with no live embed is a failure.
	if len(streams) == 0 && title.Released {
		return fmt.Errorf("no playable embeds for %s", contentID)
	}

	if err := a.Sink.Upsert(ctx, item, streams); err != nil {
		return fmt.Errorf("persisting %s: %w", contentID, err)
	}
	a.Stats.ItemsPersisted.Add(1)
	log.Info("item persisted", "title", item.Title, "year", item.ReleaseYear, "streams", len(streams))
	return nil
}

func (a *VidsrcAdapter) buildItem(contentID string, title *tmdb.Title) *streamsnake.ContentItem {
	item := &streamsnake.ContentItem{
		ContentID:   contentID,
		Title:       title.Name,
		ReleaseYear: title.Year,
		Synopsis:    title.Overview,
		PosterURL:   title.PosterURL,
		SourceURL:   fmt.Sprintf("https://www.themoviedb.org/%s/%d", tmdbPathSegment(title.MediaType), title.TMDBID),
		SourceSite:  vidsrcSiteName,
		Type:        streamsnake.ContentType(title.MediaType),
		Status:      streamsnake.StatusReleased,
		Metadata:    map[string]any{},
	}
	if !title.Released {
		item.Status = streamsnake.StatusUpcoming
	}
	if len(title.Genres) > 0 {
		item.Metadata["genres"] = title.Genres
	}
	if len(title.Directors) > 0 {
		item.Metadata["directors"] = title.Directors
	}
	if len(title.Writers) > 0 {
		item.Metadata["writers"] = title.Writers
	}
	if len(title.Keywords) > 0 {
		item.Metadata["keywords"] = title.Keywords
	}
	if title.Seasons > 0 {
		item.Metadata["seasons"] = title.Seasons
	}
	item.Normalize()
	return item
}

type vidsrcEmbed struct {
	url    string
	server string
}

// embedURLs builds the embed pair for a title. Both hosts key on the IMDB
// id; series use the tv path on vidsrc.to.
func embedURLs(mediaType, imdbID string) []vidsrcEmbed {
	if mediaType == "series" || mediaType == tmdb.MediaTV {
		return []vidsrcEmbed{
			{url: fmt.Sprintf("%s/tv/%s", vidsrcToBase, imdbID), server: "VidSrc"},
		}
	}
	return []vidsrcEmbed{
		{url: fmt.Sprintf("%s/movie/%s", vidsrcToBase, imdbID), server: "VidSrc"},
		{url: fmt.Sprintf("%s/%s", vidsrcMeBase, imdbID), server: "VidSrc"},
	}
}

// embedAlive fetches the embed page and rejects it when the host reports
// the title as unavailable. Network failures count as dead, the next run
// retries through the stale-item path.
func (a *VidsrcAdapter) embedAlive(ctx context.Context, embedURL string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, embedURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", streamsnake.DefaultUserAgent)

	resp, err := a.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return false
	}
	lower := strings.ToLower(string(body))
	for _, marker := range vidsrcUnavailableMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

func tmdbPathSegment(mediaType string) string {
	if mediaType == "series" {
		return "tv"
	}
	return "movie"
}
