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

// Package tmdb is a minimal client for The Movie Database API, covering
// the discover and detail endpoints the vidsrc adapter needs.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/agentberlin/streamsnake"
)

const (
	defaultBaseURL = "https://api.themoviedb.org/3"
	imageBaseURL   = "https://image.tmdb.org/t/p"
	posterSize     = "w500"
)

// MediaMovie and MediaTV are the API-side media type segments.
const (
	MediaMovie = "movie"
	MediaTV    = "tv"
)

// Client talks to the TMDB v3 API. Safe for concurrent use.
type Client struct {
	apiKey   string
	language string
	baseURL  string
	httpc    *http.Client

	// Request pacing; TMDB's limits are generous but not absent.
	throttleMu  sync.Mutex
	lastRequest time.Time
	minInterval time.Duration

	retry streamsnake.RetryPolicy
}

// NewClient builds a client. The api key is mandatory.
func NewClient(apiKey string, httpc *http.Client) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, &streamsnake.ConfigError{Field: "tmdb.api_key", Msg: "required for the vidsrc adapter"}
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	retry := streamsnake.DefaultRetryPolicy()
	retry.Attempts = 3
	retry.BaseDelay = 300 * time.Millisecond
	retry.Retryable = func(err error) bool {
		var perm *permanentError
		return !errors.As(err, &perm)
	}
	return &Client{
		apiKey:      apiKey,
		language:    "en-US",
		baseURL:     defaultBaseURL,
		httpc:       httpc,
		minInterval: 20 * time.Millisecond,
		retry:       retry,
	}, nil
}

// SetBaseURL redirects the client, used by tests.
func (c *Client) SetBaseURL(base string) { c.baseURL = strings.TrimRight(base, "/") }

// doGET performs a rate-limited GET with retry on 429s and 5xx.
func (c *Client) doGET(ctx context.Context, endpoint string, query url.Values, v any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)
	query.Set("language", c.language)
	full := c.baseURL + endpoint + "?" + query.Encode()

	return c.retry.Do(ctx, func() error {
		c.throttleMu.Lock()
		since := time.Since(c.lastRequest)
		if since < c.minInterval {
			time.Sleep(c.minInterval - since)
		}
		c.lastRequest = time.Now()
		c.throttleMu.Unlock()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("tmdb request failed: %s", resp.Status)
		}
		if resp.StatusCode >= 400 {
			// Client errors don't get better on retry.
			return &permanentError{fmt.Errorf("tmdb request failed: %s", resp.Status)}
		}
		return json.NewDecoder(resp.Body).Decode(v)
	})
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// DiscoverEntry is one row of a discover page.
type DiscoverEntry struct {
	TMDBID int64
	Name   string
	Year   int
}

// Discover lists popular titles for a media type, one page at a time.
// Returns the entries and the total page count.
func (c *Client) Discover(ctx context.Context, mediaType string, page int) ([]DiscoverEntry, int, error) {
	if page < 1 {
		page = 1
	}
	query := url.Values{}
	query.Set("sort_by", "popularity.desc")
	query.Set("page", strconv.Itoa(page))

	var payload struct {
		Page       int `json:"page"`
		TotalPages int `json:"total_pages"`
		Results    []struct {
			ID           int64  `json:"id"`
			Title        string `json:"title"`
			Name         string `json:"name"`
			ReleaseDate  string `json:"release_date"`
			FirstAirDate string `json:"first_air_date"`
		} `json:"results"`
	}
	if err := c.doGET(ctx, "/discover/"+apiMedia(mediaType), query, &payload); err != nil {
		return nil, 0, err
	}

	entries := make([]DiscoverEntry, 0, len(payload.Results))
	for _, r := range payload.Results {
		name := r.Title
		if name == "" {
			name = r.Name
		}
		entries = append(entries, DiscoverEntry{
			TMDBID: r.ID,
			Name:   name,
			Year:   parseYear(r.ReleaseDate, r.FirstAirDate),
		})
	}
	return entries, payload.TotalPages, nil
}

// Title is the assembled detail record for one movie or show.
type Title struct {
	TMDBID    int64
	IMDBID    string
	Name      string
	Overview  string
	PosterURL string
	Year      int
	MediaType string // "movie" or "series"
	Released  bool
	Genres    []string
	Directors []string
	Writers   []string
	Keywords  []string
	Seasons   int
}

// Details fetches one title with external ids, credits and keywords in a
// single request.
func (c *Client) Details(ctx context.Context, mediaType string, tmdbID int64) (*Title, error) {
	query := url.Values{}
	query.Set("append_to_response", "external_ids,credits,keywords")

	var payload struct {
		ID              int64  `json:"id"`
		Title           string `json:"title"`
		Name            string `json:"name"`
		Overview        string `json:"overview"`
		PosterPath      string `json:"poster_path"`
		ReleaseDate     string `json:"release_date"`
		FirstAirDate    string `json:"first_air_date"`
		Status          string `json:"status"`
		IMDBId          string `json:"imdb_id"`
		NumberOfSeasons int    `json:"number_of_seasons"`
		Genres          []struct {
			Name string `json:"name"`
		} `json:"genres"`
		ExternalIDs struct {
			IMDBID string `json:"imdb_id"`
		} `json:"external_ids"`
		Credits struct {
			Crew []struct {
				Name string `json:"name"`
				Job  string `json:"job"`
			} `json:"crew"`
		} `json:"credits"`
		Keywords struct {
			Keywords []struct {
				Name string `json:"name"`
			} `json:"keywords"`
			Results []struct {
				Name string `json:"name"`
			} `json:"results"`
		} `json:"keywords"`
	}
	endpoint := fmt.Sprintf("/%s/%d", apiMedia(mediaType), tmdbID)
	if err := c.doGET(ctx, endpoint, query, &payload); err != nil {
		return nil, err
	}

	title := &Title{
		TMDBID:    payload.ID,
		Name:      payload.Title,
		Overview:  payload.Overview,
		Year:      parseYear(payload.ReleaseDate, payload.FirstAirDate),
		MediaType: "movie",
		Released:  isReleased(payload.Status, payload.ReleaseDate, payload.FirstAirDate),
		Seasons:   payload.NumberOfSeasons,
	}
	if apiMedia(mediaType) == MediaTV {
		title.MediaType = "series"
		title.Name = payload.Name
	}
	title.IMDBID = payload.IMDBId
	if title.IMDBID == "" {
		title.IMDBID = payload.ExternalIDs.IMDBID
	}
	if p := strings.TrimSpace(payload.PosterPath); p != "" {
		title.PosterURL = fmt.Sprintf("%s/%s", imageBaseURL, path.Join(posterSize, strings.TrimPrefix(p, "/")))
	}
	for _, g := range payload.Genres {
		title.Genres = append(title.Genres, g.Name)
	}
	for _, member := range payload.Credits.Crew {
		switch member.Job {
		case "Director":
			title.Directors = append(title.Directors, member.Name)
		case "Writer", "Screenplay":
			title.Writers = append(title.Writers, member.Name)
		}
	}
	for _, kw := range payload.Keywords.Keywords {
		title.Keywords = append(title.Keywords, kw.Name)
	}
	for _, kw := range payload.Keywords.Results {
		title.Keywords = append(title.Keywords, kw.Name)
	}
	return title, nil
}

// apiMedia maps the pipeline's "series" to TMDB's "tv" segment.
func apiMedia(mediaType string) string {
	if mediaType == "series" || mediaType == MediaTV {
		return MediaTV
	}
	return MediaMovie
}

func parseYear(movieDate, seriesDate string) int {
	date := movieDate
	if date == "" {
		date = seriesDate
	}
	if len(date) < 4 {
		return 0
	}
	if t, err := time.Parse("2006-01-02", date); err == nil {
		return t.Year()
	}
	if y, err := strconv.Atoi(date[:4]); err == nil {
		return y
	}
	return 0
}

// isReleased treats an explicit "Released"/"Ended"/"Returning Series"
// status as released and otherwise falls back to the date.
func isReleased(status, movieDate, seriesDate string) bool {
	switch status {
	case "Released", "Ended", "Returning Series", "Canceled":
		return true
	case "":
	default:
		return false
	}
	date := movieDate
	if date == "" {
		date = seriesDate
	}
	if t, err := time.Parse("2006-01-02", date); err == nil {
		return !t.After(time.Now())
	}
	return false
}
