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

// Package testutil provides shared test utilities for streamsnake tests:
// an HTTP fixture imitating a small streaming site with listing pages,
// detail pages, hoster endpoints and an ajax sources endpoint.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
)

// RobotsFile is served at /robots.txt; /blocked is disallowed so the
// respect mode has something to refuse.
const RobotsFile = `
User-agent: *
Disallow: /blocked
`

// listingPage1 links three items plus navigation noise that must not pass
// the item URL pattern.
const listingPage1 = `<!DOCTYPE html>
<html><head><title>Movies</title></head><body>
<nav><a href="/movie">Movies</a> <a href="/genre/action">Action</a></nav>
<div class="flw-item"><div class="film-poster"><a href="/movie/alpha-1001">Alpha</a></div></div>
<div class="flw-item"><div class="film-poster"><a href="/movie/beta-1002">Beta</a></div></div>
<div class="flw-item"><div class="film-poster"><a href="/movie/gamma-1003">Gamma</a></div></div>
<ul class="pagination"><li class="next"><a href="/movie?page=2">Next</a></li></ul>
<div class="filler">%s</div>
</body></html>`

// listingPage2 repeats one known item and adds nothing new.
const listingPage2 = `<!DOCTYPE html>
<html><head><title>Movies - page 2</title></head><body>
<div class="flw-item"><div class="film-poster"><a href="/movie/beta-1002">Beta</a></div></div>
<div class="filler">%s</div>
</body></html>`

// listingEmpty has no item links at all.
const listingEmpty = `<!DOCTYPE html>
<html><head><title>Movies - end</title></head><body>
<p>No more results.</p>
<div class="filler">%s</div>
</body></html>`

const detailPage = `<!DOCTYPE html>
<html><head>
<title>%[1]s - Watch Free</title>
<meta property="og:description" content="Fallback description for %[1]s">
</head><body>
<div class="detail_page-infor">
<h2 class="heading-name"><a href="#">%[1]s (%[2]d)</a></h2>
<span class="quality">%[3]s</span>
<p class="description">%[4]s</p>
<div class="film-poster"><img src="/posters/%[5]s.jpg"></div>
</div>
<div class="servers">
%[6]s
</div>
</body></html>`

// StreamSite is the running fixture with its server handle.
type StreamSite struct {
	*httptest.Server
}

// NewStreamSite starts the fixture site. Callers own Close.
func NewStreamSite() *StreamSite {
	mux := http.NewServeMux()
	site := &StreamSite{}

	pad := make([]byte, 1200)
	for i := range pad {
		pad[i] = 'x'
	}
	filler := string(pad)

	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(RobotsFile))
	})

	mux.HandleFunc("/movie", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Query().Get("page") {
		case "", "1":
			fmt.Fprintf(w, listingPage1, filler)
		case "2":
			fmt.Fprintf(w, listingPage2, filler)
		default:
			fmt.Fprintf(w, listingEmpty, filler)
		}
	})

	detail := func(title string, year int, quality, synopsis, poster, servers string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, detailPage, title, year, quality, synopsis, poster, servers)
		}
	}

	// Alpha carries two direct embeds, one of which is structurally dead.
	mux.HandleFunc("/movie/alpha-1001", detail("Alpha", 2021, "HD", "A daring rescue.", "alpha", `
<a class="link-item" data-id="11" href="/embed/upcloud/alpha-stream-1">UpCloud</a>
<a class="link-item" data-id="12" href="about:blank">Broken</a>`))

	// Beta has one good embed and one on a tracking host.
	mux.HandleFunc("/movie/beta-1002", detail("Beta", 2019, "720", "A quiet heist.", "beta", `
<iframe src="/embed/vidcloud/beta-stream-1"></iframe>
<iframe src="https://ads.doubleclick.example/pixel"></iframe>`))

	// Gamma's only server answers with a deleted-file page.
	mux.HandleFunc("/movie/gamma-1003", detail("Gamma", 0, "CAM", "Lost footage.", "gamma", `
<a class="link-item" data-id="31" href="/embed/dead/gamma-stream-1">Mirror</a>`))

	mux.HandleFunc("/embed/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/embed/dead/gamma-stream-1" {
			w.Write([]byte("<html><body>File was deleted</body></html>"))
			return
		}
		w.Write([]byte("<html><body><video src=\"blob:player\"></video></body></html>"))
	})

	// go.php bounces to a hoster page, redirect-resolution style.
	mux.HandleFunc("/go.php", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/hoster/dood/"+r.URL.Query().Get("id"), http.StatusFound)
	})
	mux.HandleFunc("/hoster/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><video></video></body></html>"))
	})

	mux.HandleFunc("/ajax/episode/sources/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/ajax/episode/sources/"):]
		w.Header().Set("Content-Type", "application/json")
		if id == "404" {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"link":"%s/embed/upcloud/from-ajax-%s"}`, site.URL, id)
	})

	// Redirect landing on an error path, for deep-check tests.
	mux.HandleFunc("/bounce-to-error", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/404", http.StatusFound)
	})
	mux.HandleFunc("/404", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("not here"))
	})

	mux.HandleFunc("/blocked", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("should never be fetched"))
	})

	// Sitemap endpoints for the sitemap-driven discovery strategy.
	mux.HandleFunc("/sitemap-index.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
<sitemap><loc>%s/sitemap-movies.xml</loc></sitemap>
</sitemapindex>`, site.URL)
	})
	mux.HandleFunc("/sitemap-movies.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
<url><loc>%[1]s/movie/alpha-1001</loc></url>
<url><loc>%[1]s/movie/beta-1002</loc></url>
<url><loc>%[1]s/genre/action</loc></url>
</urlset>`, site.URL)
	})

	site.Server = httptest.NewServer(mux)
	return site
}
