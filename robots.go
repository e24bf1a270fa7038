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
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsGuard gates listing fetches on robots.txt for sites configured with
// RobotsRespect. robots.txt files are fetched once per host and cached for
// the run; a fetch failure is treated as allow-all.
type RobotsGuard struct {
	mode      string
	userAgent string
	client    *http.Client

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

// NewRobotsGuard builds a guard for the given mode (RobotsIgnore or
// RobotsRespect).
func NewRobotsGuard(mode, userAgent string, client *http.Client) *RobotsGuard {
	if client == nil {
		client = http.DefaultClient
	}
	return &RobotsGuard{
		mode:      mode,
		userAgent: userAgent,
		client:    client,
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether rawURL may be fetched under the guard's mode.
func (g *RobotsGuard) Allowed(rawURL string) bool {
	if g == nil || g.mode != RobotsRespect {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}

	data := g.robotsFor(u)
	if data == nil {
		return true
	}
	return data.TestAgent(u.Path, g.userAgent)
}

func (g *RobotsGuard) robotsFor(u *url.URL) *robotstxt.RobotsData {
	g.mu.Lock()
	defer g.mu.Unlock()

	if data, ok := g.cache[u.Host]; ok {
		return data
	}

	var data *robotstxt.RobotsData
	resp, err := g.client.Get(u.Scheme + "://" + u.Host + "/robots.txt")
	if err == nil {
		defer resp.Body.Close()
		if parsed, perr := robotstxt.FromResponse(resp); perr == nil {
			data = parsed
		}
	}

	g.cache[u.Host] = data
	return data
}
