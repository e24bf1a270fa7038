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
	"context"
	"sync"
)

// Decision is the dedup gate's verdict for a discovered source URL.
type Decision int

const (
	// DecisionVisit: never seen before, full pipeline run.
	DecisionVisit Decision = iota
	// DecisionRevisit: known item whose streams have all gone inactive,
	// worth re-resolving.
	DecisionRevisit
	// DecisionSkipKnown: known item with live streams, nothing to do.
	DecisionSkipKnown
	// DecisionSkipSeen: already handled earlier in this same run.
	DecisionSkipSeen
)

func (d Decision) String() string {
	switch d {
	case DecisionVisit:
		return "visit"
	case DecisionRevisit:
		return "revisit"
	case DecisionSkipKnown:
		return "skip-known"
	case DecisionSkipSeen:
		return "skip-seen"
	default:
		return "unknown"
	}
}

// ContentLookup serves the gate's two sets in one pass: every stored
// content id, and the subset whose streams have all gone inactive. The
// store implements it.
type ContentLookup interface {
	DedupSets(ctx context.Context) (known, stale map[string]bool, err error)
}

// DedupGate decides whether a discovered link is worth visiting. Both
// store-backed sets are loaded once by Load before the run starts; Check
// is purely in-memory after that, items written mid-run are deliberately
// not reconsulted. A per-run seen set makes a link surfacing on multiple
// listing pages process once. Safe for concurrent use.
type DedupGate struct {
	lookup ContentLookup

	mu    sync.Mutex
	known map[string]bool
	stale map[string]bool
	seen  map[string]bool
}

func NewDedupGate(lookup ContentLookup) *DedupGate {
	return &DedupGate{
		lookup: lookup,
		known:  make(map[string]bool),
		stale:  make(map[string]bool),
		seen:   make(map[string]bool),
	}
}

// Load pulls the known and stale sets from the store. Call once per run
// before any Check.
func (g *DedupGate) Load(ctx context.Context) error {
	known, stale, err := g.lookup.DedupSets(ctx)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if known != nil {
		g.known = known
	}
	if stale != nil {
		g.stale = stale
	}
	return nil
}

// Check is called with the synthesized content id for a source URL. The
// first caller for a given id wins; every later call in the run gets
// DecisionSkipSeen regardless of the loaded sets.
func (g *DedupGate) Check(contentID string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen[contentID] {
		return DecisionSkipSeen
	}
	g.seen[contentID] = true

	switch {
	case !g.known[contentID]:
		return DecisionVisit
	case g.stale[contentID]:
		return DecisionRevisit
	default:
		return DecisionSkipKnown
	}
}

// SeenCount reports how many distinct ids passed through the gate.
func (g *DedupGate) SeenCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
