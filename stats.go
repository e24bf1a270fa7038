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
	"log/slog"
	"sync/atomic"
	"time"
)

// RunStats accumulates counters across a run. All methods are safe for
// concurrent use from site workers.
type RunStats struct {
	// RunID tags the run. Set once before workers start.
	RunID   string
	started time.Time

	PagesFetched     atomic.Int64
	ItemsDiscovered  atomic.Int64
	ItemsSkipped     atomic.Int64
	ItemsPersisted   atomic.Int64
	ItemsFailed      atomic.Int64
	StreamsResolved  atomic.Int64
	StreamsValidated atomic.Int64
	StreamsRejected  atomic.Int64
}

func NewRunStats() *RunStats {
	return &RunStats{started: time.Now()}
}

// Started is the run's start time.
func (s *RunStats) Started() time.Time { return s.started }

// Duration is the elapsed time since the run started.
func (s *RunStats) Duration() time.Duration { return time.Since(s.started) }

// LogSummary emits the end-of-run summary line.
func (s *RunStats) LogSummary(log *slog.Logger) {
	log.Info("run complete",
		"duration", time.Since(s.started).Round(time.Second),
		"pages", s.PagesFetched.Load(),
		"discovered", s.ItemsDiscovered.Load(),
		"skipped", s.ItemsSkipped.Load(),
		"persisted", s.ItemsPersisted.Load(),
		"failed", s.ItemsFailed.Load(),
		"streams_resolved", s.StreamsResolved.Load(),
		"streams_valid", s.StreamsValidated.Load(),
		"streams_rejected", s.StreamsRejected.Load(),
	)
}
