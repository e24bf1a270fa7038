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
	"encoding/json"
	"os"
	"sync"
	"time"
)

// FailedItem is one line of the failure side-log: enough to reconcile the
// item by hand or spot a broken selector from the aggregate. Title and
// StreamURLs are filled as far as the pipeline got before failing.
type FailedItem struct {
	Time       time.Time `json:"time"`
	Site       string    `json:"site"`
	ContentID  string    `json:"content_id"`
	SourceURL  string    `json:"source_url"`
	Title      string    `json:"title,omitempty"`
	StreamURLs []string  `json:"stream_urls,omitempty"`
	Stage      string    `json:"stage"`
	Error      string    `json:"error"`
}

// SideLog appends failed items to a JSON-lines file so a run's losses
// survive the process. A nil *SideLog is a no-op, callers don't need to
// guard.
type SideLog struct {
	mu sync.Mutex
	f  *os.File
}

func OpenSideLog(path string) (*SideLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &SideLog{f: f}, nil
}

func (l *SideLog) Record(item FailedItem) {
	if l == nil {
		return
	}
	item.Time = time.Now().UTC()
	line, err := json.Marshal(item)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.f.Write(append(line, '\n'))
}

func (l *SideLog) Close() error {
	if l == nil {
		return nil
	}
	return l.f.Close()
}
