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

package store

import "encoding/json"

// ContentItem is one discovered movie or series. ContentID is the stable
// cross-run identity; the numeric ID is internal.
type ContentItem struct {
	ID          uint   `gorm:"primaryKey"`
	ContentID   string `gorm:"uniqueIndex;not null"`
	Title       string `gorm:"not null"`
	ReleaseYear int    `gorm:"default:0"` // 0 = unknown
	Synopsis    string `gorm:"type:text"`
	PosterURL   string `gorm:"type:text"`
	SourceURL   string `gorm:"type:text;not null"`
	SourceSite  string `gorm:"index;not null"`
	ContentType string `gorm:"default:'movie'"` // "movie" or "series"
	Status      string `gorm:"default:'released'"`
	Metadata    string `gorm:"type:text"` // JSON object, nullable

	Streams   []StreamLink `gorm:"foreignKey:ContentItemID;constraint:OnDelete:CASCADE"`
	CreatedAt int64        `gorm:"autoCreateTime"`
	UpdatedAt int64        `gorm:"autoUpdateTime"`
}

// GetMetadataMap deserializes the Metadata JSON. Empty or broken JSON
// comes back as nil.
func (c *ContentItem) GetMetadataMap() map[string]any {
	if c.Metadata == "" || c.Metadata == "null" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(c.Metadata), &m); err != nil {
		return nil
	}
	return m
}

// SetMetadataMap serializes a metadata bag into the Metadata column.
func (c *ContentItem) SetMetadataMap(m map[string]any) error {
	if len(m) == 0 {
		c.Metadata = ""
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	c.Metadata = string(data)
	return nil
}

// StreamLink is one playable URL for an item. Links are deactivated, never
// deleted, so check history survives.
type StreamLink struct {
	ID            uint   `gorm:"primaryKey"`
	ContentItemID uint   `gorm:"index;not null"`
	StreamURL     string `gorm:"type:text;not null"`
	ServerName    string `gorm:"default:'Other'"`
	Quality       string `gorm:"default:'Unknown'"`
	Language      string `gorm:"default:'EN'"`
	IsActive      bool   `gorm:"default:true"`
	LastChecked   int64  `gorm:"default:0"` // unix seconds, 0 = never
	ErrorMessage  string `gorm:"type:text"`
	CheckCount    int    `gorm:"default:0"`

	ContentItem *ContentItem `gorm:"foreignKey:ContentItemID;constraint:OnDelete:CASCADE"`
	CreatedAt   int64        `gorm:"autoCreateTime"`
	UpdatedAt   int64        `gorm:"autoUpdateTime"`
}

// DiscoveryRun is the persisted summary of one discovery run.
type DiscoveryRun struct {
	ID    uint   `gorm:"primaryKey"`
	RunID string `gorm:"uniqueIndex;not null"`
	Sites string `gorm:"type:text"` // comma-separated site names

	StartedAt  int64 `gorm:"not null"` // unix seconds
	DurationMs int64 `gorm:"default:0"`

	PagesFetched    int64 `gorm:"default:0"`
	ItemsDiscovered int64 `gorm:"default:0"`
	ItemsPersisted  int64 `gorm:"default:0"`
	ItemsSkipped    int64 `gorm:"default:0"`
	ItemsFailed     int64 `gorm:"default:0"`

	StreamsResolved  int64 `gorm:"default:0"`
	StreamsValidated int64 `gorm:"default:0"`
	StreamsRejected  int64 `gorm:"default:0"`

	CreatedAt int64 `gorm:"autoCreateTime"`
}
