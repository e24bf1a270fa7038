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

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/agentberlin/streamsnake"
)

// lockRetry covers SQLite's transient write contention. Attempts and
// delays match the busy_timeout pragma's order of magnitude.
func lockRetry() streamsnake.RetryPolicy {
	policy := streamsnake.DefaultRetryPolicy()
	policy.Retryable = isLockError
	return policy
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// ContentState reports whether an item exists and whether any of its
// streams are still marked active. Implements the pipeline's dedup lookup.
func (s *Store) ContentState(ctx context.Context, contentID string) (exists, hasActive bool, err error) {
	var item ContentItem
	result := s.db.WithContext(ctx).Select("id").Where("content_id = ?", contentID).First(&item)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return false, false, nil
		}
		return false, false, fmt.Errorf("failed to look up content: %v", result.Error)
	}

	var active int64
	result = s.db.WithContext(ctx).Model(&StreamLink{}).
		Where("content_item_id = ? AND is_active = ?", item.ID, true).
		Count(&active)
	if result.Error != nil {
		return true, false, fmt.Errorf("failed to count active streams: %v", result.Error)
	}
	return true, active > 0, nil
}

// DedupSets loads the dedup gate's two sets in one pass: every stored
// content id, and the subset with no active streams left. Two queries at
// run start instead of one per discovered item.
func (s *Store) DedupSets(ctx context.Context) (known, stale map[string]bool, err error) {
	type row struct {
		ID        uint
		ContentID string
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&ContentItem{}).
		Select("id, content_id").
		Scan(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load content ids: %v", err)
	}

	var activeItemIDs []uint
	if err := s.db.WithContext(ctx).Model(&StreamLink{}).
		Where("is_active = ?", true).
		Distinct("content_item_id").
		Pluck("content_item_id", &activeItemIDs).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load active stream owners: %v", err)
	}
	hasActive := make(map[uint]bool, len(activeItemIDs))
	for _, id := range activeItemIDs {
		hasActive[id] = true
	}

	known = make(map[string]bool, len(rows))
	stale = make(map[string]bool)
	for _, r := range rows {
		known[r.ContentID] = true
		if !hasActive[r.ID] {
			stale[r.ContentID] = true
		}
	}
	return known, stale, nil
}

// Upsert persists an item and replaces its stream set. Existing links
// missing from the new set are deactivated, never deleted. Writes retry
// through transient lock errors; exhaustion surfaces as a
// StorageWriteError.
func (s *Store) Upsert(ctx context.Context, item *streamsnake.ContentItem, streams []streamsnake.ResolvedStream) error {
	policy := lockRetry()
	err := policy.Do(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.upsertTx(tx, item, streams)
		})
	})
	if err != nil {
		return &streamsnake.StorageWriteError{
			ContentID: item.ContentID,
			Attempts:  int(policy.Attempts),
			Err:       err,
		}
	}
	return nil
}

func (s *Store) upsertTx(tx *gorm.DB, item *streamsnake.ContentItem, streams []streamsnake.ResolvedStream) error {
	record := ContentItem{
		ContentID:   item.ContentID,
		Title:       item.Title,
		ReleaseYear: item.ReleaseYear,
		Synopsis:    item.Synopsis,
		PosterURL:   item.PosterURL,
		SourceURL:   item.SourceURL,
		SourceSite:  item.SourceSite,
		ContentType: string(item.Type),
		Status:      string(item.Status),
	}
	if err := record.SetMetadataMap(item.Metadata); err != nil {
		return fmt.Errorf("failed to serialize metadata: %v", err)
	}

	var existing ContentItem
	result := tx.Where("content_id = ?", item.ContentID).First(&existing)
	switch {
	case result.Error == gorm.ErrRecordNotFound:
		if err := tx.Create(&record).Error; err != nil {
			// Concurrent creation for the same id: fall back to update.
			if !isUniqueViolation(err) {
				return fmt.Errorf("failed to create content item: %v", err)
			}
			if err := tx.Where("content_id = ?", item.ContentID).First(&existing).Error; err != nil {
				return fmt.Errorf("failed to re-read content item: %v", err)
			}
			record.ID = existing.ID
			if err := tx.Model(&existing).Updates(itemColumns(&record)).Error; err != nil {
				return fmt.Errorf("failed to update content item: %v", err)
			}
		}
	case result.Error != nil:
		return fmt.Errorf("failed to look up content item: %v", result.Error)
	default:
		record.ID = existing.ID
		if err := tx.Model(&existing).Updates(itemColumns(&record)).Error; err != nil {
			return fmt.Errorf("failed to update content item: %v", err)
		}
	}

	return s.replaceStreamsTx(tx, record.ID, streams)
}

// itemColumns builds the update map. A map keeps zero values (year 0,
// empty synopsis) applied, Updates with a struct would drop them.
func itemColumns(record *ContentItem) map[string]interface{} {
	return map[string]interface{}{
		"title":        record.Title,
		"release_year": record.ReleaseYear,
		"synopsis":     record.Synopsis,
		"poster_url":   record.PosterURL,
		"source_url":   record.SourceURL,
		"source_site":  record.SourceSite,
		"content_type": record.ContentType,
		"status":       record.Status,
		"metadata":     record.Metadata,
	}
}

func (s *Store) replaceStreamsTx(tx *gorm.DB, itemID uint, streams []streamsnake.ResolvedStream) error {
	now := time.Now().Unix()

	current := make(map[string]bool, len(streams))
	for _, stream := range streams {
		current[stream.URL] = true
	}

	// Deactivate links that didn't come back this run.
	var existing []StreamLink
	if err := tx.Where("content_item_id = ?", itemID).Find(&existing).Error; err != nil {
		return fmt.Errorf("failed to load existing streams: %v", err)
	}
	for _, link := range existing {
		if !current[link.StreamURL] && link.IsActive {
			if err := tx.Model(&StreamLink{}).Where("id = ?", link.ID).Updates(map[string]interface{}{
				"is_active":     false,
				"last_checked":  now,
				"error_message": "not found on last visit",
			}).Error; err != nil {
				return fmt.Errorf("failed to deactivate stream: %v", err)
			}
		}
	}

	for _, stream := range streams {
		link := StreamLink{
			ContentItemID: itemID,
			StreamURL:     stream.URL,
			ServerName:    stream.ServerName,
			Quality:       stream.Quality,
			Language:      stream.Language,
			IsActive:      true,
			LastChecked:   now,
			CheckCount:    1,
		}
		err := tx.Create(&link).Error
		if err == nil {
			continue
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("failed to create stream link: %v", err)
		}
		// Known (item, url) pair: refresh it in place.
		if err := tx.Model(&StreamLink{}).
			Where("content_item_id = ? AND stream_url = ?", itemID, stream.URL).
			Updates(map[string]interface{}{
				"server_name":   stream.ServerName,
				"quality":       stream.Quality,
				"language":      stream.Language,
				"is_active":     true,
				"last_checked":  now,
				"error_message": "",
				"check_count":   gorm.Expr("check_count + 1"),
			}).Error; err != nil {
			return fmt.Errorf("failed to refresh stream link: %v", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

// LinksDueForRecheck returns active links whose last check is older than
// the cutoff, oldest first, with their items preloaded for referer URLs.
func (s *Store) LinksDueForRecheck(ctx context.Context, olderThan time.Time, limit int) ([]StreamLink, error) {
	var links []StreamLink
	query := s.db.WithContext(ctx).
		Preload("ContentItem").
		Where("is_active = ? AND last_checked < ?", true, olderThan.Unix()).
		Order("last_checked ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to list links for recheck: %v", err)
	}
	return links, nil
}

// MarkLinkChecked records one validation outcome for a link.
func (s *Store) MarkLinkChecked(ctx context.Context, linkID uint, ok bool, errMsg string) error {
	policy := lockRetry()
	return policy.Do(ctx, func() error {
		return s.db.WithContext(ctx).Model(&StreamLink{}).Where("id = ?", linkID).Updates(map[string]interface{}{
			"is_active":     ok,
			"last_checked":  time.Now().Unix(),
			"error_message": errMsg,
			"check_count":   gorm.Expr("check_count + 1"),
		}).Error
	})
}

// ListItems returns items with their streams, optionally filtered by
// source site. Ordered by discovery time.
func (s *Store) ListItems(ctx context.Context, sourceSite string) ([]ContentItem, error) {
	var items []ContentItem
	query := s.db.WithContext(ctx).Preload("Streams").Order("created_at ASC")
	if sourceSite != "" {
		query = query.Where("source_site = ?", sourceSite)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list content items: %v", err)
	}
	return items, nil
}

// CountBySite reports item totals per source site for the summary output.
func (s *Store) CountBySite(ctx context.Context) (map[string]int64, error) {
	type row struct {
		SourceSite string
		N          int64
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&ContentItem{}).
		Select("source_site, count(*) as n").
		Group("source_site").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count items: %v", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.SourceSite] = r.N
	}
	return counts, nil
}
