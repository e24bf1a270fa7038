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

	"gorm.io/gorm"
)

// RecordRun persists a finished run's summary. Lock retries apply, the run
// record is written after potentially contended item writes.
func (s *Store) RecordRun(ctx context.Context, run *DiscoveryRun) error {
	policy := lockRetry()
	err := policy.Do(ctx, func() error {
		return s.db.WithContext(ctx).Create(run).Error
	})
	if err != nil {
		return fmt.Errorf("failed to record run: %v", err)
	}
	return nil
}

// RecentRuns returns run summaries, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]DiscoveryRun, error) {
	var runs []DiscoveryRun
	query := s.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %v", err)
	}
	return runs, nil
}

// LastRun returns the most recent run summary, or nil when none exist.
func (s *Store) LastRun(ctx context.Context) (*DiscoveryRun, error) {
	var run DiscoveryRun
	result := s.db.WithContext(ctx).Order("started_at DESC").First(&run)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last run: %v", result.Error)
	}
	return &run, nil
}
