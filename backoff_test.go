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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryAttemptBound(t *testing.T) {
	policy := RetryPolicy{
		Attempts:   4,
		BaseDelay:  time.Millisecond,
		Multiplier: 2,
	}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return errors.New("still broken")
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls, "the op runs exactly Attempts times")
}

func TestRetryStopsOnSuccess(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.BaseDelay = time.Millisecond

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryNonRetryableStopsEarly(t *testing.T) {
	fatal := errors.New("fatal")
	policy := RetryPolicy{
		Attempts:   5,
		BaseDelay:  time.Millisecond,
		Multiplier: 2,
		Retryable:  func(err error) bool { return !errors.Is(err, fatal) },
	}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return fatal
	})
	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestRetryDelaysNonDecreasing(t *testing.T) {
	policy := RetryPolicy{
		Attempts:   4,
		BaseDelay:  5 * time.Millisecond,
		Multiplier: 2,
	}

	var stamps []time.Time
	policy.Do(context.Background(), func() error {
		stamps = append(stamps, time.Now())
		return errors.New("nope")
	})
	require.Len(t, stamps, 4)

	var gaps []time.Duration
	for i := 1; i < len(stamps); i++ {
		gaps = append(gaps, stamps[i].Sub(stamps[i-1]))
	}
	for i := 1; i < len(gaps); i++ {
		// Doubling base delay; wall-clock jitter can't shrink it below the
		// previous gap's floor.
		assert.GreaterOrEqual(t, gaps[i], gaps[i-1]/2, "delays must not decrease")
	}
}

func TestRetryHonorsContextCancel(t *testing.T) {
	policy := RetryPolicy{
		Attempts:   10,
		BaseDelay:  50 * time.Millisecond,
		Multiplier: 2,
	}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := policy.Do(ctx, func() error {
		calls++
		return errors.New("slow failure")
	})
	require.Error(t, err)
	assert.Less(t, calls, 10, "cancellation cuts the retry loop short")
}
