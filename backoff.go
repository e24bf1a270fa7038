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
	"math"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryPolicy is a bounded retry-with-backoff schedule shared by the ingest
// sink (storage lock contention) and the deep validator (transient network
// failures). Delay for attempt n is BaseDelay * Multiplier^n.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first one.
	Attempts uint
	// BaseDelay is the wait after the first failed attempt.
	BaseDelay time.Duration
	// Multiplier scales the delay after every failed attempt. Values <= 1
	// are treated as 2.
	Multiplier float64
	// Retryable distinguishes transient failures from terminal ones. A nil
	// predicate retries everything.
	Retryable func(error) bool
	// OnRetry, if set, is called before each re-attempt with the attempt
	// number (0-based) and the error that triggered it.
	OnRetry func(n uint, err error)
}

// DefaultRetryPolicy matches the ingest sink's historical schedule:
// 5 attempts, 500ms base delay, doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:   5,
		BaseDelay:  500 * time.Millisecond,
		Multiplier: 2,
	}
}

// Do runs op under the policy. It returns nil on the first success, the last
// error once the attempt budget is spent, or ctx.Err() if the context is
// cancelled while waiting between attempts.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}
	mult := p.Multiplier
	if mult <= 1 {
		mult = 2
	}

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return time.Duration(float64(p.BaseDelay) * math.Pow(mult, float64(n)))
		}),
	}
	if p.Retryable != nil {
		opts = append(opts, retry.RetryIf(p.Retryable))
	}
	if p.OnRetry != nil {
		opts = append(opts, retry.OnRetry(p.OnRetry))
	}

	return retry.Do(op, opts...)
}
