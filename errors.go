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
	"errors"
	"fmt"
)

var (
	// ErrFetchTimeout is returned when a page load exceeds the session timeout.
	// Recoverable: the caller skips the page or item and continues.
	ErrFetchTimeout = errors.New("page load timed out")

	// ErrBlocked is returned when the rendered page carries access-denied
	// markers. Recoverable per page; three consecutive blocked or empty
	// listing pages end the walk.
	ErrBlocked = errors.New("blocked by target site")

	// ErrSessionClosed is returned when Render is called on a closed session.
	ErrSessionClosed = errors.New("browser session closed")

	// ErrStorageBusy marks a transient write-lock failure. The ingest sink
	// retries these with backoff before giving up.
	ErrStorageBusy = errors.New("storage busy")

	// ErrPaginationExhausted is returned when no next-page strategy produced
	// a new page.
	ErrPaginationExhausted = errors.New("pagination exhausted")
)

// ValidationError reports a candidate stream URL that failed quick or deep
// validation. It is a per-server, non-fatal condition: the resolver moves on
// to the next candidate.
type ValidationError struct {
	URL    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation rejected %s: %s", e.URL, e.Reason)
}

// StorageWriteError is returned when the ingest sink exhausted its retry
// budget. The runner side-logs the item and continues; it never aborts the
// run.
type StorageWriteError struct {
	ContentID string
	Attempts  int
	Err       error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("giving up on %s after %d attempts: %v", e.ContentID, e.Attempts, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// ConfigError is fatal at run start: the run must not begin.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}
