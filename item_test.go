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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDefaults(t *testing.T) {
	item := &ContentItem{Title: "   "}
	item.Normalize()
	assert.Equal(t, UnknownTitle, item.Title)
	assert.Equal(t, ContentTypeMovie, item.Type)
	assert.Equal(t, StatusReleased, item.Status)
}

func TestNormalizeYearBounds(t *testing.T) {
	item := &ContentItem{Title: "X", ReleaseYear: 123}
	item.Normalize()
	assert.Equal(t, 0, item.ReleaseYear, "implausible year resets to unknown")

	item = &ContentItem{Title: "X", ReleaseYear: 1987}
	item.Normalize()
	assert.Equal(t, 1987, item.ReleaseYear)

	item = &ContentItem{Title: "X"}
	item.Normalize()
	assert.Equal(t, 0, item.ReleaseYear, "zero stays zero")
}

func TestSynthesizeContentIDStable(t *testing.T) {
	a := SynthesizeContentID("goojara", "https://www.goojara.to/mMG6zJ")
	b := SynthesizeContentID("goojara", "https://www.goojara.to/mMG6zJ?ref=home#top")
	assert.Equal(t, a, b, "query and fragment must not change identity")
	assert.True(t, strings.HasPrefix(a, "goojara_"))

	other := SynthesizeContentID("sflix", "https://www.goojara.to/mMG6zJ")
	assert.NotEqual(t, a, other, "same path on a different site is a different item")

	c := SynthesizeContentID("goojara", "https://www.goojara.to/mAb3xY")
	assert.NotEqual(t, a, c)
}
