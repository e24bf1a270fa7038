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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentberlin/streamsnake/testutil"
)

func TestFetchSitemapLinksFollowsIndex(t *testing.T) {
	srv := testutil.NewStreamSite()
	defer srv.Close()

	links, err := FetchSitemapLinks(context.Background(), srv.Client(),
		[]string{srv.URL + "/sitemap-index.xml"})
	require.NoError(t, err)

	// The index points at the movie sitemap, which lists two items and one
	// genre page.
	assert.Equal(t, []string{
		srv.URL + "/movie/alpha-1001",
		srv.URL + "/movie/beta-1002",
		srv.URL + "/genre/action",
	}, links)
}

func TestFetchSitemapLinksDedupes(t *testing.T) {
	srv := testutil.NewStreamSite()
	defer srv.Close()

	links, err := FetchSitemapLinks(context.Background(), srv.Client(), []string{
		srv.URL + "/sitemap-movies.xml",
		srv.URL + "/sitemap-movies.xml",
	})
	require.NoError(t, err)
	assert.Len(t, links, 3)
}

func TestFetchSitemapLinksErrorStatus(t *testing.T) {
	srv := testutil.NewStreamSite()
	defer srv.Close()

	_, err := FetchSitemapLinks(context.Background(), srv.Client(),
		[]string{srv.URL + "/no-such-sitemap.xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
