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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentberlin/streamsnake/testutil"
)

func TestOrderByPriority(t *testing.T) {
	candidates := []EmbedCandidate{
		{ServerName: "VidCloud"},
		{ServerName: "Filelions"},
		{ServerName: "MegaCloud"},
		{ServerName: "UpCloud"},
	}
	priority := map[string]int{"upcloud": 0, "megacloud": 1, "vidcloud": 2}

	ordered := orderByPriority(candidates, priority)
	names := make([]string, len(ordered))
	for i, c := range ordered {
		names[i] = c.ServerName
	}
	// Ranked servers first by rank, unranked ones keep document order last.
	assert.Equal(t, []string{"UpCloud", "MegaCloud", "VidCloud", "Filelions"}, names)

	// The input slice must not be reordered in place.
	assert.Equal(t, "VidCloud", candidates[0].ServerName)

	// No priority map means document order.
	same := orderByPriority(candidates, nil)
	assert.Equal(t, candidates, same)
}

func TestRedirectResolver(t *testing.T) {
	srv := testutil.NewStreamSite()
	defer srv.Close()

	env := &ResolveEnv{
		Client:  srv.Client(),
		Site:    &Site{Name: "fixture", BaseURL: srv.URL},
		PageURL: srv.URL + "/movie/alpha-1001",
		Log:     testWalkerLogger(),
	}

	stream, err := RedirectResolver{}.Resolve(context.Background(), env,
		EmbedCandidate{URL: srv.URL + "/go.php?id=xyz1", ServerName: ServerOther})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/hoster/dood/xyz1", stream.URL)
	// The landing URL names the hoster when the candidate didn't.
	assert.Equal(t, "Dood", stream.ServerName)
	assert.Equal(t, DefaultLanguage, stream.Language)

	// A link that doesn't bounce is not a resolved stream.
	_, err = RedirectResolver{}.Resolve(context.Background(), env,
		EmbedCandidate{URL: srv.URL + "/movie/alpha-1001"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no redirect")

	// An empty candidate can't be followed at all.
	_, err = RedirectResolver{}.Resolve(context.Background(), env, EmbedCandidate{})
	require.Error(t, err)
}

func TestAjaxSourcesResolver(t *testing.T) {
	srv := testutil.NewStreamSite()
	defer srv.Close()

	env := &ResolveEnv{
		Client:  srv.Client(),
		Site:    &Site{Name: "fixture", BaseURL: srv.URL},
		PageURL: srv.URL + "/film/alpha",
		Log:     testWalkerLogger(),
	}
	resolver := AjaxSourcesResolver{EndpointFormat: "/ajax/episode/sources/%s"}

	stream, err := resolver.Resolve(context.Background(), env,
		EmbedCandidate{DataID: "77", Label: "Server 1"})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/embed/upcloud/from-ajax-77", stream.URL)
	assert.Equal(t, "UpCloud", stream.ServerName)

	_, err = resolver.Resolve(context.Background(), env,
		EmbedCandidate{DataID: "404"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, err = resolver.Resolve(context.Background(), env, EmbedCandidate{})
	require.Error(t, err)
}

func TestIframePollResolverDirectURL(t *testing.T) {
	// A candidate whose iframe src was present at extraction time resolves
	// without touching the fetcher.
	stream, err := IframePollResolver{}.Resolve(context.Background(),
		&ResolveEnv{Site: &Site{}},
		EmbedCandidate{URL: "https://upcloud.example/e/abc", ServerName: "UpCloud"})
	require.NoError(t, err)
	assert.Equal(t, "https://upcloud.example/e/abc", stream.URL)
	assert.Equal(t, "UpCloud", stream.ServerName)
}

func TestIframePollResolverClickAndPoll(t *testing.T) {
	blank := &RenderedPage{
		FinalURL: "https://scripted.test/movie/one-1",
		HTML:     `<html><body><iframe src="about:blank"></iframe></body></html>`,
	}
	populated := &RenderedPage{
		FinalURL: "https://scripted.test/movie/one-1",
		HTML: `<html><body>
<iframe src="https://ads.doubleclick.example/pixel"></iframe>
<iframe src="/embed/megacloud/one-stream"></iframe>
</body></html>`,
	}
	fetcher := &scriptFetcher{inPlace: []*RenderedPage{blank, populated}}

	env := &ResolveEnv{
		Fetcher: fetcher,
		Site:    &Site{ExcludedEmbedHosts: []string{"*doubleclick*"}},
		PageURL: "https://scripted.test/movie/one-1",
		Log:     testWalkerLogger(),
	}

	stream, err := IframePollResolver{Attempts: 3, PollWait: 1}.Resolve(
		context.Background(), env, EmbedCandidate{DataID: "9", Label: "MegaCloud"})
	require.NoError(t, err)
	// about:blank and the tracking iframe are both passed over.
	assert.Equal(t, "https://scripted.test/embed/megacloud/one-stream", stream.URL)
	assert.Equal(t, "MegaCloud", stream.ServerName)
	assert.Equal(t, 2, fetcher.renders)
}

func TestIframePollResolverGivesUp(t *testing.T) {
	blank := &RenderedPage{
		FinalURL: "https://scripted.test/movie/one-1",
		HTML:     "<html><body></body></html>",
	}
	fetcher := &scriptFetcher{inPlace: []*RenderedPage{blank, blank, blank}}

	env := &ResolveEnv{
		Fetcher: fetcher,
		Site:    &Site{},
		PageURL: "https://scripted.test/movie/one-1",
		Log:     testWalkerLogger(),
	}

	_, err := IframePollResolver{Attempts: 3, PollWait: 1}.Resolve(
		context.Background(), env, EmbedCandidate{DataID: "9", Label: "Server 2"})
	require.Error(t, err)
	assert.Equal(t, 3, fetcher.renders)

	_, err = IframePollResolver{}.Resolve(context.Background(), env, EmbedCandidate{})
	require.Error(t, err)
}

type scriptResolver struct {
	fail map[string]bool
}

func (r scriptResolver) Resolve(_ context.Context, _ *ResolveEnv, cand EmbedCandidate) (*ResolvedStream, error) {
	if r.fail[cand.ServerName] {
		return nil, fmt.Errorf("server %s is down", cand.ServerName)
	}
	return &ResolvedStream{URL: "https://cdn.example/" + cand.ServerName, ServerName: cand.ServerName}, nil
}

func TestResolveStreamsFirstSuccess(t *testing.T) {
	site := &Site{
		ServerPriority: map[string]int{"upcloud": 0, "megacloud": 1, "vidcloud": 2},
		Resolver:       scriptResolver{fail: map[string]bool{"UpCloud": true}},
		Mode:           FirstSuccess,
	}
	env := &ResolveEnv{Site: site, Log: testWalkerLogger()}

	streams := ResolveStreams(context.Background(), env, []EmbedCandidate{
		{ServerName: "VidCloud"},
		{ServerName: "UpCloud"},
		{ServerName: "MegaCloud"},
	}, nil)
	// UpCloud is tried first and fails; MegaCloud wins and VidCloud is
	// never attempted.
	require.Len(t, streams, 1)
	assert.Equal(t, "MegaCloud", streams[0].ServerName)
}

func TestResolveStreamsFirstSuccessMovesPastRejectedStream(t *testing.T) {
	site := &Site{
		ServerPriority: map[string]int{"upcloud": 0, "megacloud": 1, "vidcloud": 2},
		Resolver:       scriptResolver{},
		Mode:           FirstSuccess,
	}
	env := &ResolveEnv{Site: site, Log: testWalkerLogger()}

	rejected := []string{}
	accept := func(s *ResolvedStream) error {
		if s.ServerName == "UpCloud" {
			rejected = append(rejected, s.ServerName)
			return fmt.Errorf("dead stream")
		}
		return nil
	}
	streams := ResolveStreams(context.Background(), env, []EmbedCandidate{
		{ServerName: "VidCloud"},
		{ServerName: "UpCloud"},
		{ServerName: "MegaCloud"},
	}, accept)
	// UpCloud resolves but is rejected; the next server in priority order
	// still gets its turn and wins.
	require.Len(t, streams, 1)
	assert.Equal(t, "MegaCloud", streams[0].ServerName)
	assert.Equal(t, []string{"UpCloud"}, rejected)
}

func TestResolveStreamsCollectAll(t *testing.T) {
	site := &Site{
		ServerPriority: map[string]int{"upcloud": 0, "megacloud": 1, "vidcloud": 2},
		Resolver:       scriptResolver{fail: map[string]bool{"MegaCloud": true}},
		Mode:           CollectAll,
	}
	env := &ResolveEnv{Site: site, Log: testWalkerLogger()}

	streams := ResolveStreams(context.Background(), env, []EmbedCandidate{
		{ServerName: "VidCloud"},
		{ServerName: "UpCloud"},
		{ServerName: "MegaCloud"},
	}, nil)
	require.Len(t, streams, 2)
	assert.Equal(t, "UpCloud", streams[0].ServerName)
	assert.Equal(t, "VidCloud", streams[1].ServerName)
}
