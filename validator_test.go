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
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator(client *http.Client) *Validator {
	return &Validator{Client: client, Log: slog.Default()}
}

func TestQuickCheck(t *testing.T) {
	v := newTestValidator(nil)

	tests := []struct {
		name string
		url  string
		ok   bool
	}{
		{"too short", "https://x.io/a", false},
		{"not http", "ftp://files.example.com/streams/video-file-9000", false},
		{"about blank", "https://host.example.com/player?src=about:blank", false},
		{"404 path", "https://host.example.com/errors/404/page-gone-away", false},
		{"videostr without token", "https://videostr.net/embed/abcdefgh-long-id", false},
		{"videostr with token", "https://videostr.net/embed/abcdefgh?z=tok123", true},
		{"plain good url", "https://upcloud.example.com/embed/v/abcdef123456", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.QuickCheck(tt.url)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				var vErr *ValidationError
				assert.ErrorAs(t, err, &vErr)
			}
		})
	}
}

func TestDeepCheckHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><video></video></body></html>"))
	}))
	defer srv.Close()

	v := newTestValidator(srv.Client())
	assert.NoError(t, v.DeepCheck(context.Background(), srv.URL+"/embed/one", srv.URL))
}

func TestDeepCheckDeletedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>File was deleted</body></html>"))
	}))
	defer srv.Close()

	v := newTestValidator(srv.Client())
	err := v.DeepCheck(context.Background(), srv.URL+"/embed/gone", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file was deleted")
}

func TestDeepCheckErrorRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/bounce", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/404", http.StatusFound)
	})
	mux.HandleFunc("/404", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("gone"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	v := newTestValidator(srv.Client())
	err := v.DeepCheck(context.Background(), srv.URL+"/bounce", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error page")
}

func TestDeepCheckHeadNotAllowed(t *testing.T) {
	// Hosters that reject HEAD but serve GET are alive.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Write([]byte("<html><body>player</body></html>"))
	}))
	defer srv.Close()

	v := newTestValidator(srv.Client())
	assert.NoError(t, v.DeepCheck(context.Background(), srv.URL+"/embed/headless", srv.URL))
}

func TestDeepCheckHeadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	v := newTestValidator(srv.Client())
	err := v.DeepCheck(context.Background(), srv.URL+"/embed/blocked", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestDeepCheckSendsHeaders(t *testing.T) {
	var gotUA, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		w.Write([]byte("ok player page"))
	}))
	defer srv.Close()

	v := newTestValidator(srv.Client())
	require.NoError(t, v.DeepCheck(context.Background(), srv.URL+"/embed/h", "https://site.example/movie/x"))
	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Equal(t, "https://site.example/movie/x", gotReferer)
}

func TestDecodeToUTF8(t *testing.T) {
	// ISO-8859-1 bytes for "vidéo supprimée" with a charset header.
	latin1 := []byte{'v', 'i', 'd', 0xe9, 'o'}
	decoded := decodeToUTF8(latin1, "text/html; charset=iso-8859-1")
	assert.Equal(t, "vidéo", string(decoded))

	// UTF-8 passes through untouched.
	utf8 := []byte("plain text")
	assert.Equal(t, utf8, decodeToUTF8(utf8, "text/html; charset=utf-8"))
}
