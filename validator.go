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
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

const (
	// minStreamURLLength: anything shorter cannot be a real embed URL.
	minStreamURLLength = 30
	// deepCheckTimeout bounds each probe request.
	deepCheckTimeout = 8 * time.Second
	// deepCheckBodyLimit is how much of a GET body gets scanned for error
	// phrases.
	deepCheckBodyLimit = 64 * 1024
)

// invalidURLFragments mark structurally dead candidates regardless of what
// the host would answer.
var invalidURLFragments = []string{
	"about:blank",
	"javascript:",
	"/404",
	"undefined",
	"null.",
}

// errorPathMarkers in a redirect target mean the hoster bounced us to an
// error page instead of the player.
var errorPathMarkers = []string{
	"/404", "/error", "not-found", "notfound", "removed", "deleted",
}

// errorBodyPhrases inside a player page mean the file is gone even though
// the server answered 200.
var errorBodyPhrases = []string{
	"file was deleted",
	"file not found",
	"video not found",
	"video is unavailable",
	"video unavailable",
	"no longer available",
	"has been removed",
	"404 not found",
	"this video does not exist",
}

// Validator probes resolved stream URLs before they are persisted. The
// quick check is purely structural; the deep check talks to the hoster.
type Validator struct {
	Client *http.Client
	Log    *slog.Logger
	// Timeout overrides the default per-probe deadline when positive.
	Timeout time.Duration
}

// QuickCheck rejects URLs that can't possibly play without any network
// traffic. It returns a *ValidationError describing the first failure.
func (v *Validator) QuickCheck(rawURL string) error {
	if len(rawURL) < minStreamURLLength {
		return &ValidationError{URL: rawURL, Reason: "url too short"}
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{URL: rawURL, Reason: "not an absolute http url"}
	}
	lower := strings.ToLower(rawURL)
	for _, frag := range invalidURLFragments {
		if strings.Contains(lower, frag) {
			return &ValidationError{URL: rawURL, Reason: fmt.Sprintf("contains %q", frag)}
		}
	}
	// videostr players are only addressable through their token parameter.
	if strings.Contains(u.Host, "videostr.net") && u.Query().Get("z") == "" {
		return &ValidationError{URL: rawURL, Reason: "videostr url missing z token"}
	}
	return nil
}

// DeepCheck probes the URL with a HEAD request and escalates to a partial
// GET when the HEAD alone can't settle it. A GET timeout after a healthy
// HEAD counts as alive, hosters routinely stall full downloads.
func (v *Validator) DeepCheck(ctx context.Context, rawURL, referer string) error {
	headStatus, finalURL, err := v.probe(ctx, http.MethodHead, rawURL, referer, nil)
	if err != nil {
		return &ValidationError{URL: rawURL, Reason: fmt.Sprintf("head failed: %v", err)}
	}

	if redirectedToError(rawURL, finalURL) {
		return &ValidationError{URL: rawURL, Reason: fmt.Sprintf("redirected to error page %s", finalURL)}
	}

	headOK := headStatus >= 200 && headStatus < 400
	if !headOK && headStatus != http.StatusMethodNotAllowed {
		return &ValidationError{URL: rawURL, Reason: fmt.Sprintf("head answered %d", headStatus)}
	}

	// GET escalation: a 200 HEAD can still front a "file was deleted" page.
	var body []byte
	getStatus, getFinal, err := v.probe(ctx, http.MethodGet, rawURL, referer, &body)
	if err != nil {
		if headOK && isTimeout(err) {
			v.Log.Debug("head ok, get timed out, accepting", "url", rawURL)
			return nil
		}
		return &ValidationError{URL: rawURL, Reason: fmt.Sprintf("get failed: %v", err)}
	}
	if getStatus < 200 || getStatus >= 400 {
		return &ValidationError{URL: rawURL, Reason: fmt.Sprintf("get answered %d", getStatus)}
	}
	if redirectedToError(rawURL, getFinal) {
		return &ValidationError{URL: rawURL, Reason: fmt.Sprintf("get redirected to error page %s", getFinal)}
	}
	if phrase := findErrorPhrase(body); phrase != "" {
		return &ValidationError{URL: rawURL, Reason: fmt.Sprintf("body says %q", phrase)}
	}
	return nil
}

// Validate runs both stages.
func (v *Validator) Validate(ctx context.Context, rawURL, referer string) error {
	if err := v.QuickCheck(rawURL); err != nil {
		return err
	}
	return v.DeepCheck(ctx, rawURL, referer)
}

// probe issues one request and, when body is non-nil, reads a bounded
// prefix of the response decoded to UTF-8.
func (v *Validator) probe(ctx context.Context, method, rawURL, referer string, body *[]byte) (status int, finalURL string, err error) {
	timeout := v.Timeout
	if timeout <= 0 {
		timeout = deepCheckTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, rawURL, nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := v.Client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	if body != nil {
		raw, err := io.ReadAll(io.LimitReader(resp.Body, deepCheckBodyLimit))
		if err != nil && !isTimeout(err) {
			return resp.StatusCode, resp.Request.URL.String(), err
		}
		*body = decodeToUTF8(raw, resp.Header.Get("Content-Type"))
	} else {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	}
	return resp.StatusCode, resp.Request.URL.String(), nil
}

// decodeToUTF8 converts a response prefix to UTF-8 so phrase scanning
// works on non-UTF-8 player pages. The charset comes from the header when
// present, otherwise it is sniffed from the bytes.
func decodeToUTF8(raw []byte, contentType string) []byte {
	if len(raw) == 0 {
		return raw
	}
	label := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		label = params["charset"]
	}
	if label == "" {
		if result, err := chardet.NewTextDetector().DetectBest(raw); err == nil {
			label = result.Charset
		}
	}
	if label == "" || strings.EqualFold(label, "utf-8") {
		return raw
	}
	reader, err := charset.NewReaderLabel(label, strings.NewReader(string(raw)))
	if err != nil {
		return raw
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return raw
	}
	return decoded
}

func findErrorPhrase(body []byte) string {
	lower := strings.ToLower(string(body))
	for _, phrase := range errorBodyPhrases {
		if strings.Contains(lower, phrase) {
			return phrase
		}
	}
	return ""
}

// redirectedToError reports whether the probe landed on a different URL
// whose path smells like an error page.
func redirectedToError(requested, final string) bool {
	if final == "" || final == requested {
		return false
	}
	lower := strings.ToLower(final)
	for _, marker := range errorPathMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
