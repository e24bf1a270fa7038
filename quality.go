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

import "strings"

// Quality labels, highest first. Marker scan resolves ties toward the
// higher-resolution label: a label carrying both "1080" and "720" is 1080p.
const (
	Quality1080p   = "1080p"
	QualityHD      = "HD"
	Quality720p    = "720p"
	QualityDVD     = "DVD"
	QualitySD      = "SD"
	QualityUnknown = "Unknown"
)

// ClassifyQuality maps a server-button or embed label to a quality bucket by
// deterministic text scan.
func ClassifyQuality(label string) string {
	s := strings.ToUpper(strings.TrimSpace(label))
	switch {
	case s == "":
		return QualityUnknown
	case strings.Contains(s, "1080"):
		return Quality1080p
	case strings.Contains(s, "HD"):
		return QualityHD
	case strings.Contains(s, "720"):
		return Quality720p
	case strings.Contains(s, "DVD"):
		return QualityDVD
	default:
		return QualitySD
	}
}
