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

// Package sites holds the per-site pipeline configurations. Each site is a
// selector set, URL shape and resolution strategy; the pipeline itself
// lives in the root package.
package sites

import (
	"fmt"
	"strings"

	"github.com/agentberlin/streamsnake"
)

// All returns every markup-driven site, in default run order. The vidsrc
// adapter is API-driven and runs separately.
func All() []*streamsnake.Site {
	return []*streamsnake.Site{
		Goojara(),
		Sflix(),
		Oneflix(),
		Movies123(),
	}
}

// ByName resolves site names (comma-separated friendly) to configurations.
func ByName(names []string) ([]*streamsnake.Site, error) {
	index := make(map[string]*streamsnake.Site)
	for _, site := range All() {
		index[strings.ToLower(site.Name)] = site
	}
	var selected []*streamsnake.Site
	for _, name := range names {
		site, ok := index[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown site %q", name)
		}
		selected = append(selected, site)
	}
	return selected, nil
}

// Names lists the valid site names for help text.
func Names() []string {
	return NamesOf(All())
}

// NamesOf lists the names of a site selection.
func NamesOf(selection []*streamsnake.Site) []string {
	var names []string
	for _, site := range selection {
		names = append(names, site.Name)
	}
	return names
}
