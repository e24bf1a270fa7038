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

package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/kennygrant/sanitize"
	"github.com/spf13/cobra"

	"github.com/agentberlin/streamsnake/internal/config"
	"github.com/agentberlin/streamsnake/internal/store"
)

var exportFlags struct {
	dbPath string
	site   string
	format string
	out    string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog as JSON or CSV",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.dbPath, "db", "", "database file path")
	exportCmd.Flags().StringVar(&exportFlags.site, "site", "", "only export items from this source site")
	exportCmd.Flags().StringVar(&exportFlags.format, "format", "json", "output format: json or csv")
	exportCmd.Flags().StringVar(&exportFlags.out, "out", "", "output file (default catalog[-site].<format>)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	db, err := openStore(exportFlags.dbPath, cfg)
	if err != nil {
		return err
	}

	items, err := db.ListItems(cmd.Context(), exportFlags.site)
	if err != nil {
		return err
	}

	outPath := exportFlags.out
	if outPath == "" {
		name := "catalog"
		if exportFlags.site != "" {
			name += "-" + sanitize.BaseName(exportFlags.site)
		}
		outPath = name + "." + exportFlags.format
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	switch exportFlags.format {
	case "json":
		err = exportJSON(f, items)
	case "csv":
		err = exportCSV(f, items)
	default:
		return fmt.Errorf("unknown format %q, want json or csv", exportFlags.format)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d items to %s\n", len(items), outPath)
	return nil
}

func exportJSON(f *os.File, items []store.ContentItem) error {
	type streamOut struct {
		URL        string `json:"url"`
		Server     string `json:"server"`
		Quality    string `json:"quality"`
		Language   string `json:"language"`
		Active     bool   `json:"active"`
		CheckCount int    `json:"check_count"`
	}
	type itemOut struct {
		ContentID  string         `json:"content_id"`
		Title      string         `json:"title"`
		Year       int            `json:"year,omitempty"`
		Synopsis   string         `json:"synopsis,omitempty"`
		PosterURL  string         `json:"poster_url,omitempty"`
		SourceURL  string         `json:"source_url"`
		SourceSite string         `json:"source_site"`
		Type       string         `json:"type"`
		Status     string         `json:"status"`
		Metadata   map[string]any `json:"metadata,omitempty"`
		Streams    []streamOut    `json:"streams"`
	}

	out := make([]itemOut, 0, len(items))
	for _, item := range items {
		record := itemOut{
			ContentID:  item.ContentID,
			Title:      item.Title,
			Year:       item.ReleaseYear,
			Synopsis:   item.Synopsis,
			PosterURL:  item.PosterURL,
			SourceURL:  item.SourceURL,
			SourceSite: item.SourceSite,
			Type:       item.ContentType,
			Status:     item.Status,
			Metadata:   item.GetMetadataMap(),
			Streams:    []streamOut{},
		}
		for _, s := range item.Streams {
			record.Streams = append(record.Streams, streamOut{
				URL:        s.StreamURL,
				Server:     s.ServerName,
				Quality:    s.Quality,
				Language:   s.Language,
				Active:     s.IsActive,
				CheckCount: s.CheckCount,
			})
		}
		out = append(out, record)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// exportCSV flattens to one row per stream; items without streams still
// get a row with empty stream columns.
func exportCSV(f *os.File, items []store.ContentItem) error {
	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"content_id", "title", "year", "source_site", "source_url",
		"type", "status", "stream_url", "server", "quality", "active"}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, item := range items {
		base := []string{
			item.ContentID, item.Title, strconv.Itoa(item.ReleaseYear),
			item.SourceSite, item.SourceURL, item.ContentType, item.Status,
		}
		if len(item.Streams) == 0 {
			if err := w.Write(append(base, "", "", "", "")); err != nil {
				return err
			}
			continue
		}
		for _, s := range item.Streams {
			row := append(append([]string{}, base...),
				s.StreamURL, s.ServerName, s.Quality, strconv.FormatBool(s.IsActive))
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	return w.Error()
}
