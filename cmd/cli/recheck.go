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
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentberlin/streamsnake"
	"github.com/agentberlin/streamsnake/internal/config"
)

var recheckFlags struct {
	dbPath    string
	olderThan time.Duration
	limit     int
}

var recheckCmd = &cobra.Command{
	Use:   "recheck",
	Short: "Re-validate stored stream links",
	Long: `Runs the deep network check against active links whose last check is
older than the cutoff and deactivates the ones that stopped working.`,
	RunE: runRecheck,
}

func init() {
	recheckCmd.Flags().StringVar(&recheckFlags.dbPath, "db", "", "database file path")
	recheckCmd.Flags().DurationVar(&recheckFlags.olderThan, "older-than", 24*time.Hour,
		"only recheck links last checked before this long ago")
	recheckCmd.Flags().IntVar(&recheckFlags.limit, "limit", 0, "max links to recheck (0 = all due)")
	rootCmd.AddCommand(recheckCmd)
}

func runRecheck(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openStore(recheckFlags.dbPath, cfg)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-recheckFlags.olderThan)
	links, err := db.LinksDueForRecheck(ctx, cutoff, recheckFlags.limit)
	if err != nil {
		return err
	}

	log := slog.Default()
	log.Info("rechecking links", "due", len(links), "cutoff", cutoff.Format(time.RFC3339))

	validator := &streamsnake.Validator{
		Client: &http.Client{Timeout: 20 * time.Second},
		Log:    log,
	}

	var kept, dropped int
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return err
		}
		referer := ""
		if link.ContentItem != nil {
			referer = link.ContentItem.SourceURL
		}
		checkErr := validator.Validate(ctx, link.StreamURL, referer)
		errMsg := ""
		if checkErr != nil {
			errMsg = checkErr.Error()
			dropped++
		} else {
			kept++
		}
		if err := db.MarkLinkChecked(ctx, link.ID, checkErr == nil, errMsg); err != nil {
			return fmt.Errorf("recording check for link %d: %w", link.ID, err)
		}
		if checkErr != nil {
			log.Info("link deactivated", "url", link.StreamURL, "reason", errMsg)
		}
	}

	log.Info("recheck complete", "kept", kept, "deactivated", dropped)
	return nil
}
