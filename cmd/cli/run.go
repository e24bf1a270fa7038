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
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentberlin/streamsnake"
	"github.com/agentberlin/streamsnake/internal/config"
	"github.com/agentberlin/streamsnake/internal/sites"
	"github.com/agentberlin/streamsnake/internal/store"
	"github.com/agentberlin/streamsnake/internal/tmdb"
)

var runFlags struct {
	sites          string
	dbPath         string
	maxItems       int
	maxPages       int
	scrollAttempts int
	delayMs        int
	rescrapeStale  bool
	headful        bool
	tmdb           bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run link discovery across the configured sites",
	Long: `Walks each site's listings, resolves server embeds into stream URLs,
validates them and upserts the results into the catalog database.
Interrupting with Ctrl-C finishes the in-flight items and exits cleanly.`,
	RunE: runDiscovery,
}

func init() {
	runCmd.Flags().StringVar(&runFlags.sites, "sites", "",
		fmt.Sprintf("comma-separated sites to run (default from config; known: %s)",
			strings.Join(sites.Names(), ", ")))
	runCmd.Flags().StringVar(&runFlags.dbPath, "db", "", "database file path (default ~/.streamsnake/streamsnake.db)")
	runCmd.Flags().IntVar(&runFlags.maxItems, "max-items", 0, "max new items per site (0 = unlimited)")
	runCmd.Flags().IntVar(&runFlags.maxPages, "max-pages", 0, "max listing pages per entry point")
	runCmd.Flags().IntVar(&runFlags.scrollAttempts, "scroll-attempts", 0, "max infinite-scroll attempts per listing page")
	runCmd.Flags().IntVar(&runFlags.delayMs, "delay", 0, "inter-request delay in milliseconds")
	runCmd.Flags().BoolVar(&runFlags.rescrapeStale, "rescrape-stale", true, "revisit known items whose streams have all gone inactive")
	runCmd.Flags().BoolVar(&runFlags.headful, "headful", false, "run the browser with a visible window")
	runCmd.Flags().BoolVar(&runFlags.tmdb, "tmdb", false, "also run the TMDB/vidsrc adapter")
	rootCmd.AddCommand(runCmd)
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	siteNames := cfg.Crawl.Sites
	if runFlags.sites != "" {
		siteNames = strings.Split(runFlags.sites, ",")
	}
	selected, err := sites.ByName(siteNames)
	if err != nil {
		return err
	}

	db, err := openStore(runFlags.dbPath, cfg)
	if err != nil {
		return err
	}

	sideLog, err := streamsnake.OpenSideLog(cfg.Crawl.FailedItemsPath)
	if err != nil {
		return fmt.Errorf("opening failed-items log: %w", err)
	}
	defer sideLog.Close()

	delay := time.Duration(cfg.Crawl.RequestDelayMs) * time.Millisecond
	if runFlags.delayMs > 0 {
		delay = time.Duration(runFlags.delayMs) * time.Millisecond
	}
	maxItems := cfg.Crawl.MaxItemsPerSite
	if runFlags.maxItems > 0 {
		maxItems = runFlags.maxItems
	}
	maxPages := cfg.Crawl.MaxPages
	if runFlags.maxPages > 0 {
		maxPages = runFlags.maxPages
	}
	scrollAttempts := cfg.Crawl.ScrollAttempts
	if runFlags.scrollAttempts > 0 {
		scrollAttempts = runFlags.scrollAttempts
	}
	rescrapeStale := cfg.Crawl.RescrapeStale
	if cmd.Flags().Changed("rescrape-stale") {
		rescrapeStale = runFlags.rescrapeStale
	}

	httpClient := &http.Client{Timeout: 20 * time.Second}
	runner := streamsnake.NewRunner(streamsnake.RunnerConfig{
		Sites:   selected,
		Sink:    db,
		SideLog: sideLog,
		Log:     slog.Default(),
		Session: streamsnake.SessionConfig{
			Headless:    cfg.Crawl.Headless && !runFlags.headful,
			UserAgent:   cfg.Crawl.UserAgent,
			PageTimeout: time.Duration(cfg.Crawl.PageTimeoutSecs) * time.Second,
		},
		HTTPClient:         httpClient,
		RequestDelay:       delay,
		MaxItemsPerSite:    maxItems,
		MaxPagesPerListing: maxPages,
		ScrollAttempts:     scrollAttempts,
		SkipStale:          !rescrapeStale,
		SiteConcurrency:    cfg.Crawl.SiteConcurrency,
	})

	stats, runErr := runner.Run(ctx)

	ranSites := sites.NamesOf(selected)
	if runFlags.tmdb || cfg.TMDB.Enabled {
		ranSites = append(ranSites, "vidsrc")
		client, err := tmdb.NewClient(cfg.TMDB.APIKey, httpClient)
		if err != nil {
			return err
		}
		adapter := &sites.VidsrcAdapter{
			TMDB:       client,
			Sink:       db,
			Client:     httpClient,
			Log:        slog.Default(),
			SideLog:    sideLog,
			Stats:      stats,
			Pages:      cfg.TMDB.Pages,
			MediaTypes: cfg.TMDB.MediaTypes,
			MaxItems:   maxItems,
		}
		if err := adapter.Run(ctx); err != nil && runErr == nil {
			runErr = err
		}
	}

	// Record the summary even for partial runs, the counters reflect what
	// actually happened.
	record := &store.DiscoveryRun{
		RunID:            stats.RunID,
		Sites:            strings.Join(ranSites, ","),
		StartedAt:        stats.Started().Unix(),
		DurationMs:       stats.Duration().Milliseconds(),
		PagesFetched:     stats.PagesFetched.Load(),
		ItemsDiscovered:  stats.ItemsDiscovered.Load(),
		ItemsPersisted:   stats.ItemsPersisted.Load(),
		ItemsSkipped:     stats.ItemsSkipped.Load(),
		ItemsFailed:      stats.ItemsFailed.Load(),
		StreamsResolved:  stats.StreamsResolved.Load(),
		StreamsValidated: stats.StreamsValidated.Load(),
		StreamsRejected:  stats.StreamsRejected.Load(),
	}
	if err := db.RecordRun(cmd.Context(), record); err != nil {
		slog.Warn("failed to record run summary", "error", err)
	}

	return runErr
}

func openStore(flagPath string, cfg *config.Config) (*store.Store, error) {
	path := flagPath
	if path == "" {
		path = cfg.Database.Path
	}
	if path != "" {
		return store.NewStoreWithPath(path)
	}
	return store.NewStore()
}
