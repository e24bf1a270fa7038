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
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentberlin/streamsnake/internal/config"
)

var runsFlags struct {
	dbPath string
	limit  int
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent discovery run summaries",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(runsFlags.dbPath, config.Get())
		if err != nil {
			return err
		}

		runs, err := db.RecentRuns(cmd.Context(), runsFlags.limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tDURATION\tSITES\tPAGES\tDISCOVERED\tPERSISTED\tFAILED\tSTREAMS")
		for _, run := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
				time.Unix(run.StartedAt, 0).Format("2006-01-02 15:04"),
				(time.Duration(run.DurationMs) * time.Millisecond).Round(time.Second),
				run.Sites,
				run.PagesFetched,
				run.ItemsDiscovered,
				run.ItemsPersisted,
				run.ItemsFailed,
				run.StreamsValidated,
			)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsFlags.dbPath, "db", "", "database file path (default ~/.streamsnake/streamsnake.db)")
	runsCmd.Flags().IntVar(&runsFlags.limit, "limit", 10, "how many runs to show")
	rootCmd.AddCommand(runsCmd)
}
