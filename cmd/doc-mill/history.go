// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/doc-mill/internal/batch"
	"github.com/pdiddy/doc-mill/internal/history"
	"github.com/pdiddy/doc-mill/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query past batch runs",
	Long: `History reads the local run database: list recent runs, show one run with
its per-file outcomes, or search failure messages across all runs.`,
}

func init() {
	historyCmd.PersistentFlags().String("history-dir", types.DefaultConfig().History.Dir, "directory holding the run history database")
	historyCmd.PersistentFlags().Bool("json", false, "emit JSON instead of text")

	historyListCmd.Flags().Int("limit", 0, "maximum runs to list (default 20)")
	historySearchCmd.Flags().Int("limit", 0, "maximum matches to return (default 20)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historySearchCmd)
	rootCmd.AddCommand(historyCmd)
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, most recent first",
	RunE:  runHistoryList,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return exitWithCode(2, err)
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return exitWithCode(2, err)
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return writeJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Printf("%-8s  %-19s  %-9s  %5s  %5s  %6s  %7s  %-11s  %s\n",
		"ID", "Started", "Duration", "Total", "OK", "Fail", "Skipped", "Status", "Input")
	fmt.Println(strings.Repeat("-", 110))
	for _, r := range runs {
		status := "complete"
		if r.Interrupted {
			status = "interrupted"
		}
		fmt.Printf("%-8s  %-19s  %-9s  %5d  %5d  %6d  %7d  %-11s  %s\n",
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			batch.FormatDuration(r.Duration()),
			r.Total, r.Successful, r.Failed, r.Skipped,
			status,
			r.InputDir)
	}
	fmt.Printf("\n%d run(s)\n", len(runs))
	return nil
}

// --- show subcommand ---

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run and its per-file outcomes",
	Long: `Show prints the stored summary and every per-file outcome of one run.
The run may be addressed by any unique prefix of its ID.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistoryShow,
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return exitWithCode(2, err)
	}
	defer store.Close()

	run, files, err := store.GetRun(cmd.Context(), args[0])
	if err != nil {
		return exitWithCode(2, err)
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return writeJSON(struct {
			Run   history.Run          `json:"run"`
			Files []history.FileRecord `json:"files"`
		}{*run, files})
	}

	fmt.Printf("Run:      %s\n", run.ID)
	fmt.Printf("Started:  %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Input:    %s\n", run.InputDir)
	fmt.Printf("Output:   %s\n", run.OutputDir)
	fmt.Printf("Duration: %s\n", batch.FormatDuration(run.Duration()))
	fmt.Printf("Outcome:  %d converted, %d skipped, %d failed (total: %d)\n",
		run.Successful, run.Skipped, run.Failed, run.Total)
	if run.Interrupted {
		fmt.Println("Run was interrupted; unprocessed files were skipped.")
	}

	if len(files) > 0 {
		fmt.Println()
	}
	for _, fr := range files {
		switch fr.Status {
		case types.StatusSuccess:
			fmt.Printf("  converted: %s -> %s (%s, %d attempt(s))\n",
				fr.Path, fr.OutputPath, batch.FormatDuration(fr.Duration), fr.Attempts)
		case types.StatusFailed:
			fmt.Printf("  failed:    %s (%s, %d attempt(s)): %s\n",
				fr.Path, batch.FormatDuration(fr.Duration), fr.Attempts, fr.Error)
		case types.StatusSkipped:
			fmt.Printf("  skipped:   %s (%s)\n", fr.Path, fr.Reason)
		}
	}
	return nil
}

// --- search subcommand ---

var historySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search failure messages across runs",
	Long: `Search runs a full-text query over the error messages of every failed
file in the history database and reports which runs they came from.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHistorySearch,
}

func runHistorySearch(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return exitWithCode(2, err)
	}
	defer store.Close()

	query := strings.Join(args, " ")
	limit, _ := cmd.Flags().GetInt("limit")
	hits, err := store.SearchFailures(cmd.Context(), query, limit)
	if err != nil {
		return exitWithCode(2, err)
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return writeJSON(hits)
	}
	if len(hits) == 0 {
		fmt.Printf("No failures matching %q.\n", query)
		return nil
	}

	fmt.Printf("%-8s  %-19s  %8s  %-40s  %s\n", "Run", "Started", "Attempts", "File", "Error")
	fmt.Println(strings.Repeat("-", 120))
	for _, h := range hits {
		fmt.Printf("%-8s  %-19s  %8d  %-40s  %s\n",
			shortID(h.RunID),
			h.StartedAt.Local().Format("2006-01-02 15:04:05"),
			h.Attempts,
			truncate(h.Path, 40),
			truncate(h.Error, 60))
	}
	fmt.Printf("\n%d match(es)\n", len(hits))
	return nil
}

// --- shared helpers ---

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	dir, _ := cmd.Flags().GetString("history-dir")
	if dir == "" {
		dir = types.DefaultConfig().History.Dir
	}
	return history.Open(dir)
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
