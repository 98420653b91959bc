package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/doc-mill/internal/resources"
	"github.com/pdiddy/doc-mill/pkg/types"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Show host capacity for conversion work",
	Long: `Check reports logical CPUs, memory, and free disk space on the volume
holding the given path, warns about shortfalls that make conversions fail
or thrash, and shows the worker count a run would actually use.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("path", ".", "directory whose volume is checked for free space")
	checkCmd.Flags().Int("workers", types.DefaultWorkers(), "requested worker count to evaluate")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("path")
	requested, _ := cmd.Flags().GetInt("workers")

	report, err := resources.Check(path)
	if err != nil {
		return exitWithCode(2, err)
	}

	fmt.Printf("CPUs:    %d logical\n", report.CPUCount)
	fmt.Printf("Memory:  %.1f GiB total, %.1f GiB available (%.0f%% used)\n",
		gib(report.MemoryTotal), gib(report.MemoryFree), report.MemoryUsedPct)
	fmt.Printf("Disk:    %.1f GiB free under %s\n", gib(report.DiskFree), path)

	workers, reason := resources.ClampWorkers(requested)
	if reason != "" {
		fmt.Printf("Workers: %d (requested %d; %s)\n", workers, requested, reason)
	} else {
		fmt.Printf("Workers: %d\n", workers)
	}

	for _, w := range report.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}
	return nil
}

func gib(n uint64) float64 {
	return float64(n) / float64(1<<30)
}
