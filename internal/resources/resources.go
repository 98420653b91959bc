// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resources inspects host capacity and sizes the worker pool to it.
// Conversion is memory-hungry (OCR models, page rasters), so worker counts
// that look fine on paper can thrash a small machine.
package resources

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

const (
	// lowMemoryBytes is the available-memory floor below which conversions
	// start swapping.
	lowMemoryBytes = 2 << 30
	// lowDiskBytes is the free-disk floor for the output volume.
	lowDiskBytes = 1 << 30
	// lowMemoryWorkerCap bounds concurrency on low-memory hosts.
	lowMemoryWorkerCap = 2
)

// Gatherers are package variables so tests inject fixed readings.
var (
	cpuCounts     = cpu.Counts
	virtualMemory = mem.VirtualMemory
	diskUsage     = disk.Usage
)

// Report is a point-in-time view of host capacity.
type Report struct {
	CPUCount      int
	MemoryTotal   uint64
	MemoryFree    uint64
	MemoryUsedPct float64
	DiskFree      uint64

	// Warnings flag capacity shortfalls worth showing before a run.
	Warnings []string
}

// Check gathers CPU, memory, and free-disk readings for path (the output
// volume) and attaches capacity warnings.
func Check(path string) (*Report, error) {
	cpus, err := cpuCounts(true)
	if err != nil {
		return nil, fmt.Errorf("counting CPUs: %w", err)
	}
	vm, err := virtualMemory()
	if err != nil {
		return nil, fmt.Errorf("reading memory stats: %w", err)
	}
	du, err := diskUsage(path)
	if err != nil {
		return nil, fmt.Errorf("reading disk usage for %s: %w", path, err)
	}

	r := &Report{
		CPUCount:      cpus,
		MemoryTotal:   vm.Total,
		MemoryFree:    vm.Available,
		MemoryUsedPct: vm.UsedPercent,
		DiskFree:      du.Free,
	}
	if vm.Available < lowMemoryBytes {
		r.Warnings = append(r.Warnings,
			fmt.Sprintf("available memory %.1f GiB is below 2 GiB; large documents may fail", gib(vm.Available)))
	}
	if du.Free < lowDiskBytes {
		r.Warnings = append(r.Warnings,
			fmt.Sprintf("free disk %.1f GiB is below 1 GiB; output writes may fail", gib(du.Free)))
	}
	return r, nil
}

// ClampWorkers bounds a requested worker count by host capacity: never more
// than the logical CPU count, and at most 2 when available memory is under
// 2 GiB. Gatherer failures leave the request unclamped; capacity probing
// must never stop a run. The reason is empty when nothing was lowered.
func ClampWorkers(requested int) (int, string) {
	workers := requested
	reason := ""

	if cpus, err := cpuCounts(true); err == nil && cpus > 0 && workers > cpus {
		workers = cpus
		reason = fmt.Sprintf("clamped to %d logical CPUs", cpus)
	}
	if vm, err := virtualMemory(); err == nil && vm.Available < lowMemoryBytes && workers > lowMemoryWorkerCap {
		workers = lowMemoryWorkerCap
		reason = fmt.Sprintf("clamped to %d workers: available memory below 2 GiB", lowMemoryWorkerCap)
	}
	if workers < 1 {
		workers = 1
	}
	return workers, reason
}

func gib(n uint64) float64 {
	return float64(n) / float64(1<<30)
}
