// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resources

import (
	"errors"
	"strings"
	"testing"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// stubGatherers installs fixed readings and returns a restore func.
func stubGatherers(cpus int, memAvailable, diskFree uint64) func() {
	origCPU, origMem, origDisk := cpuCounts, virtualMemory, diskUsage
	cpuCounts = func(logical bool) (int, error) { return cpus, nil }
	virtualMemory = func() (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Total: 16 << 30, Available: memAvailable, UsedPercent: 42.0}, nil
	}
	diskUsage = func(path string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Path: path, Free: diskFree}, nil
	}
	return func() {
		cpuCounts, virtualMemory, diskUsage = origCPU, origMem, origDisk
	}
}

func TestCheckHealthyHost(t *testing.T) {
	defer stubGatherers(8, 8<<30, 50<<30)()

	r, err := Check("/tmp")
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if r.CPUCount != 8 {
		t.Errorf("CPUCount = %d, want 8", r.CPUCount)
	}
	if len(r.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none on a healthy host", r.Warnings)
	}
}

func TestCheckWarnsOnLowCapacity(t *testing.T) {
	defer stubGatherers(2, 1<<30, 512<<20)()

	r, err := Check("/tmp")
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if len(r.Warnings) != 2 {
		t.Fatalf("Warnings = %v, want low-memory and low-disk warnings", r.Warnings)
	}
	if !strings.Contains(r.Warnings[0], "memory") {
		t.Errorf("first warning %q should flag memory", r.Warnings[0])
	}
	if !strings.Contains(r.Warnings[1], "disk") {
		t.Errorf("second warning %q should flag disk", r.Warnings[1])
	}
}

func TestCheckPropagatesGathererError(t *testing.T) {
	defer stubGatherers(4, 8<<30, 50<<30)()
	virtualMemory = func() (*mem.VirtualMemoryStat, error) {
		return nil, errors.New("proc not mounted")
	}

	if _, err := Check("/tmp"); err == nil {
		t.Fatal("Check() should surface gatherer failures")
	}
}

func TestClampWorkers(t *testing.T) {
	tests := []struct {
		name         string
		cpus         int
		memAvailable uint64
		requested    int
		want         int
		wantReason   string
	}{
		{"within capacity", 8, 8 << 30, 4, 4, ""},
		{"clamped to CPUs", 4, 8 << 30, 16, 4, "logical CPUs"},
		{"clamped by low memory", 8, 1 << 30, 6, 2, "below 2 GiB"},
		{"low memory leaves small requests alone", 8, 1 << 30, 1, 1, ""},
		{"floor of one", 0, 8 << 30, 0, 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer stubGatherers(tt.cpus, tt.memAvailable, 50<<30)()

			got, reason := ClampWorkers(tt.requested)
			if got != tt.want {
				t.Errorf("ClampWorkers(%d) = %d, want %d", tt.requested, got, tt.want)
			}
			if tt.wantReason == "" && reason != "" {
				t.Errorf("reason = %q, want none", reason)
			}
			if tt.wantReason != "" && !strings.Contains(reason, tt.wantReason) {
				t.Errorf("reason = %q, want it to mention %q", reason, tt.wantReason)
			}
		})
	}
}

func TestClampWorkersSurvivesGathererError(t *testing.T) {
	defer stubGatherers(4, 8<<30, 50<<30)()
	cpuCounts = func(logical bool) (int, error) { return 0, errors.New("unsupported platform") }

	got, reason := ClampWorkers(6)
	if got != 6 {
		t.Errorf("ClampWorkers(6) = %d, want the request untouched on probe failure", got)
	}
	if reason != "" {
		t.Errorf("reason = %q, want none", reason)
	}
}
