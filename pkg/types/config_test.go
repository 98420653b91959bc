// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a config that passes validation, rooted in a temp dir.
func validConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Batch.InputDir = filepath.Join(dir, "in")
	cfg.Batch.OutputDir = filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(cfg.Batch.InputDir, 0o755))
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 5*time.Minute, cfg.Batch.Timeout)
	assert.Equal(t, int64(100<<20), cfg.Batch.MaxFileSize)
	assert.Equal(t, 2, cfg.Batch.Retries)
	assert.Equal(t, OCRAlways, cfg.Conversion.OCR)
	assert.Equal(t, TableAccurate, cfg.Conversion.TableMode)
	assert.Equal(t, 1000, cfg.Conversion.MaxPages)
	assert.Equal(t, EngineAuto, cfg.Engine.Kind)
	assert.False(t, cfg.Batch.ContinueOnError)

	assert.GreaterOrEqual(t, cfg.Batch.Workers, 1)
	assert.LessOrEqual(t, cfg.Batch.Workers, 4)
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig(t)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing input dir",
			mutate:  func(c *Config) { c.Batch.InputDir = "" },
			wantErr: "input directory is required",
		},
		{
			name:    "input dir does not exist",
			mutate:  func(c *Config) { c.Batch.InputDir = filepath.Join(c.Batch.InputDir, "missing") },
			wantErr: "input directory",
		},
		{
			name:    "missing output dir",
			mutate:  func(c *Config) { c.Batch.OutputDir = "" },
			wantErr: "output directory is required",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Batch.Workers = 0 },
			wantErr: "workers must be at least 1",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Batch.Timeout = 0 },
			wantErr: "timeout must be positive",
		},
		{
			name:    "zero max file size",
			mutate:  func(c *Config) { c.Batch.MaxFileSize = 0 },
			wantErr: "max file size must be positive",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Batch.Retries = -1 },
			wantErr: "retry count must not be negative",
		},
		{
			name:    "zero max pages",
			mutate:  func(c *Config) { c.Conversion.MaxPages = 0 },
			wantErr: "max pages must be at least 1",
		},
		{
			name:    "bad OCR mode",
			mutate:  func(c *Config) { c.Conversion.OCR = "sometimes" },
			wantErr: "invalid OCR mode",
		},
		{
			name:    "bad table mode",
			mutate:  func(c *Config) { c.Conversion.TableMode = "sloppy" },
			wantErr: "invalid table mode",
		},
		{
			name:    "bad engine kind",
			mutate:  func(c *Config) { c.Engine.Kind = "magic" },
			wantErr: "invalid engine kind",
		},
		{
			name: "service engine without URL",
			mutate: func(c *Config) {
				c.Engine.Kind = EngineService
				c.Engine.ServiceURL = ""
			},
			wantErr: "service engine requires a service URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateRejectsOutputInsideInput(t *testing.T) {
	cfg := validConfig(t)
	cfg.Batch.OutputDir = filepath.Join(cfg.Batch.InputDir, "markdown")

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be outside the input directory")
}

func TestValidateRejectsOutputEqualToInput(t *testing.T) {
	cfg := validConfig(t)
	cfg.Batch.OutputDir = cfg.Batch.InputDir

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be outside the input directory")
}

func TestValidateAllowsSiblingOutput(t *testing.T) {
	cfg := validConfig(t)
	// Sibling of the input directory, not nested.
	assert.NoError(t, cfg.Validate())
}
