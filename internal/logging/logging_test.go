// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/doc-mill/pkg/types"
)

func TestNewConsoleLevels(t *testing.T) {
	tests := []struct {
		name    string
		cfg     types.LogConfig
		debugOn bool
		infoOn  bool
	}{
		{"default", types.LogConfig{}, false, true},
		{"verbose", types.LogConfig{Verbose: true}, true, true},
		{"quiet", types.LogConfig{Quiet: true}, false, false},
		{"quiet wins over verbose", types.LogConfig{Verbose: true, Quiet: true}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			require.NoError(t, err)

			core := logger.Core()
			assert.Equal(t, tt.debugOn, core.Enabled(zapcore.DebugLevel))
			assert.Equal(t, tt.infoOn, core.Enabled(zapcore.InfoLevel))
			assert.True(t, core.Enabled(zapcore.ErrorLevel))
		})
	}
}

func TestNewFileSinkRecordsDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")

	// Quiet console, but the file still gets debug entries.
	logger, err := New(types.LogConfig{Quiet: true, File: path})
	require.NoError(t, err)

	logger.Debug("picked worker count")
	logger.Error("engine unavailable")
	// Sync flushes the file core; stderr sync errors are platform noise.
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "picked worker count")
	assert.Contains(t, string(data), "engine unavailable")
}

func TestNewRejectsUnwritableLogFile(t *testing.T) {
	_, err := New(types.LogConfig{File: filepath.Join(t.TempDir(), "missing", "run.log")})
	assert.Error(t, err)
}
