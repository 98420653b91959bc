// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the zap logger shared by every command. The logger
// is always passed explicitly; no package keeps a global logging state.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/doc-mill/pkg/types"
)

// New builds a logger from the log settings: console output on stderr at
// info level (debug with Verbose, error with Quiet), plus an optional
// debug-level file sink that records everything regardless of the console
// level.
func New(cfg types.LogConfig) (*zap.Logger, error) {
	consoleLevel := zapcore.InfoLevel
	if cfg.Verbose {
		consoleLevel = zapcore.DebugLevel
	}
	if cfg.Quiet {
		consoleLevel = zapcore.ErrorLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		consoleLevel,
	)

	if cfg.File == "" {
		return zap.New(consoleCore), nil
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", cfg.File, err)
	}

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.Lock(f),
		zapcore.DebugLevel,
	)

	return zap.New(zapcore.NewTee(consoleCore, fileCore)), nil
}
