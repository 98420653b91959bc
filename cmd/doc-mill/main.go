// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// doc-mill is the command line interface to the batch document converter.
// It turns directories of PDFs, Office documents, HTML, and images into
// Markdown by delegating conversion to a docling engine running in a
// container, as a local binary, or behind an HTTP service.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	version = "dev"
)

// exitCodeError carries the process exit code alongside the error that
// caused it: 0 success, 1 partial or interrupted run, 2 configuration or
// environment failure.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func exitWithCode(code int, err error) error {
	return &exitCodeError{code: code, err: err}
}

var rootCmd = &cobra.Command{
	Use:   "doc-mill",
	Short: "Batch document-to-Markdown conversion",
	Long: `doc-mill converts directories of documents to Markdown using a docling
engine. The engine runs as a container (docker or podman), a local binary,
or an HTTP service; doc-mill discovers and validates the input files, fans
conversions out across a worker pool, retries transient failures, and
writes one Markdown file per document, mirroring the input layout under
the output directory.

Start with 'doc-mill check' to size the host, 'doc-mill pull' to fetch the
engine image and model artifacts, then 'doc-mill convert' or the
interactive 'doc-mill tui'.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./doc-mill.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "log errors only and hide the progress bar")
	rootCmd.PersistentFlags().String("log-file", "", "append JSON logs to this file")
}

// initConfig reads in the config file and environment variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("doc-mill")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "doc-mill"))
		}
	}
	viper.SetEnvPrefix("DOC_MILL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ec *exitCodeError
		if errors.As(err, &ec) {
			os.Exit(ec.code)
		}
		os.Exit(2)
	}
}
