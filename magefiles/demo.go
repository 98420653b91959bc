//go:build mage

package main

import (
	"os"
	"os/exec"
	"path/filepath"
)

// Demo builds the binary and runs a sample conversion: documents/ into
// markdown/. Run `mage init` first and drop a few files into documents/.
func Demo() error {
	if err := Build(); err != nil {
		return err
	}
	cmd := exec.Command(filepath.Join(binDir, binName), "convert",
		"--input", "documents", "--output", "markdown")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
