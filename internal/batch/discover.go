// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch drives directory-scale document conversion: it discovers
// candidate documents, validates them, fans them out to a worker pool that
// feeds the conversion engine, and aggregates the per-file outcomes into a
// run summary.
package batch

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// supportedExtensions lists the formats the conversion engine accepts.
// Markdown is included: re-converting normalizes it and applies frontmatter.
var supportedExtensions = map[string]bool{
	".pdf":   true,
	".docx":  true,
	".xlsx":  true,
	".pptx":  true,
	".md":    true,
	".html":  true,
	".xhtml": true,
	".csv":   true,
	".png":   true,
	".jpg":   true,
	".jpeg":  true,
	".tiff":  true,
	".bmp":   true,
	".webp":  true,
}

// SupportedExtensions returns the allow-list in sorted order, for help text
// and error messages.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Discover walks root and returns every candidate document, sorted for
// deterministic dispatch order. Dotfiles and dot-directories are skipped;
// only allow-listed extensions are kept. Validation happens later; Discover
// only filters by name.
func Discover(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if !supportedExtensions[strings.ToLower(filepath.Ext(name))] {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}
