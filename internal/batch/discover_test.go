// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeInput(t, root, "b.pdf", "x")
	writeInput(t, root, "a.docx", "x")
	writeInput(t, root, "notes.txt", "x")          // unsupported
	writeInput(t, root, ".hidden.pdf", "x")        // dotfile
	writeInput(t, root, "sub/deep/c.PNG", "x")     // nested, case-insensitive ext
	writeInput(t, root, ".cache/ignored.pdf", "x") // dot-directory subtree

	paths, err := Discover(root)
	require.NoError(t, err)

	var names []string
	for _, p := range paths {
		rel, rerr := filepath.Rel(root, p)
		require.NoError(t, rerr)
		names = append(names, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{"a.docx", "b.pdf", "sub/deep/c.PNG"}, names)
}

func TestDiscoverMissingRoot(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scanning")
}

func TestSupportedExtensionsSorted(t *testing.T) {
	exts := SupportedExtensions()
	require.NotEmpty(t, exts)
	assert.True(t, sortedStrings(exts), "extension list must be sorted: %v", exts)
	assert.Contains(t, exts, ".pdf")
	assert.Contains(t, exts, ".webp")
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] > s[i] {
			return false
		}
	}
	return true
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	valid := writeInput(t, dir, "ok.pdf", "content")
	empty := writeInput(t, dir, "empty.pdf", "")
	big := writeInput(t, dir, "big.pdf", strings.Repeat("x", 32))
	text := writeInput(t, dir, "plain.txt", "content")
	subdir := filepath.Join(dir, "folder.pdf")
	require.NoError(t, os.MkdirAll(subdir, 0o755))

	const maxSize = 16

	tests := []struct {
		name       string
		path       string
		wantReason string
	}{
		{"valid file", valid, ""},
		{"missing file", filepath.Join(dir, "absent.pdf"), "file does not exist"},
		{"directory", subdir, "not a regular file"},
		{"unsupported extension", text, "unsupported format .txt"},
		{"too large", big, "file too large"},
		{"empty", empty, "file is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.path, maxSize)
			if tt.wantReason == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantReason)
		})
	}
}
