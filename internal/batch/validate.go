// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Validate checks that path is a convertible document within the size
// ceiling. Checks run in order: existence, regular file, supported
// extension, size limit, non-empty. A nil return means convertible; a
// non-nil return is the skip reason shown in the report.
func Validate(path string, maxFileSize int64) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errors.New("file does not exist")
		}
		return fmt.Errorf("cannot stat file: %v", err)
	}
	if !info.Mode().IsRegular() {
		return errors.New("not a regular file")
	}
	if ext := strings.ToLower(filepath.Ext(path)); !supportedExtensions[ext] {
		if ext == "" {
			return errors.New("no file extension")
		}
		return fmt.Errorf("unsupported format %s", ext)
	}
	if info.Size() > maxFileSize {
		return fmt.Errorf("file too large: %s (limit %s)", formatBytes(info.Size()), formatBytes(maxFileSize))
	}
	if info.Size() == 0 {
		return errors.New("file is empty")
	}
	return nil
}
