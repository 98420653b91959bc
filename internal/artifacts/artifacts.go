// Package artifacts prefetches conversion model files (layout, OCR, table
// structure) so the first batch run does not stall on downloads. The engine
// reads them from the artifacts directory; see the --artifacts-path flag.
package artifacts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/doc-mill/internal/httputil"
)

const (
	// manifestFile records the fetched manifest in the artifacts directory.
	manifestFile = "manifest.yaml"

	userAgent = "doc-mill/1.0"
)

// Manifest lists the model files an engine needs.
type Manifest struct {
	Name      string  `yaml:"name"`
	Artifacts []Entry `yaml:"artifacts"`
}

// Entry is one downloadable model file.
type Entry struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// FetchResult holds the outcome of a prefetch run.
type FetchResult struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// Total returns the number of manifest entries processed.
func (r FetchResult) Total() int {
	return r.Downloaded + r.Skipped + r.Failed
}

// HasFailures reports whether any artifact failed to download.
func (r FetchResult) HasFailures() bool {
	return r.Failed > 0
}

// Fetch downloads the manifest at manifestURL, then every artifact it lists
// into destDir. Already-present files are skipped, failures do not stop the
// rest, and a politeness delay separates consecutive entries. The manifest
// itself is recorded as manifest.yaml in destDir on completion.
func Fetch(ctx context.Context, client *http.Client, manifestURL, destDir string, delay time.Duration, w io.Writer) (FetchResult, error) {
	var result FetchResult

	manifest, raw, err := fetchManifest(ctx, client, manifestURL)
	if err != nil {
		return result, err
	}
	if len(manifest.Artifacts) == 0 {
		return result, fmt.Errorf("manifest at %s lists no artifacts", manifestURL)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return result, fmt.Errorf("creating artifacts directory: %w", err)
	}

	for i, entry := range manifest.Artifacts {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(delay):
			}
		}

		if !safeName(entry.Name) {
			fmt.Fprintf(w, "failed:  %q (unsafe artifact name)\n", entry.Name)
			result.Failed++
			continue
		}

		destPath := filepath.Join(destDir, entry.Name)
		if _, err := os.Stat(destPath); err == nil {
			fmt.Fprintf(w, "skipped: %s (already exists)\n", entry.Name)
			result.Skipped++
			continue
		}

		fmt.Fprintf(w, "downloading: %s\n", entry.Name)
		if err := downloadArtifact(ctx, client, entry.URL, destPath); err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", entry.Name, err)
			result.Failed++
			continue
		}
		result.Downloaded++
	}

	if err := os.WriteFile(filepath.Join(destDir, manifestFile), raw, 0o644); err != nil {
		return result, fmt.Errorf("recording manifest: %w", err)
	}

	fmt.Fprintf(w, "\nArtifacts summary: %d downloaded, %d skipped, %d failed (total: %d)\n",
		result.Downloaded, result.Skipped, result.Failed, result.Total())
	return result, nil
}

// safeName rejects manifest names that would escape the artifacts
// directory.
func safeName(name string) bool {
	return name != "" &&
		!strings.ContainsAny(name, `/\`) &&
		name != "." && name != ".." &&
		name != manifestFile
}

func fetchManifest(ctx context.Context, client *http.Client, manifestURL string) (*Manifest, []byte, error) {
	resp, err := httputil.Get(ctx, client, manifestURL, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching manifest: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &manifest, raw, nil
}

// downloadArtifact streams url to destPath through a temp file, renaming on
// success so interrupted downloads never leave partial artifacts behind.
func downloadArtifact(ctx context.Context, client *http.Client, url, destPath string) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".artifact-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
