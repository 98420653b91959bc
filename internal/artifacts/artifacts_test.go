// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package artifacts

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newArtifactServer serves a manifest plus model files. Entries maps
// artifact names to content; serve404 names entries that return 404.
func newArtifactServer(t *testing.T, entries map[string]string, serve404 ...string) *httptest.Server {
	t.Helper()

	missing := make(map[string]bool, len(serve404))
	for _, name := range serve404 {
		missing[name] = true
	}

	mux := http.NewServeMux()
	var manifest strings.Builder
	manifest.WriteString("name: test-models\nartifacts:\n")

	register := func(name string) {
		fmt.Fprintf(&manifest, "  - name: %s\n    url: MODELBASE/models/%s\n", name, name)
	}
	for name := range entries {
		register(name)
		content := entries[name]
		mux.HandleFunc("/models/"+name, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, content)
		})
	}
	for _, name := range serve404 {
		register(name)
		mux.HandleFunc("/models/"+name, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	manifestBody := strings.ReplaceAll(manifest.String(), "MODELBASE", srv.URL)
	mux.HandleFunc("/manifest.yaml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, manifestBody)
	})
	return srv
}

func TestFetchDownloadsAll(t *testing.T) {
	srv := newArtifactServer(t, map[string]string{
		"layout.onnx": "layout weights",
		"ocr.onnx":    "ocr weights",
	})
	destDir := t.TempDir()

	var out strings.Builder
	result, err := Fetch(context.Background(), srv.Client(), srv.URL+"/manifest.yaml", destDir, 0, &out)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	if result.Downloaded != 2 || result.Failed != 0 || result.Skipped != 0 {
		t.Errorf("result = %+v, want 2 downloaded", result)
	}

	data, err := os.ReadFile(filepath.Join(destDir, "layout.onnx"))
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if string(data) != "layout weights" {
		t.Errorf("artifact content = %q", data)
	}

	if _, err := os.Stat(filepath.Join(destDir, manifestFile)); err != nil {
		t.Errorf("manifest record missing: %v", err)
	}
	if !strings.Contains(out.String(), "downloading: layout.onnx") {
		t.Errorf("status output missing download line:\n%s", out.String())
	}
}

func TestFetchSkipsExisting(t *testing.T) {
	srv := newArtifactServer(t, map[string]string{
		"layout.onnx": "layout weights",
		"ocr.onnx":    "ocr weights",
	})
	destDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(destDir, "layout.onnx"), []byte("old weights"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out strings.Builder
	result, err := Fetch(context.Background(), srv.Client(), srv.URL+"/manifest.yaml", destDir, 0, &out)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	if result.Skipped != 1 || result.Downloaded != 1 {
		t.Errorf("result = %+v, want 1 skipped and 1 downloaded", result)
	}
	if !strings.Contains(out.String(), "skipped: layout.onnx (already exists)") {
		t.Errorf("status output missing skip line:\n%s", out.String())
	}

	data, _ := os.ReadFile(filepath.Join(destDir, "layout.onnx"))
	if string(data) != "old weights" {
		t.Error("existing artifact must not be overwritten")
	}
}

func TestFetchContinuesAfterFailure(t *testing.T) {
	srv := newArtifactServer(t,
		map[string]string{"ocr.onnx": "ocr weights"},
		"gone.onnx")
	destDir := t.TempDir()

	var out strings.Builder
	result, err := Fetch(context.Background(), srv.Client(), srv.URL+"/manifest.yaml", destDir, 0, &out)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	if result.Failed != 1 || result.Downloaded != 1 {
		t.Errorf("result = %+v, want 1 failed and 1 downloaded", result)
	}
	if !result.HasFailures() {
		t.Error("HasFailures() should be true")
	}

	if _, err := os.Stat(filepath.Join(destDir, "gone.onnx")); !os.IsNotExist(err) {
		t.Error("failed artifact must leave no file behind")
	}
	leftovers, _ := filepath.Glob(filepath.Join(destDir, ".artifact-*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestFetchRejectsUnsafeNames(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/manifest.yaml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "name: evil\nartifacts:\n  - name: ../escape.bin\n    url: http://127.0.0.1/x\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	destDir := t.TempDir()
	var out strings.Builder
	result, err := Fetch(context.Background(), srv.Client(), srv.URL+"/manifest.yaml", destDir, 0, &out)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	if result.Failed != 1 {
		t.Errorf("result = %+v, want the unsafe entry failed", result)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(destDir), "escape.bin")); !os.IsNotExist(err) {
		t.Error("unsafe name must not write outside the artifacts directory")
	}
}

func TestFetchManifestErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/missing.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/empty.yaml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "name: empty\nartifacts: []\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var out strings.Builder
	if _, err := Fetch(context.Background(), srv.Client(), srv.URL+"/missing.yaml", t.TempDir(), 0, &out); err == nil {
		t.Error("Fetch() should fail when the manifest cannot be fetched")
	}
	if _, err := Fetch(context.Background(), srv.Client(), srv.URL+"/empty.yaml", t.TempDir(), 0, &out); err == nil {
		t.Error("Fetch() should fail on a manifest with no artifacts")
	}
}
