// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/pdiddy/doc-mill/pkg/types"
)

func defaultOptions() types.ConvertOptions {
	return types.ConvertOptions{
		OCR:       types.OCRAlways,
		TableMode: types.TableAccurate,
		MaxPages:  1000,
	}
}

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name string
		path string
		opts types.ConvertOptions
		want string
	}{
		{
			name: "defaults",
			path: "report.pdf",
			opts: defaultOptions(),
			want: "convert --to md --from pdf --ocr always --table-mode accurate --max-pages 1000 -",
		},
		{
			name: "uppercase extension is lowered",
			path: "SCAN.PDF",
			opts: defaultOptions(),
			want: "convert --to md --from pdf --ocr always --table-mode accurate --max-pages 1000 -",
		},
		{
			name: "no extension omits format hint",
			path: "README",
			opts: defaultOptions(),
			want: "convert --to md --ocr always --table-mode accurate --max-pages 1000 -",
		},
		{
			name: "tables disabled",
			path: "a.docx",
			opts: types.ConvertOptions{OCR: types.OCRNever, TableMode: types.TableFast, DisableTables: true},
			want: "convert --to md --from docx --ocr never --table-mode fast --no-tables -",
		},
		{
			name: "enrichment and remote services",
			path: "a.pptx",
			opts: types.ConvertOptions{OCR: types.OCRAuto, TableMode: types.TableFast, Enrichment: true, RemoteServices: true},
			want: "convert --to md --from pptx --ocr auto --table-mode fast --enrich --remote-services -",
		},
		{
			name: "artifacts path",
			path: "a.png",
			opts: types.ConvertOptions{OCR: types.OCRAlways, TableMode: types.TableAccurate, ArtifactsPath: "/models"},
			want: "convert --to md --from png --ocr always --table-mode accurate --artifacts-path /models -",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(buildArgs(tt.path, tt.opts), " ")
			if got != tt.want {
				t.Errorf("buildArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStderrTail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"whitespace only", "  \n\t\n", ""},
		{"single line", "model load failed\n", "model load failed"},
		{"keeps last three lines", "one\ntwo\nthree\nfour\nfive", "three / four / five"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stderrTail(tt.input); got != tt.want {
				t.Errorf("stderrTail(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewRejectsUnknownKind(t *testing.T) {
	cfg := types.EngineConfig{Kind: "vm"}
	if _, err := New(cfg, defaultOptions(), zap.NewNop()); err == nil {
		t.Fatal("New() with unknown kind should fail")
	}
}

func TestNewServiceKindRequiresURL(t *testing.T) {
	cfg := types.EngineConfig{Kind: types.EngineService}
	_, err := New(cfg, defaultOptions(), zap.NewNop())
	if err == nil {
		t.Fatal("New() without a service URL should fail")
	}
	if !strings.Contains(err.Error(), "service URL") {
		t.Errorf("error %q should mention the missing service URL", err)
	}
}

func TestLoadServiceToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, serviceAPIKeyFile)
	if err := os.WriteFile(path, []byte("tok-123\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	token, err := loadServiceToken(dir)
	if err != nil {
		t.Fatalf("loadServiceToken() error: %v", err)
	}
	if token != "tok-123" {
		t.Errorf("token = %q, want %q", token, "tok-123")
	}
}

func TestLoadServiceTokenMissingDir(t *testing.T) {
	token, err := loadServiceToken(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("loadServiceToken() error: %v", err)
	}
	if token != "" {
		t.Errorf("token = %q, want empty", token)
	}
}
