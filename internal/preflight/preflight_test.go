package preflight

import (
	"context"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tamperwatch/internal/camera"
	"tamperwatch/internal/config"
	"tamperwatch/internal/testsupport"
)

func TestCheckDirectoryAccess_Exists(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("Test", dir, AccessReadWrite)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "read/write ok") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_ReadOnly(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("Test", dir, AccessRead)
	if !result.Passed || !strings.Contains(result.Detail, "read ok") {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCheckDirectoryAccess_NotExists(t *testing.T) {
	result := CheckDirectoryAccess("Test", "/nonexistent/path/abc123", AccessRead)
	if result.Passed {
		t.Fatal("expected failure for nonexistent path")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("Test", f, AccessRead)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
	if !strings.Contains(result.Detail, "not a directory") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckReference(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCamera("gate"))
	picker := camera.NewPicker(cfg.ImageFormats)
	watch := testsupport.WatchDir(cfg, "gate")

	result := CheckReference("gate reference", watch, cfg.ReferenceDirs, picker)
	if result.Passed {
		t.Fatal("expected failure for empty reference folder")
	}
	if !strings.Contains(result.Detail, "no key frame") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}

	key := filepath.Join(testsupport.ReferenceDir(cfg, "gate"), "key.png")
	testsupport.WriteImage(t, key, color.RGBA{R: 255, A: 255})
	result = CheckReference("gate reference", watch, cfg.ReferenceDirs, picker)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result.Detail != key {
		t.Fatalf("detail = %q, want %q", result.Detail, key)
	}
}

func TestCheckReference_Unreadable(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCamera("gate"))
	key := filepath.Join(testsupport.ReferenceDir(cfg, "gate"), "key.jpg")
	if err := os.WriteFile(key, []byte("not a jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckReference("gate reference", testsupport.WatchDir(cfg, "gate"), cfg.ReferenceDirs, camera.NewPicker(cfg.ImageFormats))
	if result.Passed || !strings.Contains(result.Detail, "unreadable") {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCheckReference_NoMatchingFolder(t *testing.T) {
	result := CheckReference("x reference", "/srv/incoming/yard", []string{"/srv/valid/gate"}, camera.NewPicker(nil))
	if result.Passed {
		t.Fatal("expected failure without a matching reference folder")
	}
}

func TestCheckEmbedder_Haar(t *testing.T) {
	cfg := config.Default()
	result := CheckEmbedder(context.Background(), &cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result.Name != "Embedder (haar)" {
		t.Fatalf("name = %q", result.Name)
	}
}

func TestCheckEmbedder_Remote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "image/png" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Detector.Embedder = config.EmbedderHTTP
	cfg.Detector.EmbedderURL = srv.URL
	result := CheckEmbedder(context.Background(), &cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "3-dimensional") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckEmbedder_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Detector.Embedder = config.EmbedderHTTP
	cfg.Detector.EmbedderURL = srv.URL
	result := CheckEmbedder(context.Background(), &cfg)
	if result.Passed {
		t.Fatal("expected failure for unavailable model server")
	}
	if !strings.Contains(result.Detail, "503") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCamera("gate"), testsupport.WithCamera("yard"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	testsupport.WriteImage(t, filepath.Join(testsupport.ReferenceDir(cfg, "gate"), "key.png"), color.RGBA{R: 255, A: 255})

	results := RunAll(context.Background(), cfg)
	// state dir + two checks per camera + embedder
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d: %+v", len(results), results)
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "yard reference" {
		t.Fatalf("expected only the yard reference to fail, got %+v", failed)
	}
}
