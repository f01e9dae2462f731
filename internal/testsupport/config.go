package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"tamperwatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options. No cameras are
// configured unless WithCamera is used.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Thresholds = map[string]float64{config.DefaultThresholdKey: 0.4}
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCamera creates <base>/incoming/<name> and <base>/valid/<name> and
// registers them as a watch/reference folder pair.
func WithCamera(name string) ConfigOption {
	return func(b *configBuilder) {
		watch := filepath.Join(b.baseDir, "incoming", name)
		valid := filepath.Join(b.baseDir, "valid", name)
		for _, dir := range []string{watch, valid} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				b.t.Fatalf("mkdir %s: %v", dir, err)
			}
		}
		b.cfg.FoldersToWatch = append(b.cfg.FoldersToWatch, watch)
		b.cfg.ReferenceDirs = append(b.cfg.ReferenceDirs, valid)
	}
}

// WithThreshold sets the threshold for name ("default" for the fallback).
func WithThreshold(name string, value float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Thresholds[name] = value
	}
}

// WithCatchFolder enables evidence retention.
func WithCatchFolder(name string, keepSeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catch.FolderName = name
		b.cfg.Catch.KeepSeconds = keepSeconds
	}
}

// WithRequestLink points notifications at url.
func WithRequestLink(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.RequestLink = url
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

// WatchDir returns the watch folder generated by WithCamera.
func WatchDir(cfg *config.Config, name string) string {
	return filepath.Join(BaseDir(cfg), "incoming", name)
}

// ReferenceDir returns the reference folder generated by WithCamera.
func ReferenceDir(cfg *config.Config, name string) string {
	return filepath.Join(BaseDir(cfg), "valid", name)
}
