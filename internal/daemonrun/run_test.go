package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"tamperwatch/internal/history"
	"tamperwatch/internal/logging"
	"tamperwatch/internal/testsupport"
	"tamperwatch/internal/workflow"
)

func TestRunOnceIdleCameras(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCamera("cam1"), testsupport.WithCamera("cam2"))

	summary, err := RunOnce(context.Background(), cfg, Options{LogLevel: "error"})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(summary.Cameras) != 2 || summary.Count(workflow.OutcomeIdle) != 2 {
		t.Fatalf("expected two idle cameras, got %+v", summary.Cameras)
	}
	if summary.PassID == "" {
		t.Fatal("expected a pass id")
	}
	if _, err := os.Stat(cfg.HistoryPath()); err != nil {
		t.Fatalf("expected history database to be created: %v", err)
	}
}

func TestRunOnceRefusesWhileDaemonHoldsLock(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCamera("cam1"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	lock := flock.New(cfg.LockPath())
	if ok, err := lock.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	defer lock.Unlock()

	_, err := RunOnce(context.Background(), cfg, Options{LogLevel: "error"})
	if err == nil || !strings.Contains(err.Error(), "daemon is running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}
}

func TestOpenHistoryPrunesExpiredRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.History.RetentionDays = 7

	seed := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()
	for _, created := range []time.Time{time.Now().AddDate(0, 0, -30), time.Now()} {
		if _, err := seed.Record(ctx, history.Evaluation{CameraID: "cam1", CreatedAt: created}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	store, err := openHistory(ctx, cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("openHistory: %v", err)
	}
	defer store.Close()
	rows, err := store.List(ctx, history.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected expired row to be pruned, got %d rows", len(rows))
	}
}

func TestOpenHistoryDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.History.Enabled = false
	store, err := openHistory(context.Background(), cfg, logging.NewNop())
	if err != nil || store != nil {
		t.Fatalf("expected nil store without error, got %v, %v", store, err)
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "tamperwatch-1.log")
	second := filepath.Join(dir, "tamperwatch-2.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatalf("write log: %v", err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("pointer to first: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("pointer to second: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, currentLogName))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "tamperwatch-2.log" {
		t.Fatalf("pointer resolves to %q", data)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tamperwatch.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid: %v", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		t.Fatal("expected pid contents")
	}
}

func TestLevelOrDefault(t *testing.T) {
	if got := levelOrDefault("", "info"); got != "info" {
		t.Fatalf("got %q", got)
	}
	if got := levelOrDefault("debug", "info"); got != "debug" {
		t.Fatalf("got %q", got)
	}
}
