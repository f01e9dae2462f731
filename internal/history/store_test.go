package history_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"tamperwatch/internal/history"
	"tamperwatch/internal/testsupport"
)

func TestRecordAndList(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	inputs := []history.Evaluation{
		{PassID: "p1", CameraID: "cam1", WatchDir: "in/cam1", ImagePath: "in/cam1/a.jpg", Distance: 0.5, Threshold: 0.4, Tampered: true, Inferred: true, Notified: true, EvidencePath: "in/cam1/tampered/a.jpg", CreatedAt: base},
		{PassID: "p1", CameraID: "cam2", WatchDir: "in/cam2", ImagePath: "in/cam2/b.jpg", Distance: 0.1, Threshold: 0.4, Inferred: true, CreatedAt: base.Add(time.Second)},
		{PassID: "p2", CameraID: "cam1", WatchDir: "in/cam1", ImagePath: "in/cam1/c.jpg", Threshold: 0.4, Error: "decode failed", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, ev := range inputs {
		id, err := store.Record(ctx, ev)
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		if id == 0 {
			t.Fatal("expected id to be assigned")
		}
	}

	all, err := store.List(ctx, history.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ImagePath != "in/cam1/c.jpg" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	if !all[0].Failed() || all[0].Distance != 0 {
		t.Fatalf("failed row = %+v", all[0])
	}

	cam1, err := store.List(ctx, history.Filter{CameraID: "cam1"})
	if err != nil {
		t.Fatalf("List cam1: %v", err)
	}
	if len(cam1) != 2 {
		t.Fatalf("cam1 rows = %d", len(cam1))
	}

	flagged, err := store.List(ctx, history.Filter{TamperedOnly: true})
	if err != nil {
		t.Fatalf("List tampered: %v", err)
	}
	if len(flagged) != 1 {
		t.Fatalf("tampered rows = %d", len(flagged))
	}
	got := flagged[0]
	if !got.Tampered || !got.Notified || got.Distance != 0.5 || got.EvidencePath == "" || !got.CreatedAt.Equal(base) {
		t.Fatalf("tampered row = %+v", got)
	}

	limited, err := store.List(ctx, history.Filter{Limit: 1})
	if err != nil || len(limited) != 1 {
		t.Fatalf("limited = %v, %v", limited, err)
	}

	fetched, err := store.GetByID(ctx, got.ID)
	if err != nil || fetched == nil || fetched.ImagePath != got.ImagePath {
		t.Fatalf("GetByID = %+v, %v", fetched, err)
	}
	missing, err := store.GetByID(ctx, 9999)
	if err != nil || missing != nil {
		t.Fatalf("missing GetByID = %+v, %v", missing, err)
	}
}

func TestRecordRequiresCamera(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	if _, err := store.Record(context.Background(), history.Evaluation{}); err == nil {
		t.Fatal("expected error without camera id")
	}
}

func TestCameraStats(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()
	last := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, ev := range []history.Evaluation{
		{CameraID: "cam1", Tampered: true, Inferred: true, CreatedAt: last.Add(-time.Hour)},
		{CameraID: "cam1", Inferred: true, CreatedAt: last},
		{CameraID: "cam2", Error: "degenerate embedding", CreatedAt: last},
	} {
		if err := store.Observe(ctx, ev); err != nil {
			t.Fatalf("Observe: %v", err)
		}
	}

	stats, err := store.CameraStats(ctx)
	if err != nil {
		t.Fatalf("CameraStats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected two cameras, got %+v", stats)
	}
	if stats[0].CameraID != "cam1" || stats[0].Evaluations != 2 || stats[0].Tampered != 1 || !stats[0].LastSeen.Equal(last) {
		t.Fatalf("cam1 stat = %+v", stats[0])
	}
	if stats[1].Failed != 1 {
		t.Fatalf("cam2 stat = %+v", stats[1])
	}
}

func TestPrune(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()
	now := time.Now()
	for _, age := range []time.Duration{48 * time.Hour, 36 * time.Hour, time.Hour} {
		if _, err := store.Record(ctx, history.Evaluation{CameraID: "cam1", CreatedAt: now.Add(-age)}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	removed, err := store.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	rest, err := store.List(ctx, history.Filter{})
	if err != nil || len(rest) != 1 {
		t.Fatalf("remaining = %v, %v", rest, err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store.Close()

	db, err := sql.Open("sqlite", cfg.HistoryPath())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := history.Open(cfg); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestOpenUpgradesVersionOneDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	db, err := sql.Open("sqlite", cfg.HistoryPath())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE evaluations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            pass_id TEXT NOT NULL, camera_id TEXT NOT NULL, watch_dir TEXT NOT NULL, image_path TEXT NOT NULL,
            distance REAL, threshold REAL NOT NULL,
            tampered INTEGER NOT NULL DEFAULT 0, inferred INTEGER NOT NULL DEFAULT 0, notified INTEGER NOT NULL DEFAULT 0,
            evidence_path TEXT, error_message TEXT, created_at TEXT NOT NULL)`,
		`INSERT INTO evaluations (pass_id, camera_id, watch_dir, image_path, distance, threshold, tampered, inferred, created_at)
            VALUES ('p0', 'gate', 'in/gate', 'in/gate/a.jpg', 0.7, 0.4, 1, 1, '2024-03-01T10:00:00Z')`,
		"PRAGMA user_version = 1",
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed v1 database: %v", err)
		}
	}
	db.Close()

	store := testsupport.MustOpenHistory(t, cfg)
	rows, err := store.List(context.Background(), history.Filter{TamperedOnly: true})
	if err != nil || len(rows) != 1 || rows[0].CameraID != "gate" {
		t.Fatalf("rows after upgrade = %+v, %v", rows, err)
	}

	raw, err := sql.Open("sqlite", cfg.HistoryPath())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer raw.Close()
	var version, indexes int
	if err := raw.QueryRow("PRAGMA user_version").Scan(&version); err != nil || version != 2 {
		t.Fatalf("user_version = %d, %v", version, err)
	}
	if err := raw.QueryRow("SELECT COUNT(1) FROM sqlite_master WHERE type = 'index' AND name = 'idx_evaluations_tampered'").Scan(&indexes); err != nil || indexes != 1 {
		t.Fatalf("tampered index count = %d, %v", indexes, err)
	}
}

func TestReopenKeepsRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Record(context.Background(), history.Evaluation{CameraID: "cam1"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	store.Close()

	reopened := testsupport.MustOpenHistory(t, cfg)
	rows, err := reopened.List(context.Background(), history.Filter{})
	if err != nil || len(rows) != 1 {
		t.Fatalf("rows after reopen = %v, %v", rows, err)
	}
	if reopened.Path() != cfg.HistoryPath() {
		t.Fatalf("path = %q", reopened.Path())
	}
}
