package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tamperwatch/internal/logging"
	"tamperwatch/internal/testsupport"
)

func TestNewFromConfigWritesLogFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.LoggerPath = filepath.Join(t.TempDir(), "legacy", "tampering.log")

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("camera checked", logging.String(logging.FieldCameraID, "gate"))

	for _, path := range []string{filepath.Join(cfg.Paths.LogDir, "tamperwatch.log"), cfg.LoggerPath} {
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if !strings.Contains(string(content), "[gate]: camera checked") {
			t.Fatalf("unexpected log content in %s: %q", path, content)
		}
	}
}

func TestConsoleLoggerCallerOnlyAtDebug(t *testing.T) {
	cases := []struct {
		level      string
		wantCaller bool
	}{
		{level: "info", wantCaller: false},
		{level: "debug", wantCaller: true},
	}
	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			logPath := filepath.Join(t.TempDir(), "console.log")
			logger, err := logging.New(logging.Options{
				Format:           "console",
				Level:            tc.level,
				OutputPaths:      []string{logPath},
				ErrorOutputPaths: []string{logPath},
			})
			if err != nil {
				t.Fatalf("New returned error: %v", err)
			}
			logger.Info("message")

			content, err := os.ReadFile(logPath)
			if err != nil {
				t.Fatalf("read log file: %v", err)
			}
			if got := strings.Contains(string(content), ".go:"); got != tc.wantCaller {
				t.Fatalf("caller present = %v, want %v: %q", got, tc.wantCaller, content)
			}
		})
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestJSONLoggerFieldNames(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("camera skipped", logging.String(logging.FieldEventType, "camera_skipped"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, want := range []string{`"ts":`, `"level":"warn"`, `"msg":"camera skipped"`, `"event_type":"camera_skipped"`} {
		if !strings.Contains(string(content), want) {
			t.Fatalf("expected %s in %q", want, content)
		}
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := logging.WithPassID(context.Background(), "pass-42")
	ctx = logging.WithCameraID(ctx, "parking")
	logging.WithContext(ctx, base).Info("contextual log")

	for _, want := range []string{`"pass_id":"pass-42"`, `"camera_id":"parking"`} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("expected %s in %q", want, buf.String())
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WarnWithContext(logger, "reference missing", "reference_missing",
		logging.String(logging.FieldImpact, "camera skipped this pass"),
	)

	out := buf.String()
	for _, want := range []string{`"event_type":"reference_missing"`, `"error_hint":"check logs for details"`, `"impact":"camera skipped this pass"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %q", want, out)
		}
	}
	if strings.Count(out, `"impact"`) != 1 {
		t.Fatalf("impact duplicated: %q", out)
	}
}

func TestErrorWithContextKeepsCallerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.ErrorWithContext(logger, "history write failed", "history_write_failed",
		logging.String(logging.FieldEventType, "history_busy"),
		logging.String(logging.FieldErrorHint, "check disk space"),
	)

	out := buf.String()
	if strings.Count(out, `"event_type"`) != 1 || !strings.Contains(out, `"event_type":"history_busy"`) {
		t.Fatalf("caller event_type not kept: %q", out)
	}
	if !strings.Contains(out, `"error_hint":"check disk space"`) {
		t.Fatalf("caller hint not kept: %q", out)
	}
	if strings.Contains(out, `"impact"`) {
		t.Fatalf("error lines carry no impact default: %q", out)
	}

	logging.ErrorWithContext(nil, "ignored", "ignored")
	logging.NewNop().Error("discarded")
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	oldLog := filepath.Join(dir, "tamperwatch-old.log")
	current := filepath.Join(dir, "tamperwatch-current.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{oldLog, current, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	past := time.Now().AddDate(0, 0, -30)
	for _, path := range []string{oldLog, current, other} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	logging.CleanupOldLogs(logging.NewNop(), 7, logging.RetentionTarget{Dir: dir, Pattern: "tamperwatch-*.log", Exclude: []string{current}})

	if _, err := os.Stat(oldLog); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, path := range []string{current, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s kept: %v", path, err)
		}
	}
}

func TestConsoleLineLayout(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "workflow").With(logging.String(logging.FieldCameraID, "gate"))
	logger.Warn("candidate evaluated",
		logging.Float64("distance", 0.5),
		logging.String("image", "snap 01.jpg"),
		logging.Group("detector", logging.Int("stride", 3)),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, want := range []string{"WARN  workflow [gate]: candidate evaluated", "distance=0.5", `image="snap 01.jpg"`, "detector.stride=3"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "component=") || strings.Contains(line, "camera_id=") {
		t.Fatalf("prefix fields repeated as attributes: %q", line)
	}
}
