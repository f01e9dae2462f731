package evidence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tamperwatch/internal/config"
	"tamperwatch/internal/fileutil"
	"tamperwatch/internal/logging"
)

// TimestampLayout is the capture suffix appended to archived file names.
const TimestampLayout = "2006-01-02T15-04-05.000000"

// maxCollisions bounds the -N suffix search when two flagged images share a
// stem and timestamp.
const maxCollisions = 1000

// Archiver copies flagged images into the quarantine folder of their camera.
type Archiver struct {
	FolderName string
	MaxAge     time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
}

// NewArchiver builds an archiver from the catch_params settings.
func NewArchiver(cfg *config.Config, logger *slog.Logger) *Archiver {
	return &Archiver{
		FolderName: cfg.Catch.FolderName,
		MaxAge:     cfg.EvidenceMaxAge(),
		Now:        time.Now,
		Logger:     logging.NewComponentLogger(logger, "evidence"),
	}
}

// Enabled reports whether a quarantine folder is configured.
func (a *Archiver) Enabled() bool {
	return a != nil && strings.TrimSpace(a.FolderName) != ""
}

// Archive copies imagePath to <dir>/<FolderName>/<stem>_<timestamp><ext> and
// then purges expired records from that folder. It returns the path of the
// new record, or "" when retention is disabled.
func (a *Archiver) Archive(ctx context.Context, imagePath string) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	quarantine := a.Dir(filepath.Dir(imagePath))
	if err := os.MkdirAll(quarantine, 0o755); err != nil {
		return "", fmt.Errorf("create quarantine folder: %w", err)
	}

	base := filepath.Base(imagePath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stamp := a.now().Format(TimestampLayout)

	var dest string
	for attempt := 0; attempt < maxCollisions; attempt++ {
		name := stem + "_" + stamp + ext
		if attempt > 0 {
			name = fmt.Sprintf("%s_%s-%d%s", stem, stamp, attempt, ext)
		}
		candidate := filepath.Join(quarantine, name)
		err := fileutil.CopyNewVerified(imagePath, candidate, 0o644)
		if err == nil {
			dest = candidate
			break
		}
		if errors.Is(err, os.ErrExist) {
			continue
		}
		return "", fmt.Errorf("archive %s: %w", base, err)
	}
	if dest == "" {
		return "", fmt.Errorf("archive %s: no free name in %s", base, quarantine)
	}

	if a.Logger != nil {
		a.Logger.Info("evidence archived",
			logging.String(logging.FieldEventType, "evidence_archived"),
			logging.String("source", imagePath),
			logging.String("evidence_path", dest),
		)
	}

	a.PurgeExpired(ctx, quarantine)
	return dest, nil
}

// Dir returns the quarantine folder for a watch folder.
func (a *Archiver) Dir(watchDir string) string {
	return filepath.Join(watchDir, a.FolderName)
}

// PurgeExpired removes records older than the archiver's MaxAge.
func (a *Archiver) PurgeExpired(ctx context.Context, dir string) PurgeResult {
	return purge(ctx, dir, a.MaxAge, a.now(), a.Logger)
}

func (a *Archiver) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}
