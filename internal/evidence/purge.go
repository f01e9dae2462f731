package evidence

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tamperwatch/internal/logging"
)

// PurgeResult contains the outcome of a quarantine purge.
type PurgeResult struct {
	Removed []string
	Errors  []PurgeError
}

// PurgeError pairs a file path with its removal error.
type PurgeError struct {
	Path  string
	Error error
}

// PurgeExpired removes regular files in dir whose modification age is
// strictly greater than maxAge. Subdirectories are left alone and a missing
// dir is not an error.
func PurgeExpired(ctx context.Context, dir string, maxAge time.Duration, logger *slog.Logger) PurgeResult {
	return purge(ctx, dir, maxAge, time.Now(), logger)
}

func purge(ctx context.Context, dir string, maxAge time.Duration, now time.Time, logger *slog.Logger) PurgeResult {
	result := PurgeResult{}

	dir = strings.TrimSpace(dir)
	if dir == "" {
		return result
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, PurgeError{Path: dir, Error: err})
		}
		return result
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.Type().IsRegular() {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, PurgeError{Path: path, Error: err})
			continue
		}

		age := now.Sub(info.ModTime())
		if age <= maxAge {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			result.Errors = append(result.Errors, PurgeError{Path: path, Error: err})
			if logger != nil {
				logger.Warn("failed to remove expired evidence",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "evidence_purge_failed"),
					logging.String(logging.FieldErrorHint, "check quarantine folder permissions"),
					logging.String(logging.FieldImpact, "expired evidence kept on disk"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Info("removed expired evidence",
				logging.String("path", path),
				logging.Duration("age", age),
				logging.String(logging.FieldEventType, "evidence_purged"),
			)
		}
	}

	return result
}
