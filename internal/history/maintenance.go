package history

import (
	"context"
	"fmt"
	"time"
)

// CameraStats aggregates evaluation counts per camera, ordered by camera id.
func (s *Store) CameraStats(ctx context.Context) ([]CameraStat, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
        SELECT camera_id,
               COUNT(1),
               COALESCE(SUM(tampered), 0),
               COALESCE(SUM(CASE WHEN error_message IS NOT NULL THEN 1 ELSE 0 END), 0),
               MAX(created_at)
        FROM evaluations
        GROUP BY camera_id
        ORDER BY camera_id`)
	if err != nil {
		return nil, fmt.Errorf("camera stats: %w", err)
	}
	defer rows.Close()

	var stats []CameraStat
	for rows.Next() {
		var (
			stat    CameraStat
			lastRaw string
		)
		if err := rows.Scan(&stat.CameraID, &stat.Evaluations, &stat.Tampered, &stat.Failed, &lastRaw); err != nil {
			return nil, err
		}
		if last, err := parseTimeString(lastRaw); err == nil {
			stat.LastSeen = last
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

// Prune deletes evaluations created before cutoff and returns how many rows
// were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM evaluations WHERE created_at < ?`,
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("prune evaluations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
