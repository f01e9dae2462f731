package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// timeLayout is fixed width so created_at sorts and compares as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const evaluationColumns = "id, pass_id, camera_id, watch_dir, image_path, distance, threshold, tampered, inferred, notified, evidence_path, error_message, created_at"

// Record inserts an evaluation and returns its identifier. A zero CreatedAt
// is stamped with the current time.
func (s *Store) Record(ctx context.Context, ev Evaluation) (int64, error) {
	if strings.TrimSpace(ev.CameraID) == "" {
		return 0, errors.New("evaluation camera id is required")
	}
	created := ev.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	var distance any
	if ev.Inferred {
		distance = ev.Distance
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO evaluations (
            pass_id, camera_id, watch_dir, image_path, distance, threshold,
            tampered, inferred, notified, evidence_path, error_message, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.PassID,
		ev.CameraID,
		ev.WatchDir,
		ev.ImagePath,
		distance,
		ev.Threshold,
		boolToInt(ev.Tampered),
		boolToInt(ev.Inferred),
		boolToInt(ev.Notified),
		nullableString(ev.EvidencePath),
		nullableString(ev.Error),
		created.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("insert evaluation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Observe records ev, satisfying the workflow observer interface.
func (s *Store) Observe(ctx context.Context, ev Evaluation) error {
	_, err := s.Record(ctx, ev)
	return err
}

// List returns evaluations newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Evaluation, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.CameraID != "" {
		clauses = append(clauses, "camera_id = ?")
		args = append(args, filter.CameraID)
	}
	if filter.TamperedOnly {
		clauses = append(clauses, "tampered = 1")
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT ` + evaluationColumns + ` FROM evaluations`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	var out []Evaluation
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// GetByID fetches one evaluation; a missing row returns (nil, nil).
func (s *Store) GetByID(ctx context.Context, id int64) (*Evaluation, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+evaluationColumns+` FROM evaluations WHERE id = ?`, id)
	ev, err := scanEvaluation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get evaluation: %w", err)
	}
	return &ev, nil
}

func scanEvaluation(scanner interface{ Scan(dest ...any) error }) (Evaluation, error) {
	var (
		ev           Evaluation
		distance     sql.NullFloat64
		tampered     int64
		inferred     int64
		notified     int64
		evidencePath sql.NullString
		errorMessage sql.NullString
		createdRaw   string
	)
	if err := scanner.Scan(
		&ev.ID,
		&ev.PassID,
		&ev.CameraID,
		&ev.WatchDir,
		&ev.ImagePath,
		&distance,
		&ev.Threshold,
		&tampered,
		&inferred,
		&notified,
		&evidencePath,
		&errorMessage,
		&createdRaw,
	); err != nil {
		return Evaluation{}, err
	}
	ev.Distance = distance.Float64
	ev.Tampered = tampered != 0
	ev.Inferred = inferred != 0
	ev.Notified = notified != 0
	ev.EvidencePath = evidencePath.String
	ev.Error = errorMessage.String
	if created, err := parseTimeString(createdRaw); err == nil {
		ev.CreatedAt = created
	}
	return ev, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
