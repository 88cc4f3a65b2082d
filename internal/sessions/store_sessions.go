package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeLayout has a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const sessionColumns = "id, target, status, started_at, ended_at, video_path, sensor_path, frames_written, frames_dropped, samples_written, samples_dropped, drain_aborted, error_kind, error_message, exit_code"

// Begin registers a running session and returns it with a fresh id.
func (s *Store) Begin(ctx context.Context, target string, startedAt time.Time) (*Session, error) {
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	session := &Session{
		ID:        uuid.NewString(),
		Target:    target,
		Status:    StatusRunning,
		StartedAt: startedAt.UTC(),
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO sessions (id, target, status, started_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.Target, session.Status, session.StartedAt.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return session, nil
}

// Finish settles a running session with its outcome.
func (s *Store) Finish(ctx context.Context, id string, outcome Outcome) error {
	if outcome.EndedAt.IsZero() {
		outcome.EndedAt = time.Now()
	}
	kind, message, code := outcome.errorFields()
	stats := outcome.Recorder
	res, err := s.execWithRetry(ctx,
		`UPDATE sessions
         SET status = ?, ended_at = ?, video_path = ?, sensor_path = ?,
             frames_written = ?, frames_dropped = ?, samples_written = ?, samples_dropped = ?,
             drain_aborted = ?, error_kind = ?, error_message = ?, exit_code = ?
         WHERE id = ?`,
		outcome.status(),
		outcome.EndedAt.UTC().Format(timeLayout),
		nullableString(stats.VideoPath),
		nullableString(stats.SensorPath),
		int64(stats.FramesWritten),
		int64(stats.FramesDropped),
		int64(stats.SamplesWritten),
		int64(stats.SamplesDropped),
		boolToInt(outcome.DrainAborted),
		nullableString(kind),
		nullableString(message),
		code,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish session %s: not found", id)
	}
	return nil
}

// Get fetches a session by id. It returns nil when no row matches.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// List returns the most recent sessions first. A limit of zero returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *session)
	}
	return out, rows.Err()
}

// MarkAbandoned settles rows still marked running, left behind by a process
// that exited without finishing its session. It returns how many were changed.
func (s *Store) MarkAbandoned(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE sessions SET status = ?, error_message = ? WHERE status = ?`,
		StatusAbandoned, "process exited before the session finished", StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("mark abandoned sessions: %w", err)
	}
	return res.RowsAffected()
}

// Counts returns the number of sessions per status.
func (s *Store) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM sessions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("session counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		session      Session
		status       string
		startedRaw   string
		endedRaw     sql.NullString
		videoPath    sql.NullString
		sensorPath   sql.NullString
		framesW      int64
		framesD      int64
		samplesW     int64
		samplesD     int64
		drainAborted int64
		errorKind    sql.NullString
		errorMessage sql.NullString
	)
	if err := scanner.Scan(
		&session.ID,
		&session.Target,
		&status,
		&startedRaw,
		&endedRaw,
		&videoPath,
		&sensorPath,
		&framesW,
		&framesD,
		&samplesW,
		&samplesD,
		&drainAborted,
		&errorKind,
		&errorMessage,
		&session.ExitCode,
	); err != nil {
		return nil, err
	}

	session.Status = Status(status)
	session.StartedAt = parseTime(startedRaw)
	if endedRaw.Valid {
		session.EndedAt = parseTime(endedRaw.String)
	}
	session.VideoPath = videoPath.String
	session.SensorPath = sensorPath.String
	session.FramesWritten = uint64(framesW)
	session.FramesDropped = uint64(framesD)
	session.SamplesWritten = uint64(samplesW)
	session.SamplesDropped = uint64(samplesD)
	session.DrainAborted = drainAborted != 0
	session.ErrorKind = errorKind.String
	session.ErrorMessage = errorMessage.String
	return &session, nil
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
