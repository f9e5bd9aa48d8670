package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RecordSource inserts a source row unless one with the same name already
// exists. inserted reports whether a new row was written; a conflicting
// name is not an error.
func (s *Store) RecordSource(ctx context.Context, name, localPath string, size int64, status Status) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, errors.New("record source: name is required")
	}
	if status == "" {
		status = StatusPending
	}
	timestamp := formatTime(s.now())
	res, err := s.execWithRetry(
		ctx,
		`INSERT OR IGNORE INTO source_files (
            source_file_name, local_file_path, file_size, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?)`,
		name,
		localPath,
		size,
		status,
		timestamp,
		timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("record source %s: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record source %s: rows affected: %w", name, err)
	}
	return affected > 0, nil
}

// UpdateSourceStatus sets the status of the named source. The update is
// unconditional and idempotent; an unknown name updates nothing. processed
// belongs to artifacts and is rejected.
func (s *Store) UpdateSourceStatus(ctx context.Context, name string, status Status) error {
	parsed, ok := ParseStatus(string(status))
	if !ok {
		return fmt.Errorf("update source %s: unknown status %q", name, status)
	}
	if parsed == StatusProcessed {
		return fmt.Errorf("update source %s: status %q applies to artifacts only", name, parsed)
	}
	_, err := s.execWithRetry(
		ctx,
		`UPDATE source_files SET status = ?, updated_at = ? WHERE source_file_name = ?`,
		parsed,
		formatTime(s.now()),
		name,
	)
	if err != nil {
		return fmt.Errorf("update source %s: %w", name, err)
	}
	return nil
}

// Source returns the named record, or nil when it does not exist.
func (s *Store) Source(ctx context.Context, name string) (*SourceRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), sourceSelect+" WHERE source_file_name = ?", name)
	rec, err := scanSource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get source %s: %w", name, err)
	}
	return &rec, nil
}

// Sources returns every source record ordered by insertion.
func (s *Store) Sources(ctx context.Context) ([]SourceRecord, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), sourceSelect+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []SourceRecord
	for rows.Next() {
		rec, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SourceSeenOn reports whether name was recorded during the local calendar
// day containing day.
func (s *Store) SourceSeenOn(ctx context.Context, name string, day time.Time) (bool, error) {
	start, end := dayBounds(day)
	var count int
	err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT COUNT(1) FROM source_files WHERE source_file_name = ? AND created_at >= ? AND created_at < ?`,
		name, start, end,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("source seen check %s: %w", name, err)
	}
	return count > 0, nil
}

// SourceStats returns a count of source records grouped by status.
func (s *Store) SourceStats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM source_files GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("source stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Counts aggregates source records for the status summary.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	stats, err := s.SourceStats(ctx)
	if err != nil {
		return Counts{}, err
	}
	return Counts{
		Completed: stats[StatusCompleted],
		Failed:    stats[StatusFailed],
		Deleted:   stats[StatusDeleted],
		Pending:   stats[StatusPending],
	}, nil
}
