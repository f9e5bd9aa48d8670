package ledger

import (
	"database/sql"
	"errors"
	"time"
)

// timestampLayout is fixed width so stored values sort and compare lexically.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

const (
	sourceSelect   = "SELECT id, source_file_name, local_file_path, file_size, status, created_at, updated_at FROM source_files"
	artifactSelect = "SELECT id, local_file_path, source_file_name, status, created_at, updated_at FROM processed_files"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timestampLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

// dayBounds returns the UTC timestamps delimiting the local calendar day of t.
func dayBounds(t time.Time) (string, string) {
	local := t.In(time.Local)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 0, 1)
	return formatTime(start), formatTime(end)
}

type scanner interface{ Scan(dest ...any) error }

func scanSource(row scanner) (SourceRecord, error) {
	var (
		rec        SourceRecord
		statusStr  string
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.Name, &rec.LocalPath, &rec.Size, &statusStr, &createdRaw, &updatedRaw); err != nil {
		return SourceRecord{}, err
	}
	rec.Status = Status(statusStr)
	if created, err := parseTimeString(createdRaw.String); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		rec.UpdatedAt = updated
	}
	return rec, nil
}

func scanArtifact(row scanner) (ArtifactRecord, error) {
	var (
		rec        ArtifactRecord
		statusStr  string
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.LocalPath, &rec.SourceName, &statusStr, &createdRaw, &updatedRaw); err != nil {
		return ArtifactRecord{}, err
	}
	rec.Status = Status(statusStr)
	if created, err := parseTimeString(createdRaw.String); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		rec.UpdatedAt = updated
	}
	return rec, nil
}
