package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RecordArtifact inserts an artifact row unless the path is already known.
func (s *Store) RecordArtifact(ctx context.Context, localPath, sourceName string, status Status) (bool, error) {
	localPath = strings.TrimSpace(localPath)
	if localPath == "" {
		return false, errors.New("record artifact: path is required")
	}
	if status == "" {
		status = StatusProcessed
	}
	timestamp := formatTime(s.now())
	res, err := s.execWithRetry(
		ctx,
		`INSERT OR IGNORE INTO processed_files (
            local_file_path, source_file_name, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?)`,
		localPath,
		sourceName,
		status,
		timestamp,
		timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("record artifact %s: %w", localPath, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record artifact %s: rows affected: %w", localPath, err)
	}
	return affected > 0, nil
}

// Artifacts returns every artifact record ordered by insertion.
func (s *Store) Artifacts(ctx context.Context) ([]ArtifactRecord, error) {
	return s.listArtifacts(ctx, artifactSelect+" ORDER BY id")
}

// ArtifactsFor returns the artifacts produced from one source.
func (s *Store) ArtifactsFor(ctx context.Context, sourceName string) ([]ArtifactRecord, error) {
	return s.listArtifacts(ctx, artifactSelect+" WHERE source_file_name = ? ORDER BY id", sourceName)
}

func (s *Store) listArtifacts(ctx context.Context, query string, args ...any) ([]ArtifactRecord, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []ArtifactRecord
	for rows.Next() {
		rec, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
