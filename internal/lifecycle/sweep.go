package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"wavbatch/internal/layout"
	"wavbatch/internal/logging"
)

// SweptBatch is a completed batch moved into the deleted area.
type SweptBatch struct {
	Name string
	// Originals lists the source file names found under <stem>/original/.
	Originals []string
}

// Sweep moves completed batch trees whose directory is older than retention
// into deletedRoot, preserving relative structure and merging into a batch
// already present there.
func (m *Mover) Sweep(ctx context.Context, completedRoot, deletedRoot string, retention time.Duration, now time.Time) ([]SweptBatch, error) {
	entries, err := afero.ReadDir(m.fs, completedRoot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read completed root: %w", err)
	}
	cutoff := now.Add(-retention)

	var swept []SweptBatch
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return swept, err
		}
		if !entry.IsDir() {
			continue
		}
		if _, ok := layout.ParseBatch(entry.Name()); !ok {
			continue
		}
		if entry.ModTime().After(cutoff) {
			m.logger.Debug("batch within retention",
				logging.String(logging.FieldDecisionType, "retention_sweep"),
				logging.String("decision_result", "keep"),
				logging.String(logging.FieldBatch, entry.Name()),
			)
			continue
		}
		batch, err := m.sweepBatch(completedRoot, deletedRoot, entry.Name())
		if err != nil {
			logging.WarnWithContext(m.logger, "retention sweep failed", "sweep_failed",
				logging.String(logging.FieldBatch, entry.Name()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "batch stays in the completed area until the next sweep"),
			)
			continue
		}
		swept = append(swept, batch)
	}
	return swept, nil
}

func (m *Mover) sweepBatch(completedRoot, deletedRoot, name string) (SweptBatch, error) {
	src := filepath.Join(completedRoot, name)
	dst := filepath.Join(deletedRoot, name)
	batch := SweptBatch{Name: name}

	var files []string
	err := afero.Walk(m.fs, src, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return batch, err
	}
	for _, file := range files {
		target, err := layout.Rebase(file, src, dst)
		if err != nil {
			return batch, err
		}
		if err := m.MoveFile(file, target); err != nil {
			return batch, err
		}
		if isOriginal(src, file) {
			batch.Originals = append(batch.Originals, filepath.Base(file))
		}
	}
	sort.Strings(batch.Originals)
	if err := m.fs.RemoveAll(src); err != nil {
		return batch, err
	}
	return batch, nil
}

// isOriginal matches <batchDir>/<stem>/original/<file>.
func isOriginal(batchDir, path string) bool {
	rel, err := filepath.Rel(batchDir, path)
	if err != nil {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	return len(parts) == 3 && parts[1] == layout.OriginalDir
}
