package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"

	"wavbatch/internal/layout"
	"wavbatch/internal/logging"
)

// PromoteResult reports what a promotion pass did.
type PromoteResult struct {
	Moved     []string
	Failed    []string
	Leftovers int
}

// Promote waits delay, then moves every file under processingRoot to the
// same relative path under completedRoot. Afterwards the processing tree is
// emptied; processingRoot itself is kept. Per-file move failures are logged
// and the file is left in place, so the final sweep reports it as a leftover.
func (m *Mover) Promote(ctx context.Context, processingRoot, completedRoot string, delay time.Duration) (PromoteResult, error) {
	var result PromoteResult
	if err := sleepContext(ctx, delay); err != nil {
		return result, err
	}

	var files []string
	err := afero.Walk(m.fs, processingRoot, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, nil
		}
		return result, fmt.Errorf("walk processing tree: %w", err)
	}
	sort.Strings(files)

	for _, src := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		dst, err := layout.Rebase(src, processingRoot, completedRoot)
		if err == nil {
			err = m.MoveFile(src, dst)
		}
		if err != nil {
			logging.WarnWithContext(m.logger, "promote file failed", "promote_failed",
				logging.String("path", src),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the completed tree"),
				logging.String(logging.FieldImpact, "file left out of the completed area"),
			)
			result.Failed = append(result.Failed, src)
			continue
		}
		result.Moved = append(result.Moved, dst)
	}

	leftovers, err := m.clearTree(processingRoot)
	result.Leftovers = leftovers
	if err != nil {
		return result, err
	}
	if leftovers > 0 {
		logging.WarnWithContext(m.logger, "processing tree was not empty after promotion", "promote_leftovers",
			logging.Int("leftovers", leftovers),
			logging.String(logging.FieldImpact, "leftover files were removed"),
		)
	}

	m.logger.Info("promotion complete",
		logging.String(logging.FieldEventType, "promote_complete"),
		logging.Int("moved", len(result.Moved)),
		logging.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// clearTree removes everything below root and returns the number of files
// it had to delete. On a correctly promoted tree only empty directories
// remain, so the count is zero.
func (m *Mover) clearTree(root string) (int, error) {
	entries, err := afero.ReadDir(m.fs, root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read processing root: %w", err)
	}
	files := 0
	for _, entry := range entries {
		target := filepath.Join(root, entry.Name())
		if entry.IsDir() {
			_ = afero.Walk(m.fs, target, func(_ string, info fs.FileInfo, err error) error {
				if err == nil && !info.IsDir() {
					files++
				}
				return nil
			})
		} else {
			files++
		}
		if err := m.fs.RemoveAll(target); err != nil {
			return files, fmt.Errorf("clear %s: %w", target, err)
		}
	}
	return files, nil
}

// PruneEmptyBatches removes batch directories under inputRoot that contain
// no entries and returns their names.
func (m *Mover) PruneEmptyBatches(inputRoot string) ([]string, error) {
	entries, err := afero.ReadDir(m.fs, inputRoot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read input root: %w", err)
	}
	var removed []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(inputRoot, entry.Name())
		empty, err := m.isEmptyDir(dir)
		if err != nil || !empty {
			continue
		}
		if err := m.fs.Remove(dir); err != nil {
			m.logger.Warn("remove empty input batch failed", logging.String("path", dir), logging.Error(err))
			continue
		}
		removed = append(removed, entry.Name())
	}
	return removed, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
