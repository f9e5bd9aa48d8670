package lifecycle

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"

	"wavbatch/internal/logging"
)

// Mover relocates files and trees between stage roots.
type Mover struct {
	fs     afero.Fs
	logger *slog.Logger
}

// NewMover returns a Mover backed by the OS filesystem.
func NewMover(logger *slog.Logger) *Mover {
	return &Mover{
		fs:     afero.NewOsFs(),
		logger: logging.NewComponentLogger(logger, "lifecycle"),
	}
}

// SetFS swaps the filesystem, typically for an in-memory one in tests.
func (m *Mover) SetFS(fs afero.Fs) {
	m.fs = fs
}

// FS exposes the backing filesystem.
func (m *Mover) FS() afero.Fs {
	return m.fs
}

// MoveFile moves src to dst, creating dst's parent. An existing dst is
// replaced. Moves across devices fall back to copy and remove.
func (m *Mover) MoveFile(src, dst string) error {
	if err := m.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}
	if err := m.fs.Rename(src, dst); err != nil {
		var linkErr *os.LinkError
		if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
			if err := m.copyFile(src, dst); err != nil {
				return fmt.Errorf("copy file across devices: %w", err)
			}
			if err := m.fs.Remove(src); err != nil {
				return fmt.Errorf("remove source after copy: %w", err)
			}
			return nil
		}
		return fmt.Errorf("move file: %w", err)
	}
	return nil
}

func (m *Mover) copyFile(src, dst string) error {
	source, err := m.fs.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	dest, err := m.fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(dest, source); err != nil {
		dest.Close()
		return fmt.Errorf("copy data: %w", err)
	}
	if err := dest.Sync(); err != nil {
		dest.Close()
		return fmt.Errorf("sync destination: %w", err)
	}
	return dest.Close()
}

// isEmptyDir reports whether dir exists and has no entries.
func (m *Mover) isEmptyDir(dir string) (bool, error) {
	return afero.IsEmpty(m.fs, dir)
}
