package fetcher

import (
	"context"
	"io/fs"
	"time"
)

// Entry is one item of a remote directory listing.
type Entry struct {
	Name  string
	Dir   bool
	Size  int64
	Mode  fs.FileMode
	MTime time.Time
}

// Remote lists and retrieves files on the upstream host.
type Remote interface {
	ReadDir(ctx context.Context, dir string) ([]Entry, error)
	Fetch(ctx context.Context, remotePath, localPath string) (int64, error)
	Close() error
}
