package testsupport

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"wavbatch/internal/fetcher"
)

// FakeRemote is an in-memory fetcher.Remote keyed by slash-separated paths.
type FakeRemote struct {
	mu      sync.Mutex
	files   map[string][]byte
	fail    map[string]error
	listErr map[string]error
	Fetches []string
	closed  bool
}

// NewFakeRemote returns an empty remote.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		files:   make(map[string][]byte),
		fail:    make(map[string]error),
		listErr: make(map[string]error),
	}
}

// Put stores data at the remote path p, implicitly creating parent dirs.
func (r *FakeRemote) Put(p string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[path.Clean(p)] = data
}

// PutFile stores the contents of a local file at remote path p.
func (r *FakeRemote) PutFile(p, local string) error {
	data, err := os.ReadFile(local)
	if err != nil {
		return err
	}
	r.Put(p, data)
	return nil
}

// FailFetch makes Fetch of p return err.
func (r *FakeRemote) FailFetch(p string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[path.Clean(p)] = err
}

// FailList makes ReadDir of dir return err.
func (r *FakeRemote) FailList(dir string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listErr[path.Clean(dir)] = err
}

// Closed reports whether Close was called.
func (r *FakeRemote) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *FakeRemote) ReadDir(_ context.Context, dir string) ([]fetcher.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dir = path.Clean(dir)
	if err := r.listErr[dir]; err != nil {
		return nil, err
	}
	prefix := dir + "/"
	if dir == "/" {
		prefix = "/"
	}
	seen := make(map[string]fetcher.Entry)
	for p, data := range r.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		name, _, nested := strings.Cut(rest, "/")
		if nested {
			seen[name] = fetcher.Entry{Name: name, Dir: true, Mode: os.ModeDir | 0o755}
			continue
		}
		seen[name] = fetcher.Entry{Name: name, Size: int64(len(data)), Mode: 0o644}
	}
	entries := make([]fetcher.Entry, 0, len(seen))
	for _, e := range seen {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (r *FakeRemote) Fetch(_ context.Context, remotePath, localPath string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	remotePath = path.Clean(remotePath)
	r.Fetches = append(r.Fetches, remotePath)
	if err := r.fail[remotePath]; err != nil {
		_ = os.WriteFile(localPath, []byte("partial"), 0o644)
		return 0, err
	}
	data, ok := r.files[remotePath]
	if !ok {
		return 0, fmt.Errorf("remote file %s: %w", remotePath, os.ErrNotExist)
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (r *FakeRemote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

var _ fetcher.Remote = (*FakeRemote)(nil)
