package lifecycle_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/afero"

	"wavbatch/internal/lifecycle"
	"wavbatch/internal/logging"
)

func newMemMover(t *testing.T) (*lifecycle.Mover, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	m := lifecycle.NewMover(logging.NewNop())
	m.SetFS(fs)
	return m, fs
}

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestPromoteMovesEveryFileAndEmptiesProcessing(t *testing.T) {
	m, fs := newMemMover(t)
	files := []string{
		"240615/a/original/a.wav",
		"240615/a/converted/a.mp3",
		"240615/a/chunks/a_0-10.mp3",
		"240615/a/chunks/a_10-20.mp3",
		"240615/a/chunks/a_20-25.mp3",
	}
	for _, f := range files {
		writeFile(t, fs, filepath.Join("/data/processing", f), f)
	}

	result, err := m.Promote(context.Background(), "/data/processing", "/data/completed", 0)
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if len(result.Moved) != len(files) || len(result.Failed) != 0 || result.Leftovers != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	for _, f := range files {
		data, err := afero.ReadFile(fs, filepath.Join("/data/completed", f))
		if err != nil {
			t.Fatalf("expected %s in completed: %v", f, err)
		}
		if string(data) != f {
			t.Fatalf("content mismatch for %s", f)
		}
	}

	entries, err := afero.ReadDir(fs, "/data/processing")
	if err != nil {
		t.Fatalf("read processing root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty processing tree, found %d entries", len(entries))
	}
}

func TestPromoteMergesIntoExistingCompletedBatch(t *testing.T) {
	m, fs := newMemMover(t)
	writeFile(t, fs, "/data/completed/240615/a/converted/a.mp3", "earlier")
	writeFile(t, fs, "/data/processing/240615/b/converted/b.mp3", "b")

	if _, err := m.Promote(context.Background(), "/data/processing", "/data/completed", 0); err != nil {
		t.Fatalf("Promote: %v", err)
	}
	for _, p := range []string{"/data/completed/240615/a/converted/a.mp3", "/data/completed/240615/b/converted/b.mp3"} {
		if ok, _ := afero.Exists(fs, p); !ok {
			t.Fatalf("expected %s", p)
		}
	}
}

func TestPromoteMissingProcessingRootIsNoop(t *testing.T) {
	m, _ := newMemMover(t)
	result, err := m.Promote(context.Background(), "/nope", "/data/completed", 0)
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if len(result.Moved) != 0 {
		t.Fatalf("expected nothing moved, got %+v", result)
	}
}

func TestPromoteStopsWhenCancelledDuringDelay(t *testing.T) {
	m, fs := newMemMover(t)
	writeFile(t, fs, "/data/processing/240615/a/converted/a.mp3", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Promote(ctx, "/data/processing", "/data/completed", time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ok, _ := afero.Exists(fs, "/data/processing/240615/a/converted/a.mp3"); !ok {
		t.Fatal("file should stay in processing when cancelled")
	}
}

func TestPruneEmptyBatches(t *testing.T) {
	m, fs := newMemMover(t)
	if err := fs.MkdirAll("/data/input/240614", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, fs, "/data/input/240615/deferred.wav", "x")

	removed, err := m.PruneEmptyBatches("/data/input")
	if err != nil {
		t.Fatalf("PruneEmptyBatches: %v", err)
	}
	if !reflect.DeepEqual(removed, []string{"240614"}) {
		t.Fatalf("unexpected removed batches: %v", removed)
	}
	if ok, _ := afero.DirExists(fs, "/data/input/240615"); !ok {
		t.Fatal("non-empty batch must be kept")
	}
}

func TestSweepMovesBatchesPastRetention(t *testing.T) {
	m, fs := newMemMover(t)
	now := time.Date(2024, time.June, 20, 12, 0, 0, 0, time.UTC)

	writeFile(t, fs, "/data/completed/240615/a/original/a.wav", "a")
	writeFile(t, fs, "/data/completed/240615/a/converted/a.mp3", "a")
	writeFile(t, fs, "/data/completed/240615/c/original/c.wav", "c")
	writeFile(t, fs, "/data/completed/240620/d/original/d.wav", "d")
	writeFile(t, fs, "/data/deleted/240615/z/original/z.wav", "z")
	if err := fs.Chtimes("/data/completed/240615", now.Add(-48*time.Hour), now.Add(-48*time.Hour)); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := fs.Chtimes("/data/completed/240620", now.Add(-time.Hour), now.Add(-time.Hour)); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	swept, err := m.Sweep(context.Background(), "/data/completed", "/data/deleted", 24*time.Hour, now)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(swept) != 1 || swept[0].Name != "240615" {
		t.Fatalf("unexpected swept batches: %+v", swept)
	}
	if !reflect.DeepEqual(swept[0].Originals, []string{"a.wav", "c.wav"}) {
		t.Fatalf("unexpected originals: %v", swept[0].Originals)
	}
	for _, p := range []string{
		"/data/deleted/240615/a/original/a.wav",
		"/data/deleted/240615/a/converted/a.mp3",
		"/data/deleted/240615/c/original/c.wav",
		"/data/deleted/240615/z/original/z.wav",
		"/data/completed/240620/d/original/d.wav",
	} {
		if ok, _ := afero.Exists(fs, p); !ok {
			t.Fatalf("expected %s to exist", p)
		}
	}
	if ok, _ := afero.DirExists(fs, "/data/completed/240615"); ok {
		t.Fatal("swept batch should be removed from completed")
	}
}

func TestMoveFileOnDisk(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "a.wav")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(src, []byte("riff"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	dst := filepath.Join(dir, "processing", "240615", "a", "original", "a.wav")

	if err := lifecycle.NewMover(nil).MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source gone, stat err=%v", err)
	}
	if data, err := os.ReadFile(dst); err != nil || string(data) != "riff" {
		t.Fatalf("unexpected destination: %q %v", data, err)
	}
}
