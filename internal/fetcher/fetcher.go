package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/text/unicode/norm"

	"wavbatch/internal/layout"
	"wavbatch/internal/ledger"
	"wavbatch/internal/logging"
	"wavbatch/internal/services"
)

// ErrNothingToDo reports that a fetch pass recorded no new files.
var ErrNothingToDo = errors.New("no new files to process")

// Ledger is the subset of the ledger store the fetcher needs.
type Ledger interface {
	SourceSeenOn(ctx context.Context, name string, day time.Time) (bool, error)
	RecordSource(ctx context.Context, name, localPath string, size int64, status ledger.Status) (bool, error)
}

// Fetched describes one newly downloaded recording.
type Fetched struct {
	Name string
	Path string
	Size int64
}

// Result summarizes a fetch pass.
type Result struct {
	Batch      string
	Fetched    []Fetched
	Skipped    int
	Duplicates int
	Errors     int
}

// Fetcher copies the day's batch directory from a Remote.
type Fetcher struct {
	remote    Remote
	store     Ledger
	layout    layout.Layout
	rootDir   string
	extension string
	logger    *slog.Logger
}

// New constructs a fetcher. rootDir is the remote directory holding batch
// folders; extension selects recordings (e.g. ".wav").
func New(remote Remote, store Ledger, lay layout.Layout, rootDir, extension string, logger *slog.Logger) *Fetcher {
	if rootDir == "" {
		rootDir = "/"
	}
	return &Fetcher{
		remote:    remote,
		store:     store,
		layout:    lay,
		rootDir:   rootDir,
		extension: extension,
		logger:    logging.NewComponentLogger(logger, "fetcher"),
	}
}

// Run downloads every new recording in the batch folder for today.
//
// Listing errors are fatal. Per-file transfer errors are logged and counted.
// ErrNothingToDo is returned alongside the result when no file was newly
// recorded.
func (f *Fetcher) Run(ctx context.Context, today time.Time) (Result, error) {
	batch := layout.BatchName(today)
	result := Result{Batch: batch}
	ctx = services.WithBatch(ctx, batch)
	logger := logging.WithContext(ctx, f.logger)

	entries, err := f.remote.ReadDir(ctx, f.rootDir)
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, "fetch", "list remote root", f.rootDir, err)
	}
	if !hasBatchDir(entries, batch) {
		logger.Info("remote batch directory not present",
			logging.String(logging.FieldDecisionType, "remote_batch"),
			logging.String("decision_result", "skip"),
			logging.String("remote_root", f.rootDir),
		)
		return result, ErrNothingToDo
	}

	batchDir := path.Join(f.rootDir, batch)
	files, err := f.remote.ReadDir(ctx, batchDir)
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, "fetch", "list batch", batchDir, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	for _, entry := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if entry.Dir || !entry.Mode.IsRegular() || !layout.HasExtension(entry.Name, f.extension) {
			continue
		}
		fetched, outcome, err := f.fetchOne(ctx, today, batch, batchDir, entry)
		if err != nil {
			return result, err
		}
		switch outcome {
		case outcomeFetched:
			result.Fetched = append(result.Fetched, fetched)
		case outcomeSkipped:
			result.Skipped++
		case outcomeDuplicate:
			result.Duplicates++
		case outcomeError:
			result.Errors++
		}
	}

	logger.Info("fetch summary",
		logging.String(logging.FieldEventType, "fetch_complete"),
		logging.Int("fetched", len(result.Fetched)),
		logging.Int("skipped", result.Skipped),
		logging.Int("duplicates", result.Duplicates),
		logging.Int("errors", result.Errors),
	)
	if len(result.Fetched) == 0 {
		return result, ErrNothingToDo
	}
	return result, nil
}

type outcome int

const (
	outcomeFetched outcome = iota
	outcomeSkipped
	outcomeDuplicate
	outcomeError
)

// fetchOne handles one remote file. Ledger failures are returned; transfer
// failures are logged and reported as outcomeError. An existing input file
// is never overwritten.
func (f *Fetcher) fetchOne(ctx context.Context, today time.Time, batch, batchDir string, entry Entry) (Fetched, outcome, error) {
	name := norm.NFC.String(entry.Name)
	ctx = services.WithSourceFile(ctx, name)
	logger := logging.WithContext(ctx, f.logger)

	seen, err := f.store.SourceSeenOn(ctx, name, today)
	if err != nil {
		logging.ErrorWithContext(logger, "ledger lookup failed", "ledger_read_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the ledger database file"),
		)
		return Fetched{}, outcomeError, fmt.Errorf("fetch %s: %w", name, err)
	}
	if seen {
		logger.Debug("recording already recorded today",
			logging.String(logging.FieldDecisionType, "fetch_dedupe"),
			logging.String("decision_result", "skip"),
		)
		return Fetched{}, outcomeSkipped, nil
	}

	local := f.layout.InputFile(batch, name)
	if _, err := os.Lstat(local); err == nil {
		logger.Info("input file already present",
			logging.String(logging.FieldDecisionType, "fetch_dedupe"),
			logging.String("decision_result", "skip"),
			logging.String("decision_reason", "input_file_present"),
			logging.String("path", local),
		)
		return Fetched{}, outcomeSkipped, nil
	}
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		logging.WarnWithContext(logger, "create input batch directory failed", "fetch_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "recording will be retried next run"),
		)
		return Fetched{}, outcomeError, nil
	}
	partial := local + ".part"
	size, err := f.remote.Fetch(ctx, path.Join(batchDir, entry.Name), partial)
	if err != nil {
		_ = os.Remove(partial)
		logging.WarnWithContext(logger, "recording transfer failed", "fetch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check remote connectivity and permissions"),
			logging.String(logging.FieldImpact, "recording will be retried next run"),
		)
		return Fetched{}, outcomeError, nil
	}

	// The ledger decides before the download is moved into place, so a
	// name recorded on an earlier day never replaces its input file.
	inserted, err := f.store.RecordSource(ctx, name, local, size, ledger.StatusPending)
	if err != nil {
		_ = os.Remove(partial)
		logging.ErrorWithContext(logger, "record source failed", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the ledger database file"),
		)
		return Fetched{}, outcomeError, fmt.Errorf("fetch %s: %w", name, err)
	}
	if !inserted {
		if err := os.Remove(partial); err != nil {
			logger.Warn("discard duplicate download failed", logging.Error(err), logging.String("path", partial))
		}
		logger.Info("recording name already in ledger",
			logging.String(logging.FieldDecisionType, "fetch_dedupe"),
			logging.String("decision_result", "discard"),
			logging.String("decision_reason", "recorded_on_earlier_day"),
		)
		return Fetched{}, outcomeDuplicate, nil
	}
	if err := os.Rename(partial, local); err != nil {
		_ = os.Remove(partial)
		logging.ErrorWithContext(logger, "place downloaded recording failed", "fetch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the input tree"),
			logging.String(logging.FieldImpact, "ledger row exists without an input file"),
		)
		return Fetched{}, outcomeError, nil
	}

	logger.Info("recording fetched",
		logging.String(logging.FieldEventType, "fetch_file"),
		logging.Int64("bytes", size),
		logging.String("path", local),
	)
	return Fetched{Name: name, Path: local, Size: size}, outcomeFetched, nil
}

func hasBatchDir(entries []Entry, batch string) bool {
	for _, e := range entries {
		if e.Dir && e.Name == batch {
			return true
		}
	}
	return false
}
