package batchrun_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"wavbatch/internal/batchrun"
	"wavbatch/internal/config"
	"wavbatch/internal/fetcher"
	"wavbatch/internal/layout"
	"wavbatch/internal/ledger"
	"wavbatch/internal/notifications"
	"wavbatch/internal/testsupport"
)

var runDate = time.Date(2024, time.June, 15, 6, 0, 0, 0, time.Local)

type recordingNotifier struct {
	mu      sync.Mutex
	reports []notifications.Report
	err     error
}

func (n *recordingNotifier) SendReport(_ context.Context, report notifications.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, report)
	return n.err
}

func (n *recordingNotifier) Enabled() bool { return true }

func (n *recordingNotifier) sent() []notifications.Report {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifications.Report(nil), n.reports...)
}

type harness struct {
	cfg      *config.Config
	remote   *testsupport.FakeRemote
	encoder  *testsupport.FakeEncoder
	notifier *recordingNotifier
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Remote.RootDir = "/recordings"
	return &harness{
		cfg:      cfg,
		remote:   testsupport.NewFakeRemote(),
		encoder:  &testsupport.FakeEncoder{},
		notifier: &recordingNotifier{},
	}
}

func (h *harness) options() batchrun.Options {
	return batchrun.Options{
		Date:    runDate,
		Console: io.Discard,
		Dial: func(context.Context, *config.Config) (fetcher.Remote, error) {
			return h.remote, nil
		},
		Encoder:  h.encoder,
		Notifier: h.notifier,
	}
}

// seedDay puts one valid 25 second recording and one corrupt file on the
// fake remote under the 240615 batch.
func (h *harness) seedDay(t *testing.T) {
	t.Helper()
	valid := filepath.Join(t.TempDir(), "a.wav")
	testsupport.WriteWAV(t, valid, 25*time.Second)
	if err := h.remote.PutFile("/recordings/240615/a.wav", valid); err != nil {
		t.Fatalf("put a.wav: %v", err)
	}
	h.remote.Put("/recordings/240615/b.wav", []byte("not a wav file"))
}

func sourceStatus(t *testing.T, cfg *config.Config, name string) ledger.Status {
	t.Helper()
	store := testsupport.MustOpenLedger(t, cfg)
	rec, err := store.Source(context.Background(), name)
	if err != nil || rec == nil {
		t.Fatalf("source %s: %v", name, err)
	}
	return rec.Status
}

func TestRunProcessesDailyBatch(t *testing.T) {
	h := newHarness(t, testsupport.WithMail())
	h.seedDay(t)

	out, err := batchrun.Run(context.Background(), h.cfg, h.options())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Batch != "240615" || out.RunID == "" {
		t.Fatalf("unexpected outcome identity: %+v", out)
	}
	if len(out.Fetch.Fetched) != 2 {
		t.Fatalf("expected 2 fetched files, got %+v", out.Fetch.Fetched)
	}
	if got := out.Conversion.Completed; len(got) != 1 || got[0] != "a.wav" {
		t.Fatalf("unexpected completed list %v", got)
	}
	if got := out.Conversion.Failed; len(got) != 1 || got[0] != "b.wav" {
		t.Fatalf("unexpected failed list %v", got)
	}

	lay := layout.FromConfig(h.cfg)
	if _, err := os.Stat(lay.Original(layout.StageCompleted, "240615", "a.wav")); err != nil {
		t.Fatalf("expected promoted original: %v", err)
	}
	if _, err := os.Stat(lay.FailedFile("240615", "b.wav")); err != nil {
		t.Fatalf("expected failed recording: %v", err)
	}
	entries, err := os.ReadDir(h.cfg.Paths.ProcessingDir)
	if err != nil {
		t.Fatalf("read processing: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("processing tree not emptied: %v", entries)
	}
	if _, err := os.Stat(lay.InputBatch("240615")); !os.IsNotExist(err) {
		t.Fatalf("expected empty input batch to be pruned, stat err=%v", err)
	}

	if got := sourceStatus(t, h.cfg, "a.wav"); got != ledger.StatusCompleted {
		t.Fatalf("a.wav status = %s", got)
	}
	if got := sourceStatus(t, h.cfg, "b.wav"); got != ledger.StatusFailed {
		t.Fatalf("b.wav status = %s", got)
	}

	if out.Report.Spreadsheet != h.cfg.ReportPath() {
		t.Fatalf("unexpected spreadsheet path %q", out.Report.Spreadsheet)
	}
	if _, err := os.Stat(out.Report.Spreadsheet); err != nil {
		t.Fatalf("spreadsheet missing: %v", err)
	}
	if !out.Report.MailSent {
		t.Fatalf("expected mail to be sent, err=%v", out.Report.MailErr)
	}
	reports := h.notifier.sent()
	if len(reports) != 1 {
		t.Fatalf("expected one report, got %d", len(reports))
	}
	msg := reports[0]
	if msg.Subject != "Daily Status Report - 15/06/2024" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	for _, want := range []string{"Total files - 2", "Processed files - 1", "Failed files - 1"} {
		if !strings.Contains(msg.Body, want) {
			t.Fatalf("body missing %q:\n%s", want, msg.Body)
		}
	}
	if len(msg.Attachments) != 2 || msg.Attachments[0].Path != h.cfg.ReportPath() || !msg.Attachments[1].Compress {
		t.Fatalf("unexpected attachments %+v", msg.Attachments)
	}
	if msg.Attachments[1].Path != out.LogPath {
		t.Fatalf("expected run log attachment %q, got %q", out.LogPath, msg.Attachments[1].Path)
	}
	if !h.remote.Closed() {
		t.Fatal("expected remote to be closed")
	}
}

func TestRunSecondPassHasNothingToDo(t *testing.T) {
	h := newHarness(t, testsupport.WithMail())
	h.seedDay(t)
	ctx := context.Background()

	if _, err := batchrun.Run(ctx, h.cfg, h.options()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	calls := len(h.encoder.Calls)

	out, err := batchrun.Run(ctx, h.cfg, h.options())
	if !errors.Is(err, fetcher.ErrNothingToDo) {
		t.Fatalf("expected ErrNothingToDo, got %v", err)
	}
	if len(out.Fetch.Fetched) != 0 {
		t.Fatalf("expected nothing fetched, got %+v", out.Fetch.Fetched)
	}
	if len(h.encoder.Calls) != calls {
		t.Fatalf("encoder called on a nothing-to-do run")
	}
	if got := len(h.notifier.sent()); got != 1 {
		t.Fatalf("expected no mail on early exit, got %d reports", got)
	}
	store := testsupport.MustOpenLedger(t, h.cfg)
	sources, err := store.Sources(ctx)
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 source rows after rerun, got %d", len(sources))
	}
}

func TestRunEmptyRemoteDayHasNothingToDo(t *testing.T) {
	h := newHarness(t)
	h.remote.Put("/recordings/240614/old.wav", []byte("old"))

	_, err := batchrun.Run(context.Background(), h.cfg, h.options())
	if !errors.Is(err, fetcher.ErrNothingToDo) {
		t.Fatalf("expected ErrNothingToDo, got %v", err)
	}
}

func TestRunDialFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	opts := h.options()
	opts.Dial = func(context.Context, *config.Config) (fetcher.Remote, error) {
		return nil, errors.New("connection refused")
	}
	_, err := batchrun.Run(context.Background(), h.cfg, opts)
	if err == nil || errors.Is(err, fetcher.ErrNothingToDo) {
		t.Fatalf("expected dial error, got %v", err)
	}
}

func TestRunRejectsConcurrentInvocation(t *testing.T) {
	h := newHarness(t)
	held := flock.New(h.cfg.LockPath())
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("hold lock: ok=%v err=%v", ok, err)
	}
	t.Cleanup(func() { _ = held.Unlock() })

	_, err = batchrun.Run(context.Background(), h.cfg, h.options())
	if !errors.Is(err, batchrun.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestRunMailFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, testsupport.WithMail())
	h.notifier.err = errors.New("smtp unavailable")
	h.seedDay(t)

	out, err := batchrun.Run(context.Background(), h.cfg, h.options())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Report.MailSent || out.Report.MailErr == nil {
		t.Fatalf("expected recorded mail failure, got %+v", out.Report)
	}
}

func TestRunSkipMail(t *testing.T) {
	h := newHarness(t, testsupport.WithMail())
	h.seedDay(t)
	opts := h.options()
	opts.SkipMail = true

	out, err := batchrun.Run(context.Background(), h.cfg, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Report.MailSent || len(h.notifier.sent()) != 0 {
		t.Fatal("expected no mail with SkipMail")
	}
	if _, err := os.Stat(h.cfg.ReportPath()); err != nil {
		t.Fatalf("spreadsheet should still be written: %v", err)
	}
}

func TestRunPublishesPromotedArtifacts(t *testing.T) {
	h := newHarness(t, testsupport.WithPublishDir())
	h.seedDay(t)

	out, err := batchrun.Run(context.Background(), h.cfg, h.options())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// converted file plus three 10s chunks of the 25s recording
	if out.Published.Uploaded != 4 || out.Published.Failed != 0 {
		t.Fatalf("unexpected publish result %+v", out.Published)
	}
	bucketBatch := filepath.Join(testsupport.BaseDir(h.cfg), "bucket", "wavbatch", "240615", "a")
	if _, err := os.Stat(filepath.Join(bucketBatch, layout.ConvertedDir)); err != nil {
		t.Fatalf("expected converted artifacts in bucket: %v", err)
	}
	if _, err := os.Stat(filepath.Join(bucketBatch, layout.OriginalDir)); !os.IsNotExist(err) {
		t.Fatalf("originals must not be published, stat err=%v", err)
	}
}

func TestSweepMarksExpiredBatchesDeleted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lay := layout.FromConfig(h.cfg)

	original := lay.Original(layout.StageCompleted, "240601", "old.wav")
	testsupport.WriteFile(t, original, 64)
	testsupport.WriteFile(t, filepath.Join(lay.Chunks(layout.StageCompleted, "240601", "old.wav"), "old_0_10.mp3"), 8)
	fresh := lay.Original(layout.StageCompleted, "240615", "new.wav")
	testsupport.WriteFile(t, fresh, 64)

	store := testsupport.MustOpenLedger(t, h.cfg)
	for _, name := range []string{"old.wav", "new.wav"} {
		if _, err := store.RecordSource(ctx, name, filepath.Join(h.cfg.Paths.InputDir, name), 64, ledger.StatusCompleted); err != nil {
			t.Fatalf("RecordSource %s: %v", name, err)
		}
	}

	now := time.Now()
	old := now.Add(-72 * time.Hour)
	if err := os.Chtimes(filepath.Join(h.cfg.Paths.CompletedDir, "240601"), old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	opts := h.options()
	opts.Now = func() time.Time { return now }
	out, err := batchrun.Sweep(ctx, h.cfg, opts)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(out.Batches) != 1 || out.Batches[0].Name != "240601" || out.Marked != 1 {
		t.Fatalf("unexpected sweep outcome %+v", out)
	}
	if _, err := os.Stat(lay.Original(layout.StageDeleted, "240601", "old.wav")); err != nil {
		t.Fatalf("expected original under deleted: %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh batch should stay: %v", err)
	}
	if got := sourceStatus(t, h.cfg, "old.wav"); got != ledger.StatusDeleted {
		t.Fatalf("old.wav status = %s", got)
	}
	if got := sourceStatus(t, h.cfg, "new.wav"); got != ledger.StatusCompleted {
		t.Fatalf("new.wav status = %s", got)
	}
}

func TestReportReflectsFilesystem(t *testing.T) {
	h := newHarness(t, testsupport.WithMail())
	ctx := context.Background()
	lay := layout.FromConfig(h.cfg)

	store := testsupport.MustOpenLedger(t, h.cfg)
	if _, err := store.RecordSource(ctx, "moved.wav", lay.InputFile("240615", "moved.wav"), 10, ledger.StatusCompleted); err != nil {
		t.Fatalf("RecordSource: %v", err)
	}
	testsupport.WriteFile(t, lay.Original(layout.StageDeleted, "240615", "moved.wav"), 10)

	d, err := batchrun.Report(ctx, h.cfg, h.options())
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if len(d.Rows) != 1 || d.Rows[0].Status != ledger.StatusDeleted {
		t.Fatalf("unexpected rows %+v", d.Rows)
	}
	if len(d.Summary.Drifted) != 1 {
		t.Fatalf("expected drift to be reported, got %v", d.Summary.Drifted)
	}
	if got := sourceStatus(t, h.cfg, "moved.wav"); got != ledger.StatusCompleted {
		t.Fatalf("report must not write the ledger, status = %s", got)
	}
	if len(h.notifier.sent()) != 1 {
		t.Fatal("expected report mail")
	}
}
