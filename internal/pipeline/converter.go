package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"wavbatch/internal/audio"
	"wavbatch/internal/layout"
	"wavbatch/internal/ledger"
	"wavbatch/internal/lifecycle"
	"wavbatch/internal/logging"
	"wavbatch/internal/services"
)

// Ledger is the subset of the ledger store the pipeline writes to.
type Ledger interface {
	RecordArtifact(ctx context.Context, localPath, sourceName string, status ledger.Status) (bool, error)
	UpdateSourceStatus(ctx context.Context, name string, status ledger.Status) error
}

// Decoder parses a recording. audio.Decode is the production implementation.
type Decoder func(path string) (audio.Clip, error)

// Options configures a Converter.
type Options struct {
	Extension string
	Format    string
	Window    time.Duration
	Decode    Decoder
}

// Summary lists the source names handled by one pass.
type Summary struct {
	Completed []string
	Failed    []string
	// Deferred recordings stay pending in the input tree for the next run.
	Deferred []string
	// Incomplete recordings reached completed with missing artifacts.
	Incomplete []string
	// Unrecorded recordings were routed on disk but their final status
	// could not be written to the ledger.
	Unrecorded []string
}

// Processed is the number of recordings that reached a terminal status.
func (s Summary) Processed() int {
	return len(s.Completed) + len(s.Failed)
}

// Converter runs the per-recording state machine over the input tree.
type Converter struct {
	layout  layout.Layout
	store   Ledger
	encoder audio.Encoder
	mover   *lifecycle.Mover
	opts    Options
	logger  *slog.Logger
}

// NewConverter builds a converter. A nil Decode uses audio.Decode.
func NewConverter(lay layout.Layout, store Ledger, encoder audio.Encoder, mover *lifecycle.Mover, opts Options, logger *slog.Logger) *Converter {
	if opts.Decode == nil {
		opts.Decode = audio.Decode
	}
	if opts.Format == "" {
		opts.Format = "mp3"
	}
	if opts.Window <= 0 {
		opts.Window = 10 * time.Second
	}
	if mover == nil {
		mover = lifecycle.NewMover(logger)
	}
	return &Converter{
		layout:  lay,
		store:   store,
		encoder: encoder,
		mover:   mover,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Run processes every recording found under input/<batch>/ in name order.
// Per-file failures, ledger writes included, are logged and recorded in the
// summary. Only an unreadable input root or a cancelled context is returned.
func (c *Converter) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	batches, err := os.ReadDir(c.layout.Input)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return summary, nil
		}
		return summary, fmt.Errorf("read input root: %w", err)
	}
	started := time.Now()

	for _, batchEntry := range batches {
		if !batchEntry.IsDir() {
			continue
		}
		batch := batchEntry.Name()
		files, err := os.ReadDir(c.layout.InputBatch(batch))
		if err != nil {
			c.logger.Warn("read input batch failed", logging.String(logging.FieldBatch, batch), logging.Error(err))
			continue
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })
		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			if file.IsDir() || !layout.HasExtension(file.Name(), c.opts.Extension) {
				continue
			}
			c.processFile(ctx, batch, file.Name(), &summary)
		}
	}

	c.logger.Info("conversion summary",
		logging.String(logging.FieldEventType, "conversion_complete"),
		logging.Duration("duration", time.Since(started)),
		logging.Int("completed", len(summary.Completed)),
		logging.Int("failed", len(summary.Failed)),
		logging.Int("deferred", len(summary.Deferred)),
		logging.Int("incomplete", len(summary.Incomplete)),
		logging.Int("unrecorded", len(summary.Unrecorded)),
	)
	return summary, nil
}

func (c *Converter) processFile(ctx context.Context, batch, name string, summary *Summary) {
	ctx = services.WithSourceFile(services.WithBatch(ctx, batch), name)
	logger := logging.WithContext(ctx, c.logger)
	src := c.layout.InputFile(batch, name)

	clip, err := c.opts.Decode(src)
	if err != nil {
		c.handleDecodeFailure(ctx, logger, batch, name, err, summary)
		return
	}

	original := c.layout.Original(layout.StageProcessing, batch, name)
	if err := c.mover.MoveFile(src, original); err != nil {
		logging.WarnWithContext(logger, "relocate original failed", "relocate_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the processing tree"),
			logging.String(logging.FieldImpact, "recording stays pending for the next run"),
		)
		summary.Deferred = append(summary.Deferred, name)
		return
	}
	complete := c.recordArtifact(ctx, logger, original, name)

	converted := c.layout.Converted(layout.StageProcessing, batch, name, c.opts.Format)
	if !c.encode(ctx, logger, original, converted, audio.Span{}, name) {
		complete = false
	}

	chunkDir := c.layout.Chunks(layout.StageProcessing, batch, name)
	windows := audio.Plan(clip.Duration, c.opts.Window)
	for _, w := range windows {
		dst := filepath.Join(chunkDir, w.Name(layout.Stem(name), c.opts.Format))
		if !c.encode(ctx, logger, original, dst, w.Span(), name) {
			complete = false
		}
	}

	if !c.updateStatus(ctx, logger, name, ledger.StatusCompleted) {
		summary.Unrecorded = append(summary.Unrecorded, name)
		return
	}
	summary.Completed = append(summary.Completed, name)
	if !complete {
		summary.Incomplete = append(summary.Incomplete, name)
		logging.WarnWithContext(logger, "recording completed with missing artifacts", "artifacts_incomplete",
			logging.Alert("incomplete_artifacts"),
			logging.String(logging.FieldImpact, "some converted files or chunks are missing"),
		)
	}
	logger.Info("recording converted",
		logging.String(logging.FieldEventType, "recording_complete"),
		logging.Duration("audio_duration", clip.Duration),
		logging.Int("chunks", len(windows)),
		logging.Bool("complete", complete),
	)
}

// handleDecodeFailure routes an unreadable recording to the failed area.
// Errors that do not classify as terminal leave the recording pending.
func (c *Converter) handleDecodeFailure(ctx context.Context, logger *slog.Logger, batch, name string, cause error, summary *Summary) {
	if services.FailureStatus(cause) != ledger.StatusFailed {
		logging.WarnWithContext(logger, "decode attempt failed", "decode_retry",
			logging.Error(cause),
			logging.String(logging.FieldImpact, "recording stays pending for the next run"),
		)
		summary.Deferred = append(summary.Deferred, name)
		return
	}

	src := c.layout.InputFile(batch, name)
	dst := c.layout.FailedFile(batch, name)
	if err := c.mover.MoveFile(src, dst); err != nil {
		logging.WarnWithContext(logger, "relocate failed recording failed", "relocate_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "recording stays pending for the next run"),
		)
		summary.Deferred = append(summary.Deferred, name)
		return
	}
	if !c.updateStatus(ctx, logger, name, ledger.StatusFailed) {
		summary.Unrecorded = append(summary.Unrecorded, name)
		return
	}
	logging.WarnWithContext(logger, "recording could not be decoded", "decode_failed",
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "inspect the file in the failed area"),
		logging.String(logging.FieldImpact, "recording marked failed"),
		logging.String("path", dst),
	)
	summary.Failed = append(summary.Failed, name)
}

// encode writes one artifact and reports whether it was both written and
// recorded.
func (c *Converter) encode(ctx context.Context, logger *slog.Logger, src, dst string, span audio.Span, name string) bool {
	if err := c.encoder.Encode(ctx, src, dst, span); err != nil {
		logging.WarnWithContext(logger, "encode artifact failed", "encode_failed",
			logging.String("artifact", dst),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the ffmpeg installation"),
			logging.String(logging.FieldImpact, "artifact missing from the completed set"),
		)
		return false
	}
	return c.recordArtifact(ctx, logger, dst, name)
}

func (c *Converter) recordArtifact(ctx context.Context, logger *slog.Logger, path, name string) bool {
	if _, err := c.store.RecordArtifact(ctx, path, name, ledger.StatusProcessed); err != nil {
		logging.ErrorWithContext(logger, "record artifact failed", "ledger_write_failed",
			logging.String("artifact", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the ledger database file"),
			logging.String(logging.FieldImpact, "artifact missing from the ledger"),
		)
		return false
	}
	return true
}

func (c *Converter) updateStatus(ctx context.Context, logger *slog.Logger, name string, status ledger.Status) bool {
	if err := c.store.UpdateSourceStatus(ctx, name, status); err != nil {
		logging.ErrorWithContext(logger, "update source status failed", "ledger_write_failed",
			logging.String("status", string(status)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the ledger database file"),
		)
		return false
	}
	return true
}
