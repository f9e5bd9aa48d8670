package batchrun

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"wavbatch/internal/config"
	"wavbatch/internal/fetcher"
	"wavbatch/internal/layout"
	"wavbatch/internal/lifecycle"
	"wavbatch/internal/logging"
	"wavbatch/internal/pipeline"
	"wavbatch/internal/publish"
	"wavbatch/internal/report"
	"wavbatch/internal/services"
	"wavbatch/internal/services/ffmpeg"
)

// Outcome describes a completed (or early-terminated) daily run.
type Outcome struct {
	RunID   string
	LogPath string
	Batch   string

	Fetch      fetcher.Result
	Conversion pipeline.Summary
	Promote    lifecycle.PromoteResult
	Pruned     []string
	Published  publish.Result

	Report Delivery
}

// Run executes one daily pass: fetch, convert, promote, publish, report.
// When the fetch records nothing new, fetcher.ErrNothingToDo is returned
// together with the partial outcome and no further phase runs.
func Run(ctx context.Context, cfg *config.Config, opts Options) (Outcome, error) {
	ctx, s, err := openSession(ctx, cfg, opts, "run")
	if err != nil {
		return Outcome{}, err
	}
	defer s.close()

	date := opts.runDate()
	out := Outcome{RunID: s.runID, LogPath: s.logPath, Batch: layout.BatchName(date)}
	ctx = services.WithBatch(ctx, out.Batch)
	logger := logging.WithContext(ctx, s.logger)
	lay := layout.FromConfig(cfg)

	dial := opts.Dial
	if dial == nil {
		dial = defaultDial
	}
	remote, err := dial(ctx, cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "remote connection failed", "remote_dial_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check remote.host, credentials and known_hosts"),
		)
		return out, services.Wrap(services.ErrExternalTool, "fetch", "dial remote", "Failed to connect to the recording host", err)
	}

	fetch := fetcher.New(remote, s.store, lay, cfg.Remote.RootDir, cfg.Remote.Extension, logger)
	out.Fetch, err = fetch.Run(ctx, date)
	if closeErr := remote.Close(); closeErr != nil {
		logger.Warn("remote close failed", logging.Error(closeErr))
	}
	if err != nil {
		if errors.Is(err, fetcher.ErrNothingToDo) {
			logger.Info("nothing to do",
				logging.String(logging.FieldEventType, "nothing_to_do"),
				logging.Int("skipped", out.Fetch.Skipped),
				logging.Int("duplicates", out.Fetch.Duplicates),
				logging.Int("errors", out.Fetch.Errors),
			)
		}
		return out, err
	}

	mover := lifecycle.NewMover(logger)
	encoder := opts.Encoder
	if encoder == nil {
		encoder = ffmpeg.NewCLI(
			ffmpeg.WithBinary(cfg.FFmpegBinary()),
			ffmpeg.WithBitrate(cfg.Conversion.Bitrate),
		)
	}
	converter := pipeline.NewConverter(lay, s.store, encoder, mover, pipeline.Options{
		Extension: cfg.Remote.Extension,
		Format:    cfg.Conversion.Format,
		Window:    cfg.ChunkWindow(),
	}, logger)
	out.Conversion, err = converter.Run(ctx)
	if err != nil {
		return out, err
	}

	out.Promote, err = mover.Promote(ctx, cfg.Paths.ProcessingDir, cfg.Paths.CompletedDir, cfg.SettleDelay())
	if err != nil {
		return out, fmt.Errorf("promote processing tree: %w", err)
	}
	out.Pruned, err = mover.PruneEmptyBatches(cfg.Paths.InputDir)
	if err != nil {
		logging.WarnWithContext(logger, "pruning empty input batches failed", "prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "empty batch directories remain under input"),
		)
	}

	if cfg.Publish.Enabled {
		out.Published = s.publish(ctx, promotedBatches(cfg.Paths.CompletedDir, out.Promote.Moved))
	}

	summary := report.Summary{
		Date:       date,
		Fetched:    len(out.Fetch.Fetched),
		Converted:  len(out.Conversion.Completed),
		Failed:     len(out.Conversion.Failed),
		Deferred:   out.Conversion.Deferred,
		Incomplete: out.Conversion.Incomplete,
	}
	out.Report, err = s.deliver(ctx, summary)
	if err != nil {
		return out, err
	}

	logger.Info("run complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("fetched", summary.Fetched),
		logging.Int("converted", summary.Converted),
		logging.Int("failed", summary.Failed),
		logging.Int("deferred", len(summary.Deferred)),
		logging.Int("promoted", len(out.Promote.Moved)),
		logging.Int("published", out.Published.Uploaded),
		logging.Bool("mail_sent", out.Report.MailSent),
	)
	return out, nil
}

func (s *session) publish(ctx context.Context, batches []string) publish.Result {
	var total publish.Result
	logger := logging.WithContext(ctx, s.logger)
	pub, err := publish.Open(ctx, s.cfg.Publish.BucketURL, s.cfg.Publish.Prefix, logger)
	if err != nil {
		logging.WarnWithContext(logger, "publish bucket unavailable", "publish_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check publish.bucket_url and bucket credentials"),
			logging.String(logging.FieldImpact, "artifacts were not published this run"),
		)
		return total
	}
	defer pub.Close()

	for _, batch := range batches {
		res, err := pub.PublishBatch(ctx, s.cfg.Paths.CompletedDir, batch)
		total.Uploaded += res.Uploaded
		total.Skipped += res.Skipped
		total.Failed += res.Failed
		if err != nil {
			logging.WarnWithContext(logger, "publish batch failed", "publish_failed",
				logging.String(logging.FieldBatch, batch),
				logging.Error(err),
				logging.String(logging.FieldImpact, "batch artifacts were not published"),
			)
		}
	}
	return total
}

// promotedBatches returns the distinct batch names touched by promotion.
func promotedBatches(completedRoot string, moved []string) []string {
	seen := make(map[string]struct{})
	for _, path := range moved {
		rel, err := filepath.Rel(completedRoot, path)
		if err != nil {
			continue
		}
		batch, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
		if _, ok := layout.ParseBatch(batch); ok {
			seen[batch] = struct{}{}
		}
	}
	batches := make([]string, 0, len(seen))
	for batch := range seen {
		batches = append(batches, batch)
	}
	sort.Strings(batches)
	return batches
}
