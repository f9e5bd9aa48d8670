package batchrun

import (
	"context"
	"fmt"

	"wavbatch/internal/config"
	"wavbatch/internal/ledger"
	"wavbatch/internal/lifecycle"
	"wavbatch/internal/logging"
)

// SweepOutcome lists what the retention sweep moved and marked.
type SweepOutcome struct {
	RunID   string
	Batches []lifecycle.SweptBatch
	// Marked counts source records set to deleted.
	Marked int
}

// Sweep moves completed batches older than the retention window into the
// deleted area and marks their recordings deleted in the ledger.
func Sweep(ctx context.Context, cfg *config.Config, opts Options) (SweepOutcome, error) {
	ctx, s, err := openSession(ctx, cfg, opts, "sweep")
	if err != nil {
		return SweepOutcome{}, err
	}
	defer s.close()

	out := SweepOutcome{RunID: s.runID}
	logger := logging.WithContext(ctx, s.logger)
	mover := lifecycle.NewMover(logger)
	out.Batches, err = mover.Sweep(ctx, cfg.Paths.CompletedDir, cfg.Paths.DeletedDir, cfg.Retention(), opts.now())
	if err != nil {
		return out, fmt.Errorf("retention sweep: %w", err)
	}

	for _, batch := range out.Batches {
		for _, name := range batch.Originals {
			if err := s.store.UpdateSourceStatus(ctx, name, ledger.StatusDeleted); err != nil {
				logging.ErrorWithContext(logger, "ledger update failed during sweep", "ledger_write_failed",
					logging.String(logging.FieldBatch, batch.Name),
					logging.String(logging.FieldSourceFile, name),
					logging.Error(err),
				)
				return out, fmt.Errorf("mark %s deleted: %w", name, err)
			}
			out.Marked++
		}
	}

	logger.Info("retention sweep complete",
		logging.String(logging.FieldEventType, "sweep_complete"),
		logging.Int("batches", len(out.Batches)),
		logging.Int("marked_deleted", out.Marked),
		logging.Duration("retention", cfg.Retention()),
	)
	return out, nil
}
