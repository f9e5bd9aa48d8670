package report

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"wavbatch/internal/layout"
	"wavbatch/internal/ledger"
)

// Origin records where a reconciled status came from.
type Origin string

const (
	OriginLedger     Origin = "ledger"
	OriginFilesystem Origin = "filesystem"
)

// Row is one source recording with its reconciled status.
type Row struct {
	Record ledger.SourceRecord
	Batch  string
	Status ledger.Status
	Origin Origin
	// Evidence is the directory that decided Status, if any.
	Evidence string
}

// Drifted reports whether the filesystem disagrees with the ledger.
func (r Row) Drifted() bool {
	return r.Status != r.Record.Status
}

// Reconciler checks stage directories for evidence of each recording.
type Reconciler struct {
	fs     afero.Fs
	layout layout.Layout
}

// NewReconciler returns a Reconciler over the OS filesystem.
func NewReconciler(lay layout.Layout) *Reconciler {
	return &Reconciler{fs: afero.NewOsFs(), layout: lay}
}

// SetFS swaps the filesystem used for existence checks.
func (r *Reconciler) SetFS(fs afero.Fs) {
	r.fs = fs
}

type probe struct {
	stage  layout.Stage
	status ledger.Status
}

var probes = []probe{
	{layout.StageCompleted, ledger.StatusCompleted},
	{layout.StageFailed, ledger.StatusFailed},
	{layout.StageDeleted, ledger.StatusDeleted},
}

// Reconcile returns one row per record. For each record the first existing
// directory among <stage>/<batch>/<stem> and <stage>/<stem>, probing
// completed, failed, then deleted, decides the status; with no match the
// ledger status stands. A stat error other than not-exist stops the pass.
func (r *Reconciler) Reconcile(ctx context.Context, records []ledger.SourceRecord) ([]Row, error) {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		batch := recordBatch(rec)
		row := Row{Record: rec, Batch: batch, Status: rec.Status, Origin: OriginLedger}
		stem := layout.Stem(rec.Name)
	probing:
		for _, p := range probes {
			root := r.layout.Root(p.stage)
			for _, dir := range candidateDirs(root, batch, stem) {
				ok, err := afero.DirExists(r.fs, dir)
				if err != nil {
					return rows, fmt.Errorf("reconcile %s: %w", rec.Name, err)
				}
				if ok {
					row.Status = p.status
					row.Origin = OriginFilesystem
					row.Evidence = dir
					break probing
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func candidateDirs(root, batch, stem string) []string {
	if root == "" || stem == "" {
		return nil
	}
	dirs := make([]string, 0, 2)
	if batch != "" {
		dirs = append(dirs, filepath.Join(root, batch, stem))
	}
	return append(dirs, filepath.Join(root, stem))
}

// recordBatch derives the batch from the ingestion path, falling back to the
// local date the record was created.
func recordBatch(rec ledger.SourceRecord) string {
	if rec.LocalPath != "" {
		parent := filepath.Base(filepath.Dir(rec.LocalPath))
		if _, ok := layout.ParseBatch(parent); ok {
			return parent
		}
	}
	if rec.CreatedAt.IsZero() {
		return ""
	}
	return layout.BatchName(rec.CreatedAt)
}
