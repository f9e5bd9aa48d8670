// Package layout computes every on-disk location a recording passes through.
//
// Files move between stage roots (input, processing, completed, failed,
// deleted). Below each root sits a yymmdd batch directory and, once a file
// is processed, a per-stem directory holding original/, converted/, and
// chunks/.
package layout

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"wavbatch/internal/config"
)

// BatchLayout is the yymmdd format used for batch folders upstream and locally.
const BatchLayout = "060102"

const (
	OriginalDir  = "original"
	ConvertedDir = "converted"
	ChunksDir    = "chunks"
)

// Stage names one of the stage roots.
type Stage string

const (
	StageInput      Stage = "input"
	StageProcessing Stage = "processing"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
	StageDeleted    Stage = "deleted"
)

// Layout holds the stage roots for one run.
type Layout struct {
	Input      string
	Processing string
	Completed  string
	Failed     string
	Deleted    string
}

// FromConfig builds a Layout from the configured paths.
func FromConfig(cfg *config.Config) Layout {
	return Layout{
		Input:      cfg.Paths.InputDir,
		Processing: cfg.Paths.ProcessingDir,
		Completed:  cfg.Paths.CompletedDir,
		Failed:     cfg.Paths.FailedDir,
		Deleted:    cfg.Paths.DeletedDir,
	}
}

// Root returns the directory for stage.
func (l Layout) Root(stage Stage) string {
	switch stage {
	case StageInput:
		return l.Input
	case StageProcessing:
		return l.Processing
	case StageCompleted:
		return l.Completed
	case StageFailed:
		return l.Failed
	case StageDeleted:
		return l.Deleted
	default:
		return ""
	}
}

// BatchName formats t as a batch folder name in local time.
func BatchName(t time.Time) string {
	return t.In(time.Local).Format(BatchLayout)
}

// ParseBatch reports whether name is a valid batch folder and its date.
func ParseBatch(name string) (time.Time, bool) {
	if len(name) != len(BatchLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(BatchLayout, name, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Stem strips the final extension from a file name.
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// HasExtension reports whether name ends with ext, ignoring case.
func HasExtension(name, ext string) bool {
	return strings.EqualFold(filepath.Ext(name), ext)
}

// InputBatch returns input/<batch>.
func (l Layout) InputBatch(batch string) string {
	return filepath.Join(l.Input, batch)
}

// InputFile returns input/<batch>/<name>.
func (l Layout) InputFile(batch, name string) string {
	return filepath.Join(l.Input, batch, name)
}

// StemDir returns <stage>/<batch>/<stem>.
func (l Layout) StemDir(stage Stage, batch, stem string) string {
	return filepath.Join(l.Root(stage), batch, stem)
}

// Original returns <stage>/<batch>/<stem>/original/<name>.
func (l Layout) Original(stage Stage, batch, name string) string {
	return filepath.Join(l.StemDir(stage, batch, Stem(name)), OriginalDir, name)
}

// Converted returns <stage>/<batch>/<stem>/converted/<stem>.<ext>.
func (l Layout) Converted(stage Stage, batch, name, ext string) string {
	stem := Stem(name)
	return filepath.Join(l.StemDir(stage, batch, stem), ConvertedDir, stem+"."+ext)
}

// Chunks returns <stage>/<batch>/<stem>/chunks.
func (l Layout) Chunks(stage Stage, batch, name string) string {
	return filepath.Join(l.StemDir(stage, batch, Stem(name)), ChunksDir)
}

// FailedFile returns failed/<batch>/<stem>/<name>.
func (l Layout) FailedFile(batch, name string) string {
	return filepath.Join(l.StemDir(StageFailed, batch, Stem(name)), name)
}

// Rebase maps path from one root onto another, preserving the relative part.
func Rebase(path, fromRoot, toRoot string) (string, error) {
	rel, err := filepath.Rel(fromRoot, path)
	if err != nil {
		return "", fmt.Errorf("rebase %s: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("rebase %s: not under %s", path, fromRoot)
	}
	return filepath.Join(toRoot, rel), nil
}
