package preflight

import (
	"context"

	"wavbatch/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	for _, dir := range stageDirectories(cfg) {
		results = append(results, CheckDirectoryAccess(dir.name, dir.path))
	}
	results = append(results, CheckLedger(ctx, cfg.Paths.LedgerPath))
	for _, status := range CheckSystemDeps(cfg) {
		result := Result{Name: status.Name, Passed: status.Available || status.Optional, Detail: status.Command}
		if !status.Available {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}
	results = append(results, CheckRemote(ctx, cfg))

	if cfg.Mail.Enabled {
		results = append(results, CheckMail(ctx, cfg))
	}
	if cfg.Publish.Enabled {
		results = append(results, CheckBucket(ctx, cfg.Publish.BucketURL))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

type namedDir struct {
	name string
	path string
}

func stageDirectories(cfg *config.Config) []namedDir {
	return []namedDir{
		{"Input directory", cfg.Paths.InputDir},
		{"Processing directory", cfg.Paths.ProcessingDir},
		{"Completed directory", cfg.Paths.CompletedDir},
		{"Failed directory", cfg.Paths.FailedDir},
		{"Deleted directory", cfg.Paths.DeletedDir},
		{"Report directory", cfg.Paths.ReportDir},
		{"Log directory", cfg.Paths.LogDir},
	}
}
