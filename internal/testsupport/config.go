package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"wavbatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Every stage directory exists on return.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.Root = base
	cfgVal.Paths.InputDir = filepath.Join(base, "input")
	cfgVal.Paths.ProcessingDir = filepath.Join(base, "processing")
	cfgVal.Paths.CompletedDir = filepath.Join(base, "completed")
	cfgVal.Paths.FailedDir = filepath.Join(base, "failed")
	cfgVal.Paths.DeletedDir = filepath.Join(base, "deleted")
	cfgVal.Paths.ReportDir = filepath.Join(base, "reports")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LedgerPath = filepath.Join(base, "wav_file_manager.db")
	cfgVal.Lifecycle.SettleDelayMillis = 0
	cfgVal.Remote.Host = "recorder.test"
	cfgVal.Remote.Username = "svc"
	cfgVal.Remote.Password = "secret"
	cfgVal.Remote.InsecureHostKey = true

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithChunkSeconds overrides the slicing window.
func WithChunkSeconds(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Conversion.ChunkSeconds = seconds
	}
}

// WithMail enables the mail section with placeholder SMTP settings.
func WithMail() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Mail.Enabled = true
		b.cfg.Mail.Host = "smtp.test"
		b.cfg.Mail.From = "wavbatch@example.com"
		b.cfg.Mail.To = []string{"ops@example.com"}
	}
}

// WithPublishDir enables publishing into a file:// bucket rooted at
// BaseDir(cfg)/bucket.
func WithPublishDir() ConfigOption {
	return func(b *configBuilder) {
		dir := filepath.Join(b.baseDir, "bucket")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.t.Fatalf("mkdir bucket: %v", err)
		}
		b.cfg.Publish.Enabled = true
		b.cfg.Publish.BucketURL = "file://" + filepath.ToSlash(dir)
		b.cfg.Publish.Prefix = "wavbatch/"
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.Root
}
