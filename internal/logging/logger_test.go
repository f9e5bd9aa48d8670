package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wavbatch/internal/config"
	"wavbatch/internal/logging"
	"wavbatch/internal/services"
)

func TestConsoleLoggerWritesComponentAndSubject(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer cleanup()

	ctx := services.WithBatch(context.Background(), "240115")
	ctx = services.WithSourceFile(ctx, "call.wav")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "pipeline")).Info("converted", logging.Int("chunks", 3))

	line := buf.String()
	for _, want := range []string{"INFO", "[pipeline]", "240115/call.wav", "converted", "chunks=3"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("expected no color codes for non-terminal writer: %q", line)
	}
}

func TestConsoleLoggerShortensRunID(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer cleanup()

	ctx := services.WithRunID(context.Background(), "3f2a9c1e-0000-4000-8000-000000000000")
	logging.WithContext(ctx, logger).Info("run started")

	line := buf.String()
	if !strings.Contains(line, "#3f2a9c1e") {
		t.Fatalf("expected short run id tag in %q", line)
	}
	if strings.Contains(line, "run_id=") {
		t.Fatalf("expected run id to be folded into the tag: %q", line)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller")
	if strings.Contains(buf.String(), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", buf.String())
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := logging.New(logging.Options{Format: "console", Level: "debug", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message with caller")
	if !strings.Contains(buf.String(), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", buf.String())
	}
}

func TestFileOutputReceivesJSONCopy(t *testing.T) {
	var console bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "logs", "wavbatch-run.log")
	logger, cleanup, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &console, FilePath: logPath})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("disk low", logging.String("dir", "/data"))
	if err := cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if !strings.Contains(console.String(), "disk low") {
		t.Fatalf("console missing record: %q", console.String())
	}
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
		t.Fatalf("decode json line %q: %v", content, err)
	}
	if record["msg"] != "disk low" || record["level"] != "warn" || record["dir"] != "/data" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestConsoleLoggerRendersDurationsInSeconds(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("recording converted",
		logging.Duration("audio_duration", 25*time.Second),
		logging.Duration("elapsed", 1500*time.Millisecond),
		logging.Any("names", []string{"a.wav", "caf\u00e9.wav"}),
		logging.String("note", "two words"),
	)

	line := buf.String()
	for _, want := range []string{"audio_duration=25s", "elapsed=1.5s", "names=a.wav,caf\u00e9.wav", `note="two words"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	stamp := strings.SplitN(line, " ", 3)
	if len(stamp) < 3 || len(stamp[1]) != len("15:04:05.000") {
		t.Fatalf("expected millisecond timestamp prefix in %q", line)
	}
}

func TestJSONLoggerWritesSecondsAndLocalTime(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := logging.New(logging.Options{Format: "json", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("conversion summary", logging.Duration("duration", 2250*time.Millisecond))

	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record["duration"] != 2.25 {
		t.Fatalf("expected duration in seconds, got %v", record["duration"])
	}
	stamp, ok := record["time"].(string)
	if !ok {
		t.Fatalf("missing time in %v", record)
	}
	parsed, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		t.Fatalf("time %q is not RFC 3339: %v", stamp, err)
	}
	_, want := time.Now().Zone()
	if _, got := parsed.Zone(); got != want {
		t.Fatalf("expected local offset in %q", stamp)
	}
	if record["level"] != "info" {
		t.Fatalf("unexpected level %v", record["level"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigUsesLoggingSection(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "json"
	logPath := filepath.Join(t.TempDir(), "run.log")
	logger, cleanup, err := logging.NewFromConfig(&cfg, logPath)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Debug("hidden at info level")
	logger.Info("visible")
	cleanup()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "hidden at info level") {
		t.Fatalf("debug record leaked: %q", content)
	}
	if !strings.Contains(string(content), "visible") {
		t.Fatalf("info record missing: %q", content)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, _, _ := logging.New(logging.Options{Format: "json", Console: &buf})
	logging.WarnWithContext(logger, "retry later", "remote_timeout")

	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{logging.FieldEventType, logging.FieldErrorHint, logging.FieldImpact} {
		if _, ok := record[key]; !ok {
			t.Fatalf("missing %s in %v", key, record)
		}
	}
	if record[logging.FieldEventType] != "remote_timeout" {
		t.Fatalf("unexpected event type: %v", record[logging.FieldEventType])
	}
}

func TestCleanupOldLogsSparesActiveAndRecentFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "wavbatch-old.log")
	active := filepath.Join(dir, "wavbatch-active.log")
	recent := filepath.Join(dir, "wavbatch-recent.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, active, recent, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	stale := time.Now().AddDate(0, 0, -10)
	for _, path := range []string{old, active, other} {
		if err := os.Chtimes(path, stale, stale); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 5, logging.RunLogTarget(dir, active))
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, err=%v", err)
	}
	for _, path := range []string{active, recent, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to remain: %v", path, err)
		}
	}
}

func TestCleanupOldLogsDisabled(t *testing.T) {
	if removed := logging.CleanupOldLogs(nil, 0, logging.RunLogTarget(t.TempDir(), "")); removed != 0 {
		t.Fatalf("expected no removals, got %d", removed)
	}
}
