package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"wavbatch/internal/config"
	"wavbatch/internal/fetcher"
	"wavbatch/internal/ledger"
	"wavbatch/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	t.Setenv("HOME", testsupport.BaseDir(cfg))
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{fetcher.ErrNothingToDo, exitNothingToDo},
		{fmt.Errorf("run: %w", fetcher.ErrNothingToDo), exitNothingToDo},
		{errors.New("boom"), exitError},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestConfigInitShowAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, redacted)
	if strings.Contains(out, env.cfg.Remote.Password) {
		t.Fatalf("config show leaked the remote password:\n%s", out)
	}

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestLedgerCommandPrintsRows(t *testing.T) {
	env := setupCLITestEnv(t)
	store := testsupport.MustOpenLedger(t, env.cfg)
	if _, err := store.RecordSource(context.Background(), "a.wav", "/in/240615/a.wav", 42, ledger.StatusPending); err != nil {
		t.Fatalf("RecordSource: %v", err)
	}

	out, _, err := runCLI(t, []string{"ledger", "sources"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger sources: %v", err)
	}
	requireContains(t, out, "source_file_name")
	requireContains(t, out, "a.wav")

	out, _, err = runCLI(t, []string{"ledger", "artifacts"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger artifacts: %v", err)
	}
	requireContains(t, out, "processed_files is empty")

	out, _, err = runCLI(t, []string{"ledger", "sources", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger sources --json: %v", err)
	}
	var rows []map[string]string
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if len(rows) != 1 || rows[0]["source_file_name"] != "a.wav" || rows[0]["file_size"] != "42" {
		t.Fatalf("unexpected json rows %+v", rows)
	}

	if _, _, err := runCLI(t, []string{"ledger", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown table")
	}
}

func TestRunRejectsMalformedDate(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"run", "--date", "2024-06-15"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "yymmdd") {
		t.Fatalf("expected date validation error, got %v", err)
	}
}

func TestReportCommandWritesSpreadsheet(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"report", "--skip-mail"}, env.configPath)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	requireContains(t, out, "Processed")
	requireContains(t, out, env.cfg.ReportPath())
	if _, err := os.Stat(env.cfg.ReportPath()); err != nil {
		t.Fatalf("expected spreadsheet: %v", err)
	}
}
