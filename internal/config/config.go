package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the stage directories and the ledger location.
type Paths struct {
	Root          string `toml:"root"`
	InputDir      string `toml:"input_dir"`
	ProcessingDir string `toml:"processing_dir"`
	CompletedDir  string `toml:"completed_dir"`
	FailedDir     string `toml:"failed_dir"`
	DeletedDir    string `toml:"deleted_dir"`
	ReportDir     string `toml:"report_dir"`
	LogDir        string `toml:"log_dir"`
	LedgerPath    string `toml:"ledger_path"`
}

// Remote contains SSH/SFTP settings for the upstream recording host.
type Remote struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Username        string `toml:"username"`
	Password        string `toml:"password"`
	KeyPath         string `toml:"key_path"`
	KnownHostsPath  string `toml:"known_hosts_path"`
	InsecureHostKey bool   `toml:"insecure_host_key"`
	RootDir         string `toml:"root_dir"`
	Extension       string `toml:"extension"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// Conversion contains encoder and slicing settings.
type Conversion struct {
	Format       string `toml:"format"`
	ChunkSeconds int    `toml:"chunk_seconds"`
	FFmpegBinary string `toml:"ffmpeg_binary"`
	Bitrate      string `toml:"bitrate"`
}

// Lifecycle contains promotion and retention timing.
type Lifecycle struct {
	SettleDelayMillis int `toml:"settle_delay_ms"`
	RetentionHours    int `toml:"retention_hours"`
}

// Mail contains SMTP settings for the daily status message.
type Mail struct {
	Enabled   bool     `toml:"enabled"`
	Host      string   `toml:"host"`
	Port      int      `toml:"port"`
	Username  string   `toml:"username"`
	Password  string   `toml:"password"`
	From      string   `toml:"from"`
	To        []string `toml:"to"`
	Cc        []string `toml:"cc"`
	Subject   string   `toml:"subject"`
	AttachLog bool     `toml:"attach_log"`
}

// Publish contains optional bucket publishing settings.
type Publish struct {
	Enabled   bool   `toml:"enabled"`
	BucketURL string `toml:"bucket_url"`
	Prefix    string `toml:"prefix"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for wavbatch.
//
// Configuration sections by subsystem:
//   - Paths: stage directories and ledger database
//   - Remote: SFTP snapshot source
//   - Conversion: ffmpeg encoding and chunk window
//   - Lifecycle: settle delay and retention sweep
//   - Mail: daily status report delivery
//   - Publish: optional bucket upload of completed artifacts
//   - Logging: log format, level, and retention
type Config struct {
	Paths      Paths      `toml:"paths"`
	Remote     Remote     `toml:"remote"`
	Conversion Conversion `toml:"conversion"`
	Lifecycle  Lifecycle  `toml:"lifecycle"`
	Mail       Mail       `toml:"mail"`
	Publish    Publish    `toml:"publish"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/wavbatch/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("wavbatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// StageDirs lists every directory the pipeline writes into.
func (c *Config) StageDirs() []string {
	return []string{
		c.Paths.InputDir,
		c.Paths.ProcessingDir,
		c.Paths.CompletedDir,
		c.Paths.FailedDir,
		c.Paths.DeletedDir,
		c.Paths.ReportDir,
		c.Paths.LogDir,
	}
}

// EnsureDirectories creates every stage directory and the ledger's parent.
// Existing directories are left untouched.
func (c *Config) EnsureDirectories() error {
	dirs := append(c.StageDirs(), filepath.Dir(c.Paths.LedgerPath))
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the encoder executable.
func (c *Config) FFmpegBinary() string {
	if strings.TrimSpace(c.Conversion.FFmpegBinary) == "" {
		return defaultFFmpegBinary
	}
	return c.Conversion.FFmpegBinary
}

// ChunkWindow returns the slicing window as a duration.
func (c *Config) ChunkWindow() time.Duration {
	return time.Duration(c.Conversion.ChunkSeconds) * time.Second
}

// SettleDelay returns the pause between processing and promotion.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Lifecycle.SettleDelayMillis) * time.Millisecond
}

// Retention returns how long completed batches stay before the sweep.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Lifecycle.RetentionHours) * time.Hour
}

// RemoteTimeout returns the SSH dial timeout.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

// ReportPath returns the spreadsheet location.
func (c *Config) ReportPath() string {
	return filepath.Join(c.Paths.ReportDir, reportFileName)
}

// LockPath returns the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "wavbatch.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
