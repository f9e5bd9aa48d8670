package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const base64Prefix = "base64:"

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeRemote(); err != nil {
		return err
	}
	c.normalizeConversion()
	if err := c.normalizeMail(); err != nil {
		return err
	}
	c.normalizePublish()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.Root) == "" {
		c.Paths.Root = defaultRoot
	}
	if c.Paths.Root, err = expandPath(c.Paths.Root); err != nil {
		return fmt.Errorf("paths.root: %w", err)
	}
	stages := []struct {
		key   string
		value *string
		name  string
	}{
		{"paths.input_dir", &c.Paths.InputDir, "input"},
		{"paths.processing_dir", &c.Paths.ProcessingDir, "processing"},
		{"paths.completed_dir", &c.Paths.CompletedDir, "completed"},
		{"paths.failed_dir", &c.Paths.FailedDir, "failed"},
		{"paths.deleted_dir", &c.Paths.DeletedDir, "deleted"},
		{"paths.report_dir", &c.Paths.ReportDir, "reports"},
		{"paths.log_dir", &c.Paths.LogDir, "logs"},
		{"paths.ledger_path", &c.Paths.LedgerPath, defaultLedgerName},
	}
	for _, stage := range stages {
		if strings.TrimSpace(*stage.value) == "" {
			*stage.value = filepath.Join(c.Paths.Root, stage.name)
		}
		if *stage.value, err = expandPath(*stage.value); err != nil {
			return fmt.Errorf("%s: %w", stage.key, err)
		}
	}
	return nil
}

func (c *Config) normalizeRemote() error {
	var err error
	if c.Remote.Host, err = secretValue(c.Remote.Host, "WAVBATCH_SSH_HOST"); err != nil {
		return fmt.Errorf("remote.host: %w", err)
	}
	if c.Remote.Username, err = secretValue(c.Remote.Username, "WAVBATCH_SSH_USERNAME"); err != nil {
		return fmt.Errorf("remote.username: %w", err)
	}
	if c.Remote.Password, err = secretValue(c.Remote.Password, "WAVBATCH_SSH_PASSWORD"); err != nil {
		return fmt.Errorf("remote.password: %w", err)
	}
	if value, ok := os.LookupEnv("WAVBATCH_SSH_PORT"); ok && strings.TrimSpace(value) != "" && c.Remote.Port == defaultRemotePort {
		decoded, err := decodeSecret(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("WAVBATCH_SSH_PORT: %w", err)
		}
		port, err := strconv.Atoi(decoded)
		if err != nil {
			return fmt.Errorf("WAVBATCH_SSH_PORT: %w", err)
		}
		c.Remote.Port = port
	}
	if c.Remote.KeyPath, err = expandPath(strings.TrimSpace(c.Remote.KeyPath)); err != nil {
		return fmt.Errorf("remote.key_path: %w", err)
	}
	if strings.TrimSpace(c.Remote.KnownHostsPath) == "" && !c.Remote.InsecureHostKey {
		c.Remote.KnownHostsPath = "~/.ssh/known_hosts"
	}
	if c.Remote.KnownHostsPath, err = expandPath(strings.TrimSpace(c.Remote.KnownHostsPath)); err != nil {
		return fmt.Errorf("remote.known_hosts_path: %w", err)
	}
	c.Remote.RootDir = strings.TrimSpace(c.Remote.RootDir)
	if c.Remote.RootDir == "" {
		c.Remote.RootDir = defaultRemoteRoot
	}
	c.Remote.Extension = strings.ToLower(strings.TrimSpace(c.Remote.Extension))
	if c.Remote.Extension != "" && !strings.HasPrefix(c.Remote.Extension, ".") {
		c.Remote.Extension = "." + c.Remote.Extension
	}
	if c.Remote.TimeoutSeconds <= 0 {
		c.Remote.TimeoutSeconds = defaultRemoteTimeout
	}
	return nil
}

func (c *Config) normalizeConversion() {
	c.Conversion.Format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Conversion.Format), "."))
	if c.Conversion.Format == "" {
		c.Conversion.Format = defaultFormat
	}
	c.Conversion.FFmpegBinary = strings.TrimSpace(c.Conversion.FFmpegBinary)
	if c.Conversion.FFmpegBinary == "" {
		c.Conversion.FFmpegBinary = defaultFFmpegBinary
	}
	c.Conversion.Bitrate = strings.TrimSpace(c.Conversion.Bitrate)
	if c.Conversion.Bitrate == "" {
		c.Conversion.Bitrate = defaultBitrate
	}
}

func (c *Config) normalizeMail() error {
	var err error
	c.Mail.Host = strings.TrimSpace(c.Mail.Host)
	c.Mail.From = strings.TrimSpace(c.Mail.From)
	if c.Mail.Username, err = secretValue(c.Mail.Username, "WAVBATCH_SMTP_USERNAME"); err != nil {
		return fmt.Errorf("mail.username: %w", err)
	}
	if c.Mail.Password, err = secretValue(c.Mail.Password, "WAVBATCH_SMTP_PASSWORD"); err != nil {
		return fmt.Errorf("mail.password: %w", err)
	}
	if c.Mail.From == "" {
		c.Mail.From = c.Mail.Username
	}
	if len(c.Mail.To) == 0 {
		if value, ok := os.LookupEnv("WAVBATCH_MAIL_TO"); ok {
			c.Mail.To = splitList(value)
		}
	}
	if len(c.Mail.Cc) == 0 {
		if value, ok := os.LookupEnv("WAVBATCH_MAIL_CC"); ok {
			c.Mail.Cc = splitList(value)
		}
	}
	c.Mail.To = cleanList(c.Mail.To)
	c.Mail.Cc = cleanList(c.Mail.Cc)
	if c.Mail.Port == 0 {
		c.Mail.Port = defaultMailPort
	}
	c.Mail.Subject = strings.TrimSpace(c.Mail.Subject)
	if c.Mail.Subject == "" {
		c.Mail.Subject = defaultMailSubject
	}
	return nil
}

func (c *Config) normalizePublish() {
	c.Publish.BucketURL = strings.TrimSpace(c.Publish.BucketURL)
	c.Publish.Prefix = strings.Trim(strings.TrimSpace(c.Publish.Prefix), "/")
	if c.Publish.Prefix != "" {
		c.Publish.Prefix += "/"
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// secretValue prefers the configured value and falls back to the named
// environment variable. Either source may carry a base64: prefix.
func secretValue(configured, envKey string) (string, error) {
	value := strings.TrimSpace(configured)
	if value == "" {
		if env, ok := os.LookupEnv(envKey); ok {
			value = strings.TrimSpace(env)
		}
	}
	return decodeSecret(value)
}

func decodeSecret(value string) (string, error) {
	if !strings.HasPrefix(value, base64Prefix) {
		return value, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, base64Prefix))
	if err != nil {
		return "", fmt.Errorf("decode base64 value: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func splitList(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';'
	})
}

func cleanList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
