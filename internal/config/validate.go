package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateConversion(); err != nil {
		return err
	}
	if err := c.validateLifecycle(); err != nil {
		return err
	}
	if err := c.validateMail(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRemote() error {
	if c.Remote.Port < 1 || c.Remote.Port > 65535 {
		return fmt.Errorf("remote.port must be between 1 and 65535, got %d", c.Remote.Port)
	}
	if strings.TrimSpace(c.Remote.Extension) == "" || c.Remote.Extension == "." {
		return errors.New("remote.extension must be set")
	}
	return nil
}

// ValidateRemoteCredentials reports whether the remote section can open a
// session. It is checked at run time rather than load time so report-only
// commands work without credentials.
func (c *Config) ValidateRemoteCredentials() error {
	if strings.TrimSpace(c.Remote.Host) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/wavbatch/config.toml"
		}
		return fmt.Errorf("remote.host is required. Set WAVBATCH_SSH_HOST or edit %s (create with 'wavbatch config init')", defaultPath)
	}
	if strings.TrimSpace(c.Remote.Username) == "" {
		return errors.New("remote.username is required (or set WAVBATCH_SSH_USERNAME)")
	}
	if c.Remote.Password == "" && c.Remote.KeyPath == "" {
		return errors.New("remote.password or remote.key_path must be set")
	}
	if !c.Remote.InsecureHostKey && c.Remote.KnownHostsPath == "" {
		return errors.New("remote.known_hosts_path must be set unless remote.insecure_host_key is true")
	}
	return nil
}

func (c *Config) validateConversion() error {
	if c.Conversion.ChunkSeconds <= 0 {
		return errors.New("conversion.chunk_seconds must be positive")
	}
	if c.Conversion.Format == "" {
		return errors.New("conversion.format must be set")
	}
	return nil
}

func (c *Config) validateLifecycle() error {
	if c.Lifecycle.SettleDelayMillis < 0 {
		return errors.New("lifecycle.settle_delay_ms must be >= 0")
	}
	if c.Lifecycle.RetentionHours <= 0 {
		return errors.New("lifecycle.retention_hours must be positive")
	}
	return nil
}

func (c *Config) validateMail() error {
	if !c.Mail.Enabled {
		return nil
	}
	if c.Mail.Host == "" {
		return errors.New("mail.host must be set when mail.enabled is true")
	}
	if c.Mail.Port < 1 || c.Mail.Port > 65535 {
		return fmt.Errorf("mail.port must be between 1 and 65535, got %d", c.Mail.Port)
	}
	if c.Mail.From == "" {
		return errors.New("mail.from must be set when mail.enabled is true")
	}
	if len(c.Mail.To) == 0 {
		return errors.New("mail.to must include at least one recipient when mail.enabled is true (or set WAVBATCH_MAIL_TO)")
	}
	return nil
}

func (c *Config) validatePublish() error {
	if c.Publish.Enabled && c.Publish.BucketURL == "" {
		return errors.New("publish.bucket_url must be set when publish.enabled is true")
	}
	return nil
}
