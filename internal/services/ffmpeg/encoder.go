package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"wavbatch/internal/audio"
	"wavbatch/internal/services"
)

var commandContext = exec.CommandContext

// Option configures the CLI encoder.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithBitrate sets the target audio bitrate (e.g. "192k").
func WithBitrate(bitrate string) Option {
	return func(c *CLI) {
		if bitrate != "" {
			c.bitrate = bitrate
		}
	}
}

// CLI encodes audio by shelling out to ffmpeg.
type CLI struct {
	binary  string
	bitrate string
}

// NewCLI constructs an encoder using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg", bitrate: "192k"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Encode writes src, or the selected span of it, to dst as MP3. A partially
// written dst is removed on failure.
func (c *CLI) Encode(ctx context.Context, src, dst string, span audio.Span) error {
	if strings.TrimSpace(src) == "" {
		return errors.New("input path required")
	}
	if strings.TrimSpace(dst) == "" {
		return errors.New("output path required")
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "encode", "mkdir", filepath.Dir(dst), err)
	}

	cmd := commandContext(ctx, c.binary, c.args(src, dst, span)...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(dst)
		detail := strings.TrimSpace(string(output))
		if len(detail) > 512 {
			detail = detail[len(detail)-512:]
		}
		return services.Wrap(services.ErrExternalTool, "encode", c.binary, detail, err)
	}
	if _, err := os.Stat(dst); err != nil {
		return services.Wrap(services.ErrExternalTool, "encode", c.binary, "no output produced", err)
	}
	return nil
}

func (c *CLI) args(src, dst string, span audio.Span) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	if !span.IsWhole() {
		args = append(args, "-ss", seconds(span.Start))
	}
	args = append(args, "-i", src)
	if !span.IsWhole() && span.Length > 0 {
		args = append(args, "-t", seconds(span.Length))
	}
	return append(args, "-vn", "-codec:a", "libmp3lame", "-b:a", c.bitrate, dst)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// String describes the encoder for logs.
func (c *CLI) String() string {
	return fmt.Sprintf("%s (libmp3lame %s)", c.binary, c.bitrate)
}

var _ audio.Encoder = (*CLI)(nil)
