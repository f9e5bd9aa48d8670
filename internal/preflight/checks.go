package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver
	"golang.org/x/sys/unix"

	"wavbatch/internal/config"
	"wavbatch/internal/deps"
	"wavbatch/internal/ledger"
)

const dialTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckLedger opens the ledger database, creating it if absent, and runs an
// integrity check.
func CheckLedger(ctx context.Context, path string) Result {
	const name = "Ledger"

	store, err := ledger.OpenPath(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()

	health, err := store.CheckHealth(ctx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if !health.IntegrityCheck {
		return Result{Name: name, Detail: fmt.Sprintf("%s (integrity check failed)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d sources)", path, health.SourceCount)}
}

// CheckSystemDeps evaluates the binaries a run executes.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for mp3 conversion and chunking",
		},
	})
}

// CheckRemote validates remote credentials and that the SSH port accepts
// connections. It does not authenticate.
func CheckRemote(ctx context.Context, cfg *config.Config) Result {
	const name = "Remote host"

	if err := cfg.ValidateRemoteCredentials(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	addr := net.JoinHostPort(cfg.Remote.Host, strconv.Itoa(cfg.Remote.Port))
	if err := probeTCP(ctx, addr); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s unreachable (%s)", addr, summarizeDialError(err))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", addr)}
}

// CheckMail validates the SMTP settings and that the server accepts
// connections.
func CheckMail(ctx context.Context, cfg *config.Config) Result {
	const name = "SMTP server"

	if strings.TrimSpace(cfg.Mail.Host) == "" {
		return Result{Name: name, Detail: "missing host"}
	}
	if len(cfg.Mail.To) == 0 {
		return Result{Name: name, Detail: "missing recipients"}
	}
	if cfg.Mail.Username != "" && cfg.Mail.Password == "" {
		return Result{Name: name, Detail: "missing password (set WAVBATCH_SMTP_PASSWORD)"}
	}
	addr := net.JoinHostPort(cfg.Mail.Host, strconv.Itoa(cfg.Mail.Port))
	if err := probeTCP(ctx, addr); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s unreachable (%s)", addr, summarizeDialError(err))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", addr)}
}

// CheckBucket opens the publish bucket and verifies it is accessible.
func CheckBucket(ctx context.Context, bucketURL string) Result {
	const name = "Publish bucket"

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	bucket, err := blob.OpenBucket(checkCtx, bucketURL)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer bucket.Close()

	ok, err := bucket.IsAccessible(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if !ok {
		return Result{Name: name, Detail: fmt.Sprintf("%s not accessible", bucketURL)}
	}
	return Result{Name: name, Passed: true, Detail: bucketURL}
}

func probeTCP(ctx context.Context, addr string) error {
	checkCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	var dialer net.Dialer
	conn, err := dialer.DialContext(checkCtx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

func summarizeDialError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	return err.Error()
}
