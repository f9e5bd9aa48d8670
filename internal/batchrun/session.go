package batchrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"wavbatch/internal/audio"
	"wavbatch/internal/config"
	"wavbatch/internal/fetcher"
	"wavbatch/internal/ledger"
	"wavbatch/internal/logging"
	"wavbatch/internal/notifications"
	"wavbatch/internal/services"
	"wavbatch/internal/services/sftpremote"
)

// ErrLocked is returned when another invocation holds the run lock.
var ErrLocked = errors.New("another wavbatch run is already in progress")

// DialFunc opens the upstream recording host.
type DialFunc func(ctx context.Context, cfg *config.Config) (fetcher.Remote, error)

// Options carries per-invocation overrides. Zero values select production
// behaviour.
type Options struct {
	// Date selects the batch to fetch. Zero means today.
	Date     time.Time
	SkipMail bool
	// LogLevel overrides logging.level from the config when non-empty.
	LogLevel string
	Console  io.Writer

	Dial     DialFunc
	Encoder  audio.Encoder
	Notifier notifications.Service
	Now      func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) runDate() time.Time {
	if !o.Date.IsZero() {
		return o.Date
	}
	return o.now()
}

func defaultDial(ctx context.Context, cfg *config.Config) (fetcher.Remote, error) {
	client, err := sftpremote.Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// session holds the resources shared by every entry point.
type session struct {
	cfg     *config.Config
	opts    Options
	runID   string
	logPath string
	logger  *slog.Logger
	store   *ledger.Store

	lock     *flock.Flock
	closeLog func() error
}

func openSession(ctx context.Context, cfg *config.Config, opts Options, kind string) (context.Context, *session, error) {
	if cfg == nil {
		return ctx, nil, services.Wrap(services.ErrConfiguration, kind, "open session", "configuration is required", nil)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return ctx, nil, services.Wrap(services.ErrConfiguration, kind, "ensure directories", "Failed to create stage directories", err)
	}

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return ctx, nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return ctx, nil, ErrLocked
	}

	s := &session{cfg: cfg, opts: opts, lock: lock, runID: uuid.NewString()}
	stamp := opts.now().UTC().Format("20060102T150405Z")
	s.logPath = logging.RunLogPath(cfg.Paths.LogDir, stamp+"-"+kind)

	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, closeLog, err := logging.New(logging.Options{
		Level:    level,
		Format:   cfg.Logging.Format,
		Console:  opts.Console,
		FilePath: s.logPath,
	})
	if err != nil {
		_ = lock.Unlock()
		return ctx, nil, fmt.Errorf("init logger: %w", err)
	}
	s.closeLog = closeLog

	ctx = services.WithRunID(ctx, s.runID)
	s.logger = logger.With(
		logging.String(logging.FieldRunID, s.runID),
		logging.String("command", kind),
	)

	if removed := logging.CleanupOldLogs(s.logger, cfg.Logging.RetentionDays, logging.RunLogTarget(cfg.Paths.LogDir, s.logPath)); removed > 0 {
		s.logger.Info("pruned old run logs",
			logging.String(logging.FieldEventType, "log_retention"),
			logging.Int("removed", removed),
		)
	}

	store, err := ledger.Open(cfg)
	if err != nil {
		s.close()
		return ctx, nil, services.Wrap(services.ErrConfiguration, kind, "open ledger", "Failed to open ledger database", err)
	}
	s.store = store

	s.logger.Info("wavbatch session started",
		logging.String(logging.FieldEventType, "session_start"),
		logging.String("ledger_path", store.Path()),
		logging.String("log_path", s.logPath),
	)
	s.logDependencySnapshot()
	return ctx, s, nil
}

func (s *session) logDependencySnapshot() {
	binary := s.cfg.FFmpegBinary()
	resolved, err := exec.LookPath(binary)
	if err != nil {
		logging.WarnWithContext(s.logger, "ffmpeg not found; conversion will defer every recording",
			"dependency_snapshot",
			logging.String("dependency", binary),
			logging.String(logging.FieldErrorHint, "install ffmpeg or set conversion.ffmpeg_binary"),
		)
		return
	}
	s.logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("ffmpeg", resolved),
	)
}

func (s *session) notifier() notifications.Service {
	if s.opts.Notifier != nil {
		return s.opts.Notifier
	}
	return notifications.NewService(s.cfg)
}

// close releases the ledger, log file, and lock. Errors are logged; the
// lock is always released.
func (s *session) close() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil && s.logger != nil {
			s.logger.Warn("ledger close failed", logging.Error(err))
		}
		s.store = nil
	}
	if s.closeLog != nil {
		_ = s.closeLog()
		s.closeLog = nil
	}
	if s.lock != nil {
		_ = s.lock.Unlock()
		s.lock = nil
	}
}
