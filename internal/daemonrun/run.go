package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"tamperwatch/internal/config"
	"tamperwatch/internal/daemon"
	"tamperwatch/internal/embedding"
	"tamperwatch/internal/evidence"
	"tamperwatch/internal/history"
	"tamperwatch/internal/logging"
	"tamperwatch/internal/preflight"
	"tamperwatch/internal/workflow"
)

const currentLogName = "tamperwatch-daemon.log"

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the tamperwatch daemon and blocks until SIGINT/SIGTERM or
// cmdCtx is cancelled.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("tamperwatch-%s.log", runID))
	outputs := []string{"stdout", logPath}
	if cfg.LoggerPath != "" {
		outputs = append(outputs, cfg.LoggerPath)
	}
	logger, err := logging.New(logging.Options{
		Level:            levelOrDefault(opts.LogLevel, cfg.Logging.Level),
		Format:           cfg.Logging.Format,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String(logging.FieldSessionID, uuid.NewString()))

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", currentLogName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{
			Dir:     cfg.Paths.LogDir,
			Pattern: "tamperwatch-*.log",
			Exclude: []string{logPath, filepath.Join(cfg.Paths.LogDir, currentLogName)},
		},
	)
	pidPath := filepath.Join(cfg.Paths.StateDir, "tamperwatch.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := openHistory(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("open history store", logging.Error(err))
		return err
	}

	mgr, err := newManager(cfg, store, logger)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return err
	}
	purgeEvidence(signalCtx, cfg, logger)
	logPreflight(signalCtx, cfg, logger)

	d, err := daemon.New(cfg, store, logger, mgr)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stop the other instance or check the state directory"),
			logging.String(logging.FieldImpact, "no cameras are being watched"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("tamperwatch daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"),
	)
	return nil
}

// RunOnce performs a single pass over every camera and returns its summary.
// It holds the daemon lock for the duration of the pass, so it refuses to run
// while a daemon is draining the same folders.
func RunOnce(cmdCtx context.Context, cfg *config.Config, opts Options) (workflow.PassSummary, error) {
	if cfg == nil {
		return workflow.PassSummary{}, fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return workflow.PassSummary{}, err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logCfg := *cfg
	logCfg.Logging.Level = levelOrDefault(opts.LogLevel, cfg.Logging.Level)
	logger, err := logging.NewFromConfig(&logCfg)
	if err != nil {
		return workflow.PassSummary{}, fmt.Errorf("init logger: %w", err)
	}

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return workflow.PassSummary{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return workflow.PassSummary{}, errors.New("a tamperwatch daemon is running; it already watches these folders")
	}
	defer lock.Unlock()

	store, err := openHistory(signalCtx, cfg, logger)
	if err != nil {
		return workflow.PassSummary{}, err
	}
	if store != nil {
		defer store.Close()
	}

	mgr, err := newManager(cfg, store, logger)
	if err != nil {
		return workflow.PassSummary{}, err
	}
	return mgr.RunPass(signalCtx), nil
}

func newManager(cfg *config.Config, store *history.Store, logger *slog.Logger) (*workflow.Manager, error) {
	embedder, err := embedding.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	var opts []workflow.ManagerOption
	if store != nil {
		opts = append(opts, workflow.WithObservers(store))
	}
	return workflow.NewManager(cfg, embedder, logger, opts...), nil
}

// openHistory returns nil when history is disabled. Rows older than
// history.retention_days are pruned on open.
func openHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	store, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if cfg.History.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.History.RetentionDays)
		removed, err := store.Prune(ctx, cutoff)
		if err != nil {
			logging.WarnWithContext(logger, "history prune failed", "history_prune_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "old evaluations kept until next start"),
			)
		} else if removed > 0 {
			logger.Info("history pruned",
				logging.String(logging.FieldEventType, "history_pruned"),
				logging.Int64("removed", removed),
			)
		}
	}
	return store, nil
}

// purgeEvidence applies catch_params retention at startup, so evidence from
// a camera that stopped uploading does not linger until its next flag.
func purgeEvidence(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	archiver := evidence.NewArchiver(cfg, logger)
	if !archiver.Enabled() {
		return
	}
	for _, dir := range cfg.FoldersToWatch {
		archiver.PurgeExpired(ctx, archiver.Dir(dir))
	}
}

func levelOrDefault(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, currentLogName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// logPreflight reports readiness problems at startup. Failures are not
// fatal: a camera without a key frame is skipped each pass until one appears.
func logPreflight(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	failed := preflight.Failed(preflight.RunAll(ctx, cfg))
	for _, result := range failed {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run tamperwatch check for the full report"),
		)
	}
	if len(failed) == 0 {
		logger.Info("preflight checks passed", logging.String(logging.FieldEventType, "preflight_ok"))
	}
}
