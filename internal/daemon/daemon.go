package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"tamperwatch/internal/config"
	"tamperwatch/internal/history"
	"tamperwatch/internal/logging"
	"tamperwatch/internal/notifications"
	"tamperwatch/internal/workflow"
)

// Daemon coordinates the polling scheduler and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *history.Store
	workflow *workflow.Manager
	feed     *Feed
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool                   `json:"running"`
	PID          int                    `json:"pid"`
	Workflow     workflow.StatusSummary `json:"workflow"`
	HistoryPath  string                 `json:"history_path,omitempty"`
	LockFilePath string                 `json:"lock_file_path"`
	FeedClients  int                    `json:"feed_clients"`
}

// New constructs a daemon with initialized dependencies. store may be nil
// when history is disabled.
func New(cfg *config.Config, store *history.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || wf == nil {
		return nil, errors.New("daemon requires config and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.feed = NewFeed(logger)
	wf.AddObserver(d.feed)
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, launches the scheduler, and opens the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tamperwatch daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		d.release()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.workflow.Stop()
		d.release()
		return err
	}

	d.running.Store(true)
	d.logger.Info("tamperwatch daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Int("cameras", len(d.cfg.FoldersToWatch)),
	)
	return nil
}

func (d *Daemon) release() {
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Stop stops background processing and releases the daemon lock. A pass in
// progress finishes before Stop returns.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	d.feed.CloseAll()
	if d.cancel != nil {
		d.cancel()
	}
	d.workflow.Stop()
	d.release()
	d.running.Store(false)
	d.logger.Info("tamperwatch daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
	)
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Feed returns the live evaluation feed.
func (d *Daemon) Feed() *Feed {
	return d.feed
}

// History returns the evaluation store, or nil when history is disabled.
func (d *Daemon) History() *history.Store {
	return d.store
}

// Addr returns the API listen address once started, or "" when the API is
// disabled or not running.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// TestNotification sends a test payload to the configured webhook.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	notifier := d.workflow.Notifier()
	if notifications.IsNoop(notifier) {
		return false, "request_link not configured", nil
	}
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(),
		LockFilePath: d.lockPath,
		FeedClients:  d.feed.Clients(),
	}
	if d.store != nil {
		status.HistoryPath = d.store.Path()
	}
	return status
}
