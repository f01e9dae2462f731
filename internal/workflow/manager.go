package workflow

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"tamperwatch/internal/camera"
	"tamperwatch/internal/config"
	"tamperwatch/internal/embedding"
	"tamperwatch/internal/evidence"
	"tamperwatch/internal/frames"
	"tamperwatch/internal/history"
	"tamperwatch/internal/logging"
	"tamperwatch/internal/notifications"
	"tamperwatch/internal/tamper"
)

// Observer receives every evaluation the manager records. The history store
// and the daemon's live feed implement it.
type Observer interface {
	Observe(ctx context.Context, ev history.Evaluation) error
}

// Manager coordinates polling passes across cameras.
type Manager struct {
	cfg          *config.Config
	logger       *slog.Logger
	pollInterval time.Duration

	watchDirs []string
	picker    *camera.Picker
	sessions  *camera.Sessions
	decode    camera.DecodeFunc
	notifier  notifications.Service
	archiver  *evidence.Archiver
	observers []Observer
	now       func() time.Time

	// passMu serializes passes; detectors are not safe for concurrent use.
	passMu sync.Mutex

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	passes    uint64
	lastErr   error
	lastPass  *PassSummary
	detectors []camera.DetectorState
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	notifier  notifications.Service
	archiver  *evidence.Archiver
	decode    camera.DecodeFunc
	createdAt func(string, os.FileInfo) time.Time
	observers []Observer
	now       func() time.Time
}

// WithNotifier replaces the webhook service built from config.
func WithNotifier(svc notifications.Service) ManagerOption {
	return func(o *managerOptions) { o.notifier = svc }
}

// WithArchiver replaces the evidence archiver built from config.
func WithArchiver(a *evidence.Archiver) ManagerOption {
	return func(o *managerOptions) { o.archiver = a }
}

// WithDecoder replaces frames.Decode.
func WithDecoder(decode camera.DecodeFunc) ManagerOption {
	return func(o *managerOptions) { o.decode = decode }
}

// WithCreationTime overrides how image creation times are read.
func WithCreationTime(fn func(string, os.FileInfo) time.Time) ManagerOption {
	return func(o *managerOptions) { o.createdAt = fn }
}

// WithObservers registers evaluation observers.
func WithObservers(observers ...Observer) ManagerOption {
	return func(o *managerOptions) { o.observers = append(o.observers, observers...) }
}

// WithClock overrides time.Now for pass timestamps.
func WithClock(now func() time.Time) ManagerOption {
	return func(o *managerOptions) { o.now = now }
}

// NewManager wires a manager for cfg. Every camera gets its own detector
// backed by embedder.
func NewManager(cfg *config.Config, embedder embedding.Embedder, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	options := &managerOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.notifier == nil {
		options.notifier = notifications.NewService(cfg, logger)
	}
	if options.archiver == nil {
		options.archiver = evidence.NewArchiver(cfg, logger)
	}
	if options.decode == nil {
		options.decode = frames.Decode
	}
	if options.now == nil {
		options.now = time.Now
	}

	picker := camera.NewPicker(cfg.ImageFormats)
	if options.createdAt != nil {
		picker.CreatedAt = options.createdAt
	}

	defaultThreshold := cfg.DefaultThreshold()
	stride := cfg.Detector.SampleStride
	registry := camera.NewRegistry(func(string) *tamper.Detector {
		return tamper.NewDetector(embedder,
			tamper.WithThreshold(defaultThreshold),
			tamper.WithSampleStride(stride),
		)
	})
	thresholds := camera.NewThresholds(defaultThreshold, cfg.CameraThresholds())
	sessions := camera.NewSessions(cfg.ReferenceDirs, picker, thresholds, registry, options.decode, logger)

	return &Manager{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		pollInterval: cfg.PollInterval(),
		watchDirs:    append([]string(nil), cfg.FoldersToWatch...),
		picker:       picker,
		sessions:     sessions,
		decode:       options.decode,
		notifier:     options.notifier,
		archiver:     options.archiver,
		observers:    options.observers,
		now:          options.now,
	}
}

// AddObserver registers an observer after construction. It must be called
// before Start.
func (m *Manager) AddObserver(o Observer) {
	if o == nil {
		return
	}
	m.passMu.Lock()
	m.observers = append(m.observers, o)
	m.passMu.Unlock()
}

// Notifier returns the notification service the manager uses.
func (m *Manager) Notifier() notifications.Service {
	return m.notifier
}
