package workflow

import (
	"context"
	"errors"
	"time"

	"tamperwatch/internal/logging"
)

// Start begins scheduled passes: one pass, then a wait of poll_interval, until
// Stop is called or ctx is cancelled. Passes run detached from cancellation so
// a stop request takes effect between passes.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.watchDirs) == 0 {
		m.mu.Unlock()
		return errors.New("no watch folders configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.loop(runCtx)
	return nil
}

// Stop ends the schedule and waits for the current pass to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.cancel = nil
		m.mu.Unlock()
	}()

	m.logger.Info("polling started",
		logging.String(logging.FieldEventType, "workflow_started"),
		logging.Int("cameras", len(m.watchDirs)),
		logging.Duration("poll_interval", m.pollInterval),
	)
	defer m.logger.Info("polling stopped", logging.String(logging.FieldEventType, "workflow_stopped"))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		m.RunPass(context.WithoutCancel(ctx))

		if !m.waitForNextPass(ctx) {
			return
		}
	}
}

func (m *Manager) waitForNextPass(ctx context.Context) bool {
	if m.pollInterval <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(m.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
