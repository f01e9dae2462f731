package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"

	"tamperwatch/internal/camera"
	"tamperwatch/internal/embedding"
	"tamperwatch/internal/fileutil"
	"tamperwatch/internal/frames"
	"tamperwatch/internal/history"
	"tamperwatch/internal/logging"
	"tamperwatch/internal/notifications"
	"tamperwatch/internal/tamper"
)

// RunPass visits every watch folder once. Cameras are processed in
// configuration order and isolated from each other. When ctx is cancelled
// the pass stops before the next camera; a camera already in progress always
// completes.
func (m *Manager) RunPass(ctx context.Context) PassSummary {
	m.passMu.Lock()
	defer m.passMu.Unlock()

	passID := uuid.NewString()
	ctx = logging.WithPassID(ctx, passID)
	logger := logging.WithContext(ctx, m.logger)

	summary := PassSummary{PassID: passID, StartedAt: m.now()}
	for _, watchDir := range m.watchDirs {
		if ctx.Err() != nil {
			summary.Interrupted = true
			logger.Info("pass interrupted",
				logging.String(logging.FieldEventType, "pass_interrupted"),
				logging.Int("remaining_cameras", len(m.watchDirs)-len(summary.Cameras)),
			)
			break
		}
		camCtx := logging.WithCameraID(context.WithoutCancel(ctx), camera.ID(watchDir))
		summary.Cameras = append(summary.Cameras, m.processCamera(camCtx, watchDir))
	}
	summary.FinishedAt = m.now()

	m.finishPass(summary)

	if !summary.Idle() {
		logger.Info("pass complete",
			logging.String(logging.FieldEventType, "pass_complete"),
			logging.Int("cameras", len(summary.Cameras)),
			logging.Int("evaluated", summary.Evaluated()),
			logging.Int("tampered", summary.Count(OutcomeTampered)),
			logging.Int("skipped", summary.Count(OutcomeSkipped)),
			logging.Int("failed", summary.Count(OutcomeFailed)),
			logging.Duration("duration", summary.Duration()),
		)
	} else {
		logger.Debug("pass found no images", logging.String(logging.FieldEventType, "pass_idle"))
	}
	return summary
}

// processCamera runs one camera through pick, setup, evaluate, act, remove.
func (m *Manager) processCamera(ctx context.Context, watchDir string) (result CameraResult) {
	result = CameraResult{CameraID: camera.ID(watchDir), WatchDir: watchDir}
	logger := logging.WithContext(ctx, m.logger).With(logging.String(logging.FieldWatchDir, watchDir))

	defer func() {
		if r := recover(); r != nil {
			result.Outcome = OutcomeFailed
			result.Error = fmt.Sprintf("panic: %v", r)
			logging.ErrorWithContext(logger, "camera processing panicked", "camera_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "report this crash; other cameras keep running"),
			)
			m.setLastError(errors.New(result.Error))
		}
	}()

	candidate, err := m.picker.Newest(watchDir)
	if err != nil {
		if errors.Is(err, camera.ErrNoImage) {
			result.Outcome = OutcomeIdle
			return result
		}
		result.Outcome = OutcomeSkipped
		result.Error = err.Error()
		logging.WarnWithContext(logger, "watch folder unreadable", "watch_folder_unreadable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the folder exists and is readable"),
			logging.String(logging.FieldImpact, "camera skipped this pass"),
		)
		return result
	}
	result.Image = candidate
	logger = logger.With(logging.String("image", candidate))

	session, det, err := m.sessions.Setup(ctx, watchDir)
	if err != nil {
		result.Outcome = OutcomeSkipped
		result.Error = err.Error()
		logging.WarnWithContext(logger, "camera setup failed", "camera_setup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, setupHint(err)),
			logging.String(logging.FieldImpact, "candidate left in place; camera skipped this pass"),
		)
		return result
	}

	ev := history.Evaluation{
		PassID:    passIDOf(ctx),
		CameraID:  session.CameraID,
		WatchDir:  watchDir,
		ImagePath: candidate,
		Threshold: session.Threshold,
		CreatedAt: m.now(),
	}

	img, err := m.decode(candidate)
	if err != nil {
		if errors.Is(err, frames.ErrUndecodable) || errors.Is(err, frames.ErrEmptyImage) {
			m.dropUnusable(ctx, logger, &result, &ev, err, "candidate image unreadable", "candidate_decode_failed",
				"check the camera upload; the file is not a decodable image")
			return result
		}
		result.Outcome = OutcomeFailed
		result.Error = err.Error()
		logging.WarnWithContext(logger, "candidate image could not be opened", "candidate_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check watch folder permissions"),
			logging.String(logging.FieldImpact, "candidate left in place for the next pass"),
		)
		m.setLastError(err)
		return result
	}

	decision, err := det.Evaluate(ctx, img)
	result.Decision = decision
	if err != nil {
		switch {
		case errors.Is(err, tamper.ErrNoReferenceSet):
			result.Outcome = OutcomeFailed
			result.Error = err.Error()
			ev.Error = err.Error()
			logging.ErrorWithContext(logger, "evaluation without reference frame", "evaluation_invariant",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "report this bug; setup must load a reference first"),
			)
			m.setLastError(err)
			m.observe(ctx, logger, ev)
		case unusableFrame(err):
			m.dropUnusable(ctx, logger, &result, &ev, err, "candidate image unusable", "candidate_degenerate",
				"check the camera view; blank frames cannot be compared")
		default:
			result.Outcome = OutcomeFailed
			result.Error = err.Error()
			logging.WarnWithContext(logger, "evaluation failed", "evaluation_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the embedder service"),
				logging.String(logging.FieldImpact, "candidate left in place for the next pass"),
			)
			m.setLastError(err)
		}
		return result
	}

	ev.Tampered = decision.Tampered
	ev.Inferred = decision.Inferred
	ev.Distance = decision.Distance
	ev.Threshold = decision.Threshold
	attrs := logging.DecisionAttrs(decision.Tampered, decision.Inferred, decision.Distance, decision.Threshold)

	if decision.Tampered {
		result.Outcome = OutcomeTampered
		logger.Warn("tampering detected", logging.Args(append(attrs,
			logging.String(logging.FieldEventType, "tampering_detected"),
			logging.String(logging.FieldImpact, "webhook notified and evidence archived"),
		)...)...)
		m.actOnTampering(ctx, logger, watchDir, candidate, &result)
		ev.Notified = result.Notified
		ev.EvidencePath = result.EvidencePath
	} else {
		result.Outcome = OutcomeClear
		logger.Info("frame evaluated", logging.Args(append(attrs,
			logging.String(logging.FieldEventType, "frame_evaluated"),
		)...)...)
	}

	result.Removed = m.removeCandidate(logger, candidate)
	m.observe(ctx, logger, ev)
	return result
}

// actOnTampering notifies and archives. Failures are logged and never block
// removal of the candidate.
func (m *Manager) actOnTampering(ctx context.Context, logger *slog.Logger, watchDir, candidate string, result *CameraResult) {
	if err := m.notifier.NotifyTampering(ctx, watchDir); err != nil {
		logging.WarnWithContext(logger, "tampering notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check request_link and the receiving service"),
			logging.String(logging.FieldImpact, "alert not delivered; it will not be retried"),
		)
	} else {
		result.Notified = !notifications.IsNoop(m.notifier)
	}

	if m.archiver.Enabled() {
		dest, err := m.archiver.Archive(ctx, candidate)
		if err != nil {
			logging.WarnWithContext(logger, "evidence archive failed", "evidence_archive_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check catch_params.catch_folder_name and disk space"),
				logging.String(logging.FieldImpact, "flagged image not retained"),
			)
			return
		}
		result.EvidencePath = dest
	}
}

// dropUnusable removes a candidate that can never produce a verdict so it
// does not block its folder, and records why.
func (m *Manager) dropUnusable(ctx context.Context, logger *slog.Logger, result *CameraResult, ev *history.Evaluation, err error, msg, eventType, hint string) {
	result.Outcome = OutcomeFailed
	result.Error = err.Error()
	ev.Error = err.Error()
	logging.WarnWithContext(logger, msg, eventType,
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "candidate removed without a verdict"),
	)
	result.Removed = m.removeCandidate(logger, result.Image)
	m.observe(ctx, logger, *ev)
}

func (m *Manager) removeCandidate(logger *slog.Logger, path string) bool {
	if err := fileutil.RemoveIfExists(path); err != nil {
		logging.WarnWithContext(logger, "failed to remove processed image", "candidate_remove_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check watch folder permissions"),
			logging.String(logging.FieldImpact, "image will be evaluated again next pass"),
		)
		return false
	}
	return true
}

func (m *Manager) observe(ctx context.Context, logger *slog.Logger, ev history.Evaluation) {
	for _, o := range m.observers {
		if err := o.Observe(ctx, ev); err != nil {
			logging.WarnWithContext(logger, "evaluation observer failed", "observer_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the history database"),
				logging.String(logging.FieldImpact, "evaluation missing from history"),
			)
		}
	}
}

func unusableFrame(err error) bool {
	return errors.Is(err, tamper.ErrDegenerateEmbedding) ||
		errors.Is(err, tamper.ErrDimensionMismatch) ||
		errors.Is(err, embedding.ErrInvalidImage) ||
		errors.Is(err, frames.ErrEmptyImage)
}

func setupHint(err error) string {
	switch {
	case errors.Is(err, camera.ErrNotFound):
		return "add a folder with the same name to folder_with_valid_images"
	case errors.Is(err, camera.ErrNoImage):
		return "put a key frame into the camera's reference folder"
	case errors.Is(err, tamper.ErrDegenerateEmbedding):
		return "replace the key frame; it embeds to an unusable vector"
	case errors.Is(err, tamper.ErrReferenceUnavailable):
		return "check that the key frame is a readable image"
	default:
		return "check the camera's reference folder"
	}
}

func passIDOf(ctx context.Context) string {
	id, _ := logging.PassIDFromContext(ctx)
	return id
}
