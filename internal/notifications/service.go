package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tamperwatch/internal/config"
	"tamperwatch/internal/logging"
)

const userAgent = "tamperwatch/0.1.0"

// TestCameraID is the camera_id sent by TestNotification.
const TestCameraID = "tamperwatch-test"

// maxBodyExcerpt bounds how much of a webhook response is logged.
const maxBodyExcerpt = 2048

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyTampering(ctx context.Context, cameraID string) error
	TestNotification(ctx context.Context) error
}

// Payload is the webhook body.
type Payload struct {
	CameraID  string `json:"camera_id"`
	Tampering bool   `json:"tampering"`
}

// NewService builds a webhook-backed service when request_link is set and a
// no-op implementation otherwise.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	endpoint := strings.TrimSpace(cfg.RequestLink)
	if endpoint == "" {
		return noopService{}
	}

	timeout := cfg.NotificationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	svc := &webhookService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logging.NewComponentLogger(logger, "notifications"),
	}
	if limit := cfg.Notifications.RateLimit; limit > 0 {
		burst := cfg.Notifications.RateBurst
		if burst < 1 {
			burst = 1
		}
		svc.limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}
	return svc
}

type webhookService struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

func (w *webhookService) NotifyTampering(ctx context.Context, cameraID string) error {
	return w.send(ctx, Payload{CameraID: cameraID, Tampering: true})
}

func (w *webhookService) TestNotification(ctx context.Context) error {
	return w.send(ctx, Payload{CameraID: TestCameraID, Tampering: false})
}

func (w *webhookService) send(ctx context.Context, data Payload) error {
	if w == nil || w.client == nil {
		return nil
	}
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for notification slot: %w", err)
		}
	}

	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyExcerpt))
	_, _ = io.Copy(io.Discard, resp.Body)
	text := strings.TrimSpace(string(excerpt))

	if w.logger != nil {
		w.logger.Info("notification delivered",
			logging.String(logging.FieldEventType, "notification_response"),
			logging.String(logging.FieldCameraID, data.CameraID),
			logging.Bool("tampering", data.Tampering),
			logging.Int("status", resp.StatusCode),
			logging.String("response", text),
		)
	}

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, text)
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyTampering(context.Context, string) error { return nil }
func (noopService) TestNotification(context.Context) error        { return nil }

// IsNoop reports whether svc discards notifications.
func IsNoop(svc Service) bool {
	if svc == nil {
		return true
	}
	_, ok := svc.(noopService)
	return ok
}
