package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/examprep/internal/logging"
	"github.com/therealutkarshpriyadarshi/examprep/internal/metrics"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

// Retry delays: 1min, 5min, 15min, 1hr, 4hr, 12hr
var retryDelays = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	1 * time.Hour,
	4 * time.Hour,
	12 * time.Hour,
}

// maxResponseBody caps how much of a subscriber response is stored
const maxResponseBody = 4096

// Service handles webhook delivery and retry logic
type Service struct {
	client *http.Client
	repo   Repository
	logger *logging.Logger
	now    func() time.Time
	wg     sync.WaitGroup
}

// Repository defines the interface for webhook persistence
type Repository interface {
	GetWebhooksByEvent(ctx context.Context, event string) ([]*models.Webhook, error)
	CreateDelivery(ctx context.Context, delivery *models.WebhookDelivery) error
	UpdateDelivery(ctx context.Context, delivery *models.WebhookDelivery) error
	GetPendingDeliveries(ctx context.Context, limit int) ([]*models.WebhookDelivery, error)
}

// NewService creates a new webhook service
func NewService(repo Repository, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// HandleEvent fans a queued domain event out to its subscribers
func (s *Service) HandleEvent(ctx context.Context, ev *models.WebhookEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return s.dispatch(ctx, ev.Event, payload)
}

// Notify sends a webhook notification for an event
func (s *Service) Notify(ctx context.Context, event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	return s.HandleEvent(ctx, &models.WebhookEvent{
		Event:     event,
		Timestamp: s.now().UTC(),
		Data:      raw,
	})
}

func (s *Service) dispatch(ctx context.Context, event string, payload []byte) error {
	webhooks, err := s.repo.GetWebhooksByEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to get webhooks: %w", err)
	}

	for _, webhook := range webhooks {
		if !webhook.IsActive || !webhook.Events.Subscribed(event) {
			continue
		}

		delivery := &models.WebhookDelivery{
			ID:         uuid.New().String(),
			WebhookID:  webhook.ID,
			Event:      event,
			Payload:    string(payload),
			Status:     models.WebhookDeliveryStatusPending,
			RetryCount: 0,
			CreatedAt:  s.now(),
		}

		if err := s.repo.CreateDelivery(ctx, delivery); err != nil {
			s.logger.WithError(err).WithField("webhook_id", webhook.ID).Error("Failed to create delivery")
			continue
		}

		// Attempt immediate delivery in background
		s.goDeliver(webhook, delivery, payload)
	}

	return nil
}

func (s *Service) goDeliver(webhook *models.Webhook, delivery *models.WebhookDelivery, payload []byte) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.deliver(context.Background(), webhook, delivery, payload)
	}()
}

// Wait blocks until in-flight deliveries finish
func (s *Service) Wait() {
	s.wg.Wait()
}

// deliver attempts to deliver a webhook
func (s *Service) deliver(ctx context.Context, webhook *models.Webhook, delivery *models.WebhookDelivery, payload []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(payload))
	if err != nil {
		s.markDeliveryFailed(ctx, delivery, 0, fmt.Sprintf("Failed to create request: %v", err))
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ExamPrep-Webhook/1.0")
	req.Header.Set("X-Webhook-Event", delivery.Event)
	req.Header.Set("X-Webhook-Delivery", delivery.ID)

	if webhook.Secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(payload, webhook.Secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.markDeliveryFailed(ctx, delivery, 0, fmt.Sprintf("Failed to send request: %v", err))
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		delivery.Status = models.WebhookDeliveryStatusDelivered
		delivery.StatusCode = resp.StatusCode
		delivery.ResponseBody = string(body)
		now := s.now()
		delivery.CompletedAt = &now
		delivery.NextRetryAt = nil

		metrics.RecordWebhookDelivery(delivery.Event, models.WebhookDeliveryStatusDelivered)
		if err := s.repo.UpdateDelivery(ctx, delivery); err != nil {
			s.logger.WithError(err).WithField("delivery_id", delivery.ID).Error("Failed to update delivery")
		}
		return
	}

	s.markDeliveryFailed(ctx, delivery, resp.StatusCode, string(body))
}

// markDeliveryFailed marks a delivery as failed and schedules retry
func (s *Service) markDeliveryFailed(ctx context.Context, delivery *models.WebhookDelivery, statusCode int, responseBody string) {
	delivery.StatusCode = statusCode
	delivery.ResponseBody = responseBody
	delivery.RetryCount++

	if delivery.RetryCount <= len(retryDelays) {
		nextRetry := s.now().Add(retryDelays[delivery.RetryCount-1])
		delivery.NextRetryAt = &nextRetry
		delivery.Status = models.WebhookDeliveryStatusPending
		metrics.RecordWebhookDelivery(delivery.Event, "retry")
	} else {
		delivery.Status = models.WebhookDeliveryStatusFailed
		now := s.now()
		delivery.CompletedAt = &now
		delivery.NextRetryAt = nil
		metrics.RecordWebhookDelivery(delivery.Event, models.WebhookDeliveryStatusFailed)
	}

	s.logger.WithFields(map[string]interface{}{
		"delivery_id": delivery.ID,
		"event":       delivery.Event,
		"status_code": statusCode,
		"retry_count": delivery.RetryCount,
	}).Warn("Webhook delivery failed")

	if err := s.repo.UpdateDelivery(ctx, delivery); err != nil {
		s.logger.WithError(err).WithField("delivery_id", delivery.ID).Error("Failed to update delivery")
	}
}

// Sign returns the HMAC-SHA256 signature header value for a payload
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether signature matches payload under secret
func Verify(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}

// RetryWorker processes pending webhook deliveries until ctx is done
func (s *Service) RetryWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Wait()
			return
		case <-ticker.C:
			s.RetryPending(ctx)
		}
	}
}

// RetryPending retries pending deliveries whose backoff has elapsed
func (s *Service) RetryPending(ctx context.Context) {
	deliveries, err := s.repo.GetPendingDeliveries(ctx, 100)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get pending deliveries")
		return
	}

	subscribers := make(map[string][]*models.Webhook)
	now := s.now()

	for _, delivery := range deliveries {
		if delivery.NextRetryAt != nil && now.Before(*delivery.NextRetryAt) {
			continue
		}

		webhooks, ok := subscribers[delivery.Event]
		if !ok {
			webhooks, err = s.repo.GetWebhooksByEvent(ctx, delivery.Event)
			if err != nil {
				s.logger.WithError(err).WithField("delivery_id", delivery.ID).Error("Failed to get webhook for delivery")
				continue
			}
			subscribers[delivery.Event] = webhooks
		}

		var webhook *models.Webhook
		for _, wh := range webhooks {
			if wh.ID == delivery.WebhookID {
				webhook = wh
				break
			}
		}

		if webhook == nil || !webhook.IsActive {
			continue
		}

		s.goDeliver(webhook, delivery, []byte(delivery.Payload))
	}
}
