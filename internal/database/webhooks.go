package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

// CreateWebhook registers a webhook endpoint
func (r *Repository) CreateWebhook(ctx context.Context, webhook *models.Webhook) (err error) {
	defer r.observe("create_webhook", time.Now(), &err)

	if webhook.ID == "" {
		webhook.ID = uuid.New().String()
	}

	query := `
		INSERT INTO webhooks (id, created_by, url, events, secret, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err = r.db.Pool.QueryRow(ctx, query,
		webhook.ID,
		webhook.CreatedBy,
		webhook.URL,
		webhook.Events,
		webhook.Secret,
		webhook.IsActive,
	).Scan(&webhook.CreatedAt, &webhook.UpdatedAt)

	if err != nil {
		return persistenceError("create webhook", err)
	}

	return nil
}

// GetWebhooksByEvent retrieves active webhooks subscribed to a specific event
func (r *Repository) GetWebhooksByEvent(ctx context.Context, event string) (webhooks []*models.Webhook, err error) {
	defer r.observe("get_webhooks_by_event", time.Now(), &err)

	// Map event to JSONB field
	eventField := ""
	switch event {
	case models.WebhookEventTicketCreated:
		eventField = "ticket_created"
	case models.WebhookEventCouponRedeemed:
		eventField = "coupon_redeemed"
	case models.WebhookEventPlanExpired:
		eventField = "plan_expired"
	default:
		return nil, fmt.Errorf("%w: unknown event %s", models.ErrValidation, event)
	}

	query := `
		SELECT id, created_by, url, events, secret, is_active, created_at, updated_at
		FROM webhooks
		WHERE is_active = true
		AND (events->>$1)::boolean = true
	`

	rows, err := r.db.Pool.Query(ctx, query, eventField)
	if err != nil {
		return nil, persistenceError("get webhooks", err)
	}
	defer rows.Close()

	for rows.Next() {
		var webhook models.Webhook
		err = rows.Scan(
			&webhook.ID,
			&webhook.CreatedBy,
			&webhook.URL,
			&webhook.Events,
			&webhook.Secret,
			&webhook.IsActive,
			&webhook.CreatedAt,
			&webhook.UpdatedAt,
		)
		if err != nil {
			return nil, persistenceError("scan webhook", err)
		}
		webhooks = append(webhooks, &webhook)
	}
	if err = rows.Err(); err != nil {
		return nil, persistenceError("get webhooks", err)
	}

	return webhooks, nil
}

// CreateDelivery creates a new webhook delivery record
func (r *Repository) CreateDelivery(ctx context.Context, delivery *models.WebhookDelivery) (err error) {
	defer r.observe("create_delivery", time.Now(), &err)

	query := `
		INSERT INTO webhook_deliveries (id, webhook_id, event, payload, status, status_code, response_body, retry_count, next_retry_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.Pool.Exec(ctx, query,
		delivery.ID,
		delivery.WebhookID,
		delivery.Event,
		delivery.Payload,
		delivery.Status,
		delivery.StatusCode,
		delivery.ResponseBody,
		delivery.RetryCount,
		delivery.NextRetryAt,
		delivery.CompletedAt,
	)

	if err != nil {
		return persistenceError("create delivery", err)
	}

	return nil
}

// UpdateDelivery updates a webhook delivery record
func (r *Repository) UpdateDelivery(ctx context.Context, delivery *models.WebhookDelivery) (err error) {
	defer r.observe("update_delivery", time.Now(), &err)

	query := `
		UPDATE webhook_deliveries
		SET status = $2,
		    status_code = $3,
		    response_body = $4,
		    retry_count = $5,
		    next_retry_at = $6,
		    completed_at = $7
		WHERE id = $1
	`

	_, err = r.db.Pool.Exec(ctx, query,
		delivery.ID,
		delivery.Status,
		delivery.StatusCode,
		delivery.ResponseBody,
		delivery.RetryCount,
		delivery.NextRetryAt,
		delivery.CompletedAt,
	)

	if err != nil {
		return persistenceError("update delivery", err)
	}

	return nil
}

// GetPendingDeliveries retrieves pending webhook deliveries that are due
func (r *Repository) GetPendingDeliveries(ctx context.Context, limit int) (deliveries []*models.WebhookDelivery, err error) {
	defer r.observe("get_pending_deliveries", time.Now(), &err)

	query := `
		SELECT id, webhook_id, event, payload, status, status_code, response_body, retry_count, next_retry_at, created_at, completed_at
		FROM webhook_deliveries
		WHERE status = $1
		AND (next_retry_at IS NULL OR next_retry_at <= CURRENT_TIMESTAMP)
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, models.WebhookDeliveryStatusPending, limit)
	if err != nil {
		return nil, persistenceError("get pending deliveries", err)
	}
	defer rows.Close()

	for rows.Next() {
		var delivery models.WebhookDelivery
		err = rows.Scan(
			&delivery.ID,
			&delivery.WebhookID,
			&delivery.Event,
			&delivery.Payload,
			&delivery.Status,
			&delivery.StatusCode,
			&delivery.ResponseBody,
			&delivery.RetryCount,
			&delivery.NextRetryAt,
			&delivery.CreatedAt,
			&delivery.CompletedAt,
		)
		if err != nil {
			return nil, persistenceError("scan delivery", err)
		}
		deliveries = append(deliveries, &delivery)
	}
	if err = rows.Err(); err != nil {
		return nil, persistenceError("get pending deliveries", err)
	}

	return deliveries, nil
}

// CountDeliveriesByStatus returns the number of stored deliveries per status
func (r *Repository) CountDeliveriesByStatus(ctx context.Context) (counts map[string]int, err error) {
	defer r.observe("count_deliveries", time.Now(), &err)

	rows, err := r.db.Pool.Query(ctx, `SELECT status, COUNT(*) FROM webhook_deliveries GROUP BY status`)
	if err != nil {
		return nil, persistenceError("count deliveries", err)
	}
	defer rows.Close()

	counts = make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err = rows.Scan(&status, &n); err != nil {
			return nil, persistenceError("scan delivery count", err)
		}
		counts[status] = n
	}
	if err = rows.Err(); err != nil {
		return nil, persistenceError("count deliveries", err)
	}

	return counts, nil
}
