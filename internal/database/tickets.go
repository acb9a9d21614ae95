package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

// CreateTicket stores a support ticket
func (r *Repository) CreateTicket(ctx context.Context, t *models.SupportTicket) (err error) {
	defer r.observe("create_ticket", time.Now(), &err)

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = models.TicketStatusOpen
	}

	query := `
		INSERT INTO support_tickets (id, user_id, email, subject, message, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err = r.db.Pool.QueryRow(ctx, query,
		t.ID, t.UserID, t.Email, t.Subject, t.Message, t.Status,
	).Scan(&t.CreatedAt)
	if err != nil {
		return persistenceError("create ticket", err)
	}

	return nil
}

// ListTickets retrieves tickets filtered by status (all when empty), newest first
func (r *Repository) ListTickets(ctx context.Context, status string, limit, offset int) (tickets []*models.SupportTicket, err error) {
	defer r.observe("list_tickets", time.Now(), &err)

	query := `
		SELECT id, user_id, email, subject, message, status, created_at
		FROM support_tickets
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, persistenceError("list tickets", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t models.SupportTicket
		if err = rows.Scan(&t.ID, &t.UserID, &t.Email, &t.Subject, &t.Message, &t.Status, &t.CreatedAt); err != nil {
			return nil, persistenceError("scan ticket", err)
		}
		tickets = append(tickets, &t)
	}
	if err = rows.Err(); err != nil {
		return nil, persistenceError("list tickets", err)
	}

	return tickets, nil
}
