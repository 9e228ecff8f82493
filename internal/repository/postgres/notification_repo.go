package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kassenwart/kassenwart-backend/internal/domain"
)

// NotificationRepository implements domain.NotificationRepository using
// PostgreSQL. Rows are inserted by the member and batch repositories inside
// their transactions; this repository serves the outbox consumer.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

const notificationColumns = `id, member_id, subject, body, created_at, sent_at`

// GetByMember retrieves the notifications of a member, newest first
func (r *NotificationRepository) GetByMember(ctx context.Context, memberID uuid.UUID) ([]*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE member_id = $1 ORDER BY created_at DESC`
	return r.query(ctx, query, memberID)
}

// ListUnsent retrieves notifications awaiting delivery, oldest first
func (r *NotificationRepository) ListUnsent(ctx context.Context) ([]*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE sent_at IS NULL ORDER BY created_at`
	return r.query(ctx, query)
}

// MarkSent records the delivery timestamp of a notification
func (r *NotificationRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET sent_at = $2 WHERE id = $1 AND sent_at IS NULL
	`, id, sentAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Notification, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, notification)
	}
	return notifications, rows.Err()
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	if err := row.Scan(&n.ID, &n.MemberID, &n.Subject, &n.Body, &n.CreatedAt, &n.SentAt); err != nil {
		return nil, err
	}
	return &n, nil
}
