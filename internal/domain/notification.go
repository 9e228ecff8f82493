package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Notification is an outbox entry for a member e-mail. The engine only
// writes entries, always inside the same transaction as the change they
// announce; rendering to SMTP is the mail collaborator's job.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	MemberID  uuid.UUID  `json:"memberId"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"createdAt"`
	SentAt    *time.Time `json:"sentAt,omitempty"`
}

// NotificationRepository reads the outbox. Inserts happen through
// MemberRepository.AssignMandate and BatchRepository.CreateWithPayments so
// they share those transactions.
type NotificationRepository interface {
	GetByMember(ctx context.Context, memberID uuid.UUID) ([]*Notification, error)
	ListUnsent(ctx context.Context) ([]*Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
}
