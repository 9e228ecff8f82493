package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kassenwart/kassenwart-backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// NotificationService serves the mail outbox. The engine only ever writes
// outbox rows inside other transactions; this service is the read side for
// the delivery collaborator, which fetches pending mails and reports back
// once they are out the door.
type NotificationService struct {
	notificationRepo domain.NotificationRepository
	now              func() time.Time
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notificationRepo domain.NotificationRepository) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		now:              time.Now,
	}
}

// ListUnsent returns the notifications awaiting delivery, oldest first.
func (s *NotificationService) ListUnsent(ctx context.Context) ([]*domain.Notification, error) {
	return s.notificationRepo.ListUnsent(ctx)
}

// GetByMember returns the notifications addressed to a member, newest first.
func (s *NotificationService) GetByMember(ctx context.Context, memberID uuid.UUID) ([]*domain.Notification, error) {
	return s.notificationRepo.GetByMember(ctx, memberID)
}

// MarkSent records the delivery of a notification. Already-sent and unknown
// notifications both report ErrNotificationNotFound so delivery retries stay
// idempotent.
func (s *NotificationService) MarkSent(ctx context.Context, id uuid.UUID) error {
	if err := s.notificationRepo.MarkSent(ctx, id, s.now()); err != nil {
		return err
	}
	log.Info().Str("notification_id", id.String()).Msg("Notification delivered")
	return nil
}
