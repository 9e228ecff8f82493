package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/kassenwart/kassenwart-backend/internal/domain"
	"github.com/kassenwart/kassenwart-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// NotificationHandler handles mail outbox HTTP requests
type NotificationHandler struct {
	notificationService *service.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notificationService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// ListUnsent returns the notifications awaiting delivery
// @Summary List unsent notifications
// @Tags directdebit
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Notification
// @Failure 500 {object} ProblemDetails
// @Router /directdebit/notifications [get]
func (h *NotificationHandler) ListUnsent(c echo.Context) error {
	notifications, err := h.notificationService.ListUnsent(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list unsent notifications")
		return NewInternalError(c, "Failed to list notifications")
	}
	if notifications == nil {
		notifications = []*domain.Notification{}
	}
	return c.JSON(http.StatusOK, notifications)
}

// ListByMember returns the notifications addressed to a member
// @Summary List a member's notifications
// @Tags directdebit
// @Produce json
// @Security BearerAuth
// @Param id path string true "Member ID"
// @Success 200 {array} domain.Notification
// @Failure 400 {object} ProblemDetails
// @Router /directdebit/members/{id}/notifications [get]
func (h *NotificationHandler) ListByMember(c echo.Context) error {
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid member ID", nil)
	}

	notifications, err := h.notificationService.GetByMember(c.Request().Context(), memberID)
	if err != nil {
		log.Error().Err(err).Str("member_id", memberID.String()).Msg("Failed to list member notifications")
		return NewInternalError(c, "Failed to list notifications")
	}
	if notifications == nil {
		notifications = []*domain.Notification{}
	}
	return c.JSON(http.StatusOK, notifications)
}

// MarkSent records the delivery of a notification
// @Summary Mark a notification sent
// @Tags directdebit
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 404 {object} ProblemDetails
// @Router /directdebit/notifications/{id}/sent [post]
func (h *NotificationHandler) MarkSent(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid notification ID", nil)
	}

	if err := h.notificationService.MarkSent(c.Request().Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			return NewNotFoundError(c, "Notification not found or already sent")
		}
		log.Error().Err(err).Str("notification_id", id.String()).Msg("Failed to mark notification sent")
		return NewInternalError(c, "Failed to mark notification sent")
	}
	return c.NoContent(http.StatusNoContent)
}
