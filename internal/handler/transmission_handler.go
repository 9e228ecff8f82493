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

// TransmissionHandler handles transmission and TAN HTTP requests
type TransmissionHandler struct {
	transmissionService *service.TransmissionService
}

// NewTransmissionHandler creates a new TransmissionHandler
func NewTransmissionHandler(transmissionService *service.TransmissionService) *TransmissionHandler {
	return &TransmissionHandler{transmissionService: transmissionService}
}

// Connections lists the configured bank connections
// @Summary List bank connections
// @Tags directdebit
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]domain.BankConnection
// @Failure 500 {object} ProblemDetails
// @Router /directdebit/connections [get]
func (h *TransmissionHandler) Connections(c echo.Context) error {
	connections, err := h.transmissionService.Connections(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list bank connections")
		return NewInternalError(c, "Failed to list bank connections")
	}
	return c.JSON(http.StatusOK, connections)
}

// Transmit submits a prepared batch to the bank
// @Summary Transmit a batch
// @Description Initiates the debit submission; the response either reports the new state or a pending TAN challenge
// @Tags directdebit
// @Produce json
// @Security BearerAuth
// @Param id path string true "Batch ID"
// @Success 200 {object} service.TransmitOutcome
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Failure 502 {object} ProblemDetails
// @Router /directdebit/batches/{id}/transmit [post]
func (h *TransmissionHandler) Transmit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid batch ID", nil)
	}

	outcome, err := h.transmissionService.Transmit(c.Request().Context(), id)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, outcome)
}

// ChallengeForm returns the presentation metadata of a pending TAN challenge
// @Summary Get TAN challenge form
// @Tags directdebit
// @Produce json
// @Security BearerAuth
// @Param id path string true "Batch ID"
// @Param token path string true "Challenge token"
// @Success 200 {object} domain.ChallengeForm
// @Failure 404 {object} ProblemDetails
// @Router /directdebit/batches/{id}/tan/{token} [get]
func (h *TransmissionHandler) ChallengeForm(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid batch ID", nil)
	}

	form, err := h.transmissionService.ChallengeForm(c.Request().Context(), id, c.Param("token"))
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, form)
}

// ConfirmRequest represents the JSON request for confirming a TAN challenge
type ConfirmRequest struct {
	TAN string `json:"tan"`
}

// Confirm completes a pending TAN challenge
// @Summary Confirm a TAN challenge
// @Tags directdebit
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Batch ID"
// @Param token path string true "Challenge token"
// @Param request body ConfirmRequest true "Authorization code"
// @Success 200 {object} service.TransmitOutcome
// @Failure 400 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Failure 502 {object} ProblemDetails
// @Router /directdebit/batches/{id}/tan/{token} [post]
func (h *TransmissionHandler) Confirm(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid batch ID", nil)
	}

	var req ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	if req.TAN == "" {
		return NewValidationError(c, "TAN is required", []ValidationError{{Field: "tan", Message: "required"}})
	}

	outcome, err := h.transmissionService.Confirm(c.Request().Context(), id, c.Param("token"), req.TAN)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, outcome)
}

// MarkExecuted records bank-side execution of a transmitted batch
// @Summary Mark a batch executed
// @Tags directdebit
// @Produce json
// @Security BearerAuth
// @Param id path string true "Batch ID"
// @Success 200 {object} domain.DirectDebitBatch
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /directdebit/batches/{id}/executed [post]
func (h *TransmissionHandler) MarkExecuted(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid batch ID", nil)
	}

	batch, err := h.transmissionService.MarkExecuted(c.Request().Context(), id)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, batch)
}

// MarkPaymentBounced records an out-of-band bounce for a payment
// @Summary Mark a payment bounced
// @Tags directdebit
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Success 200 {object} domain.DirectDebitPayment
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /directdebit/payments/{id}/bounce [post]
func (h *TransmissionHandler) MarkPaymentBounced(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid payment ID", nil)
	}

	payment, err := h.transmissionService.MarkPaymentBounced(c.Request().Context(), id)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, payment)
}

func (h *TransmissionHandler) handleServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrBatchNotFound):
		return NewNotFoundError(c, "Batch not found")
	case errors.Is(err, domain.ErrPaymentNotFound):
		return NewNotFoundError(c, "Payment not found")
	case errors.Is(err, domain.ErrBatchNotPending):
		return NewConflictError(c, "Batch is not awaiting transmission")
	case errors.Is(err, domain.ErrInvalidTransition):
		return NewConflictError(c, "State change is not allowed")
	case errors.Is(err, domain.ErrTransmissionFailed):
		// Detail stays in the server log; the caller only sees the
		// generic failure.
		return c.JSON(http.StatusBadGateway, ProblemDetails{
			Type:     ErrorTypeInternal,
			Title:    "Transmission Failed",
			Status:   http.StatusBadGateway,
			Detail:   "The bank rejected the submission",
			Instance: c.Request().URL.Path,
		})
	default:
		log.Error().Err(err).Msg("Transmission operation failed")
		return NewInternalError(c, "Transmission operation failed")
	}
}
