package handler

import (
	"net/http"

	"github.com/kassenwart/kassenwart-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// MandateHandler handles mandate assignment HTTP requests
type MandateHandler struct {
	mandateService *service.MandateService
}

// NewMandateHandler creates a new MandateHandler
func NewMandateHandler(mandateService *service.MandateService) *MandateHandler {
	return &MandateHandler{mandateService: mandateService}
}

// Assign allocates mandate references for every member missing one
// @Summary Assign missing mandate references
// @Description Allocates a unique reference per eligible member; per-member failures are counted, not fatal
// @Tags directdebit
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.AssignmentSummary
// @Failure 500 {object} ProblemDetails
// @Router /directdebit/mandates/assign [post]
func (h *MandateHandler) Assign(c echo.Context) error {
	summary, err := h.mandateService.AssignMissing(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("Mandate assignment run failed")
		return NewInternalError(c, "Mandate assignment failed")
	}
	return c.JSON(http.StatusOK, summary)
}
