package handler

import (
	"net/http"

	"github.com/kassenwart/kassenwart-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// DashboardHandler handles dashboard HTTP requests
type DashboardHandler struct {
	dashboardService *service.DashboardService
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(dashboardService *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GetSummary returns the collection-readiness funnel
// @Summary Direct debit dashboard
// @Description Readiness funnel over members with a due balance
// @Tags directdebit
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.DashboardSummary
// @Failure 500 {object} ProblemDetails
// @Router /directdebit/dashboard [get]
func (h *DashboardHandler) GetSummary(c echo.Context) error {
	summary, err := h.dashboardService.Summary(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to build dashboard summary")
		return NewInternalError(c, "Failed to build dashboard summary")
	}
	return c.JSON(http.StatusOK, summary)
}

// GetDebitDate returns the suggested collection date for the prepare form
// @Summary Suggested debit date
// @Tags directdebit
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string
// @Router /directdebit/debit-date [get]
func (h *DashboardHandler) GetDebitDate(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"debitDate": h.dashboardService.SuggestedDebitDate().Format("2006-01-02"),
	})
}
