package handler

import (
	"net/http"

	"github.com/kassenwart/kassenwart-backend/internal/domain"
	"github.com/kassenwart/kassenwart-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// MemberHandler handles member list HTTP requests
type MemberHandler struct {
	eligibility *service.EligibilityService
}

// NewMemberHandler creates a new MemberHandler
func NewMemberHandler(eligibility *service.EligibilityService) *MemberHandler {
	return &MemberHandler{eligibility: eligibility}
}

// memberFilters maps the list filter modes to readiness categories.
var memberFilters = map[string]domain.DebitState{
	"invalid_iban":         domain.DebitStateInvalidIBAN,
	"invalid_bic":          domain.DebitStateInvalidBIC,
	"rescinded":            domain.DebitStateRescinded,
	"bounced":              domain.DebitStateBounced,
	"no_bic":               domain.DebitStateNoBIC,
	"no_iban":              domain.DebitStateNoIBAN,
	"no_mandate_reference": domain.DebitStateNoMandateReference,
	"inactive":             domain.DebitStateInactive,
	"ok":                   domain.DebitStateOK,
}

// List returns members filtered by readiness category
// @Summary List members by debit readiness
// @Description filter=all lists everyone; a category name lists the due-balance members in that category
// @Tags directdebit
// @Produce json
// @Security BearerAuth
// @Param filter query string false "all, ok, inactive, rescinded, bounced, no_bic, no_iban, no_mandate_reference, invalid_iban, invalid_bic"
// @Success 200 {array} domain.Member
// @Failure 400 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /directdebit/members [get]
func (h *MemberHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	filter := c.QueryParam("filter")

	var members []*domain.Member
	var err error
	switch {
	case filter == "" || filter == "all":
		members, err = h.eligibility.AllMembers(ctx)
	default:
		state, ok := memberFilters[filter]
		if !ok {
			return NewValidationError(c, "Unknown filter", nil)
		}
		members, err = h.eligibility.MembersInState(ctx, state)
	}
	if err != nil {
		log.Error().Err(err).Str("filter", filter).Msg("Failed to list members")
		return NewInternalError(c, "Failed to list members")
	}

	if members == nil {
		members = []*domain.Member{}
	}
	return c.JSON(http.StatusOK, members)
}
