package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/kassenwart/kassenwart-backend/internal/domain"
	"github.com/kassenwart/kassenwart-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// BatchHandler handles batch preparation HTTP requests
type BatchHandler struct {
	batchService *service.BatchService
}

// NewBatchHandler creates a new BatchHandler
func NewBatchHandler(batchService *service.BatchService) *BatchHandler {
	return &BatchHandler{batchService: batchService}
}

// PrepareRequest represents the JSON request for preparing a batch
type PrepareRequest struct {
	DueDate     string `json:"dueDate"`
	Description string `json:"description"`
	LoginID     string `json:"loginId"`
	Account     struct {
		Name string `json:"name"`
		IBAN string `json:"iban"`
		BIC  string `json:"bic"`
	} `json:"account"`
	Schema             string                `json:"schema"`
	COR1               bool                  `json:"cor1"`
	CountryRestriction string                `json:"countryRestriction,omitempty"`
	ExcludeCountry     bool                  `json:"excludeCountry,omitempty"`
	NumberRanges       []service.NumberRange `json:"numberRanges,omitempty"`
}

// Prepare builds a new direct-debit batch
// @Summary Prepare a direct-debit batch
// @Description Collects the eligible members into payment lines and exports the SEPA payload
// @Tags directdebit
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PrepareRequest true "Batch parameters"
// @Success 201 {object} service.PrepareResult
// @Failure 400 {object} ProblemDetails
// @Failure 422 {object} ProblemDetails
// @Failure 500 {object} ProblemDetails
// @Router /directdebit/batches [post]
func (h *BatchHandler) Prepare(c echo.Context) error {
	var req PrepareRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		return NewValidationError(c, "Invalid due date", []ValidationError{{Field: "dueDate", Message: "expected YYYY-MM-DD"}})
	}
	if req.LoginID == "" {
		return NewValidationError(c, "Login ID is required", nil)
	}
	if req.Description == "" {
		return NewValidationError(c, "Description is required", nil)
	}

	input := service.PrepareInput{
		DueDate:     dueDate,
		Description: req.Description,
		LoginID:     req.LoginID,
		Account: domain.BankAccount{
			Name: req.Account.Name,
			IBAN: req.Account.IBAN,
			BIC:  req.Account.BIC,
		},
		Schema:             req.Schema,
		COR1:               req.COR1,
		CountryRestriction: req.CountryRestriction,
		ExcludeCountry:     req.ExcludeCountry,
		NumberRanges:       req.NumberRanges,
	}

	result, err := h.batchService.Prepare(c.Request().Context(), input)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, result)
}

// Get returns a batch with its payment lines
// @Summary Get a batch
// @Tags directdebit
// @Produce json
// @Security BearerAuth
// @Param id path string true "Batch ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ProblemDetails
// @Router /directdebit/batches/{id} [get]
func (h *BatchHandler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return NewValidationError(c, "Invalid batch ID", nil)
	}

	batch, payments, err := h.batchService.GetBatch(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrBatchNotFound) {
			return NewNotFoundError(c, "Batch not found")
		}
		log.Error().Err(err).Str("batch_id", id.String()).Msg("Failed to load batch")
		return NewInternalError(c, "Failed to load batch")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"batch":    batch,
		"payments": payments,
	})
}

// List returns every batch, newest first
// @Summary List batches
// @Tags directdebit
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.DirectDebitBatch
// @Router /directdebit/batches [get]
func (h *BatchHandler) List(c echo.Context) error {
	batches, err := h.batchService.GetAll(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list batches")
		return NewInternalError(c, "Failed to list batches")
	}
	if batches == nil {
		batches = []*domain.DirectDebitBatch{}
	}
	return c.JSON(http.StatusOK, batches)
}

func (h *BatchHandler) handleServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidFundingAccount):
		return NewValidationError(c, "Funding account data is malformed", nil)
	case errors.Is(err, domain.ErrUnknownSchema):
		return NewValidationError(c, "Unsupported export schema", nil)
	case errors.Is(err, domain.ErrExportRejected):
		return c.JSON(http.StatusUnprocessableEntity, ProblemDetails{
			Type:     ErrorTypeValidation,
			Title:    "Export Rejected",
			Status:   http.StatusUnprocessableEntity,
			Detail:   "The export payload was rejected; nothing was persisted",
			Instance: c.Request().URL.Path,
		})
	default:
		log.Error().Err(err).Msg("Failed to prepare batch")
		return NewInternalError(c, "Failed to prepare batch")
	}
}
