package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stack-service/tax_service/internal/domain/entities"
	"github.com/stack-service/tax_service/internal/domain/services/harvesting"
	"github.com/stack-service/tax_service/internal/domain/services/jurisdiction"
	"github.com/stack-service/tax_service/pkg/errors"
	"github.com/stack-service/tax_service/pkg/logger"
	"github.com/stack-service/tax_service/pkg/tracing"
)

// ScopeLocker serializes regeneration of one (portfolio, tax year) scope
type ScopeLocker interface {
	Acquire(ctx context.Context, portfolioID string, taxYear int) (func(), error)
}

// TaxHandlers serves the harvesting and jurisdiction endpoints
type TaxHandlers struct {
	harvesting   *harvesting.Service
	jurisdiction *jurisdiction.Service
	locks        ScopeLocker
	logger       *logger.Logger
}

// NewTaxHandlers creates the tax handlers
func NewTaxHandlers(
	harvestingService *harvesting.Service,
	jurisdictionService *jurisdiction.Service,
	locks ScopeLocker,
	log *logger.Logger,
) *TaxHandlers {
	return &TaxHandlers{
		harvesting:   harvestingService,
		jurisdiction: jurisdictionService,
		locks:        locks,
		logger:       log,
	}
}

// GenerateSuggestions regenerates the pending suggestions of a scope
// POST /api/v1/tax/harvesting/suggestions/generate
func (h *TaxHandlers) GenerateSuggestions(c *gin.Context) {
	var req entities.GenerateSuggestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "portfolio_id and tax_year are required")
		return
	}

	ctx := c.Request.Context()
	log := requestLogger(c, h.logger).ForScope(req.PortfolioID, req.TaxYear)
	tracing.AddSpanAttributes(c, tracing.ScopeAttributes(req.PortfolioID, req.TaxYear)...)

	release, err := h.locks.Acquire(ctx, req.PortfolioID, req.TaxYear)
	if err != nil {
		log.Warnw("Regeneration rejected", "error", err)
		respondError(c, err)
		return
	}
	defer release()

	resp, err := h.harvesting.GenerateSuggestions(ctx, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListSuggestions returns the suggestions matching the query filter
// GET /api/v1/tax/harvesting/suggestions
func (h *TaxHandlers) ListSuggestions(c *gin.Context) {
	filter := entities.SuggestionFilter{
		PortfolioID: c.Query("portfolio_id"),
		Status:      entities.SuggestionStatus(c.Query("status")),
	}

	if raw := c.Query("tax_year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			respondBadRequest(c, "tax_year must be a number")
			return
		}
		filter.TaxYear = year
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		respondBadRequest(c, "unknown status "+string(filter.Status))
		return
	}

	suggestions, err := h.harvesting.ListSuggestions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"suggestions": suggestions,
		"count":       len(suggestions),
	})
}

// UpdateSuggestionStatus moves a suggestion to a new status
// PATCH /api/v1/tax/harvesting/suggestions/:id
func (h *TaxHandlers) UpdateSuggestionStatus(c *gin.Context) {
	var req entities.UpdateSuggestionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "status is required")
		return
	}

	updated, err := h.harvesting.UpdateSuggestionStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"suggestion": updated,
	})
}

// Optimize evaluates the jurisdiction rules of a country and tax year
// POST /api/v1/tax/optimization
func (h *TaxHandlers) Optimize(c *gin.Context) {
	var req entities.OptimizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondOptimizationError(c, errors.NewValidationError("invalid request body"))
		return
	}

	result, err := h.jurisdiction.Optimize(c.Request.Context(), &req)
	if err != nil {
		requestLogger(c, h.logger).Warnw("Optimization failed", "country", req.Country, "error", err)
		respondOptimizationError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// respondOptimizationError writes the error body of the optimization endpoint
func respondOptimizationError(c *gin.Context, err error) {
	message := "optimization failed"
	var appErr *errors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		message = appErr.Message
	}

	body := gin.H{
		"status": "error",
		"error":  message,
		"code":   errors.GetCode(err),
	}
	if details := errors.GetDetails(err); len(details) > 0 {
		body["details"] = details
	}
	c.JSON(errors.GetStatusCode(err), body)
}
