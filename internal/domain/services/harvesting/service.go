package harvesting

import (
	"context"
	"strconv"
	"time"

	"github.com/stack-service/tax_service/internal/domain/entities"
	"github.com/stack-service/tax_service/internal/domain/repositories"
	"github.com/stack-service/tax_service/pkg/errors"
	"github.com/stack-service/tax_service/pkg/logger"
	"github.com/stack-service/tax_service/pkg/metrics"
	"github.com/stack-service/tax_service/pkg/tracing"
)

// Service is the suggestion generation entry point: it loads a snapshot,
// runs the generator and refreshes the stored suggestion set
type Service struct {
	data      repositories.HarvestingDataSource
	generator *Generator
	lifecycle *Lifecycle
	logger    *logger.Logger
}

// NewService creates a new harvesting service
func NewService(
	data repositories.HarvestingDataSource,
	generator *Generator,
	lifecycle *Lifecycle,
	log *logger.Logger,
) *Service {
	return &Service{
		data:      data,
		generator: generator,
		lifecycle: lifecycle,
		logger:    log,
	}
}

// GenerateSuggestions regenerates the pending suggestions of a portfolio and tax year
func (s *Service) GenerateSuggestions(ctx context.Context, req *entities.GenerateSuggestionsRequest) (resp *entities.GenerateSuggestionsResponse, err error) {
	if err := validateScope(req); err != nil {
		metrics.RecordHarvestingRun("rejected", 0)
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "harvesting.generate", tracing.ScopeAttributes(req.PortfolioID, req.TaxYear)...)
	start := time.Now()
	log := s.logger.ForScope(req.PortfolioID, req.TaxYear)
	defer func() {
		status := "success"
		if err != nil {
			status = "failed"
		}
		metrics.RecordHarvestingRun(status, time.Since(start).Seconds())
		tracing.EndSpan(span, err)
	}()

	snap, err := s.loadSnapshot(ctx, req, log)
	if err != nil {
		log.CtxWarn(ctx, "Suggestion generation aborted", "error", err)
		return nil, err
	}

	drafts := s.generator.Generate(snap)

	created, err := s.lifecycle.Refresh(ctx, req.PortfolioID, req.TaxYear, drafts)
	if err != nil {
		log.CtxError(ctx, "Failed to store suggestions", "error", err, "drafts", len(drafts))
		return nil, err
	}

	for _, c := range created {
		savings, _ := c.EstimatedTaxSavings.Float64()
		metrics.RecordSuggestion(string(c.SuggestionType), string(c.Priority), savings)
	}

	log.CtxInfo(ctx, "Suggestions generated",
		"holdings", len(snap.Holdings),
		"count", len(created),
		"duration_ms", time.Since(start).Milliseconds())

	return &entities.GenerateSuggestionsResponse{
		Success:     true,
		Suggestions: created,
		Count:       len(created),
	}, nil
}

// ListSuggestions returns stored suggestions
func (s *Service) ListSuggestions(ctx context.Context, filter entities.SuggestionFilter) ([]*entities.TaxHarvestingSuggestion, error) {
	return s.lifecycle.ListSuggestions(ctx, filter)
}

// UpdateSuggestionStatus records what the user did with a suggestion
func (s *Service) UpdateSuggestionStatus(ctx context.Context, id string, status entities.SuggestionStatus) (*entities.TaxHarvestingSuggestion, error) {
	return s.lifecycle.UpdateStatus(ctx, id, status)
}

// ExpireStale expires pending suggestions past their validity
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	return s.lifecycle.ExpireStale(ctx, now)
}

func (s *Service) loadSnapshot(ctx context.Context, req *entities.GenerateSuggestionsRequest, log *logger.Logger) (*Snapshot, error) {
	summary, err := s.data.GetTaxSummary(ctx, req.PortfolioID, req.TaxYear)
	if err != nil {
		return nil, errors.WrapGeneration(err, "failed to load tax summary")
	}
	if summary == nil {
		return nil, errors.WrapWithType(nil, errors.ErrorTypeNotFound, errors.CodeTaxSummaryNotFound,
			"no tax summary for portfolio and tax year").
			WithDetail("portfolio_id", req.PortfolioID).
			WithDetail("tax_year", strconv.Itoa(req.TaxYear))
	}

	snap := &Snapshot{
		PortfolioID: req.PortfolioID,
		TaxYear:     req.TaxYear,
		Summary:     summary,
		Assets:      make(map[string]*entities.Asset),
		Lots:        make(map[string][]*entities.TaxLot),
	}

	accounts, err := s.data.ListPortfolioAccounts(ctx, req.PortfolioID)
	if err != nil {
		return nil, errors.WrapGeneration(err, "failed to load portfolio accounts")
	}

	missing := make(map[string]bool)
	for _, account := range accounts {
		holdings, err := s.data.ListHoldings(ctx, account.ID)
		if err != nil {
			return nil, errors.WrapGeneration(err, "failed to load holdings").
				WithDetail("account_id", account.ID)
		}

		for _, holding := range holdings {
			if holding.Quantity.IsZero() {
				continue
			}

			asset, err := s.resolveAsset(ctx, snap, missing, holding.AssetID)
			if err != nil {
				return nil, err
			}
			if asset == nil {
				log.CtxWarn(ctx, "Skipping holding with unknown asset",
					"holding_id", holding.ID,
					"asset_id", holding.AssetID)
				continue
			}

			snap.Holdings = append(snap.Holdings, holding)

			if !asset.AssetClass.HasHoldingPeriodExemption() || !holding.UnrealizedGainLoss.IsPositive() {
				continue
			}
			lots, err := s.data.ListTaxLots(ctx, holding.ID)
			if err != nil {
				return nil, errors.WrapGeneration(err, "failed to load tax lots").
					WithDetail("holding_id", holding.ID)
			}
			for _, lot := range lots {
				if lot.Status.IsLive() {
					snap.Lots[holding.ID] = append(snap.Lots[holding.ID], lot)
				}
			}
		}
	}

	return snap, nil
}

func (s *Service) resolveAsset(ctx context.Context, snap *Snapshot, missing map[string]bool, assetID string) (*entities.Asset, error) {
	if asset, ok := snap.Assets[assetID]; ok {
		return asset, nil
	}
	if missing[assetID] {
		return nil, nil
	}

	asset, err := s.data.GetAsset(ctx, assetID)
	if err != nil {
		return nil, errors.WrapGeneration(err, "failed to load asset").WithDetail("asset_id", assetID)
	}
	if asset == nil {
		missing[assetID] = true
		return nil, nil
	}
	snap.Assets[assetID] = asset
	return asset, nil
}

func validateScope(req *entities.GenerateSuggestionsRequest) error {
	if req == nil || req.PortfolioID == "" {
		return errors.NewValidationError("portfolio_id is required")
	}
	if req.TaxYear < 1900 || req.TaxYear > 9999 {
		return errors.NewValidationError("tax_year must be a four digit year")
	}
	return nil
}
