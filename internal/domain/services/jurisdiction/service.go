package jurisdiction

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/stack-service/tax_service/internal/domain/entities"
	"github.com/stack-service/tax_service/internal/domain/repositories"
	"github.com/stack-service/tax_service/pkg/errors"
	"github.com/stack-service/tax_service/pkg/logger"
	"github.com/stack-service/tax_service/pkg/metrics"
	"github.com/stack-service/tax_service/pkg/tracing"
)

// StatusSuccess is the status field of a successful optimization result
const StatusSuccess = "success"

// Service is the jurisdiction optimization entry point
type Service struct {
	data      repositories.JurisdictionDataSource
	evaluator *Evaluator
	logger    *logger.Logger
}

// NewService creates a new jurisdiction service
func NewService(data repositories.JurisdictionDataSource, evaluator *Evaluator, log *logger.Logger) *Service {
	return &Service{
		data:      data,
		evaluator: evaluator,
		logger:    log,
	}
}

// Optimize loads the aggregates of a country and year, applies the rule
// table and returns the ranked recommendations
func (s *Service) Optimize(ctx context.Context, req *entities.OptimizationRequest) (result *entities.OptimizationResult, err error) {
	if req == nil || req.Country == "" {
		return nil, errors.NewValidationError("country is required")
	}
	if req.TaxYear < 1900 || req.TaxYear > 9999 {
		return nil, errors.NewValidationError("taxYear must be a four digit year")
	}

	country := NormalizeCountry(req.Country)

	ctx, span := tracing.StartSpan(ctx, "jurisdiction.optimize",
		attribute.String("tax.country", string(country)),
		attribute.Int("tax.year", req.TaxYear))
	defer func() {
		status := StatusSuccess
		if err != nil {
			status = "error"
		}
		metrics.RecordOptimization(string(country), status)
		tracing.EndSpan(span, err)
	}()

	if !s.evaluator.SupportsCountry(country) {
		s.logger.CtxInfo(ctx, "No jurisdiction rules for country", "country", country, "tax_year", req.TaxYear)
		return &entities.OptimizationResult{
			Status:                StatusSuccess,
			Country:               country,
			TaxYear:               req.TaxYear,
			Recommendations:       []*entities.Recommendation{},
			TotalEstimatedSavings: decimal.Zero,
		}, nil
	}

	agg, err := s.loadAggregates(ctx, country, req.TaxYear, req.Canton)
	if err != nil {
		s.logger.CtxError(ctx, "Failed to load jurisdiction aggregates", "country", country, "error", err)
		return nil, errors.WrapEvaluation(err, "failed to load aggregates").
			WithDetail("country", string(country))
	}

	recommendations, total := Rank(s.evaluator.Evaluate(country, req.TaxYear, agg))
	for _, r := range recommendations {
		metrics.RecordRecommendation(string(country), r.RuleID)
	}

	s.logger.CtxInfo(ctx, "Jurisdiction recommendations computed",
		"country", country,
		"tax_year", req.TaxYear,
		"count", len(recommendations),
		"total_estimated_savings", total.String())

	return &entities.OptimizationResult{
		Status:                StatusSuccess,
		Country:               country,
		TaxYear:               req.TaxYear,
		Recommendations:       recommendations,
		TotalEstimatedSavings: total,
	}, nil
}

func (s *Service) loadAggregates(ctx context.Context, country entities.Country, taxYear int, canton string) (*entities.JurisdictionAggregates, error) {
	switch country {
	case entities.CountryAustria:
		return s.data.LoadAustrianAggregates(ctx, taxYear)
	case entities.CountrySwitzerland:
		return s.data.LoadSwissAggregates(ctx, taxYear, canton)
	case entities.CountryGermany:
		return s.data.LoadGermanAggregates(ctx, taxYear)
	default:
		return &entities.JurisdictionAggregates{Country: country, TaxYear: taxYear}, nil
	}
}
