package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stack-service/tax_service/internal/domain/entities"
	"github.com/stack-service/tax_service/internal/domain/repositories"
	"github.com/stack-service/tax_service/pkg/errors"
)

// TaxRepository maps tax entities onto the generic record store
type TaxRepository struct {
	store  repositories.RecordStore
	logger *zap.Logger
}

// NewTaxRepository creates a new tax repository
func NewTaxRepository(store repositories.RecordStore, logger *zap.Logger) *TaxRepository {
	return &TaxRepository{
		store:  store,
		logger: logger,
	}
}

// GetTaxSummary returns the summary of a portfolio and year, or nil if none is stored
func (r *TaxRepository) GetTaxSummary(ctx context.Context, portfolioID string, taxYear int) (*entities.TaxSummary, error) {
	summaries, err := filter[entities.TaxSummary](ctx, r.store, entities.CollectionTaxSummary, repositories.Criteria{
		"portfolio_id": portfolioID,
		"tax_year":     taxYear,
	})
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, nil
	}
	if len(summaries) > 1 {
		r.logger.Warn("multiple tax summaries stored for scope, using the oldest",
			zap.String("portfolio_id", portfolioID),
			zap.Int("tax_year", taxYear),
			zap.Int("count", len(summaries)),
		)
	}
	return summaries[0], nil
}

// ListPortfolioAccounts returns the accounts of a portfolio
func (r *TaxRepository) ListPortfolioAccounts(ctx context.Context, portfolioID string) ([]*entities.PortfolioAccount, error) {
	return filter[entities.PortfolioAccount](ctx, r.store, entities.CollectionPortfolioAccount, repositories.Criteria{
		"portfolio_id": portfolioID,
	})
}

// ListHoldings returns the positions held in an account
func (r *TaxRepository) ListHoldings(ctx context.Context, accountID string) ([]*entities.AssetHolding, error) {
	return filter[entities.AssetHolding](ctx, r.store, entities.CollectionAssetHolding, repositories.Criteria{
		"portfolio_account_id": accountID,
	})
}

// GetAsset returns the asset reference, or nil if it does not exist
func (r *TaxRepository) GetAsset(ctx context.Context, assetID string) (*entities.Asset, error) {
	assets, err := filter[entities.Asset](ctx, r.store, entities.CollectionAsset, repositories.Criteria{
		"id": assetID,
	})
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return nil, nil
	}
	return assets[0], nil
}

// ListTaxLots returns every lot recorded for a holding, whatever its status
func (r *TaxRepository) ListTaxLots(ctx context.Context, holdingID string) ([]*entities.TaxLot, error) {
	return filter[entities.TaxLot](ctx, r.store, entities.CollectionTaxLot, repositories.Criteria{
		"asset_holding_id": holdingID,
	})
}

// List returns suggestions matching filter in insertion order
func (r *TaxRepository) List(ctx context.Context, f entities.SuggestionFilter) ([]*entities.TaxHarvestingSuggestion, error) {
	criteria := repositories.Criteria{}
	if f.PortfolioID != "" {
		criteria["portfolio_id"] = f.PortfolioID
	}
	if f.TaxYear != 0 {
		criteria["tax_year"] = f.TaxYear
	}
	if f.Status != "" {
		criteria["status"] = string(f.Status)
	}
	return filter[entities.TaxHarvestingSuggestion](ctx, r.store, entities.CollectionTaxHarvestingSuggestion, criteria)
}

// Get returns one suggestion by id
func (r *TaxRepository) Get(ctx context.Context, id string) (*entities.TaxHarvestingSuggestion, error) {
	suggestions, err := filter[entities.TaxHarvestingSuggestion](ctx, r.store, entities.CollectionTaxHarvestingSuggestion, repositories.Criteria{
		"id": id,
	})
	if err != nil {
		return nil, err
	}
	if len(suggestions) == 0 {
		return nil, suggestionNotFound(id, nil)
	}
	return suggestions[0], nil
}

// Create stores a suggestion and returns it with its assigned id
func (r *TaxRepository) Create(ctx context.Context, suggestion *entities.TaxHarvestingSuggestion) (*entities.TaxHarvestingSuggestion, error) {
	record, err := r.store.Create(ctx, entities.CollectionTaxHarvestingSuggestion, suggestion)
	if err != nil {
		return nil, err
	}

	created := &entities.TaxHarvestingSuggestion{}
	if err := record.Decode(created); err != nil {
		return nil, fmt.Errorf("failed to decode created suggestion: %w", err)
	}
	created.ID = record.ID
	return created, nil
}

// UpdateStatus overwrites the status of one suggestion
func (r *TaxRepository) UpdateStatus(ctx context.Context, id string, status entities.SuggestionStatus) (*entities.TaxHarvestingSuggestion, error) {
	record, err := r.store.Update(ctx, entities.CollectionTaxHarvestingSuggestion, id, map[string]interface{}{
		"status": string(status),
	})
	if err != nil {
		if errors.Is(err, errors.ErrRecordNotFound) {
			return nil, suggestionNotFound(id, err)
		}
		return nil, err
	}

	updated := &entities.TaxHarvestingSuggestion{}
	if err := record.Decode(updated); err != nil {
		return nil, fmt.Errorf("failed to decode updated suggestion: %w", err)
	}
	return updated, nil
}

// Delete removes one suggestion
func (r *TaxRepository) Delete(ctx context.Context, id string) error {
	err := r.store.Delete(ctx, entities.CollectionTaxHarvestingSuggestion, id)
	if err != nil && errors.Is(err, errors.ErrRecordNotFound) {
		return suggestionNotFound(id, err)
	}
	return err
}

// WithinTx binds a repository to one store transaction when supported
func (r *TaxRepository) WithinTx(ctx context.Context, fn func(repositories.SuggestionRepository) error) error {
	tx, ok := r.store.(repositories.Transactor)
	if !ok {
		return fn(r)
	}
	return tx.WithinTx(ctx, func(store repositories.RecordStore) error {
		return fn(&TaxRepository{store: store, logger: r.logger})
	})
}

// LoadAustrianAggregates sums the Austrian income lines of a year
func (r *TaxRepository) LoadAustrianAggregates(ctx context.Context, taxYear int) (*entities.JurisdictionAggregates, error) {
	lines, err := filter[entities.AustrianInvestmentIncome](ctx, r.store, entities.CollectionAustrianInvestmentIncome, repositories.Criteria{
		"tax_year": taxYear,
	})
	if err != nil {
		return nil, err
	}

	agg := &entities.JurisdictionAggregates{Country: entities.CountryAustria, TaxYear: taxYear}
	for _, line := range lines {
		agg.GrossIncome = agg.GrossIncome.Add(line.GrossIncome)
		agg.KestPaid = agg.KestPaid.Add(line.KestPaid)
		agg.RealizedLosses = agg.RealizedLosses.Add(line.RealizedLosses)
	}
	return agg, nil
}

// LoadSwissAggregates sums the Swiss wealth lines of a year, optionally per canton
func (r *TaxRepository) LoadSwissAggregates(ctx context.Context, taxYear int, canton string) (*entities.JurisdictionAggregates, error) {
	canton = strings.ToUpper(strings.TrimSpace(canton))
	criteria := repositories.Criteria{"tax_year": taxYear}
	if canton != "" {
		criteria["canton"] = canton
	}

	positions, err := filter[entities.SwissWealthPosition](ctx, r.store, entities.CollectionSwissWealthPosition, criteria)
	if err != nil {
		return nil, err
	}

	agg := &entities.JurisdictionAggregates{Country: entities.CountrySwitzerland, TaxYear: taxYear, Canton: canton}
	for _, p := range positions {
		agg.TotalWealth = agg.TotalWealth.Add(p.AssetValue)
		agg.MortgageDebt = agg.MortgageDebt.Add(p.MortgageDebt)
	}
	return agg, nil
}

// LoadGermanAggregates sums the German capital gain lines of a year
func (r *TaxRepository) LoadGermanAggregates(ctx context.Context, taxYear int) (*entities.JurisdictionAggregates, error) {
	gains, err := filter[entities.GermanCapitalGain](ctx, r.store, entities.CollectionGermanCapitalGain, repositories.Criteria{
		"tax_year": taxYear,
	})
	if err != nil {
		return nil, err
	}

	agg := &entities.JurisdictionAggregates{
		Country:       entities.CountryGermany,
		TaxYear:       taxYear,
		Gains:         decimal.Zero,
		UsedAllowance: decimal.Zero,
	}
	for _, g := range gains {
		agg.Gains = agg.Gains.Add(g.GainAmount)
		agg.UsedAllowance = agg.UsedAllowance.Add(g.AllowanceUsed)
	}
	return agg, nil
}

// filter loads and decodes every record of collection matching criteria
func filter[T any](ctx context.Context, store repositories.RecordStore, collection string, criteria repositories.Criteria) ([]*T, error) {
	records, err := store.Filter(ctx, collection, criteria)
	if err != nil {
		return nil, err
	}

	items := make([]*T, 0, len(records))
	for _, record := range records {
		item := new(T)
		if err := record.Decode(item); err != nil {
			return nil, fmt.Errorf("failed to decode %s %s: %w", collection, record.ID, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func suggestionNotFound(id string, cause error) error {
	return errors.WrapWithType(cause, errors.ErrorTypeNotFound, errors.CodeSuggestionNotFound,
		fmt.Sprintf("suggestion %s not found", id))
}
