package jurisdiction

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stack-service/tax_service/internal/domain/entities"
	"github.com/stack-service/tax_service/internal/domain/policy"
	infra "github.com/stack-service/tax_service/internal/infrastructure/repositories"
	"github.com/stack-service/tax_service/pkg/errors"
	"github.com/stack-service/tax_service/pkg/logger"
)

type MockJurisdictionDataSource struct {
	mock.Mock
}

func (m *MockJurisdictionDataSource) LoadAustrianAggregates(ctx context.Context, taxYear int) (*entities.JurisdictionAggregates, error) {
	args := m.Called(ctx, taxYear)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.JurisdictionAggregates), args.Error(1)
}

func (m *MockJurisdictionDataSource) LoadSwissAggregates(ctx context.Context, taxYear int, canton string) (*entities.JurisdictionAggregates, error) {
	args := m.Called(ctx, taxYear, canton)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.JurisdictionAggregates), args.Error(1)
}

func (m *MockJurisdictionDataSource) LoadGermanAggregates(ctx context.Context, taxYear int) (*entities.JurisdictionAggregates, error) {
	args := m.Called(ctx, taxYear)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.JurisdictionAggregates), args.Error(1)
}

func createTestService(t *testing.T) (*Service, *infra.MemoryStore) {
	t.Helper()
	store := infra.NewMemoryStore()
	repo := infra.NewTaxRepository(store, zap.NewNop())
	return NewService(repo, NewEvaluator(policy.Default()), logger.NewNop()), store
}

func seed(t *testing.T, store *infra.MemoryStore, collection string, records ...interface{}) {
	t.Helper()
	for _, r := range records {
		_, err := store.Create(context.Background(), collection, r)
		require.NoError(t, err)
	}
}

func TestService_OptimizeAustriaRanksAndTotals(t *testing.T) {
	svc, store := createTestService(t)
	seed(t, store, entities.CollectionAustrianInvestmentIncome,
		&entities.AustrianInvestmentIncome{TaxYear: 2024, GrossIncome: dec("6000"), KestPaid: dec("1650"), RealizedLosses: dec("600")},
		&entities.AustrianInvestmentIncome{TaxYear: 2024, GrossIncome: dec("4000"), KestPaid: dec("1100"), RealizedLosses: dec("400")},
		&entities.AustrianInvestmentIncome{TaxYear: 2023, GrossIncome: dec("99999"), KestPaid: dec("99999")},
	)

	result, err := svc.Optimize(context.Background(), &entities.OptimizationRequest{Country: "at", TaxYear: 2024})

	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, entities.CountryAustria, result.Country)
	assert.Equal(t, 2024, result.TaxYear)
	assert.Equal(t, []string{"at_income_deferral", "at_loss_offset", "at_church_tax_exit", "at_allowance_shifting"}, ids(result.Recommendations))
	assert.Equal(t, "2337.1", result.TotalEstimatedSavings.String())
}

func TestService_OptimizeSwissFiltersByCanton(t *testing.T) {
	svc, store := createTestService(t)
	seed(t, store, entities.CollectionSwissWealthPosition,
		&entities.SwissWealthPosition{TaxYear: 2024, Canton: "ZH", AssetValue: dec("800000"), MortgageDebt: dec("200000")},
		&entities.SwissWealthPosition{TaxYear: 2024, Canton: "GE", AssetValue: dec("5000000")},
	)

	result, err := svc.Optimize(context.Background(), &entities.OptimizationRequest{Country: "CH", TaxYear: 2024, Canton: "ZH"})

	require.NoError(t, err)
	assert.Equal(t, []string{"ch_capital_gains_timing", "ch_wealth_tax", "ch_pillar_3a", "ch_mortgage_interest"}, ids(result.Recommendations))
	assert.Equal(t, "11732.32", result.TotalEstimatedSavings.String())
}

func TestService_OptimizeGermany(t *testing.T) {
	svc, store := createTestService(t)
	seed(t, store, entities.CollectionGermanCapitalGain,
		&entities.GermanCapitalGain{TaxYear: 2024, GainAmount: dec("6000"), AllowanceUsed: dec("300")},
		&entities.GermanCapitalGain{TaxYear: 2024, GainAmount: dec("4000")},
	)

	result, err := svc.Optimize(context.Background(), &entities.OptimizationRequest{Country: "DE", TaxYear: 2024})

	require.NoError(t, err)
	assert.Equal(t, []string{"de_staggered_realization", "de_loss_harvesting", "de_church_tax_exit", "de_allowance_maximization"}, ids(result.Recommendations))
	assert.Equal(t, "3306.42", result.TotalEstimatedSavings.String())
}

func TestService_OptimizeUnsupportedCountry(t *testing.T) {
	data := new(MockJurisdictionDataSource)
	svc := NewService(data, NewEvaluator(policy.Default()), logger.NewNop())

	result, err := svc.Optimize(context.Background(), &entities.OptimizationRequest{Country: "FR", TaxYear: 2024})

	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.NotNil(t, result.Recommendations)
	assert.Empty(t, result.Recommendations)
	assert.True(t, result.TotalEstimatedSavings.IsZero())
	data.AssertNotCalled(t, "LoadGermanAggregates", mock.Anything, mock.Anything)
}

func TestService_OptimizeLoadFailure(t *testing.T) {
	ctx := context.Background()
	data := new(MockJurisdictionDataSource)
	svc := NewService(data, NewEvaluator(policy.Default()), logger.NewNop())
	data.On("LoadGermanAggregates", mock.Anything, 2024).Return(nil, stderrors.New("connection reset by peer"))

	result, err := svc.Optimize(ctx, &entities.OptimizationRequest{Country: "DE", TaxYear: 2024})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, errors.CodeEvaluationFailed, errors.GetCode(err))
	assert.Equal(t, http.StatusInternalServerError, errors.GetStatusCode(err))
	assert.Contains(t, err.Error(), "connection reset by peer")
}

func TestService_OptimizeValidation(t *testing.T) {
	svc, _ := createTestService(t)

	tests := []struct {
		name string
		req  *entities.OptimizationRequest
	}{
		{"nil", nil},
		{"missing country", &entities.OptimizationRequest{TaxYear: 2024}},
		{"missing year", &entities.OptimizationRequest{Country: "DE"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Optimize(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, errors.ErrorTypeValidation, errors.GetType(err))
		})
	}
}
