package repositories

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stack-service/tax_service/internal/domain/entities"
	"github.com/stack-service/tax_service/internal/domain/repositories"
	"github.com/stack-service/tax_service/pkg/circuitbreaker"
	"github.com/stack-service/tax_service/pkg/errors"
)

func TestMemoryStore_CreateAndFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Create(ctx, "things", map[string]interface{}{"id": "a", "kind": "x", "year": 2024})
	require.NoError(t, err)
	_, err = store.Create(ctx, "things", map[string]interface{}{"id": "b", "kind": "y", "year": 2024})
	require.NoError(t, err)
	generated, err := store.Create(ctx, "things", map[string]interface{}{"kind": "x", "year": 2023})
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)

	records, err := store.Filter(ctx, "things", repositories.Criteria{"kind": "x", "year": 2024})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].ID)

	all, err := store.Filter(ctx, "things", nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = store.Create(ctx, "things", map[string]interface{}{"id": "a"})
	assert.Equal(t, errors.ErrorTypeConflict, errors.GetType(err))
}

func TestMemoryStore_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	later := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()

	_, err := store.Create(ctx, "things", map[string]interface{}{"id": "a", "status": "pending"})
	require.NoError(t, err)

	store.WithClock(func() time.Time { return later })
	updated, err := store.Update(ctx, "things", "a", map[string]interface{}{"status": "accepted", "id": "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "a", updated.ID)
	assert.Equal(t, later, updated.UpdatedAt)

	var doc map[string]interface{}
	require.NoError(t, updated.Decode(&doc))
	assert.Equal(t, "accepted", doc["status"])
	assert.Equal(t, "a", doc["id"])

	_, err = store.Update(ctx, "things", "missing", map[string]interface{}{"status": "x"})
	assert.True(t, errors.Is(err, errors.ErrRecordNotFound))

	require.NoError(t, store.Delete(ctx, "things", "a"))
	assert.Equal(t, 0, store.Count("things"))
	assert.Equal(t, errors.ErrorTypeNotFound, errors.GetType(store.Delete(ctx, "things", "a")))
}

func TestMemoryStore_WithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, err := store.Create(ctx, "things", map[string]interface{}{"id": "keep"})
	require.NoError(t, err)

	err = store.WithinTx(ctx, func(tx repositories.RecordStore) error {
		if err := tx.Delete(ctx, "things", "keep"); err != nil {
			return err
		}
		if _, err := tx.Create(ctx, "things", map[string]interface{}{"id": "new"}); err != nil {
			return err
		}
		return stderrors.New("abort")
	})

	require.Error(t, err)
	records, err := store.Filter(ctx, "things", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "keep", records[0].ID)
}

type failingStore struct {
	repositories.RecordStore
	err error
}

func (s failingStore) Filter(context.Context, string, repositories.Criteria) ([]repositories.Record, error) {
	return nil, s.err
}

func TestBreakerStore_OpenBreakerMapsToUnavailable(t *testing.T) {
	ctx := context.Background()
	cb := circuitbreaker.New("test_store", circuitbreaker.Config{
		MaxRequests:  1,
		Timeout:      time.Minute,
		MinRequests:  2,
		FailureRatio: 0.5,
	}, nil)
	store := NewBreakerStore(failingStore{err: stderrors.New("dial tcp: connection refused")}, cb)

	for i := 0; i < 2; i++ {
		_, err := store.Filter(ctx, "things", nil)
		require.Error(t, err)
		assert.NotEqual(t, errors.CodeStoreUnavailable, errors.GetCode(err))
	}

	_, err := store.Filter(ctx, "things", nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeStoreUnavailable, errors.GetCode(err))
	assert.Equal(t, http.StatusServiceUnavailable, errors.GetStatusCode(err))
}

func TestBreakerStore_NotFoundDoesNotTrip(t *testing.T) {
	ctx := context.Background()
	cb := circuitbreaker.New("test_store_nf", circuitbreaker.Config{
		MaxRequests:  1,
		Timeout:      time.Minute,
		MinRequests:  1,
		FailureRatio: 0.1,
	}, nil)
	store := NewBreakerStore(NewMemoryStore(), cb)

	for i := 0; i < 3; i++ {
		err := store.Delete(ctx, "things", "missing")
		assert.Equal(t, errors.ErrorTypeNotFound, errors.GetType(err))
	}
}

func TestTaxRepository_SuggestionRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewTaxRepository(NewBreakerStore(NewMemoryStore(), circuitbreaker.New("repo_store", circuitbreaker.DefaultConfig(), nil)), zap.NewNop())

	created, err := repo.Create(ctx, &entities.TaxHarvestingSuggestion{
		PortfolioID:         "p1",
		TaxYear:             2024,
		SuggestionType:      entities.SuggestionTypeRealizeLoss,
		EstimatedTaxSavings: decimal.RequireFromString("527.5"),
		Status:              entities.SuggestionStatusPending,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	listed, err := repo.List(ctx, entities.SuggestionFilter{PortfolioID: "p1", TaxYear: 2024})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.True(t, listed[0].EstimatedTaxSavings.Equal(decimal.RequireFromString("527.5")))

	other, err := repo.List(ctx, entities.SuggestionFilter{PortfolioID: "p1", TaxYear: 2023})
	require.NoError(t, err)
	assert.Empty(t, other)

	updated, err := repo.UpdateStatus(ctx, created.ID, entities.SuggestionStatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, entities.SuggestionStatusAccepted, updated.Status)

	_, err = repo.Get(ctx, "missing")
	assert.Equal(t, errors.CodeSuggestionNotFound, errors.GetCode(err))

	require.NoError(t, repo.Delete(ctx, created.ID))
	assert.Equal(t, errors.CodeSuggestionNotFound, errors.GetCode(repo.Delete(ctx, created.ID)))
}

func TestTaxRepository_GermanAggregates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewTaxRepository(store, zap.NewNop())

	for _, g := range []*entities.GermanCapitalGain{
		{ID: "g1", TaxYear: 2024, GainAmount: decimal.NewFromInt(1500), AllowanceUsed: decimal.NewFromInt(200)},
		{ID: "g2", TaxYear: 2024, GainAmount: decimal.NewFromInt(500), AllowanceUsed: decimal.NewFromInt(100)},
		{ID: "g3", TaxYear: 2023, GainAmount: decimal.NewFromInt(9000)},
	} {
		_, err := store.Create(ctx, entities.CollectionGermanCapitalGain, g)
		require.NoError(t, err)
	}

	agg, err := repo.LoadGermanAggregates(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, entities.CountryGermany, agg.Country)
	assert.True(t, agg.Gains.Equal(decimal.NewFromInt(2000)))
	assert.True(t, agg.UsedAllowance.Equal(decimal.NewFromInt(300)))
}

func TestTaxRepository_SwissAggregatesNormalizeCanton(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo := NewTaxRepository(store, zap.NewNop())

	for _, p := range []*entities.SwissWealthPosition{
		{ID: "w1", TaxYear: 2024, Canton: "ZH", AssetValue: decimal.NewFromInt(600000), MortgageDebt: decimal.NewFromInt(150000)},
		{ID: "w2", TaxYear: 2024, Canton: "BE", AssetValue: decimal.NewFromInt(90000)},
	} {
		_, err := store.Create(ctx, entities.CollectionSwissWealthPosition, p)
		require.NoError(t, err)
	}

	agg, err := repo.LoadSwissAggregates(ctx, 2024, " zh ")
	require.NoError(t, err)
	assert.Equal(t, "ZH", agg.Canton)
	assert.True(t, agg.TotalWealth.Equal(decimal.NewFromInt(600000)), "total wealth %s", agg.TotalWealth)
	assert.True(t, agg.MortgageDebt.Equal(decimal.NewFromInt(150000)))

	all, err := repo.LoadSwissAggregates(ctx, 2024, "")
	require.NoError(t, err)
	assert.True(t, all.TotalWealth.Equal(decimal.NewFromInt(690000)))
}
