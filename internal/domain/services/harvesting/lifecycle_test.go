package harvesting

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stack-service/tax_service/internal/domain/entities"
	"github.com/stack-service/tax_service/internal/domain/repositories"
	"github.com/stack-service/tax_service/pkg/errors"
	"github.com/stack-service/tax_service/pkg/logger"
)

// MockSuggestionRepository is a testify mock of the suggestion repository.
// WithinTx runs fn against the mock itself.
type MockSuggestionRepository struct {
	mock.Mock
}

func (m *MockSuggestionRepository) List(ctx context.Context, filter entities.SuggestionFilter) ([]*entities.TaxHarvestingSuggestion, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.TaxHarvestingSuggestion), args.Error(1)
}

func (m *MockSuggestionRepository) Get(ctx context.Context, id string) (*entities.TaxHarvestingSuggestion, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TaxHarvestingSuggestion), args.Error(1)
}

func (m *MockSuggestionRepository) Create(ctx context.Context, suggestion *entities.TaxHarvestingSuggestion) (*entities.TaxHarvestingSuggestion, error) {
	args := m.Called(ctx, suggestion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TaxHarvestingSuggestion), args.Error(1)
}

func (m *MockSuggestionRepository) UpdateStatus(ctx context.Context, id string, status entities.SuggestionStatus) (*entities.TaxHarvestingSuggestion, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TaxHarvestingSuggestion), args.Error(1)
}

func (m *MockSuggestionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSuggestionRepository) WithinTx(ctx context.Context, fn func(repositories.SuggestionRepository) error) error {
	return fn(m)
}

func pendingFilter() entities.SuggestionFilter {
	return entities.SuggestionFilter{PortfolioID: "p1", TaxYear: 2024, Status: entities.SuggestionStatusPending}
}

func TestLifecycle_RefreshDeletesPendingBeforeCreating(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSuggestionRepository)
	lc := NewLifecycle(repo, logger.NewNop())

	var calls []string
	repo.On("List", ctx, pendingFilter()).Return([]*entities.TaxHarvestingSuggestion{
		{ID: "old-1", Status: entities.SuggestionStatusPending},
		{ID: "old-2", Status: entities.SuggestionStatusPending},
	}, nil)
	repo.On("Delete", ctx, mock.Anything).Run(func(args mock.Arguments) {
		calls = append(calls, "delete:"+args.String(1))
	}).Return(nil)
	repo.On("Create", ctx, mock.Anything).Run(func(args mock.Arguments) {
		calls = append(calls, "create")
	}).Return(&entities.TaxHarvestingSuggestion{ID: "new-1", Status: entities.SuggestionStatusPending}, nil)

	draft := &entities.TaxHarvestingSuggestion{PortfolioID: "p1", TaxYear: 2024}
	created, err := lc.Refresh(ctx, "p1", 2024, []*entities.TaxHarvestingSuggestion{draft})

	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "new-1", created[0].ID)
	assert.Equal(t, []string{"delete:old-1", "delete:old-2", "create"}, calls)
	assert.Equal(t, entities.SuggestionStatusPending, draft.Status)
	repo.AssertExpectations(t)
}

func TestLifecycle_RefreshWithNoDraftsOnlyRetracts(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSuggestionRepository)
	lc := NewLifecycle(repo, logger.NewNop())

	repo.On("List", ctx, pendingFilter()).Return([]*entities.TaxHarvestingSuggestion{{ID: "old-1"}}, nil)
	repo.On("Delete", ctx, "old-1").Return(nil)

	created, err := lc.Refresh(ctx, "p1", 2024, nil)

	require.NoError(t, err)
	assert.Empty(t, created)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLifecycle_RefreshToleratesConcurrentlyDeleted(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSuggestionRepository)
	lc := NewLifecycle(repo, logger.NewNop())

	repo.On("List", ctx, pendingFilter()).Return([]*entities.TaxHarvestingSuggestion{{ID: "gone"}}, nil)
	repo.On("Delete", ctx, "gone").Return(errors.ErrSuggestionNotFound)

	_, err := lc.Refresh(ctx, "p1", 2024, nil)

	assert.NoError(t, err)
}

func TestLifecycle_RefreshPropagatesListError(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSuggestionRepository)
	lc := NewLifecycle(repo, logger.NewNop())

	repo.On("List", ctx, pendingFilter()).Return(nil, stderrors.New("connection refused"))

	_, err := lc.Refresh(ctx, "p1", 2024, []*entities.TaxHarvestingSuggestion{{}})

	require.Error(t, err)
	assert.Equal(t, errors.CodeGenerationFailed, errors.GetCode(err))
	assert.Contains(t, err.Error(), "connection refused")
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLifecycle_RefreshPropagatesDeleteError(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSuggestionRepository)
	lc := NewLifecycle(repo, logger.NewNop())

	repo.On("List", ctx, pendingFilter()).Return([]*entities.TaxHarvestingSuggestion{{ID: "old-1"}}, nil)
	repo.On("Delete", ctx, "old-1").Return(stderrors.New("disk full"))

	_, err := lc.Refresh(ctx, "p1", 2024, []*entities.TaxHarvestingSuggestion{{}})

	require.Error(t, err)
	assert.Equal(t, errors.CodeGenerationFailed, errors.GetCode(err))
	assert.Equal(t, "old-1", errors.GetDetails(err)["suggestion_id"])
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLifecycle_RefreshReportsPartialCreation(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSuggestionRepository)
	lc := NewLifecycle(repo, logger.NewNop())

	first := &entities.TaxHarvestingSuggestion{AssetID: "a1"}
	second := &entities.TaxHarvestingSuggestion{AssetID: "a2"}
	third := &entities.TaxHarvestingSuggestion{AssetID: "a3"}

	repo.On("List", ctx, pendingFilter()).Return([]*entities.TaxHarvestingSuggestion{}, nil)
	repo.On("Create", ctx, first).Return(&entities.TaxHarvestingSuggestion{ID: "1"}, nil)
	repo.On("Create", ctx, second).Return(nil, stderrors.New("write timeout"))

	_, err := lc.Refresh(ctx, "p1", 2024, []*entities.TaxHarvestingSuggestion{first, second, third})

	require.Error(t, err)
	assert.Equal(t, errors.CodeRefreshIncomplete, errors.GetCode(err))
	details := errors.GetDetails(err)
	assert.Equal(t, "1", details["created"])
	assert.Equal(t, "3", details["expected"])
	repo.AssertNotCalled(t, "Create", ctx, third)
}

func TestLifecycle_UpdateStatus(t *testing.T) {
	tests := []struct {
		name     string
		current  entities.SuggestionStatus
		next     entities.SuggestionStatus
		wantCode string
	}{
		{"pending to accepted", entities.SuggestionStatusPending, entities.SuggestionStatusAccepted, ""},
		{"pending to dismissed", entities.SuggestionStatusPending, entities.SuggestionStatusDismissed, ""},
		{"pending to executed", entities.SuggestionStatusPending, entities.SuggestionStatusExecuted, ""},
		{"accepted to executed", entities.SuggestionStatusAccepted, entities.SuggestionStatusExecuted, ""},
		{"executed is final", entities.SuggestionStatusExecuted, entities.SuggestionStatusPending, errors.CodeInvalidStatusTransition},
		{"dismissed is final", entities.SuggestionStatusDismissed, entities.SuggestionStatusAccepted, errors.CodeInvalidStatusTransition},
		{"expired is final", entities.SuggestionStatusExpired, entities.SuggestionStatusAccepted, errors.CodeInvalidStatusTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := new(MockSuggestionRepository)
			lc := NewLifecycle(repo, logger.NewNop())

			repo.On("Get", ctx, "s1").Return(&entities.TaxHarvestingSuggestion{ID: "s1", Status: tt.current}, nil)
			if tt.wantCode == "" {
				repo.On("UpdateStatus", ctx, "s1", tt.next).
					Return(&entities.TaxHarvestingSuggestion{ID: "s1", Status: tt.next}, nil)
			}

			updated, err := lc.UpdateStatus(ctx, "s1", tt.next)

			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errors.GetCode(err))
				assert.Equal(t, errors.ErrorTypeValidation, errors.GetType(err))
				repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.next, updated.Status)
		})
	}
}

func TestLifecycle_UpdateStatusRejectsUnknownStatus(t *testing.T) {
	repo := new(MockSuggestionRepository)
	lc := NewLifecycle(repo, logger.NewNop())

	_, err := lc.UpdateStatus(context.Background(), "s1", entities.SuggestionStatus("archived"))

	require.Error(t, err)
	assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
	repo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestLifecycle_UpdateStatusUnknownID(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSuggestionRepository)
	lc := NewLifecycle(repo, logger.NewNop())

	repo.On("Get", ctx, "missing").Return(nil, errors.ErrSuggestionNotFound)

	_, err := lc.UpdateStatus(ctx, "missing", entities.SuggestionStatusAccepted)

	assert.True(t, errors.Is(err, errors.ErrSuggestionNotFound))
}

func TestLifecycle_ExpireStale(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSuggestionRepository)
	lc := NewLifecycle(repo, logger.NewNop())
	now := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)

	repo.On("List", ctx, entities.SuggestionFilter{Status: entities.SuggestionStatusPending}).Return([]*entities.TaxHarvestingSuggestion{
		{ID: "stale", ValidUntil: now.Add(-time.Hour)},
		{ID: "fresh", ValidUntil: now.Add(time.Hour)},
		{ID: "exact", ValidUntil: now},
	}, nil)
	repo.On("UpdateStatus", ctx, "stale", entities.SuggestionStatusExpired).
		Return(&entities.TaxHarvestingSuggestion{ID: "stale", Status: entities.SuggestionStatusExpired}, nil)

	count, err := lc.ExpireStale(ctx, now)

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	repo.AssertNumberOfCalls(t, "UpdateStatus", 1)
}
