package harvesting

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/stack-service/tax_service/internal/domain/entities"
	"github.com/stack-service/tax_service/internal/domain/repositories"
	"github.com/stack-service/tax_service/pkg/errors"
	"github.com/stack-service/tax_service/pkg/logger"
	"github.com/stack-service/tax_service/pkg/metrics"
)

// Lifecycle owns the stored suggestion set of each (portfolio, tax year) scope
type Lifecycle struct {
	repo   repositories.SuggestionRepository
	logger *logger.Logger
}

// NewLifecycle creates a lifecycle manager over repo
func NewLifecycle(repo repositories.SuggestionRepository, log *logger.Logger) *Lifecycle {
	return &Lifecycle{
		repo:   repo,
		logger: log,
	}
}

// Refresh replaces the pending suggestions of a scope with drafts. Pending
// suggestions are deleted before any draft is inserted; suggestions a user
// already acted on are left alone. Both phases share one transaction when
// the repository supports it.
func (l *Lifecycle) Refresh(ctx context.Context, portfolioID string, taxYear int, drafts []*entities.TaxHarvestingSuggestion) ([]*entities.TaxHarvestingSuggestion, error) {
	var created []*entities.TaxHarvestingSuggestion

	err := l.repo.WithinTx(ctx, func(repo repositories.SuggestionRepository) error {
		created = make([]*entities.TaxHarvestingSuggestion, 0, len(drafts))

		pending, err := repo.List(ctx, entities.SuggestionFilter{
			PortfolioID: portfolioID,
			TaxYear:     taxYear,
			Status:      entities.SuggestionStatusPending,
		})
		if err != nil {
			return errors.WrapGeneration(err, "failed to load pending suggestions")
		}

		for _, old := range pending {
			if err := repo.Delete(ctx, old.ID); err != nil {
				if errors.GetType(err) == errors.ErrorTypeNotFound {
					continue
				}
				return errors.WrapGeneration(err, "failed to retract pending suggestion").
					WithDetail("suggestion_id", old.ID)
			}
		}

		for _, draft := range drafts {
			draft.Status = entities.SuggestionStatusPending
			s, err := repo.Create(ctx, draft)
			if err != nil {
				return refreshIncomplete(err, len(created), len(drafts))
			}
			created = append(created, s)
		}

		l.logger.CtxDebug(ctx, "Refreshed pending suggestions",
			"portfolio_id", portfolioID,
			"tax_year", taxYear,
			"retracted", len(pending),
			"created", len(created))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(created) != len(drafts) {
		return nil, refreshIncomplete(nil, len(created), len(drafts))
	}
	return created, nil
}

// ListSuggestions returns stored suggestions matching filter
func (l *Lifecycle) ListSuggestions(ctx context.Context, filter entities.SuggestionFilter) ([]*entities.TaxHarvestingSuggestion, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, errors.NewValidationError(fmt.Sprintf("unknown suggestion status %q", filter.Status))
	}
	suggestions, err := l.repo.List(ctx, filter)
	if err != nil {
		return nil, errors.WrapInternal(err, "failed to list suggestions")
	}
	return suggestions, nil
}

// UpdateStatus moves one suggestion to status if the transition is allowed
func (l *Lifecycle) UpdateStatus(ctx context.Context, id string, status entities.SuggestionStatus) (*entities.TaxHarvestingSuggestion, error) {
	if id == "" {
		return nil, errors.NewValidationError("suggestion id is required")
	}
	if !status.IsValid() {
		return nil, errors.NewValidationError(fmt.Sprintf("unknown suggestion status %q", status))
	}

	current, err := l.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !current.Status.CanTransitionTo(status) {
		return nil, errors.New(errors.ErrorTypeValidation, errors.CodeInvalidStatusTransition,
			fmt.Sprintf("cannot move suggestion from %s to %s", current.Status, status)).
			WithDetail("from", string(current.Status)).
			WithDetail("to", string(status))
	}

	updated, err := l.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	metrics.RecordStatusTransition(string(current.Status), string(status))
	l.logger.CtxInfo(ctx, "Suggestion status updated",
		"suggestion_id", id,
		"from", current.Status,
		"to", status)
	return updated, nil
}

// ExpireStale marks pending suggestions whose validity ended before now as expired
func (l *Lifecycle) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	pending, err := l.repo.List(ctx, entities.SuggestionFilter{Status: entities.SuggestionStatusPending})
	if err != nil {
		return 0, errors.WrapInternal(err, "failed to list pending suggestions")
	}

	expired := 0
	for _, s := range pending {
		if !s.ValidUntil.Before(now) {
			continue
		}
		if _, err := l.repo.UpdateStatus(ctx, s.ID, entities.SuggestionStatusExpired); err != nil {
			if errors.GetType(err) == errors.ErrorTypeNotFound {
				continue
			}
			return expired, errors.WrapInternal(err, "failed to expire suggestion").
				WithDetail("suggestion_id", s.ID)
		}
		expired++
	}

	if expired > 0 {
		metrics.RecordExpiredSuggestions(expired)
	}
	return expired, nil
}

func refreshIncomplete(cause error, created, expected int) *errors.AppError {
	msg := fmt.Sprintf("stored %d of %d suggestions", created, expected)
	return errors.WrapWithType(cause, errors.ErrorTypeInternal, errors.CodeRefreshIncomplete, msg).
		WithDetail("created", strconv.Itoa(created)).
		WithDetail("expected", strconv.Itoa(expected))
}
