package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stack-service/tax_service/internal/domain/entities"
)

// Criteria is an equality filter over top-level record fields
type Criteria map[string]interface{}

// Record is one stored document of a collection
type Record struct {
	ID        string          `db:"id"`
	Data      json.RawMessage `db:"data"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// Decode unmarshals the record payload into v
func (r Record) Decode(v interface{}) error {
	return json.Unmarshal(r.Data, v)
}

// RecordStore is the generic document store every repository is built on
type RecordStore interface {
	Filter(ctx context.Context, collection string, criteria Criteria) ([]Record, error)
	Create(ctx context.Context, collection string, data interface{}) (Record, error)
	Update(ctx context.Context, collection, id string, patch map[string]interface{}) (Record, error)
	Delete(ctx context.Context, collection, id string) error
}

// Transactor is implemented by stores able to run work atomically
type Transactor interface {
	WithinTx(ctx context.Context, fn func(RecordStore) error) error
}

// HarvestingDataSource loads the inputs of a suggestion generation run
type HarvestingDataSource interface {
	// GetTaxSummary returns nil, nil when no summary exists for the scope
	GetTaxSummary(ctx context.Context, portfolioID string, taxYear int) (*entities.TaxSummary, error)
	ListPortfolioAccounts(ctx context.Context, portfolioID string) ([]*entities.PortfolioAccount, error)
	ListHoldings(ctx context.Context, accountID string) ([]*entities.AssetHolding, error)
	// GetAsset returns nil, nil when the asset reference is dangling
	GetAsset(ctx context.Context, assetID string) (*entities.Asset, error)
	ListTaxLots(ctx context.Context, holdingID string) ([]*entities.TaxLot, error)
}

// SuggestionRepository persists harvesting suggestions
type SuggestionRepository interface {
	List(ctx context.Context, filter entities.SuggestionFilter) ([]*entities.TaxHarvestingSuggestion, error)
	Get(ctx context.Context, id string) (*entities.TaxHarvestingSuggestion, error)
	Create(ctx context.Context, suggestion *entities.TaxHarvestingSuggestion) (*entities.TaxHarvestingSuggestion, error)
	UpdateStatus(ctx context.Context, id string, status entities.SuggestionStatus) (*entities.TaxHarvestingSuggestion, error)
	Delete(ctx context.Context, id string) error
	// WithinTx runs fn against a repository bound to one transaction when the
	// backing store supports it, otherwise against the receiver itself.
	WithinTx(ctx context.Context, fn func(SuggestionRepository) error) error
}

// JurisdictionDataSource loads per-country aggregates for rule evaluation
type JurisdictionDataSource interface {
	LoadAustrianAggregates(ctx context.Context, taxYear int) (*entities.JurisdictionAggregates, error)
	LoadSwissAggregates(ctx context.Context, taxYear int, canton string) (*entities.JurisdictionAggregates, error)
	LoadGermanAggregates(ctx context.Context, taxYear int) (*entities.JurisdictionAggregates, error)
}
