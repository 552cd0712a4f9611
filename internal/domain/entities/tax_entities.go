package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record collection names in the backing store
const (
	CollectionPortfolio                = "Portfolio"
	CollectionPortfolioAccount         = "PortfolioAccount"
	CollectionAssetHolding             = "AssetHolding"
	CollectionAsset                    = "Asset"
	CollectionTaxLot                   = "TaxLot"
	CollectionTaxSummary               = "TaxSummary"
	CollectionTaxHarvestingSuggestion  = "TaxHarvestingSuggestion"
	CollectionAustrianInvestmentIncome = "AustrianInvestmentIncome"
	CollectionSwissWealthPosition      = "SwissWealthPosition"
	CollectionGermanCapitalGain        = "GermanCapitalGain"
)

// AssetClass is the reference classification of an asset
type AssetClass string

const (
	AssetClassCrypto        AssetClass = "crypto"
	AssetClassPreciousMetal AssetClass = "precious_metal"
	AssetClassStock         AssetClass = "stock"
	AssetClassFund          AssetClass = "fund"
	AssetClassBond          AssetClass = "bond"
	AssetClassRealEstate    AssetClass = "real_estate"
	AssetClassOther         AssetClass = "other"
)

// HasHoldingPeriodExemption reports whether gains become tax-free after the holding period
func (c AssetClass) HasHoldingPeriodExemption() bool {
	return c == AssetClassCrypto || c == AssetClassPreciousMetal
}

// TaxLotStatus tracks how much of an acquisition tranche is still held
type TaxLotStatus string

const (
	TaxLotStatusOpen          TaxLotStatus = "open"
	TaxLotStatusPartiallySold TaxLotStatus = "partially_sold"
	TaxLotStatusClosed        TaxLotStatus = "closed"
)

// IsLive reports whether the lot still backs part of the position
func (s TaxLotStatus) IsLive() bool {
	return s == TaxLotStatusOpen || s == TaxLotStatusPartiallySold
}

// Portfolio groups accounts owned by one client
type Portfolio struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PortfolioAccount is a depot or wallet inside a portfolio
type PortfolioAccount struct {
	ID          string `json:"id"`
	PortfolioID string `json:"portfolio_id"`
	Name        string `json:"name,omitempty"`
}

// AssetHolding is a position within a portfolio account
type AssetHolding struct {
	ID                 string          `json:"id"`
	PortfolioAccountID string          `json:"portfolio_account_id"`
	AssetID            string          `json:"asset_id"`
	Quantity           decimal.Decimal `json:"quantity"`
	UnrealizedGainLoss decimal.Decimal `json:"unrealized_gain_loss"`
}

// Asset is reference data for a tradable instrument
type Asset struct {
	ID         string     `json:"id"`
	Symbol     string     `json:"symbol,omitempty"`
	Name       string     `json:"name,omitempty"`
	AssetClass AssetClass `json:"asset_class"`
}

// TaxLot is one acquisition tranche backing a holding
type TaxLot struct {
	ID                string          `json:"id"`
	AssetHoldingID    string          `json:"asset_holding_id"`
	AcquisitionDate   *time.Time      `json:"acquisition_date,omitempty"`
	Quantity          decimal.Decimal `json:"quantity"`
	CostBasis         decimal.Decimal `json:"cost_basis"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	HoldingPeriodEnd  *time.Time      `json:"holding_period_end,omitempty"`
	Status            TaxLotStatus    `json:"status"`
}

// TaxSummary aggregates realized figures for a (portfolio, tax year) pair
type TaxSummary struct {
	ID                      string          `json:"id"`
	PortfolioID             string          `json:"portfolio_id"`
	TaxYear                 int             `json:"tax_year"`
	TotalCapitalGainsStocks decimal.Decimal `json:"total_capital_gains_stocks"`
	TotalCapitalGainsFunds  decimal.Decimal `json:"total_capital_gains_funds"`
	TotalCapitalGainsOther  decimal.Decimal `json:"total_capital_gains_other"`
	SaverAllowanceRemaining decimal.Decimal `json:"saver_allowance_remaining"`
}

// HasRealizedGains reports whether stock or fund gains were realized this year
func (s *TaxSummary) HasRealizedGains() bool {
	return s.TotalCapitalGainsStocks.IsPositive() || s.TotalCapitalGainsFunds.IsPositive()
}

// SuggestionType is the kind of tax move a suggestion proposes
type SuggestionType string

const (
	SuggestionTypeRealizeLoss        SuggestionType = "realize_loss"
	SuggestionTypeDeferSale          SuggestionType = "defer_sale"
	SuggestionTypeRealizeGainTaxFree SuggestionType = "realize_gain_tax_free"
	SuggestionTypeUseAllowance       SuggestionType = "use_allowance"
)

// Priority ranks how urgent a suggestion is
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// SuggestionStatus is the lifecycle state of a stored suggestion
type SuggestionStatus string

const (
	SuggestionStatusPending   SuggestionStatus = "pending"
	SuggestionStatusAccepted  SuggestionStatus = "accepted"
	SuggestionStatusDismissed SuggestionStatus = "dismissed"
	SuggestionStatusExecuted  SuggestionStatus = "executed"
	SuggestionStatusExpired   SuggestionStatus = "expired"
)

// IsValid reports whether the status is one of the known states
func (s SuggestionStatus) IsValid() bool {
	switch s {
	case SuggestionStatusPending, SuggestionStatusAccepted, SuggestionStatusDismissed,
		SuggestionStatusExecuted, SuggestionStatusExpired:
		return true
	}
	return false
}

// CanTransitionTo encodes the allowed status moves for a suggestion
func (s SuggestionStatus) CanTransitionTo(next SuggestionStatus) bool {
	switch s {
	case SuggestionStatusPending:
		return next == SuggestionStatusAccepted || next == SuggestionStatusDismissed ||
			next == SuggestionStatusExecuted || next == SuggestionStatusExpired
	case SuggestionStatusAccepted:
		return next == SuggestionStatusExecuted || next == SuggestionStatusDismissed
	default:
		return false
	}
}

// TaxHarvestingSuggestion is a generated, actionable tax move
type TaxHarvestingSuggestion struct {
	ID                        string           `json:"id"`
	PortfolioID               string           `json:"portfolio_id"`
	TaxYear                   int              `json:"tax_year"`
	AssetID                   string           `json:"asset_id"`
	AssetHoldingID            string           `json:"asset_holding_id"`
	TaxLotID                  string           `json:"tax_lot_id,omitempty"`
	SuggestionType            SuggestionType   `json:"suggestion_type"`
	CurrentUnrealizedGainLoss decimal.Decimal  `json:"current_unrealized_gain_loss"`
	SuggestedQuantity         decimal.Decimal  `json:"suggested_quantity"`
	EstimatedTaxSavings       decimal.Decimal  `json:"estimated_tax_savings"`
	Priority                  Priority         `json:"priority"`
	DaysUntilTaxExempt        *int             `json:"days_until_tax_exempt,omitempty"`
	Reasoning                 string           `json:"reasoning"`
	Status                    SuggestionStatus `json:"status"`
	ValidUntil                time.Time        `json:"valid_until"`
	CreatedAt                 time.Time        `json:"created_at"`
}

// SuggestionFilter narrows suggestion listings; empty fields are ignored
type SuggestionFilter struct {
	PortfolioID string
	TaxYear     int
	Status      SuggestionStatus
}

// GenerateSuggestionsRequest is the input of the harvesting entry point
type GenerateSuggestionsRequest struct {
	PortfolioID string `json:"portfolio_id" binding:"required"`
	TaxYear     int    `json:"tax_year" binding:"required"`
}

// GenerateSuggestionsResponse is the output of the harvesting entry point
type GenerateSuggestionsResponse struct {
	Success     bool                       `json:"success"`
	Suggestions []*TaxHarvestingSuggestion `json:"suggestions"`
	Count       int                        `json:"count"`
}

// UpdateSuggestionStatusRequest moves a suggestion through its lifecycle
type UpdateSuggestionStatusRequest struct {
	Status SuggestionStatus `json:"status" binding:"required"`
}
