package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Country is an ISO 3166 alpha-2 code of a tax jurisdiction
type Country string

const (
	CountryAustria     Country = "AT"
	CountrySwitzerland Country = "CH"
	CountryGermany     Country = "DE"
)

// Level grades implementation effort and risk of a recommendation
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Recommendation is one fired jurisdiction rule; it is returned, never stored
type Recommendation struct {
	RuleID               string          `json:"rule_id"`
	PlanningType         string          `json:"planning_type"`
	Title                string          `json:"title"`
	Description          string          `json:"description"`
	EstimatedSavings     decimal.Decimal `json:"estimated_savings"`
	ImplementationEffort Level           `json:"implementation_effort"`
	RiskLevel            Level           `json:"risk_level"`
	Deadline             string          `json:"deadline"`
}

// JurisdictionAggregates are the raw per-country figures rules are evaluated against
type JurisdictionAggregates struct {
	Country Country `json:"country"`
	TaxYear int     `json:"tax_year"`
	Canton  string  `json:"canton,omitempty"`

	// AT
	GrossIncome    decimal.Decimal `json:"gross_income"`
	KestPaid       decimal.Decimal `json:"kest_paid"`
	RealizedLosses decimal.Decimal `json:"realized_losses"`

	// CH
	TotalWealth  decimal.Decimal `json:"total_wealth"`
	MortgageDebt decimal.Decimal `json:"mortgage_debt"`

	// DE
	Gains         decimal.Decimal `json:"gains"`
	UsedAllowance decimal.Decimal `json:"used_allowance"`
}

// AustrianInvestmentIncome is one income line of an Austrian investor
type AustrianInvestmentIncome struct {
	ID             string          `json:"id"`
	TaxYear        int             `json:"tax_year"`
	Source         string          `json:"source,omitempty"`
	GrossIncome    decimal.Decimal `json:"gross_income"`
	KestPaid       decimal.Decimal `json:"kest_paid"`
	RealizedLosses decimal.Decimal `json:"realized_losses"`
}

// SwissWealthPosition is one asset/liability line of a Swiss taxpayer
type SwissWealthPosition struct {
	ID           string          `json:"id"`
	TaxYear      int             `json:"tax_year"`
	Canton       string          `json:"canton,omitempty"`
	Description  string          `json:"description,omitempty"`
	AssetValue   decimal.Decimal `json:"asset_value"`
	MortgageDebt decimal.Decimal `json:"mortgage_debt"`
}

// GermanCapitalGain is one realized capital income line of a German investor
type GermanCapitalGain struct {
	ID            string          `json:"id"`
	TaxYear       int             `json:"tax_year"`
	RealizedAt    *time.Time      `json:"realized_at,omitempty"`
	GainAmount    decimal.Decimal `json:"gain_amount"`
	AllowanceUsed decimal.Decimal `json:"allowance_used"`
}

// OptimizationRequest is the input of the jurisdiction entry point
type OptimizationRequest struct {
	Country string `json:"country"`
	TaxYear int    `json:"taxYear"`
	Canton  string `json:"canton,omitempty"`
}

// OptimizationResult is the ranked output of a jurisdiction evaluation
type OptimizationResult struct {
	Status                string            `json:"status"`
	Country               Country           `json:"country"`
	TaxYear               int               `json:"tax_year"`
	Recommendations       []*Recommendation `json:"recommendations"`
	TotalEstimatedSavings decimal.Decimal   `json:"total_estimated_savings"`
}
