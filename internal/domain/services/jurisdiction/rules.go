package jurisdiction

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/stack-service/tax_service/internal/domain/entities"
	"github.com/stack-service/tax_service/internal/domain/policy"
)

// params resolves the policy constants of one rule for one tax year
type params struct {
	table   *policy.Table
	country string
	ruleID  string
	year    int
}

func (p params) get(name string) decimal.Decimal {
	return p.table.Value(p.country, p.ruleID, name, p.year)
}

// Rule is one entry of the jurisdiction rule table
type Rule struct {
	ID           string
	Country      entities.Country
	PlanningType string
	Title        string
	Description  string
	Effort       entities.Level
	Risk         entities.Level
	// Deadline is the month-day suffix appended to the tax year
	Deadline string
	Applies  func(a *entities.JurisdictionAggregates, p params) bool
	Savings  func(a *entities.JurisdictionAggregates, p params) decimal.Decimal
}

func always(*entities.JurisdictionAggregates, params) bool { return true }

// Rules is the ordered rule table; evaluation order is table order
var Rules = []Rule{
	// Austria
	{
		ID:           "at_allowance_shifting",
		Country:      entities.CountryAustria,
		PlanningType: "allowance_optimization",
		Title:        "Shift investment income to a lower-taxed family member",
		Description:  "KESt withheld is high relative to gross investment income. Moving income-producing assets can use the allowance of another household member.",
		Effort:       entities.LevelLow,
		Risk:         entities.LevelLow,
		Deadline:     "12-31",
		Applies: func(a *entities.JurisdictionAggregates, p params) bool {
			if !a.GrossIncome.IsPositive() {
				return false
			}
			return a.KestPaid.Div(a.GrossIncome).GreaterThan(p.get(policy.ParamThreshold))
		},
		Savings: func(a *entities.JurisdictionAggregates, p params) decimal.Decimal {
			return decimal.Min(p.get(policy.ParamAllowance).Mul(p.get(policy.ParamRate)), a.KestPaid)
		},
	},
	{
		ID:           "at_loss_offset",
		Country:      entities.CountryAustria,
		PlanningType: "loss_offset",
		Title:        "Offset realized losses against investment income",
		Description:  "Realized losses can be netted against positive investment income of the same year across depots.",
		Effort:       entities.LevelMedium,
		Risk:         entities.LevelLow,
		Deadline:     "12-31",
		Applies: func(a *entities.JurisdictionAggregates, p params) bool {
			return a.RealizedLosses.GreaterThan(p.get(policy.ParamThreshold))
		},
		Savings: func(a *entities.JurisdictionAggregates, p params) decimal.Decimal {
			return a.RealizedLosses.Mul(p.get(policy.ParamMarginalRate))
		},
	},
	{
		ID:           "at_income_deferral",
		Country:      entities.CountryAustria,
		PlanningType: "income_timing",
		Title:        "Defer investment income into the next tax year",
		Description:  "Postponing distributions or sales to January spreads income across tax years.",
		Effort:       entities.LevelMedium,
		Risk:         entities.LevelMedium,
		Deadline:     "12-15",
		Applies: func(a *entities.JurisdictionAggregates, p params) bool {
			return a.GrossIncome.GreaterThan(p.get(policy.ParamThreshold))
		},
		Savings: func(a *entities.JurisdictionAggregates, p params) decimal.Decimal {
			return a.GrossIncome.Mul(p.get(policy.ParamRate))
		},
	},
	{
		ID:           "at_church_tax_exit",
		Country:      entities.CountryAustria,
		PlanningType: "church_tax",
		Title:        "Review church tax liability",
		Description:  "Leaving the church before mid-year removes church contributions on investment income.",
		Effort:       entities.LevelHigh,
		Risk:         entities.LevelLow,
		Deadline:     "06-30",
		Applies:      always,
		Savings: func(a *entities.JurisdictionAggregates, p params) decimal.Decimal {
			return a.KestPaid.Mul(p.get(policy.ParamRate))
		},
	},

	// Switzerland
	{
		ID:           "ch_mortgage_interest",
		Country:      entities.CountrySwitzerland,
		PlanningType: "debt_structuring",
		Title:        "Keep mortgage debt to deduct interest",
		Description:  "Mortgage interest is deductible from taxable income and the debt reduces taxable wealth.",
		Effort:       entities.LevelMedium,
		Risk:         entities.LevelLow,
		Deadline:     "12-31",
		Applies: func(a *entities.JurisdictionAggregates, p params) bool {
			return a.MortgageDebt.GreaterThan(p.get(policy.ParamThreshold))
		},
		Savings: func(a *entities.JurisdictionAggregates, p params) decimal.Decimal {
			return a.MortgageDebt.Mul(p.get(policy.ParamRate)).Mul(p.get(policy.ParamMarginalRate))
		},
	},
	{
		ID:           "ch_wealth_tax",
		Country:      entities.CountrySwitzerland,
		PlanningType: "wealth_tax",
		Title:        "Reduce wealth tax exposure",
		Description:  "Wealth above the threshold can be restructured into tax-privileged forms such as pension buy-ins.",
		Effort:       entities.LevelHigh,
		Risk:         entities.LevelMedium,
		Deadline:     "12-31",
		Applies: func(a *entities.JurisdictionAggregates, p params) bool {
			return a.TotalWealth.GreaterThan(p.get(policy.ParamThreshold))
		},
		Savings: func(a *entities.JurisdictionAggregates, p params) decimal.Decimal {
			return a.TotalWealth.Sub(p.get(policy.ParamThreshold)).
				Mul(p.get(policy.ParamYield)).
				Mul(p.get(policy.ParamFactor))
		},
	},
	{
		ID:           "ch_capital_gains_timing",
		Country:      entities.CountrySwitzerland,
		PlanningType: "capital_gains_timing",
		Title:        "Keep private capital gains tax-free",
		Description:  "Avoid trading patterns that would classify you as a professional securities dealer.",
		Effort:       entities.LevelMedium,
		Risk:         entities.LevelMedium,
		Deadline:     "12-31",
		Applies:      always,
		Savings: func(a *entities.JurisdictionAggregates, p params) decimal.Decimal {
			return a.TotalWealth.Mul(p.get(policy.ParamYield)).Mul(p.get(policy.ParamFactor))
		},
	},
	{
		ID:           "ch_pillar_3a",
		Country:      entities.CountrySwitzerland,
		PlanningType: "pension_contribution",
		Title:        "Maximize Pillar 3a contributions",
		Description:  "Contributions to a Pillar 3a account are deductible from taxable income up to the annual maximum.",
		Effort:       entities.LevelLow,
		Risk:         entities.LevelLow,
		Deadline:     "12-31",
		Applies:      always,
		Savings: func(a *entities.JurisdictionAggregates, p params) decimal.Decimal {
			return p.get(policy.ParamContribution).Mul(p.get(policy.ParamMarginalRate))
		},
	},

	// Germany
	{
		ID:           "de_allowance_maximization",
		Country:      entities.CountryGermany,
		PlanningType: "allowance_optimization",
		Title:        "Use the remaining saver allowance",
		Description:  "Realize gains up to the unused Sparer-Pauschbetrag before year end.",
		Effort:       entities.LevelLow,
		Risk:         entities.LevelLow,
		Deadline:     "12-31",
		Applies: func(a *entities.JurisdictionAggregates, p params) bool {
			return a.UsedAllowance.LessThan(p.get(policy.ParamAllowance))
		},
		Savings: func(a *entities.JurisdictionAggregates, p params) decimal.Decimal {
			return p.get(policy.ParamAllowance).Sub(a.UsedAllowance).Mul(p.get(policy.ParamMarginalRate))
		},
	},
	{
		ID:           "de_staggered_realization",
		Country:      entities.CountryGermany,
		PlanningType: "income_timing",
		Title:        "Stagger gain realization across tax years",
		Description:  "Splitting large realizations over several years uses the allowance more than once.",
		Effort:       entities.LevelMedium,
		Risk:         entities.LevelMedium,
		Deadline:     "12-31",
		Applies: func(a *entities.JurisdictionAggregates, p params) bool {
			return a.Gains.GreaterThan(p.get(policy.ParamThreshold))
		},
		Savings: func(a *entities.JurisdictionAggregates, p params) decimal.Decimal {
			return a.Gains.Mul(p.get(policy.ParamRate))
		},
	},
	{
		ID:           "de_loss_harvesting",
		Country:      entities.CountryGermany,
		PlanningType: "loss_harvesting",
		Title:        "Harvest unrealized losses",
		Description:  "Selling positions with unrealized losses offsets gains realized this year.",
		Effort:       entities.LevelMedium,
		Risk:         entities.LevelMedium,
		Deadline:     "12-15",
		Applies:      always,
		Savings: func(a *entities.JurisdictionAggregates, p params) decimal.Decimal {
			return a.Gains.Mul(p.get(policy.ParamMarginalRate)).Mul(p.get(policy.ParamFactor))
		},
	},
	{
		ID:           "de_church_tax_exit",
		Country:      entities.CountryGermany,
		PlanningType: "church_tax",
		Title:        "Review church tax on capital income",
		Description:  "Church tax is levied on top of the flat withholding tax on capital income.",
		Effort:       entities.LevelHigh,
		Risk:         entities.LevelLow,
		Deadline:     "06-30",
		Applies:      always,
		Savings: func(a *entities.JurisdictionAggregates, p params) decimal.Decimal {
			return a.Gains.Mul(p.get(policy.ParamMarginalRate)).Mul(p.get(policy.ParamRate))
		},
	},
}

// Evaluator applies the rule table to aggregates
type Evaluator struct {
	rules  []Rule
	policy *policy.Table
}

// NewEvaluator creates an evaluator over the default rule table
func NewEvaluator(table *policy.Table) *Evaluator {
	if table == nil {
		table = policy.Default()
	}
	return &Evaluator{rules: Rules, policy: table}
}

// SupportsCountry reports whether any rule exists for country
func (e *Evaluator) SupportsCountry(country entities.Country) bool {
	for _, r := range e.rules {
		if r.Country == country {
			return true
		}
	}
	return false
}

// Evaluate returns the recommendations fired for country in table order.
// Unknown countries yield an empty list.
func (e *Evaluator) Evaluate(country entities.Country, taxYear int, agg *entities.JurisdictionAggregates) []*entities.Recommendation {
	recommendations := make([]*entities.Recommendation, 0)
	if agg == nil {
		agg = &entities.JurisdictionAggregates{Country: country, TaxYear: taxYear}
	}

	for _, rule := range e.rules {
		if rule.Country != country {
			continue
		}
		p := params{table: e.policy, country: string(country), ruleID: rule.ID, year: taxYear}
		if !rule.Applies(agg, p) {
			continue
		}

		recommendations = append(recommendations, &entities.Recommendation{
			RuleID:               rule.ID,
			PlanningType:         rule.PlanningType,
			Title:                rule.Title,
			Description:          rule.Description,
			EstimatedSavings:     rule.Savings(agg, p),
			ImplementationEffort: rule.Effort,
			RiskLevel:            rule.Risk,
			Deadline:             fmt.Sprintf("%04d-%s", taxYear, rule.Deadline),
		})
	}

	return recommendations
}

// NormalizeCountry upper-cases and trims a country code
func NormalizeCountry(code string) entities.Country {
	return entities.Country(strings.ToUpper(strings.TrimSpace(code)))
}
