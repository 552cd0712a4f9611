// Package policy holds the numeric tax constants used by the harvesting
// generator and the jurisdiction rules, keyed by country, rule and tax year.
package policy

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Rule ids grouping constants that are not tied to a jurisdiction rule
const (
	RuleHarvesting = "harvesting"
)

// Parameter names shared across rules
const (
	ParamWithholdingRate     = "withholding_rate"
	ParamLossHighThreshold   = "loss_high_threshold"
	ParamLossMediumThreshold = "loss_medium_threshold"
	ParamDeferWindowDays     = "defer_window_days"
	ParamUrgentWindowDays    = "urgent_window_days"

	ParamThreshold    = "threshold"
	ParamRate         = "rate"
	ParamMarginalRate = "marginal_rate"
	ParamAllowance    = "allowance"
	ParamFactor       = "factor"
	ParamYield        = "yield"
	ParamContribution = "max_contribution"
)

// Key identifies one constant independently of the tax year
type Key struct {
	Country string
	RuleID  string
	Param   string
}

type yearValue struct {
	year  int
	value decimal.Decimal
}

// Table resolves constants by (country, rule, param, tax year). A lookup uses
// the exact year, else the latest earlier year, else the default entry.
type Table struct {
	mu       sync.RWMutex
	defaults map[Key]decimal.Decimal
	years    map[Key][]yearValue
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{
		defaults: make(map[Key]decimal.Decimal),
		years:    make(map[Key][]yearValue),
	}
}

// SetDefault stores the value used when no year-specific entry applies
func (t *Table) SetDefault(country, ruleID, param string, value decimal.Decimal) *Table {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.defaults[Key{country, ruleID, param}] = value
	return t
}

// SetForYear stores a value effective from taxYear onwards
func (t *Table) SetForYear(country, ruleID, param string, taxYear int, value decimal.Decimal) *Table {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := Key{country, ruleID, param}
	entries := t.years[key]
	for i := range entries {
		if entries[i].year == taxYear {
			entries[i].value = value
			return t
		}
	}
	entries = append(entries, yearValue{year: taxYear, value: value})
	sort.Slice(entries, func(i, j int) bool { return entries[i].year < entries[j].year })
	t.years[key] = entries
	return t
}

// Lookup returns the constant effective for taxYear and whether one exists
func (t *Table) Lookup(country, ruleID, param string, taxYear int) (decimal.Decimal, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	key := Key{country, ruleID, param}
	entries := t.years[key]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].year <= taxYear {
			return entries[i].value, true
		}
	}

	value, ok := t.defaults[key]
	return value, ok
}

// Value is Lookup returning zero for unknown constants
func (t *Table) Value(country, ruleID, param string, taxYear int) decimal.Decimal {
	value, _ := t.Lookup(country, ruleID, param, taxYear)
	return value
}

// Int returns the constant truncated to an int
func (t *Table) Int(country, ruleID, param string, taxYear int) int {
	return int(t.Value(country, ruleID, param, taxYear).IntPart())
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Default returns a table preloaded with the constants in force for the
// covered tax years
func Default() *Table {
	t := NewTable()

	// Suggestion generator, German flat withholding incl. solidarity surcharge
	t.SetDefault("DE", RuleHarvesting, ParamWithholdingRate, d("0.26375"))
	t.SetDefault("DE", RuleHarvesting, ParamLossHighThreshold, d("500"))
	t.SetDefault("DE", RuleHarvesting, ParamLossMediumThreshold, d("100"))
	t.SetDefault("DE", RuleHarvesting, ParamDeferWindowDays, d("30"))
	t.SetDefault("DE", RuleHarvesting, ParamUrgentWindowDays, d("7"))

	// Austria
	t.SetDefault("AT", "at_allowance_shifting", ParamThreshold, d("0.25"))
	t.SetDefault("AT", "at_allowance_shifting", ParamAllowance, d("730"))
	t.SetDefault("AT", "at_allowance_shifting", ParamRate, d("0.27"))
	t.SetDefault("AT", "at_loss_offset", ParamThreshold, d("100"))
	t.SetDefault("AT", "at_loss_offset", ParamMarginalRate, d("0.42"))
	t.SetDefault("AT", "at_income_deferral", ParamThreshold, d("5000"))
	t.SetDefault("AT", "at_income_deferral", ParamRate, d("0.15"))
	t.SetDefault("AT", "at_church_tax_exit", ParamRate, d("0.08"))

	// Switzerland
	t.SetDefault("CH", "ch_mortgage_interest", ParamThreshold, d("100000"))
	t.SetDefault("CH", "ch_mortgage_interest", ParamRate, d("0.02"))
	t.SetDefault("CH", "ch_mortgage_interest", ParamMarginalRate, d("0.22"))
	t.SetDefault("CH", "ch_wealth_tax", ParamThreshold, d("500000"))
	t.SetDefault("CH", "ch_wealth_tax", ParamYield, d("0.03"))
	t.SetDefault("CH", "ch_wealth_tax", ParamFactor, d("0.5"))
	t.SetDefault("CH", "ch_capital_gains_timing", ParamYield, d("0.03"))
	t.SetDefault("CH", "ch_capital_gains_timing", ParamFactor, d("0.2"))
	t.SetDefault("CH", "ch_pillar_3a", ParamContribution, d("7056"))
	t.SetDefault("CH", "ch_pillar_3a", ParamMarginalRate, d("0.22"))

	// Germany
	t.SetDefault("DE", "de_allowance_maximization", ParamAllowance, d("801"))
	t.SetDefault("DE", "de_allowance_maximization", ParamMarginalRate, d("0.42"))
	t.SetDefault("DE", "de_staggered_realization", ParamThreshold, d("5000"))
	t.SetDefault("DE", "de_staggered_realization", ParamRate, d("0.15"))
	t.SetDefault("DE", "de_loss_harvesting", ParamMarginalRate, d("0.42"))
	t.SetDefault("DE", "de_loss_harvesting", ParamFactor, d("0.3"))
	t.SetDefault("DE", "de_church_tax_exit", ParamMarginalRate, d("0.42"))
	t.SetDefault("DE", "de_church_tax_exit", ParamRate, d("0.08"))

	return t
}
