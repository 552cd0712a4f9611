package policy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTable_Lookup(t *testing.T) {
	table := NewTable().
		SetDefault("DE", "de_allowance_maximization", ParamAllowance, decimal.NewFromInt(801)).
		SetForYear("DE", "de_allowance_maximization", ParamAllowance, 2023, decimal.NewFromInt(1000)).
		SetForYear("DE", "de_allowance_maximization", ParamAllowance, 2026, decimal.NewFromInt(1200))

	tests := []struct {
		name     string
		year     int
		expected int64
	}{
		{"before any year entry uses default", 2020, 801},
		{"exact year", 2023, 1000},
		{"latest earlier year", 2025, 1000},
		{"later year entry", 2030, 1200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, ok := table.Lookup("DE", "de_allowance_maximization", ParamAllowance, tt.year)
			assert.True(t, ok)
			assert.True(t, value.Equal(decimal.NewFromInt(tt.expected)), "got %s", value)
		})
	}
}

func TestTable_UnknownConstant(t *testing.T) {
	table := NewTable()

	_, ok := table.Lookup("FR", "fr_anything", ParamRate, 2024)
	assert.False(t, ok)
	assert.True(t, table.Value("FR", "fr_anything", ParamRate, 2024).IsZero())
}

func TestTable_SetForYearOverwrites(t *testing.T) {
	table := NewTable().
		SetForYear("AT", "at_loss_offset", ParamThreshold, 2024, decimal.NewFromInt(100)).
		SetForYear("AT", "at_loss_offset", ParamThreshold, 2024, decimal.NewFromInt(150))

	assert.True(t, table.Value("AT", "at_loss_offset", ParamThreshold, 2024).Equal(decimal.NewFromInt(150)))
}

func TestDefault_LiteralValues(t *testing.T) {
	table := Default()

	assert.Equal(t, "0.26375", table.Value("DE", RuleHarvesting, ParamWithholdingRate, 2024).String())
	assert.Equal(t, 30, table.Int("DE", RuleHarvesting, ParamDeferWindowDays, 2024))
	assert.Equal(t, 7, table.Int("DE", RuleHarvesting, ParamUrgentWindowDays, 2024))
	assert.Equal(t, "730", table.Value("AT", "at_allowance_shifting", ParamAllowance, 2024).String())
	assert.Equal(t, "7056", table.Value("CH", "ch_pillar_3a", ParamContribution, 2024).String())
	assert.Equal(t, "500000", table.Value("CH", "ch_wealth_tax", ParamThreshold, 2024).String())
	assert.Equal(t, "801", table.Value("DE", "de_allowance_maximization", ParamAllowance, 1999).String())
}
