package jurisdiction

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/stack-service/tax_service/internal/domain/entities"
)

// Rank sorts recommendations by estimated savings, highest first, keeping
// evaluation order among equal savings, and returns the total savings.
// The input slice is sorted in place.
func Rank(recommendations []*entities.Recommendation) ([]*entities.Recommendation, decimal.Decimal) {
	total := decimal.Zero
	for _, r := range recommendations {
		total = total.Add(savingsOf(r))
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		return savingsOf(recommendations[i]).GreaterThan(savingsOf(recommendations[j]))
	})

	return recommendations, total
}

// savingsOf treats a missing recommendation as zero savings
func savingsOf(r *entities.Recommendation) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return r.EstimatedSavings
}
