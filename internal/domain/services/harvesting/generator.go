package harvesting

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stack-service/tax_service/internal/domain/entities"
	"github.com/stack-service/tax_service/internal/domain/policy"
)

// DefaultSuggestionTTL is how long a generated suggestion stays actionable
const DefaultSuggestionTTL = 7 * 24 * time.Hour

// harvestingCountry is the jurisdiction whose withholding rate prices suggestions
const harvestingCountry = "DE"

// Snapshot is everything one generation run evaluates
type Snapshot struct {
	PortfolioID string
	TaxYear     int
	Summary     *entities.TaxSummary
	Holdings    []*entities.AssetHolding
	// Assets by id; holdings whose asset is absent are skipped
	Assets map[string]*entities.Asset
	// Lots by holding id
	Lots map[string][]*entities.TaxLot
}

// Generator turns a snapshot into suggestion drafts. It performs no I/O.
type Generator struct {
	policy *policy.Table
	ttl    time.Duration
	clock  func() time.Time
}

// NewGenerator creates a generator pricing suggestions from table
func NewGenerator(table *policy.Table, ttl time.Duration) *Generator {
	if table == nil {
		table = policy.Default()
	}
	if ttl <= 0 {
		ttl = DefaultSuggestionTTL
	}
	return &Generator{
		policy: table,
		ttl:    ttl,
		clock:  time.Now,
	}
}

// WithClock overrides the time source
func (g *Generator) WithClock(clock func() time.Time) *Generator {
	g.clock = clock
	return g
}

type runParams struct {
	now          time.Time
	validUntil   time.Time
	rate         decimal.Decimal
	lossHigh     decimal.Decimal
	lossMedium   decimal.Decimal
	deferWindow  int
	urgentWindow int
}

func (g *Generator) params(taxYear int) runParams {
	now := g.clock()
	return runParams{
		now:          now,
		validUntil:   now.Add(g.ttl),
		rate:         g.policy.Value(harvestingCountry, policy.RuleHarvesting, policy.ParamWithholdingRate, taxYear),
		lossHigh:     g.policy.Value(harvestingCountry, policy.RuleHarvesting, policy.ParamLossHighThreshold, taxYear),
		lossMedium:   g.policy.Value(harvestingCountry, policy.RuleHarvesting, policy.ParamLossMediumThreshold, taxYear),
		deferWindow:  g.policy.Int(harvestingCountry, policy.RuleHarvesting, policy.ParamDeferWindowDays, taxYear),
		urgentWindow: g.policy.Int(harvestingCountry, policy.RuleHarvesting, policy.ParamUrgentWindowDays, taxYear),
	}
}

// Generate evaluates every holding of the snapshot. A holding may yield
// several independent suggestions.
func (g *Generator) Generate(snap *Snapshot) []*entities.TaxHarvestingSuggestion {
	if snap == nil || snap.Summary == nil {
		return nil
	}

	p := g.params(snap.TaxYear)
	var drafts []*entities.TaxHarvestingSuggestion

	for _, holding := range snap.Holdings {
		if holding == nil || holding.Quantity.IsZero() {
			continue
		}
		asset, ok := snap.Assets[holding.AssetID]
		if !ok || asset == nil {
			continue
		}

		ugl := holding.UnrealizedGainLoss
		switch {
		case ugl.IsNegative():
			if s := g.lossSuggestion(snap, holding, p); s != nil {
				drafts = append(drafts, s)
			}
		case ugl.IsPositive():
			if asset.AssetClass.HasHoldingPeriodExemption() {
				drafts = append(drafts, g.lotSuggestions(snap, holding, p)...)
			}
			if s := g.allowanceSuggestion(snap, holding, p); s != nil {
				drafts = append(drafts, s)
			}
		}
	}

	return drafts
}

func (g *Generator) lossSuggestion(snap *Snapshot, holding *entities.AssetHolding, p runParams) *entities.TaxHarvestingSuggestion {
	if !snap.Summary.HasRealizedGains() {
		return nil
	}

	loss := holding.UnrealizedGainLoss.Abs()
	savings := loss.Mul(p.rate)

	priority := entities.PriorityLow
	switch {
	case savings.GreaterThan(p.lossHigh):
		priority = entities.PriorityHigh
	case savings.GreaterThan(p.lossMedium):
		priority = entities.PriorityMedium
	}

	s := g.draft(snap, holding, p)
	s.SuggestionType = entities.SuggestionTypeRealizeLoss
	s.SuggestedQuantity = holding.Quantity
	s.EstimatedTaxSavings = savings
	s.Priority = priority
	s.Reasoning = fmt.Sprintf(
		"Realizing the unrealized loss of %s offsets capital gains already realized in %d and saves an estimated %s in tax.",
		loss.StringFixed(2), snap.TaxYear, savings.StringFixed(2))
	return s
}

func (g *Generator) lotSuggestions(snap *Snapshot, holding *entities.AssetHolding, p runParams) []*entities.TaxHarvestingSuggestion {
	var out []*entities.TaxHarvestingSuggestion
	savings := holding.UnrealizedGainLoss.Mul(p.rate)

	for _, lot := range snap.Lots[holding.ID] {
		if lot == nil || !lot.Status.IsLive() || lot.HoldingPeriodEnd == nil {
			continue
		}

		days := DaysUntil(p.now, *lot.HoldingPeriodEnd)

		s := g.draft(snap, holding, p)
		s.TaxLotID = lot.ID
		s.SuggestedQuantity = lot.RemainingQuantity
		s.EstimatedTaxSavings = savings

		switch {
		case days > 0 && days <= p.deferWindow:
			s.SuggestionType = entities.SuggestionTypeDeferSale
			s.DaysUntilTaxExempt = intPtr(days)
			s.Priority = entities.PriorityMedium
			if days <= p.urgentWindow {
				s.Priority = entities.PriorityHigh
			}
			s.Reasoning = fmt.Sprintf(
				"This lot becomes tax-exempt in %d days. Waiting before selling %s units avoids an estimated %s in tax.",
				days, lot.RemainingQuantity.String(), savings.StringFixed(2))
		case days <= 0:
			s.SuggestionType = entities.SuggestionTypeRealizeGainTaxFree
			s.DaysUntilTaxExempt = intPtr(0)
			s.Priority = entities.PriorityHigh
			s.Reasoning = fmt.Sprintf(
				"The holding period of this lot has elapsed. Selling %s units now realizes the gain tax-free, saving an estimated %s.",
				lot.RemainingQuantity.String(), savings.StringFixed(2))
		default:
			continue
		}

		out = append(out, s)
	}

	return out
}

func (g *Generator) allowanceSuggestion(snap *Snapshot, holding *entities.AssetHolding, p runParams) *entities.TaxHarvestingSuggestion {
	allowance := snap.Summary.SaverAllowanceRemaining
	if !allowance.IsPositive() {
		return nil
	}

	ugl := holding.UnrealizedGainLoss
	taxFreeGain := decimal.Min(ugl, allowance)
	quantity := decimal.Min(taxFreeGain.Mul(holding.Quantity).Div(ugl), holding.Quantity)
	savings := taxFreeGain.Mul(p.rate)

	s := g.draft(snap, holding, p)
	s.SuggestionType = entities.SuggestionTypeUseAllowance
	s.SuggestedQuantity = quantity
	s.EstimatedTaxSavings = savings
	s.Priority = entities.PriorityMedium
	s.Reasoning = fmt.Sprintf(
		"Selling %s units realizes %s of gains within the remaining saver allowance of %s, saving an estimated %s.",
		quantity.String(), taxFreeGain.StringFixed(2), allowance.StringFixed(2), savings.StringFixed(2))
	return s
}

func (g *Generator) draft(snap *Snapshot, holding *entities.AssetHolding, p runParams) *entities.TaxHarvestingSuggestion {
	return &entities.TaxHarvestingSuggestion{
		PortfolioID:               snap.PortfolioID,
		TaxYear:                   snap.TaxYear,
		AssetID:                   holding.AssetID,
		AssetHoldingID:            holding.ID,
		CurrentUnrealizedGainLoss: holding.UnrealizedGainLoss,
		Status:                    entities.SuggestionStatusPending,
		ValidUntil:                p.validUntil,
		CreatedAt:                 p.now,
	}
}

// DaysUntil returns the ceiling of the day difference between now and end.
// Partial days round up, so an end later today counts as one day.
func DaysUntil(now, end time.Time) int {
	return int(math.Ceil(end.Sub(now).Hours() / 24))
}

func intPtr(v int) *int {
	return &v
}
