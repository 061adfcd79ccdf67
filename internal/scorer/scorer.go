// Package scorer turns the scoring agent's component scores into a total
// score and tier, applies data-quality penalties, and validates agent output
// before anything is persisted. Everything here is pure and deterministic:
// the same inputs always produce the same totals, penalties, and tiers.
package scorer

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/acquire-cli/internal/model"
)

// Component weights. They sum to 1.0 and are fixed: changing them would make
// scores from different runs incomparable.
const (
	WeightPriceEfficiency = 0.20
	WeightRevenueQuality  = 0.15
	WeightMoat            = 0.20
	WeightAILeverage      = 0.15
	WeightOperations      = 0.10
	WeightRisk            = 0.10
	WeightTrust           = 0.10
)

// Penalty deductions keyed by confidence flag. Only price efficiency, revenue
// quality, and trust are ever penalized; the other four components always
// pass through untouched.
const (
	penaltyMissingFinPriceEff = 20
	penaltyMissingFinRevenue  = 15
	penaltyMissingFinTrust    = 25
	penaltyAssumedTrust       = 10
	penaltyFollowupTrust      = 15
	penaltyContradictoryTrust = 10
)

// maxReasonListLen caps top_buy_reasons and top_risks.
const maxReasonListLen = 5

// Aggregate computes the weighted total score from component scores, rounded
// to two decimal places.
func Aggregate(c model.ScoringComponents) float64 {
	total := c.PriceEfficiency*WeightPriceEfficiency +
		c.RevenueQuality*WeightRevenueQuality +
		c.Moat*WeightMoat +
		c.AILeverage*WeightAILeverage +
		c.Operations*WeightOperations +
		c.Risk*WeightRisk +
		c.Trust*WeightTrust
	return math.Round(total*100) / 100
}

// TierFor buckets a total score into its tier. Boundaries are closed at the
// lower edge: 85 is an A, 70 is a B, 55 is a C.
func TierFor(total float64) model.Tier {
	switch {
	case total >= 85:
		return model.TierA
	case total >= 70:
		return model.TierB
	case total >= 55:
		return model.TierC
	default:
		return model.TierD
	}
}

// ApplyPenalties returns a copy of the components with data-quality
// deductions applied for the record's confidence flags. The input is never
// mutated and no component drops below zero. Nil flags mean no deductions.
func ApplyPenalties(c model.ScoringComponents, flags *model.ConfidenceFlags) model.ScoringComponents {
	out := c
	if flags == nil {
		return out
	}

	if flags.MissingFinancials() {
		out.PriceEfficiency = math.Max(0, out.PriceEfficiency-penaltyMissingFinPriceEff)
		out.RevenueQuality = math.Max(0, out.RevenueQuality-penaltyMissingFinRevenue)
		out.Trust = math.Max(0, out.Trust-penaltyMissingFinTrust)
	}
	if len(flags.AssumedValues) > 0 {
		out.Trust = math.Max(0, out.Trust-penaltyAssumedTrust)
	}
	if len(flags.RequiresFollowup) > 0 {
		out.Trust = math.Max(0, out.Trust-penaltyFollowupTrust)
	}
	if len(flags.ContradictoryInformation) > 0 {
		out.Trust = math.Max(0, out.Trust-penaltyContradictoryTrust)
	}
	return out
}

// ValidateOutput checks the scoring agent's structured output before it is
// persisted. Every component must be within 0-100, and both the buy reasons
// and risks lists must hold between one and five entries.
func ValidateOutput(out *model.ScoringOutput) error {
	if out == nil {
		return eris.New("scorer: nil scoring output")
	}
	components := map[string]float64{
		"price_efficiency": out.Components.PriceEfficiency,
		"revenue_quality":  out.Components.RevenueQuality,
		"moat":             out.Components.Moat,
		"ai_leverage":      out.Components.AILeverage,
		"operations":       out.Components.Operations,
		"risk":             out.Components.Risk,
		"trust":            out.Components.Trust,
	}
	for name, v := range components {
		if v < 0 || v > 100 {
			return eris.Errorf("scorer: component %s out of range: %v", name, v)
		}
	}
	if n := len(out.TopBuyReasons); n == 0 || n > maxReasonListLen {
		return eris.Errorf("scorer: top_buy_reasons must hold 1-%d entries, got %d", maxReasonListLen, n)
	}
	if n := len(out.TopRisks); n == 0 || n > maxReasonListLen {
		return eris.Errorf("scorer: top_risks must hold 1-%d entries, got %d", maxReasonListLen, n)
	}
	return nil
}

// Score runs the full deterministic aggregation for one record: penalties
// first, then the weighted total, then the tier.
func Score(out *model.ScoringOutput, flags *model.ConfidenceFlags) (model.ScoringComponents, float64, model.Tier) {
	adjusted := ApplyPenalties(out.Components, flags)
	total := Aggregate(adjusted)
	return adjusted, total, TierFor(total)
}
