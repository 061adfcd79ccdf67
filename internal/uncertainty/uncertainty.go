// Package uncertainty decides whether a scored business qualifies for seller
// follow-up and turns the gaps in its canonical record into a prioritized,
// deduplicated list of uncertainties for question generation.
package uncertainty

import (
	"fmt"
	"sort"

	"github.com/sells-group/acquire-cli/internal/model"
)

// Uncertainty types emitted by Analyze.
const (
	TypeMissingDomain     = "missing_domain"
	TypeMissingFinancials = "missing_financials"
	TypeAssumedValue      = "assumed_value"
	TypeRequiresFollowup  = "requires_followup"
	TypeContradictoryData = "contradictory_data"
)

// MaxUncertainties caps how many uncertainties survive prioritization, so
// question generation stays focused on the worst gaps.
const MaxUncertainties = 8

// EligibilityThreshold is the minimum total score for follow-up generation.
const EligibilityThreshold = 70.0

// Eligible reports whether a scored record qualifies for follow-up question
// generation. Both conditions must hold: a tier of A or B and a total score
// at or above the threshold. This is the single gate used by the pipeline
// and the standalone path alike.
func Eligible(tier model.Tier, totalScore float64) bool {
	if tier != model.TierA && tier != model.TierB {
		return false
	}
	return totalScore >= EligibilityThreshold
}

// domainSeverity returns how severe a wholly missing content domain is.
// Financials, customers, and risks carry the most scoring weight, so their
// absence ranks high; the rest rank medium.
func domainSeverity(domain string) model.Severity {
	switch domain {
	case "financials", "customers", "risks":
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}

// Analyze walks a canonical record and returns its uncertainties sorted by
// severity (critical first), deduplicated by field, and capped at
// MaxUncertainties. An empty result means the record is complete enough that
// no questions are worth asking.
func Analyze(rec *model.CanonicalRecord) []model.Uncertainty {
	var found []model.Uncertainty

	for _, domain := range model.ContentDomains {
		if !rec.HasDomain(domain) {
			found = append(found, model.Uncertainty{
				Type:     TypeMissingDomain,
				Field:    domain,
				Severity: domainSeverity(domain),
				Detail:   fmt.Sprintf("no %s information extracted from the listing", domain),
			})
		}
	}

	if flags := rec.ConfidenceFlags; flags != nil {
		if flags.MissingFinancials() {
			found = append(found, model.Uncertainty{
				Type:     TypeMissingFinancials,
				Field:    "financials",
				Severity: model.SeverityCritical,
				Detail:   "listing lacks verifiable financial data",
			})
		}
		for _, field := range flags.AssumedValues {
			found = append(found, model.Uncertainty{
				Type:     TypeAssumedValue,
				Field:    field,
				Severity: model.SeverityHigh,
				Detail:   fmt.Sprintf("value for %s was assumed rather than stated", field),
			})
		}
		for _, field := range flags.RequiresFollowup {
			found = append(found, model.Uncertainty{
				Type:     TypeRequiresFollowup,
				Field:    field,
				Severity: model.SeverityHigh,
				Detail:   fmt.Sprintf("extractor flagged %s for seller follow-up", field),
			})
		}
		for _, field := range flags.ContradictoryInformation {
			found = append(found, model.Uncertainty{
				Type:     TypeContradictoryData,
				Field:    field,
				Severity: model.SeverityMedium,
				Detail:   fmt.Sprintf("listing contains contradictory statements about %s", field),
			})
		}
	}

	return prioritize(found)
}

// prioritize sorts by severity keeping insertion order within each band,
// drops later duplicates of the same field, and caps the result. Dedup runs
// before the cap so a duplicate never crowds out a distinct uncertainty.
func prioritize(found []model.Uncertainty) []model.Uncertainty {
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Severity.Rank() < found[j].Severity.Rank()
	})

	seen := make(map[string]bool, len(found))
	kept := make([]model.Uncertainty, 0, MaxUncertainties)
	for _, u := range found {
		if seen[u.Field] {
			continue
		}
		seen[u.Field] = true
		kept = append(kept, u)
		if len(kept) == MaxUncertainties {
			break
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}
