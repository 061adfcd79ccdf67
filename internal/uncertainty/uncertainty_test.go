package uncertainty

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/acquire-cli/internal/model"
)

func completeRecord() *model.CanonicalRecord {
	return &model.CanonicalRecord{
		BusinessID: "biz-1",
		Version:    1,
		Financials: &model.FinancialsDomain{},
		Product:    &model.ProductDomain{},
		Customers:  &model.CustomersDomain{},
		Operations: &model.OperationsDomain{},
		Technology: &model.TechnologyDomain{},
		Growth:     &model.GrowthDomain{},
		Risks:      &model.RisksDomain{},
		Seller:     &model.SellerDomain{},
	}
}

func TestEligible(t *testing.T) {
	tests := []struct {
		tier  model.Tier
		total float64
		want  bool
	}{
		{model.TierA, 90, true},
		{model.TierB, 70, true},
		{model.TierB, 69.999, false},
		{model.TierC, 95, false},
		{model.TierD, 40, false},
		{model.TierA, 69, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Eligible(tt.tier, tt.total),
			"tier %s total %v", tt.tier, tt.total)
	}
}

func TestAnalyzeCompleteRecordIsEmpty(t *testing.T) {
	assert.Empty(t, Analyze(completeRecord()))
}

func TestAnalyzeNilFlagsEmitNothing(t *testing.T) {
	rec := completeRecord()
	rec.ConfidenceFlags = nil
	assert.Empty(t, Analyze(rec))
}

func TestAnalyzeMissingDomains(t *testing.T) {
	rec := completeRecord()
	rec.Financials = nil
	rec.Technology = nil

	got := Analyze(rec)
	require.Len(t, got, 2)

	// High-severity financials gap sorts ahead of the medium technology gap.
	assert.Equal(t, TypeMissingDomain, got[0].Type)
	assert.Equal(t, "financials", got[0].Field)
	assert.Equal(t, model.SeverityHigh, got[0].Severity)
	assert.Equal(t, "technology", got[1].Field)
	assert.Equal(t, model.SeverityMedium, got[1].Severity)
}

func TestAnalyzeFlagSeverities(t *testing.T) {
	yes := true
	rec := completeRecord()
	rec.ConfidenceFlags = &model.ConfidenceFlags{
		MissingFinancialData:     &yes,
		AssumedValues:            []string{"churn_rate_percent"},
		RequiresFollowup:         []string{"code_ownership"},
		ContradictoryInformation: []string{"asking_price_usd"},
	}

	got := Analyze(rec)
	require.Len(t, got, 4)

	assert.Equal(t, TypeMissingFinancials, got[0].Type)
	assert.Equal(t, model.SeverityCritical, got[0].Severity)

	assert.Equal(t, model.SeverityHigh, got[1].Severity)
	assert.Equal(t, model.SeverityHigh, got[2].Severity)
	assert.Equal(t, TypeAssumedValue, got[1].Type, "insertion order holds within a band")
	assert.Equal(t, TypeRequiresFollowup, got[2].Type)

	assert.Equal(t, TypeContradictoryData, got[3].Type)
	assert.Equal(t, model.SeverityMedium, got[3].Severity)
}

func TestAnalyzeDedupsByField(t *testing.T) {
	yes := true
	rec := completeRecord()
	rec.Financials = nil
	rec.ConfidenceFlags = &model.ConfidenceFlags{
		// Critical flag and missing domain share the "financials" field.
		MissingFinancialData: &yes,
		AssumedValues:        []string{"owner_hours_per_week", "owner_hours_per_week"},
	}

	got := Analyze(rec)
	require.Len(t, got, 2)
	assert.Equal(t, TypeMissingFinancials, got[0].Type,
		"the critical entry wins the financials slot")
	assert.Equal(t, "owner_hours_per_week", got[1].Field)
}

func TestAnalyzeCapsAtEight(t *testing.T) {
	yes := true
	rec := &model.CanonicalRecord{BusinessID: "biz-1", Version: 1}
	rec.ConfidenceFlags = &model.ConfidenceFlags{
		MissingFinancialData: &yes,
		AssumedValues:        []string{"f1", "f2", "f3", "f4"},
		RequiresFollowup:     []string{"f5", "f6"},
	}

	// Eight missing domains plus seven flag entries, all distinct fields
	// except financials which dedups against the critical flag.
	got := Analyze(rec)
	require.Len(t, got, MaxUncertainties)
	assert.Equal(t, model.SeverityCritical, got[0].Severity,
		"cap keeps the most severe entries")
	for _, u := range got {
		assert.NotEqual(t, model.SeverityMedium, u.Severity,
			"medium entries fall off before high ones")
	}
}

func TestAnalyzeDedupBeforeCap(t *testing.T) {
	rec := completeRecord()
	rec.ConfidenceFlags = &model.ConfidenceFlags{
		AssumedValues:    []string{"a", "a", "a", "a", "a", "a", "a", "a"},
		RequiresFollowup: []string{"b"},
	}

	got := Analyze(rec)
	require.Len(t, got, 2, "duplicates never crowd out distinct fields")
	assert.Equal(t, "a", got[0].Field)
	assert.Equal(t, "b", got[1].Field)
}
