package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/acquire-cli/internal/model"
	"github.com/sells-group/acquire-cli/internal/store"
)

func newPipelineStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedListing(t *testing.T, st store.Store, businessID, rawText string) {
	t.Helper()
	require.NoError(t, st.InsertRawListing(context.Background(), &model.RawListing{
		BusinessID:  businessID,
		Marketplace: "acquire",
		ListingURL:  "https://example.com/" + businessID,
		RawText:     rawText,
		RawHTML:     "<p>" + rawText + "</p>",
	}))
}

func strptr(s string) *string { return &s }

func f64ptr(f float64) *float64 { return &f }

func boolptr(b bool) *bool { return &b }

// partialRecord is missing several domains so uncertainty analysis has work.
func partialRecord() *model.CanonicalRecord {
	return &model.CanonicalRecord{
		Financials: &model.FinancialsDomain{AskingPriceUSD: f64ptr(100000)},
		Product:    &model.ProductDomain{BusinessType: strptr("saas")},
	}
}

// completeRecord has every content domain present and no confidence flags.
func completeRecord() *model.CanonicalRecord {
	return &model.CanonicalRecord{
		Financials: &model.FinancialsDomain{AskingPriceUSD: f64ptr(100000)},
		Product:    &model.ProductDomain{BusinessType: strptr("saas")},
		Customers:  &model.CustomersDomain{},
		Operations: &model.OperationsDomain{},
		Technology: &model.TechnologyDomain{},
		Growth:     &model.GrowthDomain{},
		Risks:      &model.RisksDomain{},
		Seller:     &model.SellerDomain{},
	}
}

func uniformOutput(score float64) *model.ScoringOutput {
	return &model.ScoringOutput{
		Components: model.ScoringComponents{
			PriceEfficiency: score, RevenueQuality: score, Moat: score,
			AILeverage: score, Operations: score, Risk: score, Trust: score,
		},
		TopBuyReasons: []string{"reason"},
		TopRisks:      []string{"risk"},
	}
}

func TestCanonicalizeUnfingerprintableListing(t *testing.T) {
	st := newPipelineStore(t)
	seedListing(t, st, "biz-1", "SaaS for sale")

	orig := digestListing
	digestListing = func(l *model.RawListing) (string, error) {
		return "", eris.New("encode payload: unsupported metadata value")
	}
	t.Cleanup(func() { digestListing = orig })

	ext := &stubExtractor{rec: partialRecord()}
	p := New(st, ext, &stubScorer{}, &stubQuestions{})

	_, err := p.Canonicalize(context.Background(), "biz-1")
	require.Error(t, err)
	assert.Equal(t, KindSchemaValidation, KindOf(err), "unusable input is not a storage fault")
	assert.Zero(t, ext.calls)
}

func TestRunHappyPath(t *testing.T) {
	st := newPipelineStore(t)
	seedListing(t, st, "biz-1", "SaaS for sale")

	ext := &stubExtractor{rec: partialRecord()}
	sc := &stubScorer{out: uniformOutput(80)}
	qs := &stubQuestions{}
	p := New(st, ext, sc, qs)

	result, err := p.Run(context.Background(), "biz-1")
	require.NoError(t, err)

	require.NotNil(t, result.Canonical)
	assert.Equal(t, 1, result.Canonical.Version)
	assert.True(t, result.Canonical.Created)
	assert.NotEmpty(t, result.Canonical.ContentHash)

	require.NotNil(t, result.Score)
	assert.Equal(t, 80.0, result.Score.TotalScore)
	assert.Equal(t, model.TierB, result.Score.Tier)

	require.NotNil(t, result.FollowUp)
	assert.True(t, result.FollowUp.Eligible)
	assert.Greater(t, result.FollowUp.Inserted, 0)

	// Everything landed in the store.
	persisted, err := st.ListFollowUpQuestions(context.Background(), "biz-1")
	require.NoError(t, err)
	assert.Len(t, persisted, result.FollowUp.Inserted)
	for _, q := range persisted {
		assert.Equal(t, model.ResponsePending, q.ResponseStatus)
		assert.Equal(t, 1, q.RecordVersion)
	}
}

func TestRunIdempotentResubmission(t *testing.T) {
	st := newPipelineStore(t)
	seedListing(t, st, "biz-1", "SaaS for sale")

	ext := &stubExtractor{rec: partialRecord()}
	p := New(st, ext, &stubScorer{out: uniformOutput(80)}, &stubQuestions{})

	first, err := p.Run(context.Background(), "biz-1")
	require.NoError(t, err)
	assert.True(t, first.Canonical.Created)

	// Same listing content again: same fingerprint, no new version, no
	// extraction call.
	seedListing(t, st, "biz-1", "SaaS for sale")
	second, err := p.Run(context.Background(), "biz-1")
	require.NoError(t, err)

	assert.False(t, second.Canonical.Created)
	assert.Equal(t, 1, second.Canonical.Version)
	assert.Equal(t, first.Canonical.ContentHash, second.Canonical.ContentHash)
	assert.Equal(t, first.Canonical.RecordID, second.Canonical.RecordID)
	assert.Equal(t, 1, ext.calls)
}

func TestRunChangedContentBumpsVersion(t *testing.T) {
	st := newPipelineStore(t)
	seedListing(t, st, "biz-1", "SaaS for sale")

	ext := &stubExtractor{rec: partialRecord()}
	p := New(st, ext, &stubScorer{out: uniformOutput(80)}, &stubQuestions{})

	first, err := p.Run(context.Background(), "biz-1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Canonical.Version)

	seedListing(t, st, "biz-1", "SaaS for sale, price reduced!")
	second, err := p.Run(context.Background(), "biz-1")
	require.NoError(t, err)

	assert.True(t, second.Canonical.Created)
	assert.Equal(t, 2, second.Canonical.Version)
	assert.NotEqual(t, first.Canonical.ContentHash, second.Canonical.ContentHash)
	assert.Equal(t, 2, ext.calls)
}

func TestRunNoListing(t *testing.T) {
	st := newPipelineStore(t)
	p := New(st, &stubExtractor{rec: partialRecord()}, &stubScorer{out: uniformOutput(80)}, &stubQuestions{})

	_, err := p.Run(context.Background(), "biz-unknown")
	require.Error(t, err)
	assert.Equal(t, KindNoRecord, KindOf(err))
}

func TestRunExtractorValidationFailure(t *testing.T) {
	st := newPipelineStore(t)
	seedListing(t, st, "biz-1", "SaaS for sale")

	ext := &stubExtractor{err: eris.Wrap(errInvalidForTest(), "agents: extraction")}
	p := New(st, ext, &stubScorer{out: uniformOutput(80)}, &stubQuestions{})

	_, err := p.Run(context.Background(), "biz-1")
	require.Error(t, err)
	assert.Equal(t, KindSchemaValidation, KindOf(err))

	// Nothing persisted.
	_, _, metaErr := st.LatestCanonicalMeta(context.Background(), "biz-1")
	assert.ErrorIs(t, metaErr, store.ErrNotFound)
}

func TestRunScorerValidationFailureBlocksPersistence(t *testing.T) {
	st := newPipelineStore(t)
	seedListing(t, st, "biz-1", "SaaS for sale")

	sc := &stubScorer{err: errInvalidForTest()}
	p := New(st, &stubExtractor{rec: partialRecord()}, sc, &stubQuestions{})

	_, err := p.Run(context.Background(), "biz-1")
	require.Error(t, err)
	assert.Equal(t, KindSchemaValidation, KindOf(err))

	_, srErr := st.LatestScoringRecord(context.Background(), "biz-1")
	assert.ErrorIs(t, srErr, store.ErrNotFound)
}

func TestRunScorerUpstreamFailure(t *testing.T) {
	st := newPipelineStore(t)
	seedListing(t, st, "biz-1", "SaaS for sale")

	sc := &stubScorer{err: eris.New("api timeout")}
	p := New(st, &stubExtractor{rec: partialRecord()}, sc, &stubQuestions{})

	_, err := p.Run(context.Background(), "biz-1")
	require.Error(t, err)
	assert.Equal(t, KindUpstreamFailure, KindOf(err))
}

func TestRunIneligibleSkipsGeneration(t *testing.T) {
	st := newPipelineStore(t)
	seedListing(t, st, "biz-1", "SaaS for sale")

	qs := &stubQuestions{}
	p := New(st, &stubExtractor{rec: partialRecord()}, &stubScorer{out: uniformOutput(50)}, qs)

	result, err := p.Run(context.Background(), "biz-1")
	require.NoError(t, err)

	assert.Equal(t, model.TierD, result.Score.Tier)
	assert.False(t, result.FollowUp.Eligible)
	assert.Zero(t, result.FollowUp.Inserted)
	assert.Zero(t, qs.calls)
}

func TestRunCompleteRecordSkipsGeneration(t *testing.T) {
	st := newPipelineStore(t)
	seedListing(t, st, "biz-1", "SaaS for sale")

	qs := &stubQuestions{}
	p := New(st, &stubExtractor{rec: completeRecord()}, &stubScorer{out: uniformOutput(90)}, qs)

	result, err := p.Run(context.Background(), "biz-1")
	require.NoError(t, err)

	assert.Equal(t, model.TierA, result.Score.Tier)
	assert.True(t, result.FollowUp.Eligible)
	assert.Zero(t, result.FollowUp.Inserted)
	assert.Zero(t, qs.calls)

	persisted, err := st.ListFollowUpQuestions(context.Background(), "biz-1")
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestScoreStandaloneNoCanonicalRecord(t *testing.T) {
	st := newPipelineStore(t)
	p := New(st, &stubExtractor{rec: partialRecord()}, &stubScorer{out: uniformOutput(80)}, &stubQuestions{})

	_, err := p.Score(context.Background(), "biz-unknown")
	require.Error(t, err)
	assert.Equal(t, KindNoRecord, KindOf(err))
}

func TestFollowUpsStandaloneNoScoringRecord(t *testing.T) {
	st := newPipelineStore(t)
	p := New(st, &stubExtractor{rec: partialRecord()}, &stubScorer{out: uniformOutput(80)}, &stubQuestions{})

	_, err := p.FollowUps(context.Background(), "biz-unknown")
	require.Error(t, err)
	assert.Equal(t, KindNoRecord, KindOf(err))
}

func TestCategoryFor(t *testing.T) {
	assert.Equal(t, "financials", categoryFor("financials"))
	assert.Equal(t, "financials", categoryFor("financials.annual_revenue_usd"))
	assert.Equal(t, "customers", categoryFor("customers.churn_rate_percent"))
	assert.Equal(t, "general", categoryFor("something_else"))
	// Prefix must end at a dot to count.
	assert.Equal(t, "general", categoryFor("financialsummary"))
}
