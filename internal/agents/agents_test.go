package agents

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/acquire-cli/internal/model"
	"github.com/sells-group/acquire-cli/internal/resilience"
	"github.com/sells-group/acquire-cli/pkg/anthropic"
)

// stubClient returns a canned response or error and records the last request.
type stubClient struct {
	resp    *anthropic.MessageResponse
	err     error
	calls   int
	lastReq anthropic.MessageRequest
}

var _ anthropic.Client = (*stubClient)(nil)

func (s *stubClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Model:      "claude-haiku-4-5-20251001",
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage: anthropic.TokenUsage{
			InputTokens:  1200,
			OutputTokens: 300,
		},
	}
}

func singleAttempt() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 1}
}

func testRawListing() *model.RawListing {
	return &model.RawListing{
		ID:          "listing-1",
		BusinessID:  "biz-1",
		Marketplace: "acquire",
		ListingURL:  "https://example.com/listing/1",
		RawText:     "SaaS business for sale, $12k MRR",
		RawHTML:     "<html><body>SaaS business for sale</body></html>",
	}
}

func TestDecodeStrict(t *testing.T) {
	type target struct {
		Name string `json:"name"`
	}

	t.Run("plain object", func(t *testing.T) {
		var v target
		require.NoError(t, decodeStrict(`{"name":"acme"}`, &v))
		assert.Equal(t, "acme", v.Name)
	})

	t.Run("markdown fenced", func(t *testing.T) {
		var v target
		require.NoError(t, decodeStrict("```json\n{\"name\":\"acme\"}\n```", &v))
		assert.Equal(t, "acme", v.Name)
	})

	t.Run("unknown field", func(t *testing.T) {
		var v target
		err := decodeStrict(`{"name":"acme","extra":1}`, &v)
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrInvalidOutput))
	})

	t.Run("no JSON at all", func(t *testing.T) {
		var v target
		err := decodeStrict("I cannot help with that.", &v)
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrInvalidOutput))
	})
}

func TestExtractValidResponse(t *testing.T) {
	client := &stubClient{resp: textResponse(`{
		"financials": {"asking_price_usd": 150000, "monthly_revenue_usd": 12000},
		"product": {"business_type": "saas"},
		"confidence_flags": {"missing_financial_data": false, "confidence_level": "high"}
	}`)}
	agent := NewExtractionAgent(client, "claude-haiku-4-5-20251001", 4096, singleAttempt())

	rec, usage, err := agent.Extract(context.Background(), testRawListing())
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "biz-1", rec.BusinessID)
	require.NotNil(t, rec.Financials)
	assert.Equal(t, 150000.0, *rec.Financials.AskingPriceUSD)
	require.NotNil(t, rec.Product)
	assert.Equal(t, "saas", *rec.Product.BusinessType)
	assert.Nil(t, rec.Customers)
	assert.False(t, rec.ConfidenceFlags.MissingFinancials())

	assert.Equal(t, "claude-haiku-4-5-20251001", usage.Model)
	assert.Equal(t, 1200, usage.TokenUsage.InputTokens)
	assert.Greater(t, usage.TokenUsage.Cost, 0.0)
}

func TestExtractSendsListingContent(t *testing.T) {
	client := &stubClient{resp: textResponse(`{}`)}
	agent := NewExtractionAgent(client, "claude-haiku-4-5-20251001", 4096, singleAttempt())

	_, _, err := agent.Extract(context.Background(), testRawListing())
	require.NoError(t, err)

	require.Len(t, client.lastReq.Messages, 1)
	body := client.lastReq.Messages[0].Content
	assert.Contains(t, body, "SaaS business for sale, $12k MRR")
	assert.Contains(t, body, "acquire")
	require.Len(t, client.lastReq.System, 1)
	assert.Contains(t, client.lastReq.System[0].Text, "extraction specialist")
}

func TestExtractMalformedResponse(t *testing.T) {
	client := &stubClient{resp: textResponse(`{"financials": {"bogus_key": 1}}`)}
	agent := NewExtractionAgent(client, "claude-haiku-4-5-20251001", 4096, singleAttempt())

	_, usage, err := agent.Extract(context.Background(), testRawListing())
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidOutput))
	// Tokens were still spent; the audit trail should see them.
	assert.Equal(t, 300, usage.TokenUsage.OutputTokens)
}

func TestExtractTransportError(t *testing.T) {
	client := &stubClient{err: eris.New("connection reset")}
	agent := NewExtractionAgent(client, "claude-haiku-4-5-20251001", 4096, singleAttempt())

	_, _, err := agent.Extract(context.Background(), testRawListing())
	require.Error(t, err)
	assert.False(t, eris.Is(err, ErrInvalidOutput))
}

func TestScoreComponentsValid(t *testing.T) {
	client := &stubClient{resp: textResponse(`{
		"components": {
			"price_efficiency": 80, "revenue_quality": 75, "moat": 60,
			"ai_leverage": 85, "operations": 70, "risk": 65, "trust": 90
		},
		"top_buy_reasons": ["recurring revenue"],
		"top_risks": ["platform dependence"],
		"rationale": "solid fundamentals"
	}`)}
	agent := NewScoringAgent(client, "claude-sonnet-4-5-20250929", 4096, singleAttempt())

	out, _, err := agent.ScoreComponents(context.Background(), &model.CanonicalRecord{BusinessID: "biz-1"})
	require.NoError(t, err)
	assert.Equal(t, 80.0, out.Components.PriceEfficiency)
	assert.Equal(t, []string{"recurring revenue"}, out.TopBuyReasons)
	assert.Equal(t, "solid fundamentals", out.Rationale)
}

func TestScoreComponentsMissingComponent(t *testing.T) {
	client := &stubClient{resp: textResponse(`{
		"components": {
			"price_efficiency": 80, "revenue_quality": 75, "moat": 60,
			"ai_leverage": 85, "operations": 70, "risk": 65
		},
		"top_buy_reasons": ["recurring revenue"],
		"top_risks": ["platform dependence"]
	}`)}
	agent := NewScoringAgent(client, "claude-sonnet-4-5-20250929", 4096, singleAttempt())

	_, _, err := agent.ScoreComponents(context.Background(), &model.CanonicalRecord{BusinessID: "biz-1"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidOutput))
	assert.Contains(t, err.Error(), "missing component trust")
}

func TestScoreComponentsNoComponentsObject(t *testing.T) {
	client := &stubClient{resp: textResponse(`{
		"top_buy_reasons": ["recurring revenue"],
		"top_risks": ["platform dependence"]
	}`)}
	agent := NewScoringAgent(client, "claude-sonnet-4-5-20250929", 4096, singleAttempt())

	_, _, err := agent.ScoreComponents(context.Background(), &model.CanonicalRecord{BusinessID: "biz-1"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidOutput))
	assert.Contains(t, err.Error(), "missing component price_efficiency")
}

func TestScoreComponentsOutOfRange(t *testing.T) {
	client := &stubClient{resp: textResponse(`{
		"components": {
			"price_efficiency": 120, "revenue_quality": 75, "moat": 60,
			"ai_leverage": 85, "operations": 70, "risk": 65, "trust": 90
		},
		"top_buy_reasons": ["recurring revenue"],
		"top_risks": ["platform dependence"]
	}`)}
	agent := NewScoringAgent(client, "claude-sonnet-4-5-20250929", 4096, singleAttempt())

	_, _, err := agent.ScoreComponents(context.Background(), &model.CanonicalRecord{BusinessID: "biz-1"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidOutput))
}

func TestScoreComponentsEmptyRisks(t *testing.T) {
	client := &stubClient{resp: textResponse(`{
		"components": {
			"price_efficiency": 80, "revenue_quality": 75, "moat": 60,
			"ai_leverage": 85, "operations": 70, "risk": 65, "trust": 90
		},
		"top_buy_reasons": ["recurring revenue"],
		"top_risks": []
	}`)}
	agent := NewScoringAgent(client, "claude-sonnet-4-5-20250929", 4096, singleAttempt())

	_, _, err := agent.ScoreComponents(context.Background(), &model.CanonicalRecord{BusinessID: "biz-1"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidOutput))
}

func TestGenerateQuestionsUsesModelText(t *testing.T) {
	client := &stubClient{resp: textResponse(`{
		"questions": [
			{"question": "What were the exact 2025 revenue figures?", "field": "financials", "severity": "critical"},
			{"question": "How many paying customers do you have today?", "field": "customers", "severity": "high"}
		]
	}`)}
	agent := NewQuestionAgent(client, "claude-sonnet-4-5-20250929", 2048, singleAttempt(), nil)

	uncs := []model.Uncertainty{
		{Type: "missing_financials", Field: "financials", Severity: model.SeverityCritical},
		{Type: "missing_domain", Field: "customers", Severity: model.SeverityHigh},
	}
	drafts, _, err := agent.GenerateQuestions(context.Background(), &model.CanonicalRecord{BusinessID: "biz-1"}, uncs)
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	assert.Equal(t, "What were the exact 2025 revenue figures?", drafts[0].Question)
	assert.Equal(t, "financials", drafts[0].Field)
	assert.Equal(t, model.SeverityCritical, drafts[0].Severity)
	assert.Equal(t, "How many paying customers do you have today?", drafts[1].Question)
}

func TestGenerateQuestionsTemplateFallback(t *testing.T) {
	client := &stubClient{resp: textResponse("sorry, I had trouble with that")}
	agent := NewQuestionAgent(client, "claude-sonnet-4-5-20250929", 2048, singleAttempt(), nil)

	uncs := []model.Uncertainty{
		{Type: "missing_domain", Field: "technology", Severity: model.SeverityMedium},
		{Type: "assumed_value", Field: "financials.annual_profit_usd", Severity: model.SeverityHigh},
	}
	drafts, _, err := agent.GenerateQuestions(context.Background(), &model.CanonicalRecord{BusinessID: "biz-1"}, uncs)
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	assert.Equal(t, "Do you own the code, data, and infrastructure, or are there any leased/cloud dependencies?", drafts[0].Question)
	assert.Equal(t, "Regarding the financials.annual_profit_usd assumption, can you provide the actual details?", drafts[1].Question)
}

func TestGenerateQuestionsPartialCoverage(t *testing.T) {
	// Model answered only one of two uncertainties; the other falls back.
	client := &stubClient{resp: textResponse(`{
		"questions": [
			{"question": "What is your monthly churn?", "field": "customers", "severity": "high"}
		]
	}`)}
	agent := NewQuestionAgent(client, "claude-sonnet-4-5-20250929", 2048, singleAttempt(), nil)

	uncs := []model.Uncertainty{
		{Type: "missing_domain", Field: "customers", Severity: model.SeverityHigh},
		{Type: "missing_domain", Field: "growth", Severity: model.SeverityMedium},
	}
	drafts, _, err := agent.GenerateQuestions(context.Background(), &model.CanonicalRecord{BusinessID: "biz-1"}, uncs)
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	assert.Equal(t, "What is your monthly churn?", drafts[0].Question)
	assert.Equal(t, "What are the primary growth channels and recent growth trends?", drafts[1].Question)
}

func TestGenerateQuestionsEmptyUncertainties(t *testing.T) {
	client := &stubClient{}
	agent := NewQuestionAgent(client, "claude-sonnet-4-5-20250929", 2048, singleAttempt(), nil)

	drafts, _, err := agent.GenerateQuestions(context.Background(), &model.CanonicalRecord{BusinessID: "biz-1"}, nil)
	require.NoError(t, err)
	assert.Nil(t, drafts)
	assert.Zero(t, client.calls)
}
