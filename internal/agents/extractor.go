package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/acquire-cli/internal/model"
	"github.com/sells-group/acquire-cli/internal/resilience"
	"github.com/sells-group/acquire-cli/pkg/anthropic"
)

// extractionPayload is the exact shape the extraction agent is allowed to
// emit. Unknown keys anywhere in the tree fail the decode.
type extractionPayload struct {
	Financials      *model.FinancialsDomain `json:"financials"`
	Product         *model.ProductDomain    `json:"product"`
	Customers       *model.CustomersDomain  `json:"customers"`
	Operations      *model.OperationsDomain `json:"operations"`
	Technology      *model.TechnologyDomain `json:"technology"`
	Growth          *model.GrowthDomain     `json:"growth"`
	Risks           *model.RisksDomain      `json:"risks"`
	Seller          *model.SellerDomain     `json:"seller"`
	ConfidenceFlags *model.ConfidenceFlags  `json:"confidence_flags"`
}

// ExtractionAgent is the anthropic-backed Extractor.
type ExtractionAgent struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	retry     resilience.RetryConfig
}

var _ Extractor = (*ExtractionAgent)(nil)

// NewExtractionAgent builds an extractor backed by the given client and model.
func NewExtractionAgent(client anthropic.Client, modelID string, maxTokens int64, retry resilience.RetryConfig) *ExtractionAgent {
	return &ExtractionAgent{
		client:    client,
		model:     modelID,
		maxTokens: maxTokens,
		retry:     retry,
	}
}

// Extract runs the extraction prompt over a raw listing and returns the
// structured domains as a partially filled CanonicalRecord. Identity fields
// (BusinessID, Version, ContentHash) are the caller's to assign.
func (a *ExtractionAgent) Extract(ctx context.Context, l *model.RawListing) (*model.CanonicalRecord, Usage, error) {
	meta, err := json.Marshal(l.Metadata())
	if err != nil {
		return nil, Usage{}, eris.Wrap(err, "agents: marshal listing metadata")
	}

	req := anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(extractionSystemPrompt),
		Messages: []anthropic.Message{
			{
				Role:    "user",
				Content: fmt.Sprintf("Raw Text: %s\n\nHTML: %s\n\nMetadata: %s", l.RawText, l.RawHTML, meta),
			},
		},
	}

	resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, Usage{}, eris.Wrap(err, "agents: extraction call")
	}
	resp.Usage.LogCost(a.model, "extraction")

	var payload extractionPayload
	if err := decodeStrict(resp.Text(), &payload); err != nil {
		return nil, usageFrom(a.model, resp.Usage), err
	}

	rec := &model.CanonicalRecord{
		BusinessID:      l.BusinessID,
		Financials:      payload.Financials,
		Product:         payload.Product,
		Customers:       payload.Customers,
		Operations:      payload.Operations,
		Technology:      payload.Technology,
		Growth:          payload.Growth,
		Risks:           payload.Risks,
		Seller:          payload.Seller,
		ConfidenceFlags: payload.ConfidenceFlags,
	}

	zap.L().Debug("extraction complete",
		zap.String("business_id", l.BusinessID),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
	)
	return rec, usageFrom(a.model, resp.Usage), nil
}
