package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/acquire-cli/internal/model"
	"github.com/sells-group/acquire-cli/internal/resilience"
	"github.com/sells-group/acquire-cli/internal/scorer"
	"github.com/sells-group/acquire-cli/pkg/anthropic"
)

// scoringPayload mirrors ScoringOutput with pointer component fields so an
// absent component is detectable. A plain float64 would decode a missing key
// to 0, which is an in-range value.
type scoringPayload struct {
	Components struct {
		PriceEfficiency *float64 `json:"price_efficiency"`
		RevenueQuality  *float64 `json:"revenue_quality"`
		Moat            *float64 `json:"moat"`
		AILeverage      *float64 `json:"ai_leverage"`
		Operations      *float64 `json:"operations"`
		Risk            *float64 `json:"risk"`
		Trust           *float64 `json:"trust"`
	} `json:"components"`
	TopBuyReasons []string `json:"top_buy_reasons"`
	TopRisks      []string `json:"top_risks"`
	Rationale     string   `json:"rationale"`
}

// toOutput rejects payloads with any component field absent and converts the
// rest into the model type.
func (p *scoringPayload) toOutput() (*model.ScoringOutput, error) {
	required := []struct {
		name  string
		value *float64
	}{
		{"price_efficiency", p.Components.PriceEfficiency},
		{"revenue_quality", p.Components.RevenueQuality},
		{"moat", p.Components.Moat},
		{"ai_leverage", p.Components.AILeverage},
		{"operations", p.Components.Operations},
		{"risk", p.Components.Risk},
		{"trust", p.Components.Trust},
	}
	for _, c := range required {
		if c.value == nil {
			return nil, eris.Wrapf(ErrInvalidOutput, "agents: scoring output: missing component %s", c.name)
		}
	}
	return &model.ScoringOutput{
		Components: model.ScoringComponents{
			PriceEfficiency: *p.Components.PriceEfficiency,
			RevenueQuality:  *p.Components.RevenueQuality,
			Moat:            *p.Components.Moat,
			AILeverage:      *p.Components.AILeverage,
			Operations:      *p.Components.Operations,
			Risk:            *p.Components.Risk,
			Trust:           *p.Components.Trust,
		},
		TopBuyReasons: p.TopBuyReasons,
		TopRisks:      p.TopRisks,
		Rationale:     p.Rationale,
	}, nil
}

// ScoringAgent is the anthropic-backed ComponentScorer.
type ScoringAgent struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	retry     resilience.RetryConfig
}

var _ ComponentScorer = (*ScoringAgent)(nil)

// NewScoringAgent builds a component scorer backed by the given client and model.
func NewScoringAgent(client anthropic.Client, modelID string, maxTokens int64, retry resilience.RetryConfig) *ScoringAgent {
	return &ScoringAgent{
		client:    client,
		model:     modelID,
		maxTokens: maxTokens,
		retry:     retry,
	}
}

// ScoreComponents runs the scoring prompt over a canonical record. The output
// is schema-validated here; absent components, range violations, and bad
// reason lists are ErrInvalidOutput, the same class as a malformed response.
// Totals and tiers are never taken from the model.
func (a *ScoringAgent) ScoreComponents(ctx context.Context, rec *model.CanonicalRecord) (*model.ScoringOutput, Usage, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, Usage{}, eris.Wrap(err, "agents: marshal canonical record")
	}

	req := anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(scoringSystemPrompt),
		Messages: []anthropic.Message{
			{
				Role:    "user",
				Content: fmt.Sprintf("Canonical Business Data: %s", data),
			},
		},
	}

	resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, Usage{}, eris.Wrap(err, "agents: scoring call")
	}
	resp.Usage.LogCost(a.model, "scoring")

	usage := usageFrom(a.model, resp.Usage)

	var payload scoringPayload
	if err := decodeStrict(resp.Text(), &payload); err != nil {
		return nil, usage, err
	}
	out, err := payload.toOutput()
	if err != nil {
		return nil, usage, err
	}
	if err := scorer.ValidateOutput(out); err != nil {
		return nil, usage, eris.Wrapf(ErrInvalidOutput, "agents: scoring output: %v", err)
	}
	return out, usage, nil
}
