package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/acquire-cli/internal/agents"
	"github.com/sells-group/acquire-cli/internal/model"
	"github.com/sells-group/acquire-cli/internal/resilience"
	"github.com/sells-group/acquire-cli/pkg/anthropic"
)

const synthesisPrompt = `You are a synthesis and reasoning agent.

Your role:
- Reason over completed research outputs
- Identify cross-cutting patterns and second-order risks
- Produce a concise SWOT analysis
- Assess sector suitability for a high-risk, short-horizon buyer

Rules:
- Do NOT introduce new facts
- Do NOT repeat research verbatim
- Only reason over provided inputs
- Be decisive and concise
- Respond ONLY in valid JSON matching the required schema

Output ONLY valid JSON with exactly this structure:
{
  "swot": {
    "strengths": ["list of key strengths"],
    "weaknesses": ["list of key weaknesses"],
    "opportunities": ["list of key opportunities"],
    "threats": ["list of key threats"]
  },
  "non_obvious_risks": ["list of risks that emerge from combining research areas"],
  "time_sensitive_opportunities": ["list of opportunities requiring immediate action"],
  "sector_fit_verdict": "High/Medium/Low attractiveness assessment",
  "justification": "1-2 sentence justification for the verdict"
}`

// AnthropicSynthesizer is the model-backed Synthesizer.
type AnthropicSynthesizer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	retry     resilience.RetryConfig
}

var _ Synthesizer = (*AnthropicSynthesizer)(nil)

// NewSynthesizer builds a synthesis agent backed by the given client and model.
func NewSynthesizer(client anthropic.Client, modelID string, maxTokens int64, retry resilience.RetryConfig) *AnthropicSynthesizer {
	return &AnthropicSynthesizer{
		client:    client,
		model:     modelID,
		maxTokens: maxTokens,
		retry:     retry,
	}
}

func (s *AnthropicSynthesizer) Synthesize(ctx context.Context, sectorDescription string, findings map[string]SectorFinding) (*Synthesis, agents.Usage, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Synthesize research for sector: %s\n", sectorDescription)
	for _, sector := range SectorOrder {
		data, err := json.Marshal(findings[sector])
		if err != nil {
			return nil, agents.Usage{}, eris.Wrapf(err, "research: marshal %s finding", sector)
		}
		fmt.Fprintf(&sb, "\n%s:\n%s\n", strings.ToUpper(sector), data)
	}

	resp, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return s.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     s.model,
			MaxTokens: s.maxTokens,
			System:    anthropic.BuildCachedSystemBlocks(synthesisPrompt),
			Messages:  []anthropic.Message{{Role: "user", Content: sb.String()}},
		})
	})
	if err != nil {
		return nil, agents.Usage{}, eris.Wrap(err, "research: synthesis call")
	}
	resp.Usage.LogCost(s.model, "research_synthesis")

	usage := agents.Usage{
		Model: s.model,
		TokenUsage: model.TokenUsage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
			Cost:         resp.Usage.EstimateCost(s.model),
		},
	}

	synthesis, err := parseSynthesis(resp.Text())
	if err != nil {
		return nil, usage, err
	}
	return synthesis, usage, nil
}

// parseSynthesis decodes and validates a synthesis response.
func parseSynthesis(raw string) (*Synthesis, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return nil, eris.Wrap(agents.ErrInvalidOutput, "research: synthesis response contains no JSON object")
	}

	var out Synthesis
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return nil, eris.Wrapf(agents.ErrInvalidOutput, "research: decode synthesis: %v", err)
	}
	if out.SectorFitVerdict == "" {
		return nil, eris.Wrap(agents.ErrInvalidOutput, "research: synthesis missing sector_fit_verdict")
	}
	if out.Justification == "" {
		return nil, eris.Wrap(agents.ErrInvalidOutput, "research: synthesis missing justification")
	}
	return &out, nil
}
