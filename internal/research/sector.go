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

// sectorSpec carries the per-sector prompt material and the output keys the
// response must contain.
type sectorSpec struct {
	name  string
	role  string
	rules string
	task  string
	keys  []string
}

var sectorSpecs = map[string]sectorSpec{
	SectorMarketStructure: {
		name: SectorMarketStructure,
		role: `- Analyze macro and structural forces affecting the sector
- Focus on demand trends, tailwinds, and headwinds
- Evaluate viability for small independent operators`,
		rules: `- Do not analyze individual companies
- Do not speculate beyond evidence
- Do not suggest strategies or actions`,
		task: `Output ONLY valid JSON with exactly these keys:
- market_trend: Current market trend and growth trajectory
- demand_drivers: Key factors driving market demand
- headwinds: Major challenges and obstacles
- tailwinds: Significant opportunities and advantages
- small_operator_viability: Assessment of viability for small operators
- sources: Key data sources or references used in analysis`,
		keys: []string{"market_trend", "demand_drivers", "headwinds", "tailwinds", "small_operator_viability", "sources"},
	},
	SectorPlatformRisk: {
		name: SectorPlatformRisk,
		role: `- Identify platform dependencies and policy risks
- Surface historical failure patterns
- Highlight asymmetric downside risks`,
		rules: `- Focus on historical and documented platform behavior
- Avoid speculation and mitigation strategies`,
		task: `Output ONLY valid JSON with exactly these keys:
- platform_dependencies: List of key platform dependencies
- historical_policy_changes: Documented policy changes that affected businesses
- failure_modes: Historical failure modes and outages
- risk_level: Overall risk assessment (Low/Medium/High)
- sources: Key data sources or references used in analysis`,
		keys: []string{"platform_dependencies", "historical_policy_changes", "failure_modes", "risk_level", "sources"},
	},
	SectorMonetization: {
		name: SectorMonetization,
		role: `- Analyze how revenue is generated in this sector
- Identify proven monetization strategies
- Surface common monetization gaps and ceilings`,
		rules: `- Base conclusions on real-world examples
- Do not include hypothetical strategies`,
		task: `Output ONLY valid JSON with exactly these keys:
- dominant_models: List of dominant monetization models in the sector
- high_performing_strategies: Documented high-performing revenue strategies
- common_monetization_gaps: Common monetization challenges and gaps
- revenue_ceiling_constraints: Factors that constrain revenue scaling
- sources: Key data sources or references used in analysis`,
		keys: []string{"dominant_models", "high_performing_strategies", "common_monetization_gaps", "revenue_ceiling_constraints", "sources"},
	},
	SectorCompetition: {
		name: SectorCompetition,
		role: `- Assess competitive intensity and structure
- Identify dominant players and successful independents
- Determine how winners differentiate`,
		rules: `- Avoid exhaustive competitor lists
- Avoid marketing language; focus on factual competitive dynamics`,
		task: `Output ONLY valid JSON with exactly these keys:
- dominant_players: List of dominant players with significant market share
- independent_success_cases: Documented cases of independent businesses succeeding
- winner_differentiation: Key patterns of differentiation among winners
- competition_intensity: Assessment of competition intensity (Low/Medium/High)
- sources: Key data sources or references used in analysis`,
		keys: []string{"dominant_players", "independent_success_cases", "winner_differentiation", "competition_intensity", "sources"},
	},
	SectorExit: {
		name: SectorExit,
		role: `- Identify who acquires businesses in this sector
- Analyze typical exit multiples
- Determine what changes increase exit value`,
		rules: `- Reference real acquisition behavior where possible
- Focus on documented exit patterns, avoid speculation`,
		task: `Output ONLY valid JSON with exactly these keys:
- buyer_types: Types of buyers that acquire businesses in this sector
- typical_multiples: Typical exit valuation multiples from real transactions
- value_creation_triggers: Key factors that trigger enterprise value creation
- successful_exit_narratives: Documented narratives from successful exits
- sources: Key data sources or references used in analysis`,
		keys: []string{"buyer_types", "typical_multiples", "value_creation_triggers", "successful_exit_narratives", "sources"},
	},
}

// AnthropicSectorAgent is the model-backed SectorAgent.
type AnthropicSectorAgent struct {
	spec      sectorSpec
	client    anthropic.Client
	model     string
	maxTokens int64
	retry     resilience.RetryConfig
}

var _ SectorAgent = (*AnthropicSectorAgent)(nil)

// NewSectorAgents builds the model-backed agents for every sector.
func NewSectorAgents(client anthropic.Client, modelID string, maxTokens int64, retry resilience.RetryConfig) []SectorAgent {
	out := make([]SectorAgent, 0, len(SectorOrder))
	for _, sector := range SectorOrder {
		out = append(out, &AnthropicSectorAgent{
			spec:      sectorSpecs[sector],
			client:    client,
			model:     modelID,
			maxTokens: maxTokens,
			retry:     retry,
		})
	}
	return out
}

func (a *AnthropicSectorAgent) Sector() string {
	return a.spec.name
}

func (a *AnthropicSectorAgent) Research(ctx context.Context, sectorDescription string) (SectorFinding, agents.Usage, error) {
	prompt := fmt.Sprintf(`You are a sector-level %s research agent.

Your role:
%s

Rules:
%s
- Output must be factual, concise, and structured
- Respond ONLY in valid JSON matching the required schema

Analyze the following sector: %s

%s

Do not include any text outside the JSON object.`,
		strings.ReplaceAll(a.spec.name, "_", " "), a.spec.role, a.spec.rules, sectorDescription, a.spec.task)

	resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     a.model,
			MaxTokens: a.maxTokens,
			Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
		})
	})
	if err != nil {
		return nil, agents.Usage{}, eris.Wrapf(err, "research: %s call", a.spec.name)
	}
	resp.Usage.LogCost(a.model, "research_"+a.spec.name)

	usage := agents.Usage{
		Model: a.model,
		TokenUsage: model.TokenUsage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
			Cost:         resp.Usage.EstimateCost(a.model),
		},
	}

	finding, err := parseFinding(resp.Text(), a.spec.keys)
	if err != nil {
		return nil, usage, eris.Wrapf(err, "research: %s output", a.spec.name)
	}
	return finding, usage, nil
}

// parseFinding decodes a sector response and checks the required keys.
func parseFinding(raw string, requiredKeys []string) (SectorFinding, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return nil, eris.Wrap(agents.ErrInvalidOutput, "response contains no JSON object")
	}

	var finding SectorFinding
	if err := json.Unmarshal([]byte(raw[start:end+1]), &finding); err != nil {
		return nil, eris.Wrapf(agents.ErrInvalidOutput, "decode finding: %v", err)
	}
	for _, key := range requiredKeys {
		if _, ok := finding[key]; !ok {
			return nil, eris.Wrapf(agents.ErrInvalidOutput, "missing key %s", key)
		}
	}
	return finding, nil
}
