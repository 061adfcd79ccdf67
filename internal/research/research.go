// Package research runs sector-level deep research: five sector agents fan
// out in parallel, each filling its own named slot, and a synthesis agent
// reasons over the joined results. Synthesis never runs against partial
// research; the join barrier checks every slot before it starts.
package research

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/acquire-cli/internal/agents"
	"github.com/sells-group/acquire-cli/internal/model"
	"github.com/sells-group/acquire-cli/internal/store"
)

// The five research sectors, in report order.
const (
	SectorMarketStructure = "market_structure"
	SectorPlatformRisk    = "platform_risk"
	SectorMonetization    = "monetization"
	SectorCompetition     = "competition"
	SectorExit            = "exit"
)

// SectorOrder lists every required sector.
var SectorOrder = []string{
	SectorMarketStructure,
	SectorPlatformRisk,
	SectorMonetization,
	SectorCompetition,
	SectorExit,
}

// SectorFinding is one sector agent's structured output.
type SectorFinding map[string]any

// SectorAgent researches one sector.
type SectorAgent interface {
	Sector() string
	Research(ctx context.Context, sectorDescription string) (SectorFinding, agents.Usage, error)
}

// Synthesizer composes the cross-sector verdict from completed findings.
type Synthesizer interface {
	Synthesize(ctx context.Context, sectorDescription string, findings map[string]SectorFinding) (*Synthesis, agents.Usage, error)
}

// SWOT is the four-quadrant summary produced by synthesis.
type SWOT struct {
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Threats       []string `json:"threats"`
}

// Synthesis is the final cross-sector analysis.
type Synthesis struct {
	SWOT                       SWOT     `json:"swot"`
	NonObviousRisks            []string `json:"non_obvious_risks"`
	TimeSensitiveOpportunities []string `json:"time_sensitive_opportunities"`
	SectorFitVerdict           string   `json:"sector_fit_verdict"`
	Justification              string   `json:"justification"`
}

// Result is one complete deep-research run.
type Result struct {
	ResearchRunID string                   `json:"research_run_id"`
	SectorKey     string                   `json:"sector_key"`
	BusinessID    string                   `json:"business_id,omitempty"`
	Findings      map[string]SectorFinding `json:"findings"`
	Synthesis     *Synthesis               `json:"synthesis"`
	TokenUsage    model.TokenUsage         `json:"token_usage"`
}

// Runner fans research out across sector agents and joins into synthesis.
type Runner struct {
	sectorAgents map[string]SectorAgent
	synth        Synthesizer
	store        store.Store
}

// NewRunner builds a runner. Every sector in SectorOrder must be covered by
// exactly one agent.
func NewRunner(sectorAgents []SectorAgent, synth Synthesizer, st store.Store) (*Runner, error) {
	byName := make(map[string]SectorAgent, len(sectorAgents))
	for _, a := range sectorAgents {
		if _, dup := byName[a.Sector()]; dup {
			return nil, eris.Errorf("research: duplicate agent for sector %s", a.Sector())
		}
		byName[a.Sector()] = a
	}
	for _, sector := range SectorOrder {
		if _, ok := byName[sector]; !ok {
			return nil, eris.Errorf("research: no agent for sector %s", sector)
		}
	}
	return &Runner{sectorAgents: byName, synth: synth, store: st}, nil
}

// Run executes all sector agents in parallel, joins their findings, and
// synthesizes the verdict. businessID is optional; sector-only research
// passes "".
func (r *Runner) Run(ctx context.Context, sectorDescription, businessID string) (*Result, error) {
	if strings.TrimSpace(sectorDescription) == "" {
		return nil, eris.New("research: sector description is required")
	}

	result := &Result{
		ResearchRunID: uuid.New().String(),
		SectorKey:     SectorKey(sectorDescription),
		BusinessID:    businessID,
		Findings:      make(map[string]SectorFinding, len(SectorOrder)),
	}
	log := zap.L().With(
		zap.String("research_run_id", result.ResearchRunID),
		zap.String("sector_key", result.SectorKey),
	)
	log.Info("research: starting run")

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	for _, sector := range SectorOrder {
		agent := r.sectorAgents[sector]
		g.Go(func() error {
			started := time.Now().UTC()
			finding, usage, err := agent.Research(gCtx, sectorDescription)
			r.logExecution(ctx, result.ResearchRunID, businessID, "research_"+agent.Sector(), usage, started, err)
			if err != nil {
				return eris.Wrapf(err, "research: sector %s", agent.Sector())
			}
			mu.Lock()
			result.Findings[agent.Sector()] = finding
			result.TokenUsage.Add(usage.TokenUsage)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Join barrier: every slot must be populated before synthesis.
	var missing []string
	for _, sector := range SectorOrder {
		if len(result.Findings[sector]) == 0 {
			missing = append(missing, sector)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("research: synthesis blocked, missing findings for %s", strings.Join(missing, ", "))
	}

	started := time.Now().UTC()
	synthesis, usage, err := r.synth.Synthesize(ctx, sectorDescription, result.Findings)
	r.logExecution(ctx, result.ResearchRunID, businessID, "research_synthesis", usage, started, err)
	if err != nil {
		return nil, eris.Wrap(err, "research: synthesis")
	}
	result.Synthesis = synthesis
	result.TokenUsage.Add(usage.TokenUsage)

	log.Info("research: run complete",
		zap.String("verdict", synthesis.SectorFitVerdict),
		zap.Int("input_tokens", result.TokenUsage.InputTokens),
		zap.Int("output_tokens", result.TokenUsage.OutputTokens),
	)
	return result, nil
}

func (r *Runner) logExecution(ctx context.Context, runID, businessID, stage string, usage agents.Usage, started time.Time, execErr error) {
	if r.store == nil {
		return
	}
	e := &model.AgentExecution{
		AgentRunID: runID,
		BusinessID: businessID,
		Stage:      stage,
		Model:      usage.Model,
		Outcome:    model.ExecSucceeded,
		TokenUsage: usage.TokenUsage,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	if execErr != nil {
		e.Outcome = model.ExecFailed
		e.Error = execErr.Error()
	}
	if err := r.store.LogAgentExecution(ctx, e); err != nil {
		zap.L().Warn("research: failed to log agent execution",
			zap.String("stage", stage),
			zap.Error(err),
		)
	}
}

// SectorKey derives a stable key from a free-text sector description.
func SectorKey(description string) string {
	key := strings.ToLower(strings.TrimSpace(description))
	key = strings.ReplaceAll(key, " ", "_")
	if len(key) > 100 {
		key = key[:100]
	}
	return key
}
