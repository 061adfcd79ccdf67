// Package pipeline sequences the categorization stages for one business:
// canonicalize the latest raw listing, score the canonical record, and
// generate seller follow-up questions. Stages run strictly in order and the
// run halts on the first stage failure. Each agent invocation is written to
// the agent execution audit log.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/acquire-cli/internal/agents"
	"github.com/sells-group/acquire-cli/internal/model"
	"github.com/sells-group/acquire-cli/internal/store"
)

// CanonicalizeResult reports the outcome of the canonicalize stage. Created
// distinguishes a new version from an idempotent reuse of the existing one.
type CanonicalizeResult struct {
	RecordID    string `json:"record_id"`
	BusinessID  string `json:"business_id"`
	Version     int    `json:"version"`
	ContentHash string `json:"content_hash"`
	Created     bool   `json:"created"`
}

// ScoreResult reports the outcome of the score stage.
type ScoreResult struct {
	ScoringID     string                  `json:"scoring_id"`
	BusinessID    string                  `json:"business_id"`
	RecordVersion int                     `json:"record_version"`
	Components    model.ScoringComponents `json:"components"`
	TotalScore    float64                 `json:"total_score"`
	Tier          model.Tier              `json:"tier"`
}

// FollowUpResult reports the outcome of the follow-up stage. Ineligible
// records and complete records with no uncertainties are expected outcomes,
// not failures.
type FollowUpResult struct {
	Eligible  bool                     `json:"eligible"`
	Questions []model.FollowUpQuestion `json:"questions,omitempty"`
	Inserted  int                      `json:"inserted"`
}

// RunResult aggregates the stage results of one full pipeline run.
type RunResult struct {
	AgentRunID string              `json:"agent_run_id"`
	BusinessID string              `json:"business_id"`
	Canonical  *CanonicalizeResult `json:"canonical,omitempty"`
	Score      *ScoreResult        `json:"score,omitempty"`
	FollowUp   *FollowUpResult     `json:"follow_up,omitempty"`
}

// Pipeline wires the store and the three agent collaborators.
type Pipeline struct {
	store     store.Store
	extractor agents.Extractor
	scorer    agents.ComponentScorer
	questions agents.QuestionGenerator
}

// New creates a Pipeline with all dependencies.
func New(st store.Store, extractor agents.Extractor, scorer agents.ComponentScorer, questions agents.QuestionGenerator) *Pipeline {
	return &Pipeline{
		store:     st,
		extractor: extractor,
		scorer:    scorer,
		questions: questions,
	}
}

// Run executes canonicalize, score, and follow-ups for one business, halting
// on the first stage failure. Partial results up to the failed stage are
// returned alongside the error.
func (p *Pipeline) Run(ctx context.Context, businessID string) (*RunResult, error) {
	runID := uuid.New().String()
	log := zap.L().With(zap.String("business_id", businessID), zap.String("agent_run_id", runID))
	log.Info("pipeline: starting run")

	result := &RunResult{AgentRunID: runID, BusinessID: businessID}

	canonical, err := p.canonicalize(ctx, runID, businessID)
	if err != nil {
		return result, err
	}
	result.Canonical = canonical

	score, err := p.score(ctx, runID, businessID, canonical.Version)
	if err != nil {
		return result, err
	}
	result.Score = score

	followUp, err := p.followUps(ctx, runID, businessID, score)
	result.FollowUp = followUp
	if err != nil {
		return result, err
	}

	log.Info("pipeline: run complete",
		zap.Int("version", canonical.Version),
		zap.Bool("created", canonical.Created),
		zap.Float64("total_score", score.TotalScore),
		zap.String("tier", string(score.Tier)),
		zap.Bool("eligible", followUp.Eligible),
		zap.Int("questions", followUp.Inserted),
	)
	return result, nil
}

// Canonicalize runs only the canonicalize stage for a business.
func (p *Pipeline) Canonicalize(ctx context.Context, businessID string) (*CanonicalizeResult, error) {
	return p.canonicalize(ctx, uuid.New().String(), businessID)
}

// Score runs only the score stage against the latest canonical version.
func (p *Pipeline) Score(ctx context.Context, businessID string) (*ScoreResult, error) {
	version, _, err := p.store.LatestCanonicalMeta(ctx, businessID)
	if eris.Is(err, store.ErrNotFound) {
		return nil, stageErr(stageScore, KindNoRecord, eris.Errorf("no canonical record for business %s", businessID))
	}
	if err != nil {
		return nil, stageErr(stageScore, KindPersistenceFailure, err)
	}
	return p.score(ctx, uuid.New().String(), businessID, version)
}

// FollowUps runs only the follow-up stage against the latest scoring record.
func (p *Pipeline) FollowUps(ctx context.Context, businessID string) (*FollowUpResult, error) {
	sr, err := p.store.LatestScoringRecord(ctx, businessID)
	if eris.Is(err, store.ErrNotFound) {
		return nil, stageErr(stageFollowUps, KindNoRecord, eris.Errorf("no scoring record for business %s", businessID))
	}
	if err != nil {
		return nil, stageErr(stageFollowUps, KindPersistenceFailure, err)
	}
	return p.followUps(ctx, uuid.New().String(), businessID, &ScoreResult{
		ScoringID:     sr.ID,
		BusinessID:    sr.BusinessID,
		RecordVersion: sr.RecordVersion,
		Components:    sr.Components,
		TotalScore:    sr.TotalScore,
		Tier:          sr.Tier,
	})
}

// logExecution writes one audit row. Audit failures are logged and swallowed;
// they never fail the stage.
func (p *Pipeline) logExecution(ctx context.Context, runID, businessID, stage, outcome string, usage agents.Usage, started time.Time, execErr error) {
	e := &model.AgentExecution{
		AgentRunID: runID,
		BusinessID: businessID,
		Stage:      stage,
		Model:      usage.Model,
		Outcome:    outcome,
		TokenUsage: usage.TokenUsage,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	if execErr != nil {
		e.Error = execErr.Error()
	}
	if err := p.store.LogAgentExecution(ctx, e); err != nil {
		zap.L().Warn("pipeline: failed to log agent execution",
			zap.String("stage", stage),
			zap.Error(err),
		)
	}
}

// outcomeFor maps an agent error to an audit outcome.
func outcomeFor(err error) string {
	switch {
	case err == nil:
		return model.ExecSucceeded
	case eris.Is(err, agents.ErrInvalidOutput):
		return model.ExecValidationFailed
	default:
		return model.ExecFailed
	}
}
