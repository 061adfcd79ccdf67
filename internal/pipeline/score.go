package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/acquire-cli/internal/agents"
	"github.com/sells-group/acquire-cli/internal/model"
	"github.com/sells-group/acquire-cli/internal/scorer"
	"github.com/sells-group/acquire-cli/internal/store"
)

const stageScore = "score"

// score loads a canonical version, asks the scoring agent for components,
// then applies penalties, aggregates, and tiers deterministically before
// persisting the scoring record. Validation failures block persistence.
func (p *Pipeline) score(ctx context.Context, runID, businessID string, version int) (*ScoreResult, error) {
	rec, err := p.store.GetCanonicalRecord(ctx, businessID, version)
	if eris.Is(err, store.ErrNotFound) {
		return nil, stageErr(stageScore, KindNoRecord, eris.Errorf("canonical record %s v%d not found", businessID, version))
	}
	if err != nil {
		return nil, stageErr(stageScore, KindPersistenceFailure, err)
	}

	started := time.Now().UTC()
	out, usage, err := p.scorer.ScoreComponents(ctx, rec)
	p.logExecution(ctx, runID, businessID, stageScore, outcomeFor(err), usage, started, err)
	if eris.Is(err, agents.ErrInvalidOutput) {
		return nil, stageErr(stageScore, KindSchemaValidation, err)
	}
	if err != nil {
		return nil, stageErr(stageScore, KindUpstreamFailure, err)
	}

	adjusted, total, tier := scorer.Score(out, rec.ConfidenceFlags)

	sr := &model.ScoringRecord{
		BusinessID:    businessID,
		RecordVersion: version,
		AgentRunID:    runID,
		Components:    adjusted,
		TotalScore:    total,
		Tier:          tier,
		TopBuyReasons: out.TopBuyReasons,
		TopRisks:      out.TopRisks,
		Rationale:     out.Rationale,
	}
	if err := p.store.InsertScoringRecord(ctx, sr); err != nil {
		return nil, stageErr(stageScore, KindPersistenceFailure, err)
	}

	zap.L().Info("pipeline: scored",
		zap.String("business_id", businessID),
		zap.Int("version", version),
		zap.Float64("total_score", total),
		zap.String("tier", string(tier)),
	)
	return &ScoreResult{
		ScoringID:     sr.ID,
		BusinessID:    businessID,
		RecordVersion: version,
		Components:    adjusted,
		TotalScore:    total,
		Tier:          tier,
	}, nil
}
