package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/acquire-cli/internal/agents"
	"github.com/sells-group/acquire-cli/internal/model"
	"github.com/sells-group/acquire-cli/internal/store"
	"github.com/sells-group/acquire-cli/internal/uncertainty"
)

const stageFollowUps = "follow_ups"

// followUps gates the scored record, analyzes its uncertainties, and inserts
// generated questions one row at a time. Ineligibility and a clean record are
// successful no-ops. Questions are inserted individually so a mid-batch
// failure preserves the rows already written.
func (p *Pipeline) followUps(ctx context.Context, runID, businessID string, score *ScoreResult) (*FollowUpResult, error) {
	log := zap.L().With(zap.String("business_id", businessID))

	if !uncertainty.Eligible(score.Tier, score.TotalScore) {
		log.Info("pipeline: record ineligible for follow-up",
			zap.String("tier", string(score.Tier)),
			zap.Float64("total_score", score.TotalScore),
		)
		return &FollowUpResult{Eligible: false}, nil
	}

	rec, err := p.store.GetCanonicalRecord(ctx, businessID, score.RecordVersion)
	if eris.Is(err, store.ErrNotFound) {
		return nil, stageErr(stageFollowUps, KindNoRecord, eris.Errorf("canonical record %s v%d not found", businessID, score.RecordVersion))
	}
	if err != nil {
		return nil, stageErr(stageFollowUps, KindPersistenceFailure, err)
	}

	uncertainties := uncertainty.Analyze(rec)
	if len(uncertainties) == 0 {
		log.Info("pipeline: record complete, no follow-up needed")
		return &FollowUpResult{Eligible: true}, nil
	}

	started := time.Now().UTC()
	drafts, usage, err := p.questions.GenerateQuestions(ctx, rec, uncertainties)
	p.logExecution(ctx, runID, businessID, stageFollowUps, outcomeFor(err), usage, started, err)
	if eris.Is(err, agents.ErrInvalidOutput) {
		return nil, stageErr(stageFollowUps, KindSchemaValidation, err)
	}
	if err != nil {
		return nil, stageErr(stageFollowUps, KindUpstreamFailure, err)
	}

	// The generator is not trusted to honor the cap.
	if len(drafts) > uncertainty.MaxUncertainties {
		drafts = drafts[:uncertainty.MaxUncertainties]
	}

	result := &FollowUpResult{Eligible: true}
	for _, d := range drafts {
		q := &model.FollowUpQuestion{
			BusinessID:    businessID,
			RecordVersion: score.RecordVersion,
			AgentRunID:    runID,
			Question:      d.Question,
			Category:      categoryFor(d.Field),
			Priority:      d.Severity,
			SourceField:   d.Field,
		}
		if insertErr := p.store.InsertFollowUpQuestion(ctx, q); insertErr != nil {
			// Rows already written stay written.
			log.Error("pipeline: question insert failed",
				zap.Int("inserted", result.Inserted),
				zap.Error(insertErr),
			)
			return result, stageErr(stageFollowUps, KindPersistenceFailure, insertErr)
		}
		result.Questions = append(result.Questions, *q)
		result.Inserted++
	}

	log.Info("pipeline: follow-up questions generated",
		zap.Int("uncertainties", len(uncertainties)),
		zap.Int("inserted", result.Inserted),
	)
	return result, nil
}

// categoryFor maps an uncertainty field path to its top-level content domain.
func categoryFor(field string) string {
	for _, domain := range model.ContentDomains {
		if field == domain {
			return domain
		}
		if len(field) > len(domain) && field[:len(domain)] == domain && field[len(domain)] == '.' {
			return domain
		}
	}
	return "general"
}
