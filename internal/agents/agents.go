// Package agents holds the model-backed collaborators of the pipeline: the
// extraction agent that turns raw listings into canonical records, the
// scoring agent that produces component scores, and the question generator
// that writes seller follow-ups. Each agent speaks strict JSON; anything the
// model returns that does not decode into the expected schema is an
// ErrInvalidOutput, not a silent best-effort parse.
package agents

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/acquire-cli/internal/model"
	"github.com/sells-group/acquire-cli/pkg/anthropic"
)

// ErrInvalidOutput marks an agent response that was received but failed
// schema validation. Callers treat it differently from a transport failure:
// the call "worked", the payload is unusable.
var ErrInvalidOutput = eris.New("agents: invalid agent output")

// Usage describes one agent call for audit logging.
type Usage struct {
	Model      string
	TokenUsage model.TokenUsage
}

// Extractor turns a raw listing into structured canonical domains.
type Extractor interface {
	Extract(ctx context.Context, l *model.RawListing) (*model.CanonicalRecord, Usage, error)
}

// ComponentScorer produces component scores and rationale for a canonical
// record. It never computes the total or the tier; those are deterministic.
type ComponentScorer interface {
	ScoreComponents(ctx context.Context, rec *model.CanonicalRecord) (*model.ScoringOutput, Usage, error)
}

// QuestionDraft is one generated question before it is bound to a business
// and record version. The caller owns the cap and the persistence shape.
type QuestionDraft struct {
	Question string         `json:"question"`
	Field    string         `json:"field"`
	Severity model.Severity `json:"severity"`
}

// QuestionGenerator writes seller follow-up questions from prioritized
// uncertainties.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, rec *model.CanonicalRecord, uncertainties []model.Uncertainty) ([]QuestionDraft, Usage, error)
}

func usageFrom(modelID string, u anthropic.TokenUsage) Usage {
	return Usage{
		Model: modelID,
		TokenUsage: model.TokenUsage{
			InputTokens:  int(u.InputTokens),
			OutputTokens: int(u.OutputTokens),
			Cost:         u.EstimateCost(modelID),
		},
	}
}
