package pipeline

import (
	"context"
	"fmt"

	"github.com/sells-group/acquire-cli/internal/agents"
	"github.com/sells-group/acquire-cli/internal/model"
	"github.com/sells-group/acquire-cli/internal/store"
)

// stubExtractor returns a canned record or error and counts calls.
type stubExtractor struct {
	rec   *model.CanonicalRecord
	err   error
	calls int
}

var _ agents.Extractor = (*stubExtractor)(nil)

func (s *stubExtractor) Extract(_ context.Context, l *model.RawListing) (*model.CanonicalRecord, agents.Usage, error) {
	s.calls++
	if s.err != nil {
		return nil, agents.Usage{}, s.err
	}
	rec := *s.rec
	rec.BusinessID = l.BusinessID
	return &rec, agents.Usage{Model: "stub-extractor"}, nil
}

// stubScorer returns a canned scoring output or error.
type stubScorer struct {
	out   *model.ScoringOutput
	err   error
	calls int
}

var _ agents.ComponentScorer = (*stubScorer)(nil)

func (s *stubScorer) ScoreComponents(_ context.Context, _ *model.CanonicalRecord) (*model.ScoringOutput, agents.Usage, error) {
	s.calls++
	if s.err != nil {
		return nil, agents.Usage{}, s.err
	}
	out := *s.out
	return &out, agents.Usage{Model: "stub-scorer"}, nil
}

// stubQuestions echoes one draft per uncertainty, or returns a canned error.
type stubQuestions struct {
	err    error
	calls  int
	drafts []agents.QuestionDraft
}

var _ agents.QuestionGenerator = (*stubQuestions)(nil)

func (s *stubQuestions) GenerateQuestions(_ context.Context, _ *model.CanonicalRecord, uncs []model.Uncertainty) ([]agents.QuestionDraft, agents.Usage, error) {
	s.calls++
	if s.err != nil {
		return nil, agents.Usage{}, s.err
	}
	if s.drafts != nil {
		return s.drafts, agents.Usage{Model: "stub-questions"}, nil
	}
	drafts := make([]agents.QuestionDraft, 0, len(uncs))
	for _, u := range uncs {
		drafts = append(drafts, agents.QuestionDraft{
			Question: "Can you clarify " + u.Field + "?",
			Field:    u.Field,
			Severity: u.Severity,
		})
	}
	return drafts, agents.Usage{Model: "stub-questions"}, nil
}

func stubDraft(i int) agents.QuestionDraft {
	return agents.QuestionDraft{
		Question: fmt.Sprintf("Question %d?", i),
		Field:    fmt.Sprintf("field_%d", i),
		Severity: model.SeverityMedium,
	}
}

func errInvalidForTest() error {
	return agents.ErrInvalidOutput
}

// hookStore wraps a real store and lets a test intercept individual writes.
type hookStore struct {
	store.Store
	insertCanonical func(ctx context.Context, rec *model.CanonicalRecord) error
	insertQuestion  func(ctx context.Context, q *model.FollowUpQuestion) error
}

func (h *hookStore) InsertCanonicalRecord(ctx context.Context, rec *model.CanonicalRecord) error {
	if h.insertCanonical != nil {
		return h.insertCanonical(ctx, rec)
	}
	return h.Store.InsertCanonicalRecord(ctx, rec)
}

func (h *hookStore) InsertFollowUpQuestion(ctx context.Context, q *model.FollowUpQuestion) error {
	if h.insertQuestion != nil {
		return h.insertQuestion(ctx, q)
	}
	return h.Store.InsertFollowUpQuestion(ctx, q)
}
