package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/acquire-cli/internal/model"
	"github.com/sells-group/acquire-cli/internal/resilience"
	"github.com/sells-group/acquire-cli/pkg/anthropic"
)

// questionPayload is the shape the follow-up agent emits.
type questionPayload struct {
	Questions []struct {
		Question string `json:"question"`
		Field    string `json:"field"`
		Severity string `json:"severity"`
	} `json:"questions"`
}

// QuestionAgent is the anthropic-backed QuestionGenerator. When the model
// response is unusable, or usable but incomplete, it falls back to canned
// template questions per uncertainty rather than failing the stage: a generic
// question beats no question.
type QuestionAgent struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	retry     resilience.RetryConfig
	templates *TemplateRegistry
}

var _ QuestionGenerator = (*QuestionAgent)(nil)

// NewQuestionAgent builds a question generator. A nil templates registry
// falls back to the built-in defaults.
func NewQuestionAgent(client anthropic.Client, modelID string, maxTokens int64, retry resilience.RetryConfig, templates *TemplateRegistry) *QuestionAgent {
	if templates == nil {
		templates = DefaultTemplates()
	}
	return &QuestionAgent{
		client:    client,
		model:     modelID,
		maxTokens: maxTokens,
		retry:     retry,
		templates: templates,
	}
}

// GenerateQuestions writes one seller question per uncertainty. Severity and
// field always come from the uncertainty, never from the model.
func (a *QuestionAgent) GenerateQuestions(ctx context.Context, rec *model.CanonicalRecord, uncertainties []model.Uncertainty) ([]QuestionDraft, Usage, error) {
	if len(uncertainties) == 0 {
		return nil, Usage{}, nil
	}

	uncJSON, err := json.Marshal(uncertainties)
	if err != nil {
		return nil, Usage{}, eris.Wrap(err, "agents: marshal uncertainties")
	}
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return nil, Usage{}, eris.Wrap(err, "agents: marshal canonical record")
	}

	req := anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(followupSystemPrompt),
		Messages: []anthropic.Message{
			{
				Role:    "user",
				Content: fmt.Sprintf("Uncertainties: %s\n\nCanonical Data: %s", uncJSON, recJSON),
			},
		},
	}

	resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, Usage{}, eris.Wrap(err, "agents: question call")
	}
	resp.Usage.LogCost(a.model, "followup")
	usage := usageFrom(a.model, resp.Usage)

	generated := map[string]string{}
	var payload questionPayload
	if err := decodeStrict(resp.Text(), &payload); err != nil {
		zap.L().Warn("question response unusable, using templates",
			zap.String("business_id", rec.BusinessID),
			zap.Error(err),
		)
	} else {
		for _, q := range payload.Questions {
			text := strings.TrimSpace(q.Question)
			if text == "" {
				continue
			}
			if _, dup := generated[q.Field]; !dup {
				generated[q.Field] = text
			}
		}
	}

	drafts := make([]QuestionDraft, 0, len(uncertainties))
	for _, u := range uncertainties {
		text, ok := generated[u.Field]
		if !ok {
			text = a.templates.QuestionFor(u)
		}
		drafts = append(drafts, QuestionDraft{
			Question: text,
			Field:    u.Field,
			Severity: u.Severity,
		})
	}
	return drafts, usage, nil
}
