package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/acquire-cli/internal/agents"
	"github.com/sells-group/acquire-cli/internal/pipeline"
	"github.com/sells-group/acquire-cli/internal/resilience"
	"github.com/sells-group/acquire-cli/internal/store"
	"github.com/sells-group/acquire-cli/pkg/anthropic"
)

// pipelineEnv bundles the wired dependencies a pipeline command needs.
type pipelineEnv struct {
	Store    store.Store
	Client   anthropic.Client
	Pipeline *pipeline.Pipeline
}

func (e *pipelineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// retryFromConfig converts the loaded retry settings into the resilience
// representation used by the agent clients.
func retryFromConfig() resilience.RetryConfig {
	return resilience.FromRetryConfig(
		cfg.Retry.MaxAttempts,
		cfg.Retry.InitialBackoffMs,
		cfg.Retry.MaxBackoffMs,
		cfg.Retry.Multiplier,
		cfg.Retry.JitterFraction,
	)
}

// initPipeline opens the store, runs migrations, and wires the extraction,
// scoring, and question agents into a pipeline.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate("pipeline"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate")
	}

	templates, err := agents.LoadTemplates(cfg.Pipeline.QuestionTemplatePath)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "load question templates")
	}

	client := anthropic.WithCircuitBreaker(
		anthropic.NewClient(cfg.Anthropic.Key, cfg.Anthropic.RequestsPerSecond),
		anthropic.NewDefaultBreaker(),
	)
	retry := retryFromConfig()

	extractor := agents.NewExtractionAgent(client, cfg.Anthropic.HaikuModel, cfg.Anthropic.MaxTokens, retry)
	scorer := agents.NewScoringAgent(client, cfg.Anthropic.SonnetModel, cfg.Anthropic.MaxTokens, retry)
	questions := agents.NewQuestionAgent(client, cfg.Anthropic.SonnetModel, cfg.Anthropic.MaxTokens, retry, templates)

	return &pipelineEnv{
		Store:    st,
		Client:   client,
		Pipeline: pipeline.New(st, extractor, scorer, questions),
	}, nil
}
