package model

import "time"

// Agent execution outcomes. ExecValidationFailed is its own outcome so that
// a structurally invalid agent response is distinguishable from an agent
// call that failed outright.
const (
	ExecSucceeded        = "succeeded"
	ExecFailed           = "failed"
	ExecValidationFailed = "validation_failed"
	ExecSkipped          = "skipped"
)

// AgentExecution is one audit-log row covering a single agent invocation
// inside a pipeline run.
type AgentExecution struct {
	ID         string     `json:"id"`
	AgentRunID string     `json:"agent_run_id"`
	BusinessID string     `json:"business_id"`
	Stage      string     `json:"stage"`
	Model      string     `json:"model"`
	Outcome    string     `json:"outcome"`
	Error      string     `json:"error,omitempty"`
	TokenUsage TokenUsage `json:"token_usage"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// Duration returns the wall-clock duration of the execution.
func (e *AgentExecution) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// TokenUsage tracks token consumption for one or more agent calls.
type TokenUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Add merges token usage from another instance.
func (t *TokenUsage) Add(other TokenUsage) {
	t.InputTokens += other.InputTokens
	t.OutputTokens += other.OutputTokens
	t.Cost += other.Cost
}
