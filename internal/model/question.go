package model

import "time"

// Severity ranks how badly an uncertainty undermines the scoring result.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityRank maps severities to numeric ranks for comparison.
// Lower rank means more severe (critical is highest).
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// Rank returns the sort position of the severity, critical first. Unknown
// severities sort after all known ones.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// Uncertainty is one identified gap or contradiction in a canonical record.
// Field names the affected field or content domain and serves as the
// deduplication key when uncertainties are prioritized.
type Uncertainty struct {
	Type     string   `json:"type"`
	Field    string   `json:"field"`
	Severity Severity `json:"severity"`
	Detail   string   `json:"detail,omitempty"`
}

// Follow-up question response lifecycle. Questions start pending and end in
// exactly one of the three terminal states.
const (
	ResponsePending    = "pending"
	ResponseResponded  = "responded"
	ResponseNoResponse = "no_response"
	ResponseEscalated  = "escalated"
)

// FollowUpQuestion is a seller-directed question generated from one
// uncertainty on a scored record version.
type FollowUpQuestion struct {
	ID             string    `json:"id"`
	BusinessID     string    `json:"business_id"`
	RecordVersion  int       `json:"record_version"`
	AgentRunID     string    `json:"agent_run_id"`
	Question       string    `json:"question"`
	Category       string    `json:"category"`
	Priority       Severity  `json:"priority"`
	SourceField    string    `json:"source_field"`
	ResponseStatus string    `json:"response_status"`
	SellerResponse string    `json:"seller_response,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
