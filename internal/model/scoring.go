package model

import "time"

// Tier buckets a total score into an acquisition recommendation band.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
)

// ScoringComponents are the seven component scores produced by the scoring
// agent, each on a 0-100 scale.
type ScoringComponents struct {
	PriceEfficiency float64 `json:"price_efficiency"`
	RevenueQuality  float64 `json:"revenue_quality"`
	Moat            float64 `json:"moat"`
	AILeverage      float64 `json:"ai_leverage"`
	Operations      float64 `json:"operations"`
	Risk            float64 `json:"risk"`
	Trust           float64 `json:"trust"`
}

// ScoringOutput is the full structured output of the scoring agent before
// aggregation: component scores plus the qualitative rationale.
type ScoringOutput struct {
	Components    ScoringComponents `json:"components"`
	TopBuyReasons []string          `json:"top_buy_reasons"`
	TopRisks      []string          `json:"top_risks"`
	Rationale     string            `json:"rationale,omitempty"`
}

// ScoringRecord is the persisted result of scoring one canonical record
// version. The record it scores is identified by (BusinessID, RecordVersion).
type ScoringRecord struct {
	ID            string            `json:"id"`
	BusinessID    string            `json:"business_id"`
	RecordVersion int               `json:"record_version"`
	AgentRunID    string            `json:"agent_run_id"`
	Components    ScoringComponents `json:"components"`
	TotalScore    float64           `json:"total_score"`
	Tier          Tier              `json:"tier"`
	TopBuyReasons []string          `json:"top_buy_reasons"`
	TopRisks      []string          `json:"top_risks"`
	Rationale     string            `json:"rationale,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}
