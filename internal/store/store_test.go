package store

import (
	"testing"

	"github.com/sells-group/acquire-cli/internal/model"
)

// Compile-time interface checks.
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

func testQuestion(businessID string) *model.FollowUpQuestion {
	return &model.FollowUpQuestion{
		BusinessID:    businessID,
		RecordVersion: 1,
		AgentRunID:    "run-1",
		Question:      "What is churn?",
		Category:      "customers",
		Priority:      model.SeverityHigh,
		SourceField:   "churn_rate_percent",
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	if ErrNotFound.Error() == ErrVersionConflict.Error() {
		t.Fatal("sentinel errors must be distinguishable")
	}
}
