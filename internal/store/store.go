// Package store persists raw listings, canonical record versions, scoring
// results, follow-up questions, and the agent execution audit log. Two
// implementations exist: PostgresStore for production and SQLiteStore for
// local runs and tests.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/acquire-cli/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// ErrVersionConflict is returned when inserting a canonical record whose
// (business_id, version) pair already exists. Concurrent writers racing for
// the same next version hit this; callers re-read the latest version and
// retry once.
var ErrVersionConflict = eris.New("store: version conflict")

// ScoreFilter narrows ListScoringRecords.
type ScoreFilter struct {
	Tier     model.Tier `json:"tier,omitempty"`
	MinScore float64    `json:"min_score,omitempty"`
	Limit    int        `json:"limit,omitempty"`
}

// Store defines the persistence interface for the categorization pipeline.
type Store interface {
	// Raw listings
	InsertRawListing(ctx context.Context, l *model.RawListing) error
	LatestRawListing(ctx context.Context, businessID string) (*model.RawListing, error)

	// Canonical record versions
	LatestCanonicalMeta(ctx context.Context, businessID string) (version int, contentHash string, err error)
	InsertCanonicalRecord(ctx context.Context, rec *model.CanonicalRecord) error
	GetCanonicalRecord(ctx context.Context, businessID string, version int) (*model.CanonicalRecord, error)

	// Scoring
	InsertScoringRecord(ctx context.Context, sr *model.ScoringRecord) error
	LatestScoringRecord(ctx context.Context, businessID string) (*model.ScoringRecord, error)
	ListScoringRecords(ctx context.Context, filter ScoreFilter) ([]model.ScoringRecord, error)

	// Follow-up questions
	InsertFollowUpQuestion(ctx context.Context, q *model.FollowUpQuestion) error
	ListFollowUpQuestions(ctx context.Context, businessID string) ([]model.FollowUpQuestion, error)

	// Audit log
	LogAgentExecution(ctx context.Context, e *model.AgentExecution) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
