package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock, closeFn: mock.Close}
	return s, mock
}

func TestPostgresStore_LatestCanonicalMeta_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`latest_canonical_meta`).
		WithArgs("biz-unknown").
		WillReturnError(pgx.ErrNoRows)

	_, _, err := s.LatestCanonicalMeta(context.Background(), "biz-unknown")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestCanonicalMeta_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`latest_canonical_meta`).
		WithArgs("biz-1").
		WillReturnRows(pgxmock.NewRows([]string{"version", "content_hash"}).AddRow(3, "hash-c"))

	version, hash, err := s.LatestCanonicalMeta(context.Background(), "biz-1")
	require.NoError(t, err)
	assert.Equal(t, 3, version)
	assert.Equal(t, "hash-c", hash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertCanonicalRecord_VersionConflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`insert_canonical`).
		WithArgs(pgxmock.AnyArg(), "biz-1", 2, "run-1", "hash-b", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: "canonical_records_business_id_version_key"})

	err := s.InsertCanonicalRecord(context.Background(), testRecord("biz-1", 2, "hash-b"))
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertCanonicalRecord_OtherErrorPassesThrough(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`insert_canonical`).
		WithArgs(pgxmock.AnyArg(), "biz-1", 1, "run-1", "hash-a", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "53300", Message: "too many connections"})

	err := s.InsertCanonicalRecord(context.Background(), testRecord("biz-1", 1, "hash-a"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrVersionConflict)
	assert.Contains(t, err.Error(), "insert canonical record")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertFollowUpQuestion_DefaultsStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`insert_question`).
		WithArgs(pgxmock.AnyArg(), "biz-1", 1, "run-1", "What is churn?", "customers",
			"high", "churn_rate_percent", "pending", nil, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	q := testQuestion("biz-1")
	err := s.InsertFollowUpQuestion(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "pending", q.ResponseStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestScoringRecord_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM scoring_records WHERE business_id`).
		WithArgs("biz-unknown").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.LatestScoringRecord(context.Background(), "biz-unknown")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
