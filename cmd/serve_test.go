package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/acquire-cli/internal/model"
	"github.com/sells-group/acquire-cli/internal/pipeline"
)

type stubRunner struct {
	canonical *pipeline.CanonicalizeResult
	score     *pipeline.ScoreResult
	followUps *pipeline.FollowUpResult
	run       *pipeline.RunResult
	err       error
}

func (s *stubRunner) Canonicalize(ctx context.Context, businessID string) (*pipeline.CanonicalizeResult, error) {
	return s.canonical, s.err
}

func (s *stubRunner) Score(ctx context.Context, businessID string) (*pipeline.ScoreResult, error) {
	return s.score, s.err
}

func (s *stubRunner) FollowUps(ctx context.Context, businessID string) (*pipeline.FollowUpResult, error) {
	return s.followUps, s.err
}

func (s *stubRunner) Run(ctx context.Context, businessID string) (*pipeline.RunResult, error) {
	return s.run, s.err
}

func postJSON(t *testing.T, mux *http.ServeMux, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestServeHealth(t *testing.T) {
	mux := newServeMux(&stubRunner{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServeCanonicalizeSuccess(t *testing.T) {
	mux := newServeMux(&stubRunner{
		canonical: &pipeline.CanonicalizeResult{
			RecordID:    "rec-1",
			BusinessID:  "biz-1",
			Version:     1,
			ContentHash: "abc",
			Created:     true,
		},
	})

	rec := postJSON(t, mux, "/api/run/canonicalize", `{"business_id":"biz-1"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var body pipeline.CanonicalizeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "biz-1", body.BusinessID)
	assert.Equal(t, 1, body.Version)
	assert.True(t, body.Created)
}

func TestServeMissingBusinessID(t *testing.T) {
	mux := newServeMux(&stubRunner{})

	rec := postJSON(t, mux, "/api/run/score", `{}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "business_id is required")
}

func TestServeMalformedBody(t *testing.T) {
	mux := newServeMux(&stubRunner{})

	rec := postJSON(t, mux, "/api/run/canonicalize", `{not json`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
}

func TestServeNoRecordMapsTo400(t *testing.T) {
	mux := newServeMux(&stubRunner{
		err: &pipeline.StageError{Stage: "canonicalize", Kind: pipeline.KindNoRecord, Err: eris.New("no listing")},
	})

	rec := postJSON(t, mux, "/api/run/canonicalize", `{"business_id":"biz-missing"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no_record")
}

func TestServeValidationFailureMapsTo422(t *testing.T) {
	mux := newServeMux(&stubRunner{
		err: &pipeline.StageError{Stage: "score", Kind: pipeline.KindSchemaValidation, Err: eris.New("bad output")},
	})

	rec := postJSON(t, mux, "/api/run/score", `{"business_id":"biz-1"}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "schema_validation_failed")
}

func TestServeUpstreamFailureMapsTo500(t *testing.T) {
	mux := newServeMux(&stubRunner{
		err: &pipeline.StageError{Stage: "score", Kind: pipeline.KindUpstreamFailure, Err: eris.New("api down")},
	})

	rec := postJSON(t, mux, "/api/run/score", `{"business_id":"biz-1"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "upstream_failed")
}

func TestServeFollowUpsIneligibleIs200(t *testing.T) {
	mux := newServeMux(&stubRunner{
		followUps: &pipeline.FollowUpResult{Eligible: false},
	})

	rec := postJSON(t, mux, "/api/run/follow-ups", `{"business_id":"biz-low"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var body pipeline.FollowUpResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Eligible)
	assert.Empty(t, body.Questions)
}

func TestServeFullRun(t *testing.T) {
	mux := newServeMux(&stubRunner{
		run: &pipeline.RunResult{
			AgentRunID: "run-1",
			BusinessID: "biz-1",
			Score:      &pipeline.ScoreResult{TotalScore: 81.25, Tier: model.TierB},
		},
	})

	rec := postJSON(t, mux, "/api/run", `{"business_id":"biz-1"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var body pipeline.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.AgentRunID)
	require.NotNil(t, body.Score)
	assert.Equal(t, model.TierB, body.Score.Tier)
}
