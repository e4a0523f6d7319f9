package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortex-hq/radar-cli/internal/model"
	"github.com/kortex-hq/radar-cli/internal/recalibrate"
	"github.com/kortex-hq/radar-cli/internal/store"
)

type stubRecalibrator struct {
	result *model.RippleResult
	err    error
	got    recalibrate.Request
}

func (s *stubRecalibrator) Recalibrate(_ context.Context, req recalibrate.Request) (*model.RippleResult, error) {
	s.got = req
	return s.result, s.err
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	rec := doRequest(t, newRouter(&stubRecalibrator{}), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRecalibrateEndpoint(t *testing.T) {
	stub := &stubRecalibrator{result: &model.RippleResult{
		Action:           model.ActionExclude,
		CompaniesRemoved: 1,
	}}
	router := newRouter(stub)

	body := `{"projectId":"p1","companyId":"c1","userId":"u1","action":"exclude","idempotencyKey":"evt-1"}`
	rec := doRequest(t, router, http.MethodPost, "/api/recalibrate", body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p1", stub.got.ProjectID)
	assert.Equal(t, "c1", stub.got.CandidateID)
	assert.Equal(t, model.ActionExclude, stub.got.Action)
	assert.Equal(t, "evt-1", stub.got.IdempotencyKey)

	var result model.RippleResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.CompaniesRemoved)
}

func TestRecalibrateEndpointErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{
			name:     "malformed body",
			body:     `{not json`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing ids",
			body:     `{"action":"exclude"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing user",
			body:     `{"projectId":"p1","companyId":"c1","action":"exclude"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown action",
			body:     `{"projectId":"p1","companyId":"c1","userId":"u1","action":"promote"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "candidate not found",
			body:     `{"projectId":"p1","companyId":"c404","userId":"u1","action":"exclude"}`,
			err:      store.ErrNotFound,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "weights contention",
			body:     `{"projectId":"p1","companyId":"c1","userId":"u1","action":"exclude"}`,
			err:      store.ErrConflict,
			wantCode: http.StatusConflict,
		},
		{
			name:     "store failure",
			body:     `{"projectId":"p1","companyId":"c1","userId":"u1","action":"exclude"}`,
			err:      context.DeadlineExceeded,
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(&stubRecalibrator{err: tt.err})
			rec := doRequest(t, router, http.MethodPost, "/api/recalibrate", tt.body)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestScoreEndpoint(t *testing.T) {
	router := newRouter(&stubRecalibrator{})

	body := `{
		"agency": {"targetIndustries": ["SaaS"]},
		"lead": {"industry": "SaaS", "size": "50-100", "location": "Paris"}
	}`
	rec := doRequest(t, router, http.MethodPost, "/api/score", body)

	require.Equal(t, http.StatusOK, rec.Code)

	var breakdown model.MatchScoreBreakdown
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &breakdown))
	assert.Equal(t, 100, breakdown.StructuralFit)
	assert.Equal(t, 53, breakdown.TotalScore)
}

func TestScoreEndpointValidation(t *testing.T) {
	router := newRouter(&stubRecalibrator{})

	rec := doRequest(t, router, http.MethodPost, "/api/score", `{"agency": null, "lead": null}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/score", `nope`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
