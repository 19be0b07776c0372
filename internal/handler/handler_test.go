package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/discovery/internal/middleware"
	"github.com/xxxsen/discovery/internal/model"
	"github.com/xxxsen/discovery/internal/pkg/errcode"
	appErr "github.com/xxxsen/discovery/internal/pkg/errors"
	"github.com/xxxsen/discovery/internal/service"
)

type fakeAnalysis struct {
	submitted service.AnalyzeInput
	deleted   [2]string
	err       error
}

func (f *fakeAnalysis) Submit(ctx context.Context, in service.AnalyzeInput) (*model.AnalysisJob, error) {
	f.submitted = in
	if f.err != nil {
		return nil, f.err
	}
	return &model.AnalysisJob{ID: "job-1", CaseID: in.CaseID, Status: model.JobStatusQueued}, nil
}

func (f *fakeAnalysis) Status(ctx context.Context, jobID string) (*model.AnalysisJob, error) {
	if jobID != "job-1" {
		return nil, appErr.ErrNotFound
	}
	return &model.AnalysisJob{ID: jobID, Status: model.JobStatusProcessing, ProgressPercent: 35, AgentsCompleted: []string{"DocumentClassifier", "MetadataExtractor"}}, nil
}

func (f *fakeAnalysis) Results(ctx context.Context, jobID string) (*model.AnalysisResult, error) {
	return nil, errors.Join(appErr.ErrInvalid, errors.New("job is still processing"))
}

func (f *fakeAnalysis) Timeline(ctx context.Context, caseID string) ([]model.TimelineRecord, error) {
	return nil, nil
}

func (f *fakeAnalysis) Witnesses(ctx context.Context, caseID string) ([]model.WitnessRecord, error) {
	return []model.WitnessRecord{{CaseID: caseID, WitnessName: "Dana Park"}}, nil
}

func (f *fakeAnalysis) Ask(ctx context.Context, caseID, question string) (*service.AskOutput, error) {
	return &service.AskOutput{Question: question, Answer: "May 2", Sources: []model.AnswerSource{}}, nil
}

func (f *fakeAnalysis) DeleteDocument(ctx context.Context, caseID, documentID string) error {
	f.deleted = [2]string{caseID, documentID}
	return nil
}

func (f *fakeAnalysis) DeleteCase(ctx context.Context, caseID string) error {
	return errors.New("boom")
}

type envelope struct {
	Code int                    `json:"code"`
	Msg  string                 `json:"msg"`
	Data map[string]interface{} `json:"data"`
}

func setupRouter(t *testing.T, api AnalysisAPI, ping func(ctx context.Context) error) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(middleware.RequestID())
	RegisterRoutes(engine.Group("/api/v1"), RouterDeps{
		Analysis: NewAnalysisHandler(api),
		Health:   NewHealthHandler(ping),
	})
	return engine
}

func call(t *testing.T, h http.Handler, method, path string, body interface{}) envelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var out envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}

func TestAnalyzeQueuesJob(t *testing.T) {
	api := &fakeAnalysis{}
	router := setupRouter(t, api, nil)
	out := call(t, router, http.MethodPost, "/api/v1/analyze", map[string]string{
		"case_id":       "case-1",
		"document_text": "Q: Did you sign?\nA: Yes.",
		"callback_url":  "http://hooks.local",
	})
	require.Equal(t, "job-1", out.Data["job_id"])
	require.Equal(t, "queued", out.Data["status"])
	require.Equal(t, "case-1", api.submitted.CaseID)
	require.Equal(t, "http://hooks.local", api.submitted.CallbackURL)
}

func TestAnalyzeMapsErrors(t *testing.T) {
	router := setupRouter(t, &fakeAnalysis{err: appErr.ErrInvalid}, nil)
	out := call(t, router, http.MethodPost, "/api/v1/analyze", map[string]string{"case_id": "c"})
	require.Equal(t, errcode.ErrInvalid, out.Code)

	router = setupRouter(t, &fakeAnalysis{err: appErr.ErrDocumentFetch}, nil)
	out = call(t, router, http.MethodPost, "/api/v1/analyze", map[string]string{"case_id": "c"})
	require.Equal(t, errcode.ErrDocumentFetch, out.Code)
}

func TestStatusAndResults(t *testing.T) {
	router := setupRouter(t, &fakeAnalysis{}, nil)
	out := call(t, router, http.MethodGet, "/api/v1/status/job-1", nil)
	require.Equal(t, float64(35), out.Data["progress_percent"])
	require.Len(t, out.Data["agents_completed"], 2)

	out = call(t, router, http.MethodGet, "/api/v1/status/nope", nil)
	require.Equal(t, errcode.ErrNotFound, out.Code)

	out = call(t, router, http.MethodGet, "/api/v1/results/job-1", nil)
	require.Equal(t, errcode.ErrInvalid, out.Code)
	require.Contains(t, out.Msg, "still processing")
}

func TestCaseRoutes(t *testing.T) {
	api := &fakeAnalysis{}
	router := setupRouter(t, api, nil)
	out := call(t, router, http.MethodGet, "/api/v1/cases/case-1/timeline", nil)
	require.Equal(t, float64(0), out.Data["total_count"])
	require.NotNil(t, out.Data["events"])

	out = call(t, router, http.MethodGet, "/api/v1/cases/case-1/witnesses", nil)
	require.Equal(t, float64(1), out.Data["total_count"])

	out = call(t, router, http.MethodDelete, "/api/v1/cases/case-1/documents/job-9", nil)
	require.Equal(t, true, out.Data["deleted"])
	require.Equal(t, [2]string{"case-1", "job-9"}, api.deleted)

	out = call(t, router, http.MethodDelete, "/api/v1/cases/case-1", nil)
	require.Equal(t, errcode.ErrInternal, out.Code)
}

func TestAskIsRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	RegisterRoutes(engine.Group("/api/v1"), RouterDeps{
		Analysis:     NewAnalysisHandler(&fakeAnalysis{}),
		Health:       NewHealthHandler(nil),
		AskRateLimit: time.Minute,
	})
	body := map[string]string{"case_id": "c1", "question": "When?"}
	out := call(t, engine, http.MethodPost, "/api/v1/ask", body)
	require.Equal(t, "May 2", out.Data["answer"])
	out = call(t, engine, http.MethodPost, "/api/v1/ask", body)
	require.Equal(t, errcode.ErrTooMany, out.Code)
}

func TestHealth(t *testing.T) {
	out := call(t, setupRouter(t, &fakeAnalysis{}, nil), http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, "healthy", out.Data["status"])

	down := func(ctx context.Context) error { return errors.New("connection refused") }
	out = call(t, setupRouter(t, &fakeAnalysis{}, down), http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, "degraded", out.Data["status"])
}
