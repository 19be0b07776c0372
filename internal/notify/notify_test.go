package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	bodies []map[string]interface{}
	status int
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var body map[string]interface{}
	_ = json.NewDecoder(req.Body).Decode(&body)
	r.mu.Lock()
	r.bodies = append(r.bodies, body)
	r.mu.Unlock()
	if r.status != 0 {
		w.WriteHeader(r.status)
	}
}

func fixedNotifier() *Notifier {
	n := New(time.Second)
	n.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return n
}

func TestSendPayloads(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()
	n := fixedNotifier()
	ctx := context.Background()

	require.True(t, n.SendProgress(ctx, srv.URL, "job-1", "processing", 35, "MetadataExtractor", ""))
	require.True(t, n.SendCompletion(ctx, srv.URL, "job-1", "case-1", "completed", &ResultsSummary{DocumentType: "email", IsHotDoc: true, HotDocScore: 0.9}))
	require.True(t, n.SendHotDocAlert(ctx, srv.URL, "job-1", "case-1", 0.9, "high", "admits the defect"))

	require.Len(t, rec.bodies, 3)
	require.Equal(t, float64(35), rec.bodies[0]["progress_percent"])
	require.Equal(t, "2024-03-01T12:00:00Z", rec.bodies[0]["timestamp"])
	summary := rec.bodies[1]["results_summary"].(map[string]interface{})
	require.Equal(t, "email", summary["document_type"])
	require.Equal(t, "hot_doc_alert", rec.bodies[2]["type"])
	require.Equal(t, "high", rec.bodies[2]["severity"])
}

func TestFailedCompletionHasEmptySummary(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()
	require.True(t, fixedNotifier().SendCompletion(context.Background(), srv.URL, "job-1", "case-1", "failed", nil))
	require.Equal(t, map[string]interface{}{}, rec.bodies[0]["results_summary"])
}

func TestSendReportsFailure(t *testing.T) {
	rec := &recorder{status: http.StatusBadGateway}
	srv := httptest.NewServer(rec)
	defer srv.Close()
	n := fixedNotifier()
	require.False(t, n.SendProgress(context.Background(), srv.URL, "job-1", "processing", 5, "", ""))
	require.False(t, n.SendProgress(context.Background(), "", "job-1", "processing", 5, "", ""))
	require.False(t, n.SendProgress(context.Background(), "http://127.0.0.1:1/hook", "job-1", "processing", 5, "", ""))
}
