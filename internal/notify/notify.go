package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

type ProgressEvent struct {
	JobID           string `json:"job_id"`
	Status          string `json:"status"`
	ProgressPercent int    `json:"progress_percent"`
	CurrentAgent    string `json:"current_agent,omitempty"`
	Message         string `json:"message,omitempty"`
	Timestamp       string `json:"timestamp"`
}

type ResultsSummary struct {
	DocumentType string  `json:"document_type"`
	IsHotDoc     bool    `json:"is_hot_doc"`
	HotDocScore  float64 `json:"hot_doc_score"`
}

type CompletionEvent struct {
	JobID          string      `json:"job_id"`
	CaseID         string      `json:"case_id"`
	Status         string      `json:"status"`
	CompletedAt    string      `json:"completed_at"`
	ResultsSummary interface{} `json:"results_summary"`
}

type HotDocAlert struct {
	Type        string  `json:"type"`
	JobID       string  `json:"job_id"`
	CaseID      string  `json:"case_id"`
	HotDocScore float64 `json:"hot_doc_score"`
	Severity    string  `json:"severity"`
	Summary     string  `json:"summary"`
	Timestamp   string  `json:"timestamp"`
}

// Notifier posts job events to caller supplied webhooks. Delivery is best
// effort: every send reports success as a bool and never returns an error.
type Notifier struct {
	client *http.Client
	now    func() time.Time
}

func New(timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Notifier{
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

func (n *Notifier) stamp() string {
	return n.now().UTC().Format(time.RFC3339)
}

func (n *Notifier) SendProgress(ctx context.Context, callbackURL, jobID, status string, percent int, agent, message string) bool {
	return n.post(ctx, callbackURL, "progress", &ProgressEvent{
		JobID:           jobID,
		Status:          status,
		ProgressPercent: percent,
		CurrentAgent:    agent,
		Message:         message,
		Timestamp:       n.stamp(),
	})
}

func (n *Notifier) SendCompletion(ctx context.Context, callbackURL, jobID, caseID, status string, summary *ResultsSummary) bool {
	var body interface{} = map[string]interface{}{}
	if summary != nil {
		body = summary
	}
	return n.post(ctx, callbackURL, "completion", &CompletionEvent{
		JobID:          jobID,
		CaseID:         caseID,
		Status:         status,
		CompletedAt:    n.stamp(),
		ResultsSummary: body,
	})
}

func (n *Notifier) SendHotDocAlert(ctx context.Context, callbackURL, jobID, caseID string, score float64, severity, summary string) bool {
	return n.post(ctx, callbackURL, "hot_doc_alert", &HotDocAlert{
		Type:        "hot_doc_alert",
		JobID:       jobID,
		CaseID:      caseID,
		HotDocScore: score,
		Severity:    severity,
		Summary:     summary,
		Timestamp:   n.stamp(),
	})
}

func (n *Notifier) post(ctx context.Context, callbackURL, kind string, payload interface{}) bool {
	logger := logutil.GetLogger(ctx).With(zap.String("kind", kind), zap.String("url", callbackURL))
	if strings.TrimSpace(callbackURL) == "" {
		return false
	}
	if err := n.do(ctx, callbackURL, payload); err != nil {
		logger.Error("send webhook failed", zap.Error(err))
		return false
	}
	logger.Debug("webhook sent")
	return true
}

func (n *Notifier) do(ctx context.Context, callbackURL string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
