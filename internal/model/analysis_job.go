package model

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

type AnalysisJob struct {
	ID              string   `json:"job_id"`
	CaseID          string   `json:"case_id"`
	DocumentURL     string   `json:"document_url"`
	CallbackURL     string   `json:"callback_url,omitempty"`
	Status          string   `json:"status"`
	CurrentAgent    string   `json:"current_agent,omitempty"`
	ProgressPercent int      `json:"progress_percent"`
	AgentsCompleted []string `json:"agents_completed"`
	ErrorMessage    string   `json:"error_message,omitempty"`
	StartedAt       int64    `json:"started_at,omitempty"`
	CompletedAt     int64    `json:"completed_at,omitempty"`
	Ctime           int64    `json:"ctime"`
	Mtime           int64    `json:"mtime"`
}

type AnalysisResult struct {
	JobID        string         `json:"job_id"`
	CaseID       string         `json:"case_id"`
	DocumentType string         `json:"document_type"`
	IsHotDoc     bool           `json:"is_hot_doc"`
	HotDocScore  float64        `json:"hot_doc_score"`
	Privileged   bool           `json:"privileged"`
	State        *PipelineState `json:"state"`
	Ctime        int64          `json:"ctime"`
}
