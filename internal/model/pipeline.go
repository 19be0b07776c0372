package model

import (
	"errors"
	"fmt"
	"time"
)

type PipelineStatus string

const (
	PipelineStatusProcessing PipelineStatus = "processing"
	PipelineStatusCompleted  PipelineStatus = "completed"
	PipelineStatusFailed     PipelineStatus = "failed"
)

var (
	ErrStateTerminal      = errors.New("pipeline state is terminal")
	ErrStageAlreadyMerged = errors.New("stage output already merged")
)

type StageError struct {
	Stage     string    `json:"stage"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// PipelineState is the record produced by one pipeline run for one document.
type PipelineState struct {
	JobID       string `json:"job_id"`
	CaseID      string `json:"case_id"`
	DocumentURL string `json:"document_url"`
	RawText     string `json:"-"`

	Classification  *Classification  `json:"classification"`
	Metadata        *Metadata        `json:"metadata"`
	Privilege       *Privilege       `json:"privilege"`
	HotDoc          *HotDoc          `json:"hot_doc"`
	ContentAnalysis *ContentAnalysis `json:"content_analysis"`
	CrossReference  *CrossReference  `json:"cross_reference"`

	Status          PipelineStatus `json:"status"`
	CurrentAgent    string         `json:"current_agent,omitempty"`
	ProgressPercent int            `json:"progress_percent"`
	Errors          []StageError   `json:"errors"`
}

// StateDelta carries the output group a stage produced. Nil groups are
// left untouched on merge.
type StateDelta struct {
	Classification  *Classification
	Metadata        *Metadata
	Privilege       *Privilege
	HotDoc          *HotDoc
	ContentAnalysis *ContentAnalysis
	CrossReference  *CrossReference
}

func (d StateDelta) IsEmpty() bool {
	return d.Classification == nil && d.Metadata == nil && d.Privilege == nil &&
		d.HotDoc == nil && d.ContentAnalysis == nil && d.CrossReference == nil
}

func NewPipelineState(jobID, caseID, documentURL, rawText string) *PipelineState {
	return &PipelineState{
		JobID:       jobID,
		CaseID:      caseID,
		DocumentURL: documentURL,
		RawText:     rawText,
		Status:      PipelineStatusProcessing,
		Errors:      []StageError{},
	}
}

func (s *PipelineState) IsTerminal() bool {
	return s.Status == PipelineStatusCompleted || s.Status == PipelineStatusFailed
}

// Apply merges a stage delta. Groups that were already written are rejected
// and nothing from the delta is merged.
func (s *PipelineState) Apply(d StateDelta) error {
	if s.IsTerminal() {
		return ErrStateTerminal
	}
	if (d.Classification != nil && s.Classification != nil) ||
		(d.Metadata != nil && s.Metadata != nil) ||
		(d.Privilege != nil && s.Privilege != nil) ||
		(d.HotDoc != nil && s.HotDoc != nil) ||
		(d.ContentAnalysis != nil && s.ContentAnalysis != nil) ||
		(d.CrossReference != nil && s.CrossReference != nil) {
		return ErrStageAlreadyMerged
	}
	if d.Classification != nil {
		s.Classification = d.Classification
	}
	if d.Metadata != nil {
		s.Metadata = d.Metadata
	}
	if d.Privilege != nil {
		s.Privilege = d.Privilege
	}
	if d.HotDoc != nil {
		s.HotDoc = d.HotDoc
	}
	if d.ContentAnalysis != nil {
		s.ContentAnalysis = d.ContentAnalysis
	}
	if d.CrossReference != nil {
		s.CrossReference = d.CrossReference
	}
	return nil
}

// Advance sets the active stage and raises progress. Progress never moves
// backwards and a terminal state is never modified.
func (s *PipelineState) Advance(stage string, percent int) {
	if s.IsTerminal() {
		return
	}
	s.CurrentAgent = stage
	if percent > 100 {
		percent = 100
	}
	if percent > s.ProgressPercent {
		s.ProgressPercent = percent
	}
}

func (s *PipelineState) RecordError(stage string, err error, now time.Time) {
	if s.IsTerminal() || err == nil {
		return
	}
	s.Errors = append(s.Errors, StageError{Stage: stage, Error: err.Error(), Timestamp: now})
}

func (s *PipelineState) Complete() {
	if s.IsTerminal() {
		return
	}
	s.Status = PipelineStatusCompleted
	s.CurrentAgent = ""
	s.ProgressPercent = 100
}

// Fail marks the state failed; used for runs that cannot start.
func (s *PipelineState) Fail(stage string, err error, now time.Time) {
	if s.IsTerminal() {
		return
	}
	if err == nil {
		err = fmt.Errorf("pipeline failed")
	}
	s.Errors = append(s.Errors, StageError{Stage: stage, Error: err.Error(), Timestamp: now})
	s.Status = PipelineStatusFailed
	s.CurrentAgent = ""
}

// Snapshot returns a copy that does not share the error list.
func (s *PipelineState) Snapshot() PipelineState {
	out := *s
	out.Errors = make([]StageError, len(s.Errors))
	copy(out.Errors, s.Errors)
	return out
}

// FailedStages lists the distinct stage names that recorded an error.
func (s *PipelineState) FailedStages() []string {
	seen := make(map[string]struct{}, len(s.Errors))
	out := make([]string, 0, len(s.Errors))
	for _, e := range s.Errors {
		if _, ok := seen[e.Stage]; ok {
			continue
		}
		seen[e.Stage] = struct{}{}
		out = append(out, e.Stage)
	}
	return out
}
