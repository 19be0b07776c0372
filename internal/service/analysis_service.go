package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/discovery/internal/filestore"
	"github.com/xxxsen/discovery/internal/model"
	"github.com/xxxsen/discovery/internal/notify"
	"github.com/xxxsen/discovery/internal/pipeline"
	appErr "github.com/xxxsen/discovery/internal/pkg/errors"
)

const (
	defaultAskTopK       = 10
	defaultMaxConcurrent = 4
	alertSummaryRunes    = 200
)

type JobStore interface {
	Create(ctx context.Context, job *model.AnalysisJob) error
	Get(ctx context.Context, jobID string) (*model.AnalysisJob, error)
	MarkProcessing(ctx context.Context, jobID string, now int64) error
	UpdateProgress(ctx context.Context, jobID, agent string, percent int, now int64) error
	Finish(ctx context.Context, jobID, status, errMsg string, now int64) error
	DeleteByCase(ctx context.Context, caseID string) (int64, error)
}

type ResultStore interface {
	Save(ctx context.Context, res *model.AnalysisResult) error
	Get(ctx context.Context, jobID string) (*model.AnalysisResult, error)
	DeleteByJob(ctx context.Context, jobID string) error
	DeleteByCase(ctx context.Context, caseID string) (int64, error)
}

type TimelineStore interface {
	ReplaceForJob(ctx context.Context, jobID string, rows []model.TimelineRecord) error
	ListByCase(ctx context.Context, caseID string) ([]model.TimelineRecord, error)
	DeleteByJob(ctx context.Context, jobID string) error
	DeleteByCase(ctx context.Context, caseID string) (int64, error)
}

type WitnessStore interface {
	ReplaceForJob(ctx context.Context, jobID string, rows []model.WitnessRecord) error
	ListByCase(ctx context.Context, caseID string) ([]model.WitnessRecord, error)
	DeleteByJob(ctx context.Context, jobID string) error
	DeleteByCase(ctx context.Context, caseID string) (int64, error)
}

type PipelineRunner interface {
	Run(ctx context.Context, in pipeline.Input) *model.PipelineState
}

type DocumentChunker interface {
	Chunk(ctx context.Context, text, documentID, caseID string, docType model.DocumentType) []model.Chunk
}

type DocumentIndex interface {
	AddChunks(ctx context.Context, caseID string, chunks []model.Chunk) bool
	DeleteDocument(ctx context.Context, caseID, documentID string) bool
	DeleteCaseCollection(ctx context.Context, caseID string) bool
}

type QuestionAnswerer interface {
	AnswerQuestion(ctx context.Context, caseID, question string, topK int) *model.Answer
}

type TextFetcher interface {
	FetchText(ctx context.Context, documentURL string) (string, error)
}

type Notifier interface {
	SendProgress(ctx context.Context, callbackURL, jobID, status string, percent int, agent, message string) bool
	SendCompletion(ctx context.Context, callbackURL, jobID, caseID, status string, summary *notify.ResultsSummary) bool
	SendHotDocAlert(ctx context.Context, callbackURL, jobID, caseID string, score float64, severity, summary string) bool
}

type AnalysisDeps struct {
	Jobs      JobStore
	Results   ResultStore
	Timeline  TimelineStore
	Witnesses WitnessStore
	Runner    PipelineRunner
	Chunker   DocumentChunker
	Index     DocumentIndex
	Retriever QuestionAnswerer
	Fetcher   TextFetcher
	Notifier  Notifier
	// Archive is optional; final states are written under results/<case>/<job>.json.
	Archive filestore.Store
}

type AnalysisOptions struct {
	MaxConcurrentJobs int
	AskTopK           int
}

type AnalyzeInput struct {
	DocumentURL  string `json:"document_url"`
	DocumentText string `json:"document_text"`
	CaseID       string `json:"case_id"`
	CallbackURL  string `json:"callback_url"`
}

type AskOutput struct {
	Question   string               `json:"question"`
	Answer     string               `json:"answer"`
	Sources    []model.AnswerSource `json:"sources"`
	Confidence float64              `json:"confidence"`
}

type AnalysisService struct {
	deps    AnalysisDeps
	askTopK int
	sem     chan struct{}
	wg      sync.WaitGroup
	now     func() time.Time
}

func NewAnalysisService(deps AnalysisDeps, opts AnalysisOptions) *AnalysisService {
	if opts.MaxConcurrentJobs <= 0 {
		opts.MaxConcurrentJobs = defaultMaxConcurrent
	}
	if opts.AskTopK <= 0 {
		opts.AskTopK = defaultAskTopK
	}
	return &AnalysisService{
		deps:    deps,
		askTopK: opts.AskTopK,
		sem:     make(chan struct{}, opts.MaxConcurrentJobs),
		now:     time.Now,
	}
}

// Submit records a queued job and processes it in the background. The
// returned job is the queued snapshot.
func (s *AnalysisService) Submit(ctx context.Context, in AnalyzeInput) (*model.AnalysisJob, error) {
	in.CaseID = strings.TrimSpace(in.CaseID)
	in.DocumentURL = strings.TrimSpace(in.DocumentURL)
	if in.CaseID == "" {
		return nil, fmt.Errorf("%w: case_id is required", appErr.ErrInvalid)
	}
	if in.DocumentURL == "" && strings.TrimSpace(in.DocumentText) == "" {
		return nil, fmt.Errorf("%w: either document_url or document_text must be provided", appErr.ErrInvalid)
	}
	now := s.now().Unix()
	job := &model.AnalysisJob{
		ID:          newID(),
		CaseID:      in.CaseID,
		DocumentURL: in.DocumentURL,
		CallbackURL: strings.TrimSpace(in.CallbackURL),
		Status:      model.JobStatusQueued,
		Ctime:       now,
		Mtime:       now,
	}
	if err := s.deps.Jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("analysis job queued",
		zap.String("job_id", job.ID),
		zap.String("case_id", job.CaseID),
	)
	snapshot := *job
	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.process(runCtx, &snapshot, in.DocumentText)
	}()
	return job, nil
}

// Wait blocks until every submitted job has finished.
func (s *AnalysisService) Wait() {
	s.wg.Wait()
}

func (s *AnalysisService) process(ctx context.Context, job *model.AnalysisJob, text string) {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()
	logger := logutil.GetLogger(ctx).With(zap.String("job_id", job.ID), zap.String("case_id", job.CaseID))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("analysis job panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			s.fail(ctx, job, fmt.Errorf("internal error: %v", r))
		}
	}()

	if err := s.deps.Jobs.MarkProcessing(ctx, job.ID, s.now().Unix()); err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			// deleted or failed by the stale-job sweep while waiting for a slot
			logger.Warn("job no longer queued, skipping run")
			return
		}
		logger.Error("mark job processing failed", zap.Error(err))
	}
	if strings.TrimSpace(text) == "" {
		fetched, err := s.deps.Fetcher.FetchText(ctx, job.DocumentURL)
		if err != nil {
			s.fail(ctx, job, err)
			return
		}
		text = fetched
		logger.Info("document downloaded", zap.Int("bytes", len(text)))
	}

	state := s.deps.Runner.Run(ctx, pipeline.Input{
		JobID:       job.ID,
		CaseID:      job.CaseID,
		DocumentURL: job.DocumentURL,
		RawText:     text,
		OnProgress:  s.observe(job),
	})
	if state.Status == model.PipelineStatusFailed {
		s.fail(ctx, job, pipelineError(state))
		return
	}
	if err := s.persist(ctx, job, state); err != nil {
		s.fail(ctx, job, err)
		return
	}
	s.index(ctx, job, state)
	s.archive(ctx, job, state)

	if err := s.deps.Jobs.Finish(ctx, job.ID, model.JobStatusCompleted, "", s.now().Unix()); err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			logger.Warn("job already finished elsewhere, completion not announced")
			return
		}
		logger.Error("finish job failed", zap.Error(err))
	}
	s.notifyCompletion(ctx, job, state)
	logger.Info("analysis job completed", zap.Strings("failed_stages", state.FailedStages()))
}

func (s *AnalysisService) observe(job *model.AnalysisJob) pipeline.ProgressFunc {
	return func(ctx context.Context, st model.PipelineState) {
		if err := s.deps.Jobs.UpdateProgress(ctx, job.ID, st.CurrentAgent, st.ProgressPercent, s.now().Unix()); err != nil {
			logutil.GetLogger(ctx).Warn("persist job progress failed",
				zap.String("job_id", job.ID),
				zap.Error(err),
			)
		}
		if job.CallbackURL != "" && s.deps.Notifier != nil {
			s.deps.Notifier.SendProgress(ctx, job.CallbackURL, job.ID, model.JobStatusProcessing, st.ProgressPercent, st.CurrentAgent, "")
		}
	}
}

func (s *AnalysisService) persist(ctx context.Context, job *model.AnalysisJob, state *model.PipelineState) error {
	now := s.now().Unix()
	res := &model.AnalysisResult{
		JobID:        job.ID,
		CaseID:       job.CaseID,
		DocumentType: string(documentType(state)),
		State:        state,
		Ctime:        now,
	}
	if state.HotDoc != nil {
		res.IsHotDoc = state.HotDoc.IsHotDoc
		res.HotDocScore = state.HotDoc.Score
	}
	if state.Privilege != nil {
		switch state.Privilege.Recommendation {
		case model.RecommendationClearlyPrivileged, model.RecommendationLikelyPrivileged:
			res.Privileged = true
		}
	}
	if err := s.deps.Results.Save(ctx, res); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	if err := s.deps.Timeline.ReplaceForJob(ctx, job.ID, model.FlattenTimeline(state, now)); err != nil {
		return fmt.Errorf("save timeline: %w", err)
	}
	if err := s.deps.Witnesses.ReplaceForJob(ctx, job.ID, model.FlattenWitnesses(state, now)); err != nil {
		return fmt.Errorf("save witnesses: %w", err)
	}
	return nil
}

// index makes the document searchable under document id = job id. Failures
// leave the analysis intact.
func (s *AnalysisService) index(ctx context.Context, job *model.AnalysisJob, state *model.PipelineState) {
	if s.deps.Chunker == nil || s.deps.Index == nil || strings.TrimSpace(state.RawText) == "" {
		return
	}
	chunks := s.deps.Chunker.Chunk(ctx, state.RawText, job.ID, job.CaseID, documentType(state))
	if !s.deps.Index.AddChunks(ctx, job.CaseID, chunks) {
		logutil.GetLogger(ctx).Warn("index document chunks failed",
			zap.String("job_id", job.ID),
			zap.Int("chunks", len(chunks)),
		)
	}
}

func (s *AnalysisService) archive(ctx context.Context, job *model.AnalysisJob, state *model.PipelineState) {
	if s.deps.Archive == nil {
		return
	}
	raw, err := json.Marshal(state)
	if err == nil {
		err = filestore.SaveBytes(ctx, s.deps.Archive, filestore.ResultKey(job.CaseID, job.ID), raw)
	}
	if err != nil {
		logutil.GetLogger(ctx).Warn("archive analysis result failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (s *AnalysisService) notifyCompletion(ctx context.Context, job *model.AnalysisJob, state *model.PipelineState) {
	if job.CallbackURL == "" || s.deps.Notifier == nil {
		return
	}
	summary := &notify.ResultsSummary{DocumentType: string(documentType(state))}
	if state.HotDoc != nil {
		summary.IsHotDoc = state.HotDoc.IsHotDoc
		summary.HotDocScore = state.HotDoc.Score
	}
	s.deps.Notifier.SendCompletion(ctx, job.CallbackURL, job.ID, job.CaseID, model.JobStatusCompleted, summary)
	if !summary.IsHotDoc {
		return
	}
	severity := state.HotDoc.Severity
	if severity == "" {
		severity = model.SeverityMedium
	}
	text := state.HotDoc.Summary
	if state.ContentAnalysis != nil && state.ContentAnalysis.Summary != "" {
		text = state.ContentAnalysis.Summary
	}
	s.deps.Notifier.SendHotDocAlert(ctx, job.CallbackURL, job.ID, job.CaseID, state.HotDoc.Score, severity, truncateRunes(text, alertSummaryRunes))
}

func (s *AnalysisService) fail(ctx context.Context, job *model.AnalysisJob, cause error) {
	logutil.GetLogger(ctx).Error("analysis job failed",
		zap.String("job_id", job.ID),
		zap.String("case_id", job.CaseID),
		zap.Error(cause),
	)
	if err := s.deps.Jobs.Finish(ctx, job.ID, model.JobStatusFailed, cause.Error(), s.now().Unix()); err != nil {
		logutil.GetLogger(ctx).Error("record job failure failed", zap.String("job_id", job.ID), zap.Error(err))
		if errors.Is(err, appErr.ErrNotFound) {
			return
		}
	}
	if job.CallbackURL != "" && s.deps.Notifier != nil {
		s.deps.Notifier.SendCompletion(ctx, job.CallbackURL, job.ID, job.CaseID, model.JobStatusFailed, nil)
	}
}

func (s *AnalysisService) Status(ctx context.Context, jobID string) (*model.AnalysisJob, error) {
	job, err := s.deps.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	job.AgentsCompleted = pipeline.CompletedStages(job.ProgressPercent)
	return job, nil
}

// Results returns the stored analysis once the job reached a terminal status.
func (s *AnalysisService) Results(ctx context.Context, jobID string) (*model.AnalysisResult, error) {
	job, err := s.deps.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusCompleted && job.Status != model.JobStatusFailed {
		return nil, fmt.Errorf("%w: job is still %s, results not yet available", appErr.ErrInvalid, job.Status)
	}
	return s.deps.Results.Get(ctx, jobID)
}

func (s *AnalysisService) Timeline(ctx context.Context, caseID string) ([]model.TimelineRecord, error) {
	if strings.TrimSpace(caseID) == "" {
		return nil, appErr.ErrInvalid
	}
	return s.deps.Timeline.ListByCase(ctx, caseID)
}

func (s *AnalysisService) Witnesses(ctx context.Context, caseID string) ([]model.WitnessRecord, error) {
	if strings.TrimSpace(caseID) == "" {
		return nil, appErr.ErrInvalid
	}
	return s.deps.Witnesses.ListByCase(ctx, caseID)
}

func (s *AnalysisService) Ask(ctx context.Context, caseID, question string) (*AskOutput, error) {
	if strings.TrimSpace(caseID) == "" || strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: case_id and question are required", appErr.ErrInvalid)
	}
	ans := s.deps.Retriever.AnswerQuestion(ctx, caseID, question, s.askTopK)
	out := &AskOutput{Question: question, Sources: []model.AnswerSource{}}
	if ans != nil {
		out.Answer = ans.Answer
		out.Confidence = ans.Confidence
		if ans.Sources != nil {
			out.Sources = ans.Sources
		}
	}
	return out, nil
}

// DeleteDocument drops a document's chunks and derived rows. The job row is
// kept for audit.
func (s *AnalysisService) DeleteDocument(ctx context.Context, caseID, documentID string) error {
	job, err := s.deps.Jobs.Get(ctx, documentID)
	if err != nil {
		return err
	}
	if job.CaseID != caseID {
		return appErr.ErrNotFound
	}
	if !s.deps.Index.DeleteDocument(ctx, caseID, documentID) {
		return fmt.Errorf("%w: delete document chunks", appErr.ErrInternal)
	}
	if err := s.deps.Results.DeleteByJob(ctx, documentID); err != nil {
		return err
	}
	if err := s.deps.Timeline.DeleteByJob(ctx, documentID); err != nil {
		return err
	}
	return s.deps.Witnesses.DeleteByJob(ctx, documentID)
}

func (s *AnalysisService) DeleteCase(ctx context.Context, caseID string) error {
	if strings.TrimSpace(caseID) == "" {
		return appErr.ErrInvalid
	}
	logger := logutil.GetLogger(ctx).With(zap.String("case_id", caseID))
	if !s.deps.Index.DeleteCaseCollection(ctx, caseID) {
		return fmt.Errorf("%w: delete case collection", appErr.ErrInternal)
	}
	if _, err := s.deps.Results.DeleteByCase(ctx, caseID); err != nil {
		return err
	}
	if _, err := s.deps.Timeline.DeleteByCase(ctx, caseID); err != nil {
		return err
	}
	if _, err := s.deps.Witnesses.DeleteByCase(ctx, caseID); err != nil {
		return err
	}
	jobs, err := s.deps.Jobs.DeleteByCase(ctx, caseID)
	if err != nil {
		return err
	}
	logger.Info("case deleted", zap.Int64("jobs", jobs))
	return nil
}

func documentType(state *model.PipelineState) model.DocumentType {
	if state.Classification == nil || state.Classification.DocumentType == "" {
		return model.DocumentTypeOther
	}
	return state.Classification.DocumentType
}

func pipelineError(state *model.PipelineState) error {
	if len(state.Errors) == 0 {
		return errors.New("pipeline failed")
	}
	e := state.Errors[0]
	return fmt.Errorf("%s: %s", e.Stage, e.Error)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
