package repo_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/discovery/internal/model"
	appErr "github.com/xxxsen/discovery/internal/pkg/errors"
	"github.com/xxxsen/discovery/internal/repo"
	"github.com/xxxsen/discovery/internal/testutil"
)

func TestAnalysisJobLifecycle(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	jobs := repo.NewAnalysisJobRepo(db)
	caseID := "case-" + uuid.NewString()
	job := &model.AnalysisJob{ID: uuid.NewString(), CaseID: caseID, DocumentURL: "s3://b/k", Status: model.JobStatusQueued, Ctime: 100, Mtime: 100}
	require.NoError(t, jobs.Create(ctx, job))
	require.ErrorIs(t, jobs.Create(ctx, job), appErr.ErrConflict)

	require.NoError(t, jobs.MarkProcessing(ctx, job.ID, 110))
	require.ErrorIs(t, jobs.MarkProcessing(ctx, job.ID, 111), appErr.ErrNotFound)
	require.NoError(t, jobs.UpdateProgress(ctx, job.ID, "PrivilegeChecker", 40, 120))
	require.NoError(t, jobs.UpdateProgress(ctx, job.ID, "Stale", 20, 121))
	got, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusProcessing, got.Status)
	require.Equal(t, 40, got.ProgressPercent)

	require.NoError(t, jobs.Finish(ctx, job.ID, model.JobStatusCompleted, "", 130))
	got, err = jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusCompleted, got.Status)
	require.Equal(t, int64(130), got.CompletedAt)

	require.ErrorIs(t, jobs.Finish(ctx, "missing-"+uuid.NewString(), model.JobStatusFailed, "x", 1), appErr.ErrNotFound)

	n, err := jobs.DeleteByCase(ctx, caseID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	_, err = jobs.Get(ctx, job.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestFailStaleJobs(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	jobs := repo.NewAnalysisJobRepo(db)
	caseID := "case-" + uuid.NewString()
	stale := &model.AnalysisJob{ID: uuid.NewString(), CaseID: caseID, Status: model.JobStatusProcessing, Ctime: 10, Mtime: 10}
	fresh := &model.AnalysisJob{ID: uuid.NewString(), CaseID: caseID, Status: model.JobStatusProcessing, Ctime: 500, Mtime: 500}
	require.NoError(t, jobs.Create(ctx, stale))
	require.NoError(t, jobs.Create(ctx, fresh))

	_, err := jobs.FailStale(ctx, 100, 600, "no progress")
	require.NoError(t, err)
	got, err := jobs.Get(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusFailed, got.Status)
	require.Equal(t, "no progress", got.ErrorMessage)
	got, err = jobs.Get(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusProcessing, got.Status)

	queued := &model.AnalysisJob{ID: uuid.NewString(), CaseID: caseID, Status: model.JobStatusQueued, Ctime: 20, Mtime: 20}
	require.NoError(t, jobs.Create(ctx, queued))
	_, err = jobs.FailStale(ctx, 100, 600, "no progress")
	require.NoError(t, err)
	require.ErrorIs(t, jobs.MarkProcessing(ctx, queued.ID, 700), appErr.ErrNotFound)
	_, _ = jobs.DeleteByCase(ctx, caseID)
}

func TestAnalysisResultAndDerivedRows(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	caseID := "case-" + uuid.NewString()
	jobID := uuid.NewString()

	state := model.NewPipelineState(jobID, caseID, "s3://b/k", "text")
	require.NoError(t, state.Apply(model.StateDelta{
		Classification: &model.Classification{DocumentType: model.DocumentTypeDeposition, Confidence: 0.8},
	}))
	state.Complete()
	results := repo.NewAnalysisResultRepo(db)
	require.NoError(t, results.Save(ctx, &model.AnalysisResult{JobID: jobID, CaseID: caseID, DocumentType: "deposition", State: state, Ctime: 1}))
	require.NoError(t, results.Save(ctx, &model.AnalysisResult{JobID: jobID, CaseID: caseID, DocumentType: "deposition", IsHotDoc: true, State: state, Ctime: 2}))
	got, err := results.Get(ctx, jobID)
	require.NoError(t, err)
	require.True(t, got.IsHotDoc)
	require.Equal(t, model.DocumentTypeDeposition, got.State.Classification.DocumentType)

	page := 4
	timeline := repo.NewTimelineRepo(db)
	rows := []model.TimelineRecord{
		{CaseID: caseID, JobID: jobID, EventDate: "2023-02-01", Description: "b", SourceDoc: jobID},
		{CaseID: caseID, JobID: jobID, EventDate: "2023-01-01", Description: "a", SourceDoc: jobID, SourcePage: &page},
	}
	require.NoError(t, timeline.ReplaceForJob(ctx, jobID, rows))
	require.NoError(t, timeline.ReplaceForJob(ctx, jobID, rows))
	events, err := timeline.ListByCase(ctx, caseID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "a", events[0].Description)
	require.Equal(t, 4, *events[0].SourcePage)
	require.Nil(t, events[1].SourcePage)

	witnesses := repo.NewWitnessRepo(db)
	require.NoError(t, witnesses.ReplaceForJob(ctx, jobID, []model.WitnessRecord{{CaseID: caseID, JobID: jobID, WitnessName: "Dana Park", DocumentID: jobID}}))
	ws, err := witnesses.ListByCase(ctx, caseID)
	require.NoError(t, err)
	require.Len(t, ws, 1)

	require.NoError(t, results.DeleteByJob(ctx, jobID))
	_, err = results.Get(ctx, jobID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = timeline.DeleteByCase(ctx, caseID)
	require.NoError(t, err)
	_, err = witnesses.DeleteByCase(ctx, caseID)
	require.NoError(t, err)
}
