package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/discovery/internal/model"
	"github.com/xxxsen/discovery/internal/pkg/dbutil"
	appErr "github.com/xxxsen/discovery/internal/pkg/errors"
)

type AnalysisJobRepo struct {
	db *sql.DB
}

func NewAnalysisJobRepo(db *sql.DB) *AnalysisJobRepo {
	return &AnalysisJobRepo{db: db}
}

var analysisJobColumns = []string{
	"id", "case_id", "document_url", "callback_url", "status", "current_agent",
	"progress_percent", "error_message", "started_at", "completed_at", "ctime", "mtime",
}

func (r *AnalysisJobRepo) Create(ctx context.Context, job *model.AnalysisJob) error {
	data := map[string]interface{}{
		"id":               job.ID,
		"case_id":          job.CaseID,
		"document_url":     job.DocumentURL,
		"callback_url":     job.CallbackURL,
		"status":           job.Status,
		"current_agent":    job.CurrentAgent,
		"progress_percent": job.ProgressPercent,
		"error_message":    job.ErrorMessage,
		"started_at":       job.StartedAt,
		"completed_at":     job.CompletedAt,
		"ctime":            job.Ctime,
		"mtime":            job.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("analysis_jobs", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *AnalysisJobRepo) Get(ctx context.Context, jobID string) (*model.AnalysisJob, error) {
	sqlStr, args, err := builder.BuildSelect("analysis_jobs", map[string]interface{}{"id": jobID}, analysisJobColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	job, err := scanJob(r.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// MarkProcessing claims a queued job. ErrNotFound means the job is gone or
// no longer queued and must not run.
func (r *AnalysisJobRepo) MarkProcessing(ctx context.Context, jobID string, now int64) error {
	const query = `
		UPDATE analysis_jobs
		SET status = $1, started_at = $2, mtime = $2
		WHERE id = $3 AND status = $4
	`
	res, err := r.db.ExecContext(ctx, query, model.JobStatusProcessing, now, jobID, model.JobStatusQueued)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// UpdateProgress only moves progress forward and never touches a finished job.
func (r *AnalysisJobRepo) UpdateProgress(ctx context.Context, jobID, agent string, percent int, now int64) error {
	const query = `
		UPDATE analysis_jobs
		SET current_agent = $1, progress_percent = GREATEST(progress_percent, $2), mtime = $3
		WHERE id = $4 AND status = $5
	`
	_, err := r.db.ExecContext(ctx, query, agent, percent, now, jobID, model.JobStatusProcessing)
	return err
}

func (r *AnalysisJobRepo) Finish(ctx context.Context, jobID, status, errMsg string, now int64) error {
	const query = `
		UPDATE analysis_jobs
		SET status = $1, error_message = $2, current_agent = '', completed_at = $3, mtime = $3,
			progress_percent = CASE WHEN $1 = 'completed' THEN 100 ELSE progress_percent END
		WHERE id = $4 AND status IN ($5, $6)
	`
	res, err := r.db.ExecContext(ctx, query, status, errMsg, now, jobID, model.JobStatusQueued, model.JobStatusProcessing)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// FailStale marks unfinished jobs idle since before cutoff as failed.
func (r *AnalysisJobRepo) FailStale(ctx context.Context, cutoff, now int64, reason string) (int64, error) {
	const query = `
		UPDATE analysis_jobs
		SET status = $1, error_message = $2, current_agent = '', completed_at = $3, mtime = $3
		WHERE status IN ($4, $5) AND mtime < $6
	`
	res, err := r.db.ExecContext(ctx, query, model.JobStatusFailed, reason, now,
		model.JobStatusQueued, model.JobStatusProcessing, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *AnalysisJobRepo) DeleteByCase(ctx context.Context, caseID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM analysis_jobs WHERE case_id = $1`, caseID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanJob(row *sql.Row) (*model.AnalysisJob, error) {
	var job model.AnalysisJob
	if err := row.Scan(
		&job.ID,
		&job.CaseID,
		&job.DocumentURL,
		&job.CallbackURL,
		&job.Status,
		&job.CurrentAgent,
		&job.ProgressPercent,
		&job.ErrorMessage,
		&job.StartedAt,
		&job.CompletedAt,
		&job.Ctime,
		&job.Mtime,
	); err != nil {
		return nil, err
	}
	return &job, nil
}
