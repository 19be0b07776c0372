package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/xxxsen/discovery/internal/model"
	appErr "github.com/xxxsen/discovery/internal/pkg/errors"
)

type AnalysisResultRepo struct {
	db *sql.DB
}

func NewAnalysisResultRepo(db *sql.DB) *AnalysisResultRepo {
	return &AnalysisResultRepo{db: db}
}

func (r *AnalysisResultRepo) Save(ctx context.Context, res *model.AnalysisResult) error {
	stateJSON, err := json.Marshal(res.State)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO analysis_results (job_id, case_id, document_type, is_hot_doc, hot_doc_score, privileged, state_json, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (job_id) DO UPDATE SET
			document_type = EXCLUDED.document_type,
			is_hot_doc = EXCLUDED.is_hot_doc,
			hot_doc_score = EXCLUDED.hot_doc_score,
			privileged = EXCLUDED.privileged,
			state_json = EXCLUDED.state_json,
			ctime = EXCLUDED.ctime
	`
	_, err = r.db.ExecContext(ctx, query,
		res.JobID,
		res.CaseID,
		res.DocumentType,
		res.IsHotDoc,
		res.HotDocScore,
		res.Privileged,
		string(stateJSON),
		res.Ctime,
	)
	return err
}

func (r *AnalysisResultRepo) Get(ctx context.Context, jobID string) (*model.AnalysisResult, error) {
	const query = `
		SELECT job_id, case_id, document_type, is_hot_doc, hot_doc_score, privileged, state_json, ctime
		FROM analysis_results
		WHERE job_id = $1
	`
	var res model.AnalysisResult
	var stateJSON string
	if err := r.db.QueryRowContext(ctx, query, jobID).Scan(
		&res.JobID,
		&res.CaseID,
		&res.DocumentType,
		&res.IsHotDoc,
		&res.HotDocScore,
		&res.Privileged,
		&stateJSON,
		&res.Ctime,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	var state model.PipelineState
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, err
	}
	res.State = &state
	return &res, nil
}

func (r *AnalysisResultRepo) DeleteByJob(ctx context.Context, jobID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM analysis_results WHERE job_id = $1`, jobID)
	return err
}

func (r *AnalysisResultRepo) DeleteByCase(ctx context.Context, caseID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM analysis_results WHERE case_id = $1`, caseID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
