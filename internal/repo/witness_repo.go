package repo

import (
	"context"
	"database/sql"

	"github.com/xxxsen/discovery/internal/model"
	"github.com/xxxsen/discovery/internal/pkg/dbutil"
)

type WitnessRepo struct {
	db *sql.DB
}

func NewWitnessRepo(db *sql.DB) *WitnessRepo {
	return &WitnessRepo{db: db}
}

func (r *WitnessRepo) ReplaceForJob(ctx context.Context, jobID string, rows []model.WitnessRecord) error {
	return dbutil.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM witness_mentions WHERE job_id = $1`, jobID); err != nil {
			return err
		}
		const query = `
			INSERT INTO witness_mentions (case_id, job_id, witness_name, role, document_id, context, page, ctime)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		for _, row := range rows {
			if _, err := tx.ExecContext(ctx, query,
				row.CaseID,
				row.JobID,
				row.WitnessName,
				row.Role,
				row.DocumentID,
				row.Context,
				nullableInt(row.Page),
				row.Ctime,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *WitnessRepo) ListByCase(ctx context.Context, caseID string) ([]model.WitnessRecord, error) {
	const query = `
		SELECT case_id, job_id, witness_name, role, document_id, context, page, ctime
		FROM witness_mentions
		WHERE case_id = $1
		ORDER BY witness_name ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.WitnessRecord{}
	for rows.Next() {
		var item model.WitnessRecord
		var page sql.NullInt64
		if err := rows.Scan(
			&item.CaseID,
			&item.JobID,
			&item.WitnessName,
			&item.Role,
			&item.DocumentID,
			&item.Context,
			&page,
			&item.Ctime,
		); err != nil {
			return nil, err
		}
		item.Page = intPtr(page)
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *WitnessRepo) DeleteByJob(ctx context.Context, jobID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM witness_mentions WHERE job_id = $1`, jobID)
	return err
}

func (r *WitnessRepo) DeleteByCase(ctx context.Context, caseID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM witness_mentions WHERE case_id = $1`, caseID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
