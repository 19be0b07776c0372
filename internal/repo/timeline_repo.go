package repo

import (
	"context"
	"database/sql"

	"github.com/xxxsen/discovery/internal/model"
	"github.com/xxxsen/discovery/internal/pkg/dbutil"
)

type TimelineRepo struct {
	db *sql.DB
}

func NewTimelineRepo(db *sql.DB) *TimelineRepo {
	return &TimelineRepo{db: db}
}

// ReplaceForJob swaps the rows a job produced, so reruns never duplicate.
func (r *TimelineRepo) ReplaceForJob(ctx context.Context, jobID string, rows []model.TimelineRecord) error {
	return dbutil.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM timeline_events WHERE job_id = $1`, jobID); err != nil {
			return err
		}
		const query = `
			INSERT INTO timeline_events (case_id, job_id, event_date, event_description, source_document, source_page, significance, ctime)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		for _, row := range rows {
			if _, err := tx.ExecContext(ctx, query,
				row.CaseID,
				row.JobID,
				row.EventDate,
				row.Description,
				row.SourceDoc,
				nullableInt(row.SourcePage),
				row.Significance,
				row.Ctime,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *TimelineRepo) ListByCase(ctx context.Context, caseID string) ([]model.TimelineRecord, error) {
	const query = `
		SELECT case_id, job_id, event_date, event_description, source_document, source_page, significance, ctime
		FROM timeline_events
		WHERE case_id = $1
		ORDER BY event_date ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.TimelineRecord{}
	for rows.Next() {
		var item model.TimelineRecord
		var page sql.NullInt64
		if err := rows.Scan(
			&item.CaseID,
			&item.JobID,
			&item.EventDate,
			&item.Description,
			&item.SourceDoc,
			&page,
			&item.Significance,
			&item.Ctime,
		); err != nil {
			return nil, err
		}
		item.SourcePage = intPtr(page)
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *TimelineRepo) DeleteByJob(ctx context.Context, jobID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM timeline_events WHERE job_id = $1`, jobID)
	return err
}

func (r *TimelineRepo) DeleteByCase(ctx context.Context, caseID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM timeline_events WHERE case_id = $1`, caseID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
