package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/discovery/internal/model"
	"github.com/xxxsen/discovery/internal/pkg/dbutil"
)

// ChunkEmbeddingRepo stores case chunks in pgvector, one namespace per case.
type ChunkEmbeddingRepo struct {
	db *sql.DB
}

func NewChunkEmbeddingRepo(db *sql.DB) *ChunkEmbeddingRepo {
	return &ChunkEmbeddingRepo{db: db}
}

func (r *ChunkEmbeddingRepo) Upsert(ctx context.Context, namespace string, entries []model.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	caseID := entries[0].CaseID
	for _, e := range entries {
		if e.CaseID != caseID {
			return fmt.Errorf("mixed cases in one upsert batch")
		}
	}
	now := time.Now().Unix()
	const query = `
		INSERT INTO chunk_embeddings (namespace, id, case_id, document_id, content, metadata, embedding, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (namespace, id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			mtime = EXCLUDED.mtime
	`
	return dbutil.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := claimNamespace(ctx, tx, namespace, caseID, now); err != nil {
			return err
		}
		for _, e := range entries {
			md, err := json.Marshal(e.Metadata)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query,
				namespace,
				e.Key,
				e.CaseID,
				e.Metadata[model.MetaDocumentID],
				e.Text,
				string(md),
				pgvector.NewVector(e.Embedding),
				now,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// claimNamespace creates the namespace on first write and refuses writes
// from a different case.
func claimNamespace(ctx context.Context, tx *sql.Tx, namespace, caseID string, now int64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO vector_namespaces (namespace, case_id, ctime)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace) DO NOTHING
	`, namespace, caseID, now); err != nil {
		return err
	}
	var owner string
	if err := tx.QueryRowContext(ctx, `SELECT case_id FROM vector_namespaces WHERE namespace = $1`, namespace).Scan(&owner); err != nil {
		return err
	}
	if owner != caseID {
		return fmt.Errorf("namespace %s belongs to another case", namespace)
	}
	return nil
}

func (r *ChunkEmbeddingRepo) Query(ctx context.Context, namespace string, q model.VectorQuery) ([]model.SearchResult, error) {
	if q.TopK <= 0 {
		return nil, nil
	}
	filter := q.Filter
	if filter == nil {
		filter = map[string]string{}
	}
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, err
	}
	const query = `
		SELECT id, content, metadata, embedding <=> $1 AS distance
		FROM chunk_embeddings
		WHERE namespace = $2 AND case_id = $3 AND metadata @> $4::jsonb
		ORDER BY distance ASC, id ASC
		LIMIT $5
	`
	rows, err := r.db.QueryContext(ctx, query, pgvector.NewVector(q.Vector), namespace, q.CaseID, string(filterJSON), q.TopK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SearchResult
	for rows.Next() {
		var item model.SearchResult
		var md []byte
		if err := rows.Scan(&item.Key, &item.Text, &md, &item.Distance); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(md, &item.Metadata); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *ChunkEmbeddingRepo) DeleteDocument(ctx context.Context, namespace, caseID, documentID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM chunk_embeddings
		WHERE namespace = $1 AND case_id = $2 AND document_id = $3
	`, namespace, caseID, documentID)
	return err
}

func (r *ChunkEmbeddingRepo) DropNamespace(ctx context.Context, namespace, caseID string) error {
	return dbutil.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_embeddings WHERE namespace = $1 AND case_id = $2`, namespace, caseID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM vector_namespaces WHERE namespace = $1 AND case_id = $2`, namespace, caseID)
		return err
	})
}
