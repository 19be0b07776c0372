package vectorindex

import (
	"context"

	"github.com/xxxsen/discovery/internal/model"
)

// Store is the persistence behind the index. Every call is scoped to a
// namespace and the case that owns it.
type Store interface {
	Upsert(ctx context.Context, namespace string, entries []model.IndexEntry) error
	Query(ctx context.Context, namespace string, q model.VectorQuery) ([]model.SearchResult, error)
	DeleteDocument(ctx context.Context, namespace, caseID, documentID string) error
	DropNamespace(ctx context.Context, namespace, caseID string) error
}
