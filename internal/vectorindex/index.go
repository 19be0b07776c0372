package vectorindex

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/discovery/internal/ai"
	"github.com/xxxsen/discovery/internal/model"
	appErr "github.com/xxxsen/discovery/internal/pkg/errors"
)

// Index embeds chunks and keeps each case in its own namespace. Failures
// are logged and reported as false or empty results, never raised.
type Index struct {
	store    Store
	embedder ai.IEmbedder

	mu        sync.Mutex
	dimension int
}

func New(store Store, embedder ai.IEmbedder) *Index {
	return &Index{store: store, embedder: embedder}
}

func (x *Index) AddChunks(ctx context.Context, caseID string, chunks []model.Chunk) bool {
	logger := logutil.GetLogger(ctx).With(zap.String("case_id", caseID))
	ns, err := NamespaceFor(caseID)
	if err != nil {
		logger.Error("add chunks rejected", zap.Error(err))
		return false
	}
	if len(chunks) == 0 {
		return true
	}
	entries := make([]model.IndexEntry, 0, len(chunks))
	for _, c := range chunks {
		c.CaseID = caseID
		vec, err := x.embed(ctx, c.Text, ai.TaskRetrievalDocument)
		if err != nil {
			logger.Error("embed chunk failed", zap.String("key", c.Key()), zap.Error(err))
			return false
		}
		entries = append(entries, model.IndexEntry{
			Key:       c.Key(),
			CaseID:    caseID,
			Text:      c.Text,
			Embedding: vec,
			Metadata:  c.Metadata(),
		})
	}
	if err := x.store.Upsert(ctx, ns, entries); err != nil {
		logger.Error("upsert chunks failed", zap.String("namespace", ns), zap.Error(err))
		return false
	}
	logger.Info("chunks indexed", zap.String("namespace", ns), zap.Int("count", len(entries)))
	return true
}

func (x *Index) Search(ctx context.Context, caseID, query string, topK int, filter map[string]string) []model.SearchResult {
	logger := logutil.GetLogger(ctx).With(zap.String("case_id", caseID))
	if strings.TrimSpace(query) == "" || topK <= 0 {
		return nil
	}
	ns, err := NamespaceFor(caseID)
	if err != nil {
		logger.Error("search rejected", zap.Error(err))
		return nil
	}
	vec, err := x.embed(ctx, query, ai.TaskRetrievalQuery)
	if err != nil {
		logger.Error("embed query failed", zap.Error(err))
		return nil
	}
	results, err := x.store.Query(ctx, ns, model.VectorQuery{
		CaseID: caseID,
		Vector: vec,
		TopK:   topK,
		Filter: filter,
	})
	if err != nil {
		logger.Error("vector query failed", zap.String("namespace", ns), zap.Error(err))
		return nil
	}
	return results
}

func (x *Index) DeleteDocument(ctx context.Context, caseID, documentID string) bool {
	logger := logutil.GetLogger(ctx).With(zap.String("case_id", caseID), zap.String("document_id", documentID))
	ns, err := NamespaceFor(caseID)
	if err != nil || documentID == "" {
		logger.Error("delete document rejected", zap.Error(err))
		return false
	}
	if err := x.store.DeleteDocument(ctx, ns, caseID, documentID); err != nil {
		logger.Error("delete document chunks failed", zap.Error(err))
		return false
	}
	return true
}

func (x *Index) DeleteCaseCollection(ctx context.Context, caseID string) bool {
	logger := logutil.GetLogger(ctx).With(zap.String("case_id", caseID))
	ns, err := NamespaceFor(caseID)
	if err != nil {
		logger.Error("delete case rejected", zap.Error(err))
		return false
	}
	if err := x.store.DropNamespace(ctx, ns, caseID); err != nil {
		logger.Error("drop namespace failed", zap.String("namespace", ns), zap.Error(err))
		return false
	}
	logger.Info("case collection deleted", zap.String("namespace", ns))
	return true
}

// embed never substitutes a placeholder vector: a failed or malformed
// embedding is an error.
func (x *Index) embed(ctx context.Context, text, taskType string) ([]float32, error) {
	if x.embedder == nil {
		return nil, appErr.ErrEmbeddingUnavailable
	}
	vec, err := x.embedder.Embed(ctx, text, taskType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrEmbeddingUnavailable, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty vector", appErr.ErrEmbeddingUnavailable)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.dimension == 0 {
		x.dimension = len(vec)
	}
	if len(vec) != x.dimension {
		return nil, fmt.Errorf("%w: dimension %d, index uses %d", appErr.ErrEmbeddingUnavailable, len(vec), x.dimension)
	}
	return vec, nil
}
