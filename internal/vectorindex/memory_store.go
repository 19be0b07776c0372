package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/xxxsen/discovery/internal/model"
)

type collection struct {
	caseID  string
	entries map[string]model.IndexEntry
}

// MemoryStore keeps vectors in process and scores them by brute force.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*collection)}
}

func (s *MemoryStore) Upsert(ctx context.Context, namespace string, entries []model.IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		col, ok := s.collections[namespace]
		if !ok {
			col = &collection{caseID: e.CaseID, entries: make(map[string]model.IndexEntry)}
			s.collections[namespace] = col
		}
		if col.caseID != e.CaseID {
			return fmt.Errorf("namespace %s belongs to another case", namespace)
		}
		col.entries[e.Key] = cloneEntry(e)
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, namespace string, q model.VectorQuery) ([]model.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[namespace]
	if !ok || col.caseID != q.CaseID || q.TopK <= 0 {
		return nil, nil
	}
	results := make([]model.SearchResult, 0, len(col.entries))
	for _, e := range col.entries {
		if !model.MatchFilter(e.Metadata, q.Filter) {
			continue
		}
		results = append(results, model.SearchResult{
			Key:      e.Key,
			Text:     e.Text,
			Metadata: cloneMetadata(e.Metadata),
			Distance: cosineDistance(q.Vector, e.Embedding),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Key < results[j].Key
	})
	if len(results) > q.TopK {
		results = results[:q.TopK]
	}
	return results, nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, namespace, caseID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[namespace]
	if !ok || col.caseID != caseID {
		return nil
	}
	for key, e := range col.entries {
		if e.Metadata[model.MetaDocumentID] == documentID {
			delete(col.entries, key)
		}
	}
	return nil
}

func (s *MemoryStore) DropNamespace(ctx context.Context, namespace, caseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[namespace]
	if !ok {
		return nil
	}
	if col.caseID != caseID {
		return fmt.Errorf("namespace %s belongs to another case", namespace)
	}
	delete(s.collections, namespace)
	return nil
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func cloneEntry(e model.IndexEntry) model.IndexEntry {
	out := e
	out.Embedding = append([]float32(nil), e.Embedding...)
	out.Metadata = cloneMetadata(e.Metadata)
	return out
}

func cloneMetadata(md map[string]string) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
