package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/discovery/internal/ai"
	"github.com/xxxsen/discovery/internal/chunker"
	"github.com/xxxsen/discovery/internal/config"
	"github.com/xxxsen/discovery/internal/embedcache"
	"github.com/xxxsen/discovery/internal/pipeline"
	"github.com/xxxsen/discovery/internal/repo"
	"github.com/xxxsen/discovery/internal/retriever"
	"github.com/xxxsen/discovery/internal/stage"
	"github.com/xxxsen/discovery/internal/vectorindex"
)

const askCaller = "ask"

// buildManager resolves every configured provider and assembles one
// fallback chain per caller. db may be nil, which skips the persistent
// embedding cache.
func buildManager(cfg *config.Config, db *sql.DB) (*ai.Manager, error) {
	providers := make(map[string]config.AIProviderConfig, len(cfg.AI.Providers))
	for _, p := range cfg.AI.Providers {
		providers[p.Name] = p
	}
	generators := make(map[string]ai.IProvider)
	newGroup := func(refs []config.AIModelRef) (ai.IGenerator, error) {
		entries := make([]ai.GeneratorEntry, 0, len(refs))
		for _, ref := range refs {
			p, ok := generators[ref.Provider]
			if !ok {
				pc := providers[ref.Provider]
				created, err := ai.NewProvider(pc.Type, pc.Data)
				if err != nil {
					return nil, fmt.Errorf("init ai provider %s: %w", ref.Provider, err)
				}
				generators[ref.Provider] = created
				p = created
			}
			entries = append(entries, ai.GeneratorEntry{
				Name:      ref.Provider + "/" + ref.Model,
				Generator: ai.NewGenerator(p, ref.Model),
			})
		}
		return ai.NewGroupGenerator(entries), nil
	}

	fallback, err := newGroup(cfg.AI.Generators["default"])
	if err != nil {
		return nil, err
	}
	byCaller := make(map[string]ai.IGenerator)
	for caller, refs := range cfg.AI.Generators {
		if caller == "default" {
			continue
		}
		gen, err := newGroup(refs)
		if err != nil {
			return nil, err
		}
		byCaller[caller] = gen
	}

	embedEntries := make([]ai.EmbedderEntry, 0, len(cfg.AI.Embedders))
	for _, ref := range cfg.AI.Embedders {
		pc := providers[ref.Provider]
		p, err := ai.NewEmbedProvider(pc.Type, pc.Data)
		if err != nil {
			return nil, fmt.Errorf("init embed provider %s: %w", ref.Provider, err)
		}
		embedEntries = append(embedEntries, ai.EmbedderEntry{
			Name:     ref.Provider + "/" + ref.Model,
			Embedder: ai.NewEmbedder(p, ref.Model),
		})
	}
	opts := []embedcache.Option{
		embedcache.WithLRU(cfg.EmbedCache.LRUSize, time.Duration(cfg.EmbedCache.LRUTTLSeconds)*time.Second),
	}
	if db != nil && cfg.EmbedCache.Persist {
		opts = append(opts, embedcache.WithStore(repo.NewEmbeddingCacheRepo(db)))
	}
	embedder := embedcache.Wrap(ai.NewGroupEmbedder(embedEntries), opts...)

	return ai.NewManager(fallback, byCaller, embedder, ai.ManagerConfig{Timeout: cfg.AI.Timeout}), nil
}

func buildIndex(cfg *config.Config, db *sql.DB, embedder ai.IEmbedder) (*vectorindex.Index, error) {
	var store vectorindex.Store
	switch cfg.VectorIndex.Type {
	case "memory":
		store = vectorindex.NewMemoryStore()
	case "pgvector":
		if db == nil {
			return nil, fmt.Errorf("pgvector index requires a database")
		}
		store = repo.NewChunkEmbeddingRepo(db)
	default:
		return nil, fmt.Errorf("unsupported vector index type: %s", cfg.VectorIndex.Type)
	}
	logutil.GetLogger(context.Background()).Info("vector index ready", zap.String("type", cfg.VectorIndex.Type))
	return vectorindex.New(store, embedder), nil
}

func buildOrchestrator(cfg *config.Config, m *ai.Manager, finder stage.RelatedFinder) (*pipeline.Orchestrator, error) {
	return pipeline.New(pipeline.Stages{
		Classifier:        stage.NewClassifier(m.LLM(stage.NameClassifier)),
		MetadataExtractor: stage.NewMetadataExtractor(m.LLM(stage.NameMetadataExtractor)),
		PrivilegeChecker:  stage.NewPrivilegeChecker(m.LLM(stage.NamePrivilegeChecker)),
		HotDocDetector:    stage.NewHotDocDetector(m.LLM(stage.NameHotDocDetector)),
		ContentAnalyzer:   stage.NewContentAnalyzer(m.LLM(stage.NameContentAnalyzer)),
		CrossReference:    stage.NewCrossReferenceEngine(m.LLM(stage.NameCrossReference), finder),
	}, pipeline.WithStageTimeout(time.Duration(cfg.Pipeline.StageTimeoutSeconds)*time.Second))
}

func buildRetriever(index *vectorindex.Index, m *ai.Manager) *retriever.Retriever {
	return retriever.New(index, m.LLM(askCaller))
}

func buildChunker(cfg *config.Config) *chunker.Chunker {
	return chunker.New(chunker.Options{
		ChunkSize:    cfg.Chunker.ChunkSize,
		ChunkOverlap: cfg.Chunker.ChunkOverlap,
	})
}
