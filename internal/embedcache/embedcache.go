package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/discovery/internal/ai"
	"github.com/xxxsen/discovery/internal/model"
)

// Store persists embeddings across restarts.
type Store interface {
	Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error)
	Save(ctx context.Context, item *model.CachedEmbedding) error
}

type config struct {
	lruSize int
	lruTTL  time.Duration
	store   Store
}

type Option func(c *config)

func WithLRU(size int, ttl time.Duration) Option {
	return func(c *config) {
		c.lruSize = size
		c.lruTTL = ttl
	}
}

func WithStore(s Store) Option {
	return func(c *config) {
		c.store = s
	}
}

// Wrap layers an in-process LRU over a persistent store in front of e.
// Layers without configuration are skipped.
func Wrap(e ai.IEmbedder, opts ...Option) ai.IEmbedder {
	if e == nil {
		return nil
	}
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	out := e
	if c.store != nil {
		out = &storeEmbedder{next: out, store: c.store}
	}
	if c.lruSize > 0 && c.lruTTL > 0 {
		out = &lruEmbedder{next: out, cache: expirable.NewLRU[string, []float32](c.lruSize, nil, c.lruTTL)}
	}
	return out
}

type storeEmbedder struct {
	next  ai.IEmbedder
	store Store
}

func (d *storeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	key := newCacheKey(d.next.ModelName(), taskType, text)
	values, ok, err := d.store.Get(ctx, key.model, taskType, key.hash)
	if err != nil {
		logutil.GetLogger(ctx).Warn("read embedding cache failed", zap.Error(err))
	}
	if ok && len(values) > 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit (store)", zap.String("task_type", taskType))
		return values, nil
	}
	res, err := d.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if err := d.store.Save(ctx, &model.CachedEmbedding{
		ModelName:   key.model,
		TaskType:    taskType,
		ContentHash: key.hash,
		Vector:      res,
		Ctime:       time.Now().Unix(),
	}); err != nil {
		logutil.GetLogger(ctx).Warn("write embedding cache failed", zap.Error(err))
	}
	return res, nil
}

func (d *storeEmbedder) ModelName() string {
	return d.next.ModelName()
}

type lruEmbedder struct {
	next  ai.IEmbedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	key := newCacheKey(l.next.ModelName(), taskType, text).String()
	if cached, ok := l.cache.Get(key); ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit (lru)", zap.String("task_type", taskType))
		return cloneEmbedding(cached), nil
	}
	res, err := l.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, cloneEmbedding(res))
	return res, nil
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}

type cacheKey struct {
	model    string
	taskType string
	hash     string
}

func newCacheKey(modelName, taskType, text string) cacheKey {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	sum := sha256.Sum256([]byte(text))
	return cacheKey{model: modelName, taskType: taskType, hash: hex.EncodeToString(sum[:])}
}

func (k cacheKey) String() string {
	return "embed:" + k.model + ":" + k.taskType + ":" + k.hash
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
