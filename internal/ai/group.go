package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// GeneratorEntry is one fallback candidate; entries are tried in order.
type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

// firstSuccess walks candidates in order and returns the first result. A
// cancelled context stops the walk so a stage timeout is not multiplied by
// the chain length.
func firstSuccess[T any](ctx context.Context, kind string, names []string, call func(i int) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i, name := range names {
		res, err := call(i)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		logutil.GetLogger(ctx).Warn(kind+" candidate failed, trying next",
			zap.Int("index", i), zap.String("name", name), zap.Error(err))
	}
	if lastErr == nil {
		return zero, fmt.Errorf("%s not configured", kind)
	}
	return zero, lastErr
}

type groupGenerator struct {
	names []string
	gens  []IGenerator
}

func NewGroupGenerator(items []GeneratorEntry) IGenerator {
	g := &groupGenerator{}
	for _, item := range items {
		if item.Generator == nil {
			continue
		}
		g.names = append(g.names, item.Name)
		g.gens = append(g.gens, item.Generator)
	}
	if len(g.gens) == 0 {
		return nil
	}
	return g
}

func (g *groupGenerator) Generate(ctx context.Context, req *Request) (string, error) {
	return firstSuccess(ctx, "generator", g.names, func(i int) (string, error) {
		return g.gens[i].Generate(ctx, req)
	})
}

type groupEmbedder struct {
	names []string
	embs  []IEmbedder
}

// NewGroupEmbedder chains embedders. Every entry should produce vectors of the
// same dimension, otherwise a fallback would poison the case index.
func NewGroupEmbedder(items []EmbedderEntry) IEmbedder {
	g := &groupEmbedder{}
	for _, item := range items {
		if item.Embedder == nil {
			continue
		}
		g.names = append(g.names, item.Name)
		g.embs = append(g.embs, item.Embedder)
	}
	if len(g.embs) == 0 {
		return nil
	}
	return g
}

func (g *groupEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return firstSuccess(ctx, "embedder", g.names, func(i int) ([]float32, error) {
		return g.embs[i].Embed(ctx, text, taskType)
	})
}

func (g *groupEmbedder) ModelName() string {
	names := make([]string, 0, len(g.names))
	for _, n := range g.names {
		if n != "" {
			names = append(names, n)
		}
	}
	return strings.Join(names, "|")
}
