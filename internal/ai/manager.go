package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type ManagerConfig struct {
	Timeout int
}

// LLM is the call surface handed to pipeline stages and the retriever.
type LLM interface {
	Invoke(ctx context.Context, req *Request) (string, error)
}

type Manager struct {
	fallback   IGenerator
	generators map[string]IGenerator
	embedder   IEmbedder
	cfg        ManagerConfig
}

// NewManager builds a manager. generators maps a caller name (a stage or
// "ask") to a dedicated generator; callers without one use fallback.
func NewManager(fallback IGenerator, generators map[string]IGenerator, embedder IEmbedder, cfg ManagerConfig) *Manager {
	if generators == nil {
		generators = map[string]IGenerator{}
	}
	return &Manager{
		fallback:   fallback,
		generators: generators,
		embedder:   embedder,
		cfg:        cfg,
	}
}

func (m *Manager) LLM(name string) LLM {
	gen := m.generators[name]
	if gen == nil {
		gen = m.fallback
	}
	return &boundLLM{name: name, gen: gen, timeout: time.Duration(m.cfg.Timeout) * time.Second}
}

func (m *Manager) Embedder() IEmbedder {
	return m.embedder
}

type boundLLM struct {
	name    string
	gen     IGenerator
	timeout time.Duration
}

func (b *boundLLM) Invoke(ctx context.Context, req *Request) (string, error) {
	if b.gen == nil {
		return "", fmt.Errorf("%s: %w", b.name, ErrUnavailable)
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	resp, err := b.gen.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}
