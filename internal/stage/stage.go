package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/discovery/internal/ai"
	"github.com/xxxsen/discovery/internal/model"
)

const (
	NameClassifier        = "DocumentClassifier"
	NameMetadataExtractor = "MetadataExtractor"
	NamePrivilegeChecker  = "PrivilegeChecker"
	NameHotDocDetector    = "HotDocDetector"
	NameContentAnalyzer   = "ContentAnalyzer"
	NameCrossReference    = "CrossReferenceEngine"
)

// Names lists stage names in pipeline order.
func Names() []string {
	return []string{
		NameClassifier,
		NameMetadataExtractor,
		NamePrivilegeChecker,
		NameHotDocDetector,
		NameContentAnalyzer,
		NameCrossReference,
	}
}

// Stage is one analysis step. Run reads a snapshot of the state and
// returns the output group it owns. When the LLM call fails the stage
// still returns its fallback group together with the cause, so the
// caller can merge the defaults and record the failure.
type Stage interface {
	Name() string
	Run(ctx context.Context, state model.PipelineState) (model.StateDelta, error)
}

type base struct {
	name      string
	llm       ai.LLM
	system    string
	maxChars  int
	maxTokens int
	schema    schema
}

func (b *base) Name() string {
	return b.name
}

func (b *base) invoke(ctx context.Context, prompt string, out interface{}) error {
	if b.llm == nil {
		return fmt.Errorf("%s: %w", b.name, ai.ErrUnavailable)
	}
	return ai.InvokeJSON(ctx, b.llm, &ai.Request{
		System:    b.system,
		Prompt:    prompt,
		Schema:    b.schema,
		MaxTokens: b.maxTokens,
	}, out)
}

func (b *base) sample(text string) string {
	return truncate(text, b.maxChars)
}

func (b *base) logFailure(ctx context.Context, state model.PipelineState, err error) {
	logutil.GetLogger(ctx).Error("stage failed, using fallback output",
		zap.String("stage", b.name),
		zap.String("job_id", state.JobID),
		zap.Error(err),
	)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
