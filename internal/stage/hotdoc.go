package stage

import (
	"context"
	"fmt"

	"github.com/xxxsen/discovery/internal/ai"
	"github.com/xxxsen/discovery/internal/model"
)

const hotDocSystem = `You are senior trial counsel screening documents for case-critical evidence.
Flag admissions, smoking guns, contradictions, impeachment material and other critical evidence.
- Score 0.0-1.0 for how much the document could change the outcome of the case.
- Quote the exact excerpt behind each flag and explain its impact.
- Most documents are routine; reserve high scores for genuinely significant material.`

type HotDocDetector struct {
	base
}

func NewHotDocDetector(llm ai.LLM) *HotDocDetector {
	return &HotDocDetector{base{
		name:      NameHotDocDetector,
		llm:       llm,
		system:    hotDocSystem,
		maxChars:  16000,
		maxTokens: 8192,
		schema:    hotDocSchema,
	}}
}

func (h *HotDocDetector) Run(ctx context.Context, state model.PipelineState) (model.StateDelta, error) {
	fallback := &model.HotDoc{
		Reasons:  []model.HotDocReason{},
		Severity: model.SeverityLow,
	}
	if isBlank(state.RawText) {
		return model.StateDelta{HotDoc: fallback}, nil
	}
	prompt := fmt.Sprintf("%s\nAssess whether this is a hot document.\n\nDOCUMENT:\n%s",
		participants(state), h.sample(state.RawText))
	var out model.HotDoc
	if err := h.invoke(ctx, prompt, &out); err != nil {
		h.logFailure(ctx, state, err)
		return model.StateDelta{HotDoc: fallback}, fmt.Errorf("detect hot document: %w", err)
	}
	out.Normalize()
	return model.StateDelta{HotDoc: &out}, nil
}
