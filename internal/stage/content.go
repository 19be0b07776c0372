package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/discovery/internal/ai"
	"github.com/xxxsen/discovery/internal/model"
)

const contentSystem = `You are a litigation associate preparing a document memo for the case team.
Summarize the document, list its key facts, identify the legal issues it bears on,
draft a short factual narrative suitable for a brief, and name the evidence gaps it exposes.
Stay strictly within what the document says.`

type ContentAnalyzer struct {
	base
}

func NewContentAnalyzer(llm ai.LLM) *ContentAnalyzer {
	return &ContentAnalyzer{base{
		name:      NameContentAnalyzer,
		llm:       llm,
		system:    contentSystem,
		maxChars:  20000,
		maxTokens: 8192,
		schema:    contentSchema,
	}}
}

func (c *ContentAnalyzer) Run(ctx context.Context, state model.PipelineState) (model.StateDelta, error) {
	if isBlank(state.RawText) {
		out := &model.ContentAnalysis{Summary: "No document text available for analysis"}
		out.Normalize()
		return model.StateDelta{ContentAnalysis: out}, nil
	}
	var sb strings.Builder
	sb.WriteString(participants(state))
	if state.HotDoc != nil && state.HotDoc.IsHotDoc {
		fmt.Fprintf(&sb, "Flagged as hot document (score %.2f, severity %s).\n", state.HotDoc.Score, state.HotDoc.Severity)
	}
	if state.Privilege != nil {
		fmt.Fprintf(&sb, "Privilege recommendation: %s\n", state.Privilege.Recommendation)
	}
	fmt.Fprintf(&sb, "\nAnalyze this document.\n\nDOCUMENT:\n%s", c.sample(state.RawText))

	var out model.ContentAnalysis
	if err := c.invoke(ctx, sb.String(), &out); err != nil {
		c.logFailure(ctx, state, err)
		fallback := &model.ContentAnalysis{Summary: fmt.Sprintf("Analysis error: %s", err.Error())}
		fallback.Normalize()
		return model.StateDelta{ContentAnalysis: fallback}, fmt.Errorf("analyze content: %w", err)
	}
	out.Normalize()
	return model.StateDelta{ContentAnalysis: &out}, nil
}
