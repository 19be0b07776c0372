package stage

import (
	"context"
	"fmt"

	"github.com/xxxsen/discovery/internal/ai"
	"github.com/xxxsen/discovery/internal/model"
)

const privilegeSystem = `You review documents for attorney-client privilege and work-product protection.
- attorney_client: confidential communication between client and counsel for legal advice.
- work_product: material prepared by or for counsel in anticipation of litigation.
- confidential: sensitive business content that is not privileged.
Quote the passages that support each flag. Note any disclosure to third parties that may waive privilege.
When unsure, recommend review_required rather than guessing.`

type PrivilegeChecker struct {
	base
}

func NewPrivilegeChecker(llm ai.LLM) *PrivilegeChecker {
	return &PrivilegeChecker{base{
		name:      NamePrivilegeChecker,
		llm:       llm,
		system:    privilegeSystem,
		maxChars:  12000,
		maxTokens: 6144,
		schema:    privilegeSchema,
	}}
}

func (p *PrivilegeChecker) Run(ctx context.Context, state model.PipelineState) (model.StateDelta, error) {
	if isBlank(state.RawText) {
		return model.StateDelta{Privilege: &model.Privilege{
			Flags:          []model.PrivilegeFlag{model.PrivilegeNone},
			Reasoning:      "No document text provided",
			Excerpts:       []model.PrivilegedExcerpt{},
			Recommendation: model.RecommendationNotPrivileged,
			WaiverConcerns: []string{},
		}}, nil
	}
	prompt := fmt.Sprintf("%s\nReview this document for privilege.\n\nDOCUMENT:\n%s",
		participants(state), p.sample(state.RawText))
	var out model.Privilege
	if err := p.invoke(ctx, prompt, &out); err != nil {
		p.logFailure(ctx, state, err)
		return model.StateDelta{Privilege: &model.Privilege{
			Flags:          []model.PrivilegeFlag{model.PrivilegeNone},
			Reasoning:      fmt.Sprintf("Privilege check error: %s", err.Error()),
			Excerpts:       []model.PrivilegedExcerpt{},
			Recommendation: model.RecommendationReviewRequired,
			WaiverConcerns: []string{},
		}}, fmt.Errorf("check privilege: %w", err)
	}
	out.Normalize()
	return model.StateDelta{Privilege: &out}, nil
}

// participants summarizes earlier stage output as prompt context.
func participants(state model.PipelineState) string {
	out := ""
	if state.Classification != nil {
		out += fmt.Sprintf("Document type: %s\n", state.Classification.DocumentType)
	}
	if state.Metadata != nil && len(state.Metadata.People) > 0 {
		out += "People mentioned:\n"
		for i, p := range state.Metadata.People {
			if i >= 10 {
				break
			}
			out += fmt.Sprintf("- %s (%s)\n", p.Name, p.Role)
		}
	}
	return out
}
