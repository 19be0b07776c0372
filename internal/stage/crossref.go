package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/discovery/internal/ai"
	"github.com/xxxsen/discovery/internal/model"
)

const (
	relatedTopK    = 5
	contextPeople  = 10
	crossRefSystem = `You connect a newly reviewed document to the rest of the case file.
- Explain how each related document supports, contradicts or references this one.
- Build timeline events from dated facts in this document.
- Record every witness appearance with the context in which they appear.
- Flag inconsistencies between this document and the related ones.`
)

// RelatedFinder looks up similar documents already indexed for the case.
type RelatedFinder interface {
	FindRelated(ctx context.Context, caseID, query string, topK int, excludeDocID string) []model.RelatedCandidate
}

type CrossReferenceEngine struct {
	base
	finder RelatedFinder
}

// NewCrossReferenceEngine builds the stage; finder may be nil, in which
// case no related documents are looked up.
func NewCrossReferenceEngine(llm ai.LLM, finder RelatedFinder) *CrossReferenceEngine {
	return &CrossReferenceEngine{
		base: base{
			name:      NameCrossReference,
			llm:       llm,
			system:    crossRefSystem,
			maxChars:  12000,
			maxTokens: 8192,
			schema:    crossReferenceSchema,
		},
		finder: finder,
	}
}

func (c *CrossReferenceEngine) Run(ctx context.Context, state model.PipelineState) (model.StateDelta, error) {
	empty := &model.CrossReference{}
	empty.Normalize()
	if isBlank(state.RawText) {
		return model.StateDelta{CrossReference: empty}, nil
	}
	summary := ""
	if state.ContentAnalysis != nil {
		summary = strings.TrimSpace(state.ContentAnalysis.Summary)
	}
	var related []model.RelatedCandidate
	if c.finder != nil && summary != "" {
		related = c.finder.FindRelated(ctx, state.CaseID, summary, relatedTopK, state.JobID)
	}
	var out model.CrossReference
	if err := c.invoke(ctx, c.prompt(state, summary, related), &out); err != nil {
		c.logFailure(ctx, state, err)
		return model.StateDelta{CrossReference: empty}, fmt.Errorf("cross reference: %w", err)
	}
	if len(out.RelatedDocuments) == 0 {
		for _, r := range related {
			out.RelatedDocuments = append(out.RelatedDocuments, model.RelatedDocument{
				DocID:        r.DocID,
				Title:        r.Title,
				Relevance:    r.Relevance,
				Relationship: "related_to",
			})
		}
	}
	out.Normalize()
	return model.StateDelta{CrossReference: &out}, nil
}

func (c *CrossReferenceEngine) prompt(state model.PipelineState, summary string, related []model.RelatedCandidate) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current document id: %s\n", state.JobID)
	if summary != "" {
		fmt.Fprintf(&sb, "Summary: %s\n", summary)
	}
	if state.Metadata != nil {
		fmt.Fprintf(&sb, "Dates found: %d\n", len(state.Metadata.Dates))
		if len(state.Metadata.People) > 0 {
			names := make([]string, 0, contextPeople)
			for i, p := range state.Metadata.People {
				if i >= contextPeople {
					break
				}
				names = append(names, p.Name)
			}
			fmt.Fprintf(&sb, "People: %s\n", strings.Join(names, ", "))
		}
	}
	if len(related) > 0 {
		sb.WriteString("\nRelated documents in this case:\n")
		for _, r := range related {
			fmt.Fprintf(&sb, "- [%s] %s (relevance %.2f): %s\n", r.DocID, r.Title, r.Relevance, r.Summary)
		}
	} else {
		sb.WriteString("\nNo related documents are indexed for this case yet.\n")
	}
	fmt.Fprintf(&sb, "\nDOCUMENT:\n%s", c.sample(state.RawText))
	return sb.String()
}
