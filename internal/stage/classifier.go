package stage

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/discovery/internal/ai"
	"github.com/xxxsen/discovery/internal/model"
)

const classifierSystem = `You are a litigation support specialist classifying documents produced in discovery.
Pick the single best document type from the allowed list.
- Base the decision on structural markers: headers, salutations, Q/A transcripts, signature blocks, captions.
- Report the markers you relied on in key_markers.
- Set needs_review when confidence is below 0.7 or the document mixes several types.`

const lowConfidence = 0.7

type Classifier struct {
	base
}

func NewClassifier(llm ai.LLM) *Classifier {
	return &Classifier{base{
		name:      NameClassifier,
		llm:       llm,
		system:    classifierSystem,
		maxChars:  8000,
		maxTokens: 4096,
		schema:    classificationSchema,
	}}
}

func (c *Classifier) Run(ctx context.Context, state model.PipelineState) (model.StateDelta, error) {
	if isBlank(state.RawText) {
		return model.StateDelta{Classification: &model.Classification{
			DocumentType: model.DocumentTypeOther,
			Reasoning:    "No document text provided",
			KeyMarkers:   []string{},
		}}, nil
	}
	var out model.Classification
	prompt := fmt.Sprintf("Classify the following document.\n\nDOCUMENT:\n%s", c.sample(state.RawText))
	if err := c.invoke(ctx, prompt, &out); err != nil {
		c.logFailure(ctx, state, err)
		return model.StateDelta{Classification: &model.Classification{
			DocumentType: model.DocumentTypeOther,
			Reasoning:    fmt.Sprintf("Classification error: %s", err.Error()),
			KeyMarkers:   []string{},
			NeedsReview:  true,
		}}, fmt.Errorf("classify document: %w", err)
	}
	out.Normalize()
	if out.Confidence < lowConfidence {
		out.NeedsReview = true
		logutil.GetLogger(ctx).Warn("low classification confidence",
			zap.String("job_id", state.JobID),
			zap.String("document_type", string(out.DocumentType)),
			zap.Float64("confidence", out.Confidence),
		)
	}
	return model.StateDelta{Classification: &out}, nil
}
