package stage

import (
	"context"
	"fmt"

	"github.com/xxxsen/discovery/internal/ai"
	"github.com/xxxsen/discovery/internal/model"
)

const metadataSystem = `You extract structured facts from legal documents.
Return every date, person, organization and location the document mentions.
- Normalize dates to ISO 8601 where the day is known; keep the original wording in context otherwise.
- Give each person's role as stated or clearly implied (e.g. plaintiff, CFO, opposing counsel).
- Do not invent entities that are not in the text.`

type MetadataExtractor struct {
	base
}

func NewMetadataExtractor(llm ai.LLM) *MetadataExtractor {
	return &MetadataExtractor{base{
		name:      NameMetadataExtractor,
		llm:       llm,
		system:    metadataSystem,
		maxChars:  16000,
		maxTokens: 8192,
		schema:    metadataSchema,
	}}
}

func (m *MetadataExtractor) Run(ctx context.Context, state model.PipelineState) (model.StateDelta, error) {
	empty := &model.Metadata{}
	empty.Normalize()
	if isBlank(state.RawText) {
		return model.StateDelta{Metadata: empty}, nil
	}
	docType := model.DocumentTypeOther
	if state.Classification != nil {
		docType = state.Classification.DocumentType
	}
	prompt := fmt.Sprintf("Document type: %s\n\nExtract the metadata from this document.\n\nDOCUMENT:\n%s",
		docType, m.sample(state.RawText))
	var out model.Metadata
	if err := m.invoke(ctx, prompt, &out); err != nil {
		m.logFailure(ctx, state, err)
		return model.StateDelta{Metadata: empty}, fmt.Errorf("extract metadata: %w", err)
	}
	out.Normalize()
	return model.StateDelta{Metadata: &out}, nil
}
