package stage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/discovery/internal/ai"
	"github.com/xxxsen/discovery/internal/model"
)

type scriptedLLM struct {
	resp  string
	err   error
	calls int
	last  *ai.Request
}

func (s *scriptedLLM) Invoke(ctx context.Context, req *ai.Request) (string, error) {
	s.calls++
	s.last = req
	return s.resp, s.err
}

func stateWith(text string) model.PipelineState {
	return *model.NewPipelineState("job-1", "case-1", "s3://bucket/doc.pdf", text)
}

func TestStagesEmptyTextUseDefaults(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("must not be called")}
	stages := []Stage{
		NewClassifier(llm),
		NewMetadataExtractor(llm),
		NewPrivilegeChecker(llm),
		NewHotDocDetector(llm),
		NewContentAnalyzer(llm),
		NewCrossReferenceEngine(llm, nil),
	}
	st := stateWith("   ")
	for _, s := range stages {
		delta, err := s.Run(context.Background(), st)
		require.NoError(t, err, s.Name())
		require.NoError(t, st.Apply(delta), s.Name())
	}
	require.Equal(t, 0, llm.calls)

	require.Equal(t, model.DocumentTypeOther, st.Classification.DocumentType)
	require.Equal(t, 0.0, st.Classification.Confidence)
	require.Equal(t, "No document text provided", st.Classification.Reasoning)
	require.Nil(t, st.Classification.SubType)
	require.Empty(t, st.Metadata.People)
	require.NotNil(t, st.Metadata.Dates)
	require.Equal(t, []model.PrivilegeFlag{model.PrivilegeNone}, st.Privilege.Flags)
	require.Equal(t, model.RecommendationNotPrivileged, st.Privilege.Recommendation)
	require.False(t, st.HotDoc.IsHotDoc)
	require.Equal(t, model.SeverityLow, st.HotDoc.Severity)
	require.Equal(t, "No document text available for analysis", st.ContentAnalysis.Summary)
	require.Equal(t, "", st.ContentAnalysis.DraftNarrative)
	require.NotNil(t, st.CrossReference.TimelineEvents)
}

func TestClassifierDecodesOutput(t *testing.T) {
	llm := &scriptedLLM{resp: "```json\n" + `{"document_type":"email","confidence":1.4,"reasoning":"header block","sub_type":"internal","key_markers":["From:"]}` + "\n```"}
	delta, err := NewClassifier(llm).Run(context.Background(), stateWith("From: a@b.com"))
	require.NoError(t, err)
	c := delta.Classification
	require.Equal(t, model.DocumentTypeEmail, c.DocumentType)
	require.Equal(t, 1.0, c.Confidence)
	require.Equal(t, "internal", *c.SubType)
	require.False(t, c.NeedsReview)
	require.Equal(t, 4096, llm.last.MaxTokens)
	require.NotNil(t, llm.last.Schema)
}

func TestClassifierFlagsLowConfidence(t *testing.T) {
	llm := &scriptedLLM{resp: `{"document_type":"contract","confidence":0.4,"reasoning":"partial signature block"}`}
	delta, err := NewClassifier(llm).Run(context.Background(), stateWith("AGREEMENT"))
	require.NoError(t, err)
	require.True(t, delta.Classification.NeedsReview)
	require.Equal(t, model.DocumentTypeContract, delta.Classification.DocumentType)
}

func TestClassifierTruncatesSample(t *testing.T) {
	llm := &scriptedLLM{resp: `{"document_type":"other","confidence":0.5,"reasoning":"r"}`}
	_, err := NewClassifier(llm).Run(context.Background(), stateWith(strings.Repeat("x", 9000)+"TAIL"))
	require.NoError(t, err)
	require.NotContains(t, llm.last.Prompt, "TAIL")
}

func TestStageFailuresReturnFallbackAndError(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("upstream 500")}
	st := stateWith("some text")

	delta, err := NewClassifier(llm).Run(context.Background(), st)
	require.Error(t, err)
	require.Equal(t, model.DocumentTypeOther, delta.Classification.DocumentType)
	require.Equal(t, "Classification error: upstream 500", delta.Classification.Reasoning)

	delta, err = NewPrivilegeChecker(llm).Run(context.Background(), st)
	require.Error(t, err)
	require.Equal(t, model.RecommendationReviewRequired, delta.Privilege.Recommendation)
	require.True(t, strings.HasPrefix(delta.Privilege.Reasoning, "Privilege check error: "))

	delta, err = NewContentAnalyzer(llm).Run(context.Background(), st)
	require.Error(t, err)
	require.Equal(t, "Analysis error: upstream 500", delta.ContentAnalysis.Summary)

	delta, err = NewHotDocDetector(llm).Run(context.Background(), st)
	require.Error(t, err)
	require.False(t, delta.HotDoc.IsHotDoc)
	require.Equal(t, 0.0, delta.HotDoc.Score)
}

func TestStageRejectsSchemaViolation(t *testing.T) {
	llm := &scriptedLLM{resp: `{"is_hot_doc":true,"score":0.9,"severity":"apocalyptic","flags":[]}`}
	delta, err := NewHotDocDetector(llm).Run(context.Background(), stateWith("text"))
	require.ErrorIs(t, err, ai.ErrInvalidOutput)
	require.False(t, delta.HotDoc.IsHotDoc)
}

func TestHotDocDecodesFlags(t *testing.T) {
	llm := &scriptedLLM{resp: `{"is_hot_doc":true,"score":0.92,"severity":"critical","flags":[{"type":"admission","excerpt":"we knew","page":2,"reasoning":"knowledge"}],"summary":"admits knowledge"}`}
	delta, err := NewHotDocDetector(llm).Run(context.Background(), stateWith("we knew about the defect"))
	require.NoError(t, err)
	require.True(t, delta.HotDoc.IsHotDoc)
	require.Len(t, delta.HotDoc.Reasons, 1)
	require.Equal(t, 2, *delta.HotDoc.Reasons[0].Page)
}

type fakeFinder struct {
	calls   int
	exclude string
	query   string
	topK    int
}

func (f *fakeFinder) FindRelated(ctx context.Context, caseID, query string, topK int, excludeDocID string) []model.RelatedCandidate {
	f.calls++
	f.exclude = excludeDocID
	f.query = query
	f.topK = topK
	return []model.RelatedCandidate{{DocID: "doc-7", Title: "Document doc-7", Summary: "prior email...", Relevance: 0.8}}
}

func TestCrossReferenceUsesFinderWithSummary(t *testing.T) {
	llm := &scriptedLLM{resp: `{"related_documents":[],"timeline_events":[{"date":"2023-01-01","event":"meeting"}],"witness_mentions":[],"consistency_flags":[]}`}
	finder := &fakeFinder{}
	st := stateWith("text")
	st.ContentAnalysis = &model.ContentAnalysis{Summary: "CFO admits delay"}
	st.Metadata = &model.Metadata{People: []model.Person{{Name: "Jane Roe", Role: "CFO"}}}

	delta, err := NewCrossReferenceEngine(llm, finder).Run(context.Background(), st)
	require.NoError(t, err)
	require.Equal(t, 1, finder.calls)
	require.Equal(t, "job-1", finder.exclude)
	require.Equal(t, "CFO admits delay", finder.query)
	require.Equal(t, 5, finder.topK)
	require.Contains(t, llm.last.Prompt, "doc-7")
	require.Contains(t, llm.last.Prompt, "Jane Roe")
	require.Len(t, delta.CrossReference.RelatedDocuments, 1)
	require.Equal(t, "doc-7", delta.CrossReference.RelatedDocuments[0].DocID)
	require.Len(t, delta.CrossReference.TimelineEvents, 1)
}

func TestCrossReferenceSkipsFinderWithoutSummary(t *testing.T) {
	llm := &scriptedLLM{resp: `{"related_documents":[],"timeline_events":[],"witness_mentions":[],"consistency_flags":[]}`}
	finder := &fakeFinder{}
	delta, err := NewCrossReferenceEngine(llm, finder).Run(context.Background(), stateWith("text"))
	require.NoError(t, err)
	require.Equal(t, 0, finder.calls)
	require.Empty(t, delta.CrossReference.RelatedDocuments)
}
