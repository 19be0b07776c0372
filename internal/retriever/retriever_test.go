package retriever

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/discovery/internal/ai"
	"github.com/xxxsen/discovery/internal/model"
)

type fakeSearcher struct {
	hits      []model.SearchResult
	lastTopK  int
	lastQuery string
	filter    map[string]string
}

func (f *fakeSearcher) Search(ctx context.Context, caseID, query string, topK int, filter map[string]string) []model.SearchResult {
	f.lastTopK = topK
	f.lastQuery = query
	f.filter = filter
	var out []model.SearchResult
	for _, h := range f.hits {
		if model.MatchFilter(h.Metadata, filter) {
			out = append(out, h)
		}
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

type fakeLLM struct {
	answer string
	err    error
	req    *ai.Request
}

func (f *fakeLLM) Invoke(ctx context.Context, req *ai.Request) (string, error) {
	f.req = req
	return f.answer, f.err
}

func hit(docID, page, text string, distance float64) model.SearchResult {
	md := map[string]string{model.MetaDocumentID: docID, model.MetaDocumentType: "email"}
	if page != "" {
		md[model.MetaPage] = page
	}
	return model.SearchResult{Key: docID, Text: text, Metadata: md, Distance: distance}
}

func TestFindRelatedExcludesAndDedupes(t *testing.T) {
	s := &fakeSearcher{hits: []model.SearchResult{
		hit("self", "1", "own text", 0.0),
		hit("d1", "1", "first chunk of d1", 0.2),
		hit("d1", "2", "second chunk of d1", 0.3),
		hit("d2", "1", strings.Repeat("x", 300), 1.0),
		hit("d3", "1", "far away", 2.5),
	}}
	r := New(s, &fakeLLM{})
	got := r.FindRelated(context.Background(), "case", "query", 2, "self")
	require.Len(t, got, 2)
	require.Equal(t, "d1", got[0].DocID)
	require.Equal(t, "Document d1", got[0].Title)
	require.InDelta(t, 0.9, got[0].Relevance, 1e-9)
	require.Equal(t, "first chunk of d1...", got[0].Summary)
	require.Equal(t, "d2", got[1].DocID)
	require.Equal(t, 203, len(got[1].Summary))

	all := r.FindRelated(context.Background(), "case", "query", 5, "self")
	require.Len(t, all, 3)
	for _, c := range all {
		require.GreaterOrEqual(t, c.Relevance, 0.0)
		require.LessOrEqual(t, c.Relevance, 1.0)
	}
}

func TestFindRelatedFetchesTwiceTopK(t *testing.T) {
	s := &fakeSearcher{hits: []model.SearchResult{
		hit("self", "1", "own text", 0.0),
		hit("self", "2", "more own text", 0.1),
		hit("d1", "1", "other", 0.2),
	}}
	got := New(s, &fakeLLM{}).FindRelated(context.Background(), "case", "query", 1, "self")
	require.Equal(t, 2, s.lastTopK)
	require.Empty(t, got)
}

func TestAnswerQuestionNoHits(t *testing.T) {
	llm := &fakeLLM{answer: "unused"}
	ans := New(&fakeSearcher{}, llm).AnswerQuestion(context.Background(), "case", "who signed?", 10)
	require.Equal(t, noContextAnswer, ans.Answer)
	require.Empty(t, ans.Sources)
	require.Equal(t, 0.0, ans.Confidence)
	require.Nil(t, llm.req)
}

func TestAnswerQuestionBuildsContext(t *testing.T) {
	s := &fakeSearcher{hits: []model.SearchResult{
		hit("d1", "3", "Smith signed the agreement.", 0.1),
		hit("d1", "4", "Witnessed by Jones.", 0.2),
		hit("d2", "", "Payment was late.", 0.4),
	}}
	llm := &fakeLLM{answer: "Smith signed it (d1, p3)."}
	ans := New(s, llm).AnswerQuestion(context.Background(), "case", "who signed?", 4)
	require.Equal(t, "Smith signed it (d1, p3).", ans.Answer)
	require.Len(t, ans.Sources, 2)
	require.Equal(t, "d1", ans.Sources[0].DocumentID)
	require.Equal(t, "3", ans.Sources[0].Page)
	require.Equal(t, "email", ans.Sources[0].DocumentType)
	require.Equal(t, "d2", ans.Sources[1].DocumentID)
	require.InDelta(t, 0.8, ans.Confidence, 1e-9)
	require.Contains(t, llm.req.Prompt, "Document d1 (Page 3):\nSmith signed the agreement.")
	require.Contains(t, llm.req.Prompt, "Document d1 (Page 4):\nWitnessed by Jones.")
	require.Contains(t, llm.req.Prompt, contextSeparator)
	require.Equal(t, answerMaxTokens, llm.req.MaxTokens)
}

func TestAnswerQuestionLLMFailure(t *testing.T) {
	s := &fakeSearcher{hits: []model.SearchResult{hit("d1", "1", "text", 0.1)}}
	ans := New(s, &fakeLLM{err: errors.New("rate limited")}).AnswerQuestion(context.Background(), "case", "q", 10)
	require.Equal(t, "An error occurred while processing your question: rate limited", ans.Answer)
	require.Empty(t, ans.Sources)
	require.Equal(t, 0.0, ans.Confidence)
}

func TestAnswerConfidence(t *testing.T) {
	tests := []struct {
		n, topK int
		want    float64
	}{
		{n: 10, topK: 10, want: 1.0},
		{n: 5, topK: 10, want: 0.6},
		{n: 1, topK: 10, want: 0.28},
		{n: 12, topK: 10, want: 1.0},
	}
	for _, tt := range tests {
		require.InDelta(t, tt.want, answerConfidence(tt.n, tt.topK), 1e-9)
	}
}

func TestDocumentSummary(t *testing.T) {
	s := &fakeSearcher{hits: []model.SearchResult{
		hit("d1", "1", strings.Repeat("a", 300), 0.1),
		hit("d1", "2", strings.Repeat("b", 300), 0.2),
		hit("d1", "3", "ignored", 0.3),
		hit("d2", "1", "other doc", 0.1),
	}}
	r := New(s, &fakeLLM{})
	sum := r.DocumentSummary(context.Background(), "case", "d1")
	require.Equal(t, summaryQuery, s.lastQuery)
	require.Equal(t, 3, s.lastTopK)
	require.Equal(t, 503, len(sum))
	require.True(t, strings.HasSuffix(sum, "..."))
	require.NotContains(t, sum, "ignored")

	require.Equal(t, "", r.DocumentSummary(context.Background(), "case", "missing"))
}
