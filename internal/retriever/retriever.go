package retriever

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/discovery/internal/ai"
	"github.com/xxxsen/discovery/internal/model"
)

const (
	DefaultTopK = 10

	excerptChars     = 200
	summaryChars     = 500
	answerMaxTokens  = 4096
	summaryQuery     = "summary overview"
	contextSeparator = "\n\n---\n\n"
)

const noContextAnswer = "I couldn't find any relevant information in the case documents to answer this question."

const answerSystemPrompt = `You are a legal research assistant answering questions about a litigation case.
Answer only from the provided document excerpts.
- Cite the supporting document id and page for each claim.
- If the excerpts do not contain the answer, say so plainly.
- Be concise and precise; do not speculate.`

// Searcher is the subset of the vector index the retriever needs.
type Searcher interface {
	Search(ctx context.Context, caseID, query string, topK int, filter map[string]string) []model.SearchResult
}

type Retriever struct {
	index Searcher
	llm   ai.LLM
}

func New(index Searcher, llm ai.LLM) *Retriever {
	return &Retriever{index: index, llm: llm}
}

// FindRelated returns at most topK distinct documents similar to query,
// skipping excludeDocID.
func (r *Retriever) FindRelated(ctx context.Context, caseID, query string, topK int, excludeDocID string) []model.RelatedCandidate {
	if topK <= 0 {
		return []model.RelatedCandidate{}
	}
	// twice topK leaves room for the excluded document and repeated chunks
	hits := r.index.Search(ctx, caseID, query, topK*2, nil)
	out := make([]model.RelatedCandidate, 0, topK)
	seen := make(map[string]struct{}, len(hits))
	for _, h := range hits {
		docID := h.Metadata[model.MetaDocumentID]
		if docID == "" || docID == excludeDocID {
			continue
		}
		if _, ok := seen[docID]; ok {
			continue
		}
		seen[docID] = struct{}{}
		out = append(out, model.RelatedCandidate{
			DocID:     docID,
			Title:     "Document " + docID,
			Summary:   excerpt(h.Text, excerptChars),
			Relevance: h.Relevance(),
		})
		if len(out) >= topK {
			break
		}
	}
	return out
}

// AnswerQuestion answers from the topK most similar chunks of the case.
func (r *Retriever) AnswerQuestion(ctx context.Context, caseID, question string, topK int) *model.Answer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	hits := r.index.Search(ctx, caseID, question, topK, nil)
	if len(hits) == 0 {
		return &model.Answer{Answer: noContextAnswer, Sources: []model.AnswerSource{}, Confidence: 0}
	}
	blocks := make([]string, 0, len(hits))
	sources := make([]model.AnswerSource, 0, len(hits))
	cited := make(map[string]struct{}, len(hits))
	for _, h := range hits {
		docID := h.Metadata[model.MetaDocumentID]
		page := h.Metadata[model.MetaPage]
		pageLabel := page
		if pageLabel == "" {
			pageLabel = "N/A"
		}
		blocks = append(blocks, fmt.Sprintf("Document %s (Page %s):\n%s", docID, pageLabel, h.Text))
		if _, ok := cited[docID]; ok {
			continue
		}
		cited[docID] = struct{}{}
		sources = append(sources, model.AnswerSource{
			DocumentID:   docID,
			DocumentType: h.Metadata[model.MetaDocumentType],
			Page:         page,
			Excerpt:      excerpt(h.Text, excerptChars),
		})
	}
	prompt := fmt.Sprintf("Case documents:\n\n%s\n\nQuestion: %s", strings.Join(blocks, contextSeparator), question)
	answer, err := r.llm.Invoke(ctx, &ai.Request{
		System:    answerSystemPrompt,
		Prompt:    prompt,
		MaxTokens: answerMaxTokens,
	})
	if err != nil {
		logutil.GetLogger(ctx).Error("answer question failed", zap.String("case_id", caseID), zap.Error(err))
		return &model.Answer{
			Answer:     fmt.Sprintf("An error occurred while processing your question: %s", err.Error()),
			Sources:    []model.AnswerSource{},
			Confidence: 0,
		}
	}
	return &model.Answer{
		Answer:     answer,
		Sources:    sources,
		Confidence: answerConfidence(len(hits), topK),
	}
}

// DocumentSummary stitches the leading chunks of one document into a
// short preview. Empty when the document has no indexed chunks.
func (r *Retriever) DocumentSummary(ctx context.Context, caseID, documentID string) string {
	hits := r.index.Search(ctx, caseID, summaryQuery, 3, map[string]string{model.MetaDocumentID: documentID})
	if len(hits) == 0 {
		return ""
	}
	if len(hits) > 2 {
		hits = hits[:2]
	}
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, h.Text)
	}
	joined := strings.Join(parts, " ")
	if len([]rune(joined)) > summaryChars {
		return string([]rune(joined)[:summaryChars]) + "..."
	}
	return joined
}

func answerConfidence(n, topK int) float64 {
	return math.Min(1.0, float64(n)/float64(topK)*0.8+0.2)
}

func excerpt(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text + "..."
	}
	return string(runes[:n]) + "..."
}
