package model

import (
	"fmt"
	"strconv"
)

// Chunk is a contiguous piece of a document prepared for embedding.
type Chunk struct {
	DocumentID   string
	CaseID       string
	DocumentType DocumentType
	ChunkIndex   int
	Text         string
	Section      string
	Page         *int
	EmailIndex   *int
}

func (c Chunk) Key() string {
	return fmt.Sprintf("%s_chunk_%d", c.DocumentID, c.ChunkIndex)
}

// Metadata flattens the chunk attributes into the string map stored next
// to the vector. Optional fields are omitted when absent.
func (c Chunk) Metadata() map[string]string {
	md := map[string]string{
		MetaDocumentID:   c.DocumentID,
		MetaCaseID:       c.CaseID,
		MetaDocumentType: string(c.DocumentType),
		MetaChunkIndex:   strconv.Itoa(c.ChunkIndex),
	}
	if c.Section != "" {
		md[MetaSection] = c.Section
	}
	if c.Page != nil {
		md[MetaPage] = strconv.Itoa(*c.Page)
	}
	if c.EmailIndex != nil {
		md[MetaEmailIndex] = strconv.Itoa(*c.EmailIndex)
	}
	return md
}

const (
	MetaDocumentID   = "document_id"
	MetaCaseID       = "case_id"
	MetaDocumentType = "document_type"
	MetaChunkIndex   = "chunk_index"
	MetaSection      = "section"
	MetaPage         = "page"
	MetaEmailIndex   = "email_index"
)

type IndexEntry struct {
	Key       string
	CaseID    string
	Text      string
	Embedding []float32
	Metadata  map[string]string
}

type SearchResult struct {
	Key      string            `json:"key"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Distance float64           `json:"distance"`
}

// Relevance maps a cosine distance in [0,2] onto [0,1].
func (r SearchResult) Relevance() float64 {
	return clampUnit(1 - r.Distance/2)
}

type RelatedCandidate struct {
	DocID     string  `json:"doc_id"`
	Title     string  `json:"title"`
	Summary   string  `json:"summary"`
	Relevance float64 `json:"relevance"`
}

type AnswerSource struct {
	DocumentID   string `json:"document_id"`
	DocumentType string `json:"document_type"`
	Page         string `json:"page,omitempty"`
	Excerpt      string `json:"excerpt"`
}

type Answer struct {
	Answer     string         `json:"answer"`
	Sources    []AnswerSource `json:"sources"`
	Confidence float64        `json:"confidence"`
}

// VectorQuery is a nearest-neighbour lookup scoped to one case.
type VectorQuery struct {
	CaseID string
	Vector []float32
	TopK   int
	Filter map[string]string
}

// MatchFilter reports whether metadata satisfies every equality in filter.
func MatchFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}
