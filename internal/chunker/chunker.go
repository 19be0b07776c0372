package chunker

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/discovery/internal/model"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	// sizes are configured in tokens and measured in characters
	charsPerToken = 4
	unitSeparator = "\n\n"
)

type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

type Chunker struct {
	chunkChars   int
	overlapChars int
}

func New(opts Options) *Chunker {
	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	overlap := opts.ChunkOverlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 5
	}
	return &Chunker{
		chunkChars:   size * charsPerToken,
		overlapChars: overlap * charsPerToken,
	}
}

// Chunk splits a document along the boundaries natural to its type.
// Structural units are never split; a single unit larger than the target
// size becomes its own chunk.
func (c *Chunker) Chunk(ctx context.Context, text, documentID, caseID string, docType model.DocumentType) []model.Chunk {
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", documentID), zap.String("document_type", string(docType)))
	if strings.TrimSpace(text) == "" {
		return nil
	}
	st := strategyFor(docType)
	units := st.units(text)
	if len(units) == 0 {
		return nil
	}
	var pieces []unit
	if st.packed() {
		pieces = c.pack(units)
	} else {
		pieces = units
	}
	chunks := make([]model.Chunk, 0, len(pieces))
	for i, p := range pieces {
		chunk := model.Chunk{
			DocumentID:   documentID,
			CaseID:       caseID,
			DocumentType: docType,
			ChunkIndex:   i,
			Text:         p.text,
			Section:      p.section,
			EmailIndex:   p.emailIndex,
		}
		if p.page > 0 {
			page := p.page
			chunk.Page = &page
		}
		chunks = append(chunks, chunk)
	}
	logger.Debug("document chunked",
		zap.String("strategy", st.name()),
		zap.Int("units", len(units)),
		zap.Int("chunks", len(chunks)),
	)
	return chunks
}

type packer struct {
	chunkChars   int
	overlapChars int

	out        []unit
	cur        unit
	hasContent bool
}

func (c *Chunker) pack(units []unit) []unit {
	p := &packer{chunkChars: c.chunkChars, overlapChars: c.overlapChars}
	for _, u := range units {
		if p.hasContent && runeLen(p.cur.text)+len(unitSeparator)+runeLen(u.text) > p.chunkChars {
			p.close()
		}
		p.add(u)
	}
	if p.hasContent {
		p.emit()
	}
	return p.out
}

func (p *packer) add(u unit) {
	if p.hasContent {
		p.cur.text += unitSeparator + u.text
		return
	}
	seed := p.cur.text
	if seed != "" {
		// seed plus the opening unit stays within size + overlap
		room := p.chunkChars + p.overlapChars - len(unitSeparator) - runeLen(u.text)
		if runeLen(seed) > room {
			seed = tailRunes(seed, room)
		}
	}
	text := u.text
	if seed != "" {
		text = seed + unitSeparator + u.text
	}
	p.cur = unit{text: text, section: u.section, page: u.page, emailIndex: u.emailIndex}
	p.hasContent = true
}

func (p *packer) close() {
	closed := p.emit()
	p.cur = unit{text: strings.TrimSpace(tailRunes(closed, p.overlapChars))}
	p.hasContent = false
}

func (p *packer) emit() string {
	text := strings.TrimSpace(p.cur.text)
	if text != "" {
		u := p.cur
		u.text = text
		p.out = append(p.out, u)
	}
	return text
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func tailRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	total := runeLen(s)
	if total <= n {
		return s
	}
	skip := total - n
	for i := range s {
		if skip == 0 {
			return s[i:]
		}
		skip--
	}
	return ""
}
