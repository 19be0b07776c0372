package chunker

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/discovery/internal/model"
)

func TestChunkEmptyText(t *testing.T) {
	c := New(Options{})
	require.Empty(t, c.Chunk(context.Background(), "  \n\n ", "doc", "case", model.DocumentTypeContract))
}

func TestChunkGenericRespectsSizeAndOrder(t *testing.T) {
	c := New(Options{ChunkSize: 50, ChunkOverlap: 10})
	var paras []string
	for i := 0; i < 40; i++ {
		paras = append(paras, fmt.Sprintf("paragraph %02d %s", i, strings.Repeat("x", 60)))
	}
	text := strings.Join(paras, "\n\n")
	chunks := c.Chunk(context.Background(), text, "doc-1", "case-1", model.DocumentTypeOther)
	require.Greater(t, len(chunks), 1)

	limit := (50 + 10) * charsPerToken
	pos := 0
	for i, ch := range chunks {
		require.Equal(t, i, ch.ChunkIndex)
		require.Equal(t, "doc-1", ch.DocumentID)
		require.Equal(t, "case-1", ch.CaseID)
		require.LessOrEqual(t, runeLen(ch.Text), limit)
		require.NotNil(t, ch.Page)
		for pos < len(paras) && strings.Contains(ch.Text, paras[pos]) {
			pos++
		}
	}
	require.Equal(t, len(paras), pos, "every paragraph appears in order")
}

func TestChunkOverlapSeedsNextChunk(t *testing.T) {
	c := New(Options{ChunkSize: 20, ChunkOverlap: 5})
	a := strings.Repeat("a", 70)
	b := strings.Repeat("b", 70)
	chunks := c.Chunk(context.Background(), a+"\n\n"+b, "d", "c", model.DocumentTypeOther)
	require.Len(t, chunks, 2)
	require.Equal(t, a, chunks[0].Text)
	require.True(t, strings.HasPrefix(chunks[1].Text, strings.Repeat("a", 20)))
	require.True(t, strings.HasSuffix(chunks[1].Text, b))
}

func TestChunkOversizedUnitKeptWhole(t *testing.T) {
	c := New(Options{ChunkSize: 10, ChunkOverlap: 2})
	big := strings.Repeat("z", 500)
	chunks := c.Chunk(context.Background(), "short\n\n"+big+"\n\ntail", "d", "c", model.DocumentTypeOther)
	found := false
	for _, ch := range chunks {
		if strings.Contains(ch.Text, big) {
			found = true
		}
	}
	require.True(t, found)
}

func TestChunkContractSections(t *testing.T) {
	text := "MASTER SERVICES AGREEMENT\n\n" +
		"1. Definitions\nTerms used here.\n" +
		"2. Payment\nNet thirty days.\n" +
		"ARTICLE IV Termination\nEither party may terminate."
	c := New(Options{ChunkSize: 5, ChunkOverlap: 0})
	chunks := c.Chunk(context.Background(), text, "d", "c", model.DocumentTypeContract)
	require.Len(t, chunks, 4)
	require.Equal(t, "", chunks[0].Section)
	require.Equal(t, "1. Definitions", chunks[1].Section)
	require.Equal(t, "2. Payment", chunks[2].Section)
	require.Equal(t, "ARTICLE IV Termination", chunks[3].Section)
}

func TestChunkContractRomanNumeralNeedsDotOrPrefix(t *testing.T) {
	text := "SUPPLY AGREEMENT\n" +
		"I. Scope\nSeller supplies widgets.\n" +
		"I Agree to deliver on time.\n" +
		"I The Buyer accepts.\n" +
		"Section II Price\nTen dollars each.\n" +
		"2.1 Invoices\nMonthly."
	c := New(Options{ChunkSize: 5, ChunkOverlap: 0})
	chunks := c.Chunk(context.Background(), text, "d", "c", model.DocumentTypeContract)
	require.Len(t, chunks, 4)
	require.Equal(t, "I. Scope", chunks[1].Section)
	require.Contains(t, chunks[1].Text, "I Agree to deliver on time.")
	require.Contains(t, chunks[1].Text, "I The Buyer accepts.")
	require.Equal(t, "Section II Price", chunks[2].Section)
	require.Equal(t, "2.1 Invoices", chunks[3].Section)
}

func TestChunkDepositionKeepsQuestionWithAnswer(t *testing.T) {
	text := "DEPOSITION OF JOHN DOE\n" +
		"Q: Where were you on May 1?\n" +
		"A: At the office.\n" +
		"Q: Who else was there?\n" +
		"A: Nobody."
	c := New(Options{ChunkSize: 5, ChunkOverlap: 0})
	chunks := c.Chunk(context.Background(), text, "d", "c", model.DocumentTypeDeposition)
	require.Len(t, chunks, 3)
	require.Equal(t, "DEPOSITION OF JOHN DOE", chunks[0].Text)
	require.Contains(t, chunks[1].Text, "Where were you")
	require.Contains(t, chunks[1].Text, "At the office.")
	require.Contains(t, chunks[2].Text, "Who else")
	require.Contains(t, chunks[2].Text, "Nobody.")
}

func TestChunkEmailOneMessagePerChunk(t *testing.T) {
	text := "From: alice@example.com\nSubject: Shipment\nIt left today.\n" +
		"From: bob@example.com\nSubject: RE: Shipment\nThanks."
	c := New(Options{})
	chunks := c.Chunk(context.Background(), text, "d", "c", model.DocumentTypeEmail)
	require.Len(t, chunks, 2)
	require.True(t, strings.HasPrefix(chunks[0].Text, "From: alice"))
	require.True(t, strings.HasPrefix(chunks[1].Text, "From: bob"))
	require.Equal(t, 1, *chunks[0].EmailIndex)
	require.Equal(t, 2, *chunks[1].EmailIndex)
	require.Equal(t, "Shipment", chunks[0].Section)
	require.Nil(t, chunks[0].Page)
}

func TestChunkEmailPreambleIsMessageZero(t *testing.T) {
	text := "Forwarded thread below\nFrom: alice@example.com\nhello"
	chunks := New(Options{}).Chunk(context.Background(), text, "d", "c", model.DocumentTypeEmail)
	require.Len(t, chunks, 2)
	require.Equal(t, 0, *chunks[0].EmailIndex)
	require.Equal(t, 1, *chunks[1].EmailIndex)
}

func TestChunkPageBreaksTracked(t *testing.T) {
	text := "first page text\n\n\fsecond page text\n\n\fthird page text"
	chunks := New(Options{ChunkSize: 3, ChunkOverlap: 0}).Chunk(context.Background(), text, "d", "c", model.DocumentTypePleading)
	require.Len(t, chunks, 3)
	require.Equal(t, 1, *chunks[0].Page)
	require.Equal(t, 2, *chunks[1].Page)
	require.Equal(t, 3, *chunks[2].Page)
}

func TestStrategyForCoversAllTypes(t *testing.T) {
	want := map[model.DocumentType]string{
		model.DocumentTypeContract:   "contract",
		model.DocumentTypeDeposition: "deposition",
		model.DocumentTypeEmail:      "email",
	}
	for _, dt := range model.DocumentTypes() {
		name, ok := want[dt]
		if !ok {
			name = "generic"
		}
		require.Equal(t, name, strategyFor(dt).name(), string(dt))
	}
	require.Equal(t, "generic", strategyFor(model.DocumentType("memo")).name())
}

func TestPageIndexMatchesBreakCount(t *testing.T) {
	text := "a\fbb\f\fccc\fd"
	pages := newPageIndex(text)
	require.Len(t, pages, 4)
	for off := 0; off <= len(text); off++ {
		require.Equal(t, strings.Count(text[:off], pageBreak)+1, pages.at(off), "offset %d", off)
	}
	require.Equal(t, 1, newPageIndex("no breaks").at(5))
}

func TestChunkLargeDocumentIsLinear(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200000; i++ {
		fmt.Fprintf(&b, "paragraph %06d of the production set\n\n", i)
		if i%1000 == 999 {
			b.WriteString(pageBreak)
		}
	}
	c := New(Options{})
	start := time.Now()
	chunks := c.Chunk(context.Background(), b.String(), "d", "c", model.DocumentTypeOther)
	require.Less(t, time.Since(start), 10*time.Second)
	require.NotEmpty(t, chunks)
	last := chunks[len(chunks)-1]
	require.Equal(t, 200, *last.Page)
}
