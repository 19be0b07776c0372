package chunker

import (
	"regexp"
	"sort"
	"strings"

	"github.com/xxxsen/discovery/internal/model"
)

const pageBreak = "\f"

type unit struct {
	text       string
	section    string
	page       int
	emailIndex *int
}

type strategy interface {
	name() string
	units(text string) []unit
	// packed reports whether units are accumulated up to the target size
	// rather than emitted one per chunk.
	packed() bool
}

func strategyFor(docType model.DocumentType) strategy {
	switch docType {
	case model.DocumentTypeContract:
		return contractStrategy{}
	case model.DocumentTypeDeposition:
		return depositionStrategy{}
	case model.DocumentTypeEmail:
		return emailStrategy{}
	case model.DocumentTypePleading,
		model.DocumentTypeMedicalRecord,
		model.DocumentTypeCorrespondence,
		model.DocumentTypeFinancial,
		model.DocumentTypeDiscoveryResponse,
		model.DocumentTypeExhibit,
		model.DocumentTypeOther:
		return genericStrategy{}
	default:
		return genericStrategy{}
	}
}

type segment struct {
	start int
	text  string
}

// splitAt cuts text at the given ascending offsets, keeping the prefix
// before the first offset as its own segment.
func splitAt(text string, starts []int) []segment {
	out := make([]segment, 0, len(starts)+1)
	prev := 0
	for _, s := range starts {
		if s <= prev {
			continue
		}
		out = append(out, segment{start: prev, text: text[prev:s]})
		prev = s
	}
	out = append(out, segment{start: prev, text: text[prev:]})
	return out
}

// pageIndex holds the byte offsets of every page break in a document.
type pageIndex []int

func newPageIndex(text string) pageIndex {
	var idx pageIndex
	for i := 0; i < len(text); {
		j := strings.Index(text[i:], pageBreak)
		if j < 0 {
			break
		}
		idx = append(idx, i+j)
		i += j + len(pageBreak)
	}
	return idx
}

// at returns the 1-based page containing offset.
func (p pageIndex) at(offset int) int {
	return sort.SearchInts(p, offset) + 1
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if runeLen(s) > 100 {
		s = string([]rune(s)[:100])
	}
	return s
}

type genericStrategy struct{}

var paragraphBreak = regexp.MustCompile(`\n[ \t\f]*\n`)

func (genericStrategy) name() string { return "generic" }

func (genericStrategy) packed() bool { return true }

func (genericStrategy) units(text string) []unit {
	pages := newPageIndex(text)
	var out []unit
	prev := 0
	emit := func(start, end int) {
		body := strings.TrimSpace(text[start:end])
		if body == "" {
			return
		}
		out = append(out, unit{text: body, page: pages.at(start + leadingSpace(text[start:end]))})
	}
	for _, loc := range paragraphBreak.FindAllStringIndex(text, -1) {
		emit(prev, loc[0])
		prev = loc[1]
	}
	emit(prev, len(text))
	return out
}

func leadingSpace(s string) int {
	return len(s) - len(strings.TrimLeft(s, " \t\r\n\f"))
}

type contractStrategy struct{}

// contractHeader matches "1 Term", "2.1 Payment", "IV. Remedies" and
// "Article IV Remedies". A bare roman numeral needs a trailing dot or a
// Section/Article prefix so prose such as "I Agree" is not a heading.
var contractHeader = regexp.MustCompile(`(?m)^[ \t]*(?:(?:Section|SECTION|Article|ARTICLE)[ \t]+(?:\d+(?:\.\d+)*|[IVXivx]+)\.?|\d+(?:\.\d+)*\.?|[IVXivx]+\.)[ \t]+[A-Z]`)

func (contractStrategy) name() string { return "contract" }

func (contractStrategy) packed() bool { return true }

func (contractStrategy) units(text string) []unit {
	locs := contractHeader.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return genericStrategy{}.units(text)
	}
	starts := make([]int, 0, len(locs))
	for _, loc := range locs {
		starts = append(starts, loc[0])
	}
	pages := newPageIndex(text)
	var out []unit
	for i, seg := range splitAt(text, starts) {
		body := strings.TrimSpace(seg.text)
		if body == "" {
			continue
		}
		section := ""
		if i > 0 || starts[0] == 0 {
			section = firstLine(body)
		}
		out = append(out, unit{
			text:    body,
			section: section,
			page:    pages.at(seg.start + leadingSpace(seg.text)),
		})
	}
	return out
}

type depositionStrategy struct{}

var depositionMarker = regexp.MustCompile(`(?m)^[ \t]*([QA])[:.][ \t]*`)

func (depositionStrategy) name() string { return "deposition" }

func (depositionStrategy) packed() bool { return true }

// units keeps each question together with the answer that follows it.
func (depositionStrategy) units(text string) []unit {
	locs := depositionMarker.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return genericStrategy{}.units(text)
	}
	type turn struct {
		kind  byte
		start int
		end   int
	}
	turns := make([]turn, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		turns = append(turns, turn{kind: text[loc[2]], start: loc[0], end: end})
	}
	pages := newPageIndex(text)
	var out []unit
	add := func(start, end int) {
		body := strings.TrimSpace(text[start:end])
		if body == "" {
			return
		}
		out = append(out, unit{text: body, page: pages.at(start + leadingSpace(text[start:end]))})
	}
	add(0, turns[0].start)
	for i := 0; i < len(turns); i++ {
		t := turns[i]
		if t.kind == 'Q' && i+1 < len(turns) && turns[i+1].kind == 'A' {
			add(t.start, turns[i+1].end)
			i++
			continue
		}
		add(t.start, t.end)
	}
	return out
}

type emailStrategy struct{}

var (
	emailStart   = regexp.MustCompile(`(?m)^[ \t]*(?:From|FROM):`)
	emailSubject = regexp.MustCompile(`(?mi)^[ \t]*subject:[ \t]*(.+)$`)
)

func (emailStrategy) name() string { return "email" }

func (emailStrategy) packed() bool { return false }

// units emits one unit per message. Text before the first message header
// is kept as message zero.
func (emailStrategy) units(text string) []unit {
	locs := emailStart.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return genericStrategy{}.units(text)
	}
	starts := make([]int, 0, len(locs))
	for _, loc := range locs {
		starts = append(starts, loc[0])
	}
	segs := splitAt(text, starts)
	if starts[0] == 0 {
		segs = append([]segment{{}}, segs...)
	}
	var out []unit
	for i, seg := range segs {
		body := strings.TrimSpace(seg.text)
		if body == "" {
			continue
		}
		idx := i
		u := unit{text: body, emailIndex: &idx}
		if m := emailSubject.FindStringSubmatch(body); m != nil {
			u.section = firstLine(m[1])
		}
		out = append(out, u)
	}
	return out
}
