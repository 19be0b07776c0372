package model

// Stage output groups. A group pointer on PipelineState is nil until the
// owning stage has run, and is written as a whole exactly once.

type Classification struct {
	DocumentType DocumentType `json:"document_type"`
	Confidence   float64      `json:"confidence"`
	Reasoning    string       `json:"reasoning"`
	SubType      *string      `json:"sub_type"`
	KeyMarkers   []string     `json:"key_markers"`
	NeedsReview  bool         `json:"needs_review"`
}

type DateMention struct {
	Date       string `json:"date"`
	Context    string `json:"context"`
	SourcePage *int   `json:"source_page,omitempty"`
}

type Person struct {
	Name            string `json:"name"`
	Role            string `json:"role"`
	Context         string `json:"context,omitempty"`
	Mentions        int    `json:"mentions,omitempty"`
	FirstAppearance *int   `json:"first_appearance,omitempty"`
}

type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Role string `json:"role,omitempty"`
}

type Location struct {
	Name    string `json:"name"`
	Context string `json:"context,omitempty"`
}

type Metadata struct {
	Dates     []DateMention `json:"dates"`
	People    []Person      `json:"people"`
	Entities  []Entity      `json:"entities"`
	Locations []Location    `json:"locations"`
}

type PrivilegedExcerpt struct {
	Text string `json:"text"`
	Type string `json:"type"`
	Page *int   `json:"page,omitempty"`
}

type Privilege struct {
	Flags          []PrivilegeFlag     `json:"privilege_flags"`
	Reasoning      string              `json:"reasoning"`
	Confidence     float64             `json:"confidence"`
	Excerpts       []PrivilegedExcerpt `json:"privileged_excerpts"`
	Recommendation string              `json:"recommendation"`
	WaiverConcerns []string            `json:"waiver_concerns"`
}

type HotDocReason struct {
	Type      string `json:"type"`
	Excerpt   string `json:"excerpt"`
	Page      *int   `json:"page,omitempty"`
	Reasoning string `json:"reasoning"`
	Impact    string `json:"impact,omitempty"`
}

type HotDoc struct {
	IsHotDoc          bool           `json:"is_hot_doc"`
	Reasons           []HotDocReason `json:"flags"`
	Score             float64        `json:"score"`
	Severity          string         `json:"severity"`
	Summary           string         `json:"summary,omitempty"`
	RecommendedAction string         `json:"recommended_action,omitempty"`
}

type LegalIssue struct {
	Issue         string   `json:"issue"`
	Description   string   `json:"description"`
	RelevantFacts []string `json:"relevant_facts,omitempty"`
}

type EvidenceGap struct {
	Gap             string `json:"gap"`
	Importance      string `json:"importance"`
	SuggestedAction string `json:"suggested_action,omitempty"`
}

type ContentAnalysis struct {
	Summary              string        `json:"summary"`
	KeyFacts             []string      `json:"key_facts"`
	LegalIssues          []LegalIssue  `json:"legal_issues"`
	DraftNarrative       string        `json:"draft_narrative"`
	EvidenceGaps         []EvidenceGap `json:"evidence_gaps"`
	DocumentSignificance string        `json:"document_significance,omitempty"`
	RecommendedTags      []string      `json:"recommended_tags,omitempty"`
}

type RelatedDocument struct {
	DocID        string  `json:"doc_id"`
	Title        string  `json:"title"`
	Relevance    float64 `json:"relevance"`
	Relationship string  `json:"relationship,omitempty"`
	Explanation  string  `json:"explanation,omitempty"`
}

type TimelineEvent struct {
	Date         string `json:"date"`
	Event        string `json:"event"`
	SourceDoc    string `json:"source_doc"`
	SourcePage   *int   `json:"source_page,omitempty"`
	Significance string `json:"significance,omitempty"`
}

type WitnessAppearance struct {
	DocID   string `json:"doc_id"`
	Context string `json:"context"`
	Page    *int   `json:"page,omitempty"`
}

type WitnessMention struct {
	Name        string              `json:"name"`
	Role        string              `json:"role,omitempty"`
	Appearances []WitnessAppearance `json:"appearances"`
}

type ConsistencyFlag struct {
	Witness   string   `json:"witness"`
	Issue     string   `json:"issue"`
	Documents []string `json:"documents"`
	Severity  string   `json:"severity,omitempty"`
}

type CrossReference struct {
	RelatedDocuments []RelatedDocument `json:"related_documents"`
	TimelineEvents   []TimelineEvent   `json:"timeline_events"`
	WitnessMentions  []WitnessMention  `json:"witness_mentions"`
	ConsistencyFlags []ConsistencyFlag `json:"consistency_flags"`
}

// Normalize replaces nil lists so serialized output never carries nulls.
func (m *Metadata) Normalize() {
	if m.Dates == nil {
		m.Dates = []DateMention{}
	}
	if m.People == nil {
		m.People = []Person{}
	}
	if m.Entities == nil {
		m.Entities = []Entity{}
	}
	if m.Locations == nil {
		m.Locations = []Location{}
	}
}

func (c *Classification) Normalize() {
	c.DocumentType = ParseDocumentType(string(c.DocumentType))
	c.Confidence = clampUnit(c.Confidence)
	if c.KeyMarkers == nil {
		c.KeyMarkers = []string{}
	}
}

func (p *Privilege) Normalize() {
	if len(p.Flags) == 0 {
		p.Flags = []PrivilegeFlag{PrivilegeNone}
	}
	p.Confidence = clampUnit(p.Confidence)
	if p.Excerpts == nil {
		p.Excerpts = []PrivilegedExcerpt{}
	}
	if p.WaiverConcerns == nil {
		p.WaiverConcerns = []string{}
	}
	if p.Recommendation == "" {
		p.Recommendation = RecommendationReviewRequired
	}
}

func (h *HotDoc) Normalize() {
	h.Score = clampUnit(h.Score)
	if h.Reasons == nil {
		h.Reasons = []HotDocReason{}
	}
	if h.Severity == "" {
		h.Severity = SeverityLow
	}
}

func (c *ContentAnalysis) Normalize() {
	if c.KeyFacts == nil {
		c.KeyFacts = []string{}
	}
	if c.LegalIssues == nil {
		c.LegalIssues = []LegalIssue{}
	}
	if c.EvidenceGaps == nil {
		c.EvidenceGaps = []EvidenceGap{}
	}
}

func (c *CrossReference) Normalize() {
	if c.RelatedDocuments == nil {
		c.RelatedDocuments = []RelatedDocument{}
	}
	if c.TimelineEvents == nil {
		c.TimelineEvents = []TimelineEvent{}
	}
	if c.WitnessMentions == nil {
		c.WitnessMentions = []WitnessMention{}
	}
	if c.ConsistencyFlags == nil {
		c.ConsistencyFlags = []ConsistencyFlag{}
	}
	for i := range c.RelatedDocuments {
		c.RelatedDocuments[i].Relevance = clampUnit(c.RelatedDocuments[i].Relevance)
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
