package model

import "strings"

type TimelineRecord struct {
	CaseID       string `json:"case_id"`
	JobID        string `json:"job_id"`
	EventDate    string `json:"event_date"`
	Description  string `json:"event_description"`
	SourceDoc    string `json:"source_document"`
	SourcePage   *int   `json:"source_page,omitempty"`
	Significance string `json:"significance,omitempty"`
	Ctime        int64  `json:"ctime"`
}

type WitnessRecord struct {
	CaseID      string `json:"case_id"`
	JobID       string `json:"job_id"`
	WitnessName string `json:"witness_name"`
	Role        string `json:"role,omitempty"`
	DocumentID  string `json:"document_id"`
	Context     string `json:"context"`
	Page        *int   `json:"page,omitempty"`
	Ctime       int64  `json:"ctime"`
}

// FlattenTimeline turns the cross-reference timeline into one row per event.
func FlattenTimeline(s *PipelineState, now int64) []TimelineRecord {
	if s == nil || s.CrossReference == nil {
		return nil
	}
	out := make([]TimelineRecord, 0, len(s.CrossReference.TimelineEvents))
	for _, ev := range s.CrossReference.TimelineEvents {
		if strings.TrimSpace(ev.Date) == "" && strings.TrimSpace(ev.Event) == "" {
			continue
		}
		src := ev.SourceDoc
		if src == "" {
			src = s.JobID
		}
		out = append(out, TimelineRecord{
			CaseID:       s.CaseID,
			JobID:        s.JobID,
			EventDate:    ev.Date,
			Description:  ev.Event,
			SourceDoc:    src,
			SourcePage:   ev.SourcePage,
			Significance: ev.Significance,
			Ctime:        now,
		})
	}
	return out
}

// FlattenWitnesses produces one row per (witness, appearance).
func FlattenWitnesses(s *PipelineState, now int64) []WitnessRecord {
	if s == nil || s.CrossReference == nil {
		return nil
	}
	var out []WitnessRecord
	for _, w := range s.CrossReference.WitnessMentions {
		name := strings.TrimSpace(w.Name)
		if name == "" {
			continue
		}
		for _, app := range w.Appearances {
			docID := app.DocID
			if docID == "" {
				docID = s.JobID
			}
			out = append(out, WitnessRecord{
				CaseID:      s.CaseID,
				JobID:       s.JobID,
				WitnessName: name,
				Role:        w.Role,
				DocumentID:  docID,
				Context:     app.Context,
				Page:        app.Page,
				Ctime:       now,
			})
		}
	}
	return out
}
