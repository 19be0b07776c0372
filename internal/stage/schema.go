package stage

// JSON schema builders for structured stage output.

type schema = map[string]interface{}

func object(props schema, required ...string) schema {
	s := schema{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		req := make([]interface{}, 0, len(required))
		for _, r := range required {
			req = append(req, r)
		}
		s["required"] = req
	}
	return s
}

func str() schema { return schema{"type": "string"} }

func num() schema { return schema{"type": "number"} }

func integer() schema { return schema{"type": "integer"} }

func optInt() schema { return schema{"type": []interface{}{"integer", "null"}} }

func optStr() schema { return schema{"type": []interface{}{"string", "null"}} }

func boolean() schema { return schema{"type": "boolean"} }

func array(items schema) schema { return schema{"type": "array", "items": items} }

func enum(values ...string) schema {
	vs := make([]interface{}, 0, len(values))
	for _, v := range values {
		vs = append(vs, v)
	}
	return schema{"type": "string", "enum": vs}
}

var classificationSchema = object(schema{
	"document_type": enum("email", "contract", "deposition", "pleading", "medical_record",
		"correspondence", "financial", "discovery_response", "exhibit", "other"),
	"confidence":   num(),
	"reasoning":    str(),
	"sub_type":     optStr(),
	"key_markers":  array(str()),
	"needs_review": boolean(),
}, "document_type", "confidence", "reasoning")

var metadataSchema = object(schema{
	"dates": array(object(schema{
		"date":        str(),
		"context":     str(),
		"source_page": optInt(),
	}, "date", "context")),
	"people": array(object(schema{
		"name":             str(),
		"role":             str(),
		"context":          str(),
		"mentions":         integer(),
		"first_appearance": optInt(),
	}, "name", "role")),
	"entities": array(object(schema{
		"name": str(),
		"type": str(),
		"role": str(),
	}, "name", "type")),
	"locations": array(object(schema{
		"name":    str(),
		"context": str(),
	}, "name")),
}, "dates", "people", "entities", "locations")

var privilegeSchema = object(schema{
	"privilege_flags": array(enum("attorney_client", "work_product", "confidential", "none")),
	"confidence":      num(),
	"reasoning":       str(),
	"privileged_excerpts": array(object(schema{
		"text": str(),
		"type": str(),
		"page": optInt(),
	}, "text", "type")),
	"recommendation":  enum("clearly_privileged", "likely_privileged", "review_required", "not_privileged"),
	"waiver_concerns": array(str()),
}, "privilege_flags", "confidence", "reasoning", "recommendation")

var hotDocSchema = object(schema{
	"is_hot_doc": boolean(),
	"score":      num(),
	"severity":   enum("critical", "high", "medium", "low"),
	"flags": array(object(schema{
		"type": enum("admission", "smoking_gun", "contradiction", "key_admission",
			"critical_evidence", "impeachment"),
		"excerpt":   str(),
		"page":      optInt(),
		"reasoning": str(),
		"impact":    str(),
	}, "type", "excerpt", "reasoning")),
	"summary":            str(),
	"recommended_action": str(),
}, "is_hot_doc", "score", "severity", "flags")

var contentSchema = object(schema{
	"summary":   str(),
	"key_facts": array(str()),
	"legal_issues": array(object(schema{
		"issue":          str(),
		"description":    str(),
		"relevant_facts": array(str()),
	}, "issue", "description")),
	"draft_narrative": str(),
	"evidence_gaps": array(object(schema{
		"gap":              str(),
		"importance":       enum("critical", "important", "helpful"),
		"suggested_action": str(),
	}, "gap", "importance")),
	"document_significance": str(),
	"recommended_tags":      array(str()),
}, "summary", "key_facts", "legal_issues", "draft_narrative", "evidence_gaps")

var crossReferenceSchema = object(schema{
	"related_documents": array(object(schema{
		"doc_id":       str(),
		"title":        str(),
		"relevance":    num(),
		"relationship": enum("supports", "contradicts", "references", "related_to", "part_of_chain"),
		"explanation":  str(),
	}, "doc_id", "relevance")),
	"timeline_events": array(object(schema{
		"date":         str(),
		"event":        str(),
		"source_doc":   str(),
		"source_page":  optInt(),
		"significance": enum("critical", "important", "notable"),
	}, "date", "event")),
	"witness_mentions": array(object(schema{
		"name": str(),
		"role": str(),
		"appearances": array(object(schema{
			"doc_id":  str(),
			"context": str(),
			"page":    optInt(),
		}, "context")),
	}, "name", "appearances")),
	"consistency_flags": array(object(schema{
		"witness":   str(),
		"issue":     str(),
		"documents": array(str()),
		"severity":  str(),
	}, "issue")),
}, "related_documents", "timeline_events", "witness_mentions", "consistency_flags")
