package model

import "strings"

type DocumentType string

const (
	DocumentTypeEmail             DocumentType = "email"
	DocumentTypeContract          DocumentType = "contract"
	DocumentTypeDeposition        DocumentType = "deposition"
	DocumentTypePleading          DocumentType = "pleading"
	DocumentTypeMedicalRecord     DocumentType = "medical_record"
	DocumentTypeCorrespondence    DocumentType = "correspondence"
	DocumentTypeFinancial         DocumentType = "financial"
	DocumentTypeDiscoveryResponse DocumentType = "discovery_response"
	DocumentTypeExhibit           DocumentType = "exhibit"
	DocumentTypeOther             DocumentType = "other"
)

var documentTypes = []DocumentType{
	DocumentTypeEmail,
	DocumentTypeContract,
	DocumentTypeDeposition,
	DocumentTypePleading,
	DocumentTypeMedicalRecord,
	DocumentTypeCorrespondence,
	DocumentTypeFinancial,
	DocumentTypeDiscoveryResponse,
	DocumentTypeExhibit,
	DocumentTypeOther,
}

// DocumentTypes returns the closed set of classifier labels.
func DocumentTypes() []DocumentType {
	out := make([]DocumentType, len(documentTypes))
	copy(out, documentTypes)
	return out
}

// ParseDocumentType maps a label to a known type, falling back to other.
func ParseDocumentType(s string) DocumentType {
	v := DocumentType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range documentTypes {
		if t == v {
			return t
		}
	}
	return DocumentTypeOther
}

type PrivilegeFlag string

const (
	PrivilegeAttorneyClient PrivilegeFlag = "attorney_client"
	PrivilegeWorkProduct    PrivilegeFlag = "work_product"
	PrivilegeConfidential   PrivilegeFlag = "confidential"
	PrivilegeNone           PrivilegeFlag = "none"
)

const (
	RecommendationClearlyPrivileged = "clearly_privileged"
	RecommendationLikelyPrivileged  = "likely_privileged"
	RecommendationReviewRequired    = "review_required"
	RecommendationNotPrivileged     = "not_privileged"
)

const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)
