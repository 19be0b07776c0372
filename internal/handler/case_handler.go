package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/discovery/internal/model"
	"github.com/xxxsen/discovery/internal/pkg/response"
)

func (h *AnalysisHandler) Timeline(c *gin.Context) {
	caseID := c.Param("case_id")
	events, err := h.analysis.Timeline(c.Request.Context(), caseID)
	if err != nil {
		handleError(c, err)
		return
	}
	if events == nil {
		events = []model.TimelineRecord{}
	}
	response.Success(c, gin.H{
		"case_id":     caseID,
		"events":      events,
		"total_count": len(events),
	})
}

func (h *AnalysisHandler) Witnesses(c *gin.Context) {
	caseID := c.Param("case_id")
	rows, err := h.analysis.Witnesses(c.Request.Context(), caseID)
	if err != nil {
		handleError(c, err)
		return
	}
	if rows == nil {
		rows = []model.WitnessRecord{}
	}
	response.Success(c, gin.H{
		"case_id":     caseID,
		"witnesses":   rows,
		"total_count": len(rows),
	})
}

func (h *AnalysisHandler) DeleteDocument(c *gin.Context) {
	caseID := c.Param("case_id")
	documentID := c.Param("document_id")
	if err := h.analysis.DeleteDocument(c.Request.Context(), caseID, documentID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"case_id": caseID, "document_id": documentID, "deleted": true})
}

func (h *AnalysisHandler) DeleteCase(c *gin.Context) {
	caseID := c.Param("case_id")
	if err := h.analysis.DeleteCase(c.Request.Context(), caseID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"case_id": caseID, "deleted": true})
}
