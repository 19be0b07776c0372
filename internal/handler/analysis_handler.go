package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/discovery/internal/model"
	"github.com/xxxsen/discovery/internal/pkg/response"
	"github.com/xxxsen/discovery/internal/service"
)

// AnalysisAPI is the part of the analysis service the HTTP layer needs.
type AnalysisAPI interface {
	Submit(ctx context.Context, in service.AnalyzeInput) (*model.AnalysisJob, error)
	Status(ctx context.Context, jobID string) (*model.AnalysisJob, error)
	Results(ctx context.Context, jobID string) (*model.AnalysisResult, error)
	Timeline(ctx context.Context, caseID string) ([]model.TimelineRecord, error)
	Witnesses(ctx context.Context, caseID string) ([]model.WitnessRecord, error)
	Ask(ctx context.Context, caseID, question string) (*service.AskOutput, error)
	DeleteDocument(ctx context.Context, caseID, documentID string) error
	DeleteCase(ctx context.Context, caseID string) error
}

type AnalysisHandler struct {
	analysis AnalysisAPI
}

func NewAnalysisHandler(analysis AnalysisAPI) *AnalysisHandler {
	return &AnalysisHandler{analysis: analysis}
}

type askRequest struct {
	CaseID   string `json:"case_id"`
	Question string `json:"question"`
}

func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req service.AnalyzeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, "")
		return
	}
	job, err := h.analysis.Submit(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"job_id":  job.ID,
		"status":  job.Status,
		"message": "Document analysis queued successfully",
	})
}

func (h *AnalysisHandler) Status(c *gin.Context) {
	job, err := h.analysis.Status(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, job)
}

func (h *AnalysisHandler) Results(c *gin.Context) {
	res, err := h.analysis.Results(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}

func (h *AnalysisHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, "")
		return
	}
	out, err := h.analysis.Ask(c.Request.Context(), req.CaseID, req.Question)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, out)
}
