package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/discovery/internal/middleware"
)

type RouterDeps struct {
	Analysis     *AnalysisHandler
	Health       *HealthHandler
	AskRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/health", deps.Health.Health)

	api.POST("/analyze", deps.Analysis.Analyze)
	api.GET("/status/:job_id", deps.Analysis.Status)
	api.GET("/results/:job_id", deps.Analysis.Results)
	api.POST("/ask", middleware.RateLimit(deps.AskRateLimit), deps.Analysis.Ask)

	cases := api.Group("/cases/:case_id")
	cases.GET("/timeline", deps.Analysis.Timeline)
	cases.GET("/witnesses", deps.Analysis.Witnesses)
	cases.DELETE("/documents/:document_id", deps.Analysis.DeleteDocument)
	cases.DELETE("", deps.Analysis.DeleteCase)
}
