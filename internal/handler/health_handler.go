package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/discovery/internal/pkg/response"
)

const serviceVersion = "1.0.0"

type HealthHandler struct {
	ping func(ctx context.Context) error
}

// NewHealthHandler reports "degraded" when ping fails. A nil ping is
// always healthy.
func NewHealthHandler(ping func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{ping: ping}
}

func (h *HealthHandler) Health(c *gin.Context) {
	status := "healthy"
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			logutil.GetLogger(ctx).Warn("health check: database unreachable", zap.Error(err))
			status = "degraded"
		}
	}
	response.Success(c, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   serviceVersion,
	})
}
