package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/discovery/internal/middleware"
	"github.com/xxxsen/discovery/internal/pkg/errcode"
	appErr "github.com/xxxsen/discovery/internal/pkg/errors"
	"github.com/xxxsen/discovery/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Invalid(c, err.Error())
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, errcode.ErrTooMany, "too many requests")
	case errors.Is(err, appErr.ErrLLMUnavailable), errors.Is(err, appErr.ErrEmbeddingUnavailable):
		response.Error(c, errcode.ErrAIUnavailable, "ai unavailable")
	case errors.Is(err, appErr.ErrDocumentFetch):
		response.Error(c, errcode.ErrDocumentFetch, "document fetch failed")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
