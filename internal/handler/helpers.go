package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/tubetalk/tubetalk/internal/pkg/errcode"
	"github.com/tubetalk/tubetalk/internal/pkg/errs"
	"github.com/tubetalk/tubetalk/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, errs.ErrInvalid), errors.Is(err, errs.ErrInvalidConfig):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errs.IsNoCaptions(err):
		response.Error(c, errcode.ErrNoCaptions, "no captions available for this video")
	case errs.IsCollectionNotFound(err):
		response.Error(c, errcode.ErrVideoNotLoaded, "video not loaded")
	case errors.Is(err, errs.ErrEmbeddingUnavailable), errors.Is(err, errs.ErrUpstream), errors.Is(err, errs.ErrUpstreamTimeout):
		// upstream detail stays in the log, not the response
		response.Error(c, errcode.ErrAIUnavailable, "ai service unavailable")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
