package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/tubetalk/tubetalk/internal/pkg/errcode"
	"github.com/tubetalk/tubetalk/internal/pkg/response"
	"github.com/tubetalk/tubetalk/internal/service"
)

type VideoLoader interface {
	LoadVideo(ctx context.Context, videoID string) (*service.LoadResult, error)
}

type CollectionChecker interface {
	Exists(ctx context.Context, collection string) (bool, error)
}

type VideoHandler struct {
	loader VideoLoader
	idx    CollectionChecker
}

func NewVideoHandler(loader VideoLoader, idx CollectionChecker) *VideoHandler {
	return &VideoHandler{loader: loader, idx: idx}
}

type loadVideoRequest struct {
	VideoID string `json:"video_id"`
}

func (h *VideoHandler) Load(c *gin.Context) {
	var req loadVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.loader.LoadVideo(c.Request.Context(), req.VideoID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *VideoHandler) Get(c *gin.Context) {
	videoID := c.Param("id")
	if videoID == "" {
		response.Error(c, errcode.ErrInvalid, "video id required")
		return
	}
	loaded, err := h.idx.Exists(c.Request.Context(), videoID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"video_id": videoID, "loaded": loaded})
}
