package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/tubetalk/tubetalk/internal/model"
	"github.com/tubetalk/tubetalk/internal/pkg/errcode"
	"github.com/tubetalk/tubetalk/internal/pkg/response"
)

type QuestionAnswerer interface {
	Ask(ctx context.Context, videoID, question string) (string, error)
	Retrieve(ctx context.Context, videoID, question string, k int) ([]model.ScoredChunk, error)
}

type ChatHandler struct {
	chat QuestionAnswerer
}

func NewChatHandler(chat QuestionAnswerer) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type askRequest struct {
	VideoID  string `json:"video_id"`
	Question string `json:"question"`
}

func (h *ChatHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	answer, err := h.chat.Ask(c.Request.Context(), req.VideoID, req.Question)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"video_id": req.VideoID, "answer": answer})
}

type searchHit struct {
	Seq   int     `json:"seq"`
	Text  string  `json:"text"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float32 `json:"score"`
}

// Search exposes raw retrieval without the answering step, mainly for
// debugging relevance.
func (h *ChatHandler) Search(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	hits, err := h.chat.Retrieve(c.Request.Context(), req.VideoID, req.Question, 0)
	if err != nil {
		handleError(c, err)
		return
	}
	items := make([]searchHit, 0, len(hits))
	for _, hit := range hits {
		items = append(items, searchHit{
			Seq:   hit.Chunk.Seq,
			Text:  hit.Chunk.Text,
			Start: hit.Chunk.Start,
			End:   hit.Chunk.End,
			Score: hit.Score,
		})
	}
	response.Success(c, gin.H{"video_id": req.VideoID, "items": items})
}
