package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tubetalk/tubetalk/internal/middleware"
)

type RouterDeps struct {
	Videos *VideoHandler
	Chat   *ChatHandler

	LoadWindow time.Duration
	ChatWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	// loading fetches captions and embeds every chunk, keep it rate limited
	api.POST("/videos/load", middleware.RateLimit(deps.LoadWindow), deps.Videos.Load)
	api.GET("/videos/:id", deps.Videos.Get)

	chatLimit := middleware.RateLimit(deps.ChatWindow)
	api.POST("/chat", chatLimit, deps.Chat.Ask)
	api.POST("/chat/search", chatLimit, deps.Chat.Search)
}
