package handler

import (
	"net/http"

	"github.com/bookbrain-ai/bookbrain-be/service"
	"github.com/bookbrain-ai/bookbrain-be/types"
	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chatService *service.ChatService
	wsService   *service.WebSocketService
}

func NewChatHandler(chatService *service.ChatService, wsService *service.WebSocketService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		wsService:   wsService,
	}
}

func (h *ChatHandler) ChatHandler(c *gin.Context) {
	var req types.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid request body",
		})
		return
	}
	res, err := h.chatService.Chat(c.Request.Context(), req.Messages, req.Grounded, req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  false,
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   res,
	})
}

func (h *ChatHandler) WebSocketChatHandler(c *gin.Context) {
	h.wsService.HandleChat(c.Writer, c.Request)
}
