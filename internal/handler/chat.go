package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"messagerie/internal/service"
	"messagerie/pkg/errors"
	"messagerie/pkg/logger"
)

// ChatHandler is the read-only REST surface over room history and presence,
// formatted exactly like the live replay.
type ChatHandler struct {
	chatService service.ChatService
	log         logger.Logger
}

func NewChatHandler(chatService service.ChatService, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		log:         log,
	}
}

func (h *ChatHandler) GetRoomMessages(c *gin.Context) {
	history, err := h.chatService.RoomHistory(c.Request.Context(), c.Param("roomCode"))
	if err != nil {
		c.JSON(errors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, history)
}

func (h *ChatHandler) GetOnlineUsers(c *gin.Context) {
	users, err := h.chatService.OnlineUsers(c.Request.Context(), c.Param("roomCode"))
	if err != nil {
		c.JSON(errors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, users)
}
