package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/internal/service"
)

// ChatHandler handles 1:1 chat endpoints
type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// GetOrCreateChat godoc
// @Summary Get or create a direct chat
// @Description Returns the existing chat with the user, creating it on first contact. The order of the two participants does not matter.
// @Tags Chats
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.CreateChatRequest true "Other participant"
// @Success 200 {object} model.ChatResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /chats [post]
func (h *ChatHandler) GetOrCreateChat(c *gin.Context) {
	var req model.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	chat, err := h.chatService.GetOrCreateChat(c.Request.Context(), currentUserID(c), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, chat)
}

// ListChats godoc
// @Summary List the current user's chats
// @Description Most recently active first, each with its last message and unread count
// @Tags Chats
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.ChatResponse
// @Router /chats [get]
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.chatService.ListUserChats(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, chats)
}

// GetChat godoc
// @Summary Get a chat
// @Tags Chats
// @Produce json
// @Security BearerAuth
// @Param id path string true "Chat ID"
// @Success 200 {object} model.ChatResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /chats/{id} [get]
func (h *ChatHandler) GetChat(c *gin.Context) {
	chatID, ok := pathID(c, "id")
	if !ok {
		return
	}

	chat, err := h.chatService.GetChat(c.Request.Context(), chatID, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, chat)
}
