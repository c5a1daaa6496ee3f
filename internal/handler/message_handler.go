package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/internal/service"
)

// MessageHandler handles message and read-tracking endpoints for both chats
// and groups
type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// SendMessage godoc
// @Summary Send a message
// @Description Exactly one of chat_id and group_id must be set. Text messages need content, media messages need a media URL.
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.SendMessageRequest true "Message"
// @Success 201 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /messages [post]
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	msg, err := h.messageService.Send(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// GetMessage godoc
// @Summary Get a message
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 200 {object} model.MessageResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /messages/{id} [get]
func (h *MessageHandler) GetMessage(c *gin.Context) {
	messageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	msg, err := h.messageService.Get(c.Request.Context(), messageID, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

// DeleteMessage godoc
// @Summary Delete a message
// @Description Only the sender can delete. The message stays in history as deleted.
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /messages/{id} [delete]
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.messageService.Delete(c.Request.Context(), messageID, currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Message deleted"})
}

// ToggleReaction godoc
// @Summary Add or remove a reaction
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Param body body model.ReactionRequest true "Emoji"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /messages/{id}/reactions [post]
func (h *MessageHandler) ToggleReaction(c *gin.Context) {
	messageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req model.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	msg, err := h.messageService.ToggleReaction(c.Request.Context(), messageID, currentUserID(c), req.Emoji)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

// ListChatMessages godoc
// @Summary List chat messages
// @Description Newest first. Listing marks the chat read for the caller.
// @Tags Chats
// @Produce json
// @Security BearerAuth
// @Param id path string true "Chat ID"
// @Param skip query int false "Messages to skip"
// @Param take query int false "Page size (default 50)"
// @Success 200 {array} model.MessageResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /chats/{id}/messages [get]
func (h *MessageHandler) ListChatMessages(c *gin.Context) {
	h.list(c, model.ConversationChat)
}

// ListGroupMessages godoc
// @Summary List group messages
// @Description Newest first. Listing marks the group read for the caller.
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Param id path string true "Group ID"
// @Param skip query int false "Messages to skip"
// @Param take query int false "Page size (default 50)"
// @Success 200 {array} model.MessageResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /groups/{id}/messages [get]
func (h *MessageHandler) ListGroupMessages(c *gin.Context) {
	h.list(c, model.ConversationGroup)
}

func (h *MessageHandler) list(c *gin.Context, kind model.ConversationKind) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var q model.MessageListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	ref := model.ConversationRef{Kind: kind, ID: id}
	messages, err := h.messageService.List(c.Request.Context(), ref, currentUserID(c), q.Skip, q.Take)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

// MarkChatRead godoc
// @Summary Mark every message in a chat as read
// @Tags Chats
// @Produce json
// @Security BearerAuth
// @Param id path string true "Chat ID"
// @Success 200 {object} model.MarkReadResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /chats/{id}/read [post]
func (h *MessageHandler) MarkChatRead(c *gin.Context) {
	h.markRead(c, model.ConversationChat)
}

// MarkGroupRead godoc
// @Summary Mark every message in a group as read
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Param id path string true "Group ID"
// @Success 200 {object} model.MarkReadResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /groups/{id}/read [post]
func (h *MessageHandler) MarkGroupRead(c *gin.Context) {
	h.markRead(c, model.ConversationGroup)
}

func (h *MessageHandler) markRead(c *gin.Context, kind model.ConversationKind) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := h.messageService.MarkRead(c.Request.Context(), model.ConversationRef{Kind: kind, ID: id}, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ChatUnreadCount godoc
// @Summary Unread message count of a chat
// @Tags Chats
// @Produce json
// @Security BearerAuth
// @Param id path string true "Chat ID"
// @Success 200 {object} model.UnreadCountResponse
// @Router /chats/{id}/unread [get]
func (h *MessageHandler) ChatUnreadCount(c *gin.Context) {
	h.unread(c, model.ConversationChat)
}

// GroupUnreadCount godoc
// @Summary Unread message count of a group
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Param id path string true "Group ID"
// @Success 200 {object} model.UnreadCountResponse
// @Router /groups/{id}/unread [get]
func (h *MessageHandler) GroupUnreadCount(c *gin.Context) {
	h.unread(c, model.ConversationGroup)
}

func (h *MessageHandler) unread(c *gin.Context, kind model.ConversationKind) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	n, err := h.messageService.UnreadCount(c.Request.Context(), model.ConversationRef{Kind: kind, ID: id}, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.UnreadCountResponse{UnreadCount: n})
}
