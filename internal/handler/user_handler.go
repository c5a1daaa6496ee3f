package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/internal/service"
)

// UserHandler handles user search, contacts and push registration
type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// SearchUsers godoc
// @Summary Search users by username or email
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param q query string true "Search query"
// @Success 200 {array} model.UserResponse
// @Router /users/search [get]
func (h *UserHandler) SearchUsers(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Search query is required"})
		return
	}

	users, err := h.userService.Search(c.Request.Context(), query, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

// ListContacts godoc
// @Summary List the current user's contacts
// @Tags Contacts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.UserResponse
// @Router /contacts [get]
func (h *UserHandler) ListContacts(c *gin.Context) {
	contacts, err := h.userService.ListContacts(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, contacts)
}

// AddContact godoc
// @Summary Add a contact
// @Tags Contacts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.AddContactRequest true "Contact"
// @Success 201 {object} model.UserResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /contacts [post]
func (h *UserHandler) AddContact(c *gin.Context) {
	var req model.AddContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	contact, err := h.userService.AddContact(c.Request.Context(), currentUserID(c), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, contact)
}

// RemoveContact godoc
// @Summary Remove a contact
// @Tags Contacts
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Contact user ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /contacts/{userId} [delete]
func (h *UserHandler) RemoveContact(c *gin.Context) {
	contactID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	if err := h.userService.RemoveContact(c.Request.Context(), currentUserID(c), contactID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Contact removed"})
}

// RegisterDevice godoc
// @Summary Register device for push notifications
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.RegisterDeviceRequest true "Register device request"
// @Success 200 {object} model.SuccessResponse
// @Router /users/devices [post]
func (h *UserHandler) RegisterDevice(c *gin.Context) {
	var req model.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.userService.RegisterDevice(c.Request.Context(), currentUserID(c), req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Device registered successfully"})
}

// RegisterPushSubscription godoc
// @Summary Register a browser Web Push subscription
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.PushSubscriptionRequest true "Subscription"
// @Success 200 {object} model.SuccessResponse
// @Router /users/push-subscriptions [post]
func (h *UserHandler) RegisterPushSubscription(c *gin.Context) {
	var req model.PushSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.userService.RegisterPushSubscription(c.Request.Context(), currentUserID(c), req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Subscription registered"})
}
