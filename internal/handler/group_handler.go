package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/internal/service"
)

// GroupHandler handles group and membership endpoints
type GroupHandler struct {
	groupService *service.GroupService
}

func NewGroupHandler(groupService *service.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

// CreateGroup godoc
// @Summary Create a group
// @Description The creator becomes admin, listed users become members
// @Tags Groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.CreateGroupRequest true "Group"
// @Success 201 {object} model.GroupResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /groups [post]
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req model.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	group, err := h.groupService.Create(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, group)
}

// ListGroups godoc
// @Summary List the current user's groups
// @Description Most recently active first
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.GroupResponse
// @Router /groups [get]
func (h *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := h.groupService.ListUserGroups(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, groups)
}

// GetGroup godoc
// @Summary Get a group with its members
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Param id path string true "Group ID"
// @Success 200 {object} model.GroupResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /groups/{id} [get]
func (h *GroupHandler) GetGroup(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	group, err := h.groupService.Get(c.Request.Context(), groupID, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, group)
}

// AddMembers godoc
// @Summary Add members to a group
// @Tags Groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Group ID"
// @Param body body model.AddMembersRequest true "Users to add"
// @Success 200 {object} model.GroupResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /groups/{id}/members [post]
func (h *GroupHandler) AddMembers(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req model.AddMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	group, err := h.groupService.AddMembers(c.Request.Context(), groupID, currentUserID(c), req.UserIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, group)
}

// RemoveMember godoc
// @Summary Remove a member from a group
// @Description Admins can remove anyone, members only themselves
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Param id path string true "Group ID"
// @Param userId path string true "Member user ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /groups/{id}/members/{userId} [delete]
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	if err := h.groupService.RemoveMember(c.Request.Context(), groupID, currentUserID(c), targetID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Member removed"})
}

// UpdateMemberRole godoc
// @Summary Change a member's role
// @Tags Groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Group ID"
// @Param userId path string true "Member user ID"
// @Param body body model.UpdateMemberRoleRequest true "Role"
// @Success 200 {object} model.SuccessResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /groups/{id}/members/{userId}/role [put]
func (h *GroupHandler) UpdateMemberRole(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	var req model.UpdateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.groupService.UpdateMemberRole(c.Request.Context(), groupID, currentUserID(c), targetID, req.Role); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Role updated"})
}

// LeaveGroup godoc
// @Summary Leave a group
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Param id path string true "Group ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /groups/{id}/leave [post]
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.groupService.Leave(c.Request.Context(), groupID, currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Left group"})
}
