package http

import (
	"net/http"

	"anoa.com/sociablechat/internal/modules/group/dto"
	groupService "anoa.com/sociablechat/internal/modules/group/service"
	"anoa.com/sociablechat/pkg/apperror"
	"anoa.com/sociablechat/pkg/response"
	"anoa.com/sociablechat/pkg/validator"
	"github.com/gin-gonic/gin"
)

type GroupHandler struct {
	service groupService.GroupService
}

func NewGroupHandler(service groupService.GroupService) *GroupHandler {
	return &GroupHandler{service: service}
}

// CreateGroup handles POST /groups/create. The caller becomes the admin.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	group, err := h.service.Create(c.Request.Context(), userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, group)
}

// GetGroup handles GET /groups/:id. Members only.
func (h *GroupHandler) GetGroup(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	groupID, err := response.ParseUUIDParam(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	group, err := h.service.Get(c.Request.Context(), groupID, userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, group)
}

// ListGroups handles GET /groups/user/:id where :id is the requesting user.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	pathID, err := response.ParseUUIDParam(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	if pathID != userID {
		response.ResponseError(c, apperror.ErrForbidden)
		return
	}

	items, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"groups": items})
}

// SendGroupMessage handles POST /groups/:id/send.
func (h *GroupHandler) SendGroupMessage(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	groupID, err := response.ParseUUIDParam(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.SendGroupMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	group, err := h.service.SendMessage(c.Request.Context(), groupID, userID, req.Content, req.Type)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, group)
}

// MarkRead handles PATCH /groups/:id/read/:user_id.
func (h *GroupHandler) MarkRead(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	groupID, err := response.ParseUUIDParam(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	pathUserID, err := response.ParseUUIDParam(c, "user_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	if pathUserID != userID {
		response.ResponseError(c, apperror.ErrForbidden)
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), groupID, userID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "marked as read"})
}

// LeaveGroup handles POST /groups/:id/leave.
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	groupID, err := response.ParseUUIDParam(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.service.Leave(c.Request.Context(), groupID, userID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "left the group"})
}
