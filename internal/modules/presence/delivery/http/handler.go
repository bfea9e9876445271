package http

import (
	"net/http"

	presenceService "anoa.com/sociablechat/internal/modules/presence/service"
	"anoa.com/sociablechat/pkg/apperror"
	"anoa.com/sociablechat/pkg/response"
	"anoa.com/sociablechat/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PresenceHandler struct {
	service presenceService.PresenceService
}

func NewPresenceHandler(service presenceService.PresenceService) *PresenceHandler {
	return &PresenceHandler{service: service}
}

type onlineStatusRequest struct {
	IsOnline *bool `json:"isOnline" binding:"required"`
}

// UpdateOnlineStatus handles PATCH /users/:id/online-status. It is also
// registered for POST so a page-unload beacon (which can only POST and never
// reads the response) can deliver the final offline flip. Always replies 204.
func (h *PresenceHandler) UpdateOnlineStatus(c *gin.Context) {
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

	// Presence can only be set for the acting user.
	if pathID != userID {
		response.ResponseError(c, apperror.ErrForbidden)
		return
	}

	var req onlineStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	h.service.SetOnline(c.Request.Context(), userID, *req.IsOnline)
	c.Status(http.StatusNoContent)
}

// OnlineFriends handles GET /users/:id/online-friends.
func (h *PresenceHandler) OnlineFriends(c *gin.Context) {
	userID, err := h.selfOnly(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	friends, err := h.service.OnlineFriends(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// AllFriends handles GET /users/:id/all-friends.
func (h *PresenceHandler) AllFriends(c *gin.Context) {
	userID, err := h.selfOnly(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	friends, err := h.service.AllFriends(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

func (h *PresenceHandler) selfOnly(c *gin.Context) (uuid.UUID, error) {
	userID, err := response.GetUserID(c)
	if err != nil {
		return uuid.Nil, err
	}
	pathID, err := response.ParseUUIDParam(c, "id")
	if err != nil {
		return uuid.Nil, err
	}
	if pathID != userID {
		return uuid.Nil, apperror.ErrForbidden
	}
	return userID, nil
}
