package http

import (
	"net/http"

	"anoa.com/sociablechat/internal/modules/conversation/dto"
	convService "anoa.com/sociablechat/internal/modules/conversation/service"
	"anoa.com/sociablechat/pkg/apperror"
	"anoa.com/sociablechat/pkg/response"
	"anoa.com/sociablechat/pkg/validator"
	"github.com/gin-gonic/gin"
)

type ConversationHandler struct {
	service convService.ConversationService
}

func NewConversationHandler(service convService.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// GetOrCreateConversation handles GET /messages/:id/conversation/:other_id
// where :id is the requesting user.
func (h *ConversationHandler) GetOrCreateConversation(c *gin.Context) {
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

	otherID, err := response.ParseUUIDParam(c, "other_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	conv, err := h.service.GetOrCreate(c.Request.Context(), userID, otherID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// ListConversations handles GET /messages/:id/conversations.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
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

	c.JSON(http.StatusOK, gin.H{"conversations": items})
}

// SendMessage handles POST /messages/:id/send where :id is the conversation.
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	conversationID, err := response.ParseUUIDParam(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	conv, err := h.service.SendMessage(c.Request.Context(), conversationID, userID, req.Content, req.Type)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// SendImageMessage handles POST /messages/:id/send-image (multipart form,
// field "image").
func (h *ConversationHandler) SendImageMessage(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	conversationID, err := response.ParseUUIDParam(c, "id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	defer file.Close()

	conv, err := h.service.SendImageMessage(c.Request.Context(), conversationID, userID, fileHeader.Filename, file)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// MarkRead handles PATCH /messages/:id/read/:user_id.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	conversationID, err := response.ParseUUIDParam(c, "id")
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

	if err := h.service.MarkRead(c.Request.Context(), conversationID, userID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "marked as read"})
}
