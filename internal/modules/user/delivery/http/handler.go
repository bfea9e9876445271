package http

import (
	"net/http"

	"anoa.com/sociablechat/internal/modules/user/dto"
	userService "anoa.com/sociablechat/internal/modules/user/service"
	"anoa.com/sociablechat/pkg/response"
	"anoa.com/sociablechat/pkg/validator"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	service userService.UserService
}

func NewUserHandler(service userService.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// SearchUsers handles GET /users/search?q=
func (h *UserHandler) SearchUsers(c *gin.Context) {
	var req dto.SearchUsersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	users, err := h.service.Search(c.Request.Context(), req.Query, 20)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}
