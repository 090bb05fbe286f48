package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/task-service/internal/application"
	"github.com/wms-platform/task-service/internal/pkg/logging"
	"github.com/wms-platform/task-service/internal/pkg/middleware"
)

// LoginHandler authenticates a user and issues a bearer token
func LoginHandler(service *application.AuthService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			responder.RespondBadRequest(err.Error())
			return
		}

		result, err := service.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
