package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wms-platform/task-service/internal/application"
	"github.com/wms-platform/task-service/internal/domain"
	"github.com/wms-platform/task-service/internal/pkg/api"
	"github.com/wms-platform/task-service/internal/pkg/logging"
	"github.com/wms-platform/task-service/internal/pkg/middleware"
)

// ListOperatorsHandler returns one page of operators
func ListOperatorsHandler(service *application.OperatorService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)
		page := api.ParsePagination(c)

		var status *domain.OperatorStatus
		if raw := c.Query("status"); raw != "" {
			parsed, err := domain.ParseOperatorStatus(raw)
			if err != nil {
				responder.RespondBadRequest("invalid status filter")
				return
			}
			status = &parsed
		}

		operators, total, err := service.ListOperators(c.Request.Context(), status, page.Page, page.Limit)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, api.NewPageResponse(operators, page.Page, page.Limit, total))
	}
}

// GetOperatorHandler returns one operator with its zones
func GetOperatorHandler(service *application.OperatorService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		operatorID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			responder.RespondBadRequest("invalid operator id")
			return
		}

		operator, err := service.GetOperator(c.Request.Context(), operatorID)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, operator)
	}
}

// UpdateOperatorStatusHandler changes an operator's availability
func UpdateOperatorStatusHandler(service *application.OperatorService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		operatorID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			responder.RespondBadRequest("invalid operator id")
			return
		}

		var req struct {
			Status string `json:"status" binding:"required,operator_status"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			responder.RespondBadRequest(err.Error())
			return
		}

		operator, err := service.UpdateStatus(c.Request.Context(), operatorID, domain.OperatorStatus(req.Status))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, operator)
	}
}
