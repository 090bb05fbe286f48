package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wms-platform/task-service/internal/application"
	"github.com/wms-platform/task-service/internal/domain"
	"github.com/wms-platform/task-service/internal/pkg/api"
	apperrors "github.com/wms-platform/task-service/internal/pkg/errors"
	"github.com/wms-platform/task-service/internal/pkg/logging"
	"github.com/wms-platform/task-service/internal/pkg/middleware"
)

// statusUpdateRequest is the body of every status-changing task endpoint
type statusUpdateRequest struct {
	Version             int     `json:"version" binding:"required,gt=0"`
	ChangedByOperatorID *string `json:"changedByOperatorId"`
}

// ListTasksHandler returns one page of tasks with optional filters
func ListTasksHandler(service *application.TaskService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)
		page := api.ParsePagination(c)

		query := application.ListTasksQuery{Page: page.Page, Limit: page.Limit}

		if raw := c.Query("status"); raw != "" {
			status, err := domain.ParseTaskStatus(raw)
			if err != nil {
				responder.RespondBadRequest("invalid status filter")
				return
			}
			query.Status = &status
		}
		if raw := c.Query("operator_id"); raw != "" {
			operatorID, err := uuid.Parse(raw)
			if err != nil {
				responder.RespondBadRequest("invalid operator_id filter")
				return
			}
			query.OperatorID = &operatorID
		}
		if raw := c.Query("zone_id"); raw != "" {
			zoneID, err := uuid.Parse(raw)
			if err != nil {
				responder.RespondBadRequest("invalid zone_id filter")
				return
			}
			query.ZoneID = &zoneID
		}

		tasks, total, err := service.ListTasks(c.Request.Context(), query)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, api.NewPageResponse(tasks, page.Page, page.Limit, total))
	}
}

// GetTaskHandler returns one task with its zone and lines
func GetTaskHandler(service *application.TaskService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		taskID, err := uuid.Parse(c.Param("taskId"))
		if err != nil {
			responder.RespondBadRequest("invalid task id")
			return
		}

		detail, err := service.GetTask(c.Request.Context(), taskID)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, detail)
	}
}

// TaskActionHandler maps one action endpoint (start, complete, pause,
// cancel) onto its target status.
func TaskActionHandler(service *application.TaskService, logger *logging.Logger, target domain.TaskStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		updateTaskStatus(c, service, logger, target)
	}
}

// UpdateTaskStatusHandler applies an explicit status from the body
func UpdateTaskStatusHandler(service *application.TaskService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Status              string  `json:"status" binding:"required,task_status"`
			Version             int     `json:"version" binding:"required,gt=0"`
			ChangedByOperatorID *string `json:"changedByOperatorId"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			responder.RespondBadRequest(err.Error())
			return
		}

		applyStatusUpdate(c, service, logger, domain.TaskStatus(req.Status), req.Version, req.ChangedByOperatorID)
	}
}

func updateTaskStatus(c *gin.Context, service *application.TaskService, logger *logging.Logger, target domain.TaskStatus) {
	responder := middleware.NewErrorResponder(c, logger.Logger)

	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responder.RespondBadRequest(err.Error())
		return
	}

	applyStatusUpdate(c, service, logger, target, req.Version, req.ChangedByOperatorID)
}

func applyStatusUpdate(c *gin.Context, service *application.TaskService, logger *logging.Logger, target domain.TaskStatus, version int, changedBy *string) {
	responder := middleware.NewErrorResponder(c, logger.Logger)

	taskID, err := uuid.Parse(c.Param("taskId"))
	if err != nil {
		responder.RespondBadRequest("invalid task id")
		return
	}

	cmd := application.UpdateStatusCommand{ExpectedVersion: &version}
	if changedBy != nil {
		operatorID, err := uuid.Parse(*changedBy)
		if err != nil {
			responder.RespondWithAppError(apperrors.ErrValidation("invalid changedByOperatorId"))
			return
		}
		cmd.ChangedByOperatorID = &operatorID
	}

	task, err := service.UpdateStatus(c.Request.Context(), taskID, target, cmd)
	if err != nil {
		responder.RespondWithError(err)
		return
	}

	c.JSON(http.StatusOK, task)
}
