package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wms-platform/task-service/internal/application"
	"github.com/wms-platform/task-service/internal/domain"
	"github.com/wms-platform/task-service/internal/pkg/api"
	"github.com/wms-platform/task-service/internal/pkg/logging"
	"github.com/wms-platform/task-service/internal/pkg/middleware"
)

type operatorPerformanceResponse struct {
	Operator   domain.Operator          `json:"operator"`
	Metric     *domain.LaborDailyMetric `json:"metric"`
	ActiveTask *domain.Task             `json:"activeTask"`
}

type zoneWorkloadResponse struct {
	ZoneID        uuid.UUID                    `json:"zoneId"`
	ZoneCode      string                       `json:"zoneCode"`
	ZoneName      string                       `json:"zoneName"`
	WarehouseID   uuid.UUID                    `json:"warehouseId"`
	CountByStatus map[domain.TaskStatus]int64 `json:"countByStatus"`
	AvgPriority   float64                      `json:"avgPriority"`
}

// parseDateQuery reads ?date=YYYY-MM-DD, defaulting to today (UTC)
func parseDateQuery(c *gin.Context) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), true
	}

	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// LaborOverviewHandler returns task counts and metric averages for a date
func LaborOverviewHandler(service *application.LaborQueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		date, ok := parseDateQuery(c)
		if !ok {
			responder.RespondBadRequest("date must be YYYY-MM-DD")
			return
		}

		overview, err := service.Overview(c.Request.Context(), date)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, overview)
	}
}

// OperatorPerformanceHandler returns per-operator daily metrics with each
// operator's current active task
func OperatorPerformanceHandler(service *application.LaborQueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)
		page := api.ParsePagination(c)

		date, ok := parseDateQuery(c)
		if !ok {
			responder.RespondBadRequest("date must be YYYY-MM-DD")
			return
		}

		results, total, err := service.OperatorPerformance(c.Request.Context(), date, page.Page, page.Limit)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		data := make([]operatorPerformanceResponse, 0, len(results))
		for _, r := range results {
			data = append(data, operatorPerformanceResponse{
				Operator:   r.Operator,
				Metric:     r.Metric,
				ActiveTask: r.ActiveTask,
			})
		}

		c.JSON(http.StatusOK, api.NewPageResponse(data, page.Page, page.Limit, total))
	}
}

// ZoneWorkloadHandler returns per-zone task counts and average priority
func ZoneWorkloadHandler(service *application.LaborQueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)
		page := api.ParsePagination(c)

		var warehouseID *uuid.UUID
		if raw := c.Query("warehouse_id"); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				responder.RespondBadRequest("invalid warehouse_id filter")
				return
			}
			warehouseID = &parsed
		}

		results, total, err := service.ZoneWorkload(c.Request.Context(), warehouseID, page.Page, page.Limit)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		data := make([]zoneWorkloadResponse, 0, len(results))
		for _, r := range results {
			data = append(data, zoneWorkloadResponse(r))
		}

		c.JSON(http.StatusOK, api.NewPageResponse(data, page.Page, page.Limit, total))
	}
}
