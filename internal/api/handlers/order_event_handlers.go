package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/task-service/internal/domain/taskgen"
	infrakafka "github.com/wms-platform/task-service/internal/infrastructure/kafka"
	"github.com/wms-platform/task-service/internal/pkg/logging"
	"github.com/wms-platform/task-service/internal/pkg/middleware"
)

// IngestOrderEventHandler normalizes a raw order event and enqueues it
// for task generation. The job id is the event key, so re-submitting the
// same keyed event is deduplicated downstream.
func IngestOrderEventHandler(queue *infrakafka.TaskGenQueue, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var payload map[string]any
		if err := c.ShouldBindJSON(&payload); err != nil {
			responder.RespondBadRequest("request body must be a JSON object")
			return
		}

		event, err := taskgen.NormalizeEvent(payload)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		jobID, err := queue.Enqueue(c.Request.Context(), event)
		if err != nil {
			responder.RespondInternalError(err)
			return
		}

		logger.Info("Order event accepted",
			"eventKey", event.EventKey,
			"type", event.EventType,
			"sourceDocumentId", event.SourceDocumentID,
		)

		c.JSON(http.StatusAccepted, gin.H{
			"accepted":         true,
			"type":             event.EventType,
			"sourceDocumentId": event.SourceDocumentID,
			"eventKey":         event.EventKey,
			"queueName":        queue.Name(),
			"jobId":            jobID,
		})
	}
}
