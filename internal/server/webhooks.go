package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxWebhookBodyBytes = 1 << 20

func (s *Server) HandleGatewayWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.ingestor.Ingest(c.Request.Context(), payload, c.Request.Header)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set("event_type", result.EventType)
	c.Set("event_id", result.EventID)
	c.Set("ingest_status", result.Status)

	resp := gin.H{"status": result.Status, "event_id": result.EventID}
	if result.Action != "" {
		resp["action"] = result.Action
	}
	c.JSON(http.StatusOK, resp)
}
