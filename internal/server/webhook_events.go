package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	webhookdomain "github.com/smallbiznis/paybridge/internal/webhook/domain"
	"github.com/smallbiznis/paybridge/pkg/db/pagination"
)

type listWebhookEventsQuery struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
	Processed string `form:"processed"`
	EventType string `form:"event_type"`
}

func (s *Server) ListWebhookEvents(c *gin.Context) {
	var query listWebhookEventsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	processed, err := parseOptionalBool(query.Processed)
	if err != nil {
		AbortWithError(c, newValidationError("processed", "invalid_processed", "invalid processed"))
		return
	}

	resp, err := s.eventSvc.List(c.Request.Context(), webhookdomain.ListEventsRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		Processed: processed,
		EventType: query.EventType,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Events, "page_info": resp.PageInfo})
}

func (s *Server) GetWebhookEvent(c *gin.Context) {
	event, err := s.eventSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"event": event})
}

func (s *Server) MarkWebhookEventProcessed(c *gin.Context) {
	event, err := s.eventSvc.MarkProcessed(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"event": event})
}

func (s *Server) MarkWebhookEventUnprocessed(c *gin.Context) {
	event, err := s.eventSvc.MarkUnprocessed(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"event": event})
}
