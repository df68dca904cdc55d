package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	webhookdomain "github.com/smallbiznis/paybridge/internal/webhook/domain"
)

func (s *Server) ListWebhookEndpoints(c *gin.Context) {
	resp, err := s.endpointSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"endpoints": resp})
}

func (s *Server) CreateWebhookEndpoint(c *gin.Context) {
	var req webhookdomain.CreateEndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.endpointSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"endpoint": resp})
}

func (s *Server) DeleteWebhookEndpoint(c *gin.Context) {
	if err := s.endpointSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) UpdateWebhookEndpointEvents(c *gin.Context) {
	var req webhookdomain.UpdateEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.endpointSvc.UpdateEvents(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"endpoint": resp})
}

func (s *Server) ActivateWebhookEndpoint(c *gin.Context) {
	s.setWebhookEndpointActive(c, true)
}

func (s *Server) DeactivateWebhookEndpoint(c *gin.Context) {
	s.setWebhookEndpointActive(c, false)
}

func (s *Server) setWebhookEndpointActive(c *gin.Context, active bool) {
	resp, err := s.endpointSvc.SetActive(c.Request.Context(), c.Param("id"), active)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"endpoint": resp})
}

func (s *Server) SyncWebhookEndpoints(c *gin.Context) {
	resp, err := s.endpointSvc.Sync(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
