package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/paybridge/internal/order/domain"
)

func (s *Server) CreateCheckout(c *gin.Context) {
	var req orderdomain.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.CreateCheckout(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) GetGatewayOrder(c *gin.Context) {
	order, err := s.orderSvc.GetOrder(c.Request.Context(), strings.TrimSpace(c.Param("gateway_order_id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// CaptureGatewayOrder reports success when the gateway captured the order
// even if no local record matched its reference; the caller sees
// applied=false in that case.
func (s *Server) CaptureGatewayOrder(c *gin.Context) {
	resp, err := s.orderSvc.CaptureOrder(c.Request.Context(), strings.TrimSpace(c.Param("gateway_order_id")))
	if err != nil && !(errors.Is(err, orderdomain.ErrTargetNotFound) && resp != nil) {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order":   resp.Order,
		"outcome": resp.Outcome,
		"applied": resp.Outcome != nil && resp.Outcome.Applied,
	})
}

func (s *Server) AuthorizeGatewayOrder(c *gin.Context) {
	order, err := s.orderSvc.AuthorizeOrder(c.Request.Context(), strings.TrimSpace(c.Param("gateway_order_id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (s *Server) CaptureAuthorization(c *gin.Context) {
	var req orderdomain.CaptureAuthorizationRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	resp, err := s.orderSvc.CaptureAuthorization(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) RefundCapture(c *gin.Context) {
	var req orderdomain.RefundRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	refund, err := s.orderSvc.Refund(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"refund": refund})
}

func (s *Server) GetCapture(c *gin.Context) {
	capture, err := s.orderSvc.GetCapture(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"capture": capture})
}

// bindOptionalJSON accepts an empty body as the zero request.
func bindOptionalJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return false
	}
	return true
}
