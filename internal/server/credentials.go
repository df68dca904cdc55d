package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	credentialdomain "github.com/smallbiznis/paybridge/internal/credential/domain"
)

type activeCredentialQuery struct {
	Environment string `form:"environment"`
}

func (s *Server) ListCredentials(c *gin.Context) {
	resp, err := s.credentialSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"credentials": resp})
}

func (s *Server) StoreCredential(c *gin.Context) {
	var req credentialdomain.StoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.credentialSvc.Store(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"credential": resp})
}

func (s *Server) GetCredential(c *gin.Context) {
	resp, err := s.credentialSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("name")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"credential": resp})
}

func (s *Server) UpdateCredential(c *gin.Context) {
	var req credentialdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.credentialSvc.Update(c.Request.Context(), strings.TrimSpace(c.Param("name")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"credential": resp})
}

func (s *Server) DeleteCredential(c *gin.Context) {
	if err := s.credentialSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("name"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ActivateCredential(c *gin.Context) {
	resp, err := s.credentialSvc.SetActive(c.Request.Context(), strings.TrimSpace(c.Param("name")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"credential": resp})
}

func (s *Server) DeactivateCredential(c *gin.Context) {
	resp, err := s.credentialSvc.Deactivate(c.Request.Context(), strings.TrimSpace(c.Param("name")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"credential": resp})
}

func (s *Server) GetActiveCredential(c *gin.Context) {
	var query activeCredentialQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	environment := strings.TrimSpace(query.Environment)
	if environment == "" {
		environment = s.cfg.Gateway.Environment
	}

	resolved, err := s.credentialSvc.GetActive(c.Request.Context(), environment)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// resolved carries decrypted secrets; answer with the masked summary
	resp, err := s.credentialSvc.Get(c.Request.Context(), resolved.Name)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"credential": resp})
}
