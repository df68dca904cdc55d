package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/paybridge/internal/audit/domain"
	obscontext "github.com/smallbiznis/paybridge/internal/observability/context"
)

const adminActorID = "admin_token"

// AdminAuthRequired checks the static bearer token when one is configured
// and tags the request context with the admin actor for audit entries.
func (s *Server) AdminAuthRequired() gin.HandlerFunc {
	expected := strings.TrimSpace(s.cfg.AdminAPIToken)
	return func(c *gin.Context) {
		actorID := ""
		if expected != "" {
			token, ok := bearerToken(c.GetHeader("Authorization"))
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			actorID = adminActorID
		}

		ctx := obscontext.WithActor(c.Request.Context(), string(auditdomain.ActorTypeAdmin), actorID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(strings.TrimSpace(header))
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}
