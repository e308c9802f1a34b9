package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"zamanyonet-admin/internal/audit"
	"zamanyonet-admin/pkg/logger"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
	// SessionCookie carries the same token as the bearer header.
	SessionCookie = "session"
)

// RequireSession rejects requests without a live session before any handler
// runs, so unauthenticated requests never reach a gateway or the audit log.
// It does not perform RBAC checks; those belong to internal/rbac.
func RequireSession(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := svc.Authenticate(c.Request.Context(), tokenFrom(c))
		if err != nil {
			if !errors.Is(err, ErrUnauthenticated) {
				logger.FromGin(c).Error("session lookup failed", "err", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		ctx := WithSession(c.Request.Context(), sess)
		ctx = audit.WithActor(ctx, audit.Actor{
			ID:        sess.UserID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)

		// Also store on gin context for handler convenience.
		c.Set("user_id", sess.UserID)
		c.Set("role", sess.Role)

		c.Next()
	}
}

func tokenFrom(c *gin.Context) string {
	raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
	if strings.HasPrefix(raw, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(raw, bearerPrefix))
	}
	if v, err := c.Cookie(SessionCookie); err == nil {
		return v
	}
	return ""
}
