package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"zamanyonet-admin/internal/audit"
	"zamanyonet-admin/internal/auth"
	"zamanyonet-admin/pkg/logger"
)

// Handlers groups the hand-written endpoints that are not generic resource
// CRUD: session login and logout, the audit viewer and version history.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth  *auth.Service
	Audit *audit.Service

	// CookieSecure marks the session cookie Secure. Enable outside local dev.
	CookieSecure bool
}

// RegisterPublic mounts routes reachable without a session.
func (h Handlers) RegisterPublic(r gin.IRouter) {
	r.POST("/auth/login", h.Login)
}

// RegisterProtected mounts routes that expect RequireSession upstream.
func (h Handlers) RegisterProtected(r gin.IRouter) {
	r.POST("/auth/logout", h.Logout)
	r.GET("/auth/me", h.Me)

	r.GET("/audit-logs", h.ListAuditLogs)
	r.GET("/audit-logs/:id", h.GetAuditLog)
	r.GET("/versions/:entityType/:entityId", h.Versions)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

func internalError(c *gin.Context, msg string, err error) {
	logger.FromGin(c).Error(msg, "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func pageParam(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
