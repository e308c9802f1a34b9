package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"zamanyonet-admin/internal/audit"
)

type auditPage struct {
	Items    any `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

func parseAuditFilter(c *gin.Context) (audit.Filter, string) {
	f := audit.Filter{
		ActorID:    strings.TrimSpace(c.Query("actorId")),
		EntityType: strings.TrimSpace(c.Query("entityType")),
		EntityID:   strings.TrimSpace(c.Query("entityId")),
	}
	if a := strings.ToUpper(strings.TrimSpace(c.Query("action"))); a != "" {
		f.Action = audit.Action(a)
		if !f.Action.Valid() {
			return f, "action: unknown value"
		}
	}
	var err error
	if v := c.Query("from"); v != "" {
		if f.From, err = time.Parse(time.RFC3339, v); err != nil {
			return f, "from: must be an RFC 3339 timestamp"
		}
	}
	if v := c.Query("to"); v != "" {
		if f.To, err = time.Parse(time.RFC3339, v); err != nil {
			return f, "to: must be an RFC 3339 timestamp"
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.To.After(f.From) {
		return f, "to: must be after from"
	}
	var ok bool
	if f.Page, ok = pageParam(c, "page"); !ok {
		return f, "page: must be a positive integer"
	}
	if f.PageSize, ok = pageParam(c, "pageSize"); !ok {
		return f, "pageSize: must be a positive integer"
	}
	return f.Normalize(), ""
}

func (h Handlers) ListAuditLogs(c *gin.Context) {
	f, msg := parseAuditFilter(c)
	if msg != "" {
		badRequest(c, msg)
		return
	}
	items, total, err := h.Audit.List(c.Request.Context(), f)
	if err != nil {
		internalError(c, "list audit logs failed", err)
		return
	}
	if items == nil {
		items = []audit.Entry{}
	}
	c.JSON(http.StatusOK, auditPage{Items: items, Total: total, Page: f.Page, PageSize: f.PageSize})
}

func (h Handlers) GetAuditLog(c *gin.Context) {
	e, err := h.Audit.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, audit.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Audit log not found"})
		return
	}
	if err != nil {
		internalError(c, "get audit log failed", err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// version is one step of an entity's history.
type version struct {
	audit.Entry
	Version int                 `json:"version"`
	Changes []audit.FieldChange `json:"changes"`
}

// Versions returns the audit history of one entity, oldest first. Version
// numbers are stable across pages.
func (h Handlers) Versions(c *gin.Context) {
	f := audit.Filter{
		EntityType: c.Param("entityType"),
		EntityID:   c.Param("entityId"),
		Ascending:  true,
	}
	var ok bool
	if f.Page, ok = pageParam(c, "page"); !ok {
		badRequest(c, "page: must be a positive integer")
		return
	}
	if f.PageSize, ok = pageParam(c, "pageSize"); !ok {
		badRequest(c, "pageSize: must be a positive integer")
		return
	}
	f = f.Normalize()

	entries, total, err := h.Audit.List(c.Request.Context(), f)
	if err != nil {
		internalError(c, "list versions failed", err)
		return
	}

	items := make([]version, 0, len(entries))
	for i, e := range entries {
		changes, err := audit.Changes(e.OldValues, e.NewValues)
		if err != nil {
			internalError(c, "diff audit snapshots failed", err)
			return
		}
		if changes == nil {
			changes = []audit.FieldChange{}
		}
		items = append(items, version{Entry: e, Version: f.Offset() + i + 1, Changes: changes})
	}
	c.JSON(http.StatusOK, auditPage{Items: items, Total: total, Page: f.Page, PageSize: f.PageSize})
}
