package reporting

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"zamanyonet-admin/pkg/logger"
)

type Handler struct {
	svc   *Service
	clock func() time.Time
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, clock: time.Now}
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/reports/summary", h.Summary)
}

func (h *Handler) Summary(c *gin.Context) {
	tr, err := ParseRange(c.Query("from"), c.Query("to"), h.clock().UTC())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date range"})
		return
	}
	out, err := h.svc.Summary(c.Request.Context(), tr)
	if errors.Is(err, ErrInvalidRequest) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date range"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("report summary failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, out)
}
