package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"greenhouse-backend/internal/notification"
)

func (h *Handler) buildNotice(c *gin.Context) (notification.Notice, bool) {
	m, err := h.store.GetMachine(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return notification.Notice{}, false
	}
	n, err := h.notices.Build(m, h.clock.Now())
	if err != nil {
		h.writeError(c, err)
		return notification.Notice{}, false
	}
	return n, true
}

// PreviewNotice handles GET /api/machines/:id/notice.
func (h *Handler) PreviewNotice(c *gin.Context) {
	n, ok := h.buildNotice(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, n)
}

// SendNotice handles POST /api/machines/:id/notify. Manual sends bypass the
// reminder window.
func (h *Handler) SendNotice(c *gin.Context) {
	if h.dispatcher == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "notifications are not configured"})
		return
	}
	n, ok := h.buildNotice(c)
	if !ok {
		return
	}
	if err := h.dispatcher.Dispatch(c.Request.Context(), n); err != nil {
		h.writeError(c, err)
		return
	}
	h.logger.Info("notice queued", zap.String("machine_id", n.MachineID), zap.String("status", string(n.Band)))
	c.JSON(http.StatusAccepted, n)
}
