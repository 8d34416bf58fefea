package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"greenhouse-backend/internal/report"
	"greenhouse-backend/internal/store"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"
)

func (h *Handler) dashboard(c *gin.Context) (report.Dashboard, bool) {
	machines, err := h.store.ListMachines(c.Request.Context(), store.MachineFilter{})
	if err != nil {
		h.writeError(c, err)
		return report.Dashboard{}, false
	}
	return report.Build(machines, h.clock.Now()), true
}

// GetDashboard handles GET /api/reports/dashboard.
func (h *Handler) GetDashboard(c *gin.Context) {
	d, ok := h.dashboard(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, d)
}

// GetDueForRepair handles GET /api/reports/due.
func (h *Handler) GetDueForRepair(c *gin.Context) {
	d, ok := h.dashboard(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, d.Due)
}

// ExportDueXLSX handles GET /api/reports/due.xlsx.
func (h *Handler) ExportDueXLSX(c *gin.Context) {
	h.export(c, "xlsx", contentTypeXLSX, report.BuildDueXLSX)
}

// ExportDuePDF handles GET /api/reports/due.pdf.
func (h *Handler) ExportDuePDF(c *gin.Context) {
	h.export(c, "pdf", contentTypePDF, report.BuildDuePDF)
}

func (h *Handler) export(c *gin.Context, ext, contentType string, build func(report.Dashboard) ([]byte, error)) {
	d, ok := h.dashboard(c)
	if !ok {
		return
	}
	body, err := build(d)
	if err != nil {
		h.writeError(c, err)
		return
	}
	filename := fmt.Sprintf("due-for-repair-%s.%s", d.GeneratedAt.Format("20060102"), ext)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, body)
}
