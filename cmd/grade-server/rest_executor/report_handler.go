package restexecutor

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/curriculagg/curricula-grade/store"
)

type reportHandle struct {
	store store.Store
}

// NewReportHandle creates a new report handle
func NewReportHandle(s store.Store) Register {
	return &reportHandle{
		store: s,
	}
}

func (h *reportHandle) Register(r *gin.Engine) {
	r.GET("/report", h.reportList)
	r.GET("/report/:rid", h.reportIDGet)
	r.DELETE("/report/:rid", h.reportIDDelete)
}

type reportURI struct {
	ReportID string `uri:"rid" binding:"required"`
}

func (h *reportHandle) reportList(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.List())
}

func (h *reportHandle) reportIDGet(c *gin.Context) {
	var uri reportURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	name, rp, err := h.store.Get(uri.ReportID)
	if errors.Is(err, store.ErrNotFound) {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if c.Query("thin") == "true" {
		rp = rp.Thin()
	}
	c.JSON(http.StatusOK, gin.H{
		"reportId":  uri.ReportID,
		"requestId": name,
		"partial":   rp.Partial(),
		"report":    rp,
	})
}

func (h *reportHandle) reportIDDelete(c *gin.Context) {
	var uri reportURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if !h.store.Remove(uri.ReportID) {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	c.Status(http.StatusOK)
}
