package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleStats(c *gin.Context) {
	userID, ok := h.ownerID(c)
	if !ok {
		return
	}

	location, err := requestLocation(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_timezone", "message": "Time zone must be an IANA name"})
		return
	}

	report, err := h.reports.GetStatsIn(c.Request.Context(), userID, location)
	if err != nil {
		h.respondError(c, "failed to build stats", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *httpHandler) handleExport(c *gin.Context) {
	userID, ok := h.ownerID(c)
	if !ok {
		return
	}

	export, err := h.reports.ExportCSV(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, "failed to export applications", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	c.Data(http.StatusOK, export.ContentType+"; charset=utf-8", export.Body)
}

// requestLocation resolves the caller's time zone from the tz query parameter
// or the X-Timezone header; nil means the server default.
func requestLocation(c *gin.Context) (*time.Location, error) {
	name := strings.TrimSpace(c.Query("tz"))
	if name == "" {
		name = strings.TrimSpace(c.GetHeader(timezoneHeader))
	}
	if name == "" {
		return nil, nil
	}
	return time.LoadLocation(name)
}
