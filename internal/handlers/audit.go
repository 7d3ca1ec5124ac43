package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const auditDefaultLimit = 100

// RecentAudit serves the reporting view of the audit trail, newest first.
// Route-level role middleware restricts it to the reporting tier.
func (h *Handlers) RecentAudit(c *gin.Context) {
	if _, ok := actor(c); !ok {
		return
	}

	limit := auditDefaultLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	entries, err := h.Stores.Audit.ListRecentAudit(c.Request.Context(), limit)
	if err != nil {
		respondErr(c, storeErr("list audit", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "entries": entries})
}
