package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pfmt-portal/internal/roles"
)

// AvailableManagers lists active users eligible for the PM and SPM slots,
// grouped for the assignment form.
func (h *Handlers) AvailableManagers(c *gin.Context) {
	if _, ok := actor(c); !ok {
		return
	}

	slots := append(append([]roles.Role{}, roles.ProjectManagers...), roles.Leadership...)
	candidates, err := h.Stores.Users.ListUsersByRoles(c.Request.Context(), slots...)
	if err != nil {
		respondErr(c, storeErr("list managers", err))
		return
	}

	pm := make([]gin.H, 0)
	spm := make([]gin.H, 0)
	for _, u := range candidates {
		if !u.IsActive {
			continue
		}
		entry := publicUser(u)
		if roles.ValidForPMSlot(u.Role) {
			pm = append(pm, entry)
		}
		if roles.ValidForSPMSlot(u.Role) {
			spm = append(spm, entry)
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "pm_candidates": pm, "spm_candidates": spm})
}

// Me echoes the resolved principal for the session.
func (h *Handlers) Me(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": publicUser(user)})
}
