package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pfmt-portal/internal/authz"
)

func (h *Handlers) ListVersions(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	decision, err := h.Gateway.Authorize(c.Request.Context(), user, authz.ActionView, id)
	if err != nil {
		respondErr(c, err)
		return
	}
	if !decision.Allowed {
		respondErr(c, decision.Deny)
		return
	}

	versions, err := h.VersionFlow.List(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "versions": versions})
}

type draftRequest struct {
	DataSnapshot  string `json:"data_snapshot"`
	ChangeSummary string `json:"change_summary"`
}

func (h *Handlers) CreateDraftVersion(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "VALIDATION_ERROR", "message": "invalid request body"}})
		return
	}

	version, err := h.VersionFlow.CreateDraft(c.Request.Context(), id, req.DataSnapshot, req.ChangeSummary, user)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "version": version})
}

func (h *Handlers) SubmitVersion(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "versionId")
	if !ok {
		return
	}

	version, err := h.VersionFlow.Submit(c.Request.Context(), id, user)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "version": version})
}

func (h *Handlers) ApproveVersion(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "versionId")
	if !ok {
		return
	}

	version, err := h.VersionFlow.Approve(c.Request.Context(), id, user)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "version": version})
}

type rejectRequest struct {
	RejectionReason string `json:"rejection_reason"`
}

func (h *Handlers) RejectVersion(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "versionId")
	if !ok {
		return
	}
	var req rejectRequest
	_ = c.ShouldBindJSON(&req)

	version, err := h.VersionFlow.Reject(c.Request.Context(), id, req.RejectionReason, user)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "version": version})
}
