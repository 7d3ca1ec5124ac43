package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) StartWizardSession(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	sess, err := h.Sessions.Start(c.Request.Context(), user.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "session": sess})
}

func (h *Handlers) GetWizardSession(c *gin.Context) {
	if _, ok := actor(c); !ok {
		return
	}
	sess, err := h.Sessions.Get(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": sess})
}

type saveStepRequest struct {
	Step    int             `json:"step"`
	Payload json.RawMessage `json:"payload"`
}

func (h *Handlers) SaveWizardStep(c *gin.Context) {
	if _, ok := actor(c); !ok {
		return
	}
	var req saveStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "VALIDATION_ERROR", "message": "invalid request body"}})
		return
	}

	sess, err := h.Sessions.SaveStep(c.Request.Context(), c.Param("sessionId"), req.Step, req.Payload)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": sess})
}

type bindProjectRequest struct {
	ProjectID uint `json:"project_id"`
}

func (h *Handlers) BindWizardProject(c *gin.Context) {
	if _, ok := actor(c); !ok {
		return
	}
	var req bindProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProjectID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "VALIDATION_ERROR", "message": "project_id is required"}})
		return
	}

	sess, err := h.Sessions.BindProject(c.Request.Context(), c.Param("sessionId"), req.ProjectID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": sess})
}

func (h *Handlers) CompleteWizardSession(c *gin.Context) {
	if _, ok := actor(c); !ok {
		return
	}
	sess, err := h.Sessions.Complete(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": sess})
}

// WizardProgress derives step completion from persisted project state.
func (h *Handlers) WizardProgress(c *gin.Context) {
	if _, ok := actor(c); !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	progress, err := h.Gate.Progress(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "progress": progress})
}

// ResolveWizardProject maps a session id to its bound project id.
func (h *Handlers) ResolveWizardProject(c *gin.Context) {
	if _, ok := actor(c); !ok {
		return
	}
	projectID, err := h.Gate.ResolveProjectID(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "project_id": projectID})
}
