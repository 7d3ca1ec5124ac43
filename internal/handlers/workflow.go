package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pfmt-portal/internal/authz"
	"pfmt-portal/internal/middleware"
	"pfmt-portal/internal/models"
	"pfmt-portal/internal/workflow"
)

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "VALIDATION_ERROR", "message": "invalid " + name}})
		return 0, false
	}
	return uint(id), true
}

func actor(c *gin.Context) (models.User, bool) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "AUTH_REQUIRED", "message": "authentication required"}})
	}
	return u, ok
}

type initiateRequest struct {
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	EstimatedBudget float64    `json:"estimated_budget"`
	Category        string     `json:"category"`
	Region          string     `json:"region"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
}

func (h *Handlers) InitiateProject(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "VALIDATION_ERROR", "message": "invalid request body"}})
		return
	}

	project, err := h.Lifecycle.Initiate(c.Request.Context(), workflow.InitiateInput{
		Name:            req.Name,
		Description:     req.Description,
		EstimatedBudget: req.EstimatedBudget,
		Category:        req.Category,
		Region:          req.Region,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
	}, user)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "project": project})
}

type assignRequest struct {
	AssignedPM  uint `json:"assigned_pm"`
	AssignedSPM uint `json:"assigned_spm"`
}

func (h *Handlers) AssignTeam(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "VALIDATION_ERROR", "message": "invalid request body"}})
		return
	}

	project, err := h.Lifecycle.Assign(c.Request.Context(), id, workflow.AssignInput{PM: req.AssignedPM, SPM: req.AssignedSPM}, user)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "project": project})
}

type finalizeRequest struct {
	Description string `json:"description"`
}

func (h *Handlers) FinalizeProject(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req finalizeRequest
	_ = c.ShouldBindJSON(&req)

	project, err := h.Lifecycle.Finalize(c.Request.Context(), id, workflow.FinalizeInput{Description: req.Description}, user)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "project": project})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handlers) SetProjectStatus(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "VALIDATION_ERROR", "message": "status is required"}})
		return
	}

	project, err := h.Lifecycle.SetStatus(c.Request.Context(), id, models.WorkflowStatus(req.Status), user)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "project": project})
}

// GetProject serves the detail view, echoing whether the caller's access is
// read-only (analyst tier).
func (h *Handlers) GetProject(c *gin.Context) {
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

	project, err := h.Stores.Projects.GetProject(c.Request.Context(), id)
	if err != nil {
		respondErr(c, storeErr("get project", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "project": project, "read_only": decision.ReadOnly})
}

// GetProjectWorkflow reports just the two status fields, for clients polling
// transition outcomes.
func (h *Handlers) GetProjectWorkflow(c *gin.Context) {
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

	project, err := h.Stores.Projects.GetProject(c.Request.Context(), id)
	if err != nil {
		respondErr(c, storeErr("get project", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"project_id":       project.ID,
		"workflow_status":  project.WorkflowStatus,
		"lifecycle_status": project.LifecycleStatus,
	})
}

// PendingAssignments lists projects still waiting for a team, the directors'
// work queue.
func (h *Handlers) PendingAssignments(c *gin.Context) {
	if _, ok := actor(c); !ok {
		return
	}
	projects, err := h.Stores.Projects.ListProjectsByWorkflowStatus(c.Request.Context(), models.WorkflowInitiated)
	if err != nil {
		respondErr(c, storeErr("list pending projects", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "projects": projects})
}

// MyProjects lists projects where the caller holds the PM or SPM slot.
func (h *Handlers) MyProjects(c *gin.Context) {
	user, ok := actor(c)
	if !ok {
		return
	}
	projects, err := h.Stores.Projects.ListProjectsForUser(c.Request.Context(), user.ID)
	if err != nil {
		respondErr(c, storeErr("list my projects", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "projects": projects})
}
