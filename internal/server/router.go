package server

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"pfmt-portal/internal/config"
	"pfmt-portal/internal/handlers"
	"pfmt-portal/internal/identity"
	"pfmt-portal/internal/middleware"
	"pfmt-portal/internal/roles"
)

func NewRouter(cfg *config.Config, h *handlers.Handlers, resolver *identity.Resolver) *gin.Engine {
	r := gin.Default()

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	r.Use(sessions.Sessions("pfmt_session", store))

	r.Use(middleware.InjectUser(resolver))

	// AUTH
	r.POST("/api/auth/register", h.Register)
	r.POST("/api/auth/login", h.Login)
	r.POST("/api/auth/logout", h.Logout)

	auth := r.Group("/api")
	auth.Use(middleware.RequireAuth())

	auth.GET("/me", h.Me)

	// PROJECTS
	auth.POST("/projects",
		middleware.RequireRole(roles.RolePMI, roles.RoleAdmin),
		h.InitiateProject,
	)
	auth.GET("/projects/:id", h.GetProject)
	auth.GET("/projects/:id/workflow", h.GetProjectWorkflow)
	auth.GET("/projects/my", h.MyProjects)

	// team assignment is leadership only
	auth.GET("/projects/pending-assignments",
		middleware.RequireRole(roles.RoleDirector, roles.RoleAdmin),
		h.PendingAssignments,
	)
	auth.POST("/projects/:id/assign",
		middleware.RequireRole(roles.RoleDirector, roles.RoleAdmin),
		h.AssignTeam,
	)
	auth.GET("/users/available-managers",
		middleware.RequireRole(roles.RoleDirector, roles.RoleAdmin),
		h.AvailableManagers,
	)

	// finalization: the gateway re-checks assignment and phase
	auth.POST("/projects/:id/finalize",
		middleware.RequireRole(roles.RolePM, roles.RoleSPM, roles.RoleAdmin),
		h.FinalizeProject,
	)
	auth.POST("/projects/:id/status", h.SetProjectStatus)

	// VERSIONS
	auth.GET("/projects/:id/versions", h.ListVersions)
	auth.POST("/projects/:id/versions",
		middleware.RequireRole(roles.RolePM, roles.RoleSPM, roles.RoleDirector, roles.RoleAdmin),
		h.CreateDraftVersion,
	)
	auth.POST("/versions/:versionId/submit",
		middleware.RequireRole(roles.RolePM, roles.RoleSPM, roles.RoleDirector, roles.RoleAdmin),
		h.SubmitVersion,
	)
	auth.POST("/versions/:versionId/approve",
		middleware.RequireRole(roles.RoleSPM, roles.RoleDirector, roles.RoleAdmin),
		h.ApproveVersion,
	)
	auth.POST("/versions/:versionId/reject",
		middleware.RequireRole(roles.RoleSPM, roles.RoleDirector, roles.RoleAdmin),
		h.RejectVersion,
	)

	// WIZARD
	auth.POST("/wizard/sessions", h.StartWizardSession)
	auth.GET("/wizard/sessions/:sessionId", h.GetWizardSession)
	auth.POST("/wizard/sessions/:sessionId/steps", h.SaveWizardStep)
	auth.POST("/wizard/sessions/:sessionId/project", h.BindWizardProject)
	auth.POST("/wizard/sessions/:sessionId/complete", h.CompleteWizardSession)
	auth.GET("/wizard/sessions/:sessionId/project", h.ResolveWizardProject)
	auth.GET("/projects/:id/wizard-progress", h.WizardProgress)

	// AUDIT
	auth.GET("/audit",
		middleware.RequireRole(roles.RoleAnalyst, roles.RoleDirector, roles.RoleAdmin),
		h.RecentAudit,
	)

	// HEALTHCHECK
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	return r
}
