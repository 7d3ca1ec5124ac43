package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"pfmt-portal/internal/apperr"
	"pfmt-portal/internal/authz"
	"pfmt-portal/internal/store"
	"pfmt-portal/internal/wizard"
	"pfmt-portal/internal/workflow"
)

// Handlers carries the wired core services. Stores are injected so the same
// handlers run against gormstore in production and memstore in tests.
type Handlers struct {
	Stores      store.Stores
	Gateway     *authz.Gateway
	Lifecycle   *workflow.Lifecycle
	VersionFlow *workflow.Versions
	Gate        *wizard.Gate
	Sessions    *wizard.Sessions
}

func New(st store.Stores) *Handlers {
	gateway := authz.NewGateway(st.Projects)
	gate := wizard.NewGate(st)
	return &Handlers{
		Stores:      st,
		Gateway:     gateway,
		Lifecycle:   workflow.NewLifecycle(st, gateway),
		VersionFlow: workflow.NewVersions(st, gateway),
		Gate:        gate,
		Sessions:    wizard.NewSessions(st, gate),
	}
}

// storeErr lifts a raw store error into the taxonomy before it reaches
// respondErr, so storage failures surface as PERSISTENCE_ERROR rather than
// the generic internal fallback.
func storeErr(op string, err error) error {
	if err == store.ErrNotFound {
		return &apperr.NotFoundError{Resource: "project"}
	}
	return &apperr.PersistenceError{Op: op, Err: err}
}

// respondErr maps the typed error taxonomy onto HTTP statuses and the
// error envelope. Anything outside the taxonomy becomes a generic 500;
// its detail goes to the server log only.
func respondErr(c *gin.Context, err error) {
	var (
		vErr  *apperr.ValidationError
		aErr  *apperr.AuthorizationError
		sErr  *apperr.StateError
		bErr  *apperr.StepBlockedError
		nfErr *apperr.NotFoundError
		pErr  *apperr.PersistenceError
	)

	switch {
	case errors.As(err, &vErr):
		body := gin.H{"code": vErr.Code(), "message": vErr.Message}
		if vErr.Field != "" {
			body["field"] = vErr.Field
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": body})

	case errors.As(err, &aErr):
		body := gin.H{"code": aErr.Code(), "message": aErr.Message, "current": aErr.ActorRole}
		if len(aErr.Required) > 0 {
			body["required"] = aErr.Required
		}
		if aErr.Relationship != "" {
			body["relationship"] = aErr.Relationship
		}
		if aErr.ResourceID != 0 {
			body["resource_id"] = aErr.ResourceID
		}
		c.JSON(http.StatusForbidden, gin.H{"error": body})

	case errors.As(err, &sErr):
		c.JSON(http.StatusConflict, gin.H{"error": gin.H{
			"code":            sErr.Code(),
			"message":         sErr.Error(),
			"current_status":  sErr.Current,
			"required_status": sErr.Required,
		}})

	case errors.As(err, &bErr):
		c.JSON(http.StatusConflict, gin.H{"error": gin.H{
			"code":        bErr.Code(),
			"message":     bErr.Error(),
			"nextAllowed": bErr.NextAllowed,
		}})

	case errors.As(err, &nfErr):
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{
			"code":    nfErr.Code(),
			"message": nfErr.Error(),
		}})

	case errors.As(err, &pErr):
		log.Printf("persistence error: %v", pErr)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{
			"code":    pErr.Code(),
			"message": "storage temporarily unavailable",
		}})

	default:
		log.Printf("unexpected error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{
			"code":    apperr.CodeInternal,
			"message": "internal error",
		}})
	}
}
