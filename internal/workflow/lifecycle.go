// Package workflow holds the two state machines of the portal: the project
// lifecycle (initiate -> assign -> finalize -> active and its branches) and
// the per-edit version approval workflow. Every transition is a guarded
// conditional write; the precondition is re-checked at write time so racing
// callers get exactly one winner.
package workflow

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"pfmt-portal/internal/apperr"
	"pfmt-portal/internal/authz"
	"pfmt-portal/internal/models"
	"pfmt-portal/internal/roles"
	"pfmt-portal/internal/store"
)

// Lifecycle drives workflow_status transitions for projects.
type Lifecycle struct {
	Projects store.ProjectStore
	Users    store.UserStore
	Gateway  *authz.Gateway
	Audit    store.AuditStore
}

func NewLifecycle(st store.Stores, gateway *authz.Gateway) *Lifecycle {
	return &Lifecycle{
		Projects: st.Projects,
		Users:    st.Users,
		Gateway:  gateway,
		Audit:    st.Audit,
	}
}

type InitiateInput struct {
	Name            string
	Description     string
	EstimatedBudget float64
	Category        string
	Region          string
	StartDate       *time.Time
	EndDate         *time.Time
}

// Initiate creates a project in initiated/planning. Permitted by the
// project_initiation feature mapping (pmi and admin).
func (l *Lifecycle) Initiate(ctx context.Context, in InitiateInput, actor models.User) (models.Project, error) {
	if !roles.Allowed(actor.Role, roles.FeatureProjectInitiation) {
		return models.Project{}, &apperr.AuthorizationError{
			ActorRole: string(actor.Role),
			Required:  featureRoleNames(roles.FeatureProjectInitiation),
			Message:   "not permitted to initiate projects",
		}
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return models.Project{}, &apperr.ValidationError{Field: "name", Message: "required"}
	}
	if in.Description == "" {
		return models.Project{}, &apperr.ValidationError{Field: "description", Message: "required"}
	}

	project := models.Project{
		Name:            in.Name,
		Description:     in.Description,
		WorkflowStatus:  models.WorkflowInitiated,
		LifecycleStatus: models.LifecyclePlanning,
		CreatedBy:       actor.ID,
		EstimatedBudget: in.EstimatedBudget,
		Category:        in.Category,
		Region:          in.Region,
		StartDate:       in.StartDate,
		EndDate:         in.EndDate,
	}
	if err := l.Projects.CreateProject(ctx, &project); err != nil {
		return models.Project{}, &apperr.PersistenceError{Op: "create project", Err: err}
	}

	l.audit(ctx, actor.ID, project.ID, "create", "initiated project: "+project.Name)
	return project, nil
}

type AssignInput struct {
	PM  uint
	SPM uint
}

// Assign moves initiated -> assigned, stamping the PM and SPM slots. Only
// leadership may assign; assignees must be active users whose role satisfies
// the slot. Two racers on the same project: one wins, the other observes a
// StateError.
func (l *Lifecycle) Assign(ctx context.Context, projectID uint, in AssignInput, actor models.User) (models.Project, error) {
	decision, err := l.Gateway.Authorize(ctx, actor, authz.ActionAssign, projectID)
	if err != nil {
		return models.Project{}, err
	}
	if !decision.Allowed {
		return models.Project{}, decision.Deny
	}

	if in.PM == 0 {
		return models.Project{}, &apperr.ValidationError{Field: "assigned_pm", Message: "required"}
	}
	if in.SPM == 0 {
		return models.Project{}, &apperr.ValidationError{Field: "assigned_spm", Message: "required"}
	}
	if err := l.validateAssignee(ctx, in.PM, roles.ValidForPMSlot, "assigned_pm", "pm or higher"); err != nil {
		return models.Project{}, err
	}
	if err := l.validateAssignee(ctx, in.SPM, roles.ValidForSPMSlot, "assigned_spm", "spm or higher"); err != nil {
		return models.Project{}, err
	}

	now := time.Now()
	updated, err := l.Projects.UpdateProjectWhereStatus(ctx, projectID, models.WorkflowInitiated, func(p *models.Project) {
		pm, spm, by := in.PM, in.SPM, actor.ID
		p.AssignedPM = &pm
		p.AssignedSPM = &spm
		p.AssignedBy = &by
		p.WorkflowStatus = models.WorkflowAssigned
		p.UpdatedAt = now
	})
	if err != nil {
		return models.Project{}, transitionErr("assign", err)
	}
	if !updated {
		return models.Project{}, staleStateErr(ctx, l.Projects, projectID, models.WorkflowInitiated)
	}

	l.audit(ctx, actor.ID, projectID, "assign",
		fmt.Sprintf("assigned team: pm=%d spm=%d", in.PM, in.SPM))
	return l.Projects.GetProject(ctx, projectID)
}

type FinalizeInput struct {
	Description string
}

// Finalize moves assigned -> finalized and flips lifecycle planning -> active
// in lockstep. Only the assigned PM/SPM or an admin may finalize.
func (l *Lifecycle) Finalize(ctx context.Context, projectID uint, in FinalizeInput, actor models.User) (models.Project, error) {
	decision, err := l.Gateway.Authorize(ctx, actor, authz.ActionFinalize, projectID)
	if err != nil {
		return models.Project{}, err
	}
	if !decision.Allowed {
		return models.Project{}, decision.Deny
	}

	now := time.Now()
	updated, err := l.Projects.UpdateProjectWhereStatus(ctx, projectID, models.WorkflowAssigned, func(p *models.Project) {
		by := actor.ID
		p.WorkflowStatus = models.WorkflowFinalized
		p.LifecycleStatus = models.LifecycleActive
		p.FinalizedBy = &by
		p.FinalizedAt = &now
		if desc := strings.TrimSpace(in.Description); desc != "" {
			p.Description = desc
		}
	})
	if err != nil {
		return models.Project{}, transitionErr("finalize", err)
	}
	if !updated {
		return models.Project{}, staleStateErr(ctx, l.Projects, projectID, models.WorkflowAssigned)
	}

	l.audit(ctx, actor.ID, projectID, "finalize", "project finalized, lifecycle active")
	return l.Projects.GetProject(ctx, projectID)
}

// post-finalization transitions: target -> statuses it may come from
var statusSources = map[models.WorkflowStatus][]models.WorkflowStatus{
	models.WorkflowActive:   {models.WorkflowFinalized, models.WorkflowOnHold},
	models.WorkflowOnHold:   {models.WorkflowActive},
	models.WorkflowComplete: {models.WorkflowActive},
	models.WorkflowArchived: {models.WorkflowActive, models.WorkflowComplete},
}

var statusLifecycle = map[models.WorkflowStatus]models.LifecycleStatus{
	models.WorkflowActive:   models.LifecycleActive,
	models.WorkflowOnHold:   models.LifecycleOnHold,
	models.WorkflowComplete: models.LifecycleComplete,
	models.WorkflowArchived: models.LifecycleArchived,
}

// SetStatus performs the post-finalization transitions (activate, hold,
// resume, complete, archive). Allowed for leadership or the assigned pair,
// same guard-then-write pattern as the wizard transitions.
func (l *Lifecycle) SetStatus(ctx context.Context, projectID uint, target models.WorkflowStatus, actor models.User) (models.Project, error) {
	sources, ok := statusSources[target]
	if !ok {
		return models.Project{}, &apperr.ValidationError{Field: "status", Message: fmt.Sprintf("unsupported target status %q", target)}
	}

	project, err := l.Projects.GetProject(ctx, projectID)
	if err != nil {
		if err == store.ErrNotFound {
			return models.Project{}, &apperr.NotFoundError{Resource: "project"}
		}
		return models.Project{}, &apperr.PersistenceError{Op: "get project", Err: err}
	}

	actorRole := roles.Normalize(string(actor.Role))
	if !roles.IsLeadership(actorRole) && !actorIsAssigned(actor.ID, project) {
		return models.Project{}, &apperr.AuthorizationError{
			ResourceID:   projectID,
			ActorRole:    string(actorRole),
			Required:     roles.Names(roles.Leadership),
			Relationship: "assigned_pm or assigned_spm",
			Message:      "not permitted to change project status",
		}
	}

	current := project.WorkflowStatus
	if !statusIn(current, sources) {
		return models.Project{}, &apperr.StateError{
			ResourceID: projectID,
			Current:    string(current),
			Required:   statusNames(sources),
			Message:    fmt.Sprintf("cannot move to %s from %s", target, current),
		}
	}

	updated, err := l.Projects.UpdateProjectWhereStatus(ctx, projectID, current, func(p *models.Project) {
		p.WorkflowStatus = target
		p.LifecycleStatus = statusLifecycle[target]
	})
	if err != nil {
		return models.Project{}, transitionErr("status change", err)
	}
	if !updated {
		return models.Project{}, staleStateErr(ctx, l.Projects, projectID, current)
	}

	l.audit(ctx, actor.ID, projectID, "status_change", "workflow status set to "+string(target))
	return l.Projects.GetProject(ctx, projectID)
}

func (l *Lifecycle) validateAssignee(ctx context.Context, userID uint, slotOK func(roles.Role) bool, field, requires string) error {
	u, err := l.Users.GetUser(ctx, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return &apperr.ValidationError{Field: field, Message: "user not found"}
		}
		return &apperr.PersistenceError{Op: "get user", Err: err}
	}
	if !u.IsActive {
		return &apperr.ValidationError{Field: field, Message: "user is inactive"}
	}
	if !slotOK(u.Role) {
		return &apperr.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("user with role %q cannot fill this slot, requires %s", u.Role, requires),
		}
	}
	return nil
}

// audit writes are best-effort and never fail the transition
func (l *Lifecycle) audit(ctx context.Context, userID, projectID uint, action, details string) {
	if l.Audit == nil {
		return
	}
	err := l.Audit.AppendAudit(ctx, models.AuditLog{
		UserID:   userID,
		Entity:   "project",
		EntityID: projectID,
		Action:   action,
		Details:  details,
	})
	if err != nil {
		log.Printf("audit append failed (project %d, %s): %v", projectID, action, err)
	}
}

// staleStateErr builds the StateError for a conditional write that lost its
// race: the row moved between the guard and the write.
func staleStateErr(ctx context.Context, projects store.ProjectStore, projectID uint, expected models.WorkflowStatus) error {
	current := "unknown"
	if p, err := projects.GetProject(ctx, projectID); err == nil {
		current = string(p.WorkflowStatus)
	}
	return &apperr.StateError{
		ResourceID: projectID,
		Current:    current,
		Required:   string(expected),
	}
}

func transitionErr(op string, err error) error {
	if err == store.ErrNotFound {
		return &apperr.NotFoundError{Resource: "project"}
	}
	return &apperr.PersistenceError{Op: op, Err: err}
}

func actorIsAssigned(userID uint, p models.Project) bool {
	return (p.AssignedPM != nil && *p.AssignedPM == userID) ||
		(p.AssignedSPM != nil && *p.AssignedSPM == userID)
}

func statusIn(s models.WorkflowStatus, set []models.WorkflowStatus) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

func statusNames(set []models.WorkflowStatus) string {
	names := make([]string, len(set))
	for i, s := range set {
		names[i] = string(s)
	}
	return strings.Join(names, " or ")
}

func featureRoleNames(feature string) []string {
	return roles.Names(roles.ForFeature(feature))
}
