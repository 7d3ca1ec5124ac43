// Package authz is the decision point every project mutation goes through.
// It combines the actor's global role with their relationship to the
// specific project (creator, assigned PM, assigned SPM) into an allow/deny.
package authz

import (
	"context"
	"fmt"

	"pfmt-portal/internal/apperr"
	"pfmt-portal/internal/models"
	"pfmt-portal/internal/roles"
	"pfmt-portal/internal/store"
)

type Action string

const (
	ActionView     Action = "view"
	ActionEdit     Action = "edit"
	ActionAssign   Action = "assign"
	ActionFinalize Action = "finalize"
	ActionApprove  Action = "approve"
)

// Decision is the outcome of an authorization check. When Allowed is false,
// Deny explains which role or relationship was missing. ReadOnly marks
// analyst view access.
type Decision struct {
	Allowed  bool
	ReadOnly bool
	Deny     *apperr.AuthorizationError
}

func allow() Decision         { return Decision{Allowed: true} }
func allowReadOnly() Decision { return Decision{Allowed: true, ReadOnly: true} }

func deny(projectID uint, actor models.User, required []string, relationship, msg string) Decision {
	return Decision{Deny: &apperr.AuthorizationError{
		ResourceID:   projectID,
		ActorRole:    string(actor.Role),
		Required:     required,
		Relationship: relationship,
		Message:      msg,
	}}
}

type Gateway struct {
	Projects store.ProjectStore
}

func NewGateway(projects store.ProjectStore) *Gateway {
	return &Gateway{Projects: projects}
}

// Authorize decides whether actor may perform action on the project. A deny
// comes back as a Decision with the reason attached; state mismatches on
// state-dependent actions (assign, finalize) come back as a StateError so
// callers can tell "wrong phase" apart from "not permitted".
func (g *Gateway) Authorize(ctx context.Context, actor models.User, action Action, projectID uint) (Decision, error) {
	actor.Role = roles.Normalize(string(actor.Role))

	// approve is a pure role-tier check; version state belongs to the
	// version state machine
	if action == ActionApprove {
		if actor.Role == roles.RoleSPM || roles.IsLeadership(actor.Role) {
			return allow(), nil
		}
		return deny(projectID, actor,
			append([]string{string(roles.RoleSPM)}, roles.Names(roles.Leadership)...),
			"", "approval requires spm, director or admin"), nil
	}

	project, err := g.Projects.GetProject(ctx, projectID)
	if err != nil {
		if err == store.ErrNotFound {
			return Decision{}, &apperr.NotFoundError{Resource: "project"}
		}
		return Decision{}, &apperr.PersistenceError{Op: "get project", Err: err}
	}

	switch action {
	case ActionView:
		return g.authorizeView(actor, project), nil
	case ActionEdit:
		return g.authorizeEdit(actor, project), nil
	case ActionAssign:
		return g.authorizeAssign(actor, project)
	case ActionFinalize:
		return g.authorizeFinalize(actor, project)
	default:
		return deny(projectID, actor, nil, "", fmt.Sprintf("unknown action %q", action)), nil
	}
}

// view is the permissive tier: leadership sees everything, project
// participants see their own, analysts get read-only access to any project.
func (g *Gateway) authorizeView(actor models.User, project models.Project) Decision {
	if roles.IsLeadership(actor.Role) {
		return allow()
	}
	if isAssigned(actor.ID, project) || project.CreatedBy == actor.ID {
		return allow()
	}
	if actor.Role == roles.RoleAnalyst {
		return allowReadOnly()
	}
	return deny(project.ID, actor,
		[]string{string(roles.RoleAnalyst), string(roles.RoleDirector), string(roles.RoleAdmin)},
		"creator, assigned_pm or assigned_spm",
		"not authorized to view this project")
}

func (g *Gateway) authorizeEdit(actor models.User, project models.Project) Decision {
	if roles.IsLeadership(actor.Role) {
		return allow()
	}
	if roles.IsProjectManager(actor.Role) && isAssigned(actor.ID, project) {
		return allow()
	}
	// the initiator keeps an edit window until the project leaves initiated
	if actor.Role == roles.RolePMI && project.CreatedBy == actor.ID &&
		project.WorkflowStatus == models.WorkflowInitiated {
		return allow()
	}
	return deny(project.ID, actor,
		[]string{string(roles.RolePM), string(roles.RoleSPM), string(roles.RoleDirector), string(roles.RoleAdmin)},
		"assigned_pm, assigned_spm, or creator while initiated",
		"not authorized to edit this project")
}

func (g *Gateway) authorizeAssign(actor models.User, project models.Project) (Decision, error) {
	if !roles.IsLeadership(actor.Role) {
		return deny(project.ID, actor,
			roles.Names(roles.Leadership),
			"", "only directors and admins can assign project teams"), nil
	}
	if project.WorkflowStatus != models.WorkflowInitiated {
		return Decision{}, &apperr.StateError{
			ResourceID: project.ID,
			Current:    string(project.WorkflowStatus),
			Required:   string(models.WorkflowInitiated),
			Message:    "project must be in initiated status for team assignment",
		}
	}
	return allow(), nil
}

func (g *Gateway) authorizeFinalize(actor models.User, project models.Project) (Decision, error) {
	// role filter first: anyone outside pm/spm/admin is rejected regardless
	// of project phase
	if actor.Role != roles.RoleAdmin && !roles.IsProjectManager(actor.Role) {
		return deny(project.ID, actor,
			[]string{string(roles.RolePM), string(roles.RoleSPM), string(roles.RoleAdmin)},
			"", "only project managers can finalize projects"), nil
	}
	// then the state guard, ahead of the relationship check
	if project.WorkflowStatus != models.WorkflowAssigned {
		return Decision{}, &apperr.StateError{
			ResourceID: project.ID,
			Current:    string(project.WorkflowStatus),
			Required:   string(models.WorkflowAssigned),
			Message:    "project must be in assigned status for finalization",
		}
	}
	if actor.Role == roles.RoleAdmin {
		return allow(), nil
	}
	if isAssigned(actor.ID, project) {
		return allow(), nil
	}
	return deny(project.ID, actor, nil,
		"assigned_pm or assigned_spm",
		"you are not assigned to this project"), nil
}

func isAssigned(userID uint, project models.Project) bool {
	if project.AssignedPM != nil && *project.AssignedPM == userID {
		return true
	}
	if project.AssignedSPM != nil && *project.AssignedSPM == userID {
		return true
	}
	return false
}
