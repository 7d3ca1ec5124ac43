package workflow

import (
	"context"
	"log"
	"strings"
	"time"

	"pfmt-portal/internal/apperr"
	"pfmt-portal/internal/authz"
	"pfmt-portal/internal/models"
	"pfmt-portal/internal/roles"
	"pfmt-portal/internal/store"
)

// Versions drives the per-edit approval workflow:
// draft -> pending_approval -> approved/rejected. A rejected version is
// terminal; the next draft takes the next number, numbers are never reused.
type Versions struct {
	Versions store.VersionStore
	Projects store.ProjectStore
	Gateway  *authz.Gateway
	Audit    store.AuditStore
}

func NewVersions(st store.Stores, gateway *authz.Gateway) *Versions {
	return &Versions{
		Versions: st.Versions,
		Projects: st.Projects,
		Gateway:  gateway,
		Audit:    st.Audit,
	}
}

// editCapable is the set allowed to author and submit drafts.
func editCapable(r roles.Role) bool {
	return roles.Allowed(r, roles.FeatureProjectEdit)
}

// CreateDraft opens a new draft with the next version number. Numbering is a
// single atomic increment-and-insert in the store, so concurrent drafts get a
// gap-free, duplicate-free run of consecutive numbers.
func (s *Versions) CreateDraft(ctx context.Context, projectID uint, snapshot, summary string, actor models.User) (models.ProjectVersion, error) {
	if !editCapable(actor.Role) {
		return models.ProjectVersion{}, &apperr.AuthorizationError{
			ResourceID: projectID,
			ActorRole:  string(actor.Role),
			Required:   featureRoleNames(roles.FeatureProjectEdit),
			Message:    "not permitted to create project versions",
		}
	}

	if _, err := s.Projects.GetProject(ctx, projectID); err != nil {
		if err == store.ErrNotFound {
			return models.ProjectVersion{}, &apperr.NotFoundError{Resource: "project"}
		}
		return models.ProjectVersion{}, &apperr.PersistenceError{Op: "get project", Err: err}
	}

	v := models.ProjectVersion{
		ProjectID:     projectID,
		Status:        models.VersionDraft,
		DataSnapshot:  snapshot,
		ChangeSummary: summary,
		CreatedBy:     actor.ID,
	}
	if err := s.Versions.CreateNextVersion(ctx, &v); err != nil {
		return models.ProjectVersion{}, &apperr.PersistenceError{Op: "create version", Err: err}
	}

	s.audit(ctx, actor.ID, v.ID, "create", "draft version created")
	return v, nil
}

// Submit moves draft -> pending_approval. At most one version per project may
// be pending at a time.
func (s *Versions) Submit(ctx context.Context, versionID uint, actor models.User) (models.ProjectVersion, error) {
	if !editCapable(actor.Role) {
		return models.ProjectVersion{}, &apperr.AuthorizationError{
			ResourceID: versionID,
			ActorRole:  string(actor.Role),
			Required:   featureRoleNames(roles.FeatureProjectEdit),
			Message:    "not permitted to submit project versions",
		}
	}

	v, err := s.getVersion(ctx, versionID)
	if err != nil {
		return models.ProjectVersion{}, err
	}

	// the no-pending check and the draft->pending flip are one atomic store
	// operation, so racing submits of different drafts get exactly one winner
	now := time.Now()
	updated, err := s.Versions.SubmitVersion(ctx, versionID, func(v *models.ProjectVersion) {
		by := actor.ID
		v.SubmittedBy = &by
		v.SubmittedAt = &now
	})
	if err != nil {
		if err == store.ErrPendingExists {
			return models.ProjectVersion{}, &apperr.StateError{
				ResourceID: v.ProjectID,
				Current:    string(models.VersionPending),
				Required:   "no pending version",
				Message:    "project already has a version pending approval",
			}
		}
		return models.ProjectVersion{}, s.versionErr("submit version", err)
	}
	if !updated {
		return models.ProjectVersion{}, s.staleVersionErr(ctx, versionID, models.VersionDraft)
	}

	s.audit(ctx, actor.ID, versionID, "submit", "version submitted for approval")
	return s.getVersion(ctx, versionID)
}

// Approve moves pending_approval -> approved and repoints the project's
// current version at it. PM may author and submit but never approve.
func (s *Versions) Approve(ctx context.Context, versionID uint, actor models.User) (models.ProjectVersion, error) {
	v, err := s.getVersion(ctx, versionID)
	if err != nil {
		return models.ProjectVersion{}, err
	}

	decision, err := s.Gateway.Authorize(ctx, actor, authz.ActionApprove, v.ProjectID)
	if err != nil {
		return models.ProjectVersion{}, err
	}
	if !decision.Allowed {
		return models.ProjectVersion{}, decision.Deny
	}

	now := time.Now()
	updated, err := s.Versions.UpdateVersionWhereStatus(ctx, versionID, models.VersionPending, func(v *models.ProjectVersion) {
		by := actor.ID
		v.Status = models.VersionApproved
		v.ApprovedBy = &by
		v.ApprovedAt = &now
	})
	if err != nil {
		return models.ProjectVersion{}, s.versionErr("approve version", err)
	}
	if !updated {
		return models.ProjectVersion{}, s.staleVersionErr(ctx, versionID, models.VersionPending)
	}

	// repoint current: clear the old flag, set the new one, update the
	// project pointer
	if err := s.Versions.ClearCurrentVersion(ctx, v.ProjectID); err != nil {
		return models.ProjectVersion{}, &apperr.PersistenceError{Op: "clear current version", Err: err}
	}
	if _, err := s.Versions.UpdateVersionWhereStatus(ctx, versionID, models.VersionApproved, func(v *models.ProjectVersion) {
		v.IsCurrent = true
	}); err != nil {
		return models.ProjectVersion{}, &apperr.PersistenceError{Op: "mark current version", Err: err}
	}
	if err := s.Projects.SetCurrentVersion(ctx, v.ProjectID, versionID); err != nil {
		return models.ProjectVersion{}, &apperr.PersistenceError{Op: "set project current version", Err: err}
	}

	s.audit(ctx, actor.ID, versionID, "approve", "version approved and made current")
	return s.getVersion(ctx, versionID)
}

// Reject moves pending_approval -> rejected. A non-empty reason is required.
func (s *Versions) Reject(ctx context.Context, versionID uint, reason string, actor models.User) (models.ProjectVersion, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.ProjectVersion{}, &apperr.ValidationError{Field: "rejection_reason", Message: "required"}
	}

	v, err := s.getVersion(ctx, versionID)
	if err != nil {
		return models.ProjectVersion{}, err
	}

	decision, err := s.Gateway.Authorize(ctx, actor, authz.ActionApprove, v.ProjectID)
	if err != nil {
		return models.ProjectVersion{}, err
	}
	if !decision.Allowed {
		return models.ProjectVersion{}, decision.Deny
	}

	now := time.Now()
	updated, err := s.Versions.UpdateVersionWhereStatus(ctx, versionID, models.VersionPending, func(v *models.ProjectVersion) {
		by := actor.ID
		v.Status = models.VersionRejected
		v.RejectedBy = &by
		v.RejectedAt = &now
		v.RejectionReason = reason
	})
	if err != nil {
		return models.ProjectVersion{}, s.versionErr("reject version", err)
	}
	if !updated {
		return models.ProjectVersion{}, s.staleVersionErr(ctx, versionID, models.VersionPending)
	}

	s.audit(ctx, actor.ID, versionID, "reject", "version rejected: "+reason)
	return s.getVersion(ctx, versionID)
}

// List returns all versions of a project in number order.
func (s *Versions) List(ctx context.Context, projectID uint) ([]models.ProjectVersion, error) {
	versions, err := s.Versions.ListVersions(ctx, projectID)
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "list versions", Err: err}
	}
	return versions, nil
}

func (s *Versions) getVersion(ctx context.Context, versionID uint) (models.ProjectVersion, error) {
	v, err := s.Versions.GetVersion(ctx, versionID)
	if err != nil {
		return models.ProjectVersion{}, s.versionErr("get version", err)
	}
	return v, nil
}

func (s *Versions) versionErr(op string, err error) error {
	if err == store.ErrNotFound {
		return &apperr.NotFoundError{Resource: "version"}
	}
	return &apperr.PersistenceError{Op: op, Err: err}
}

func (s *Versions) staleVersionErr(ctx context.Context, versionID uint, expected models.VersionStatus) error {
	current := "unknown"
	if v, err := s.Versions.GetVersion(ctx, versionID); err == nil {
		current = string(v.Status)
	}
	return &apperr.StateError{
		ResourceID: versionID,
		Current:    current,
		Required:   string(expected),
	}
}

func (s *Versions) audit(ctx context.Context, userID, versionID uint, action, details string) {
	if s.Audit == nil {
		return
	}
	err := s.Audit.AppendAudit(ctx, models.AuditLog{
		UserID:   userID,
		Entity:   "version",
		EntityID: versionID,
		Action:   action,
		Details:  details,
	})
	if err != nil {
		log.Printf("audit append failed (version %d, %s): %v", versionID, action, err)
	}
}
