// Package store declares the narrow persistence interfaces the core services
// depend on. The state machines never see gorm; they are handed these
// interfaces so they stay unit-testable without a live backing store.
package store

import (
	"context"
	"errors"

	"pfmt-portal/internal/models"
	"pfmt-portal/internal/roles"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate is returned when an insert hits a uniqueness constraint.
var ErrDuplicate = errors.New("store: duplicate")

// ErrPendingExists is returned by SubmitVersion when another version of the
// same project already sits in pending_approval.
var ErrPendingExists = errors.New("store: pending version exists")

type UserStore interface {
	GetUser(ctx context.Context, id uint) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	// EnsureUser is an idempotent insert-or-ignore keyed by u.ID. Concurrent
	// first requests from the same identity must all succeed.
	EnsureUser(ctx context.Context, u models.User) error
	ListUsersByRoles(ctx context.Context, rs ...roles.Role) ([]models.User, error)
}

type ProjectStore interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id uint) (models.Project, error)
	// UpdateProjectWhereStatus applies mutate to the project only if its
	// WorkflowStatus still equals expect at write time. Returns false when
	// the precondition no longer holds, so concurrent transitions have
	// exactly one winner.
	UpdateProjectWhereStatus(ctx context.Context, id uint, expect models.WorkflowStatus, mutate func(*models.Project)) (bool, error)
	// SetCurrentVersion repoints the project at its newly approved version.
	SetCurrentVersion(ctx context.Context, projectID, versionID uint) error
	ListProjectsByWorkflowStatus(ctx context.Context, s models.WorkflowStatus) ([]models.Project, error)
	// ListProjectsForUser returns projects where the user occupies the PM or
	// SPM slot.
	ListProjectsForUser(ctx context.Context, userID uint) ([]models.Project, error)
}

type VersionStore interface {
	// CreateNextVersion inserts v with VersionNumber = max(existing)+1 for
	// its project as one atomic increment-and-insert.
	CreateNextVersion(ctx context.Context, v *models.ProjectVersion) error
	GetVersion(ctx context.Context, id uint) (models.ProjectVersion, error)
	// UpdateVersionWhereStatus is the conditional-write twin of
	// ProjectStore.UpdateProjectWhereStatus.
	UpdateVersionWhereStatus(ctx context.Context, id uint, expect models.VersionStatus, mutate func(*models.ProjectVersion)) (bool, error)
	// SubmitVersion atomically flips the version from draft to
	// pending_approval, provided no other version of its project is pending.
	// The no-pending check and the flip are one critical section; racing
	// submits of different drafts get exactly one winner. mutate applies the
	// submission stamps; the store sets the status itself. Returns false when
	// the version is not in draft, ErrPendingExists when the pending slot is
	// taken.
	SubmitVersion(ctx context.Context, id uint, mutate func(*models.ProjectVersion)) (bool, error)
	ListVersions(ctx context.Context, projectID uint) ([]models.ProjectVersion, error)
	CountVersions(ctx context.Context, projectID uint) (int64, error)
	CountVersionsByStatus(ctx context.Context, projectID uint, s models.VersionStatus) (int64, error)
	// ClearCurrentVersion drops the is_current flag from every version of
	// the project, ahead of marking a newly approved one.
	ClearCurrentVersion(ctx context.Context, projectID uint) error
}

type WizardStore interface {
	CreateSession(ctx context.Context, s *models.WizardSession) error
	GetSessionBySessionID(ctx context.Context, sessionID string) (models.WizardSession, error)
	// LatestSessionForProject returns the most recently updated session bound
	// to the project.
	LatestSessionForProject(ctx context.Context, projectID uint) (models.WizardSession, error)
	UpdateSession(ctx context.Context, s *models.WizardSession) error
}

type AuditStore interface {
	AppendAudit(ctx context.Context, entry models.AuditLog) error
	// ListRecentAudit returns the newest entries first, at most limit.
	ListRecentAudit(ctx context.Context, limit int) ([]models.AuditLog, error)
}

// Stores bundles every interface for wiring.
type Stores struct {
	Users    UserStore
	Projects ProjectStore
	Versions VersionStore
	Wizard   WizardStore
	Audit    AuditStore
}
