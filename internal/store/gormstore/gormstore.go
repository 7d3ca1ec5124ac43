// Package gormstore implements the store interfaces on gorm/postgres.
// Transition preconditions become conditional UPDATE ... WHERE clauses
// checked via RowsAffected, so racing writers get exactly one winner without
// explicit locks.
package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pfmt-portal/internal/models"
	"pfmt-portal/internal/roles"
	"pfmt-portal/internal/store"
)

var _ store.UserStore = (*Store)(nil)
var _ store.ProjectStore = (*Store)(nil)
var _ store.VersionStore = (*Store)(nil)
var _ store.WizardStore = (*Store)(nil)
var _ store.AuditStore = (*Store)(nil)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Stores returns the bundle with every interface backed by s.
func (s *Store) Stores() store.Stores {
	return store.Stores{Users: s, Projects: s, Versions: s, Wizard: s, Audit: s}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return store.ErrDuplicate
	}
	return err
}

//
// users
//

func (s *Store) GetUser(ctx context.Context, id uint) (models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return models.User{}, translate(err)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return models.User{}, translate(err)
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return translate(s.db.WithContext(ctx).Create(u).Error)
}

// EnsureUser is insert-or-ignore, not insert-then-catch-conflict: concurrent
// first requests from a new identity all succeed.
func (s *Store) EnsureUser(ctx context.Context, u models.User) error {
	return translate(s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&u).Error)
}

func (s *Store) ListUsersByRoles(ctx context.Context, rs ...roles.Role) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("role IN ? AND is_active = ?", rs, true).
		Order("role, username").
		Find(&users).Error
	return users, translate(err)
}

//
// projects
//

func (s *Store) CreateProject(ctx context.Context, p *models.Project) error {
	return translate(s.db.WithContext(ctx).Create(p).Error)
}

func (s *Store) GetProject(ctx context.Context, id uint) (models.Project, error) {
	var p models.Project
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return models.Project{}, translate(err)
	}
	return p, nil
}

func (s *Store) UpdateProjectWhereStatus(ctx context.Context, id uint, expect models.WorkflowStatus, mutate func(*models.Project)) (bool, error) {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return false, err
	}
	if p.WorkflowStatus != expect {
		return false, nil
	}
	mutate(&p)

	// the WHERE clause re-checks the precondition at write time
	res := s.db.WithContext(ctx).
		Model(&models.Project{}).
		Where("id = ? AND workflow_status = ?", id, expect).
		Select("*").
		Omit("id", "created_at", "deleted_at").
		Updates(&p)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) SetCurrentVersion(ctx context.Context, projectID, versionID uint) error {
	res := s.db.WithContext(ctx).
		Model(&models.Project{}).
		Where("id = ?", projectID).
		Update("current_version_id", versionID)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListProjectsByWorkflowStatus(ctx context.Context, status models.WorkflowStatus) ([]models.Project, error) {
	var projects []models.Project
	err := s.db.WithContext(ctx).
		Where("workflow_status = ?", status).
		Order("created_at asc").
		Find(&projects).Error
	return projects, translate(err)
}

func (s *Store) ListProjectsForUser(ctx context.Context, userID uint) ([]models.Project, error) {
	var projects []models.Project
	err := s.db.WithContext(ctx).
		Where("assigned_pm = ? OR assigned_spm = ?", userID, userID).
		Order("updated_at desc").
		Find(&projects).Error
	return projects, translate(err)
}

//
// versions
//

// CreateNextVersion allocates max+1 and inserts in one statement. The unique
// (project_id, version_number) index catches the rare concurrent allocation
// of the same number; losers retry and pick up the next free number, keeping
// the sequence gap-free and duplicate-free.
func (s *Store) CreateNextVersion(ctx context.Context, v *models.ProjectVersion) error {
	const attempts = 5

	var lastErr error
	for i := 0; i < attempts; i++ {
		var row struct {
			ID            uint
			VersionNumber int
		}
		err := s.db.WithContext(ctx).Raw(`
			INSERT INTO project_versions
				(created_at, updated_at, project_id, version_number, status,
				 data_snapshot, change_summary, is_current, created_by, rejection_reason)
			SELECT NOW(), NOW(), ?, COALESCE(MAX(version_number), 0) + 1, ?, ?, ?, FALSE, ?, ''
			FROM project_versions
			WHERE project_id = ? AND deleted_at IS NULL
			RETURNING id, version_number`,
			v.ProjectID, v.Status, v.DataSnapshot, v.ChangeSummary, v.CreatedBy, v.ProjectID,
		).Scan(&row).Error
		if err == nil {
			v.ID = row.ID
			v.VersionNumber = row.VersionNumber
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return translate(err)
		}
		lastErr = err
	}
	return translate(lastErr)
}

func (s *Store) GetVersion(ctx context.Context, id uint) (models.ProjectVersion, error) {
	var v models.ProjectVersion
	if err := s.db.WithContext(ctx).First(&v, id).Error; err != nil {
		return models.ProjectVersion{}, translate(err)
	}
	return v, nil
}

func (s *Store) UpdateVersionWhereStatus(ctx context.Context, id uint, expect models.VersionStatus, mutate func(*models.ProjectVersion)) (bool, error) {
	v, err := s.GetVersion(ctx, id)
	if err != nil {
		return false, err
	}
	if v.Status != expect {
		return false, nil
	}
	mutate(&v)

	res := s.db.WithContext(ctx).
		Model(&models.ProjectVersion{}).
		Where("id = ? AND status = ?", id, expect).
		Select("*").
		Omit("id", "created_at", "deleted_at").
		Updates(&v)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SubmitVersion guards the no-pending precondition inside the UPDATE itself;
// the idx_single_pending_version partial index catches the write-write race
// the NOT EXISTS read cannot see.
func (s *Store) SubmitVersion(ctx context.Context, id uint, mutate func(*models.ProjectVersion)) (bool, error) {
	v, err := s.GetVersion(ctx, id)
	if err != nil {
		return false, err
	}
	if v.Status != models.VersionDraft {
		return false, nil
	}
	mutate(&v)
	v.Status = models.VersionPending

	res := s.db.WithContext(ctx).
		Model(&models.ProjectVersion{}).
		Where(`id = ? AND status = ? AND NOT EXISTS (
			SELECT 1 FROM project_versions pending
			WHERE pending.project_id = ? AND pending.status = ? AND pending.deleted_at IS NULL)`,
			id, models.VersionDraft, v.ProjectID, models.VersionPending).
		Select("*").
		Omit("id", "created_at", "deleted_at").
		Updates(&v)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, store.ErrPendingExists
		}
		return false, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		n, err := s.CountVersionsByStatus(ctx, v.ProjectID, models.VersionPending)
		if err == nil && n > 0 {
			return false, store.ErrPendingExists
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) ListVersions(ctx context.Context, projectID uint) ([]models.ProjectVersion, error) {
	var versions []models.ProjectVersion
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("version_number asc").
		Find(&versions).Error
	return versions, translate(err)
}

func (s *Store) CountVersions(ctx context.Context, projectID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.ProjectVersion{}).
		Where("project_id = ?", projectID).
		Count(&n).Error
	return n, translate(err)
}

func (s *Store) CountVersionsByStatus(ctx context.Context, projectID uint, status models.VersionStatus) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.ProjectVersion{}).
		Where("project_id = ? AND status = ?", projectID, status).
		Count(&n).Error
	return n, translate(err)
}

func (s *Store) ClearCurrentVersion(ctx context.Context, projectID uint) error {
	return translate(s.db.WithContext(ctx).
		Model(&models.ProjectVersion{}).
		Where("project_id = ? AND is_current = ?", projectID, true).
		Update("is_current", false).Error)
}

//
// wizard sessions
//

func (s *Store) CreateSession(ctx context.Context, sess *models.WizardSession) error {
	return translate(s.db.WithContext(ctx).Create(sess).Error)
}

func (s *Store) GetSessionBySessionID(ctx context.Context, sessionID string) (models.WizardSession, error) {
	var sess models.WizardSession
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&sess).Error; err != nil {
		return models.WizardSession{}, translate(err)
	}
	return sess, nil
}

func (s *Store) LatestSessionForProject(ctx context.Context, projectID uint) (models.WizardSession, error) {
	var sess models.WizardSession
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("updated_at desc").
		First(&sess).Error
	if err != nil {
		return models.WizardSession{}, translate(err)
	}
	return sess, nil
}

func (s *Store) UpdateSession(ctx context.Context, sess *models.WizardSession) error {
	return translate(s.db.WithContext(ctx).Save(sess).Error)
}

//
// audit
//

func (s *Store) AppendAudit(ctx context.Context, entry models.AuditLog) error {
	return translate(s.db.WithContext(ctx).Create(&entry).Error)
}

func (s *Store) ListRecentAudit(ctx context.Context, limit int) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	err := s.db.WithContext(ctx).
		Preload("User").
		Order("created_at desc").
		Limit(limit).
		Find(&entries).Error
	return entries, translate(err)
}
